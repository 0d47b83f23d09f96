package transport

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/protocol"
)

// ObservabilityConfig for transport logging and in-process counters
type ObservabilityConfig struct {
	EnableMetrics bool `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging bool `json:"enable_logging" yaml:"enable_logging"`
}

// Enabled reports whether any observability feature is switched on
func (c ObservabilityConfig) Enabled() bool {
	return c.EnableMetrics || c.EnableLogging
}

// ObservabilityMiddleware adds structured logging and request counters
type ObservabilityMiddleware struct {
	config  ObservabilityConfig
	metrics *transportMetrics
	logger  logging.Logger
}

// NewObservabilityMiddleware creates a new observability middleware
func NewObservabilityMiddleware(config ObservabilityConfig, logger logging.Logger) *ObservabilityMiddleware {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ObservabilityMiddleware{
		config:  config,
		metrics: newTransportMetrics(),
		logger:  logger.WithFields(logging.String("component", "transport")),
	}
}

// Wrap implements the Middleware interface
func (om *ObservabilityMiddleware) Wrap(transport Transport) Transport {
	return &observabilityTransport{
		middlewareTransport: middlewareTransport{next: transport},
		middleware:          om,
	}
}

// Snapshot returns the counters collected so far
func (om *ObservabilityMiddleware) Snapshot() TransportMetricsSnapshot {
	return om.metrics.snapshot()
}

type observabilityTransport struct {
	middlewareTransport
	middleware *ObservabilityMiddleware
}

func (ot *observabilityTransport) SendRequest(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	cfg := ot.middleware.config
	logger := ot.middleware.logger.WithContext(ctx)
	if cfg.EnableLogging {
		logger.Debug("Sending request", logging.String("method", method))
	}

	start := time.Now()
	resp, err := ot.next.SendRequest(ctx, method, params)
	duration := time.Since(start)

	status := "ok"
	switch {
	case err != nil:
		status = "transport_error"
	case resp != nil && resp.Error != nil:
		status = "remote_error"
	}

	if cfg.EnableMetrics {
		ot.middleware.metrics.observe(method, status, duration)
	}
	if cfg.EnableLogging {
		fields := []logging.Field{
			logging.String("method", method),
			logging.String("status", status),
			logging.Duration("duration", duration),
		}
		if err != nil {
			logger.WithError(err).Warn("Request failed", fields...)
		} else {
			logger.Debug("Request completed", fields...)
		}
	}
	return resp, err
}

func (ot *observabilityTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	err := ot.next.SendNotification(ctx, method, params)
	if ot.middleware.config.EnableMetrics {
		status := "ok"
		if err != nil {
			status = "transport_error"
		}
		ot.middleware.metrics.observe(method, status, 0)
	}
	if err != nil && ot.middleware.config.EnableLogging {
		ot.middleware.logger.WithError(err).Warn("Notification failed", logging.String("method", method))
	}
	return err
}

func (ot *observabilityTransport) Initialize(ctx context.Context) error {
	start := time.Now()
	err := ot.next.Initialize(ctx)
	if ot.middleware.config.EnableLogging {
		if err != nil {
			ot.middleware.logger.WithError(err).Error("Transport initialization failed",
				logging.Duration("duration", time.Since(start)))
		} else {
			ot.middleware.logger.Debug("Transport initialized", logging.Duration("duration", time.Since(start)))
		}
	}
	return err
}

func (ot *observabilityTransport) Stop(ctx context.Context) error {
	err := ot.next.Stop(ctx)
	if ot.middleware.config.EnableLogging {
		if err != nil {
			ot.middleware.logger.WithError(err).Warn("Transport stop failed")
		} else {
			ot.middleware.logger.Debug("Transport stopped")
		}
	}
	return err
}

// TransportMetricsSnapshot is a point-in-time copy of the transport counters
type TransportMetricsSnapshot struct {
	Requests map[string]MethodStats `json:"requests"`
}

// MethodStats aggregates the outcomes of one method
type MethodStats struct {
	Total         int64            `json:"total"`
	ByStatus      map[string]int64 `json:"by_status"`
	TotalDuration time.Duration    `json:"total_duration"`
}

// Methods returns the observed method names in sorted order
func (s TransportMetricsSnapshot) Methods() []string {
	names := make([]string, 0, len(s.Requests))
	for name := range s.Requests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type methodCounters struct {
	total    atomic.Int64
	duration atomic.Int64
	mu       sync.Mutex
	byStatus map[string]int64
}

type transportMetrics struct {
	mu      sync.RWMutex
	methods map[string]*methodCounters
}

func newTransportMetrics() *transportMetrics {
	return &transportMetrics{methods: make(map[string]*methodCounters)}
}

func (tm *transportMetrics) counters(method string) *methodCounters {
	tm.mu.RLock()
	c, ok := tm.methods[method]
	tm.mu.RUnlock()
	if ok {
		return c
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	if c, ok = tm.methods[method]; !ok {
		c = &methodCounters{byStatus: make(map[string]int64)}
		tm.methods[method] = c
	}
	return c
}

func (tm *transportMetrics) observe(method, status string, duration time.Duration) {
	c := tm.counters(method)
	c.total.Add(1)
	c.duration.Add(int64(duration))
	c.mu.Lock()
	c.byStatus[status]++
	c.mu.Unlock()
}

func (tm *transportMetrics) snapshot() TransportMetricsSnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	snap := TransportMetricsSnapshot{Requests: make(map[string]MethodStats, len(tm.methods))}
	for method, c := range tm.methods {
		c.mu.Lock()
		byStatus := make(map[string]int64, len(c.byStatus))
		for k, v := range c.byStatus {
			byStatus[k] = v
		}
		c.mu.Unlock()
		snap.Requests[method] = MethodStats{
			Total:         c.total.Load(),
			ByStatus:      byStatus,
			TotalDuration: time.Duration(c.duration.Load()),
		}
	}
	return snap
}
