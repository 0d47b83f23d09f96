package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tool call outcomes. A tool that ran and reported failure in its result is
// a tool_error; a call the peer rejected is a remote_error.
const (
	OutcomeOK          = "ok"
	OutcomeToolError   = "tool_error"
	OutcomeRemoteError = "remote_error"
)

// MetricsConfig configures the metrics provider
type MetricsConfig struct {
	// Service identification
	ServiceName    string
	ServiceVersion string

	// Metric options
	Namespace        string    // Prometheus namespace (default: mcp)
	Subsystem        string    // Prometheus subsystem (default: client)
	HistogramBuckets []float64 // Custom histogram buckets for latency in seconds

	// Registerer receives the collectors; nil creates a private registry
	Registry *prometheus.Registry

	// IncludeRuntime adds the Go runtime and process collectors
	IncludeRuntime bool
}

// MetricsProvider records client-side MCP metrics
type MetricsProvider interface {
	RecordRequest(ctx context.Context, method, status string, duration time.Duration)
	RecordToolCall(ctx context.Context, tool, outcome string, duration time.Duration)
	RecordResourceRead(ctx context.Context, uri, status string, duration time.Duration)
	RecordPromptGet(ctx context.Context, prompt, status string, duration time.Duration)
	RecordSessionState(ctx context.Context, state string)
	RecordCommand(ctx context.Context, kind, outcome string)

	// Handler serves the collected metrics in the Prometheus text format
	Handler() http.Handler
}

// PrometheusMetricsProvider implements MetricsProvider using Prometheus
type PrometheusMetricsProvider struct {
	config   MetricsConfig
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	toolCallTotal   *prometheus.CounterVec
	toolCallLatency *prometheus.HistogramVec
	resourceReads   *prometheus.CounterVec
	promptGets      *prometheus.CounterVec
	sessionState    *prometheus.GaugeVec
	commandTotal    *prometheus.CounterVec

	stateMu sync.Mutex
}

// SessionStates are the label values of the session state gauge
var SessionStates = []string{"INIT", "READY", "CLOSED"}

// NewMetricsProvider creates a new Prometheus metrics provider
func NewMetricsProvider(config MetricsConfig) (*PrometheusMetricsProvider, error) {
	if config.Namespace == "" {
		config.Namespace = "mcp"
	}
	if config.Subsystem == "" {
		config.Subsystem = "client"
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = prometheus.DefBuckets
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	p := &PrometheusMetricsProvider{
		config:   config,
		registry: config.Registry,
	}
	p.initializeMetrics()

	if err := p.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return p, nil
}

func (p *PrometheusMetricsProvider) constLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if p.config.ServiceName != "" {
		labels["service"] = p.config.ServiceName
	}
	if p.config.ServiceVersion != "" {
		labels["version"] = p.config.ServiceVersion
	}
	return labels
}

// initializeMetrics creates all metric collectors
func (p *PrometheusMetricsProvider) initializeMetrics() {
	ns, sub, labels := p.config.Namespace, p.config.Subsystem, p.constLabels()

	p.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "request_duration_seconds",
			Help:        "Duration of MCP requests in seconds",
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: labels,
		},
		[]string{"method", "status"},
	)

	p.requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "requests_total",
			Help:        "Total number of MCP requests",
			ConstLabels: labels,
		},
		[]string{"method", "status"},
	)

	p.toolCallTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "tool_calls_total",
			Help:        "Total number of tool calls by outcome",
			ConstLabels: labels,
		},
		[]string{"tool", "outcome"},
	)

	p.toolCallLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "tool_call_duration_seconds",
			Help:        "Duration of tool calls in seconds",
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: labels,
		},
		[]string{"tool"},
	)

	p.resourceReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "resource_reads_total",
			Help:        "Total number of resource reads",
			ConstLabels: labels,
		},
		[]string{"status"},
	)

	p.promptGets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "prompt_gets_total",
			Help:        "Total number of prompt renderings",
			ConstLabels: labels,
		},
		[]string{"prompt", "status"},
	)

	p.sessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "session_state",
			Help:        "Current session state (1 for the active state)",
			ConstLabels: labels,
		},
		[]string{"state"},
	)

	p.commandTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "dispatcher_commands_total",
			Help:        "Total number of dispatcher commands by kind and outcome",
			ConstLabels: labels,
		},
		[]string{"kind", "outcome"},
	)
}

// registerMetrics registers all metrics with the registry
func (p *PrometheusMetricsProvider) registerMetrics() error {
	cs := []prometheus.Collector{
		p.requestDuration,
		p.requestTotal,
		p.toolCallTotal,
		p.toolCallLatency,
		p.resourceReads,
		p.promptGets,
		p.sessionState,
		p.commandTotal,
	}
	if p.config.IncludeRuntime {
		cs = append(cs,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	for _, collector := range cs {
		if err := p.registry.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}

// RecordRequest records an outgoing request
func (p *PrometheusMetricsProvider) RecordRequest(ctx context.Context, method, status string, duration time.Duration) {
	p.requestDuration.WithLabelValues(method, status).Observe(duration.Seconds())
	p.requestTotal.WithLabelValues(method, status).Inc()
}

// RecordToolCall records a tool call and its outcome
func (p *PrometheusMetricsProvider) RecordToolCall(ctx context.Context, tool, outcome string, duration time.Duration) {
	p.toolCallTotal.WithLabelValues(tool, outcome).Inc()
	p.toolCallLatency.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordResourceRead records a resource read. The URI is not a label to
// keep cardinality bounded.
func (p *PrometheusMetricsProvider) RecordResourceRead(ctx context.Context, uri, status string, duration time.Duration) {
	p.resourceReads.WithLabelValues(status).Inc()
}

// RecordPromptGet records a prompt rendering
func (p *PrometheusMetricsProvider) RecordPromptGet(ctx context.Context, prompt, status string, duration time.Duration) {
	p.promptGets.WithLabelValues(prompt, status).Inc()
}

// RecordSessionState sets the gauge of state to 1 and every other state to 0
func (p *PrometheusMetricsProvider) RecordSessionState(ctx context.Context, state string) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	for _, s := range SessionStates {
		p.sessionState.WithLabelValues(s).Set(0)
	}
	p.sessionState.WithLabelValues(state).Set(1)
}

// RecordCommand records one dispatcher command
func (p *PrometheusMetricsProvider) RecordCommand(ctx context.Context, kind, outcome string) {
	p.commandTotal.WithLabelValues(kind, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (p *PrometheusMetricsProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry returns the registry holding the provider's collectors
func (p *PrometheusMetricsProvider) Registry() *prometheus.Registry {
	return p.registry
}

// MetricsServer exposes a MetricsProvider on /metrics
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewMetricsServer creates a server for provider listening on addr
func NewMetricsServer(addr string, provider MetricsProvider) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", provider.Handler())
	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background
func (s *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	s.listener = ln
	go func() {
		_ = s.server.Serve(ln)
	}()
	return nil
}

// Addr returns the bound address, useful when listening on port 0
func (s *MetricsServer) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the metrics server
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// NopMetrics discards every observation
type NopMetrics struct{}

func (NopMetrics) RecordRequest(context.Context, string, string, time.Duration)      {}
func (NopMetrics) RecordToolCall(context.Context, string, string, time.Duration)     {}
func (NopMetrics) RecordResourceRead(context.Context, string, string, time.Duration) {}
func (NopMetrics) RecordPromptGet(context.Context, string, string, time.Duration)    {}
func (NopMetrics) RecordSessionState(context.Context, string)                        {}
func (NopMetrics) RecordCommand(context.Context, string, string)                     {}
func (NopMetrics) Handler() http.Handler                                             { return http.NotFoundHandler() }
