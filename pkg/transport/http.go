package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tmaxmax/go-sse"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/protocol"
)

const (
	// SessionHeader carries the session ID assigned by the peer
	SessionHeader = "Mcp-Session-Id"

	contentTypeJSON        = "application/json"
	contentTypeEventStream = "text/event-stream"
)

// HTTPTransport posts each JSON-RPC message to a single endpoint. The peer
// answers a request either with a JSON body or with an event stream whose
// message events carry the response, plus any requests or notifications
// the peer interleaves.
type HTTPTransport struct {
	*BaseTransport
	endpoint     string
	client       *http.Client
	headers      map[string]string
	maxEventSize int
	logger       logging.Logger
	tracer       TraceInjector

	mu        sync.RWMutex
	sessionID string
	done      chan struct{}
	stopOnce  sync.Once
}

// HTTPOption configures an HTTPTransport
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithHTTPHeaders adds headers sent with every request
func WithHTTPHeaders(headers map[string]string) HTTPOption {
	return func(t *HTTPTransport) {
		for k, v := range headers {
			t.headers[k] = v
		}
	}
}

// WithHTTPLogger sets the transport logger
func WithHTTPLogger(logger logging.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// TraceInjector writes the trace context carried by ctx into outgoing
// request headers. *observability.TracingProvider implements it.
type TraceInjector interface {
	Inject(ctx context.Context, carrier propagation.TextMapCarrier)
}

// WithTraceInjector sets how trace context reaches the peer. The default is
// the global otel propagator.
func WithTraceInjector(tracer TraceInjector) HTTPOption {
	return func(t *HTTPTransport) {
		if tracer != nil {
			t.tracer = tracer
		}
	}
}

// WithMaxEventSize bounds a single SSE event; zero keeps the library default
func WithMaxEventSize(n int) HTTPOption {
	return func(t *HTTPTransport) {
		t.maxEventSize = n
	}
}

// NewHTTPTransport creates a transport for endpoint
func NewHTTPTransport(endpoint string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		BaseTransport: NewBaseTransport(),
		endpoint:      endpoint,
		client:        &http.Client{Timeout: 60 * time.Second},
		headers:       make(map[string]string),
		logger:        logging.Nop(),
		tracer:        otel.GetTextMapPropagator(),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.WithFields(logging.String("component", "http_transport"), logging.String("endpoint", endpoint))
	t.SetLogger(t.logger)
	return t
}

// Initialize validates the endpoint. The first request performs the actual
// connection.
func (t *HTTPTransport) Initialize(ctx context.Context) error {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return mcperrors.ConnectionFailed("http", t.endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return mcperrors.ConnectionFailed("http", t.endpoint, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return mcperrors.ConnectionFailed("http", t.endpoint, errors.New("missing host"))
	}
	return nil
}

// Start blocks until Stop or cancellation; responses arrive on the POST
// that carried each request.
func (t *HTTPTransport) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return nil
	}
}

// Stop ends the peer session, if one was assigned, and fails pending requests
func (t *HTTPTransport) Stop(ctx context.Context) error {
	t.stopOnce.Do(func() {
		close(t.done)
		t.Cleanup()

		sessionID := t.SessionID()
		if sessionID == "" {
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.endpoint, nil)
		if err != nil {
			return
		}
		req.Header.Set(SessionHeader, sessionID)
		resp, err := t.client.Do(req)
		if err != nil {
			t.logger.Debug("Session delete failed", logging.ErrorField(err))
			return
		}
		_ = resp.Body.Close()
	})
	return nil
}

// SessionID returns the session ID assigned by the peer, if any
func (t *HTTPTransport) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

func (t *HTTPTransport) closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *HTTPTransport) post(ctx context.Context, body []byte) (*http.Response, error) {
	if t.closed() {
		return nil, mcperrors.ConnectionLost("http", ErrTransportClosed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, mcperrors.ConnectionFailed("http", t.endpoint, err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON+", "+contentTypeEventStream)
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if id := t.SessionID(); id != "" {
		req.Header.Set(SessionHeader, id)
	}
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	t.tracer.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, mcperrors.OperationCancelled("http post", ctx.Err())
		}
		return nil, mcperrors.ConnectionFailed("http", t.endpoint, err)
	}

	if id := resp.Header.Get(SessionHeader); id != "" {
		t.mu.Lock()
		t.sessionID = id
		t.mu.Unlock()
	}
	return resp, nil
}

// SendRequest posts a request and decodes the matching response from the
// reply body
func (t *HTTPTransport) SendRequest(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	id := t.GenerateID()

	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, mcperrors.WrapError(err, mcperrors.CodeInvalidParams, "failed to encode params",
			mcperrors.CategoryValidation, mcperrors.SeverityError)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, mcperrors.WrapError(err, mcperrors.CodeInvalidParams, "failed to encode request",
			mcperrors.CategoryValidation, mcperrors.SeverityError)
	}

	resp, err := t.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return t.errorResponse(resp, id)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == contentTypeEventStream {
		return t.readEventStream(ctx, resp.Body, id)
	}

	var out protocol.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, mcperrors.DecodeFailed(method, err)
	}
	if fmt.Sprintf("%v", out.ID) != id {
		return nil, mcperrors.ProtocolError(fmt.Sprintf("response id %v does not match request %s", out.ID, id))
	}
	return &out, nil
}

// errorResponse turns a non-2xx reply into either the JSON-RPC error it
// carries or a connection-lost error.
func (t *HTTPTransport) errorResponse(resp *http.Response, id string) (*protocol.Response, error) {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var out protocol.Response
	if err := json.Unmarshal(data, &out); err == nil && out.Error != nil {
		if out.ID == nil {
			out.ID = id
		}
		return &out, nil
	}
	return nil, mcperrors.ConnectionLost("http", fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
}

func (t *HTTPTransport) readEventStream(ctx context.Context, body io.Reader, id string) (*protocol.Response, error) {
	var config *sse.ReadConfig
	if t.maxEventSize > 0 {
		config = &sse.ReadConfig{MaxEventSize: t.maxEventSize}
	}

	for ev, err := range sse.Read(body, config) {
		if err != nil {
			if ctx.Err() != nil {
				return nil, mcperrors.OperationCancelled("read event stream", ctx.Err())
			}
			return nil, mcperrors.ConnectionLost("http", err)
		}
		if ev.Type != "" && ev.Type != "message" {
			t.logger.Debug("Ignoring event", logging.String("type", ev.Type))
			continue
		}

		data := []byte(ev.Data)
		if protocol.IsResponse(data) {
			var resp protocol.Response
			if err := json.Unmarshal(data, &resp); err != nil {
				return nil, mcperrors.DecodeFailed("event stream", err)
			}
			if fmt.Sprintf("%v", resp.ID) == id {
				return &resp, nil
			}
		}
		t.dispatchMessage(ctx, data, t.reply)
	}

	return nil, mcperrors.ProtocolError("event stream ended without a response to " + id)
}

// reply posts a response to a request the peer sent over an event stream
func (t *HTTPTransport) reply(data []byte) error {
	resp, err := t.post(context.Background(), data)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// SendNotification posts a one-way message; the peer answers 202 or 204
func (t *HTTPTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	notification, err := protocol.NewNotification(method, params)
	if err != nil {
		return mcperrors.WrapError(err, mcperrors.CodeInvalidParams, "failed to encode params",
			mcperrors.CategoryValidation, mcperrors.SeverityError)
	}
	body, err := json.Marshal(notification)
	if err != nil {
		return mcperrors.WrapError(err, mcperrors.CodeInvalidParams, "failed to encode notification",
			mcperrors.CategoryValidation, mcperrors.SeverityError)
	}

	resp, err := t.post(ctx, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return mcperrors.ConnectionLost("http", fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}
	return nil
}
