package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/observability"
	"github.com/ndtools/mcp-client/pkg/protocol"
	"github.com/ndtools/mcp-client/pkg/transport"
)

const maxBodySize = 16 << 20

// HTTPHandler serves a Server over HTTP. Each POST carries one JSON-RPC
// message. A request is answered in the response body, as JSON or, when
// streaming is enabled and the client accepts it, as an event stream with
// a single message event.
type HTTPHandler struct {
	base           *transport.BaseTransport
	logger         logging.Logger
	eventStream    bool
	allowedOrigins []string
	tracer         *observability.TracingProvider

	mu       sync.Mutex
	sessions map[string]time.Time
}

// HTTPOption configures an HTTPHandler
type HTTPOption func(*HTTPHandler)

// WithEventStream answers requests with an event stream when the client
// accepts one
func WithEventStream(enabled bool) HTTPOption {
	return func(h *HTTPHandler) {
		h.eventStream = enabled
	}
}

// WithAllowedOrigins lists browser origins allowed besides localhost
func WithAllowedOrigins(origins ...string) HTTPOption {
	return func(h *HTTPHandler) {
		h.allowedOrigins = append(h.allowedOrigins, origins...)
	}
}

// WithTracing continues the trace context a client sends and records a
// server span per request
func WithTracing(tracer *observability.TracingProvider) HTTPOption {
	return func(h *HTTPHandler) {
		h.tracer = tracer
	}
}

// Handler returns an HTTP handler for the server
func (s *Server) Handler(opts ...HTTPOption) *HTTPHandler {
	h := &HTTPHandler{
		base:     transport.NewBaseTransport(),
		logger:   s.logger.WithFields(logging.String("component", "http_handler")),
		sessions: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.base.SetLogger(h.logger)
	s.Register(h.base)
	return h
}

// SessionCount returns the number of open sessions
func (h *HTTPHandler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// ServeHTTP implements http.Handler
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.originAllowed(r.Header.Get("Origin")) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, "+transport.SessionHeader)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "POST, OPTIONS, DELETE")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, fmt.Sprintf("Error reading request body: %v", err), http.StatusBadRequest)
		return
	}

	switch {
	case protocol.IsRequest(body):
		var req protocol.Request
		if err := json.Unmarshal(body, &req); err != nil {
			h.writeJSON(w, http.StatusBadRequest, protocol.NewErrorResponse(nil, protocol.ParseError, "Invalid JSON-RPC request", nil))
			return
		}
		if !h.admit(w, r, req.Method) {
			return
		}

		logger := h.logger.WithFields(logging.String("method", req.Method))
		if id := r.Header.Get("X-Request-ID"); id != "" {
			logger = logger.WithFields(logging.String("request_id", id))
		}
		logger.Debug("Handling request")

		ctx := r.Context()
		if h.tracer != nil {
			ctx = h.tracer.Extract(ctx, propagation.HeaderCarrier(r.Header))
			var span trace.Span
			ctx, span = h.tracer.StartMethodSpan(ctx, req.Method, trace.SpanKindServer)
			defer span.End()
			if id := w.Header().Get(transport.SessionHeader); id != "" && req.Method == protocol.MethodInitialize {
				h.tracer.AddEvent(ctx, "mcp.session.opened", attribute.String("mcp.session_id", id))
			} else if id := r.Header.Get(transport.SessionHeader); id != "" {
				h.tracer.SetAttributes(ctx, attribute.String("mcp.session_id", id))
			}
		}

		resp := h.base.HandleRequest(ctx, &req)
		if resp != nil && resp.Error != nil && h.tracer != nil {
			h.tracer.RecordError(ctx, resp.Error,
				trace.WithAttributes(attribute.Int("rpc.jsonrpc.error_code", int(resp.Error.Code))))
		}
		if h.eventStream && acceptsEventStream(r) {
			h.writeEvent(w, r, resp)
			return
		}
		h.writeJSON(w, http.StatusOK, resp)

	case protocol.IsNotification(body):
		var notif protocol.Notification
		if err := json.Unmarshal(body, &notif); err != nil {
			http.Error(w, "Invalid JSON-RPC notification", http.StatusBadRequest)
			return
		}
		if !h.admit(w, r, notif.Method) {
			return
		}
		if err := h.base.HandleNotification(r.Context(), &notif); err != nil {
			h.logger.Warn("Notification failed", logging.String("method", notif.Method), logging.ErrorField(err))
		}
		w.WriteHeader(http.StatusAccepted)

	case protocol.IsResponse(body):
		w.WriteHeader(http.StatusAccepted)

	default:
		h.writeJSON(w, http.StatusBadRequest, protocol.NewErrorResponse(nil, protocol.ParseError, "Invalid JSON-RPC message", nil))
	}
}

// admit checks the session header. An initialize request opens a new
// session; any other message naming an unknown session is refused.
func (h *HTTPHandler) admit(w http.ResponseWriter, r *http.Request, method string) bool {
	if method == protocol.MethodInitialize {
		id := uuid.NewString()
		h.mu.Lock()
		h.sessions[id] = time.Now()
		h.mu.Unlock()
		w.Header().Set(transport.SessionHeader, id)
		h.logger.Debug("Session opened", logging.String("session_id", id))
		return true
	}

	id := r.Header.Get(transport.SessionHeader)
	if id == "" {
		return true
	}
	h.mu.Lock()
	_, ok := h.sessions[id]
	if ok {
		h.sessions[id] = time.Now()
	}
	h.mu.Unlock()
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return false
	}
	w.Header().Set(transport.SessionHeader, id)
	return true
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(transport.SessionHeader)
	if id == "" {
		http.Error(w, "Missing "+transport.SessionHeader+" header", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	_, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	h.logger.Debug("Session closed", logging.String("session_id", id))
	w.WriteHeader(http.StatusOK)
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, resp *protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error marshaling response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("Response not written", logging.ErrorField(err))
	}
}

func (h *HTTPHandler) writeEvent(w http.ResponseWriter, r *http.Request, resp *protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error marshaling response: %v", err), http.StatusInternalServerError)
		return
	}

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		h.logger.Error("Failed to upgrade to event stream", logging.ErrorField(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	msg := &sse.Message{Type: sse.Type("message")}
	msg.AppendData(string(data))
	if err := sess.Send(msg); err != nil {
		h.logger.Debug("Event not sent", logging.ErrorField(err))
		return
	}
	if err := sess.Flush(); err != nil {
		h.logger.Debug("Event stream not flushed", logging.ErrorField(err))
	}
}

func acceptsEventStream(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		if mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part)); err == nil && mediaType == "text/event-stream" {
			return true
		}
	}
	return false
}

// originAllowed accepts requests without an Origin, from localhost, or
// from a configured origin
func (h *HTTPHandler) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
