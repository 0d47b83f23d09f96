package logging

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// SessionHeader carries the MCP session ID on HTTP requests
const SessionHeader = "Mcp-Session-Id"

// HTTPMiddleware provides HTTP request logging
func HTTPMiddleware(logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = NewRequestID()
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := ContextWithRequestID(r.Context(), requestID)
			if sessionID := r.Header.Get(SessionHeader); sessionID != "" {
				ctx = ContextWithSessionID(ctx, sessionID)
			}
			r = r.WithContext(ctx)

			reqLogger := logger.WithContext(ctx).WithFields(
				String("http_method", r.Method),
				String("path", r.URL.Path),
				String("remote_addr", r.RemoteAddr),
			)
			reqLogger.Debug("HTTP request started")

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rw, r)

			reqLogger.Info("HTTP request completed",
				Int("status", rw.statusCode),
				Int("bytes", rw.bytesWritten),
				Duration("duration", time.Since(start)),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture response details
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.bytesWritten += n
	return n, err
}

// HandlerFunc is the shape of a JSON-RPC method handler
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// ContextMiddleware adds request context and timing logs to method handlers
type ContextMiddleware struct {
	logger Logger
}

// NewContextMiddleware creates a new context middleware
func NewContextMiddleware(logger Logger) *ContextMiddleware {
	return &ContextMiddleware{logger: logger}
}

// WrapHandler wraps a handler function with context logging
func (m *ContextMiddleware) WrapHandler(method string, handler HandlerFunc) HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		requestID := RequestIDFromContext(ctx)
		if requestID == "" {
			requestID = NewRequestID()
			ctx = ContextWithRequestID(ctx, requestID)
		}

		logger := m.logger.WithContext(ctx).WithFields(String("method", method))
		logger.Debug("Handling request", Int("params_bytes", len(params)))

		start := time.Now()
		result, err := handler(ctx, params)
		duration := time.Since(start)

		if err != nil {
			logger.WithError(err).Warn("Request failed", Duration("duration", duration))
		} else {
			logger.Debug("Request completed", Duration("duration", duration))
		}
		return result, err
	}
}
