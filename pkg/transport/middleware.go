package transport

import (
	"context"
	"time"

	"github.com/ndtools/mcp-client/pkg/protocol"
)

// Middleware represents a transport middleware that can wrap a transport
// to add additional functionality like timeouts or observability.
type Middleware interface {
	// Wrap wraps the given transport with middleware functionality
	Wrap(transport Transport) Transport
}

// MiddlewareFunc is an adapter to allow the use of ordinary functions as middleware
type MiddlewareFunc func(Transport) Transport

// Wrap implements the Middleware interface
func (f MiddlewareFunc) Wrap(t Transport) Transport {
	return f(t)
}

// ChainMiddleware chains multiple middleware together
func ChainMiddleware(middleware ...Middleware) Middleware {
	return MiddlewareFunc(func(transport Transport) Transport {
		// Apply middleware in reverse order so the first middleware is the outermost
		for i := len(middleware) - 1; i >= 0; i-- {
			transport = middleware[i].Wrap(transport)
		}
		return transport
	})
}

// Unwrap returns the innermost transport below any middleware
func Unwrap(t Transport) Transport {
	for {
		m, ok := t.(interface{ Next() Transport })
		if !ok {
			return t
		}
		t = m.Next()
	}
}

// middlewareTransport is a base type for middleware implementations
type middlewareTransport struct {
	next Transport
}

// Next returns the wrapped transport
func (m *middlewareTransport) Next() Transport {
	return m.next
}

// Initialize delegates to the wrapped transport
func (m *middlewareTransport) Initialize(ctx context.Context) error {
	return m.next.Initialize(ctx)
}

// SendRequest delegates to the wrapped transport
func (m *middlewareTransport) SendRequest(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	return m.next.SendRequest(ctx, method, params)
}

// SendNotification delegates to the wrapped transport
func (m *middlewareTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	return m.next.SendNotification(ctx, method, params)
}

// Start delegates to the wrapped transport
func (m *middlewareTransport) Start(ctx context.Context) error {
	return m.next.Start(ctx)
}

// Stop delegates to the wrapped transport
func (m *middlewareTransport) Stop(ctx context.Context) error {
	return m.next.Stop(ctx)
}

// RegisterRequestHandler delegates to the wrapped transport
func (m *middlewareTransport) RegisterRequestHandler(method string, handler RequestHandler) {
	m.next.RegisterRequestHandler(method, handler)
}

// RegisterNotificationHandler delegates to the wrapped transport
func (m *middlewareTransport) RegisterNotificationHandler(method string, handler NotificationHandler) {
	m.next.RegisterNotificationHandler(method, handler)
}

// TimeoutMiddleware bounds every request that arrives without a deadline
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return MiddlewareFunc(func(next Transport) Transport {
		return &timeoutTransport{
			middlewareTransport: middlewareTransport{next: next},
			timeout:             timeout,
		}
	})
}

type timeoutTransport struct {
	middlewareTransport
	timeout time.Duration
}

func (t *timeoutTransport) SendRequest(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	if _, ok := ctx.Deadline(); !ok && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.next.SendRequest(ctx, method, params)
}
