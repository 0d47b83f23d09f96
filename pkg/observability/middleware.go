package observability

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/protocol"
	"github.com/ndtools/mcp-client/pkg/transport"
)

// MiddlewareConfig configures the metrics and tracing middleware
type MiddlewareConfig struct {
	Metrics MetricsProvider
	Tracer  *TracingProvider

	CaptureRequestPayload bool // Capture request payloads in spans
}

// Middleware records a Prometheus observation and an OpenTelemetry span
// for every request that passes through the wrapped transport.
type Middleware struct {
	config MiddlewareConfig
}

// NewMiddleware creates the middleware; nil providers are skipped
func NewMiddleware(config MiddlewareConfig) *Middleware {
	if config.Metrics == nil {
		config.Metrics = NopMetrics{}
	}
	return &Middleware{config: config}
}

// Wrap implements transport.Middleware
func (m *Middleware) Wrap(next transport.Transport) transport.Transport {
	return &observedTransport{Transport: next, middleware: m}
}

type observedTransport struct {
	transport.Transport
	middleware *Middleware
}

// Next returns the wrapped transport
func (ot *observedTransport) Next() transport.Transport {
	return ot.Transport
}

func (ot *observedTransport) SendRequest(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	cfg := ot.middleware.config

	var span trace.Span
	if cfg.Tracer != nil {
		ctx, span = cfg.Tracer.StartMethodSpan(ctx, method, trace.SpanKindClient)
		defer span.End()

		span.SetAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", method),
		)
		if cfg.CaptureRequestPayload && params != nil {
			if payload, err := json.Marshal(params); err == nil {
				span.SetAttributes(attribute.String("rpc.request.payload", string(payload)))
			}
		}
	}

	start := time.Now()
	resp, err := ot.Transport.SendRequest(ctx, method, params)
	duration := time.Since(start)

	status := requestStatus(resp, err)
	cfg.Metrics.RecordRequest(ctx, method, status, duration)

	if span != nil {
		span.SetAttributes(attribute.String("mcp.status", status))
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case resp != nil && resp.Error != nil:
			span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", int(resp.Error.Code)))
			span.SetStatus(codes.Error, resp.Error.Message)
		default:
			span.SetStatus(codes.Ok, "")
		}
	}

	return resp, err
}

func (ot *observedTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	start := time.Now()
	err := ot.Transport.SendNotification(ctx, method, params)
	ot.middleware.config.Metrics.RecordRequest(ctx, method, requestStatus(nil, err), time.Since(start))
	return err
}

// requestStatus is the status label for one request
func requestStatus(resp *protocol.Response, err error) string {
	if err != nil {
		return errorType(err)
	}
	if resp != nil && resp.Error != nil {
		return jsonrpcErrorType(resp.Error.Code)
	}
	return "success"
}

// errorType categorizes transport errors for metrics
func errorType(err error) string {
	if mcpErr, ok := mcperrors.AsMCPError(err); ok {
		return string(mcpErr.Category())
	}
	return "unknown"
}

func jsonrpcErrorType(code protocol.ErrorCode) string {
	switch {
	case code == protocol.ParseError:
		return "parse_error"
	case code == protocol.InvalidRequest:
		return "invalid_request"
	case code == protocol.MethodNotFound:
		return "method_not_found"
	case code == protocol.InvalidParams:
		return "invalid_params"
	case code == protocol.InternalError:
		return "internal_error"
	case code == protocol.ResourceNotFound:
		return "not_found"
	case code >= -32099 && code <= -32000:
		return "server_error"
	default:
		return "remote_error"
	}
}
