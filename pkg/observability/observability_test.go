package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/protocol"
	"github.com/ndtools/mcp-client/pkg/transport"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsProvider(t *testing.T) {
	p, err := NewMetricsProvider(MetricsConfig{})
	require.NoError(t, err)

	ctx := context.Background()
	p.RecordToolCall(ctx, "echo", OutcomeOK, 10*time.Millisecond)
	p.RecordToolCall(ctx, "echo", OutcomeToolError, time.Millisecond)
	p.RecordToolCall(ctx, "echo", OutcomeToolError, time.Millisecond)
	p.RecordRequest(ctx, protocol.MethodListTools, "success", time.Millisecond)
	p.RecordSessionState(ctx, "INIT")
	p.RecordSessionState(ctx, "READY")
	p.RecordCommand(ctx, "tool", OutcomeOK)

	out := scrape(t, p.Handler())
	for _, want := range []string{
		`mcp_client_tool_calls_total{outcome="tool_error",tool="echo"} 2`,
		`mcp_client_tool_calls_total{outcome="ok",tool="echo"} 1`,
		`mcp_client_requests_total{method="tools/list",status="success"} 1`,
		`mcp_client_session_state{state="READY"} 1`,
		`mcp_client_session_state{state="INIT"} 0`,
		`mcp_client_dispatcher_commands_total{kind="tool",outcome="ok"} 1`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestMetricsProvidersAreIndependent(t *testing.T) {
	a, err := NewMetricsProvider(MetricsConfig{})
	require.NoError(t, err)
	b, err := NewMetricsProvider(MetricsConfig{})
	require.NoError(t, err)

	a.RecordCommand(context.Background(), "list", OutcomeOK)
	assert.NotContains(t, scrape(t, b.Handler()), `kind="list"`)
}

func TestMetricsServer(t *testing.T) {
	p, err := NewMetricsProvider(MetricsConfig{ServiceName: "mcp-client"})
	require.NoError(t, err)
	p.RecordCommand(context.Background(), "quit", OutcomeOK)

	srv := NewMetricsServer("127.0.0.1:0", p)
	require.NoError(t, srv.Start())
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), `service="mcp-client"`))
}

func TestParseExporterType(t *testing.T) {
	for in, want := range map[string]ExporterType{
		"":          ExporterTypeNone,
		"none":      ExporterTypeNone,
		"grpc":      ExporterTypeOTLPGRPC,
		"otlp-http": ExporterTypeOTLPHTTP,
	} {
		got, err := ParseExporterType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseExporterType("jaeger")
	assert.Error(t, err)
}

type stubTransport struct {
	transport.Transport
	resp *protocol.Response
	err  error
}

func (s *stubTransport) SendRequest(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	return s.resp, s.err
}

func TestMiddleware(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer, err := NewTracingProvider(TracingConfig{
		ExporterType:   ExporterTypeNone,
		SpanProcessors: []sdktrace.SpanProcessor{recorder},
	})
	require.NoError(t, err)
	defer tracer.Shutdown(context.Background())

	metrics, err := NewMetricsProvider(MetricsConfig{})
	require.NoError(t, err)

	mw := NewMiddleware(MiddlewareConfig{Metrics: metrics, Tracer: tracer})
	ctx := context.Background()

	ok, _ := protocol.NewResponse("req_1", map[string]string{})
	_, err = mw.Wrap(&stubTransport{resp: ok}).SendRequest(ctx, protocol.MethodListTools, nil)
	require.NoError(t, err)

	remote := protocol.NewErrorResponse("req_2", protocol.ResourceNotFound, "unknown resource", nil)
	_, err = mw.Wrap(&stubTransport{resp: remote}).SendRequest(ctx, protocol.MethodReadResource, nil)
	require.NoError(t, err)

	lost := mcperrors.ConnectionLost("stdio", errors.New("EOF"))
	_, err = mw.Wrap(&stubTransport{err: lost}).SendRequest(ctx, protocol.MethodCallTool, nil)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "mcp.tools/list", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, codes.Error, spans[2].Status().Code)

	out := scrape(t, metrics.Handler())
	assert.Contains(t, out, `mcp_client_requests_total{method="resources/read",status="not_found"} 1`)
	assert.Contains(t, out, `mcp_client_requests_total{method="tools/call",status="transport"} 1`)
	assert.Contains(t, out, `mcp_client_requests_total{method="tools/list",status="success"} 1`)
}
