package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/ndtools/mcp-client/pkg/client"
	"github.com/ndtools/mcp-client/pkg/observability"
	"github.com/ndtools/mcp-client/pkg/protocol"
	"github.com/ndtools/mcp-client/pkg/transport"
)

func TestHandlerWithClient(t *testing.T) {
	for _, stream := range []bool{false, true} {
		name := "json"
		if stream {
			name = "event stream"
		}
		t.Run(name, func(t *testing.T) {
			h := newTestServer().Handler(WithEventStream(stream))
			srv := httptest.NewServer(h)
			defer srv.Close()

			tr := transport.NewHTTPTransport(srv.URL)
			err := client.Run(context.Background(), tr, func(ctx context.Context, c *client.Client) error {
				assert.NotEmpty(t, tr.SessionID())
				assert.Equal(t, 1, h.SessionCount())

				tools, err := c.ListTools(ctx)
				require.NoError(t, err)
				assert.Len(t, tools, 4)

				result, err := c.CallTool(ctx, "echo", map[string]interface{}{"message": "over http"})
				require.NoError(t, err)
				assert.Equal(t, "over http", protocol.JoinText(result.Content))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, 0, h.SessionCount(), "disconnect should close the session")
		})
	}
}

func recordingTracer(t *testing.T) (*observability.TracingProvider, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tracer, err := observability.NewTracingProvider(observability.TracingConfig{
		ExporterType:   observability.ExporterTypeNone,
		SpanProcessors: []sdktrace.SpanProcessor{recorder},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })
	return tracer, recorder
}

func TestHandlerTracePropagation(t *testing.T) {
	serverTracer, served := recordingTracer(t)
	clientTracer, sent := recordingTracer(t)

	srv := httptest.NewServer(newTestServer().Handler(WithTracing(serverTracer)))
	defer srv.Close()

	tr := transport.NewHTTPTransport(srv.URL, transport.WithTraceInjector(clientTracer))
	err := client.Run(context.Background(), tr, func(ctx context.Context, c *client.Client) error {
		_, err := c.CallTool(ctx, "nope", nil)
		assert.Error(t, err)
		return nil
	}, client.WithTracer(clientTracer))
	require.NoError(t, err)

	clientSpans := map[trace.SpanID]bool{}
	for _, s := range sent.Ended() {
		clientSpans[s.SpanContext().SpanID()] = true
	}

	spans := served.Ended()
	require.NotEmpty(t, spans)
	events := map[string]bool{}
	for _, s := range spans {
		assert.Equal(t, trace.SpanKindServer, s.SpanKind())
		assert.True(t, s.Parent().IsRemote(), "%s should continue the caller's trace", s.Name())
		assert.True(t, clientSpans[s.Parent().SpanID()], "%s parent is not a client span", s.Name())
		for _, e := range s.Events() {
			events[s.Name()+" "+e.Name] = true
		}
	}
	assert.True(t, events["mcp.initialize mcp.session.opened"], "events: %v", events)
	assert.True(t, events["mcp.tools/call exception"], "events: %v", events)
}

func post(t *testing.T, h http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerSessions(t *testing.T) {
	h := newTestServer().Handler()

	rec := post(t, h, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := rec.Header().Get(transport.SessionHeader)
	require.NotEmpty(t, session)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = post(t, h, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, map[string]string{transport.SessionHeader: session})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = post(t, h, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, map[string]string{transport.SessionHeader: "bogus"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(t, h, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "requests without a session header are served")

	del := httptest.NewRequest(http.MethodDelete, "/", nil)
	del.Header.Set(transport.SessionHeader, session)
	delRec := httptest.NewRecorder()
	h.ServeHTTP(delRec, del)
	assert.Equal(t, http.StatusOK, delRec.Code)

	delRec = httptest.NewRecorder()
	h.ServeHTTP(delRec, del)
	assert.Equal(t, http.StatusNotFound, delRec.Code)
}

func TestHandlerRejects(t *testing.T) {
	h := newTestServer().Handler(WithAllowedOrigins("https://nd.example.com"))

	rec := post(t, h, `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h, `{"jsonrpc":"2.0","id":"x","result":{}}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for origin, want := range map[string]int{
		"https://evil.example.com": http.StatusForbidden,
		"https://nd.example.com":   http.StatusOK,
		"http://localhost:3000":    http.StatusOK,
	} {
		rec = post(t, h, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, map[string]string{"Origin": origin})
		assert.Equal(t, want, rec.Code, origin)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerEventStream(t *testing.T) {
	h := newTestServer().Handler(WithEventStream(true))

	rec := post(t, h, `{"jsonrpc":"2.0","id":7,"method":"ping"}`, map[string]string{"Accept": "application/json, text/event-stream"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/event-stream"))
	assert.Contains(t, rec.Body.String(), "event: message")
	assert.Contains(t, rec.Body.String(), `"id":7`)

	rec = post(t, h, `{"jsonrpc":"2.0","id":8,"method":"ping"}`, map[string]string{"Accept": "application/json"})
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
