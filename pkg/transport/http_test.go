package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmaxmax/go-sse"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/protocol"
)

// mockHTTPPeer answers JSON-RPC POSTs either with JSON or with an event
// stream and records what it saw.
type mockHTTPPeer struct {
	mu         sync.Mutex
	stream     bool
	sessionIDs []string
	methods    []string
	deletes    int
	status     int
}

func (m *mockHTTPPeer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.sessionIDs = append(m.sessionIDs, r.Header.Get(SessionHeader))
	stream, status := m.stream, m.status
	if r.Method == http.MethodDelete {
		m.deletes++
	}
	m.mu.Unlock()

	if r.Method == http.MethodDelete {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	body, _ := io.ReadAll(r.Body)
	w.Header().Set(SessionHeader, "session-abc")

	if protocol.IsNotification(body) {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	var req protocol.Request
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.methods = append(m.methods, req.Method)
	m.mu.Unlock()

	var resp *protocol.Response
	if req.Method == "fail" {
		resp = protocol.NewErrorResponse(req.ID, protocol.InternalError, "tool crashed", nil)
	} else {
		resp, _ = protocol.NewResponse(req.ID, map[string]string{"method": req.Method})
	}
	out, _ := json.Marshal(resp)

	if !stream {
		w.Header().Set("Content-Type", contentTypeJSON)
		_, _ = w.Write(out)
		return
	}

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	progress, _ := protocol.NewNotification("notifications/progress", map[string]int{"progress": 50})
	progressJSON, _ := json.Marshal(progress)

	for _, data := range []string{string(progressJSON), string(out)} {
		msg := &sse.Message{Type: sse.Type("message")}
		msg.AppendData(data)
		if err := sess.Send(msg); err != nil {
			return
		}
	}
	_ = sess.Flush()
}

func TestHTTPTransport_JSONResponse(t *testing.T) {
	peer := &mockHTTPPeer{}
	srv := httptest.NewServer(peer)
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL)
	require.NoError(t, tr.Initialize(context.Background()))

	resp, err := tr.SendRequest(context.Background(), protocol.MethodListTools, nil)
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"method":"tools/list"}`, string(resp.Result))
	assert.Equal(t, "session-abc", tr.SessionID())

	resp, err = tr.SendRequest(context.Background(), "fail", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "tool crashed", resp.Error.Message)

	require.NoError(t, tr.SendNotification(context.Background(), protocol.MethodInitialized, nil))
	require.NoError(t, tr.Stop(context.Background()))

	peer.mu.Lock()
	defer peer.mu.Unlock()
	assert.Equal(t, []string{"", "session-abc", "session-abc", "session-abc"}, peer.sessionIDs)
	assert.Equal(t, 1, peer.deletes, "Stop should end the peer session")
}

func TestHTTPTransport_TraceContext(t *testing.T) {
	seen := make(chan string, 1)
	peer := &mockHTTPPeer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get("traceparent")
		peer.ServeHTTP(w, r)
	}))
	defer srv.Close()

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	tr := NewHTTPTransport(srv.URL, WithTraceInjector(propagation.TraceContext{}))
	require.NoError(t, tr.Initialize(ctx))
	_, err := tr.SendRequest(ctx, protocol.MethodPing, nil)
	require.NoError(t, err)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", <-seen)
}

func TestHTTPTransport_EventStreamResponse(t *testing.T) {
	peer := &mockHTTPPeer{stream: true}
	srv := httptest.NewServer(peer)
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL)
	require.NoError(t, tr.Initialize(context.Background()))

	var mu sync.Mutex
	var progress []json.RawMessage
	tr.RegisterNotificationHandler("notifications/progress", func(ctx context.Context, params json.RawMessage) error {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, params)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := tr.SendRequest(ctx, protocol.MethodCallTool, map[string]interface{}{"name": "echo"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"tools/call"}`, string(resp.Result))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, progress, 1, "interleaved notifications should reach their handler")
	assert.JSONEq(t, `{"progress":50}`, string(progress[0]))
}

func TestHTTPTransport_Failures(t *testing.T) {
	t.Run("bad scheme", func(t *testing.T) {
		err := NewHTTPTransport("ftp://example.com/mcp").Initialize(context.Background())
		assert.True(t, mcperrors.IsConnectionError(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		endpoint := srv.URL
		srv.Close()

		tr := NewHTTPTransport(endpoint)
		require.NoError(t, tr.Initialize(context.Background()))
		_, err := tr.SendRequest(context.Background(), protocol.MethodInitialize, nil)
		require.Error(t, err)
		assert.True(t, mcperrors.IsConnectionError(err))
		assert.True(t, mcperrors.IsCode(err, mcperrors.CodeConnectionFailed))
	})

	t.Run("server error without body", func(t *testing.T) {
		srv := httptest.NewServer(&mockHTTPPeer{status: http.StatusBadGateway})
		defer srv.Close()

		tr := NewHTTPTransport(srv.URL)
		_, err := tr.SendRequest(context.Background(), protocol.MethodListTools, nil)
		require.Error(t, err)
		assert.True(t, mcperrors.IsConnectionError(err))
	})

	t.Run("after stop", func(t *testing.T) {
		srv := httptest.NewServer(&mockHTTPPeer{})
		defer srv.Close()

		tr := NewHTTPTransport(srv.URL)
		require.NoError(t, tr.Stop(context.Background()))
		_, err := tr.SendRequest(context.Background(), protocol.MethodPing, nil)
		assert.True(t, mcperrors.IsConnectionError(err))
	})
}

func TestHTTPTransport_StartReturnsOnStop(t *testing.T) {
	tr := NewHTTPTransport("http://127.0.0.1:0/mcp")
	done := make(chan error, 1)
	go func() { done <- tr.Start(context.Background()) }()

	require.NoError(t, tr.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
