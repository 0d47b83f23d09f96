package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
)

func TestConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(NewConsoleWriter(&buf, true), DebugLevel, false)

	logger.Debug("Debug message", String("key", "value"))
	logger.Info("Info message", Int("count", 42))
	logger.Warn("Warning message", Bool("flag", true))
	logger.Error("Error message", ErrorField(errors.New("test error")))

	output := buf.String()
	for _, want := range []string{
		"DBG Debug message",
		"key=value",
		"INF Info message",
		"count=42",
		"WRN Warning message",
		"flag=true",
		"test error",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output:\n%s", want, output)
		}
	}
}

func TestConsoleSessionHeader(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(NewConsoleWriter(&buf, true), DebugLevel, false).
		WithFields(String("session_id", "4f1c2a7e-0000-4000-8000-000000000000"), String("state", "READY"))

	logger.Info("Request completed", String("method", "tools/call"), String("target", "echo"), Int("attempt", 1))

	output := buf.String()
	if !strings.Contains(output, "<4f1c2a7e READY> tools/call(echo): Request completed") {
		t.Errorf("missing session header: %s", output)
	}
	if !strings.Contains(output, "attempt=1") {
		t.Errorf("other fields should stay key=value: %s", output)
	}
	for _, moved := range []string{"session_id=", "state=", "method=", "target="} {
		if strings.Contains(output, moved) {
			t.Errorf("%q should only appear in the header: %s", moved, output)
		}
	}
}

func TestSessionHeader(t *testing.T) {
	tests := []struct {
		name string
		evt  map[string]interface{}
		want string
	}{
		{"none", map[string]interface{}{"message": "hi"}, "hi"},
		{"state only", map[string]interface{}{"state": "CLOSED", "message": "Session state changed"}, "<CLOSED>: Session state changed"},
		{"method without target", map[string]interface{}{"method": "tools/list"}, "tools/list"},
		{"opaque session id", map[string]interface{}{"session_id": "sess9", "method": "ping", "message": "ok"}, "<sess9> ping: ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := prepareSessionHeader(tt.evt); err != nil {
				t.Fatal(err)
			}
			if got := tt.evt["message"]; got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
			if _, ok := tt.evt["method"]; ok {
				t.Error("method should be consumed by the header")
			}
		})
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(NewConsoleWriter(&buf, true), WarnLevel, false)

	logger.Debug("Debug message")
	logger.Info("Info message")
	logger.Warn("Warning message")
	logger.Error("Error message")

	output := buf.String()
	if strings.Contains(output, "Debug message") || strings.Contains(output, "Info message") {
		t.Error("Debug and info messages should be filtered out")
	}
	if !strings.Contains(output, "Warning message") || !strings.Contains(output, "Error message") {
		t.Error("Warn and error messages should be present")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{" warning ", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Failed to parse zerolog output %q: %v", buf.String(), err)
	}
	return entry
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, InfoLevel, false)

	ctx := ContextWithRequestID(context.Background(), "test-request-123")
	ctx = ContextWithSessionID(ctx, "4f1c2a7e-0000-4000-8000-000000000000")
	logger.WithContext(ctx).Info("Test message")

	entry := decodeLine(t, &buf)
	if entry["request_id"] != "test-request-123" {
		t.Errorf("Expected request ID in output: %v", entry)
	}
	if entry["session_id"] != "4f1c2a7e-0000-4000-8000-000000000000" {
		t.Errorf("Expected session ID in output: %v", entry)
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, InfoLevel, false)

	err := mcperrors.NotConnected("call_tool", "INIT").
		InSession("s-1", "INIT").
		WithContext(&mcperrors.Context{RequestID: "req-123", Target: "echo"})

	logger.WithError(err).Error("Operation failed")

	entry := decodeLine(t, &buf)
	want := map[string]interface{}{
		"error_code":     float64(-32001),
		"error_category": "state",
		"session_id":     "s-1",
		"state":          "INIT",
		"target":         "echo",
		"request_id":     "req-123",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["remote_code"]; ok {
		t.Error("local errors have no remote payload")
	}
}

func TestWithRemoteError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, InfoLevel, false)

	err := fmt.Errorf("dispatch: %w", mcperrors.RemoteCall("tools/call", -32603, "tool crashed", nil))
	logger.WithError(err).Warn("Call failed")

	entry := decodeLine(t, &buf)
	if entry["method"] != "tools/call" || entry["error_category"] != "remote" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["remote_code"] != float64(-32603) || entry["remote_message"] != "tool crashed" {
		t.Errorf("remote payload not logged: %v", entry)
	}
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, InfoLevel, false)

	logger.Debug("hidden")
	logger.WithFields(String("component", "dispatcher")).Info("command run",
		String("tool", "echo"),
		Int("args", 1),
		Bool("is_error", false),
	)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Failed to parse zerolog output: %v", err)
	}
	if entry["level"] != "info" || entry["message"] != "command run" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["component"] != "dispatcher" || entry["tool"] != "echo" || entry["args"] != float64(1) {
		t.Errorf("unexpected fields %v", entry)
	}

	buf.Reset()
	child := logger.WithFields(String("a", "b"))
	logger.SetLevel(DebugLevel)
	child.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("derived logger should share the parent's level")
	}
	if child.GetLevel() != DebugLevel {
		t.Errorf("GetLevel() = %v", child.GetLevel())
	}
}

func TestZerologWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, InfoLevel, false)

	logger.WithError(mcperrors.NotFound("resource", "file:///x")).Warn("read failed")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["error_category"] != "not_found" || entry["level"] != "warn" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNopLogger(t *testing.T) {
	logger := Nop()
	logger.Info("ignored", String("k", "v"))
	if logger.WithFields(String("a", "b")) == nil {
		t.Error("WithFields should return a logger")
	}
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, InfoLevel, false)

	var seenSession string
	handler := HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenSession = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set(SessionHeader, "sess-9")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seenSession != "sess-9" {
		t.Errorf("session ID not propagated, got %q", seenSession)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
	if !strings.Contains(buf.String(), `"status":202`) {
		t.Errorf("expected status in log: %s", buf.String())
	}
}

func TestContextMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, DebugLevel, false)

	var gotRequestID string
	wrapped := NewContextMiddleware(logger).WrapHandler("tools/call", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		gotRequestID = RequestIDFromContext(ctx)
		return nil, errors.New("tool blew up")
	})

	_, err := wrapped(context.Background(), json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected handler error to pass through")
	}
	if gotRequestID == "" {
		t.Error("expected a generated request ID")
	}
	if !strings.Contains(buf.String(), "Request failed") || !strings.Contains(buf.String(), `"method":"tools/call"`) {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}
