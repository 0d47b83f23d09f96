package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndtools/mcp-client/pkg/auth"
	"github.com/ndtools/mcp-client/pkg/config"
	"github.com/ndtools/mcp-client/pkg/dispatcher"
	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/protocol"
	"github.com/ndtools/mcp-client/pkg/server"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 0, exitCode(fmt.Errorf("loop: %w", context.Canceled)))
	assert.Equal(t, 1, exitCode(mcperrors.ConnectionFailed("command", "python", fmt.Errorf("exec: not found"))))
	assert.Equal(t, 1, exitCode(fmt.Errorf("anything else")))
	assert.Equal(t, 2, exitCode(dispatcher.ErrToolFailed))
}

func testPeer(t *testing.T) string {
	t.Helper()
	s := server.New(server.WithName("cli-peer"))
	s.AddTool(protocol.Tool{Name: "echo"}, func(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
		return protocol.TextResult(fmt.Sprint(args["message"])), nil
	})
	s.AddTool(protocol.Tool{Name: "broken"}, func(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
		return nil, fmt.Errorf("broken on purpose")
	})
	s.AddResource(protocol.Resource{URI: "file:///notes.md", Name: "notes"}, func(ctx context.Context, uri string) ([]protocol.ResourceContents, error) {
		return []protocol.ResourceContents{{URI: uri, MimeType: "text/markdown", Text: "# Notes"}}, nil
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestAPIKey(t *testing.T) {
	keys, err := auth.NewAPIKeys("cli:s3cret")
	require.NoError(t, err)
	s := server.New()
	s.AddTool(protocol.Tool{Name: "whoami"}, func(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
		return protocol.TextResult("ok"), nil
	})
	srv := httptest.NewServer(auth.Middleware(keys, nil)(s.Handler()))
	t.Cleanup(srv.Close)

	_, err = execute(t, "--endpoint", srv.URL, "call", "whoami")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))

	out, err := execute(t, "--endpoint", srv.URL, "--api-key", "s3cret", "call", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr}
	root := newRootCommand(a)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--env-file", "", "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	a.teardown()
	return stdout.String(), err
}

func TestCallCommand(t *testing.T) {
	url := testPeer(t)

	out, err := execute(t, "--endpoint", url, "call", "echo", `message="hello world"`)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)

	out, err = execute(t, "--endpoint", url, "call", "echo", "--json", `{"message": 42}`)
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, err = execute(t, "--endpoint", url, "call", "broken")
	assert.ErrorIs(t, err, dispatcher.ErrToolFailed)
	assert.Contains(t, out, "broken on purpose")

	_, err = execute(t, "--endpoint", url, "call", "nope")
	assert.True(t, mcperrors.IsNotFound(err), "got %v", err)
}

func TestReadCommand(t *testing.T) {
	out, err := execute(t, "--endpoint", testPeer(t), "read", "file:///notes.md")
	require.NoError(t, err)
	assert.Equal(t, "# Notes\n", out)
}

func TestDemoCommandRejectsUnknownName(t *testing.T) {
	_, err := execute(t, "--endpoint", "http://127.0.0.1:1", "demo", "juggling")
	assert.Error(t, err)
}

func TestConnectionFailure(t *testing.T) {
	_, err := execute(t, "--command", "/nonexistent/ndtools-server")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.True(t, mcperrors.IsConnectionError(err), "got %v", err)
}

func TestApplyFlags(t *testing.T) {
	a := &app{}
	root := newRootCommand(a)
	require.NoError(t, root.ParseFlags([]string{"--endpoint", "http://nd:9000/mcp", "--log-level", "debug", "--args", "a,b", "--api-key", "s3cret"}))

	cfg := config.Default()
	applyFlags(root, a.flags, cfg)
	assert.Equal(t, "http", cfg.Transport.Type, "an endpoint implies the http transport")
	assert.Equal(t, "http://nd:9000/mcp", cfg.Transport.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"a", "b"}, cfg.Transport.Args)
	assert.Equal(t, "s3cret", cfg.Transport.APIKey)
	assert.Equal(t, "ndtools-server", cfg.Transport.Command, "unset flags keep the configured value")
}
