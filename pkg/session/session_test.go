package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/protocol"
	"github.com/ndtools/mcp-client/pkg/transport"
)

func connected(t *testing.T, mock *transport.MockTransport) *Session {
	t.Helper()
	s := New(mock, WithClientInfo("session-test", "1.2.3"))
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })
	return s
}

func TestConnect(t *testing.T) {
	mock := transport.NewMockTransport()
	s := New(mock, WithClientInfo("session-test", "1.2.3"))
	assert.Equal(t, StateInit, s.State())
	assert.Nil(t, s.ServerInfo())
	assert.False(t, s.Handle().Initialized)

	require.NoError(t, s.Connect(context.Background()))
	defer s.Disconnect(context.Background())

	assert.Equal(t, StateReady, s.State())
	assert.True(t, s.Handle().Initialized)
	require.NotNil(t, s.ServerInfo())
	assert.Equal(t, "mock-peer", s.ServerInfo().ServerInfo.Name)

	requests := mock.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, protocol.MethodInitialize, requests[0].Method)

	var params protocol.InitializeParams
	require.NoError(t, json.Unmarshal(requests[0].Params, &params))
	assert.Equal(t, protocol.ProtocolRevision, params.ProtocolVersion)
	assert.Equal(t, "session-test", params.ClientInfo.Name)
	assert.Equal(t, "1.2.3", params.ClientInfo.Version)

	notifications := mock.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, protocol.MethodInitialized, notifications[0].Method)
}

func TestConnectOnlyFromInit(t *testing.T) {
	mock := transport.NewMockTransport()
	s := connected(t, mock)

	err := s.Connect(context.Background())
	assert.True(t, mcperrors.IsNotConnected(err))
	assert.Equal(t, StateReady, s.State())

	require.NoError(t, s.Disconnect(context.Background()))
	err = s.Connect(context.Background())
	assert.True(t, mcperrors.IsNotConnected(err), "no transition leaves CLOSED")
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 1, mock.InitializeCalls())
}

func TestConnectFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *transport.MockTransport)
		check func(t *testing.T, err error)
	}{
		{
			name:  "transport cannot be acquired",
			setup: func(m *transport.MockTransport) { m.InitializeErr = errors.New("no such file") },
			check: func(t *testing.T, err error) {
				assert.True(t, mcperrors.IsConnectionError(err))
				assert.True(t, mcperrors.IsCode(err, mcperrors.CodeConnectionFailed))
			},
		},
		{
			name: "transport error keeps its kind",
			setup: func(m *transport.MockTransport) {
				m.InitializeErr = mcperrors.ConnectionFailed("command", "ndtools-server", errors.New("exec failed"))
			},
			check: func(t *testing.T, err error) {
				assert.True(t, mcperrors.IsConnectionError(err))
			},
		},
		{
			name: "handshake rejected",
			setup: func(m *transport.MockTransport) {
				m.RespondError(protocol.MethodInitialize, protocol.InvalidRequest, "unsupported client")
			},
			check: func(t *testing.T, err error) {
				assert.True(t, mcperrors.IsProtocolError(err))
				assert.Contains(t, err.Error(), "unsupported client")
			},
		},
		{
			name: "malformed handshake result",
			setup: func(m *transport.MockTransport) {
				m.Respond(protocol.MethodInitialize, json.RawMessage(`[1, 2, 3]`))
			},
			check: func(t *testing.T, err error) {
				assert.True(t, mcperrors.IsProtocolError(err))
				assert.True(t, mcperrors.IsCode(err, mcperrors.CodeDecodeFailed))
			},
		},
		{
			name: "unsupported protocol version",
			setup: func(m *transport.MockTransport) {
				m.Respond(protocol.MethodInitialize, &protocol.InitializeResult{ProtocolVersion: "1999-01-01"})
			},
			check: func(t *testing.T, err error) {
				assert.True(t, mcperrors.IsProtocolError(err))
				assert.True(t, mcperrors.IsCode(err, mcperrors.CodeVersionMismatch))
			},
		},
		{
			name: "transport lost during handshake",
			setup: func(m *transport.MockTransport) {
				m.Fail(protocol.MethodInitialize, errors.New("broken pipe"))
			},
			check: func(t *testing.T, err error) {
				assert.True(t, mcperrors.IsConnectionError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := transport.NewMockTransport()
			tt.setup(mock)
			s := New(mock)

			err := s.Connect(context.Background())
			require.Error(t, err)
			tt.check(t, err)

			assert.Equal(t, StateClosed, s.State())
			assert.Nil(t, s.ServerInfo())
			assert.Equal(t, 1, mock.StopCalls(), "transport should be released")
			assert.Empty(t, mock.Notifications(), "initialized must not be sent")
		})
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	mock := transport.NewMockTransport()
	s := connected(t, mock)

	require.NoError(t, s.Disconnect(context.Background()))
	assert.Equal(t, StateClosed, s.State())
	ops := mock.Operations()

	require.NoError(t, s.Disconnect(context.Background()))
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, ops, mock.Operations(), "second disconnect must not touch the transport")
	assert.Equal(t, 1, mock.StopCalls())
}

func TestDisconnectFromInit(t *testing.T) {
	mock := transport.NewMockTransport()
	s := New(mock)

	require.NoError(t, s.Disconnect(context.Background()))
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, mock.InitializeCalls())
	assert.Equal(t, 1, mock.StopCalls())
}

func TestCallRequiresReady(t *testing.T) {
	mock := transport.NewMockTransport()
	s := New(mock)

	var out protocol.ListToolsResult
	err := s.Call(context.Background(), protocol.MethodListTools, nil, &out)
	assert.True(t, mcperrors.IsNotConnected(err))
	assert.Equal(t, 0, mock.Operations(), "no transport operation before READY")

	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Disconnect(context.Background()))
	before := mock.Operations()

	err = s.Call(context.Background(), protocol.MethodListTools, nil, &out)
	assert.True(t, mcperrors.IsNotConnected(err))
	mcpErr, ok := mcperrors.AsMCPError(err)
	require.True(t, ok)
	assert.Equal(t, string(StateClosed), mcpErr.Context().State)
	assert.Equal(t, before, mock.Operations())
}

func TestCall(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.Respond(protocol.MethodListTools, json.RawMessage(`{"tools":[{"name":"echo","extra":true}]}`))
	mock.RespondError(protocol.MethodCallTool, protocol.InvalidParams, "bad arguments")
	mock.RespondError(protocol.MethodReadResource, protocol.ResourceNotFound, "Resource not found: file:///nope")
	mock.Respond(protocol.MethodListPrompts, json.RawMessage(`{"prompts":"not-a-list"}`))
	mock.Fail(protocol.MethodGetPrompt, errors.New("connection reset"))

	s := connected(t, mock)
	ctx := context.Background()

	var tools protocol.ListToolsResult
	require.NoError(t, s.Call(ctx, protocol.MethodListTools, nil, &tools))
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, "echo", tools.Tools[0].Name)

	err := s.Call(ctx, protocol.MethodCallTool, nil, &protocol.CallToolResult{})
	assert.True(t, mcperrors.IsRemoteCallError(err))
	mcpErr, ok := mcperrors.AsMCPError(err)
	require.True(t, ok)
	assert.Equal(t, int(protocol.InvalidParams), mcpErr.Code())
	assert.Equal(t, s.Handle().ID.String(), mcpErr.Context().SessionID)
	assert.Equal(t, string(StateReady), mcpErr.Context().State)
	assert.Equal(t, protocol.MethodCallTool, mcpErr.Context().Method)

	err = s.Call(ctx, protocol.MethodReadResource, nil, &protocol.ReadResourceResult{})
	assert.True(t, mcperrors.IsNotFound(err))

	err = s.Call(ctx, protocol.MethodListPrompts, nil, &protocol.ListPromptsResult{})
	assert.True(t, mcperrors.IsProtocolError(err))

	err = s.Call(ctx, protocol.MethodGetPrompt, nil, &protocol.GetPromptResult{})
	assert.True(t, mcperrors.IsConnectionError(err))

	assert.Equal(t, StateReady, s.State(), "failed calls do not change state")
}

func TestCallCancelled(t *testing.T) {
	mock := transport.NewMockTransport()
	s := connected(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Call(ctx, protocol.MethodListTools, nil, nil)
	assert.True(t, mcperrors.IsCancelled(err))
}

func TestPing(t *testing.T) {
	mock := transport.NewMockTransport()
	s := connected(t, mock)

	require.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, []string{protocol.MethodInitialize, protocol.MethodPing}, mock.RequestMethods())
}

func TestHandleIdentity(t *testing.T) {
	mock := transport.NewMockTransport()
	a, b := New(mock), New(mock)

	assert.NotEqual(t, a.Handle().ID, b.Handle().ID)
	assert.WithinDuration(t, time.Now(), a.Handle().CreatedAt, time.Minute)
	assert.Same(t, transport.Transport(mock), a.Handle().Transport)
}
