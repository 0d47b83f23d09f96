package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("req_1", MethodListTools, nil)
	require.NoError(t, err)
	assert.Equal(t, JSONRPCVersion, req.JSONRPC)
	assert.Equal(t, "req_1", req.ID)
	assert.Equal(t, MethodListTools, req.Method)
	assert.Empty(t, req.Params)

	req, err = NewRequest("req_2", MethodCallTool, CallToolParams{Name: "echo", Arguments: map[string]interface{}{"msg": "hi"}})
	require.NoError(t, err)

	var params CallToolParams
	require.NoError(t, json.Unmarshal(req.Params, &params))
	assert.Equal(t, "echo", params.Name)
	assert.Equal(t, "hi", params.Arguments["msg"])
}

func TestNewRequestRawParams(t *testing.T) {
	raw := json.RawMessage(`{"uri":"file:///a"}`)
	req, err := NewRequest(7, MethodReadResource, raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"uri":"file:///a"}`, string(req.Params))
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("req_3", ResourceNotFound, "resource not found", map[string]string{"uri": "x"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ResourceNotFound, resp.Error.Code)
	assert.Equal(t, "JSON-RPC error -32002: resource not found", resp.Error.Error())

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"req_3","error":{"code":-32002,"message":"resource not found","data":{"uri":"x"}}}`, string(data))
}

func TestMessageClassification(t *testing.T) {
	tests := []struct {
		name         string
		data         string
		request      bool
		response     bool
		notification bool
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, true, false, false},
		{"response", `{"jsonrpc":"2.0","id":"req_1","result":{}}`, false, true, false},
		{"error response", `{"jsonrpc":"2.0","id":"req_1","error":{"code":-1,"message":"x"}}`, false, true, false},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, false, false, true},
		{"null id notification", `{"jsonrpc":"2.0","id":null,"method":"notifications/progress"}`, false, false, true},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"x"}`, false, false, false},
		{"garbage", `not json`, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(tt.data)
			assert.Equal(t, tt.request, IsRequest(data))
			assert.Equal(t, tt.response, IsResponse(data))
			assert.Equal(t, tt.notification, IsNotification(data))
		})
	}
}

func TestIsSupportedRevision(t *testing.T) {
	assert.True(t, IsSupportedRevision(ProtocolRevision))
	assert.True(t, IsSupportedRevision(ProtocolRevisionLegacy))
	assert.False(t, IsSupportedRevision("1999-01-01"))
}

func TestServerCapabilitiesHas(t *testing.T) {
	var result InitializeResult
	require.NoError(t, json.Unmarshal([]byte(`{
		"protocolVersion": "2024-11-05",
		"capabilities": {"tools": {"listChanged": true}, "prompts": {}},
		"serverInfo": {"name": "ndtools", "version": "1.0.0"},
		"somethingNew": 42
	}`), &result))

	assert.True(t, result.Capabilities.Has(CapabilityTools))
	assert.True(t, result.Capabilities.Has(CapabilityPrompts))
	assert.False(t, result.Capabilities.Has(CapabilityResources))
	assert.Equal(t, "ndtools", result.ServerInfo.Name)
}
