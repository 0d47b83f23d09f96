package transport

import (
	"context"
	"encoding/json"
	"sync"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/protocol"
)

// MockHandler answers one request on a MockTransport. Returning a non-nil
// *protocol.Error produces a JSON-RPC error response; returning err
// simulates a transport failure.
type MockHandler func(params json.RawMessage) (result interface{}, rpcErr *protocol.Error, err error)

// MockCall is one message observed by a MockTransport
type MockCall struct {
	Method string
	Params json.RawMessage
}

// MockTransport is a scripted in-memory peer for tests. It answers
// initialize with a default handshake unless told otherwise.
type MockTransport struct {
	*BaseTransport

	// InitializeErr is returned by Initialize when set
	InitializeErr error

	mu              sync.Mutex
	handlers        map[string]MockHandler
	requests        []MockCall
	notifications   []MockCall
	initializeCalls int
	stopCalls       int
	done            chan struct{}
	stopOnce        sync.Once
}

// NewMockTransport creates a mock whose peer advertises tools, resources
// and prompts
func NewMockTransport() *MockTransport {
	m := &MockTransport{
		BaseTransport: NewBaseTransport(),
		handlers:      make(map[string]MockHandler),
		done:          make(chan struct{}),
	}
	m.Respond(protocol.MethodInitialize, &protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolRevision,
		Capabilities: protocol.ServerCapabilities{
			Tools:     &protocol.ListChangedCapability{},
			Resources: &protocol.ListChangedCapability{},
			Prompts:   &protocol.ListChangedCapability{},
		},
		ServerInfo: protocol.Implementation{Name: "mock-peer", Version: "0.0.1"},
	})
	m.Respond(protocol.MethodPing, struct{}{})
	return m
}

// Handle installs handler for method
func (m *MockTransport) Handle(method string, handler MockHandler) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = handler
	return m
}

// Respond answers method with a fixed result
func (m *MockTransport) Respond(method string, result interface{}) *MockTransport {
	return m.Handle(method, func(json.RawMessage) (interface{}, *protocol.Error, error) {
		return result, nil, nil
	})
}

// RespondError answers method with a JSON-RPC error
func (m *MockTransport) RespondError(method string, code protocol.ErrorCode, message string) *MockTransport {
	return m.Handle(method, func(json.RawMessage) (interface{}, *protocol.Error, error) {
		return nil, &protocol.Error{Code: code, Message: message}, nil
	})
}

// Fail makes method fail at the transport level with err
func (m *MockTransport) Fail(method string, err error) *MockTransport {
	return m.Handle(method, func(json.RawMessage) (interface{}, *protocol.Error, error) {
		return nil, nil, err
	})
}

// Initialize implements Transport
func (m *MockTransport) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initializeCalls++
	return m.InitializeErr
}

// Start blocks until Stop or cancellation
func (m *MockTransport) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return nil
	}
}

// Stop implements Transport
func (m *MockTransport) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stopCalls++
	m.mu.Unlock()
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MockTransport) stopped() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func encodeParams(params interface{}) json.RawMessage {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	return data
}

// SendRequest records the call and answers it from the installed handler
func (m *MockTransport) SendRequest(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	raw := encodeParams(params)

	m.mu.Lock()
	m.requests = append(m.requests, MockCall{Method: method, Params: raw})
	handler, ok := m.handlers[method]
	m.mu.Unlock()

	if m.stopped() {
		return nil, mcperrors.ConnectionLost("mock", ErrTransportClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, mcperrors.OperationCancelled(method, err)
	}

	id := m.GenerateID()
	if !ok {
		return protocol.NewErrorResponse(id, protocol.MethodNotFound, "Method not found: "+method, nil), nil
	}

	result, rpcErr, err := handler(raw)
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		return protocol.NewErrorResponse(id, rpcErr.Code, rpcErr.Message, rpcErr.Data), nil
	}
	return protocol.NewResponse(id, result)
}

// SendNotification records the notification
func (m *MockTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	if m.stopped() {
		return mcperrors.ConnectionLost("mock", ErrTransportClosed)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, MockCall{Method: method, Params: encodeParams(params)})
	return nil
}

// Requests returns the requests seen so far
func (m *MockTransport) Requests() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.requests...)
}

// RequestMethods returns the method of every request seen so far
func (m *MockTransport) RequestMethods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	methods := make([]string, len(m.requests))
	for i, r := range m.requests {
		methods[i] = r.Method
	}
	return methods
}

// Notifications returns the notifications seen so far
func (m *MockTransport) Notifications() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.notifications...)
}

// InitializeCalls returns how often Initialize ran
func (m *MockTransport) InitializeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeCalls
}

// StopCalls returns how often Stop ran
func (m *MockTransport) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}

// Operations returns the total number of transport operations performed
func (m *MockTransport) Operations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeCalls + m.stopCalls + len(m.requests) + len(m.notifications)
}
