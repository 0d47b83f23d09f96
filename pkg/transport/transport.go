package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/protocol"
)

// Transport defines the core interface for MCP transport mechanisms.
type Transport interface {
	// Initialize acquires the underlying channel (spawns the peer, checks
	// the endpoint). It must be called before Start.
	Initialize(ctx context.Context) error

	// SendRequest sends a request and waits for the matching response. A
	// response carrying a JSON-RPC error is returned as-is with a nil error;
	// the returned error is reserved for transport failures.
	SendRequest(ctx context.Context, method string, params interface{}) (*protocol.Response, error)
	SendNotification(ctx context.Context, method string, params interface{}) error

	RegisterRequestHandler(method string, handler RequestHandler)
	RegisterNotificationHandler(method string, handler NotificationHandler)

	// Start runs the read loop and blocks until the channel closes, Stop is
	// called or ctx is cancelled.
	Start(ctx context.Context) error
	// Stop releases the channel. It is safe to call more than once.
	Stop(ctx context.Context) error
}

// RequestHandler handles incoming requests
type RequestHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// NotificationHandler handles incoming notifications
type NotificationHandler func(ctx context.Context, params json.RawMessage) error

// TransportType identifies the base transport implementation
type TransportType string

const (
	TransportTypeStdio   TransportType = "stdio"
	TransportTypeCommand TransportType = "command"
	TransportTypeHTTP    TransportType = "http"
)

// TransportConfig is the unified configuration for all transports
type TransportConfig struct {
	Type TransportType `json:"type" yaml:"type"`

	// Command transport
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	Env     []string `json:"env,omitempty" yaml:"env,omitempty"`
	Dir     string   `json:"dir,omitempty" yaml:"dir,omitempty"`

	// HTTP transport
	Endpoint string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Stdio transport; nil means os.Stdin / os.Stdout.
	StdioReader io.Reader `json:"-" yaml:"-"`
	StdioWriter io.Writer `json:"-" yaml:"-"`

	// RequestTimeout bounds a single request when the caller's context has
	// no deadline. Zero disables it.
	RequestTimeout time.Duration `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`

	Logger logging.Logger `json:"-" yaml:"-"`
	// Tracer propagates trace context on the HTTP transport
	Tracer        TraceInjector       `json:"-" yaml:"-"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// Errors
var (
	ErrUnsupportedTransportType = errors.New("unsupported transport type")
	ErrTransportClosed          = errors.New("transport closed")
)

// NewTransport creates a new transport with the specified configuration
func NewTransport(config TransportConfig) (Transport, error) {
	if err := validateTransportConfig(config); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = logging.Nop()
	}

	var base Transport
	switch config.Type {
	case TransportTypeStdio:
		base = newStdioTransport(config)
	case TransportTypeCommand:
		base = NewCommandTransport(config.Command, config.Args,
			WithCommandEnv(config.Env),
			WithCommandDir(config.Dir),
			WithCommandLogger(config.Logger),
		)
	case TransportTypeHTTP:
		base = NewHTTPTransport(config.Endpoint,
			WithHTTPHeaders(config.Headers),
			WithHTTPLogger(config.Logger),
			WithTraceInjector(config.Tracer),
		)
	default:
		return nil, ErrUnsupportedTransportType
	}

	middleware := []Middleware{}
	if config.RequestTimeout > 0 {
		middleware = append(middleware, TimeoutMiddleware(config.RequestTimeout))
	}
	if config.Observability.Enabled() {
		middleware = append(middleware, NewObservabilityMiddleware(config.Observability, config.Logger))
	}

	return ChainMiddleware(middleware...).Wrap(base), nil
}

func validateTransportConfig(config TransportConfig) error {
	switch config.Type {
	case TransportTypeStdio:
		return nil
	case TransportTypeCommand:
		if config.Command == "" {
			return errors.New("command is required for the command transport")
		}
		return nil
	case TransportTypeHTTP:
		if config.Endpoint == "" {
			return errors.New("endpoint is required for the HTTP transport")
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedTransportType, config.Type)
	}
}

// BaseTransport provides common functionality for all transport implementations.
// It handles request/response matching, handler registration, and ID generation.
type BaseTransport struct {
	sync.RWMutex
	requestHandlers      map[string]RequestHandler
	notificationHandlers map[string]NotificationHandler
	nextID               int64
	pendingRequests      map[string]chan *protocol.Response
	requestIDPrefix      string
	closed               bool
	logger               logging.Logger
}

// NewBaseTransport creates a new BaseTransport
func NewBaseTransport() *BaseTransport {
	return &BaseTransport{
		requestHandlers:      make(map[string]RequestHandler),
		notificationHandlers: make(map[string]NotificationHandler),
		nextID:               1,
		pendingRequests:      make(map[string]chan *protocol.Response),
		requestIDPrefix:      "req",
		logger:               logging.Nop(),
	}
}

// SetLogger replaces the logger used for dropped or malformed messages
func (t *BaseTransport) SetLogger(logger logging.Logger) {
	if logger == nil {
		logger = logging.Nop()
	}
	t.Lock()
	t.logger = logger
	t.Unlock()
}

// Logger returns the transport's logger
func (t *BaseTransport) Logger() logging.Logger {
	t.RLock()
	defer t.RUnlock()
	return t.logger
}

// RegisterRequestHandler registers a handler for incoming requests
func (t *BaseTransport) RegisterRequestHandler(method string, handler RequestHandler) {
	t.Lock()
	defer t.Unlock()
	t.requestHandlers[method] = handler
}

// RegisterNotificationHandler registers a handler for incoming notifications
func (t *BaseTransport) RegisterNotificationHandler(method string, handler NotificationHandler) {
	t.Lock()
	defer t.Unlock()
	t.notificationHandlers[method] = handler
}

// GetNextID returns the next unique ID
func (t *BaseTransport) GetNextID() int64 {
	t.Lock()
	defer t.Unlock()
	id := t.nextID
	t.nextID++
	return id
}

// GenerateID generates a unique request ID
func (t *BaseTransport) GenerateID() string {
	return fmt.Sprintf("%s_%d", t.requestIDPrefix, t.GetNextID())
}

// HandleRequest processes an incoming request. It always produces a
// response: unknown methods, handler errors and panics become JSON-RPC
// error responses.
func (t *BaseTransport) HandleRequest(ctx context.Context, request *protocol.Request) (resp *protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			t.Logger().Error("Panic in request handler",
				logging.String("method", request.Method),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			resp = protocol.NewErrorResponse(request.ID, protocol.InternalError,
				fmt.Sprintf("Internal server error processing %s", request.Method), nil)
		}
	}()

	t.RLock()
	handler, ok := t.requestHandlers[request.Method]
	t.RUnlock()

	if !ok {
		return protocol.NewErrorResponse(request.ID, protocol.MethodNotFound,
			fmt.Sprintf("Method not found: %s", request.Method), nil)
	}

	result, err := handler(ctx, request.Params)
	if err != nil {
		rpcErr := mcperrors.ToJSONRPCError(err)
		return protocol.NewErrorResponse(request.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}

	response, err := protocol.NewResponse(request.ID, result)
	if err != nil {
		return protocol.NewErrorResponse(request.ID, protocol.InternalError,
			fmt.Sprintf("failed to marshal result: %v", err), nil)
	}
	return response
}

// HandleResponse delivers a response to the waiter registered for its ID.
// Responses nobody waits for are dropped.
func (t *BaseTransport) HandleResponse(response *protocol.Response) {
	id := fmt.Sprintf("%v", response.ID)

	t.Lock()
	ch, ok := t.pendingRequests[id]
	if ok {
		delete(t.pendingRequests, id)
	}
	logger := t.logger
	t.Unlock()

	if !ok {
		logger.Debug("Dropping response with no pending request", logging.String("id", id))
		return
	}
	ch <- response
}

// HandleNotification processes an incoming notification with panic recovery.
// Notifications without a handler are ignored.
func (t *BaseTransport) HandleNotification(ctx context.Context, notification *protocol.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error processing notification %s: %v", notification.Method, r)
		}
	}()

	t.RLock()
	handler, ok := t.notificationHandlers[notification.Method]
	t.RUnlock()

	if !ok {
		t.Logger().Debug("Ignoring notification", logging.String("method", notification.Method))
		return nil
	}
	return handler(ctx, notification.Params)
}

// RegisterPending creates the response channel for id. It must be called
// before the request is written so a fast response cannot be missed.
func (t *BaseTransport) RegisterPending(id string) (<-chan *protocol.Response, error) {
	t.Lock()
	defer t.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}
	ch := make(chan *protocol.Response, 1)
	t.pendingRequests[id] = ch
	return ch, nil
}

// CancelPending forgets the waiter for id
func (t *BaseTransport) CancelPending(id string) {
	t.Lock()
	delete(t.pendingRequests, id)
	t.Unlock()
}

// WaitForResponse waits for the response registered under id. A channel
// closed by Cleanup yields a connection-lost error.
func (t *BaseTransport) WaitForResponse(ctx context.Context, id string, ch <-chan *protocol.Response) (*protocol.Response, error) {
	select {
	case response, ok := <-ch:
		if !ok {
			return nil, mcperrors.ConnectionLost("stream", ErrTransportClosed)
		}
		return response, nil
	case <-ctx.Done():
		t.CancelPending(id)
		return nil, mcperrors.OperationCancelled(id, ctx.Err())
	}
}

// PendingCount returns the number of requests awaiting a response
func (t *BaseTransport) PendingCount() int {
	t.RLock()
	defer t.RUnlock()
	return len(t.pendingRequests)
}

// Cleanup fails every pending waiter and refuses new requests
func (t *BaseTransport) Cleanup() {
	t.Lock()
	defer t.Unlock()
	t.closed = true
	for id, ch := range t.pendingRequests {
		close(ch)
		delete(t.pendingRequests, id)
	}
}

// dispatchMessage classifies one raw JSON-RPC message and routes it.
// Responses to incoming requests are written with reply.
func (t *BaseTransport) dispatchMessage(ctx context.Context, data []byte, reply func([]byte) error) {
	logger := t.Logger()

	switch {
	case protocol.IsResponse(data):
		var resp protocol.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			logger.Warn("Malformed response", logging.ErrorField(err))
			return
		}
		t.HandleResponse(&resp)

	case protocol.IsRequest(data):
		var req protocol.Request
		if err := json.Unmarshal(data, &req); err != nil {
			logger.Warn("Malformed request", logging.ErrorField(err))
			return
		}
		resp := t.HandleRequest(ctx, &req)
		out, err := json.Marshal(resp)
		if err != nil {
			logger.Error("Failed to marshal response", logging.ErrorField(err))
			return
		}
		if err := reply(out); err != nil {
			logger.Warn("Failed to send response", logging.String("method", req.Method), logging.ErrorField(err))
		}

	case protocol.IsNotification(data):
		var notif protocol.Notification
		if err := json.Unmarshal(data, &notif); err != nil {
			logger.Warn("Malformed notification", logging.ErrorField(err))
			return
		}
		if err := t.HandleNotification(ctx, &notif); err != nil {
			logger.Warn("Notification handler failed", logging.String("method", notif.Method), logging.ErrorField(err))
		}

	default:
		logger.Warn("Ignoring unrecognised message", logging.Int("bytes", len(data)))
	}
}
