package client

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/observability"
	"github.com/ndtools/mcp-client/pkg/pagination"
	"github.com/ndtools/mcp-client/pkg/protocol"
	"github.com/ndtools/mcp-client/pkg/session"
	"github.com/ndtools/mcp-client/pkg/transport"
)

// Client is the typed facade over one session
type Client struct {
	session *session.Session
	name    string
	version string
	logger  logging.Logger
	metrics observability.MetricsProvider
	tracer  *observability.TracingProvider
}

// Option configures a Client
type Option func(*Client)

// WithName sets the client name sent in the handshake
func WithName(name string) Option {
	return func(c *Client) {
		c.name = name
	}
}

// WithVersion sets the client version sent in the handshake
func WithVersion(version string) Option {
	return func(c *Client) {
		c.version = version
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request, tool and session metrics on provider
func WithMetrics(provider observability.MetricsProvider) Option {
	return func(c *Client) {
		c.metrics = provider
	}
}

// WithTracer opens a span for every operation and every request
func WithTracer(tracer *observability.TracingProvider) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// New creates a client in INIT owning t. A fresh client is needed for every
// connection; a closed client cannot be reconnected.
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		name:    "ndtools-mcp-client",
		version: "0.1.0",
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.metrics != nil || c.tracer != nil {
		t = observability.NewMiddleware(observability.MiddlewareConfig{
			Metrics: c.metrics,
			Tracer:  c.tracer,
		}).Wrap(t)
	}
	if c.metrics == nil {
		c.metrics = observability.NopMetrics{}
	}

	t.RegisterRequestHandler(protocol.MethodPing, c.handlePing)
	t.RegisterNotificationHandler(protocol.MethodLogMessage, c.handleLogMessage)
	for _, method := range []string{
		protocol.MethodToolsListChanged,
		protocol.MethodResourcesListChanged,
		protocol.MethodPromptsListChanged,
	} {
		t.RegisterNotificationHandler(method, c.listChanged(method))
	}

	c.session = session.New(t,
		session.WithClientInfo(c.name, c.version),
		session.WithLogger(c.logger),
		session.WithMetrics(c.metrics),
	)
	return c
}

// Connect opens the session
func (c *Client) Connect(ctx context.Context) error {
	return c.session.Connect(ctx)
}

// Disconnect closes the session; it is idempotent
func (c *Client) Disconnect(ctx context.Context) error {
	return c.session.Disconnect(ctx)
}

// State returns the session state
func (c *Client) State() session.State {
	return c.session.State()
}

// ServerInfo returns the peer's handshake result, or nil before READY
func (c *Client) ServerInfo() *protocol.InitializeResult {
	return c.session.ServerInfo()
}

// Session returns the underlying session
func (c *Client) Session() *session.Session {
	return c.session
}

// HasCapability reports whether the connected peer advertised capability
func (c *Client) HasCapability(capability protocol.CapabilityType) bool {
	info := c.session.ServerInfo()
	return info != nil && info.Capabilities.Has(capability)
}

// Ping checks that the peer answers
func (c *Client) Ping(ctx context.Context) error {
	return c.session.Ping(ctx)
}

func (c *Client) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if c.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := c.tracer.StartSpan(ctx, name)
	span.SetAttributes(attrs...)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// ListTools returns every tool the peer advertises, in the peer's order.
// Pages are followed until the peer stops returning a cursor.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	return pagination.Collect(ctx, func(ctx context.Context, cursor string) ([]protocol.Tool, string, error) {
		var result protocol.ListToolsResult
		err := c.session.Call(ctx, protocol.MethodListTools, &protocol.ListToolsParams{Cursor: cursor}, &result)
		return result.Tools, result.NextCursor, err
	})
}

// CallTool invokes a tool. A nil args map is sent as an empty object and
// arguments are not checked against the tool's schema. A tool that ran and
// failed comes back as a result with IsError set, not as an error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (result *protocol.CallToolResult, err error) {
	if state := c.session.State(); state != session.StateReady {
		return nil, mcperrors.NotConnected(protocol.MethodCallTool, string(state))
	}
	if name == "" {
		return nil, mcperrors.MissingParameter("name")
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	ctx, end := c.startSpan(ctx, "client.call_tool", attribute.String("mcp.tool", name))
	defer func() { end(err) }()

	start := time.Now()
	var out protocol.CallToolResult
	err = c.session.Call(ctx, protocol.MethodCallTool, &protocol.CallToolParams{Name: name, Arguments: args}, &out)

	outcome := observability.OutcomeOK
	switch {
	case err != nil:
		outcome = observability.OutcomeRemoteError
	case out.IsError:
		outcome = observability.OutcomeToolError
	}
	c.metrics.RecordToolCall(ctx, name, outcome, time.Since(start))

	if err != nil {
		c.logger.Debug("Tool call failed", logging.String("tool", name), logging.ErrorField(err))
		return nil, err
	}
	if out.Content == nil {
		out.Content = []protocol.Content{}
	}
	return &out, nil
}

// ListResources returns every resource the peer advertises, in the peer's order
func (c *Client) ListResources(ctx context.Context) ([]protocol.Resource, error) {
	return pagination.Collect(ctx, func(ctx context.Context, cursor string) ([]protocol.Resource, string, error) {
		var result protocol.ListResourcesResult
		err := c.session.Call(ctx, protocol.MethodListResources, &protocol.ListResourcesParams{Cursor: cursor}, &result)
		return result.Resources, result.NextCursor, err
	})
}

// ReadResource reads the resource at uri. An unknown URI is a NotFound error.
func (c *Client) ReadResource(ctx context.Context, uri string) (result *protocol.ReadResourceResult, err error) {
	if state := c.session.State(); state != session.StateReady {
		return nil, mcperrors.NotConnected(protocol.MethodReadResource, string(state))
	}
	if uri == "" {
		return nil, mcperrors.MissingParameter("uri")
	}

	ctx, end := c.startSpan(ctx, "client.read_resource", attribute.String("mcp.resource.uri", uri))
	defer func() { end(err) }()

	start := time.Now()
	var out protocol.ReadResourceResult
	err = c.session.Call(ctx, protocol.MethodReadResource, &protocol.ReadResourceParams{URI: uri}, &out)
	c.metrics.RecordResourceRead(ctx, uri, statusOf(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	if out.Contents == nil {
		out.Contents = []protocol.ResourceContents{}
	}
	return &out, nil
}

// ListPrompts returns every prompt the peer advertises, in the peer's order
func (c *Client) ListPrompts(ctx context.Context) ([]protocol.Prompt, error) {
	return pagination.Collect(ctx, func(ctx context.Context, cursor string) ([]protocol.Prompt, string, error) {
		var result protocol.ListPromptsResult
		err := c.session.Call(ctx, protocol.MethodListPrompts, &protocol.ListPromptsParams{Cursor: cursor}, &result)
		return result.Prompts, result.NextCursor, err
	})
}

// GetPrompt expands a prompt. A nil args map is sent as an empty object.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (result *protocol.GetPromptResult, err error) {
	if state := c.session.State(); state != session.StateReady {
		return nil, mcperrors.NotConnected(protocol.MethodGetPrompt, string(state))
	}
	if name == "" {
		return nil, mcperrors.MissingParameter("name")
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	ctx, end := c.startSpan(ctx, "client.get_prompt", attribute.String("mcp.prompt", name))
	defer func() { end(err) }()

	start := time.Now()
	var out protocol.GetPromptResult
	err = c.session.Call(ctx, protocol.MethodGetPrompt, &protocol.GetPromptParams{Name: name, Arguments: args}, &out)
	c.metrics.RecordPromptGet(ctx, name, statusOf(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	if out.Messages == nil {
		out.Messages = []protocol.PromptMessage{}
	}
	return &out, nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case mcperrors.IsNotFound(err):
		return "not_found"
	case mcperrors.IsRemoteCallError(err):
		return "remote_error"
	case mcperrors.IsProtocolError(err):
		return "protocol_error"
	default:
		return "transport_error"
	}
}

// handlePing answers a ping from the peer
func (c *Client) handlePing(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return protocol.PingResult{}, nil
}

// handleLogMessage forwards peer log notifications to the client logger
func (c *Client) handleLogMessage(ctx context.Context, params json.RawMessage) error {
	var msg protocol.LogMessageParams
	if err := json.Unmarshal(params, &msg); err != nil {
		return err
	}
	fields := []logging.Field{
		logging.String("peer_level", msg.Level),
		logging.String("data", string(msg.Data)),
	}
	if msg.Logger != "" {
		fields = append(fields, logging.String("peer_logger", msg.Logger))
	}
	c.logger.Info("Peer log message", fields...)
	return nil
}

func (c *Client) listChanged(method string) transport.NotificationHandler {
	return func(ctx context.Context, params json.RawMessage) error {
		c.logger.Debug("Peer list changed", logging.String("notification", method))
		return nil
	}
}
