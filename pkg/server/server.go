package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/pagination"
	"github.com/ndtools/mcp-client/pkg/protocol"
	"github.com/ndtools/mcp-client/pkg/transport"
)

// Registrar routes JSON-RPC methods to handlers. Every transport is one.
type Registrar interface {
	RegisterRequestHandler(method string, handler transport.RequestHandler)
	RegisterNotificationHandler(method string, handler transport.NotificationHandler)
}

// Server answers MCP requests from its registries
type Server struct {
	name         string
	version      string
	instructions string
	logger       logging.Logger
	stopTimeout  time.Duration
	pageSize     int

	tools     *registry[toolEntry]
	resources *registry[resourceEntry]
	prompts   *registry[promptEntry]

	mu          sync.RWMutex
	clientInfo  *protocol.Implementation
	initialized bool
	notifier    transport.Transport
}

// Option configures a Server
type Option func(*Server)

// WithName sets the name reported in the handshake
func WithName(name string) Option {
	return func(s *Server) {
		s.name = name
	}
}

// WithVersion sets the version reported in the handshake
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithInstructions sets the usage notes returned in the handshake
func WithInstructions(instructions string) Option {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPageSize splits list replies into pages of n entries. Zero, the
// default, answers every list in one reply.
func WithPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			n = pagination.ClampLimit(n)
		}
		s.pageSize = n
	}
}

// New creates a server with empty registries
func New(opts ...Option) *Server {
	s := &Server{
		name:        "ndtools-server",
		version:     "0.1.0",
		logger:      logging.Nop(),
		stopTimeout: 5 * time.Second,
		tools:       newRegistry[toolEntry](),
		resources:   newRegistry[resourceEntry](),
		prompts:     newRegistry[promptEntry](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithFields(logging.String("component", "server"), logging.String("server", s.name))
	return s
}

// Name returns the server name
func (s *Server) Name() string { return s.name }

// Version returns the server version
func (s *Server) Version() string { return s.version }

// Instructions returns the handshake instructions
func (s *Server) Instructions() string { return s.instructions }

// AddTool registers or replaces a tool
func (s *Server) AddTool(tool protocol.Tool, handler ToolHandler) {
	s.tools.add(tool.Name, toolEntry{tool: tool, handler: handler})
	s.notifyListChanged(protocol.MethodToolsListChanged)
}

// RemoveTool unregisters a tool and reports whether it existed
func (s *Server) RemoveTool(name string) bool {
	removed := s.tools.remove(name)
	if removed {
		s.notifyListChanged(protocol.MethodToolsListChanged)
	}
	return removed
}

// AddResource registers or replaces a resource
func (s *Server) AddResource(resource protocol.Resource, reader ResourceReader) {
	s.resources.add(resource.URI, resourceEntry{resource: resource, reader: reader})
	s.notifyListChanged(protocol.MethodResourcesListChanged)
}

// AddPrompt registers or replaces a prompt
func (s *Server) AddPrompt(prompt protocol.Prompt, renderer PromptRenderer) {
	s.prompts.add(prompt.Name, promptEntry{prompt: prompt, renderer: renderer})
	s.notifyListChanged(protocol.MethodPromptsListChanged)
}

// Tools returns the registered tools in registration order
func (s *Server) Tools() []protocol.Tool {
	entries := s.tools.list()
	tools := make([]protocol.Tool, 0, len(entries))
	for _, e := range entries {
		tools = append(tools, e.tool)
	}
	return tools
}

// Resources returns the registered resources in registration order
func (s *Server) Resources() []protocol.Resource {
	entries := s.resources.list()
	resources := make([]protocol.Resource, 0, len(entries))
	for _, e := range entries {
		resources = append(resources, e.resource)
	}
	return resources
}

// Prompts returns the registered prompts in registration order
func (s *Server) Prompts() []protocol.Prompt {
	entries := s.prompts.list()
	prompts := make([]protocol.Prompt, 0, len(entries))
	for _, e := range entries {
		prompts = append(prompts, e.prompt)
	}
	return prompts
}

// ClientInfo returns the client named in the last handshake
func (s *Server) ClientInfo() (protocol.Implementation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.clientInfo == nil {
		return protocol.Implementation{}, false
	}
	return *s.clientInfo, true
}

// Register installs the server's handlers on r
func (s *Server) Register(r Registrar) {
	r.RegisterRequestHandler(protocol.MethodInitialize, s.handleInitialize)
	r.RegisterNotificationHandler(protocol.MethodInitialized, s.handleInitialized)
	r.RegisterRequestHandler(protocol.MethodPing, s.handlePing)
	r.RegisterRequestHandler(protocol.MethodListTools, s.handleListTools)
	r.RegisterRequestHandler(protocol.MethodCallTool, s.handleCallTool)
	r.RegisterRequestHandler(protocol.MethodListResources, s.handleListResources)
	r.RegisterRequestHandler(protocol.MethodReadResource, s.handleReadResource)
	r.RegisterRequestHandler(protocol.MethodListPrompts, s.handleListPrompts)
	r.RegisterRequestHandler(protocol.MethodGetPrompt, s.handleGetPrompt)
}

// Serve runs the server over t until the stream ends or ctx is cancelled.
// The end of input is a clean shutdown.
func (s *Server) Serve(ctx context.Context, t transport.Transport) error {
	s.Register(t)
	if err := t.Initialize(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.notifier = t
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.notifier = nil
		s.initialized = false
		s.mu.Unlock()
	}()

	s.logger.Info("Serving",
		logging.Int("tools", s.tools.len()),
		logging.Int("resources", s.resources.len()),
		logging.Int("prompts", s.prompts.len()))

	err := t.Start(ctx)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stopTimeout)
	defer cancel()
	if stopErr := t.Stop(stopCtx); err == nil {
		err = stopErr
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) notifyListChanged(method string) {
	s.mu.RLock()
	t, ready := s.notifier, s.initialized
	s.mu.RUnlock()
	if t == nil || !ready {
		return
	}
	if err := t.SendNotification(context.Background(), method, nil); err != nil {
		s.logger.Debug("List change notification not sent",
			logging.String("method", method), logging.ErrorField(err))
	}
}

func decodeParams(method string, params json.RawMessage, v interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return mcperrors.WrapError(err, mcperrors.CodeInvalidParams,
			fmt.Sprintf("Invalid params for %s: %s", method, err.Error()),
			mcperrors.CategoryValidation, mcperrors.SeverityError)
	}
	return nil
}

func invalidParams(message string) error {
	return mcperrors.NewError(mcperrors.CodeInvalidParams, message,
		mcperrors.CategoryValidation, mcperrors.SeverityError)
}

// unknown builds the error answered for a name the registries lack
func unknown(kind, name string) error {
	return mcperrors.NewError(mcperrors.CodePeerNotFound,
		fmt.Sprintf("Unknown %s: %s", kind, name),
		mcperrors.CategoryNotFound, mcperrors.SeverityError,
	).WithData(&mcperrors.NotFoundData{Kind: kind, ID: name})
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var init protocol.InitializeParams
	if err := decodeParams(protocol.MethodInitialize, params, &init); err != nil {
		return nil, err
	}

	version := init.ProtocolVersion
	if !protocol.IsSupportedRevision(version) {
		version = protocol.ProtocolRevision
	}

	s.mu.Lock()
	client := init.ClientInfo
	s.clientInfo = &client
	s.mu.Unlock()

	s.logger.Info("Client connected",
		logging.String("client", init.ClientInfo.Name),
		logging.String("client_version", init.ClientInfo.Version),
		logging.String("protocol_version", version))

	return &protocol.InitializeResult{
		ProtocolVersion: version,
		Capabilities: protocol.ServerCapabilities{
			Tools:     &protocol.ListChangedCapability{ListChanged: true},
			Resources: &protocol.ListChangedCapability{ListChanged: true},
			Prompts:   &protocol.ListChangedCapability{ListChanged: true},
		},
		ServerInfo:   protocol.Implementation{Name: s.name, Version: s.version},
		Instructions: s.instructions,
	}, nil
}

func (s *Server) handleInitialized(ctx context.Context, params json.RawMessage) error {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	s.logger.Debug("Session initialized")
	return nil
}

func (s *Server) handlePing(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return &protocol.PingResult{}, nil
}

// page cuts one list reply out of items at the cursor in params
func page[T any](s *Server, method string, params json.RawMessage, items []T) ([]T, string, error) {
	var p struct {
		Cursor string `json:"cursor"`
	}
	if err := decodeParams(method, params, &p); err != nil {
		return nil, "", err
	}
	out, next, err := pagination.Page(items, p.Cursor, s.pageSize)
	if err != nil {
		return nil, "", invalidParams(fmt.Sprintf("Invalid cursor for %s: %s", method, p.Cursor))
	}
	return out, next, nil
}

func (s *Server) handleListTools(ctx context.Context, params json.RawMessage) (interface{}, error) {
	tools, next, err := page(s, protocol.MethodListTools, params, s.Tools())
	if err != nil {
		return nil, err
	}
	return &protocol.ListToolsResult{Tools: tools, NextCursor: next}, nil
}

func (s *Server) handleCallTool(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var call protocol.CallToolParams
	if err := decodeParams(protocol.MethodCallTool, params, &call); err != nil {
		return nil, err
	}
	if call.Name == "" {
		return nil, invalidParams("Missing required parameter: name")
	}

	entry, ok := s.tools.get(call.Name)
	if !ok {
		return nil, unknown("tool", call.Name)
	}
	if call.Arguments == nil {
		call.Arguments = map[string]interface{}{}
	}

	logger := s.logger.WithFields(logging.String("tool", call.Name))
	result, err := entry.handler(ctx, call.Arguments)
	if err != nil {
		logger.Debug("Tool failed", logging.ErrorField(err))
		return protocol.ErrorResult(err.Error()), nil
	}
	if result == nil {
		result = &protocol.CallToolResult{}
	}
	if result.Content == nil {
		result.Content = []protocol.Content{}
	}
	logger.Debug("Tool called", logging.Int("items", len(result.Content)))
	return result, nil
}

func (s *Server) handleListResources(ctx context.Context, params json.RawMessage) (interface{}, error) {
	resources, next, err := page(s, protocol.MethodListResources, params, s.Resources())
	if err != nil {
		return nil, err
	}
	return &protocol.ListResourcesResult{Resources: resources, NextCursor: next}, nil
}

func (s *Server) handleReadResource(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var read protocol.ReadResourceParams
	if err := decodeParams(protocol.MethodReadResource, params, &read); err != nil {
		return nil, err
	}
	if read.URI == "" {
		return nil, invalidParams("Missing required parameter: uri")
	}

	entry, ok := s.resources.get(read.URI)
	if !ok {
		return nil, unknown("resource", read.URI)
	}
	contents, err := entry.reader(ctx, read.URI)
	if err != nil {
		s.logger.Warn("Resource read failed", logging.String("uri", read.URI), logging.ErrorField(err))
		return nil, err
	}
	if contents == nil {
		contents = []protocol.ResourceContents{}
	}
	return &protocol.ReadResourceResult{Contents: contents}, nil
}

func (s *Server) handleListPrompts(ctx context.Context, params json.RawMessage) (interface{}, error) {
	prompts, next, err := page(s, protocol.MethodListPrompts, params, s.Prompts())
	if err != nil {
		return nil, err
	}
	return &protocol.ListPromptsResult{Prompts: prompts, NextCursor: next}, nil
}

func (s *Server) handleGetPrompt(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var get protocol.GetPromptParams
	if err := decodeParams(protocol.MethodGetPrompt, params, &get); err != nil {
		return nil, err
	}
	if get.Name == "" {
		return nil, invalidParams("Missing required parameter: name")
	}

	entry, ok := s.prompts.get(get.Name)
	if !ok {
		return nil, unknown("prompt", get.Name)
	}
	for _, name := range entry.prompt.RequiredArguments() {
		if _, ok := get.Arguments[name]; !ok {
			return nil, invalidParams(fmt.Sprintf("Missing required argument for prompt %s: %s", get.Name, name))
		}
	}
	if get.Arguments == nil {
		get.Arguments = map[string]interface{}{}
	}

	result, err := entry.renderer(ctx, get.Arguments)
	if err != nil {
		s.logger.Warn("Prompt render failed", logging.String("prompt", get.Name), logging.ErrorField(err))
		return nil, err
	}
	if result == nil {
		result = &protocol.GetPromptResult{}
	}
	if result.Messages == nil {
		result.Messages = []protocol.PromptMessage{}
	}
	return result, nil
}
