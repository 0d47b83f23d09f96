// Package session owns one transport connection and the handshake that
// must complete on it before any other MCP operation is allowed.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/observability"
	"github.com/ndtools/mcp-client/pkg/protocol"
	"github.com/ndtools/mcp-client/pkg/transport"
)

// State is the lifecycle state of a session
type State string

const (
	StateInit   State = "INIT"
	StateReady  State = "READY"
	StateClosed State = "CLOSED"
)

// String implements fmt.Stringer
func (s State) String() string {
	return string(s)
}

// Handle identifies one live connection
type Handle struct {
	ID          uuid.UUID
	Transport   transport.Transport
	Initialized bool
	CreatedAt   time.Time
}

// Option configures a Session
type Option func(*Session)

// WithClientInfo sets the implementation name and version sent in the handshake
func WithClientInfo(name, version string) Option {
	return func(s *Session) {
		s.clientInfo = protocol.Implementation{Name: name, Version: version}
	}
}

// WithLogger sets the session logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the provider that observes state transitions
func WithMetrics(metrics observability.MetricsProvider) Option {
	return func(s *Session) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithStopTimeout bounds how long Disconnect waits for the transport to stop
func WithStopTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.stopTimeout = d
	}
}

// DefaultStopTimeout is used when no stop timeout is configured
const DefaultStopTimeout = 5 * time.Second

// Session is the state machine INIT -> READY -> CLOSED over one transport.
// Operations are issued one at a time; the mutex only guards transitions.
type Session struct {
	mu         sync.Mutex
	state      State
	connecting bool
	handle     Handle
	serverInfo *protocol.InitializeResult

	clientInfo  protocol.Implementation
	logger      logging.Logger
	metrics     observability.MetricsProvider
	stopTimeout time.Duration

	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// New creates a session in INIT that owns t
func New(t transport.Transport, opts ...Option) *Session {
	s := &Session{
		state: StateInit,
		handle: Handle{
			ID:        uuid.New(),
			Transport: t,
			CreatedAt: time.Now(),
		},
		clientInfo:  protocol.Implementation{Name: "ndtools-mcp-client", Version: "0.1.0"},
		logger:      logging.Nop(),
		metrics:     observability.NopMetrics{},
		stopTimeout: DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithFields(logging.String("session_id", s.handle.ID.String()))
	s.metrics.RecordSessionState(context.Background(), string(StateInit))
	return s
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle returns a copy of the session handle
func (s *Session) Handle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// ServerInfo returns the peer's handshake result, or nil before READY
func (s *Session) ServerInfo() *protocol.InitializeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

func (s *Session) setState(ctx context.Context, state State) {
	s.state = state
	s.metrics.RecordSessionState(ctx, string(state))
	s.logger.Debug("Session state changed", logging.String("state", string(state)))
}

func (s *Session) withSession(ctx context.Context) context.Context {
	return logging.ContextWithSessionID(ctx, s.handle.ID.String())
}

// Connect acquires the transport and performs the handshake. It is only
// valid in INIT; any failure leaves the session CLOSED with the transport
// released.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateInit || s.connecting {
		state := s.state
		s.mu.Unlock()
		return mcperrors.NotConnected("connect", string(state))
	}
	s.connecting = true
	s.mu.Unlock()

	ctx = s.withSession(ctx)
	t := s.handle.Transport

	if err := t.Initialize(ctx); err != nil {
		s.abort(ctx)
		if mcperrors.IsConnectionError(err) || mcperrors.IsCancelled(err) {
			return err
		}
		return mcperrors.ConnectionFailed("transport", "", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.cancelLoop = cancel
	s.loopDone = done
	s.mu.Unlock()
	go func() {
		defer close(done)
		if err := t.Start(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("Transport read loop ended", logging.ErrorField(err))
		}
	}()

	result, err := s.handshake(ctx)
	if err != nil {
		s.abort(ctx)
		return err
	}

	s.mu.Lock()
	s.connecting = false
	if s.state == StateClosed {
		// Disconnect won the race; it already released the transport
		s.mu.Unlock()
		return mcperrors.NotConnected("connect", string(StateClosed))
	}
	s.serverInfo = result
	s.handle.Initialized = true
	s.setState(ctx, StateReady)
	s.mu.Unlock()

	s.logger.Info("Session ready",
		logging.String("server", result.ServerInfo.Name),
		logging.String("server_version", result.ServerInfo.Version),
		logging.String("protocol_version", result.ProtocolVersion))
	return nil
}

func (s *Session) handshake(ctx context.Context) (*protocol.InitializeResult, error) {
	t := s.handle.Transport
	params := &protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolRevision,
		ClientInfo:      s.clientInfo,
	}

	resp, err := t.SendRequest(ctx, protocol.MethodInitialize, params)
	if err != nil {
		return nil, transportFailure(err)
	}
	if resp.Error != nil {
		return nil, mcperrors.HandshakeRejected(resp.Error.Message, resp.Error)
	}

	var result protocol.InitializeResult
	if len(resp.Result) == 0 {
		return nil, mcperrors.HandshakeRejected("empty initialize result", nil)
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, mcperrors.DecodeFailed(protocol.MethodInitialize, err)
	}
	if !protocol.IsSupportedRevision(result.ProtocolVersion) {
		return nil, mcperrors.VersionMismatch(protocol.SupportedRevisions, result.ProtocolVersion)
	}

	if err := t.SendNotification(ctx, protocol.MethodInitialized, nil); err != nil {
		return nil, transportFailure(err)
	}
	return &result, nil
}

// abort moves a failed connect to CLOSED and releases the transport
func (s *Session) abort(ctx context.Context) {
	s.mu.Lock()
	s.connecting = false
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.setState(ctx, StateClosed)
	s.mu.Unlock()
	_ = s.release(ctx)
}

// Disconnect releases the transport and moves to CLOSED from any state.
// Calls after the first return nil without touching the transport.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.setState(ctx, StateClosed)
	s.mu.Unlock()

	return s.release(s.withSession(ctx))
}

func (s *Session) release(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stopTimeout)
	defer cancel()

	err := s.handle.Transport.Stop(stopCtx)

	s.mu.Lock()
	cancelLoop, done := s.cancelLoop, s.loopDone
	s.cancelLoop, s.loopDone = nil, nil
	s.mu.Unlock()

	if cancelLoop != nil {
		cancelLoop()
		select {
		case <-done:
		case <-stopCtx.Done():
			s.logger.Warn("Transport read loop did not exit before timeout")
		}
	}

	if err != nil {
		s.logger.Warn("Transport stop failed", logging.ErrorField(err))
		return transportFailure(err)
	}
	s.logger.Debug("Transport released")
	return nil
}

// Call issues method and decodes the result into out, which may be nil.
// It requires READY and performs no transport operation otherwise.
// Errors carry the session ID and the state the session was in.
func (s *Session) Call(ctx context.Context, method string, params, out interface{}) error {
	if err := s.call(ctx, method, params, out); err != nil {
		return s.tag(err)
	}
	return nil
}

func (s *Session) tag(err error) error {
	if mcpErr, ok := err.(mcperrors.MCPError); ok {
		return mcpErr.InSession(s.handle.ID.String(), string(s.State()))
	}
	return err
}

func (s *Session) call(ctx context.Context, method string, params, out interface{}) error {
	if state := s.State(); state != StateReady {
		return mcperrors.NotConnected(method, string(state))
	}

	ctx = s.withSession(ctx)
	resp, err := s.handle.Transport.SendRequest(ctx, method, params)
	if err != nil {
		return transportFailure(err)
	}
	if resp == nil {
		return mcperrors.ProtocolError("no response for " + method)
	}
	if resp.Error != nil {
		return mcperrors.FromJSONRPCError(method, resp.Error)
	}
	if out == nil {
		return nil
	}
	if len(resp.Result) == 0 {
		return mcperrors.DecodeFailed(method, errors.New("response has no result"))
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return mcperrors.DecodeFailed(method, err)
	}
	return nil
}

// Ping checks that the peer answers
func (s *Session) Ping(ctx context.Context) error {
	var result protocol.PingResult
	return s.Call(ctx, protocol.MethodPing, nil, &result)
}

// transportFailure maps an error from the transport onto the session
// taxonomy. Errors that already carry a category pass through.
func transportFailure(err error) error {
	if _, ok := mcperrors.AsMCPError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return mcperrors.OperationCancelled("request", err)
	}
	return mcperrors.ConnectionLost("transport", err)
}
