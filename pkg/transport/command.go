package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/protocol"
)

// DefaultShutdownGrace is how long Stop waits for the child to exit after
// its stdin is closed before killing it.
const DefaultShutdownGrace = 3 * time.Second

// CommandTransport launches the peer as a child process and talks to it
// over the child's stdin and stdout. The child's stderr is forwarded to
// the logger line by line.
type CommandTransport struct {
	*BaseTransport
	command string
	args    []string
	env     []string
	dir     string
	grace   time.Duration
	logger  logging.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	stream   *StdioTransport
	kill     context.CancelFunc
	waitOnce sync.Once
	waitErr  error
	stopOnce sync.Once
}

// CommandOption configures a CommandTransport
type CommandOption func(*CommandTransport)

// WithCommandEnv appends KEY=VALUE pairs to the child's environment
func WithCommandEnv(env []string) CommandOption {
	return func(t *CommandTransport) {
		t.env = append(t.env, env...)
	}
}

// WithCommandDir sets the child's working directory
func WithCommandDir(dir string) CommandOption {
	return func(t *CommandTransport) {
		t.dir = dir
	}
}

// WithCommandLogger sets the logger receiving transport events and the
// child's stderr
func WithCommandLogger(logger logging.Logger) CommandOption {
	return func(t *CommandTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithShutdownGrace overrides DefaultShutdownGrace
func WithShutdownGrace(d time.Duration) CommandOption {
	return func(t *CommandTransport) {
		t.grace = d
	}
}

// NewCommandTransport creates a transport for the given executable. Nothing
// is spawned until Initialize.
func NewCommandTransport(command string, args []string, opts ...CommandOption) *CommandTransport {
	t := &CommandTransport{
		BaseTransport: NewBaseTransport(),
		command:       command,
		args:          args,
		grace:         DefaultShutdownGrace,
		logger:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.WithFields(logging.String("component", "command_transport"), logging.String("command", command))
	t.SetLogger(t.logger)
	return t
}

// Initialize spawns the child process. A child that cannot be started
// yields a ConnectionError.
func (t *CommandTransport) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return mcperrors.ProtocolError("command transport already initialized")
	}

	procCtx, kill := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, t.command, t.args...)
	cmd.Dir = t.dir
	if len(t.env) > 0 {
		cmd.Env = append(os.Environ(), t.env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		kill()
		return mcperrors.ConnectionFailed("command", t.command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		kill()
		return mcperrors.ConnectionFailed("command", t.command, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		kill()
		return mcperrors.ConnectionFailed("command", t.command, err)
	}

	if err := cmd.Start(); err != nil {
		kill()
		return mcperrors.ConnectionFailed("command", t.command, err)
	}

	t.logger.Debug("Peer process started", logging.Int("pid", cmd.Process.Pid))

	t.cmd = cmd
	t.kill = kill
	t.stream = newStreamTransport(t.BaseTransport, "command", stdout, stdin)
	t.stream.closers = []io.Closer{stdin}

	go t.forwardStderr(stderr)
	return nil
}

func (t *CommandTransport) forwardStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		t.logger.Debug("peer stderr", logging.String("line", scanner.Text()))
	}
}

func (t *CommandTransport) current() (*StdioTransport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stream == nil {
		return nil, mcperrors.ConnectionLost("command", errors.New("process not started"))
	}
	return t.stream, nil
}

// Start runs the read loop over the child's stdout
func (t *CommandTransport) Start(ctx context.Context) error {
	stream, err := t.current()
	if err != nil {
		return err
	}
	return stream.Start(ctx)
}

// SendRequest sends a request to the child and waits for its response
func (t *CommandTransport) SendRequest(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	stream, err := t.current()
	if err != nil {
		return nil, err
	}
	return stream.SendRequest(ctx, method, params)
}

// SendNotification sends a one-way message to the child
func (t *CommandTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	stream, err := t.current()
	if err != nil {
		return err
	}
	return stream.SendNotification(ctx, method, params)
}

// Stop closes the child's stdin and waits for it to exit, killing it
// after the grace period or when ctx ends first.
func (t *CommandTransport) Stop(ctx context.Context) error {
	var stopErr error

	t.stopOnce.Do(func() {
		t.mu.Lock()
		cmd, stream, kill := t.cmd, t.stream, t.kill
		t.mu.Unlock()

		if cmd == nil {
			t.Cleanup()
			return
		}

		_ = stream.Stop(ctx)

		exited := make(chan struct{})
		go func() {
			t.wait(cmd)
			close(exited)
		}()

		select {
		case <-exited:
		case <-time.After(t.grace):
			t.logger.Warn("Peer did not exit in time, killing it")
			kill()
			<-exited
		case <-ctx.Done():
			kill()
			<-exited
		}
		kill()

		var exitErr *exec.ExitError
		if t.waitErr != nil && !errors.As(t.waitErr, &exitErr) {
			stopErr = mcperrors.ConnectionLost("command", t.waitErr)
		}
		t.logger.Debug("Peer process exited", logging.ErrorField(t.waitErr))
	})

	return stopErr
}

func (t *CommandTransport) wait(cmd *exec.Cmd) {
	t.waitOnce.Do(func() {
		t.waitErr = cmd.Wait()
	})
}
