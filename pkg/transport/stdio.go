package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/protocol"
)

const (
	initialScanBuffer = 64 * 1024
	maxMessageSize    = 16 * 1024 * 1024
)

// StdioTransport exchanges newline-delimited JSON-RPC messages over a
// reader/writer pair: the process's stdin/stdout, a child's pipes, or an
// io.Pipe in tests.
type StdioTransport struct {
	*BaseTransport
	name      string
	reader    io.Reader
	writer    io.Writer
	rawWriter *bufio.Writer
	closers   []io.Closer
	mutex     sync.Mutex // protects rawWriter
	done      chan struct{}
	stopOnce  sync.Once
}

// StdioOption configures a StdioTransport
type StdioOption func(*StdioTransport)

// WithStdioLogger sets the logger for dropped and malformed messages
func WithStdioLogger(logger logging.Logger) StdioOption {
	return func(t *StdioTransport) {
		t.SetLogger(logger)
	}
}

// WithCloseOnStop closes the given resources when the transport stops,
// typically the write end of a pipe so the peer sees EOF.
func WithCloseOnStop(closers ...io.Closer) StdioOption {
	return func(t *StdioTransport) {
		t.closers = append(t.closers, closers...)
	}
}

// NewStdioTransport creates a transport reading messages from r and writing
// them to w.
func NewStdioTransport(r io.Reader, w io.Writer, opts ...StdioOption) *StdioTransport {
	t := newStreamTransport(NewBaseTransport(), "stdio", r, w)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func newStdioTransport(config TransportConfig) *StdioTransport {
	reader := config.StdioReader
	writer := config.StdioWriter
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return NewStdioTransport(reader, writer, WithStdioLogger(config.Logger))
}

func newStreamTransport(base *BaseTransport, name string, r io.Reader, w io.Writer) *StdioTransport {
	return &StdioTransport{
		BaseTransport: base,
		name:          name,
		reader:        r,
		writer:        w,
		rawWriter:     bufio.NewWriter(w),
		done:          make(chan struct{}),
	}
}

// Initialize is a no-op: the streams already exist.
func (t *StdioTransport) Initialize(ctx context.Context) error {
	return nil
}

// Start reads messages until EOF, Stop or cancellation. When the loop
// ends every pending request fails with a connection-lost error.
func (t *StdioTransport) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, initialScanBuffer), maxMessageSize)
	scannerDone := make(chan struct{})

	g.Go(func() error {
		defer close(scannerDone)
		defer t.Cleanup()

		for scanner.Scan() {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-t.done:
				return nil
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			data := make([]byte, len(line))
			copy(data, line)
			t.processMessage(gctx, data)
		}

		if err := scanner.Err(); err != nil && !t.stopped() {
			return mcperrors.ConnectionLost(t.name, err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			t.closeReader()
			return gctx.Err()
		case <-t.done:
			t.closeReader()
			return nil
		case <-scannerDone:
			return nil
		}
	})

	return g.Wait()
}

func (t *StdioTransport) closeReader() {
	if closer, ok := t.reader.(io.Closer); ok && t.reader != os.Stdin {
		_ = closer.Close()
	}
}

func (t *StdioTransport) stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Stop flushes pending output, closes the configured resources and fails
// all pending requests.
func (t *StdioTransport) Stop(ctx context.Context) error {
	var flushErr error

	t.stopOnce.Do(func() {
		close(t.done)

		t.mutex.Lock()
		flushErr = t.rawWriter.Flush()
		t.mutex.Unlock()

		for _, c := range t.closers {
			_ = c.Close()
		}
		t.closeReader()
		t.Cleanup()
	})

	if flushErr != nil {
		return mcperrors.ConnectionLost(t.name, flushErr)
	}
	return nil
}

// Send writes one message followed by a newline and flushes it
func (t *StdioTransport) Send(data []byte) error {
	if t.stopped() {
		return mcperrors.ConnectionLost(t.name, ErrTransportClosed)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, err := t.rawWriter.Write(data); err != nil {
		return mcperrors.ConnectionLost(t.name, err)
	}
	if err := t.rawWriter.WriteByte('\n'); err != nil {
		return mcperrors.ConnectionLost(t.name, err)
	}
	if err := t.rawWriter.Flush(); err != nil {
		return mcperrors.ConnectionLost(t.name, err)
	}
	return nil
}

func (t *StdioTransport) processMessage(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.Logger().Error("Panic in message processing",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
		}
	}()
	t.dispatchMessage(ctx, data, t.Send)
}

// SendRequest sends a request and waits for its response
func (t *StdioTransport) SendRequest(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	id := t.GenerateID()

	ch, err := t.RegisterPending(id)
	if err != nil {
		return nil, mcperrors.ConnectionLost(t.name, err)
	}

	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		t.CancelPending(id)
		return nil, mcperrors.WrapError(err, mcperrors.CodeInvalidParams, "failed to encode params",
			mcperrors.CategoryValidation, mcperrors.SeverityError)
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.CancelPending(id)
		return nil, mcperrors.WrapError(err, mcperrors.CodeInvalidParams, "failed to encode request",
			mcperrors.CategoryValidation, mcperrors.SeverityError)
	}

	if err := t.Send(data); err != nil {
		t.CancelPending(id)
		return nil, err
	}

	return t.WaitForResponse(ctx, id, ch)
}

// SendNotification sends a one-way message
func (t *StdioTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	notification, err := protocol.NewNotification(method, params)
	if err != nil {
		return mcperrors.WrapError(err, mcperrors.CodeInvalidParams, "failed to encode params",
			mcperrors.CategoryValidation, mcperrors.SeverityError)
	}
	data, err := json.Marshal(notification)
	if err != nil {
		return mcperrors.WrapError(err, mcperrors.CodeInvalidParams, "failed to encode notification",
			mcperrors.CategoryValidation, mcperrors.SeverityError)
	}
	return t.Send(data)
}
