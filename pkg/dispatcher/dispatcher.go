package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/observability"
	"github.com/ndtools/mcp-client/pkg/protocol"
)

// Client is the part of the client facade the dispatcher drives
type Client interface {
	ListTools(ctx context.Context) ([]protocol.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error)
	ListResources(ctx context.Context) ([]protocol.Resource, error)
	ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error)
	ListPrompts(ctx context.Context) ([]protocol.Prompt, error)
	GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*protocol.GetPromptResult, error)
}

// Command outcomes recorded in metrics
const (
	OutcomeOK        = "ok"
	OutcomeToolError = "tool_error"
	OutcomeError     = "error"
)

// Dispatcher executes command lines against a client
type Dispatcher struct {
	client  Client
	out     io.Writer
	logger  logging.Logger
	metrics observability.MetricsProvider
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithOutput sets where results and diagnostics are written (default stdout)
func WithOutput(w io.Writer) Option {
	return func(d *Dispatcher) {
		d.out = w
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics counts commands by kind and outcome
func WithMetrics(metrics observability.MetricsProvider) Option {
	return func(d *Dispatcher) {
		if metrics != nil {
			d.metrics = metrics
		}
	}
}

// New creates a dispatcher for c
func New(c Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:  c,
		out:     os.Stdout,
		logger:  logging.Nop(),
		metrics: observability.NopMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithFields(logging.String("component", "dispatcher"))
	return d
}

// Banner is printed when the interactive loop starts
const Banner = `Enter tool calls in the format: tool_name arg1=value1 arg2=value2
Type 'list' to see available tools
Type 'quit' to exit`

// Run reads and executes lines until quit or exit, the end of input, an
// interrupt, or cancellation of ctx. A failing command is reported and the
// loop goes on. Run returns ctx.Err() when cancelled and nil otherwise.
func (d *Dispatcher) Run(ctx context.Context, r LineReader) error {
	for {
		line, err := readLine(ctx, r)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, ErrInterrupted):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("read command: %w", err)
		}

		if quit := d.Execute(ctx, line); quit {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// readLine waits for one line or for ctx, closing r when ctx wins
func readLine(ctx context.Context, r LineReader) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.ReadLine()
		ch <- result{line, err}
	}()

	select {
	case res := <-ch:
		return res.line, res.err
	case <-ctx.Done():
		_ = r.Close()
		return "", ctx.Err()
	}
}

// Execute runs one line and reports whether the loop should stop. Blank
// lines produce no output.
func (d *Dispatcher) Execute(ctx context.Context, line string) (quit bool) {
	cmd, ok := ParseLine(line)
	if !ok {
		return false
	}

	outcome := OutcomeOK
	var err error
	switch cmd.Kind {
	case KindQuit:
		d.metrics.RecordCommand(ctx, cmd.Kind.String(), outcome)
		return true
	case KindList:
		err = d.list(ctx)
	case KindTool:
		var toolFailed bool
		toolFailed, err = d.call(ctx, cmd)
		if toolFailed {
			outcome = OutcomeToolError
		}
	}

	if err != nil {
		outcome = OutcomeError
		d.logger.Debug("Command failed",
			logging.String("kind", cmd.Kind.String()),
			logging.String("tool", cmd.Tool),
			logging.ErrorField(err))
		d.printError(err)
	}
	d.metrics.RecordCommand(ctx, cmd.Kind.String(), outcome)
	return false
}

func (d *Dispatcher) printError(err error) {
	fmt.Fprintf(d.out, "Error: %s\n", err)
}

func (d *Dispatcher) list(ctx context.Context) error {
	tools, err := d.client.ListTools(ctx)
	if err != nil {
		return err
	}
	return RenderTools(d.out, tools)
}

func (d *Dispatcher) call(ctx context.Context, cmd Command) (toolFailed bool, err error) {
	d.logger.Debug("Calling tool",
		logging.String("tool", cmd.Tool),
		logging.Int("args", len(cmd.Args)))

	result, err := d.client.CallTool(ctx, cmd.Tool, cmd.Args)
	if err != nil {
		return false, err
	}
	return result.IsError, Render(d.out, result)
}
