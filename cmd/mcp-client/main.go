// Command mcp-client connects to an MCP server, runs the scripted demos and
// then reads tool calls from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ndtools/mcp-client/pkg/dispatcher"
	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
)

// Set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	err := newRootCommand(a).ExecuteContext(ctx)
	a.teardown()
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "\nClient terminated by user")
	}
	stop()
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process status. Interruption is a
// normal way to leave, a failed connection or any other error is not.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled), mcperrors.IsCancelled(err):
		return 0
	case errors.Is(err, dispatcher.ErrToolFailed):
		return 2
	default:
		return 1
	}
}
