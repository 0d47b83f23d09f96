package mcpclient_test

import (
	"context"
	"fmt"
	"io"
	"os"

	mcpclient "github.com/ndtools/mcp-client"
	"github.com/ndtools/mcp-client/pkg/client"
	"github.com/ndtools/mcp-client/pkg/dispatcher"
	"github.com/ndtools/mcp-client/pkg/protocol"
	"github.com/ndtools/mcp-client/pkg/server"
	"github.com/ndtools/mcp-client/pkg/transport"
)

// connect serves s in memory and returns the client side
func connect(s *server.Server) (transport.Transport, <-chan error) {
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(context.Background(), mcpclient.NewStdioTransport(c2sR, s2cW, transport.WithCloseOnStop(s2cW)))
	}()
	return mcpclient.NewStdioTransport(s2cR, c2sW, transport.WithCloseOnStop(c2sW)), done
}

func greeter() *server.Server {
	s := mcpclient.NewServer(server.WithName("greeter"))
	s.AddTool(protocol.Tool{Name: "greet", Description: "Say hello"},
		func(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
			return protocol.TextResult(fmt.Sprintf("Hello, %v!", args["name"])), nil
		})
	return s
}

func Example() {
	t, done := connect(greeter())

	err := mcpclient.Run(context.Background(), t, func(ctx context.Context, c *client.Client) error {
		d := mcpclient.NewDispatcher(c, dispatcher.WithOutput(os.Stdout))
		d.Execute(ctx, "list")
		d.Execute(ctx, `greet name="Nexus Dashboard"`)
		d.Execute(ctx, "wave")
		return nil
	})
	if err != nil {
		fmt.Println(err)
	}
	<-done
	// Output:
	// - greet: Say hello
	// Hello, Nexus Dashboard!
	// Error: Unknown tool: wave
}

func ExampleIsNotFound() {
	t, done := connect(greeter())

	_ = mcpclient.Run(context.Background(), t, func(ctx context.Context, c *client.Client) error {
		_, err := c.ReadResource(ctx, "file:///missing.md")
		fmt.Println(mcpclient.IsNotFound(err), mcpclient.IsRemoteCallError(err))
		return nil
	})
	<-done
	// Output: true false
}
