package client

import (
	"context"

	"github.com/ndtools/mcp-client/pkg/protocol"
	"github.com/ndtools/mcp-client/pkg/transport"
)

// Run connects a new client over t, calls fn, and disconnects on every way
// out of fn: return, error, panic or cancellation of ctx. A disconnect
// failure is reported only when fn itself succeeded.
func Run(ctx context.Context, t transport.Transport, fn func(ctx context.Context, c *Client) error, opts ...Option) (err error) {
	c := New(t, opts...)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if derr := c.Disconnect(context.WithoutCancel(ctx)); derr != nil && err == nil {
			err = derr
		}
	}()
	return fn(ctx, c)
}

// FindTool returns the tool called name
func FindTool(tools []protocol.Tool, name string) (protocol.Tool, bool) {
	for _, tool := range tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return protocol.Tool{}, false
}

// ToolNames returns the tool names in listing order
func ToolNames(tools []protocol.Tool) []string {
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names
}

// FindResource returns the resource addressed by uri
func FindResource(resources []protocol.Resource, uri string) (protocol.Resource, bool) {
	for _, res := range resources {
		if res.URI == uri {
			return res, true
		}
	}
	return protocol.Resource{}, false
}

// FindPrompt returns the prompt called name
func FindPrompt(prompts []protocol.Prompt, name string) (protocol.Prompt, bool) {
	for _, prompt := range prompts {
		if prompt.Name == name {
			return prompt, true
		}
	}
	return protocol.Prompt{}, false
}
