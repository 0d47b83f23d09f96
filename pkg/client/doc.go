// Package client is the typed facade over an MCP session.
//
// A Client owns exactly one session, which owns exactly one transport. Every
// operation requires the session to be READY and fails with a NotConnected
// error otherwise, without touching the transport.
//
// # Connecting
//
// Run is the usual entry point; it guarantees the disconnect:
//
//	t := transport.NewCommandTransport("ndtools-server", []string{"--transport", "stdio"})
//	err := client.Run(ctx, t, func(ctx context.Context, c *client.Client) error {
//	    tools, err := c.ListTools(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    for _, tool := range tools {
//	        fmt.Printf("- %s: %s\n", tool.Name, tool.Description)
//	    }
//	    return nil
//	})
//
// # Failures
//
// Errors come from pkg/errors and are told apart with its predicates:
//
//   - IsConnectionError: the transport could not be acquired or broke
//   - IsNotConnected: the session is not READY
//   - IsProtocolError: the peer's answer could not be decoded
//   - IsRemoteCallError: the peer rejected the call
//   - IsNotFound: the tool, prompt or resource is unknown to the peer
//
// A tool that ran and failed is not an error: CallTool returns its result
// with IsError set and the caller has to check it.
package client
