// Package transport moves JSON-RPC 2.0 messages between an MCP client and
// its peer.
//
// # Supported Transport Types
//
// StdioTransport:
//   - newline-delimited JSON over any reader/writer pair
//   - used directly for stdio servers and io.Pipe tests
//
// CommandTransport:
//   - spawns the peer as a child process on Initialize
//   - talks over the child's stdin/stdout, forwards its stderr to the logger
//   - Stop closes stdin, waits for the child, kills it after a grace period
//
// HTTPTransport:
//   - POSTs each message to one endpoint
//   - accepts application/json replies or text/event-stream replies
//   - tracks the Mcp-Session-Id header assigned by the peer
//
// # Usage
//
//	t, err := transport.NewTransport(transport.TransportConfig{
//	    Type:    transport.TransportTypeCommand,
//	    Command: "ndtools-server",
//	    Args:    []string{"--transport", "stdio"},
//	})
//	if err != nil {
//	    return err
//	}
//	if err := t.Initialize(ctx); err != nil {
//	    return err
//	}
//	go t.Start(ctx)
//
// SendRequest returns the peer's response even when it carries a JSON-RPC
// error object; the error return is reserved for transport failures, which
// are reported as errors of the transport category from package errors.
//
// # Middleware
//
// Middleware wraps a Transport. TimeoutMiddleware bounds requests without a
// deadline and ObservabilityMiddleware adds structured logs and in-process
// counters. Prometheus metrics and tracing live in package observability.
package transport
