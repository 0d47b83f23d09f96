// Package mcpclient is an MCP client for Nexus Dashboard developer tools,
// together with the server that provides those tools.
//
// The client connects to one peer over a spawned command, stdio or HTTP,
// performs the initialize handshake, and exposes the peer's tools,
// resources and prompts. A command dispatcher turns lines such as
//
//	echo message="hello world"
//
// into tool calls and prints their results. The server publishes Nexus
// Dashboard VRF payloads, sample responses and prompts, and checks VRF
// attachment responses against the rules in pkg/ndfc.
//
// # Packages
//
//   - pkg/client: session-aware client facade
//   - pkg/dispatcher: command parsing, the interactive loop and demos
//   - pkg/server: MCP server, the ND tools catalog and the HTTP handler
//   - pkg/ndfc: VRF attachment types and validation predicates
//   - pkg/transport: stdio, command and HTTP transports
//   - pkg/session: the INIT, READY, CLOSED state machine
//   - pkg/errors: the error taxonomy shared by client and server
//   - pkg/config: YAML, .env and environment configuration
//   - pkg/auth: API keys for the HTTP endpoint
//
// # Connecting
//
//	t, err := mcpclient.NewTransport(transport.TransportConfig{
//	    Type:    transport.TransportTypeCommand,
//	    Command: "ndtools-server",
//	})
//	if err != nil {
//	    return err
//	}
//	return mcpclient.Run(ctx, t, func(ctx context.Context, c *client.Client) error {
//	    d := mcpclient.NewDispatcher(c)
//	    return d.RunDemo(ctx, dispatcher.DemoAll)
//	})
//
// The cmd/mcp-client and cmd/ndtools-server binaries wire these pieces to
// configuration, logging, metrics and tracing.
package mcpclient
