// Package server implements a small MCP peer that serves tools, resources
// and prompts from in-memory registries.
//
// A Server is transport independent. Register installs its handlers on
// anything that routes JSON-RPC methods, Serve runs it over a
// transport.Transport until the stream ends, and Handler exposes it over
// HTTP:
//
//	srv := server.New(server.WithName("ndtools"))
//	srv.AddTool(protocol.Tool{Name: "echo"}, func(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
//	    return protocol.TextResult(fmt.Sprint(args["message"])), nil
//	})
//	err := srv.Serve(ctx, transport.NewStdioTransport(os.Stdin, os.Stdout))
//
// NewNDToolsServer builds the Nexus Dashboard developer tool set on top of
// a content.FileProvider.
//
// Unknown tool, resource and prompt names are answered with JSON-RPC error
// -32002. A failing tool handler does not fail the call: its error text is
// returned as a result with isError set.
//
// WithPageSize splits list replies into pages linked by nextCursor.
package server
