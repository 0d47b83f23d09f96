// Package pagination implements cursor paging for MCP list operations.
//
// A server cuts a registry into pages with Page and hands out the opaque
// cursor it returns. A client follows cursors with Collect until the peer
// stops returning one:
//
//	tools, err := pagination.Collect(ctx, func(ctx context.Context, cursor string) ([]protocol.Tool, string, error) {
//	    var result protocol.ListToolsResult
//	    err := call(ctx, protocol.MethodListTools, &protocol.ListToolsParams{Cursor: cursor}, &result)
//	    return result.Tools, result.NextCursor, err
//	})
//
// Cursors are only meaningful to the server that issued them.
package pagination
