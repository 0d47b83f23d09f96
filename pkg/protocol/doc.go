// Package protocol defines the JSON-RPC envelope and the MCP message shapes
// spoken between the client session and a peer.
//
// # Package Organization
//
//   - jsonrpc.go: JSON-RPC 2.0 requests, responses, notifications and errors
//   - mcp.go: method names, protocol revisions and the initialize handshake
//   - tools.go, resources.go, prompts.go: descriptors and their result shapes
//   - content.go: the tagged Content item shared by all results
//
// # Decoding
//
// All result types decode leniently: fields the peer sends that are not
// modelled here are ignored. Content items other than text keep the raw
// JSON the peer sent so nothing is lost on the way to the caller.
package protocol
