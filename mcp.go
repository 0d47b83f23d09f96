package mcpclient

import (
	"github.com/ndtools/mcp-client/pkg/client"
	"github.com/ndtools/mcp-client/pkg/config"
	"github.com/ndtools/mcp-client/pkg/dispatcher"
	"github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/server"
	"github.com/ndtools/mcp-client/pkg/transport"
)

// Direct access to the core components
var (
	// Run connects a client, calls fn and disconnects
	Run = client.Run

	// NewClient creates a client over a transport
	NewClient = client.New

	// NewDispatcher creates a command dispatcher for a connected client
	NewDispatcher = dispatcher.New

	// NewServer creates an empty MCP server
	NewServer = server.New

	// NewNDToolsServer creates the Nexus Dashboard developer tools server
	NewNDToolsServer = server.NewNDToolsServer

	// NewTransport creates a client transport from configuration
	NewTransport = transport.NewTransport

	// NewStdioTransport creates a transport over a reader and writer
	NewStdioTransport = transport.NewStdioTransport

	// NewHTTPTransport creates a transport for an HTTP endpoint
	NewHTTPTransport = transport.NewHTTPTransport

	// LoadConfig reads configuration from a file, a .env file and the environment
	LoadConfig = config.Load
)

// Error classification
var (
	IsConnectionError = errors.IsConnectionError
	IsNotConnected    = errors.IsNotConnected
	IsProtocolError   = errors.IsProtocolError
	IsRemoteCallError = errors.IsRemoteCallError
	IsNotFound        = errors.IsNotFound
	IsCancelled       = errors.IsCancelled
)
