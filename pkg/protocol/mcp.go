package protocol

import "encoding/json"

const (
	// ProtocolRevision is the protocol version requested by this client
	ProtocolRevision = "2025-03-26"

	// ProtocolRevisionLegacy is the previous revision still accepted from peers
	ProtocolRevisionLegacy = "2024-11-05"

	// Methods for lifecycle management
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"

	// Methods for server features
	MethodListTools     = "tools/list"
	MethodCallTool      = "tools/call"
	MethodListResources = "resources/list"
	MethodReadResource  = "resources/read"
	MethodListPrompts   = "prompts/list"
	MethodGetPrompt     = "prompts/get"

	// Notifications a peer may send at any time
	MethodLogMessage           = "notifications/message"
	MethodToolsListChanged     = "notifications/tools/list_changed"
	MethodResourcesListChanged = "notifications/resources/list_changed"
	MethodPromptsListChanged   = "notifications/prompts/list_changed"
)

// LogMessageParams is the payload of a notifications/message notification
type LogMessageParams struct {
	Level  string          `json:"level"`
	Logger string          `json:"logger,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// SupportedRevisions lists protocol versions a peer may answer with
var SupportedRevisions = []string{ProtocolRevision, ProtocolRevisionLegacy}

// IsSupportedRevision reports whether version is one this package can speak
func IsSupportedRevision(version string) bool {
	for _, v := range SupportedRevisions {
		if v == version {
			return true
		}
	}
	return false
}

// CapabilityType defines the types of capabilities in MCP
type CapabilityType string

const (
	CapabilityTools     CapabilityType = "tools"
	CapabilityResources CapabilityType = "resources"
	CapabilityPrompts   CapabilityType = "prompts"
	CapabilityLogging   CapabilityType = "logging"
)

// Implementation names a client or server and its version
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientCapabilities is sent by the client during the handshake
type ClientCapabilities struct {
	Experimental map[string]json.RawMessage `json:"experimental,omitempty"`
	Roots        *struct {
		ListChanged bool `json:"listChanged,omitempty"`
	} `json:"roots,omitempty"`
}

// ListChangedCapability marks a server feature that may notify about list changes
type ListChangedCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities is returned by the server during the handshake
type ServerCapabilities struct {
	Tools        *ListChangedCapability     `json:"tools,omitempty"`
	Resources    *ListChangedCapability     `json:"resources,omitempty"`
	Prompts      *ListChangedCapability     `json:"prompts,omitempty"`
	Logging      *struct{}                  `json:"logging,omitempty"`
	Experimental map[string]json.RawMessage `json:"experimental,omitempty"`
}

// Has reports whether the server advertised the given capability
func (c ServerCapabilities) Has(capability CapabilityType) bool {
	switch capability {
	case CapabilityTools:
		return c.Tools != nil
	case CapabilityResources:
		return c.Resources != nil
	case CapabilityPrompts:
		return c.Prompts != nil
	case CapabilityLogging:
		return c.Logging != nil
	}
	return false
}

// InitializeParams defines the parameters for the initialize request
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult defines the response for the initialize request
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// PingResult is the empty result of a ping
type PingResult struct{}
