package errors

// JSON-RPC 2.0 Standard Error Codes
const (
	// ParseError indicates invalid JSON was received
	CodeParseError int = -32700

	// InvalidRequest indicates the JSON sent is not a valid Request object
	CodeInvalidRequest int = -32600

	// MethodNotFound indicates the method does not exist / is not available
	CodeMethodNotFound int = -32601

	// InvalidParams indicates invalid method parameter(s)
	CodeInvalidParams int = -32602

	// InternalError indicates internal JSON-RPC error
	CodeInternalError int = -32603
)

// MCP-Specific Error Codes
const (
	// Session state errors (-32000 to -32099)
	CodeServerInitError int = -32000 // Error during server initialization
	CodeNotConnected    int = -32001 // Session is not in the READY state
	CodePeerNotFound    int = -32002 // Not-found code used by MCP peers

	// Resource Errors (-32200 to -32299)
	CodeResourceNotFound int = -32200 // Requested resource, tool or prompt not found

	// Operation Errors (-32300 to -32399)
	CodeOperationCancelled int = -32300 // Operation was cancelled
	CodeRemoteCallFailed   int = -32302 // Peer reported a call-level failure

	// Transport Errors (-32500 to -32599)
	CodeTransportError   int = -32500 // Generic transport error
	CodeConnectionFailed int = -32501 // Failed to establish connection
	CodeConnectionLost   int = -32502 // Connection lost during operation

	// Validation Errors (-32750 to -32799)
	CodeValidationError  int = -32750 // Generic validation error
	CodeMissingParameter int = -32751 // Required parameter missing

	// Protocol Errors (-32900 to -32999)
	CodeProtocolError   int = -32900 // Generic protocol error
	CodeVersionMismatch int = -32901 // Protocol version mismatch
	CodeDecodeFailed    int = -32904 // Response could not be decoded
)

// ErrorCodeInfo provides human-readable information about error codes
type ErrorCodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

// errorCodeRegistry maps error codes to their information
var errorCodeRegistry = map[int]ErrorCodeInfo{
	// JSON-RPC Standard Errors
	CodeParseError:     {CodeParseError, "ParseError", "Invalid JSON was received", CategoryProtocol, SeverityError},
	CodeInvalidRequest: {CodeInvalidRequest, "InvalidRequest", "Invalid Request object", CategoryProtocol, SeverityError},
	CodeMethodNotFound: {CodeMethodNotFound, "MethodNotFound", "Method does not exist", CategoryProtocol, SeverityError},
	CodeInvalidParams:  {CodeInvalidParams, "InvalidParams", "Invalid method parameters", CategoryValidation, SeverityError},
	CodeInternalError:  {CodeInternalError, "InternalError", "Internal JSON-RPC error", CategoryInternal, SeverityError},

	// Session state
	CodeServerInitError: {CodeServerInitError, "ServerInitError", "Server initialization failed", CategoryInternal, SeverityCritical},
	CodeNotConnected:    {CodeNotConnected, "NotConnected", "Session not connected", CategoryState, SeverityError},
	CodePeerNotFound:    {CodePeerNotFound, "NotFound", "Referenced name or URI unknown to the peer", CategoryNotFound, SeverityError},

	// Resource Errors
	CodeResourceNotFound: {CodeResourceNotFound, "ResourceNotFound", "Resource not found", CategoryNotFound, SeverityError},

	// Operation Errors
	CodeOperationCancelled: {CodeOperationCancelled, "OperationCancelled", "Operation cancelled", CategoryCancelled, SeverityInfo},
	CodeRemoteCallFailed:   {CodeRemoteCallFailed, "RemoteCallFailed", "Peer reported a failure", CategoryRemote, SeverityError},

	// Transport Errors
	CodeTransportError:   {CodeTransportError, "TransportError", "Transport error", CategoryTransport, SeverityError},
	CodeConnectionFailed: {CodeConnectionFailed, "ConnectionFailed", "Connection failed", CategoryTransport, SeverityCritical},
	CodeConnectionLost:   {CodeConnectionLost, "ConnectionLost", "Connection lost", CategoryTransport, SeverityError},

	// Validation Errors
	CodeValidationError:  {CodeValidationError, "ValidationError", "Validation error", CategoryValidation, SeverityError},
	CodeMissingParameter: {CodeMissingParameter, "MissingParameter", "Required parameter missing", CategoryValidation, SeverityError},

	// Protocol Errors
	CodeProtocolError:   {CodeProtocolError, "ProtocolError", "Protocol error", CategoryProtocol, SeverityError},
	CodeVersionMismatch: {CodeVersionMismatch, "VersionMismatch", "Protocol version mismatch", CategoryProtocol, SeverityError},
	CodeDecodeFailed:    {CodeDecodeFailed, "DecodeFailed", "Response could not be decoded", CategoryProtocol, SeverityError},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, exists := errorCodeRegistry[code]
	return info, exists
}

// GetErrorCodeName returns the name of an error code
func GetErrorCodeName(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}

// GetErrorCodeCategory returns the category of an error code
func GetErrorCodeCategory(code int) Category {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Category
	}
	return CategoryRemote
}

// GetErrorCodeSeverity returns the severity of an error code
func GetErrorCodeSeverity(code int) Severity {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Severity
	}
	return SeverityError
}

// IsStandardJSONRPCCode checks if a code is in the range reserved by JSON-RPC
func IsStandardJSONRPCCode(code int) bool {
	return code >= -32768 && code <= -32000
}
