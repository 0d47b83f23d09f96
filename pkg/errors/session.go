package errors

import (
	"fmt"
)

// ConnectionErrorData contains structured data for connection-related errors
type ConnectionErrorData struct {
	Transport string `json:"transport"`
	Endpoint  string `json:"endpoint,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// StateErrorData describes an operation attempted in the wrong session state
type StateErrorData struct {
	Operation string `json:"operation"`
	State     string `json:"state"`
}

// RemoteErrorData carries the failure payload reported by the peer
type RemoteErrorData struct {
	Method  string      `json:"method"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NotFoundData names the item the peer did not know
type NotFoundData struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func reasonOf(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}

// ConnectionFailed creates an error for a transport that could not be
// established. Retrying the connect is the caller's decision.
func ConnectionFailed(transport, endpoint string, cause error) MCPError {
	message := fmt.Sprintf("Failed to connect via %s", transport)
	if endpoint != "" {
		message = fmt.Sprintf("Failed to connect to %s via %s", endpoint, transport)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return WrapError(cause, CodeConnectionFailed, message, CategoryTransport, SeverityCritical).
		WithData(&ConnectionErrorData{
			Transport: transport,
			Endpoint:  endpoint,
			Reason:    reasonOf(cause),
		})
}

// ConnectionLost creates an error for a transport that failed mid-session
func ConnectionLost(transport string, cause error) MCPError {
	message := fmt.Sprintf("Connection lost on %s transport", transport)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}
	return WrapError(cause, CodeConnectionLost, message, CategoryTransport, SeverityError).
		WithData(&ConnectionErrorData{Transport: transport, Reason: reasonOf(cause)})
}

// NotConnected creates an error for an operation issued outside READY
func NotConnected(operation, state string) MCPError {
	return NewError(
		CodeNotConnected,
		fmt.Sprintf("Cannot %s: session is %s, not READY", operation, state),
		CategoryState,
		SeverityError,
	).WithData(&StateErrorData{Operation: operation, State: state})
}

// ProtocolError creates a generic protocol error
func ProtocolError(reason string) MCPError {
	return NewError(
		CodeProtocolError,
		fmt.Sprintf("Protocol error: %s", reason),
		CategoryProtocol,
		SeverityError,
	)
}

// HandshakeRejected creates an error for an initialize exchange the client cannot accept
func HandshakeRejected(reason string, cause error) MCPError {
	return WrapError(
		cause,
		CodeProtocolError,
		fmt.Sprintf("Handshake rejected: %s", reason),
		CategoryProtocol,
		SeverityCritical,
	)
}

// VersionMismatch creates an error for protocol version mismatches
func VersionMismatch(expected []string, actual string) MCPError {
	return NewError(
		CodeVersionMismatch,
		fmt.Sprintf("Protocol version mismatch: expected one of %v, got %q", expected, actual),
		CategoryProtocol,
		SeverityError,
	)
}

// DecodeFailed creates an error for a response that does not match the expected shape
func DecodeFailed(method string, cause error) MCPError {
	return WrapError(
		cause,
		CodeDecodeFailed,
		fmt.Sprintf("Failed to decode %s response: %s", method, reasonOf(cause)),
		CategoryProtocol,
		SeverityError,
	).WithContext(&Context{Method: method})
}

// RemoteCall creates an error for a call-level failure reported by the peer
func RemoteCall(method string, code int, message string, data interface{}) MCPError {
	return NewError(
		code,
		fmt.Sprintf("%s failed: %s", method, message),
		CategoryRemote,
		SeverityError,
	).WithData(&RemoteErrorData{
		Method:  method,
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// NotFound creates an error for a tool, prompt or resource unknown to the peer
func NotFound(kind, id string) MCPError {
	return NewError(
		CodeResourceNotFound,
		fmt.Sprintf("%s not found: %s", kind, id),
		CategoryNotFound,
		SeverityError,
	).WithData(&NotFoundData{Kind: kind, ID: id}).WithContext(&Context{Target: id})
}

// OperationCancelled creates an error for an operation stopped by its context
func OperationCancelled(operation string, cause error) MCPError {
	return WrapError(
		cause,
		CodeOperationCancelled,
		fmt.Sprintf("Operation cancelled: %s", operation),
		CategoryCancelled,
		SeverityInfo,
	)
}

// ValidationError creates a generic validation error
func ValidationError(message string) MCPError {
	return NewError(CodeValidationError, message, CategoryValidation, SeverityError)
}

// MissingParameter creates an error for a required parameter that was not supplied
func MissingParameter(name string) MCPError {
	return NewError(
		CodeMissingParameter,
		fmt.Sprintf("Missing required parameter: %s", name),
		CategoryValidation,
		SeverityError,
	)
}

// IsConnectionError reports whether err is a ConnectionError
func IsConnectionError(err error) bool {
	return IsCategory(err, CategoryTransport)
}

// IsNotConnected reports whether err is a NotConnectedError
func IsNotConnected(err error) bool {
	return IsCategory(err, CategoryState)
}

// IsProtocolError reports whether err is a ProtocolError
func IsProtocolError(err error) bool {
	return IsCategory(err, CategoryProtocol)
}

// IsRemoteCallError reports whether err is a RemoteCallError
func IsRemoteCallError(err error) bool {
	return IsCategory(err, CategoryRemote)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

// IsCancelled reports whether err is a cancellation
func IsCancelled(err error) bool {
	return IsCategory(err, CategoryCancelled)
}
