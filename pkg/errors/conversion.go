package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/ndtools/mcp-client/pkg/protocol"
)

// unknownNamePrefixes are the message prefixes peers without a not-found
// code use when the name or URI a method targets does not exist
var unknownNamePrefixes = map[string]string{
	protocol.MethodCallTool:     "unknown tool",
	protocol.MethodReadResource: "unknown resource",
	protocol.MethodGetPrompt:    "unknown prompt",
}

func namesUnknownTarget(method, message string) bool {
	prefix, ok := unknownNamePrefixes[method]
	return ok && strings.HasPrefix(strings.ToLower(message), prefix)
}

// FromJSONRPCError classifies an error reported by the peer for method.
// The not-found codes -32002 and -32200 become NotFound errors. So does a
// message of the form "Unknown tool: x" on tools/call, and likewise for
// resources/read and prompts/get, since some peers report unknown names
// with a generic code. Everything else, including other messages that
// mention something missing, is a RemoteCall error carrying the peer's
// payload.
func FromJSONRPCError(method string, jsonrpcErr *protocol.Error) MCPError {
	if jsonrpcErr == nil {
		return nil
	}

	code := int(jsonrpcErr.Code)
	if code == CodePeerNotFound || code == CodeResourceNotFound || namesUnknownTarget(method, jsonrpcErr.Message) {
		return NewError(
			code,
			jsonrpcErr.Message,
			CategoryNotFound,
			SeverityError,
		).WithData(&RemoteErrorData{
			Method:  method,
			Code:    code,
			Message: jsonrpcErr.Message,
			Data:    jsonrpcErr.Data,
		})
	}

	return RemoteCall(method, code, jsonrpcErr.Message, jsonrpcErr.Data)
}

// ToJSONRPCError converts any error to a JSON-RPC error object
func ToJSONRPCError(err error) *protocol.Error {
	if err == nil {
		return nil
	}

	var rpcErr *protocol.Error
	if stderrors.As(err, &rpcErr) {
		return rpcErr
	}

	if mcpErr, ok := AsMCPError(err); ok {
		code := mcpErr.Code()
		if mcpErr.Category() == CategoryNotFound {
			code = CodePeerNotFound
		}
		return &protocol.Error{
			Code:    protocol.ErrorCode(code),
			Message: mcpErr.Message(),
			Data:    mcpErr.Data(),
		}
	}

	return &protocol.Error{
		Code:    protocol.InternalError,
		Message: err.Error(),
	}
}

// ToJSONRPCResponse converts any error to a JSON-RPC error response
func ToJSONRPCResponse(err error, requestID interface{}) (*protocol.Response, error) {
	if err == nil {
		return nil, fmt.Errorf("cannot create error response from nil error")
	}
	rpcErr := ToJSONRPCError(err)
	return protocol.NewErrorResponse(requestID, rpcErr.Code, rpcErr.Message, rpcErr.Data), nil
}

// ConvertStandardError converts common Go errors to appropriate MCP errors
func ConvertStandardError(err error) MCPError {
	if err == nil {
		return nil
	}

	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return OperationCancelled("request", err)
	}

	var syntaxErr *json.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return WrapError(err, CodeParseError, "Invalid JSON", CategoryProtocol, SeverityError)
	}

	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return WrapError(err, CodeInvalidParams, "Invalid parameter type", CategoryValidation, SeverityError)
	}

	return WrapError(err, CodeInternalError, err.Error(), CategoryInternal, SeverityError)
}

// CombineErrors combines multiple errors into a single MCPError
func CombineErrors(errs []error) MCPError {
	valid := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			valid = append(valid, err)
		}
	}

	switch len(valid) {
	case 0:
		return nil
	case 1:
		return ConvertStandardError(valid[0])
	}

	messages := make([]string, len(valid))
	for i, err := range valid {
		messages[i] = err.Error()
	}

	return WrapError(
		stderrors.Join(valid...),
		CodeInternalError,
		fmt.Sprintf("Multiple errors occurred: %s", strings.Join(messages, "; ")),
		CategoryInternal,
		SeverityError,
	).WithData(map[string]interface{}{"error_count": len(valid)})
}
