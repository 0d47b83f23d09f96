// Package errors provides the structured error model shared by the session,
// the client facade and the peer server. Every error carries a JSON-RPC
// code, a category used for classification, and the session it surfaced in.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"
)

// Category is the taxonomy bucket an error belongs to. The Is* predicates
// test categories, never messages.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryNotFound   Category = "not_found"
	CategoryTransport  Category = "transport"
	CategoryState      Category = "state"
	CategoryRemote     Category = "remote"
	CategoryInternal   Category = "internal"
	CategoryCancelled  Category = "cancelled"
	CategoryProtocol   Category = "protocol"
)

// Severity indicates how critical an error is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context locates an error within a session: which session, in which
// lifecycle state, for which method and target.
type Context struct {
	SessionID string `json:"session_id,omitempty"`
	State     string `json:"state,omitempty"`
	Method    string `json:"method,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// Target is the tool name, prompt name or resource URI the call named
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// merge overlays the non-empty fields of other onto c
func (c Context) merge(other *Context) Context {
	if other == nil {
		return c
	}
	if other.SessionID != "" {
		c.SessionID = other.SessionID
	}
	if other.State != "" {
		c.State = other.State
	}
	if other.Method != "" {
		c.Method = other.Method
	}
	if other.RequestID != "" {
		c.RequestID = other.RequestID
	}
	if other.Target != "" {
		c.Target = other.Target
	}
	if !other.Timestamp.IsZero() {
		c.Timestamp = other.Timestamp
	}
	return c
}

// MCPError is implemented by every error the client and server produce
type MCPError interface {
	error

	// Code returns the JSON-RPC error code
	Code() int

	// Message returns a human-readable error message
	Message() string

	// Details returns detail appended after the message
	Details() string

	// Data returns the structured payload, e.g. *RemoteErrorData
	Data() interface{}

	Category() Category
	Severity() Severity

	// Context returns where the error surfaced; never nil
	Context() *Context

	// WithContext returns a copy whose context has the non-empty fields of ctx
	WithContext(ctx *Context) MCPError

	// InSession returns a copy tagged with the session and its state
	InSession(sessionID, state string) MCPError

	WithDetail(detail string) MCPError
	WithData(data interface{}) MCPError

	Unwrap() error
}

type baseError struct {
	code     int
	message  string
	details  string
	data     interface{}
	category Category
	severity Severity
	context  Context
	cause    error
}

func (e *baseError) Error() string {
	if e.details != "" {
		return fmt.Sprintf("%s: %s", e.message, e.details)
	}
	return e.message
}

func (e *baseError) Code() int          { return e.code }
func (e *baseError) Message() string    { return e.message }
func (e *baseError) Details() string    { return e.details }
func (e *baseError) Data() interface{}  { return e.data }
func (e *baseError) Category() Category { return e.category }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) Unwrap() error      { return e.cause }

func (e *baseError) Context() *Context {
	c := e.context
	return &c
}

func (e *baseError) clone() *baseError {
	c := *e
	return &c
}

func (e *baseError) remote() (*RemoteErrorData, bool) {
	data, ok := e.data.(*RemoteErrorData)
	return data, ok
}

func (e *baseError) WithContext(ctx *Context) MCPError {
	c := e.clone()
	c.context = c.context.merge(ctx)
	return c
}

func (e *baseError) InSession(sessionID, state string) MCPError {
	return e.WithContext(&Context{SessionID: sessionID, State: state})
}

func (e *baseError) WithDetail(detail string) MCPError {
	c := e.clone()
	if c.details != "" {
		c.details = fmt.Sprintf("%s; %s", c.details, detail)
	} else {
		c.details = detail
	}
	return c
}

func (e *baseError) WithData(data interface{}) MCPError {
	c := e.clone()
	c.data = data
	if remote, ok := c.remote(); ok && c.context.Method == "" {
		c.context.Method = remote.Method
	}
	return c
}

// errorJSON is the wire form used when an error is logged or returned
// as structured data
type errorJSON struct {
	Code     int         `json:"code"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Category Category    `json:"category"`
	Severity Severity    `json:"severity"`
	Data     interface{} `json:"data,omitempty"`
	Context  Context     `json:"context"`
	Cause    string      `json:"cause,omitempty"`
}

// MarshalJSON encodes the error with its session context and payload
func (e *baseError) MarshalJSON() ([]byte, error) {
	out := errorJSON{
		Code:     e.code,
		Message:  e.message,
		Details:  e.details,
		Category: e.category,
		Severity: e.severity,
		Data:     e.data,
		Context:  e.context,
	}
	if e.cause != nil {
		out.Cause = e.cause.Error()
	}
	return json.Marshal(out)
}

// NewError creates an error with no underlying cause
func NewError(code int, message string, category Category, severity Severity) MCPError {
	return WrapError(nil, code, message, category, severity)
}

// WrapError creates an error that unwraps to err
func WrapError(err error, code int, message string, category Category, severity Severity) MCPError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    err,
		context:  Context{Timestamp: time.Now()},
	}
}

// AsMCPError finds the first MCPError in err's chain
func AsMCPError(err error) (MCPError, bool) {
	if err == nil {
		return nil, false
	}
	var mcpErr MCPError
	if stderrors.As(err, &mcpErr) {
		return mcpErr, true
	}
	return nil, false
}

// RemotePayload returns what the peer reported for the first remote
// failure in err's chain. It is set for RemoteCall errors and for
// NotFound errors classified from a peer response.
func RemotePayload(err error) (*RemoteErrorData, bool) {
	for err != nil {
		if be, ok := err.(*baseError); ok {
			if data, ok := be.remote(); ok {
				return data, true
			}
		}
		err = stderrors.Unwrap(err)
	}
	return nil, false
}

// IsCategory checks if an error is of a specific category
func IsCategory(err error, category Category) bool {
	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr.Category() == category
	}
	return false
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code int) bool {
	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr.Code() == code
	}
	return false
}
