package graph

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/lazygraph/internal/nodepath"
)

// Error codes.
const (
	CodeError                = "Error"
	CodeUnsupportedOperation = "UnsupportedOperation"
	CodeInvalidChildKey      = "InvalidChildKey"
	CodeNetworkError         = "NetworkError"
	CodeRemoteError          = "RemoteError"
	CodeAbortedError         = "AbortedError"
	CodeTimeoutError         = "TimeoutError"
)

// Error is a domain error. Errors travel through the graph as error sentinel
// nodes; Error is their Go form.
type Error struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Data       any           `json:"data,omitempty"`
	Path       nodepath.Path `json:"path,omitempty"`
	RemotePath nodepath.Path `json:"remotePath,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors by code, so errors.Is(err, ErrNetwork) holds for any
// network error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithPath returns a copy of e located at path.
func (e *Error) WithPath(path nodepath.Path) *Error {
	out := *e
	out.Path = path
	return &out
}

// Sentinels for errors.Is.
var (
	ErrUnsupportedOperation = &Error{Code: CodeUnsupportedOperation}
	ErrInvalidChildKey      = &Error{Code: CodeInvalidChildKey}
	ErrNetwork              = &Error{Code: CodeNetworkError}
	ErrRemote               = &Error{Code: CodeRemoteError}
	ErrAborted              = &Error{Code: CodeAbortedError}
	ErrTimeout              = &Error{Code: CodeTimeoutError}
)

// NewError creates a generic error.
func NewError(message string) *Error {
	return &Error{Code: CodeError, Message: message}
}

// Errorf creates a generic error with a formatted message.
func Errorf(format string, args ...any) *Error {
	return NewError(fmt.Sprintf(format, args...))
}

// UnsupportedOperation reports that nodes of typeName have no handler for op.
func UnsupportedOperation(typeName, op string) *Error {
	return &Error{
		Code:    CodeUnsupportedOperation,
		Message: fmt.Sprintf("%s node does not support %s operation", typeName, op),
		Data:    map[string]any{"type": typeName, "operation": op},
	}
}

// InvalidChildKey reports a get-child request for a key that does not exist.
func InvalidChildKey(key nodepath.Key) *Error {
	return &Error{
		Code:    CodeInvalidChildKey,
		Message: fmt.Sprintf("invalid child key %q", key.String()),
		Data:    map[string]any{"key": key.Value()},
	}
}

// NetworkError wraps a transport failure.
func NetworkError(err error) *Error {
	return &Error{Code: CodeNetworkError, Message: err.Error()}
}

// TimeoutError reports a request that did not complete in time.
func TimeoutError(message string) *Error {
	return &Error{Code: CodeTimeoutError, Message: message}
}

// AbortedError reports a request cancelled because nobody is interested in it
// any more.
func AbortedError(message string) *Error {
	return &Error{Code: CodeAbortedError, Message: message}
}

// RemoteError wraps an error produced by a remote graph.
func RemoteError(message string, data any) *Error {
	return &Error{Code: CodeRemoteError, Message: message, Data: data}
}

// AsError converts any Go error into an *Error, keeping domain errors as they
// are.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(err.Error())
}
