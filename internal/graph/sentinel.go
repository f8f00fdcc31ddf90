package graph

import (
	"github.com/specialistvlad/lazygraph/internal/nodepath"
)

// Type names of the core node types.
const (
	ValueTypeName   = "value"
	PendingTypeName = "pending"
	ErrorTypeName   = "error"
)

// ValueType holds a plain JSON-like value. It supports no operations and is
// therefore terminal.
var ValueType = &NodeType{Name: ValueTypeName}

// PendingType is the sentinel for a value that is not available yet.
var PendingType = &NodeType{Name: PendingTypeName}

// ErrorType is the sentinel for a failed computation.
var ErrorType = &NodeType{Name: ErrorTypeName}

var (
	nilNode     = NewNode(ValueType, Props{"value": nil})
	pendingNode = NewNode(PendingType, nil)
)

// NewValue creates a value node.
func NewValue(v any) *Node {
	return NewNode(ValueType, Props{"value": v})
}

// Nil is the value node holding nil.
func Nil() *Node { return nilNode }

// Pending is the pending sentinel.
func Pending() *Node { return pendingNode }

// ErrorNode creates an error sentinel from err.
func ErrorNode(err *Error) *Node {
	code := err.Code
	if code == "" {
		code = CodeError
	}
	return NewNode(ErrorType, Props{
		"message":    err.Message,
		"code":       code,
		"data":       err.Data,
		"path":       err.Path.Values(),
		"remotePath": err.RemotePath.Values(),
	})
}

// ErrorFromNode converts an error sentinel definition back into an *Error.
// It returns nil for any other definition.
func ErrorFromNode(n *Node) *Error {
	if n == nil || n.typ.Name != ErrorTypeName {
		return nil
	}
	p := n.props
	e := &Error{Code: p.String("code"), Message: p.String("message"), Data: p["data"]}
	if list, ok := p["path"].([]any); ok && len(list) > 0 {
		e.Path, _ = nodepath.FromValues(list)
	}
	if list, ok := p["remotePath"].([]any); ok && len(list) > 0 {
		e.RemotePath, _ = nodepath.FromValues(list)
	}
	return e
}

// IsValue reports whether gn is a value node.
func IsValue(gn *GraphNode) bool { return gn != nil && gn.def.typ.Name == ValueTypeName }

// IsPending reports whether gn is the pending sentinel.
func IsPending(gn *GraphNode) bool { return gn != nil && gn.def.typ.Name == PendingTypeName }

// IsError reports whether gn is an error sentinel.
func IsError(gn *GraphNode) bool { return gn != nil && gn.def.typ.Name == ErrorTypeName }

// IsSentinel reports whether gn is pending or an error.
func IsSentinel(gn *GraphNode) bool { return IsPending(gn) || IsError(gn) }

// ErrorOf returns the error carried by an error sentinel. Errors without a
// path are located at the node's own path.
func ErrorOf(gn *GraphNode) *Error {
	e := ErrorFromNode(gn.def)
	if e == nil {
		return nil
	}
	if len(e.Path) == 0 {
		e.Path = gn.Path()
	}
	return e
}

// ValueOf returns the value held by a value node.
func ValueOf(gn *GraphNode) (any, bool) {
	if !IsValue(gn) {
		return nil, false
	}
	return gn.def.props["value"], true
}
