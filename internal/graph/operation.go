package graph

import (
	"strings"

	"github.com/specialistvlad/lazygraph/internal/nodepath"
)

// Operation names.
const (
	OpEvaluate       = "evaluate"
	OpGetChild       = "get-child"
	OpGetItems       = "get-items"
	OpCall           = "call"
	OpSet            = "set"
	OpReset          = "reset"
	OpLength         = "length"
	OpTransformItems = "transform-items"

	opResolve = "$resolve"
)

// Operation is a typed request executed against a graph node.
type Operation struct {
	name  string
	props Props
	key   string
	held  []*GraphNode
}

// NewOperation creates an operation. Properties follow the same normalization
// rules as definition properties.
func NewOperation(name string, props Props) *Operation {
	var held []*GraphNode
	norm := make(Props, len(props))
	for k, v := range props {
		norm[k] = normalize(v, &held)
	}
	var b strings.Builder
	b.WriteString(name)
	writeCanonical(&b, map[string]any(norm))
	return &Operation{name: name, props: norm, key: b.String(), held: held}
}

// Name returns the operation name.
func (o *Operation) Name() string { return o.name }

// Props returns the operation properties.
func (o *Operation) Props() Props { return o.props }

// Key returns the canonical key, unique per (name, properties).
func (o *Operation) Key() string { return o.key }

func (o *Operation) String() string { return o.name }

var (
	evaluateOp = NewOperation(OpEvaluate, nil)
	lengthOp   = NewOperation(OpLength, nil)
	resetOp    = NewOperation(OpReset, nil)
)

// Evaluate asks a node for the next node in its resolution chain.
func Evaluate() *Operation { return evaluateOp }

// Length asks a collection for its item count.
func Length() *Operation { return lengthOp }

// Reset asks a stateful node to return to its initial state.
func Reset() *Operation { return resetOp }

// GetChild asks a container for the child under key.
func GetChild(key nodepath.Key) *Operation {
	return NewOperation(OpGetChild, Props{"key": key})
}

// GetItems asks a collection for its items after applying transforms. The
// transforms are graph nodes activated by the issuer of the request.
func GetItems(transforms []*GraphNode) *Operation {
	return NewOperation(OpGetItems, Props{"transforms": transforms})
}

// Call invokes a callable node with arguments.
func Call(args []*GraphNode) *Operation {
	return NewOperation(OpCall, Props{"args": args})
}

// SetValue asks a stateful node to store value.
func SetValue(value *Node) *Operation {
	return NewOperation(OpSet, Props{"value": value})
}

// TransformItems asks a transform node to transform a list of items.
func TransformItems(items []*GraphNode) *Operation {
	return NewOperation(OpTransformItems, Props{"items": items})
}

func resolveOp(raw bool) *Operation {
	return NewOperation(opResolve, Props{"raw": raw})
}

// ChildKey returns the key of a get-child operation.
func (o *Operation) ChildKey() nodepath.Key {
	k, err := nodepath.FromValue(o.props["key"])
	if err != nil {
		return nodepath.Name("")
	}
	return k
}

// Transforms returns the transforms of a get-items operation.
func (o *Operation) Transforms() []*GraphNode { return o.props.GraphNodes("transforms") }

// Args returns the arguments of a call operation.
func (o *Operation) Args() []*GraphNode { return o.props.GraphNodes("args") }

// Value returns the value of a set operation.
func (o *Operation) Value() *Node { return o.props.Node("value") }

// Items returns the input items of a transform-items operation.
func (o *Operation) Items() []*GraphNode { return o.props.GraphNodes("items") }
