// Package queryset implements query-sets: serializable operation trees that
// batch many reads against one remote boundary into a single request.
//
// A query-set is rooted at a Root operation. Branch operations (Root,
// GetChild, GetItems, Call) move to another node and apply their children
// there; leaf operations (Evaluate, Length, Set) produce a result definition.
//
// The response mirrors the request: a branch answers with a list holding one
// response per child, GetItems answers with one such list per item, and a
// leaf answers with a value, pending or error definition. A pending or error
// definition in place of a branch list answers the whole branch.
package queryset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodepath"
)

// Kind identifies a query-set operation.
type Kind string

// Operation kinds.
const (
	KindRoot     Kind = "root"
	KindGetChild Kind = "get-child"
	KindGetItems Kind = "get-items"
	KindCall     Kind = "call"
	KindEvaluate Kind = "evaluate"
	KindLength   Kind = "length"
	KindSet      Kind = "set"
)

// IsLeaf reports whether operations of kind k produce a result definition
// rather than moving to another node.
func (k Kind) IsLeaf() bool {
	return k == KindEvaluate || k == KindLength || k == KindSet
}

// Operation is one node of a query-set tree. Operations are treated as
// immutable once built.
type Operation struct {
	Kind       Kind
	Key        nodepath.Key
	Transforms []*graph.Node
	Args       []*graph.Node
	Value      *graph.Node
	Children   []*Operation
}

// Root starts a query-set.
func Root(children ...*Operation) *Operation {
	return &Operation{Kind: KindRoot, Children: children}
}

// GetChild moves to the child under key.
func GetChild(key nodepath.Key, children ...*Operation) *Operation {
	return &Operation{Kind: KindGetChild, Key: key, Children: children}
}

// GetItems applies transforms and then children to every item.
func GetItems(transforms []*graph.Node, children ...*Operation) *Operation {
	return &Operation{Kind: KindGetItems, Transforms: transforms, Children: children}
}

// Call calls the node with args and applies children to the result.
func Call(args []*graph.Node, children ...*Operation) *Operation {
	return &Operation{Kind: KindCall, Args: args, Children: children}
}

// Evaluate reads the value of the node.
func Evaluate() *Operation { return &Operation{Kind: KindEvaluate} }

// Length reads the number of items of the node.
func Length() *Operation { return &Operation{Kind: KindLength} }

// Set stores value into the node.
func Set(value *graph.Node) *Operation { return &Operation{Kind: KindSet, Value: value} }

// Path wraps leaf in a chain of GetChild operations following path and roots
// the result.
func Path(path nodepath.Path, leaves ...*Operation) *Operation {
	children := leaves
	for i := len(path) - 1; i >= 0; i-- {
		children = []*Operation{GetChild(path[i], children...)}
	}
	return Root(children...)
}

// SelfKey identifies the operation without its children. Merge unifies
// operations with equal self keys.
func (o *Operation) SelfKey() string {
	var b strings.Builder
	b.WriteString(string(o.Kind))
	switch o.Kind {
	case KindGetChild:
		b.WriteByte(' ')
		if o.Key.IsIndex() {
			b.WriteString(strconv.Itoa(o.Key.Index))
		} else {
			b.WriteString(strconv.Quote(o.Key.Name))
		}
	case KindGetItems:
		writeDefs(&b, o.Transforms)
	case KindCall:
		writeDefs(&b, o.Args)
	case KindSet:
		b.WriteByte(' ')
		b.WriteString(o.Value.Key())
	}
	return b.String()
}

func writeDefs(b *strings.Builder, defs []*graph.Node) {
	b.WriteString(" [")
	for i, d := range defs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(d.Key())
	}
	b.WriteByte(']')
}

// CanonicalKey identifies the whole tree. It makes operations usable as
// definition and operation properties.
func (o *Operation) CanonicalKey() string {
	var b strings.Builder
	o.writeKey(&b)
	return b.String()
}

func (o *Operation) writeKey(b *strings.Builder) {
	b.WriteString(o.SelfKey())
	if len(o.Children) == 0 {
		return
	}
	b.WriteString(" {")
	for i, c := range o.Children {
		if i > 0 {
			b.WriteString("; ")
		}
		c.writeKey(b)
	}
	b.WriteByte('}')
}

func (o *Operation) String() string { return o.CanonicalKey() }

// Validate checks the structure of a decoded tree: a root at the top, no
// roots below it and no children under leaves.
func (o *Operation) Validate() error {
	if o.Kind != KindRoot {
		return fmt.Errorf("query-set must start with a root operation, got %q", o.Kind)
	}
	return validateChildren(o)
}

func validateChildren(o *Operation) error {
	for _, c := range o.Children {
		switch {
		case c.Kind == KindRoot:
			return fmt.Errorf("root operation nested under %q", o.Kind)
		case c.Kind.IsLeaf() && len(c.Children) > 0:
			return fmt.Errorf("leaf operation %q has children", c.Kind)
		case c.Kind == KindSet && c.Value == nil:
			return fmt.Errorf("set operation has no value")
		}
		switch c.Kind {
		case KindGetChild, KindGetItems, KindCall, KindEvaluate, KindLength, KindSet:
		default:
			return fmt.Errorf("unknown operation kind %q", c.Kind)
		}
		if err := validateChildren(c); err != nil {
			return err
		}
	}
	return nil
}
