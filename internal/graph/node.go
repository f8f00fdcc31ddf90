package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/specialistvlad/lazygraph/internal/nodepath"
)

// Props holds the normalized properties of a definition. Values are JSON-like
// (nil, bool, float64, string, []any, map[string]any), nested definitions,
// graph nodes, opaque Go values or CanonicalKeyer implementations.
type Props map[string]any

// CanonicalKeyer is implemented by property values that are not definitions
// but still need a structural identity, such as query-set operations.
type CanonicalKeyer interface {
	CanonicalKey() string
}

// Opaque wraps a Go value (a function, a pipeline) that has identity rather
// than structural equality. Every call to NewOpaque yields a distinct value.
type Opaque struct {
	id    uint64
	value any
}

var opaqueSeq atomic.Uint64

// NewOpaque wraps v.
func NewOpaque(v any) *Opaque {
	return &Opaque{id: opaqueSeq.Add(1), value: v}
}

// Value returns the wrapped value.
func (o *Opaque) Value() any {
	if o == nil {
		return nil
	}
	return o.value
}

// Node is an immutable node definition: a type plus properties.
type Node struct {
	typ   *NodeType
	props Props
	key   string
	hash  uint64
	held  []*GraphNode
}

// NewNode creates a definition. Properties are normalized and the canonical
// key is computed eagerly.
func NewNode(t *NodeType, props Props) *Node {
	if t == nil {
		panic("graph: node type must not be nil")
	}
	var held []*GraphNode
	norm := make(Props, len(props))
	for k, v := range props {
		norm[k] = normalize(v, &held)
	}

	var b strings.Builder
	b.WriteString(t.Name)
	writeCanonical(&b, map[string]any(norm))
	key := b.String()

	return &Node{typ: t, props: norm, key: key, hash: xxhash.Sum64String(key), held: held}
}

// Type returns the node type.
func (n *Node) Type() *NodeType { return n.typ }

// Props returns the normalized properties. Callers must not modify them.
func (n *Node) Props() Props { return n.props }

// Prop returns a single property.
func (n *Node) Prop(name string) any { return n.props[name] }

// Key returns the canonical key.
func (n *Node) Key() string { return n.key }

// Hash returns the xxhash of the canonical key.
func (n *Node) Hash() uint64 { return n.hash }

// Equal reports structural equality.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.hash == other.hash && n.key == other.key
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return n.typ.Name + "#" + strconv.FormatUint(n.hash, 36)
}

// Node returns a nested definition property.
func (p Props) Node(name string) *Node {
	n, _ := p[name].(*Node)
	return n
}

// Nodes returns a list-of-definitions property.
func (p Props) Nodes(name string) []*Node {
	list, _ := p[name].([]any)
	out := make([]*Node, 0, len(list))
	for _, v := range list {
		if n, ok := v.(*Node); ok {
			out = append(out, n)
		}
	}
	return out
}

// NodeMap returns a map-of-definitions property.
func (p Props) NodeMap(name string) map[string]*Node {
	m, _ := p[name].(map[string]any)
	out := make(map[string]*Node, len(m))
	for k, v := range m {
		if n, ok := v.(*Node); ok {
			out[k] = n
		}
	}
	return out
}

// GraphNodes returns a list-of-graph-nodes property.
func (p Props) GraphNodes(name string) []*GraphNode {
	list, _ := p[name].([]any)
	out := make([]*GraphNode, 0, len(list))
	for _, v := range list {
		if gn, ok := v.(*GraphNode); ok {
			out = append(out, gn)
		}
	}
	return out
}

// String returns a string property.
func (p Props) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Strings returns a list-of-strings property.
func (p Props) Strings(name string) []string {
	list, _ := p[name].([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Float returns a numeric property.
func (p Props) Float(name string) (float64, bool) {
	f, ok := p[name].(float64)
	return f, ok
}

// Bool returns a boolean property.
func (p Props) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}

// Opaque returns the value wrapped by an opaque property.
func (p Props) Opaque(name string) any {
	o, _ := p[name].(*Opaque)
	return o.Value()
}

// normalize converts v into the canonical property representation and
// collects graph nodes referenced by it.
func normalize(v any, held *[]*GraphNode) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, string, float64:
		return x
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case nodepath.Key:
		return x.Value()
	case nodepath.Path:
		return normalize(x.Values(), held)
	case *Node:
		if x == nil {
			return nil
		}
		return x
	case *GraphNode:
		if x == nil {
			return nil
		}
		*held = append(*held, x)
		return x
	case *Opaque:
		return x
	case CanonicalKeyer:
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e, held)
		}
		return out
	case []*Node:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e, held)
		}
		return out
	case []*GraphNode:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e, held)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case []int:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e, held)
		}
		return out
	case Props:
		return normalize(map[string]any(x), held)
	case map[string]*Node:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e, held)
		}
		return out
	default:
		return x
	}
}

// NormalizeValue converts a Go value into the JSON-like form used by
// definitions and results.
func NormalizeValue(v any) any {
	var held []*GraphNode
	return normalize(v, &held)
}

func writeCanonical(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteByte('~')
	case bool:
		if x {
			b.WriteByte('T')
		} else {
			b.WriteByte('F')
		}
	case float64:
		b.WriteByte('#')
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	case string:
		b.WriteString(strconv.Quote(x))
	case *Node:
		b.WriteByte('@')
		b.WriteString(strconv.FormatUint(x.hash, 36))
	case *GraphNode:
		b.WriteByte('&')
		b.WriteString(strconv.FormatUint(x.id, 36))
	case *Opaque:
		b.WriteByte('$')
		b.WriteString(strconv.FormatUint(x.id, 36))
	case CanonicalKeyer:
		b.WriteByte('%')
		b.WriteString(strconv.Quote(x.CanonicalKey()))
	case []any:
		b.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, e)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeCanonical(b, x[k])
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "?%T:%v", x, x)
	}
}

// CanonicalString renders a normalized value in canonical form. It is used by
// packages that build their own identities on top of definitions.
func CanonicalString(v any) string {
	var b strings.Builder
	writeCanonical(&b, NormalizeValue(v))
	return b.String()
}
