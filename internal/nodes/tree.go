package nodes

import (
	"sort"
	"strings"

	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodepath"
)

// Pattern matches child keys that a tree has no fixed branch for. A match
// may capture the key into the child's context under Capture, where Param
// can read it.
type Pattern struct {
	Kind    string   `json:"kind"`
	Values  []string `json:"values,omitempty"`
	Capture string   `json:"capture,omitempty"`
}

// Pattern kinds.
const (
	PatternAnyName  = "any-name"
	PatternAnyIndex = "any-index"
	PatternOneOf    = "one-of"
	PatternPrefix   = "prefix"
)

// AnyName matches every named key.
func AnyName(capture string) Pattern { return Pattern{Kind: PatternAnyName, Capture: capture} }

// AnyIndex matches every index key.
func AnyIndex(capture string) Pattern { return Pattern{Kind: PatternAnyIndex, Capture: capture} }

// OneOf matches the given names.
func OneOf(capture string, names ...string) Pattern {
	return Pattern{Kind: PatternOneOf, Values: names, Capture: capture}
}

// Prefix matches names starting with prefix.
func Prefix(capture, prefix string) Pattern {
	return Pattern{Kind: PatternPrefix, Values: []string{prefix}, Capture: capture}
}

// Matches reports whether key satisfies the pattern.
func (p Pattern) Matches(key nodepath.Key) bool {
	switch p.Kind {
	case PatternAnyName:
		return !key.IsIndex()
	case PatternAnyIndex:
		return key.IsIndex()
	case PatternOneOf:
		if key.IsIndex() {
			return false
		}
		for _, v := range p.Values {
			if v == key.Name {
				return true
			}
		}
		return false
	case PatternPrefix:
		return !key.IsIndex() && len(p.Values) == 1 && strings.HasPrefix(key.Name, p.Values[0])
	default:
		return false
	}
}

func (p Pattern) props() map[string]any {
	values := make([]any, len(p.Values))
	for i, v := range p.Values {
		values[i] = v
	}
	return map[string]any{"kind": p.Kind, "values": values, "capture": p.Capture}
}

func patternFromProps(v any) Pattern {
	m, _ := v.(map[string]any)
	p := Pattern{}
	p.Kind, _ = m["kind"].(string)
	p.Capture, _ = m["capture"].(string)
	list, _ := m["values"].([]any)
	for _, s := range list {
		if str, ok := s.(string); ok {
			p.Values = append(p.Values, str)
		}
	}
	return p
}

// Branch is a pattern branch of a tree.
type Branch struct {
	Pattern Pattern
	Node    *graph.Node
}

// Match creates a pattern branch.
func Match(p Pattern, node *graph.Node) Branch {
	return Branch{Pattern: p, Node: node}
}

// TreeType is a container of named children.
var TreeType = &graph.NodeType{
	Name: "tree",
	Operations: map[string]*graph.OperationHandler{
		graph.OpGetChild: {Run: treeGetChild},
	},
}

// Tree creates a container with fixed branches and, optionally, pattern
// branches consulted in order for keys without a fixed branch.
func Tree(branches map[string]*graph.Node, matchers ...Branch) *graph.Node {
	if branches == nil {
		branches = map[string]*graph.Node{}
	}
	list := make([]any, len(matchers))
	for i, m := range matchers {
		list[i] = map[string]any{"pattern": m.Pattern.props(), "node": m.Node}
	}
	return graph.NewNode(TreeType, graph.Props{"branches": branches, "matchers": list})
}

func treeGetChild(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
	key := op.ChildKey()
	if !key.IsIndex() {
		if child, ok := rc.Props().NodeMap("branches")[key.Name]; ok {
			return rc.Child(child, key)
		}
	}
	matchers, _ := rc.Props()["matchers"].([]any)
	for _, m := range matchers {
		entry, _ := m.(map[string]any)
		p := patternFromProps(entry["pattern"])
		child, _ := entry["node"].(*graph.Node)
		if child == nil || !p.Matches(key) {
			continue
		}
		ctx := rc.Context().Child(key)
		if p.Capture != "" {
			captured := rc.ActivateIn(graph.NewValue(key.Value()), rc.Context())
			ctx = ctx.With(map[string]*graph.GraphNode{p.Capture: captured})
		}
		return rc.ActivateIn(child, ctx)
	}
	return rc.Fail(graph.InvalidChildKey(key))
}

// TreeKeys returns the fixed branch names of a tree definition in sorted
// order.
func TreeKeys(n *graph.Node) []string {
	branches := n.Props().NodeMap("branches")
	keys := make([]string, 0, len(branches))
	for k := range branches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromValue converts a plain Go value into a definition: maps become trees,
// slices become arrays and everything else a value node. Definitions are
// returned as they are.
func FromValue(v any) *graph.Node {
	switch x := v.(type) {
	case *graph.Node:
		return x
	case map[string]any:
		branches := make(map[string]*graph.Node, len(x))
		for k, e := range x {
			branches[k] = FromValue(e)
		}
		return Tree(branches)
	case []any:
		items := make([]*graph.Node, len(x))
		for i, e := range x {
			items[i] = FromValue(e)
		}
		return Array(items...)
	default:
		n := graph.NormalizeValue(v)
		switch n.(type) {
		case map[string]any, []any:
			return FromValue(n)
		}
		return graph.NewValue(n)
	}
}

// Value creates a value node.
func Value(v any) *graph.Node { return graph.NewValue(v) }

// Nil is the nil value node.
func Nil() *graph.Node { return graph.Nil() }
