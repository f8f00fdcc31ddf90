package query

import (
	"fmt"
	"sort"

	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodepath"
	"github.com/specialistvlad/lazygraph/internal/queryset"
)

// Selection is a query shape: the value of the node itself (nil), a set of
// Fields, a Key or Entries.
type Selection interface {
	ops() []*queryset.Operation
	decode(resp []any) (any, *graph.Node)
	shape() any
}

// Fields selects several named results from the same node. The result is a
// map keyed like the Fields.
type Fields map[string]Selection

func (f Fields) names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (f Fields) ops() []*queryset.Operation {
	var out []*queryset.Operation
	for _, n := range f.names() {
		out = append(out, opsOf(f[n])...)
	}
	return out
}

// decode reads the fields in name order; the first pending or error result
// answers the whole selection.
func (f Fields) decode(resp []any) (any, *graph.Node) {
	out := make(map[string]any, len(f))
	offset := 0
	for _, n := range f.names() {
		count := len(opsOf(f[n]))
		if offset+count > len(resp) {
			return nil, graph.ErrorNode(graph.Errorf("response is missing field %q", n))
		}
		v, halt := decodeOf(f[n], resp[offset:offset+count])
		if halt != nil {
			return nil, halt
		}
		out[n] = v
		offset += count
	}
	return out, nil
}

func (f Fields) shape() any {
	m := make(map[string]any, len(f))
	for n, s := range f {
		m[n] = shapeOf(s)
	}
	return map[string]any{"fields": m}
}

type keySelection struct {
	key   nodepath.Key
	child Selection
}

// Key selects the child under key, a name or an index, and resolves child
// against it. Without child the value of the node under key is selected.
func Key(key any, child ...Selection) Selection {
	k, err := nodepath.FromValue(graph.NormalizeValue(key))
	if err != nil {
		panic(fmt.Sprintf("query: %v", err))
	}
	s := &keySelection{key: k}
	if len(child) > 0 {
		s.child = child[0]
	}
	return s
}

func (k *keySelection) ops() []*queryset.Operation {
	return []*queryset.Operation{queryset.GetChild(k.key, opsOf(k.child)...)}
}

func (k *keySelection) decode(resp []any) (any, *graph.Node) {
	return decodeBranch(k.child, resp[0])
}

func (k *keySelection) shape() any {
	m := map[string]any{"key": k.key.Value()}
	if k.child != nil {
		m["child"] = k.child.shape()
	}
	return m
}

type entriesSelection struct {
	child      Selection
	transforms []*graph.Node
}

// Entries selects the items of a collection after transforms and resolves
// child against each of them. The result is a list.
func Entries(child Selection, transforms ...*graph.Node) Selection {
	return &entriesSelection{child: child, transforms: transforms}
}

func (e *entriesSelection) ops() []*queryset.Operation {
	return []*queryset.Operation{queryset.GetItems(e.transforms, opsOf(e.child)...)}
}

func (e *entriesSelection) decode(resp []any) (any, *graph.Node) {
	if def, ok := resp[0].(*graph.Node); ok {
		return nil, def
	}
	items, _ := resp[0].([]any)
	out := make([]any, len(items))
	for i, item := range items {
		v, halt := decodeBranch(e.child, item)
		if halt != nil {
			return nil, halt
		}
		out[i] = v
	}
	return out, nil
}

func (e *entriesSelection) shape() any {
	transforms := e.transforms
	if transforms == nil {
		transforms = []*graph.Node{}
	}
	m := map[string]any{"entries": transforms}
	if e.child != nil {
		m["child"] = e.child.shape()
	}
	return m
}

// opsOf, decodeOf and shapeOf treat a nil selection as the value of the node.
func opsOf(s Selection) []*queryset.Operation {
	if s == nil {
		return []*queryset.Operation{queryset.Evaluate()}
	}
	return s.ops()
}

func decodeOf(s Selection, resp []any) (any, *graph.Node) {
	if s == nil {
		return leafResult(resp[0])
	}
	return s.decode(resp)
}

func shapeOf(s Selection) any {
	if s == nil {
		return nil
	}
	return s.shape()
}

func decodeBranch(child Selection, resp any) (any, *graph.Node) {
	switch x := resp.(type) {
	case *graph.Node:
		return nil, x
	case []any:
		if len(x) != len(opsOf(child)) {
			return nil, graph.ErrorNode(graph.Errorf("response has %d entries for %d operations", len(x), len(opsOf(child))))
		}
		return decodeOf(child, x)
	default:
		return nil, graph.ErrorNode(graph.Errorf("unexpected response %T", resp))
	}
}

// leafResult reads a leaf response: a value, or a pending or error halt.
func leafResult(resp any) (any, *graph.Node) {
	def, ok := resp.(*graph.Node)
	if !ok {
		return nil, graph.ErrorNode(graph.Errorf("unexpected leaf response %T", resp))
	}
	if def.Type().Name == graph.ValueTypeName {
		return def.Prop("value"), nil
	}
	return nil, def
}

// parseShape rebuilds a selection from its property form.
func parseShape(v any) (Selection, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid query shape %T", v)
	}
	child, err := parseShape(m["child"])
	if err != nil {
		return nil, err
	}
	switch {
	case m["fields"] != nil:
		raw, _ := m["fields"].(map[string]any)
		f := make(Fields, len(raw))
		for n, s := range raw {
			sel, err := parseShape(s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", n, err)
			}
			f[n] = sel
		}
		return f, nil
	case m["key"] != nil:
		k, err := nodepath.FromValue(m["key"])
		if err != nil {
			return nil, err
		}
		return &keySelection{key: k, child: child}, nil
	case m["entries"] != nil:
		list, _ := m["entries"].([]any)
		transforms := make([]*graph.Node, 0, len(list))
		for _, t := range list {
			n, ok := t.(*graph.Node)
			if !ok {
				return nil, fmt.Errorf("entries transform is %T, not a definition", t)
			}
			transforms = append(transforms, n)
		}
		return &entriesSelection{child: child, transforms: transforms}, nil
	default:
		return nil, fmt.Errorf("query shape has no fields, key or entries")
	}
}

// QueryType resolves a selection against its target.
var QueryType = &graph.NodeType{
	Name: "query",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				sel, err := parseShape(rc.Props()["shape"])
				if err != nil {
					return rc.Fail(graph.NewError(err.Error()))
				}
				resp := Respond(rc, rc.Activate(rc.Props().Node("target")), queryset.Root(opsOf(sel)...))
				list, ok := resp.([]any)
				if !ok {
					def, _ := resp.(*graph.Node)
					return def
				}
				v, halt := decodeOf(sel, list)
				if halt != nil {
					return halt
				}
				return graph.NewValue(v)
			},
		},
	},
}

// Query resolves sel against target. The value mirrors the selection: maps
// for Fields, lists for Entries and plain values at the leaves. The first
// pending or error result, with fields visited in name order, answers the
// whole query.
func Query(target *graph.Node, sel Selection) *graph.Node {
	return graph.NewNode(QueryType, graph.Props{"target": target, "shape": shapeOf(sel)})
}

// Compile returns the query-set a selection is answered with.
func Compile(sel Selection) *queryset.Operation {
	return queryset.Root(opsOf(sel)...)
}

// Module implements the graph.Module interface for this package.
type Module struct{}

// Register registers the query node types.
func (m *Module) Register(r *graph.Registry) {
	r.Register(QueryType, ExecuteType, setEffectType)
}
