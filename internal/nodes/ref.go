package nodes

import (
	"fmt"

	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodepath"
)

// RootType evaluates to the root of the nearest enclosing scope.
var RootType = &graph.NodeType{
	Name: "root",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {Run: evaluateRoot},
	},
}

var rootNode = graph.NewNode(RootType, nil)

// Root refers to the root of the nearest enclosing scope.
func Root() *graph.Node { return rootNode }

func evaluateRoot(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
	marker, ok := rc.Context().Lookup(graph.RootKey)
	if !ok {
		return rc.Fail(graph.NewError("no scope root in context"))
	}
	return marker
}

// RefType walks a path of child keys from the scope root.
var RefType = &graph.NodeType{
	Name: "ref",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				return walk(rc, rc.Activate(Root()), rc.Props()["path"])
			},
		},
	},
}

// Ref refers to the node at path below the scope root. Path segments are
// names, indexes, nodepath keys, or definitions resolving to one of those.
// A single string segment containing dots is parsed as a path.
func Ref(path ...any) *graph.Node {
	return graph.NewNode(RefType, graph.Props{"path": pathProps(path)})
}

// GetType walks a path of child keys from a target node.
var GetType = &graph.NodeType{
	Name: "get",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				return walk(rc, rc.Activate(rc.Props().Node("target")), rc.Props()["path"])
			},
		},
	},
}

// Get refers to the node at path below target.
func Get(target *graph.Node, path ...any) *graph.Node {
	return graph.NewNode(GetType, graph.Props{"target": target, "path": pathProps(path)})
}

func pathProps(path []any) []any {
	out := make([]any, 0, len(path))
	for _, seg := range path {
		switch x := seg.(type) {
		case string:
			if p, err := nodepath.Parse(x); err == nil && len(p) > 1 {
				out = append(out, p.Values()...)
				continue
			}
			out = append(out, x)
		case nodepath.Path:
			out = append(out, x.Values()...)
		default:
			out = append(out, x)
		}
	}
	return out
}

func walk(rc *graph.RunContext, target *graph.GraphNode, path any) graph.Outcome {
	segments, _ := path.([]any)
	for _, seg := range segments {
		key, halt := segmentKey(rc, seg)
		if halt != nil {
			return halt
		}
		target = rc.GetChild(target, key)
		if graph.IsSentinel(target) {
			return target
		}
	}
	return target
}

func segmentKey(rc *graph.RunContext, seg any) (nodepath.Key, graph.Outcome) {
	if def, ok := seg.(*graph.Node); ok {
		v, halt := rc.Value(def)
		if halt != nil {
			return nodepath.Key{}, halt
		}
		seg = v
	}
	key, err := nodepath.FromValue(seg)
	if err != nil {
		return nodepath.Key{}, rc.Fail(graph.Errorf("invalid path segment: %v", err))
	}
	return key, nil
}

// ParamType reads a binding from the context.
var ParamType = &graph.NodeType{
	Name: "param",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				name := rc.Props().String("name")
				gn, ok := rc.Context().Lookup(name)
				if !ok {
					return rc.Fail(graph.NewError(fmt.Sprintf("unbound parameter %q", name)))
				}
				return gn
			},
		},
	},
}

// Param refers to the node bound to name by Fn, WithContext or a tree
// pattern capture.
func Param(name string) *graph.Node {
	return graph.NewNode(ParamType, graph.Props{"name": name})
}

// WithContextType evaluates its target with extra bindings.
var WithContextType = &graph.NodeType{
	Name: "with-context",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				bindings := rc.Props().NodeMap("values")
				values := make(map[string]*graph.GraphNode, len(bindings))
				for name, def := range bindings {
					values[name] = rc.Activate(def)
				}
				return rc.ActivateIn(rc.Props().Node("target"), rc.Context().With(values))
			},
		},
	},
}

// WithContext evaluates target with values bound in its context.
func WithContext(values map[string]*graph.Node, target *graph.Node) *graph.Node {
	return graph.NewNode(WithContextType, graph.Props{"values": values, "target": target})
}
