package nodes

import (
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodepath"
)

// ArrayType is a collection of item definitions. Item i is activated at path
// index i.
var ArrayType = &graph.NodeType{
	Name: "array",
	Operations: map[string]*graph.OperationHandler{
		graph.OpGetItems: {
			Run: func(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				defs := rc.Props().Nodes("items")
				items := make([]*graph.GraphNode, len(defs))
				for i, d := range defs {
					items[i] = rc.Child(d, nodepath.Index(i))
				}
				items, halt := rc.Transform(items, op.Transforms())
				if halt != nil {
					return halt
				}
				return graph.Items(items)
			},
		},
		graph.OpLength: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				return graph.NewValue(len(rc.Props().Nodes("items")))
			},
		},
		graph.OpGetChild: {
			Run: func(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				key := op.ChildKey()
				defs := rc.Props().Nodes("items")
				if !key.IsIndex() || key.Index >= len(defs) {
					return rc.Fail(graph.InvalidChildKey(key))
				}
				return rc.Child(defs[key.Index], key)
			},
		},
	},
}

// Array creates a collection of definitions.
func Array(items ...*graph.Node) *graph.Node {
	if items == nil {
		items = []*graph.Node{}
	}
	return graph.NewNode(ArrayType, graph.Props{"items": items})
}

// ArrayOf creates a collection of plain values.
func ArrayOf(values ...any) *graph.Node {
	items := make([]*graph.Node, len(values))
	for i, v := range values {
		items[i] = FromValue(v)
	}
	return Array(items...)
}
