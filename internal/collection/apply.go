package collection

import (
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodes"
)

// ApplyType is a collection view: the items of its target with a list of
// transforms applied. It forwards get-items to the target with its own
// transforms prepended to the ones requested by the caller.
var ApplyType = &graph.NodeType{
	Name: "apply",
	Operations: map[string]*graph.OperationHandler{
		graph.OpGetItems: {Run: applyGetItems},
		graph.OpLength: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				items, halt := rc.Items(rc.Node(), nil)
				if halt != nil {
					return halt
				}
				return graph.NewValue(len(items))
			},
		},
		graph.OpGetChild: {
			Run: func(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				key := op.ChildKey()
				items, halt := rc.Items(rc.Node(), nil)
				if halt != nil {
					return halt
				}
				if !key.IsIndex() || key.Index >= len(items) {
					return rc.Fail(graph.InvalidChildKey(key))
				}
				return items[key.Index]
			},
		},
	},
}

func applyGetItems(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
	defs := rc.Props().Nodes("transforms")
	transforms := make([]*graph.GraphNode, 0, len(defs)+len(op.Transforms()))
	for _, d := range defs {
		transforms = append(transforms, rc.Activate(d))
	}
	transforms = append(transforms, op.Transforms()...)

	target, halt := rc.ResolveUntil(rc.Activate(rc.Props().Node("target")), graph.Supports(graph.OpGetItems))
	if halt != nil {
		return halt
	}
	return graph.Redirect(target, graph.GetItems(transforms))
}

// Apply applies transforms to the items of target. Applying to another Apply
// appends to its transforms.
func Apply(target *graph.Node, transforms ...*graph.Node) *graph.Node {
	if transforms == nil {
		transforms = []*graph.Node{}
	}
	return graph.NewNode(ApplyType, graph.Props{"target": target, "transforms": transforms})
}

// ItemParam is the parameter name item functions built by ItemFn bind.
const ItemParam = "item"

// ItemFn wraps body into a one-parameter function reading the item with
// nodes.Param(ItemParam).
func ItemFn(body *graph.Node) *graph.Node {
	return nodes.Fn([]string{ItemParam}, body)
}
