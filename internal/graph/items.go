package graph

import "github.com/specialistvlad/lazygraph/internal/nodepath"

// ItemsTypeName is the type name of materialized item lists.
const ItemsTypeName = "items"

// ItemsType is a materialized list of graph nodes, the result of get-items.
// Applying further transforms to it yields another item list.
var ItemsType = &NodeType{Name: ItemsTypeName}

func init() {
	ItemsType.Operations = map[string]*OperationHandler{
		OpGetItems: {
			Run: func(rc *RunContext, op *Operation, _ []*GraphNode) Outcome {
				transforms := op.Transforms()
				if len(transforms) == 0 {
					return rc.Node()
				}
				items, halt := rc.Transform(ItemsOf(rc.Node()), transforms)
				if halt != nil {
					return halt
				}
				return Items(items)
			},
		},
		OpLength: {
			Run: func(rc *RunContext, _ *Operation, _ []*GraphNode) Outcome {
				return NewValue(len(ItemsOf(rc.Node())))
			},
		},
		OpGetChild: {
			Run: func(rc *RunContext, op *Operation, _ []*GraphNode) Outcome {
				key := op.ChildKey()
				items := ItemsOf(rc.Node())
				if !key.IsIndex() || key.Index >= len(items) {
					return rc.Fail(InvalidChildKey(key))
				}
				return items[key.Index]
			},
		},
	}
}

// Items creates an item list definition.
func Items(items []*GraphNode) *Node {
	if items == nil {
		items = []*GraphNode{}
	}
	return NewNode(ItemsType, Props{"items": items})
}

// ItemsOf returns the graph nodes of an item list.
func ItemsOf(gn *GraphNode) []*GraphNode {
	if gn == nil || gn.def.typ.Name != ItemsTypeName {
		return nil
	}
	return gn.def.props.GraphNodes("items")
}

// IndexKey is shorthand for an index child key.
func IndexKey(i int) nodepath.Key { return nodepath.Index(i) }
