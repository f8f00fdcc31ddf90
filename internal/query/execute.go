package query

import (
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/queryset"
)

// OpQuerySet asks a node to answer a whole query-set subtree in one piece.
// Proxied nodes support it, so a query crossing a proxy becomes one request.
const OpQuerySet = "query-set"

// QuerySet builds a query-set operation. The request must be rooted; its
// children are answered against the receiving node.
func QuerySet(request *queryset.Operation) *graph.Operation {
	return graph.NewOperation(OpQuerySet, graph.Props{"request": request})
}

// RequestOf returns the request carried by a query-set operation.
func RequestOf(op *graph.Operation) *queryset.Operation {
	r, _ := op.Props()["request"].(*queryset.Operation)
	return r
}

// ExecuteType answers a query-set against its target. Its value is the
// response tree.
var ExecuteType = &graph.NodeType{
	Name: "execute",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				req, ok := rc.Props()["request"].(*queryset.Operation)
				if !ok {
					return rc.Fail(graph.NewError("execute node has no request"))
				}
				resp := Respond(rc, rc.Activate(rc.Props().Node("target")), req)
				if def, ok := resp.(*graph.Node); ok {
					return def
				}
				return graph.NewValue(resp)
			},
		},
	},
}

// Execute answers request against target. The result is a value holding the
// response tree, see package queryset.
func Execute(target *graph.Node, request *queryset.Operation) *graph.Node {
	return graph.NewNode(ExecuteType, graph.Props{"target": target, "request": request})
}

// stopFor stops resolution at nodes that answer query-sets themselves, that
// support an operation the children need, or that cannot be evaluated any
// further.
func stopFor(children []*queryset.Operation) graph.Predicate {
	ops := []string{OpQuerySet}
	for _, c := range children {
		if op := graphOp(c.Kind); op != "" {
			ops = append(ops, op)
		}
	}
	return graph.Predicate{
		Description: OpQuerySet,
		Test: func(gn *graph.GraphNode) bool {
			if !gn.Supports(graph.OpEvaluate) {
				return true
			}
			for _, op := range ops {
				if gn.Supports(op) {
					return true
				}
			}
			return false
		},
	}
}

func graphOp(k queryset.Kind) string {
	switch k {
	case queryset.KindGetChild:
		return graph.OpGetChild
	case queryset.KindGetItems:
		return graph.OpGetItems
	case queryset.KindCall:
		return graph.OpCall
	case queryset.KindSet:
		return graph.OpSet
	case queryset.KindLength:
		return graph.OpLength
	default:
		return ""
	}
}

// Respond answers the children of the branch operation op against n and
// returns the response list, or a pending or error definition answering the
// whole branch.
func Respond(rc *graph.RunContext, n *graph.GraphNode, op *queryset.Operation) any {
	if len(op.Children) == 0 {
		return []any{}
	}
	t := rc.Resolve(n, stopFor(op.Children))
	if graph.IsSentinel(t) {
		return sentinelDef(t)
	}
	if t.Supports(OpQuerySet) {
		v, halt := rc.ValueOf(rc.Dispatch(t, QuerySet(queryset.Root(op.Children...))))
		if halt != nil {
			return haltDef(halt)
		}
		return v
	}
	out := make([]any, len(op.Children))
	for i, c := range op.Children {
		out[i] = respondTo(rc, t, c)
	}
	return out
}

func respondTo(rc *graph.RunContext, n *graph.GraphNode, op *queryset.Operation) any {
	switch op.Kind {
	case queryset.KindEvaluate:
		return leafValue(rc, n)
	case queryset.KindLength:
		l, halt := rc.Length(n)
		if halt != nil {
			return haltDef(halt)
		}
		return graph.NewValue(l)
	case queryset.KindSet:
		return leafValue(rc, rc.Activate(setEffect(n, op.Value)))
	case queryset.KindGetChild:
		child := rc.GetChild(n, op.Key)
		if graph.IsSentinel(child) {
			return sentinelDef(child)
		}
		return Respond(rc, child, op)
	case queryset.KindGetItems:
		transforms := make([]*graph.GraphNode, len(op.Transforms))
		for i, d := range op.Transforms {
			transforms[i] = rc.Activate(d)
		}
		items, halt := rc.Items(n, transforms)
		if halt != nil {
			return haltDef(halt)
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = Respond(rc, item, op)
		}
		return out
	case queryset.KindCall:
		args := make([]*graph.GraphNode, len(op.Args))
		for i, d := range op.Args {
			args[i] = rc.Activate(d)
		}
		r := rc.Call(n, args...)
		if graph.IsSentinel(r) {
			return sentinelDef(r)
		}
		return Respond(rc, r, op)
	default:
		return graph.ErrorNode(graph.UnsupportedOperation(n.Type().Name, string(op.Kind)).WithPath(n.Path()))
	}
}

// leafValue resolves n to a value, pending or error definition.
func leafValue(rc *graph.RunContext, n *graph.GraphNode) *graph.Node {
	v, halt := rc.ValueOf(n)
	if halt != nil {
		return haltDef(halt)
	}
	return graph.NewValue(v)
}

// sentinelDef returns the definition of a sentinel with the error located.
func sentinelDef(gn *graph.GraphNode) *graph.Node {
	if graph.IsError(gn) {
		return graph.ErrorNode(graph.ErrorOf(gn))
	}
	return gn.Definition()
}

func haltDef(o graph.Outcome) *graph.Node {
	switch x := o.(type) {
	case *graph.GraphNode:
		return sentinelDef(x)
	case *graph.Node:
		return x
	default:
		return graph.ErrorNode(graph.Errorf("unexpected outcome %T", o))
	}
}

type effectState struct {
	done   bool
	result *graph.Node
}

// setEffectType performs one set on a graph node, once per activation.
var setEffectType = &graph.NodeType{
	Name:      "query-set-effect",
	InitState: func(*graph.Graph, *graph.GraphNode) any { return &effectState{} },
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				st := rc.State().(*effectState)
				if st.done {
					return st.result
				}
				target, _ := rc.Props()["target"].(*graph.GraphNode)
				t, halt := rc.ResolveUntil(target, graph.Supports(graph.OpSet))
				if halt != nil {
					return halt
				}
				v, halt := rc.ValueOf(rc.Activate(rc.Props().Node("value")))
				if halt != nil {
					return halt
				}
				res := rc.Perform(t, graph.SetValue(graph.NewValue(v)))
				if graph.IsSentinel(res) {
					return res
				}
				st.done, st.result = true, res.Definition()
				return st.result
			},
		},
	},
}

func setEffect(target *graph.GraphNode, value *graph.Node) *graph.Node {
	return graph.NewNode(setEffectType, graph.Props{"target": target, "value": value})
}
