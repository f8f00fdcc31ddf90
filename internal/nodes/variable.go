package nodes

import (
	"github.com/specialistvlad/lazygraph/internal/graph"
)

type variableState struct {
	value *graph.Node
}

// VariableType holds a definition that can be replaced with set and restored
// with reset. A variable that has been set is pinned to its scope, so the
// value survives after nobody watches it.
var VariableType = &graph.NodeType{
	Name: "variable",
	InitState: func(_ *graph.Graph, gn *graph.GraphNode) any {
		return &variableState{value: gn.Definition().Props().Node("initial")}
	},
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				return rc.State().(*variableState).value
			},
		},
		graph.OpSet: {
			Run: func(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				st := rc.State().(*variableState)
				value := op.Value()
				if value == nil {
					value = graph.Nil()
				}
				if !st.value.Equal(value) {
					st.value = value
					rc.Graph().Pin(rc.Node())
					rc.Graph().Invalidate(rc.Node())
				}
				return value
			},
		},
		graph.OpReset: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				st := rc.State().(*variableState)
				initial := rc.Props().Node("initial")
				if !st.value.Equal(initial) {
					st.value = initial
					rc.Graph().Invalidate(rc.Node())
				}
				return initial
			},
		},
	},
}

// Variable creates a stateful node whose value starts as initial. Plain Go
// values are converted with FromValue.
func Variable(initial any) *graph.Node {
	def := FromValue(initial)
	return graph.NewNode(VariableType, graph.Props{"initial": def})
}

type onceState struct {
	done   bool
	result *graph.Node
}

func newOnceState(*graph.Graph, *graph.GraphNode) any { return &onceState{} }

// SetType stores a value into a settable node, once per activation.
var SetType = &graph.NodeType{
	Name:      "set",
	InitState: newOnceState,
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				st := rc.State().(*onceState)
				if st.done {
					return st.result
				}
				target, halt := rc.ResolveUntil(rc.Activate(rc.Props().Node("target")), graph.Supports(graph.OpSet))
				if halt != nil {
					return halt
				}
				value, halt := settledDefinition(rc, rc.Activate(rc.Props().Node("value")))
				if halt != nil {
					return halt
				}
				res := rc.Perform(target, graph.SetValue(value))
				if graph.IsSentinel(res) {
					return res
				}
				st.done, st.result = true, res.Definition()
				return st.result
			},
		},
	},
}

// Set stores value into target, which must resolve to a settable node such
// as a Variable. Plain Go values are converted with FromValue.
func Set(target *graph.Node, value any) *graph.Node {
	return graph.NewNode(SetType, graph.Props{"target": target, "value": FromValue(value)})
}

// ResetType restores a resettable node to its initial value, once per
// activation.
var ResetType = &graph.NodeType{
	Name:      "reset",
	InitState: newOnceState,
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				st := rc.State().(*onceState)
				if st.done {
					return st.result
				}
				target, halt := rc.ResolveUntil(rc.Activate(rc.Props().Node("target")), graph.Supports(graph.OpReset))
				if halt != nil {
					return halt
				}
				res := rc.Perform(target, graph.Reset())
				if graph.IsSentinel(res) {
					return res
				}
				st.done, st.result = true, res.Definition()
				return st.result
			},
		},
	},
}

// Reset restores target to its initial value.
func Reset(target *graph.Node) *graph.Node {
	return graph.NewNode(ResetType, graph.Props{"target": target})
}

// settledDefinition resolves gn to a definition that can be stored: values
// and containers as they are, collections as a value list.
func settledDefinition(rc *graph.RunContext, gn *graph.GraphNode) (*graph.Node, graph.Outcome) {
	r, halt := rc.ResolveUntil(gn, graph.Terminal)
	if halt != nil {
		return nil, halt
	}
	if r.Type() == graph.ItemsType {
		v, halt := rc.ValueOf(r)
		if halt != nil {
			return nil, halt
		}
		return graph.NewValue(v), nil
	}
	return r.Definition(), nil
}
