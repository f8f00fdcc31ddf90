package nodes

import (
	"fmt"

	"github.com/specialistvlad/lazygraph/internal/graph"
)

// ComputeFunc derives a value from the values of a Computed node's
// dependencies.
type ComputeFunc func(values ...any) (any, error)

// ComputedType applies a Go function to the values of its dependencies.
var ComputedType = &graph.NodeType{
	Name: "computed",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				fn, ok := rc.Props().Opaque("fn").(ComputeFunc)
				if !ok {
					return rc.Fail(graph.NewError("computed node has no function"))
				}
				deps := rc.Props().Nodes("deps")
				values := make([]any, len(deps))
				for i, d := range deps {
					v, halt := rc.Value(d)
					if halt != nil {
						return halt
					}
					values[i] = v
				}
				out, err := fn(values...)
				if err != nil {
					return rc.Fail(graph.AsError(err))
				}
				return FromValue(out)
			},
		},
	},
}

// Computed derives a value from deps with fn. The function runs again
// whenever one of the dependencies changes. Computed definitions wrap a Go
// function and cannot be serialized.
func Computed(deps []*graph.Node, fn ComputeFunc) *graph.Node {
	return graph.NewNode(ComputedType, graph.Props{"deps": deps, "fn": graph.NewOpaque(fn)})
}

// FnType is a callable with named parameters. Calling it evaluates the body
// with the arguments bound to the parameter names.
var FnType = &graph.NodeType{
	Name: "fn",
	Operations: map[string]*graph.OperationHandler{
		graph.OpCall: {
			Run: func(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				params := rc.Props().Strings("params")
				args := op.Args()
				bindings := make(map[string]*graph.GraphNode, len(params))
				for i, name := range params {
					if i < len(args) {
						bindings[name] = args[i]
					} else {
						bindings[name] = rc.Activate(graph.Nil())
					}
				}
				return rc.ActivateIn(rc.Props().Node("body"), rc.Context().With(bindings))
			},
		},
	},
}

// Fn creates a callable whose body reads its arguments with Param.
func Fn(params []string, body *graph.Node) *graph.Node {
	return graph.NewNode(FnType, graph.Props{"params": params, "body": body})
}

// CallType calls a callable target.
var CallType = &graph.NodeType{
	Name: "call",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				defs := rc.Props().Nodes("args")
				args := make([]*graph.GraphNode, len(defs))
				for i, d := range defs {
					args[i] = rc.Activate(d)
				}
				return rc.Call(rc.Activate(rc.Props().Node("target")), args...)
			},
		},
	},
}

// Call calls target with args. Plain Go values are converted with FromValue.
func Call(target *graph.Node, args ...any) *graph.Node {
	defs := make([]*graph.Node, len(args))
	for i, a := range args {
		defs[i] = FromValue(a)
	}
	return graph.NewNode(CallType, graph.Props{"target": target, "args": defs})
}

// Step is one step of an Action: either a request to resolve more
// definitions followed by a continuation, or the final value.
type Step struct {
	deps  []*graph.Node
	next  func(values []any) Step
	value any
	done  bool
}

// Yield resolves deps, in order, and continues with their values.
func Yield(deps []*graph.Node, next func(values []any) Step) Step {
	return Step{deps: deps, next: next}
}

// Done ends an action with value.
func Done(value any) Step {
	return Step{value: value, done: true}
}

// ActionFunc starts an action from the values of its call arguments.
type ActionFunc func(args []any) Step

const maxActionSteps = 10000

// ActionType is a callable running a sequence of steps.
var ActionType = &graph.NodeType{
	Name: "action",
	Operations: map[string]*graph.OperationHandler{
		graph.OpCall: {
			Run: func(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				fn, ok := rc.Props().Opaque("fn").(ActionFunc)
				if !ok {
					return rc.Fail(graph.NewError("action has no function"))
				}
				args := make([]any, len(op.Args()))
				for i, a := range op.Args() {
					v, halt := rc.ValueOf(a)
					if halt != nil {
						return halt
					}
					args[i] = v
				}
				step := fn(args)
				for i := 0; !step.done; i++ {
					if i >= maxActionSteps || step.next == nil {
						return rc.Fail(graph.NewError(fmt.Sprintf("action did not finish after %d steps", i)))
					}
					values := make([]any, len(step.deps))
					for j, d := range step.deps {
						v, halt := rc.Value(d)
						if halt != nil {
							return halt
						}
						values[j] = v
					}
					step = step.next(values)
				}
				return FromValue(step.value)
			},
		},
	},
}

// Action creates a callable running the steps produced by fn. Steps may yield
// side-effecting definitions such as Set; pending or failing steps suspend or
// fail the whole action.
func Action(fn ActionFunc) *graph.Node {
	return graph.NewNode(ActionType, graph.Props{"fn": graph.NewOpaque(fn)})
}
