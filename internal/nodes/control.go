package nodes

import (
	"github.com/specialistvlad/lazygraph/internal/graph"
)

// SeriesType resolves its steps in order and yields the last one.
var SeriesType = &graph.NodeType{
	Name: "series",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				var last *graph.GraphNode
				for _, step := range rc.Props().Nodes("steps") {
					r, halt := rc.ResolveUntil(rc.Activate(step), graph.Terminal)
					if halt != nil {
						return halt
					}
					last = r
				}
				if last == nil {
					return graph.Nil()
				}
				return last
			},
		},
	},
}

// Series resolves steps one after another. Effects performed by the steps
// within one task reach subscribers as a single update.
func Series(steps ...*graph.Node) *graph.Node {
	return graph.NewNode(SeriesType, graph.Props{"steps": steps})
}

// IfElseType picks a branch by the truthiness of its condition.
var IfElseType = &graph.NodeType{
	Name: "if-else",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				cond, halt := rc.Value(rc.Props().Node("if"))
				if halt != nil {
					return halt
				}
				if Truthy(cond) {
					return rc.Props().Node("then")
				}
				if e := rc.Props().Node("else"); e != nil {
					return e
				}
				return graph.Nil()
			},
		},
	},
}

// IfElse yields then when cond is truthy and otherwise (nil when omitted).
func IfElse(cond, then, otherwise *graph.Node) *graph.Node {
	props := graph.Props{"if": cond, "then": then}
	if otherwise != nil {
		props["else"] = otherwise
	}
	return graph.NewNode(IfElseType, props)
}

// Truthy reports whether v counts as true: everything except nil, false,
// zero and the empty string.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

// ErrorParam is the name under which IfError and CatchError bind the caught
// error for the fallback.
const ErrorParam = "error"

func recoverWith(rc *graph.RunContext, code string) graph.Outcome {
	r := rc.Resolve(rc.Activate(rc.Props().Node("target")), graph.Terminal)
	if !graph.IsError(r) {
		return r
	}
	if code != "" && graph.ErrorOf(r).Code != code {
		return r
	}
	fallback := rc.Props().Node("fallback")
	return rc.ActivateIn(fallback, rc.Context().With(map[string]*graph.GraphNode{ErrorParam: r}))
}

// IfErrorType substitutes a fallback for any error.
var IfErrorType = &graph.NodeType{
	Name: "if-error",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				return recoverWith(rc, "")
			},
		},
	},
}

// IfError yields fallback when target resolves to an error. The fallback can
// read the error with Param(ErrorParam).
func IfError(target, fallback *graph.Node) *graph.Node {
	return graph.NewNode(IfErrorType, graph.Props{"target": target, "fallback": fallback})
}

// CatchErrorType substitutes a fallback for errors of one code.
var CatchErrorType = &graph.NodeType{
	Name: "catch-error",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				return recoverWith(rc, rc.Props().String("code"))
			},
		},
	},
}

// CatchError yields fallback when target fails with code; other errors pass
// through.
func CatchError(code string, target, fallback *graph.Node) *graph.Node {
	return graph.NewNode(CatchErrorType, graph.Props{"code": code, "target": target, "fallback": fallback})
}

// LengthType yields the length of a collection.
var LengthType = &graph.NodeType{
	Name: "length",
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				n, halt := rc.Length(rc.Activate(rc.Props().Node("target")))
				if halt != nil {
					return halt
				}
				return graph.NewValue(n)
			},
		},
	},
}

// Length yields the number of items of target.
func Length(target *graph.Node) *graph.Node {
	return graph.NewNode(LengthType, graph.Props{"target": target})
}
