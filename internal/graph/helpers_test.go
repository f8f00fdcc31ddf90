package graph

import (
	"io"
	"log/slog"
	"testing"

	"github.com/specialistvlad/lazygraph/internal/nodepath"
)

// lifecycle counts lifecycle events of the test node types.
type lifecycle struct {
	inits    int
	disposes int
	runs     int
}

func countsOf(n *Node) *lifecycle {
	p, _ := n.Props().Opaque("lifecycle").(*lifecycle)
	if p == nil {
		return &lifecycle{}
	}
	return p
}

type varState struct{ value any }

// testVarType is a minimal stateful node: evaluate yields its current value.
var testVarType = &NodeType{
	Name: "test-var",
	InitState: func(_ *Graph, gn *GraphNode) any {
		countsOf(gn.Definition()).inits++
		return &varState{value: gn.Definition().Prop("initial")}
	},
	OnDispose: func(_ *Graph, gn *GraphNode, _ any) {
		countsOf(gn.Definition()).disposes++
	},
	Operations: map[string]*OperationHandler{
		OpEvaluate: {
			Run: func(rc *RunContext, _ *Operation, _ []*GraphNode) Outcome {
				return NewValue(rc.State().(*varState).value)
			},
		},
	},
}

func testVar(initial any, p *lifecycle) *Node {
	return NewNode(testVarType, Props{"initial": initial, "lifecycle": NewOpaque(p)})
}

// testSumType adds the values of its two declared dependencies.
var testSumType = &NodeType{
	Name: "test-sum",
	Operations: map[string]*OperationHandler{
		OpEvaluate: {
			Dependencies: func(n *Node, _ *Operation) []Dependency {
				return []Dependency{{Target: n.Props().Node("a")}, {Target: n.Props().Node("b")}}
			},
			Run: func(rc *RunContext, _ *Operation, deps []*GraphNode) Outcome {
				countsOf(rc.Definition()).runs++
				a, _ := ValueOf(deps[0])
				b, _ := ValueOf(deps[1])
				return NewValue(a.(float64) + b.(float64))
			},
		},
	},
}

func testSum(a, b *Node, p *lifecycle) *Node {
	return NewNode(testSumType, Props{"a": a, "b": b, "lifecycle": NewOpaque(p)})
}

// testTreeType is a container whose children are definitions.
var testTreeType = &NodeType{
	Name: "test-tree",
	Operations: map[string]*OperationHandler{
		OpGetChild: {
			Run: func(rc *RunContext, op *Operation, _ []*GraphNode) Outcome {
				key := op.ChildKey()
				child, ok := rc.Props().NodeMap("children")[key.Name]
				if !ok {
					return rc.Fail(InvalidChildKey(key))
				}
				return rc.Child(child, key)
			},
		},
	},
}

func testTree(children map[string]*Node) *Node {
	return NewNode(testTreeType, Props{"children": children})
}

// testGetType evaluates to the child of its target under key.
var testGetType = &NodeType{
	Name: "test-get",
	Operations: map[string]*OperationHandler{
		OpEvaluate: {
			Run: func(rc *RunContext, _ *Operation, _ []*GraphNode) Outcome {
				target := rc.Activate(rc.Props().Node("target"))
				return rc.GetChild(target, nodepath.Name(rc.Props().String("key")))
			},
		},
	},
}

func testGet(target *Node, keys ...string) *Node {
	n := target
	for _, k := range keys {
		n = NewNode(testGetType, Props{"target": n, "key": k})
	}
	return n
}

// testArrayType lists its item definitions.
var testArrayType = &NodeType{
	Name: "test-array",
	Operations: map[string]*OperationHandler{
		OpGetItems: {
			Run: func(rc *RunContext, op *Operation, _ []*GraphNode) Outcome {
				defs := rc.Props().Nodes("items")
				items := make([]*GraphNode, len(defs))
				for i, d := range defs {
					items[i] = rc.Child(d, nodepath.Index(i))
				}
				items, halt := rc.Transform(items, op.Transforms())
				if halt != nil {
					return halt
				}
				return Items(items)
			},
		},
	},
}

func testArray(values ...any) *Node {
	defs := make([]*Node, len(values))
	for i, v := range values {
		defs[i] = NewValue(v)
	}
	return NewNode(testArrayType, Props{"items": defs})
}

var (
	testFailType = &NodeType{
		Name: "test-fail",
		Operations: map[string]*OperationHandler{
			OpEvaluate: {Run: func(rc *RunContext, _ *Operation, _ []*GraphNode) Outcome {
				return rc.Fail(NewError(rc.Props().String("message")))
			}},
		},
	}
	testPendingType = &NodeType{
		Name: "test-pending",
		Operations: map[string]*OperationHandler{
			OpEvaluate: {Run: func(*RunContext, *Operation, []*GraphNode) Outcome { return Pending() }},
		},
	}
	testPanicType = &NodeType{
		Name: "test-panic",
		Operations: map[string]*OperationHandler{
			OpEvaluate: {Run: func(*RunContext, *Operation, []*GraphNode) Outcome { panic("kaboom") }},
		},
	}
)

func newTestGraph(t *testing.T, root *Node) *Graph {
	t.Helper()
	if root == nil {
		root = Nil()
	}
	g := New(root, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(g.Close)
	return g
}

// recorder collects subscription results.
type recorder struct {
	results []Result
}

func (r *recorder) observe(res Result) { r.results = append(r.results, res) }

func (r *recorder) last() Result {
	if len(r.results) == 0 {
		return Result{}
	}
	return r.results[len(r.results)-1]
}

// setVar replaces the state of an active test variable.
func setVar(g *Graph, def *Node, v any) {
	gn := g.root.activate(def, g.root.ctx)
	g.State(gn).(*varState).value = NormalizeValue(v)
	g.Invalidate(gn)
}
