package nodes

import (
	"context"
	"errors"

	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/graph"
)

// FutureFunc produces one value. The context is cancelled when nobody is
// interested in the value any more.
type FutureFunc func(ctx context.Context) (any, error)

// StreamFunc produces values by calling emit until it returns. The context is
// cancelled when nobody is interested in the stream any more.
type StreamFunc func(ctx context.Context, emit func(any)) error

// asyncState is shared by the future and stream adapters. It is only touched
// inside loop tasks.
type asyncState struct {
	cancel   context.CancelFunc
	has      bool
	value    any
	err      error
	disposed bool
}

func (s *asyncState) outcome() graph.Outcome {
	switch {
	case s.err != nil:
		return graph.ErrorNode(graph.AsError(s.err))
	case !s.has:
		return graph.Pending()
	default:
		return FromValue(s.value)
	}
}

// asyncContext is the context handed to goroutines started by stateful
// nodes. It carries the graph and its logger.
func asyncContext(g *graph.Graph) (context.Context, context.CancelFunc) {
	ctx := ctxlog.WithLogger(graph.WithGraph(context.Background(), g), g.Logger())
	return context.WithCancel(ctx)
}

func disposeAsync(_ *graph.Graph, _ *graph.GraphNode, state any) {
	st := state.(*asyncState)
	st.disposed = true
	st.cancel()
}

func evaluateAsync(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
	st := rc.State().(*asyncState)
	if st.err != nil {
		return rc.Fail(graph.AsError(st.err))
	}
	return st.outcome()
}

// FromFutureType adapts a FutureFunc: pending until the function returns.
var FromFutureType = &graph.NodeType{
	Name: "from-future",
	InitState: func(g *graph.Graph, gn *graph.GraphNode) any {
		fn, _ := gn.Definition().Props().Opaque("fn").(FutureFunc)
		ctx, cancel := asyncContext(g)
		st := &asyncState{cancel: cancel}
		go func() {
			v, err := fn(ctx)
			g.Do(func() {
				if st.disposed {
					ctxlog.FromContext(ctx).Debug("dropping late future result", "node", gn.String())
					return
				}
				st.has, st.value, st.err = true, v, err
				g.Invalidate(gn)
			})
		}()
		return st
	},
	OnDispose: disposeAsync,
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {Run: evaluateAsync},
	},
}

// FromFuture runs fn in a goroutine once per activation and yields pending
// until it returns.
func FromFuture(fn FutureFunc) *graph.Node {
	return graph.NewNode(FromFutureType, graph.Props{"fn": graph.NewOpaque(fn)})
}

// FromStreamType adapts a StreamFunc: pending until the first value, then
// the latest value.
var FromStreamType = &graph.NodeType{
	Name: "from-stream",
	InitState: func(g *graph.Graph, gn *graph.GraphNode) any {
		fn, _ := gn.Definition().Props().Opaque("fn").(StreamFunc)
		ctx, cancel := asyncContext(g)
		st := &asyncState{cancel: cancel}
		emit := func(v any) {
			g.Do(func() {
				if st.disposed {
					return
				}
				st.has, st.value = true, v
				g.Invalidate(gn)
			})
		}
		go func() {
			err := fn(ctx, emit)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			g.Do(func() {
				if st.disposed {
					return
				}
				st.err = err
				g.Invalidate(gn)
			})
		}()
		return st
	},
	OnDispose: disposeAsync,
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {Run: evaluateAsync},
	},
}

// FromStream runs fn in a goroutine once per activation and yields the latest
// value it emitted.
func FromStream(fn StreamFunc) *graph.Node {
	return graph.NewNode(FromStreamType, graph.Props{"fn": graph.NewOpaque(fn)})
}

type eventState struct {
	off   func()
	has   bool
	value any
}

// OnGlobalEventType yields the payload of the latest event of one name.
var OnGlobalEventType = &graph.NodeType{
	Name: "on-global-event",
	InitState: func(g *graph.Graph, gn *graph.GraphNode) any {
		st := &eventState{}
		st.off = g.Events().On(gn.Definition().Props().String("name"), func(payload any) {
			if gn.Disposed() {
				return
			}
			st.has, st.value = true, graph.NormalizeValue(payload)
			g.Invalidate(gn)
		})
		return st
	},
	OnDispose: func(_ *graph.Graph, _ *graph.GraphNode, state any) {
		state.(*eventState).off()
	},
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				st := rc.State().(*eventState)
				if !st.has {
					if initial := rc.Props().Node("initial"); initial != nil {
						return initial
					}
					return graph.Nil()
				}
				return graph.NewValue(st.value)
			},
		},
	},
}

// OnGlobalEvent yields the payload of the latest event named name emitted on
// the graph's event bus, or initial before the first one.
func OnGlobalEvent(name string, initial any) *graph.Node {
	props := graph.Props{"name": name}
	if initial != nil {
		props["initial"] = FromValue(initial)
	}
	return graph.NewNode(OnGlobalEventType, props)
}

// DispatchType emits an event, once per activation.
var DispatchType = &graph.NodeType{
	Name:      "dispatch",
	InitState: newOnceState,
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				st := rc.State().(*onceState)
				if st.done {
					return st.result
				}
				var payload any
				if def := rc.Props().Node("payload"); def != nil {
					v, halt := rc.Value(def)
					if halt != nil {
						return halt
					}
					payload = v
				}
				rc.Graph().Dispatch(rc.Props().String("name"), payload)
				st.done, st.result = true, graph.Nil()
				return st.result
			},
		},
	},
}

// Dispatch emits an event named name with payload on the graph's event bus.
func Dispatch(name string, payload any) *graph.Node {
	props := graph.Props{"name": name}
	if payload != nil {
		props["payload"] = FromValue(payload)
	}
	return graph.NewNode(DispatchType, props)
}

// ScopeType evaluates its root in a child scope owned by the node.
var ScopeType = &graph.NodeType{
	Name: "scope",
	InitState: func(g *graph.Graph, gn *graph.GraphNode) any {
		return g.NewScope(gn.Scope(), gn.Definition().Props().Node("root"), gn.Context())
	},
	OnDispose: func(g *graph.Graph, _ *graph.GraphNode, state any) {
		g.DisposeScope(state.(*graph.Scope))
	},
	Operations: map[string]*graph.OperationHandler{
		graph.OpEvaluate: {
			Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				return rc.State().(*graph.Scope).Root()
			},
		},
	},
}

// Scope evaluates root in an isolated child scope. Refs inside root resolve
// against root itself.
func Scope(root *graph.Node) *graph.Node {
	return graph.NewNode(ScopeType, graph.Props{"root": root})
}
