package graph

import "github.com/specialistvlad/lazygraph/internal/nodepath"

const maxResolveDepth = 1000

// RunContext is handed to operation handlers. Every node read through it is
// recorded as a dependency of the running computation, so the handler reruns
// when any of them is invalidated.
type RunContext struct {
	g    *Graph
	comp *computation
	deps map[*computation]struct{}
}

// Graph returns the graph the handler runs in.
func (rc *RunContext) Graph() *Graph { return rc.g }

// Node returns the graph node the operation runs against.
func (rc *RunContext) Node() *GraphNode { return rc.comp.node }

// Definition returns the definition of the node.
func (rc *RunContext) Definition() *Node { return rc.comp.node.def }

// Props returns the definition properties.
func (rc *RunContext) Props() Props { return rc.comp.node.def.props }

// Context returns the context the node is activated in.
func (rc *RunContext) Context() *Context { return rc.comp.node.ctx }

// Scope returns the scope owning the node.
func (rc *RunContext) Scope() *Scope { return rc.comp.node.scope }

// State returns the state of a stateful node.
func (rc *RunContext) State() any { return rc.g.State(rc.comp.node) }

// Activate activates def next to the node: same scope, same context.
func (rc *RunContext) Activate(def *Node) *GraphNode {
	n := rc.comp.node
	return n.scope.activate(def, n.ctx)
}

// ActivateIn activates def in the node's scope under ctx.
func (rc *RunContext) ActivateIn(def *Node, ctx *Context) *GraphNode {
	return rc.comp.node.scope.activate(def, ctx)
}

// Child activates def as the child of the node under key: its context path
// extends the node's path by key.
func (rc *RunContext) Child(def *Node, key nodepath.Key) *GraphNode {
	n := rc.comp.node
	return n.scope.activate(def, n.ctx.Child(key))
}

// Hold keeps gn alive for as long as the node is alive.
func (rc *RunContext) Hold(gn *GraphNode) {
	rc.g.Hold(rc.comp.node, gn)
}

// Dispatch runs op on target and records the dependency.
func (rc *RunContext) Dispatch(target *GraphNode, op *Operation) *GraphNode {
	c := rc.g.comp(target, op)
	if c.running {
		return rc.Activate(ErrorNode(Errorf("cyclic dependency: %s on %s", op.name, c.node.def.typ.Name).WithPath(c.node.Path())))
	}
	rc.track(c)
	return rc.g.get(c)
}

// Perform runs op on target without recording a dependency. Side effects
// (set, reset) are performed this way.
func (rc *RunContext) Perform(target *GraphNode, op *Operation) *GraphNode {
	return rc.g.perform(target, op)
}

// Fail returns an error outcome located at the node's path unless err
// already carries a path.
func (rc *RunContext) Fail(err *Error) Outcome {
	if len(err.Path) == 0 {
		err = err.WithPath(rc.comp.node.Path())
	}
	return ErrorNode(err)
}

// Resolve evaluates target until until holds. A pending or error node stops
// the resolution and is returned as is; a node that cannot be evaluated
// further without satisfying until yields an UnsupportedOperation error.
func (rc *RunContext) Resolve(target *GraphNode, until Predicate) *GraphNode {
	gn := target
	for depth := 0; ; depth++ {
		if IsSentinel(gn) || until.holds(gn) {
			return gn
		}
		if !gn.Supports(OpEvaluate) {
			return rc.Activate(ErrorNode(UnsupportedOperation(gn.def.typ.Name, until.describe()).WithPath(gn.Path())))
		}
		if depth >= maxResolveDepth {
			return rc.Activate(ErrorNode(Errorf("resolution of %s exceeded %d steps", target.def.typ.Name, maxResolveDepth).WithPath(target.Path())))
		}
		gn = rc.Dispatch(gn, Evaluate())
	}
}

// ResolveUntil is Resolve returning the sentinel separately, for handlers
// that propagate it:
//
//	gn, halt := rc.ResolveUntil(target, graph.Supports(graph.OpGetChild))
//	if halt != nil {
//		return halt
//	}
func (rc *RunContext) ResolveUntil(target *GraphNode, until Predicate) (*GraphNode, Outcome) {
	gn := rc.Resolve(target, until)
	if IsSentinel(gn) {
		return nil, gn
	}
	return gn, nil
}

// Value activates def next to the node and resolves it to a plain value.
func (rc *RunContext) Value(def *Node) (any, Outcome) {
	return rc.ValueOf(rc.Activate(def))
}

// ValueOf resolves gn to a plain value. Collections become lists of their
// item values.
func (rc *RunContext) ValueOf(gn *GraphNode) (any, Outcome) {
	r, halt := rc.ResolveUntil(gn, Terminal)
	if halt != nil {
		return nil, halt
	}
	if v, ok := ValueOf(r); ok {
		return v, nil
	}
	if r.Supports(OpGetItems) {
		items, halt := rc.Items(r, nil)
		if halt != nil {
			return nil, halt
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, halt := rc.ValueOf(item)
			if halt != nil {
				return nil, halt
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, ErrorNode(UnsupportedOperation(r.def.typ.Name, "value").WithPath(r.Path()))
}

// Items requests the items of target with transforms applied.
func (rc *RunContext) Items(target *GraphNode, transforms []*GraphNode) ([]*GraphNode, Outcome) {
	t, halt := rc.ResolveUntil(target, Supports(OpGetItems))
	if halt != nil {
		return nil, halt
	}
	return rc.expectItems(rc.Dispatch(t, GetItems(transforms)), OpGetItems)
}

// Transform applies transforms to items, left to right.
func (rc *RunContext) Transform(items []*GraphNode, transforms []*GraphNode) ([]*GraphNode, Outcome) {
	for _, t := range transforms {
		tr, halt := rc.ResolveUntil(t, Supports(OpTransformItems))
		if halt != nil {
			return nil, halt
		}
		items, halt = rc.expectItems(rc.Dispatch(tr, TransformItems(items)), OpTransformItems)
		if halt != nil {
			return nil, halt
		}
	}
	return items, nil
}

func (rc *RunContext) expectItems(res *GraphNode, op string) ([]*GraphNode, Outcome) {
	r, halt := rc.ResolveUntil(res, Terminal)
	if halt != nil {
		return nil, halt
	}
	if r.def.typ.Name != ItemsTypeName {
		return nil, rc.Fail(Errorf("%s produced %s instead of items", op, r.def.typ.Name))
	}
	return ItemsOf(r), nil
}

// GetChild resolves target to a container and requests its child under key.
func (rc *RunContext) GetChild(target *GraphNode, key nodepath.Key) *GraphNode {
	t, halt := rc.ResolveUntil(target, Supports(OpGetChild))
	if halt != nil {
		return halt.(*GraphNode)
	}
	return rc.Dispatch(t, GetChild(key))
}

// Length resolves target and requests its length.
func (rc *RunContext) Length(target *GraphNode) (int, Outcome) {
	t, halt := rc.ResolveUntil(target, SupportsAny(OpLength, OpGetItems))
	if halt != nil {
		return 0, halt
	}
	if !t.Supports(OpLength) {
		items, halt := rc.Items(t, nil)
		return len(items), halt
	}
	v, halt := rc.ValueOf(rc.Dispatch(t, Length()))
	if halt != nil {
		return 0, halt
	}
	n, ok := v.(float64)
	if !ok {
		return 0, rc.Fail(Errorf("length of %s is %T", t.def.typ.Name, v))
	}
	return int(n), nil
}

// Call resolves fn to a callable node and calls it with args.
func (rc *RunContext) Call(fn *GraphNode, args ...*GraphNode) *GraphNode {
	f, halt := rc.ResolveUntil(fn, Supports(OpCall))
	if halt != nil {
		return halt.(*GraphNode)
	}
	return rc.Dispatch(f, Call(args))
}

// resolveResult is the root computation of a subscription.
func (rc *RunContext) resolveResult(gn *GraphNode, raw bool) *GraphNode {
	r := rc.Resolve(gn, Terminal)
	if raw || IsSentinel(r) || IsValue(r) || !r.Supports(OpGetItems) {
		return r
	}
	v, halt := rc.ValueOf(r)
	if halt != nil {
		return rc.settle(halt)
	}
	return rc.Activate(NewValue(v))
}
