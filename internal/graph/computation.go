package graph

import (
	"fmt"
	"runtime/debug"
)

// computation is the memoized result of one operation on one graph node.
// It records the computations it read while running (deps) and the ones that
// read it (dependents). A computation is alive while it has subscribers or
// dependents.
type computation struct {
	node *GraphNode
	op   *Operation

	result      *GraphNode
	deps        map[*computation]struct{}
	dependents  map[*computation]struct{}
	subscribers []*Subscription

	dirty    bool
	running  bool
	queued   bool
	disposed bool
}

func (c *computation) String() string {
	return fmt.Sprintf("%s.%s", c.node, c.op)
}

func (c *computation) alive() bool {
	return len(c.subscribers) > 0 || len(c.dependents) > 0
}

// comp returns the computation for (gn, op), creating it on a miss.
func (g *Graph) comp(gn *GraphNode, op *Operation) *computation {
	gn = g.live(gn)
	if c, ok := gn.comps[op.key]; ok {
		return c
	}
	c := &computation{
		node:       gn,
		op:         op,
		deps:       make(map[*computation]struct{}),
		dependents: make(map[*computation]struct{}),
		dirty:      true,
	}
	gn.comps[op.key] = c
	g.retain(gn)
	for _, h := range op.held {
		g.retain(h)
	}
	g.freshComps = append(g.freshComps, c)
	return c
}

// get returns the result of c, recomputing it when dirty.
func (g *Graph) get(c *computation) *GraphNode {
	if !c.dirty && c.result != nil && !c.result.disposed {
		return c.result
	}
	c.dirty = false
	c.running = true
	rc := &RunContext{g: g, comp: c, deps: make(map[*computation]struct{})}
	res := rc.run()
	c.running = false

	g.retain(res)
	old := c.result
	c.result = res
	if old != nil {
		g.releaseLater(old)
	}

	prev := c.deps
	c.deps = rc.deps
	for d := range prev {
		if _, still := c.deps[d]; !still {
			delete(d.dependents, c)
			g.maybeDispose(d)
		}
	}
	return res
}

// track records that the computation being run by rc read d.
func (rc *RunContext) track(d *computation) {
	rc.deps[d] = struct{}{}
	d.dependents[rc.comp] = struct{}{}
}

func (rc *RunContext) run() (res *GraphNode) {
	c := rc.comp
	defer func() {
		if r := recover(); r != nil {
			rc.g.logger.Error("operation handler panicked",
				"node", c.node.String(), "operation", c.op.name, "panic", r, "stack", string(debug.Stack()))
			res = rc.settle(rc.Fail(Errorf("%s %s: %v", c.node.def.typ.Name, c.op.name, r)))
		}
	}()

	if c.op.name == opResolve {
		return rc.resolveResult(c.node, c.op.props.Bool("raw"))
	}

	h, ok := c.node.def.typ.Operations[c.op.name]
	if !ok || h == nil || h.Run == nil {
		return rc.settle(rc.Fail(UnsupportedOperation(c.node.def.typ.Name, c.op.name)))
	}

	var deps []*GraphNode
	if h.Dependencies != nil {
		declared := h.Dependencies(c.node.def, c.op)
		deps = make([]*GraphNode, len(declared))
		for i, d := range declared {
			gn := rc.Resolve(rc.Activate(d.Target), d.Until)
			switch {
			case IsPending(gn) && !d.AcceptPending:
				return gn
			case IsError(gn) && !d.AcceptError:
				return gn
			}
			deps[i] = gn
		}
	}
	return rc.settle(h.Run(rc, c.op, deps))
}

// settle turns a handler outcome into a graph node.
func (rc *RunContext) settle(out Outcome) *GraphNode {
	switch x := out.(type) {
	case nil:
		return rc.Activate(Nil())
	case *Node:
		if x == nil {
			return rc.Activate(Nil())
		}
		return rc.Activate(x)
	case *GraphNode:
		if x == nil {
			return rc.Activate(Nil())
		}
		return rc.g.live(x)
	case *Action:
		return rc.Dispatch(x.Target, x.Operation)
	default:
		return rc.settle(rc.Fail(Errorf("unexpected outcome %T", out)))
	}
}

func (g *Graph) maybeDispose(c *computation) {
	if c.disposed || c.running || c.alive() {
		return
	}
	c.disposed = true
	if cur, ok := c.node.comps[c.op.key]; ok && cur == c {
		delete(c.node.comps, c.op.key)
	}
	deps := c.deps
	c.deps = nil
	for d := range deps {
		delete(d.dependents, c)
		g.maybeDispose(d)
	}
	if c.result != nil {
		g.release(c.result)
		c.result = nil
	}
	for _, h := range c.op.held {
		g.release(h)
	}
	g.release(c.node)
}

// markDirty marks c and everything depending on it dirty and queues the
// subscribed ones for recomputation.
func (g *Graph) markDirty(c *computation) {
	if c.disposed || c.dirty {
		return
	}
	c.dirty = true
	if len(c.subscribers) > 0 && !c.queued {
		c.queued = true
		g.queue = append(g.queue, c)
	}
	for d := range c.dependents {
		g.markDirty(d)
	}
}

// flush recomputes queued subscription roots and delivers their results,
// then evicts whatever the task left unreferenced.
func (g *Graph) flush() {
	for round := 0; len(g.queue) > 0; round++ {
		if round >= g.maxRounds {
			g.logger.Error("graph did not settle, dropping pending recomputations",
				"rounds", round, "pending", len(g.queue))
			for _, c := range g.queue {
				c.queued = false
			}
			g.queue = nil
			break
		}
		queue := g.queue
		g.queue = nil
		for _, c := range queue {
			c.queued = false
			if c.disposed || len(c.subscribers) == 0 {
				continue
			}
			res := g.get(c)
			subs := append([]*Subscription(nil), c.subscribers...)
			for _, s := range subs {
				s.deliver(res)
			}
		}
	}
	g.sweep()
}

// sweep disposes computations and graph nodes created during the task that
// nothing ended up referencing.
func (g *Graph) sweep() {
	for len(g.freshComps) > 0 || len(g.freshNodes) > 0 {
		comps := g.freshComps
		g.freshComps = nil
		for _, c := range comps {
			g.maybeDispose(c)
		}
		nodes := g.freshNodes
		g.freshNodes = nil
		for _, gn := range nodes {
			if gn.refs <= 0 && !gn.disposed {
				g.evict(gn)
			}
		}
	}
}

// perform runs op on target without recording a dependency. The result stays
// valid until the end of the current task.
func (g *Graph) perform(target *GraphNode, op *Operation) *GraphNode {
	c := g.comp(target, op)
	if c.running {
		return c.node.scope.activate(ErrorNode(Errorf("cyclic %s on %s", op.name, c.node.def.typ.Name).WithPath(c.node.Path())), c.node.ctx)
	}
	res := g.get(c)
	g.retain(res)
	g.maybeDispose(c)
	g.releaseLater(res)
	return res
}
