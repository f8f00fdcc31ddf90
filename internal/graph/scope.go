package graph

import (
	"fmt"

	"github.com/specialistvlad/lazygraph/internal/nodepath"
)

// Scope is an isolation and caching boundary. It owns the registry of live
// graph nodes activated inside it.
type Scope struct {
	id       uint64
	graph    *Graph
	parent   *Scope
	nodes    map[registryKey]*GraphNode
	ctx      *Context
	root     *GraphNode
	marker   *GraphNode
	pinned   []*GraphNode
	disposed bool
}

type registryKey struct {
	def string
	ctx uint64
}

// Root returns the graph node the scope was created for.
func (s *Scope) Root() *GraphNode { return s.root }

// Context returns the context nodes of the scope are activated in. It binds
// RootKey to the scope root.
func (s *Scope) Context() *Context { return s.ctx }

// Parent returns the enclosing scope, nil for the root scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Len returns the number of live graph nodes registered in the scope.
func (s *Scope) Len() int { return len(s.nodes) }

// activate returns the graph node registered for (def, ctx), creating it on a
// miss.
func (s *Scope) activate(def *Node, ctx *Context) *GraphNode {
	k := registryKey{def: def.key, ctx: ctx.id}
	if gn, ok := s.nodes[k]; ok && !gn.disposed {
		return gn
	}
	g := s.graph
	gn := &GraphNode{
		id:    g.nextID(),
		def:   def,
		scope: s,
		ctx:   ctx,
		comps: make(map[string]*computation),
	}
	s.nodes[k] = gn
	g.retainContext(ctx)
	for _, h := range def.held {
		g.retain(h)
	}
	g.freshNodes = append(g.freshNodes, gn)
	return gn
}

// GraphNode is a definition activated inside a scope and context.
type GraphNode struct {
	id    uint64
	def   *Node
	scope *Scope
	ctx   *Context

	refs      int
	comps     map[string]*computation
	state     any
	stateInit bool
	holds     []*GraphNode
	pinned    bool
	disposed  bool
}

// ID returns the activation id, unique within the graph.
func (gn *GraphNode) ID() uint64 { return gn.id }

// Definition returns the definition this node activates.
func (gn *GraphNode) Definition() *Node { return gn.def }

// Type returns the node type.
func (gn *GraphNode) Type() *NodeType { return gn.def.typ }

// Scope returns the owning scope.
func (gn *GraphNode) Scope() *Scope { return gn.scope }

// Context returns the activation context.
func (gn *GraphNode) Context() *Context { return gn.ctx }

// Path returns the graph path recorded in the activation context.
func (gn *GraphNode) Path() nodepath.Path { return gn.ctx.Path() }

// Supports reports whether the node's type handles op.
func (gn *GraphNode) Supports(op string) bool { return gn.def.typ.Supports(op) }

// Disposed reports whether the node has been evicted.
func (gn *GraphNode) Disposed() bool { return gn.disposed }

func (gn *GraphNode) String() string {
	return fmt.Sprintf("%s@%d", gn.def.typ.Name, gn.id)
}

func (g *Graph) retain(gn *GraphNode) {
	gn.refs++
}

func (g *Graph) release(gn *GraphNode) {
	gn.refs--
	if gn.refs <= 0 && !gn.disposed {
		g.evict(gn)
	}
}

// releaseLater drops a reference without evicting immediately; a node left
// unreferenced is evicted by the end-of-task sweep.
func (g *Graph) releaseLater(gn *GraphNode) {
	gn.refs--
	if gn.refs <= 0 {
		g.freshNodes = append(g.freshNodes, gn)
	}
}

func (g *Graph) evict(gn *GraphNode) {
	if gn.disposed {
		return
	}
	gn.disposed = true

	k := registryKey{def: gn.def.key, ctx: gn.ctx.id}
	if cur, ok := gn.scope.nodes[k]; ok && cur == gn {
		delete(gn.scope.nodes, k)
	}
	if gn.stateInit && gn.def.typ.OnDispose != nil {
		gn.def.typ.OnDispose(g, gn, gn.state)
	}
	gn.state = nil

	holds := gn.holds
	gn.holds = nil
	for _, h := range holds {
		g.release(h)
	}
	for _, h := range gn.def.held {
		g.release(h)
	}
	g.releaseContext(gn.ctx)
}

func (g *Graph) retainContext(c *Context) {
	for ; c != nil; c = c.parent {
		c.refs++
		if c.refs > 1 {
			return
		}
		for _, v := range c.values {
			g.retain(v)
		}
	}
}

func (g *Graph) releaseContext(c *Context) {
	for ; c != nil; c = c.parent {
		c.refs--
		if c.refs > 0 {
			return
		}
		for _, v := range c.values {
			g.release(v)
		}
	}
}

// live returns gn, or a fresh activation of the same definition when gn has
// already been evicted.
func (g *Graph) live(gn *GraphNode) *GraphNode {
	if !gn.disposed {
		return gn
	}
	return gn.scope.activate(gn.def, gn.ctx)
}

// Hold keeps gn alive for as long as owner is alive.
func (g *Graph) Hold(owner, gn *GraphNode) {
	owner.holds = append(owner.holds, gn)
	g.retain(gn)
}

// Pin keeps gn alive until its scope is disposed, so its state outlives the
// subscriptions that created it. Pinning twice is a no-op.
func (g *Graph) Pin(gn *GraphNode) {
	if gn.pinned || gn.disposed || gn.scope.disposed {
		return
	}
	gn.pinned = true
	gn.scope.pinned = append(gn.scope.pinned, gn)
	g.retain(gn)
}

// State returns the state of a stateful graph node, creating it on first
// access. It must be called from a loop task.
func (g *Graph) State(gn *GraphNode) any {
	if !gn.stateInit && gn.def.typ.InitState != nil && !gn.disposed {
		gn.stateInit = true
		gn.state = gn.def.typ.InitState(g, gn)
	}
	return gn.state
}

// NewScope creates a child scope of parent whose root is def activated in
// ctx. Refs inside the new scope resolve against its root. The scope stays
// alive until DisposeScope.
func (g *Graph) NewScope(parent *Scope, def *Node, ctx *Context) *Scope {
	s := &Scope{
		id:     g.nextID(),
		graph:  g,
		parent: parent,
		nodes:  make(map[registryKey]*GraphNode),
	}
	s.marker = s.activate(NewNode(scopeRootType, Props{"scope": NewOpaque(s)}), ctx)
	g.retain(s.marker)
	s.ctx = ctx.With(map[string]*GraphNode{RootKey: s.marker})
	s.root = s.activate(def, s.ctx)
	g.retain(s.root)
	return s
}

// DisposeScope releases the scope's root. Nodes still referenced from outside
// the scope stay alive until their last reference goes away.
func (g *Graph) DisposeScope(s *Scope) {
	if s.disposed {
		return
	}
	s.disposed = true
	pinned := s.pinned
	s.pinned = nil
	for _, gn := range pinned {
		g.release(gn)
	}
	g.release(s.root)
	g.release(s.marker)
}

// scopeRootType marks the root of a scope in the context. Evaluating it
// yields the scope's root node.
var scopeRootType = &NodeType{
	Name: "$scope-root",
	Operations: map[string]*OperationHandler{
		OpEvaluate: {
			Run: func(rc *RunContext, _ *Operation, _ []*GraphNode) Outcome {
				s, _ := rc.Definition().Props().Opaque("scope").(*Scope)
				if s == nil || s.root == nil {
					return rc.Fail(NewError("scope has no root"))
				}
				return s.root
			},
		},
	},
}
