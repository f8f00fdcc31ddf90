package graph

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
)

// DefaultMaxFlushRounds bounds the recomputation rounds of one flush.
const DefaultMaxFlushRounds = 100

// Graph is a live graph: a root scope, the loop every mutation runs on, and
// the computations currently kept alive by subscriptions.
type Graph struct {
	registry  *Registry
	logger    *slog.Logger
	maxRounds int

	loop   loop
	events *Events
	ids    atomic.Uint64

	// Loop-owned state.
	root       *Scope
	subs       map[*Subscription]struct{}
	queue      []*computation
	freshNodes []*GraphNode
	freshComps []*computation
	closed     bool
}

// Option configures a Graph.
type Option func(*Graph)

// WithRegistry sets the registry used to decode definitions for this graph.
func WithRegistry(r *Registry) Option {
	return func(g *Graph) { g.registry = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) { g.logger = l }
}

// WithMaxFlushRounds overrides DefaultMaxFlushRounds.
func WithMaxFlushRounds(n int) Option {
	return func(g *Graph) { g.maxRounds = n }
}

// New creates a graph whose root scope holds root.
func New(root *Node, opts ...Option) *Graph {
	g := &Graph{maxRounds: DefaultMaxFlushRounds, subs: make(map[*Subscription]struct{})}
	for _, opt := range opts {
		opt(g)
	}
	if g.registry == nil {
		g.registry = NewRegistry()
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.events = newEvents(g)
	g.Do(func() {
		g.root = g.NewScope(nil, root, newRootContext())
	})
	return g
}

func (g *Graph) nextID() uint64 { return g.ids.Add(1) }

// Registry returns the graph's type registry.
func (g *Graph) Registry() *Registry { return g.registry }

// Logger returns the graph's logger.
func (g *Graph) Logger() *slog.Logger { return g.logger }

// Events returns the graph's event bus.
func (g *Graph) Events() *Events { return g.events }

// Root returns the root scope.
func (g *Graph) Root() *Scope { return g.root }

// Do runs task on the graph loop. When the loop is idle the task runs before
// Do returns; otherwise it is queued behind the running task. Invalidations
// made by the task are flushed to subscribers when it ends.
func (g *Graph) Do(task func()) {
	g.loop.do(func() {
		task()
		g.flush()
	})
}

// Defer queues task to run after the current loop task and its flush.
func (g *Graph) Defer(task func()) {
	g.Do(task)
}

// Dispatch emits an event on the graph's event bus.
func (g *Graph) Dispatch(name string, payload any) {
	g.events.Emit(name, payload)
}

// Invalidate marks every computation of gn dirty. Subscriptions depending on
// them are recomputed once when the current task ends.
func (g *Graph) Invalidate(gn *GraphNode) {
	keys := make([]string, 0, len(gn.comps))
	for k := range gn.comps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		g.markDirty(gn.comps[k])
	}
}

// Close disposes the root scope and the event bus. Subscriptions stop
// receiving results.
func (g *Graph) Close() {
	g.Do(func() {
		if g.closed {
			return
		}
		g.closed = true
		for s := range g.subs {
			s.detach()
		}
		g.DisposeScope(g.root)
		g.events.Close()
	})
}

type graphKey struct{}

// WithGraph returns a context carrying g.
func WithGraph(ctx context.Context, g *Graph) context.Context {
	return context.WithValue(ctx, graphKey{}, g)
}

// FromContext returns the graph carried by ctx, or nil.
func FromContext(ctx context.Context) *Graph {
	g, _ := ctx.Value(graphKey{}).(*Graph)
	return g
}
