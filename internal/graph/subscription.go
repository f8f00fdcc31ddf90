package graph

import (
	"context"
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// Result is one emission of a subscription. Exactly one of Pending, Err and
// "a value" holds; Node is the terminal definition the result was read from.
type Result struct {
	Value   any
	Pending bool
	Err     *Error
	Node    *Node
}

// Observer receives subscription results. It runs inside a loop task and
// must not block.
type Observer func(Result)

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	raw   bool
	scope *Scope
	ctx   *Context
}

// Raw delivers the terminal definition without converting collections into
// value lists. Nested remote resolution subscribes this way.
func Raw() SubscribeOption {
	return func(o *subscribeOptions) { o.raw = true }
}

// In activates the subscribed definition in the given scope and context
// instead of the root scope.
func In(s *Scope, ctx *Context) SubscribeOption {
	return func(o *subscribeOptions) {
		o.scope = s
		o.ctx = ctx
	}
}

// Subscription is a live observer of a definition's result.
type Subscription struct {
	g        *Graph
	comp     *computation
	observer Observer
	last     *Result
	closed   bool
}

var resultCmpOpts = []cmp.Option{
	cmp.Exporter(func(reflect.Type) bool { return true }),
	cmp.Comparer(func(a, b *Node) bool { return a.Equal(b) }),
}

// Subscribe activates def in the root scope and observes its result. The
// initial result is delivered before Subscribe returns when the loop is idle.
func (g *Graph) Subscribe(def *Node, observer Observer, opts ...SubscribeOption) *Subscription {
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	s := &Subscription{g: g, observer: observer}
	g.Do(func() {
		if g.closed {
			s.closed = true
			return
		}
		scope, ctx := g.root, g.root.ctx
		if o.scope != nil {
			scope, ctx = o.scope, o.ctx
		}
		gn := scope.activate(def, ctx)
		c := g.comp(gn, resolveOp(o.raw))
		c.subscribers = append(c.subscribers, s)
		s.comp = c
		g.subs[s] = struct{}{}
		g.logger.Debug("subscribed", "node", gn.String())
		s.deliver(g.get(c))
	})
	return s
}

// Unsubscribe stops the subscription. Computations and graph nodes only it
// kept alive are disposed.
func (s *Subscription) Unsubscribe() {
	s.g.Do(s.detach)
}

func (s *Subscription) detach() {
	if s.closed {
		return
	}
	s.closed = true
	delete(s.g.subs, s)
	c := s.comp
	if c == nil {
		return
	}
	for i, sub := range c.subscribers {
		if sub == s {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			break
		}
	}
	s.g.logger.Debug("unsubscribed", "node", c.node.String())
	s.g.maybeDispose(c)
}

func (s *Subscription) deliver(gn *GraphNode) {
	if s.closed {
		return
	}
	r := resultOf(gn)
	if s.last != nil && cmp.Equal(*s.last, r, resultCmpOpts...) {
		return
	}
	s.last = &r
	s.observer(r)
}

func resultOf(gn *GraphNode) Result {
	switch {
	case IsPending(gn):
		return Result{Pending: true, Node: gn.def}
	case IsError(gn):
		return Result{Err: ErrorOf(gn), Node: gn.def}
	default:
		v, _ := ValueOf(gn)
		return Result{Value: v, Node: gn.def}
	}
}

// Resolve subscribes to def and returns its first non-pending value. It must
// not be called from inside a loop task.
func (g *Graph) Resolve(ctx context.Context, def *Node, opts ...SubscribeOption) (any, error) {
	r, err := g.First(ctx, def, opts...)
	if err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Value, nil
}

// First subscribes to def and returns its first non-pending result.
func (g *Graph) First(ctx context.Context, def *Node, opts ...SubscribeOption) (Result, error) {
	ch := make(chan Result, 1)
	sub := g.Subscribe(def, func(r Result) {
		if r.Pending {
			return
		}
		select {
		case ch <- r:
		default:
		}
	}, opts...)
	defer sub.Unsubscribe()

	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
