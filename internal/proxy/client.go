package proxy

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/queryset"
)

// client owns the requests of one proxy node. Identical fragment requests
// are shared between the graph nodes watching them. It is only touched
// inside loop tasks.
type client struct {
	g       *graph.Graph
	node    *graph.GraphNode
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc

	fragments map[string]*fragment
}

// fragment is one live request and its latest response.
type fragment struct {
	key      string
	request  *queryset.Operation
	watchers map[*graph.GraphNode]int

	seq    int
	cancel context.CancelFunc
	closed bool

	has    bool
	result any
	err    error
}

func newClient(g *graph.Graph, node *graph.GraphNode, h Handler) *client {
	ctx := ctxlog.WithLogger(graph.WithGraph(context.Background(), g), g.Logger())
	ctx, cancel := context.WithCancel(ctx)
	return &client{
		g:         g,
		node:      node,
		handler:   h,
		ctx:       ctx,
		cancel:    cancel,
		fragments: make(map[string]*fragment),
	}
}

// acquire registers watcher on the fragment for req, sending the request if
// nobody asked for it yet.
func (c *client) acquire(req *queryset.Operation, watcher *graph.GraphNode) *fragment {
	key := req.CanonicalKey()
	f, ok := c.fragments[key]
	if !ok {
		f = &fragment{key: key, request: req, watchers: make(map[*graph.GraphNode]int)}
		c.fragments[key] = f
		c.send(f)
	}
	f.watchers[watcher]++
	return f
}

// release drops one interest of watcher. The request of a fragment nobody
// watches is cancelled.
func (c *client) release(f *fragment, watcher *graph.GraphNode) {
	f.watchers[watcher]--
	if f.watchers[watcher] <= 0 {
		delete(f.watchers, watcher)
	}
	if len(f.watchers) > 0 || f.closed {
		return
	}
	f.closed = true
	f.cancel()
	delete(c.fragments, f.key)
	c.g.Logger().Debug("released remote fragment", "proxy", c.node.String(), "request", f.key)
}

func (c *client) send(f *fragment) {
	if f.cancel != nil {
		f.cancel()
	}
	f.seq++
	seq := f.seq
	ctx, cancel := context.WithCancel(c.ctx)
	f.cancel = cancel
	req := &Request{ID: uuid.NewString(), QuerySet: f.request}
	c.g.Logger().Debug("sending remote fragment", "proxy", c.node.String(), "id", req.ID, "request", f.key)

	c.handler(ctx, req, func(resp *Response) {
		c.g.Do(func() {
			if f.closed || f.seq != seq {
				c.g.Logger().Debug("dropping stale response", "id", req.ID)
				return
			}
			f.has, f.result, f.err = true, resp.Result, resp.Err
			for w := range f.watchers {
				c.g.Invalidate(w)
			}
		})
	})
}

// perform sends a one-off request, typically a set, and refreshes every live
// fragment once it is acknowledged.
func (c *client) perform(req *queryset.Operation) {
	ctx, cancel := context.WithCancel(c.ctx)
	id := uuid.NewString()
	done := false
	c.handler(ctx, &Request{ID: id, QuerySet: req}, func(resp *Response) {
		c.g.Do(func() {
			if done {
				return
			}
			done = true
			cancel()
			if resp.Err != nil {
				c.g.Logger().Warn("remote update failed", "proxy", c.node.String(), "id", id, "error", resp.Err)
			}
			c.refresh()
		})
	})
}

// refresh re-sends every live fragment. Responses of the previous requests
// are dropped; the previous results stay visible until new ones arrive.
func (c *client) refresh() {
	if c.ctx.Err() != nil {
		return
	}
	keys := make([]string, 0, len(c.fragments))
	for k := range c.fragments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.send(c.fragments[k])
	}
}

func (c *client) close() {
	for _, f := range c.fragments {
		f.closed = true
		f.cancel()
	}
	c.fragments = make(map[string]*fragment)
	c.cancel()
}
