package middleware

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"github.com/specialistvlad/lazygraph/internal/queryset"
)

type queued struct {
	ctx  context.Context
	req  *proxy.Request
	emit func(*proxy.Response)
}

type batcher struct {
	next      proxy.Handler
	scheduler proxy.Scheduler

	mu    sync.Mutex
	queue []*queued
}

// Batch collects requests until the scheduler flushes them and sends them as
// one merged query-set. Every caller receives the part of the merged
// response answering its own request.
//
// The merged request is held for as long as any caller is interested, since a
// streaming transport keeps answering it: it is cancelled once every caller's
// context is done, or as soon as the transport answers with an error, which
// ends a request on every transport.
func Batch(s proxy.Scheduler) proxy.Middleware {
	return func(next proxy.Handler) proxy.Handler {
		b := &batcher{next: next, scheduler: s}
		return b.handle
	}
}

func (b *batcher) handle(ctx context.Context, req *proxy.Request, emit func(*proxy.Response)) {
	b.mu.Lock()
	b.queue = append(b.queue, &queued{ctx: ctx, req: req, emit: emit})
	b.mu.Unlock()
	b.scheduler.Schedule(ctx, b.flush)
}

func (b *batcher) flush() {
	b.mu.Lock()
	queue := b.queue
	b.queue = nil
	b.mu.Unlock()

	live := queue[:0]
	for _, q := range queue {
		if q.ctx.Err() == nil {
			live = append(live, q)
		}
	}
	switch len(live) {
	case 0:
		return
	case 1:
		b.next(live[0].ctx, live[0].req, live[0].emit)
		return
	}

	roots := make([]*queryset.Operation, len(live))
	for i, q := range live {
		roots[i] = q.req.QuerySet
	}
	merged := queryset.Merge(roots...)

	ctx, cancel := context.WithCancel(context.WithoutCancel(live[0].ctx))
	grp := &group{cancel: cancel}
	grp.remaining.Store(int32(len(live)))
	grp.mu.Lock()
	for _, q := range live {
		grp.stops = append(grp.stops, context.AfterFunc(q.ctx, grp.leave))
	}
	grp.mu.Unlock()

	b.next(ctx, &proxy.Request{ID: uuid.NewString(), QuerySet: merged}, func(resp *proxy.Response) {
		for _, q := range live {
			if q.ctx.Err() != nil {
				continue
			}
			if resp.Err != nil {
				q.emit(&proxy.Response{Err: resp.Err})
				continue
			}
			part, err := queryset.Extract(q.req.QuerySet, merged, resp.Result)
			if err != nil {
				q.emit(&proxy.Response{Err: err})
				continue
			}
			q.emit(&proxy.Response{Result: part})
		}
		if resp.Err != nil {
			grp.release()
		}
	})
}

// group tracks the callers sharing one merged request.
type group struct {
	cancel    context.CancelFunc
	remaining atomic.Int32
	once      sync.Once

	mu    sync.Mutex
	stops []func() bool
}

func (g *group) leave() {
	if g.remaining.Add(-1) == 0 {
		g.release()
	}
}

// release cancels the merged request and detaches it from the callers.
func (g *group) release() {
	g.once.Do(func() {
		g.cancel()
		g.mu.Lock()
		defer g.mu.Unlock()
		for _, stop := range g.stops {
			stop()
		}
	})
}
