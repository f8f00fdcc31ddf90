package message

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"golang.org/x/sync/errgroup"
)

type client struct {
	ch    Channel
	out   *outbox
	start sync.Once

	mu   sync.Mutex
	subs map[string]func(*proxy.Response)
	err  *graph.Error
}

// Client ends a proxy pipeline with a subscription over ch. Every request
// becomes a subscription that is unsubscribed when the request context is
// done. When the channel fails, open and later requests fail with a
// NetworkError.
func Client(ch Channel) proxy.Middleware {
	c := &client{ch: ch, out: newOutbox(ch), subs: make(map[string]func(*proxy.Response))}
	return func(proxy.Handler) proxy.Handler { return c.handle }
}

func (c *client) handle(ctx context.Context, req *proxy.Request, emit func(*proxy.Response)) {
	c.start.Do(func() { go c.run(ctxlog.WithLogger(context.Background(), ctxlog.FromContext(ctx))) })

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		emit(&proxy.Response{Err: err})
		return
	}
	c.subs[id] = emit
	c.mu.Unlock()

	c.out.push(&Message{Type: TypeSubscribe, ID: id, QuerySet: req.QuerySet})
	context.AfterFunc(ctx, func() {
		c.mu.Lock()
		_, live := c.subs[id]
		delete(c.subs, id)
		c.mu.Unlock()
		if live {
			c.out.push(&Message{Type: TypeUnsubscribe, ID: id})
		}
	})
}

func (c *client) run(ctx context.Context) {
	eg, ctx := errgroup.WithContext(ctx)
	context.AfterFunc(ctx, func() { _ = c.ch.Close() })
	eg.Go(func() error { return c.out.run(ctx) })
	eg.Go(func() error { return c.read(ctx) })
	err := eg.Wait()
	if err == nil {
		err = ErrClosed
	}
	ctxlog.FromContext(ctx).Debug("message channel ended", "error", err)
	c.fail(graph.NetworkError(err))
}

func (c *client) read(ctx context.Context) error {
	for {
		m, err := c.ch.Receive(ctx)
		if err != nil {
			return err
		}
		if m.Type != TypeSubscriptionResult {
			ctxlog.FromContext(ctx).Warn("ignoring unexpected message", "type", m.Type, "id", m.ID)
			continue
		}
		c.mu.Lock()
		emit := c.subs[m.ID]
		c.mu.Unlock()
		if emit != nil {
			emit(m.Response())
		}
	}
}

// fail ends every open subscription with err.
func (c *client) fail(err *graph.Error) {
	c.mu.Lock()
	c.err = err
	subs := c.subs
	c.subs = make(map[string]func(*proxy.Response))
	c.mu.Unlock()
	for _, emit := range subs {
		emit(&proxy.Response{Err: err})
	}
}

// Serve answers the subscriptions arriving on ch with h until ctx is done or
// the channel fails. It closes ch when it returns. A channel closed by the
// peer ends Serve without an error.
func Serve(ctx context.Context, ch Channel, h proxy.Handler) error {
	eg, ctx := errgroup.WithContext(ctx)
	context.AfterFunc(ctx, func() { _ = ch.Close() })
	out := newOutbox(ch)
	eg.Go(func() error { return out.run(ctx) })
	eg.Go(func() error {
		subs := make(map[string]context.CancelFunc)
		defer func() {
			for _, cancel := range subs {
				cancel()
			}
		}()
		logger := ctxlog.FromContext(ctx)
		for {
			m, err := ch.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			switch m.Type {
			case TypeSubscribe:
				if cancel, ok := subs[m.ID]; ok {
					cancel()
				}
				sctx, cancel := context.WithCancel(ctx)
				subs[m.ID] = cancel
				id := m.ID
				h(sctx, &proxy.Request{ID: id, QuerySet: m.QuerySet}, func(resp *proxy.Response) {
					out.push(Result(TypeSubscriptionResult, id, resp))
				})
			case TypeUnsubscribe:
				if cancel, ok := subs[m.ID]; ok {
					cancel()
					delete(subs, m.ID)
				}
			default:
				logger.Warn("ignoring unexpected message", "type", m.Type, "id", m.ID)
			}
		}
	})
	err := eg.Wait()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}
