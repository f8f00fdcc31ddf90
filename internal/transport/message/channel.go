package message

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by channels that were closed by either side.
var ErrClosed = errors.New("message: channel closed")

// Channel carries messages in both directions. Send may be called from
// several goroutines; Receive is called from one. Close unblocks both.
type Channel interface {
	Send(ctx context.Context, m *Message) error
	Receive(ctx context.Context) (*Message, error)
	Close() error
}

type pipe struct {
	done chan struct{}
	once sync.Once
}

type pipeEnd struct {
	p   *pipe
	in  chan *Message
	out chan *Message
}

// Pipe returns the two ends of an in-process channel. Closing either end
// closes both.
func Pipe() (Channel, Channel) {
	p := &pipe{done: make(chan struct{})}
	a2b := make(chan *Message, 16)
	b2a := make(chan *Message, 16)
	return &pipeEnd{p: p, in: b2a, out: a2b}, &pipeEnd{p: p, in: a2b, out: b2a}
}

func (e *pipeEnd) Send(ctx context.Context, m *Message) error {
	select {
	case <-e.p.done:
		return ErrClosed
	default:
	}
	select {
	case e.out <- m:
		return nil
	case <-e.p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *pipeEnd) Receive(ctx context.Context) (*Message, error) {
	select {
	case m := <-e.in:
		return m, nil
	case <-e.p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *pipeEnd) Close() error {
	e.p.once.Do(func() { close(e.p.done) })
	return nil
}

// outbox serializes outgoing messages on one goroutine so that callers never
// block on the channel.
type outbox struct {
	ch    Channel
	mu    sync.Mutex
	queue []*Message
	wake  chan struct{}
}

func newOutbox(ch Channel) *outbox {
	return &outbox{ch: ch, wake: make(chan struct{}, 1)}
}

func (o *outbox) push(m *Message) {
	o.mu.Lock()
	o.queue = append(o.queue, m)
	o.mu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// run sends queued messages until ctx is done or a send fails.
func (o *outbox) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.wake:
		}
		o.mu.Lock()
		batch := o.queue
		o.queue = nil
		o.mu.Unlock()
		for _, m := range batch {
			if err := o.ch.Send(ctx, m); err != nil {
				return err
			}
		}
	}
}
