package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/lazygraph/internal/graph"
)

// Scheduler decides when a batch is flushed. Schedule is called for every
// request added to a batch; flushing an empty batch does nothing, so a
// scheduler may call flush more often than needed.
type Scheduler interface {
	Schedule(ctx context.Context, flush func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(ctx context.Context, flush func())

// Schedule calls f.
func (f SchedulerFunc) Schedule(ctx context.Context, flush func()) { f(ctx, flush) }

// NextTick flushes after the graph task that issued the requests, so every
// request made while recomputing one change goes out together. Requests
// whose context carries no graph are flushed immediately.
func NextTick() Scheduler {
	return SchedulerFunc(func(ctx context.Context, flush func()) {
		if g := graph.FromContext(ctx); g != nil {
			g.Defer(flush)
			return
		}
		flush()
	})
}

// Manual holds flushes until Flush is called. Tests use it to control
// exactly which requests share a batch.
type Manual struct {
	mu      sync.Mutex
	pending []func()
}

// Schedule records flush.
func (m *Manual) Schedule(_ context.Context, flush func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, flush)
}

// Flush runs the recorded flushes.
func (m *Manual) Flush() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

// OnEvent flushes when an event named name is emitted on the graph's event
// bus.
func OnEvent(name string) Scheduler {
	return SchedulerFunc(func(ctx context.Context, flush func()) {
		g := graph.FromContext(ctx)
		if g == nil {
			flush()
			return
		}
		g.Events().Once(name, func(any) { flush() })
	})
}

type debounce struct {
	d       time.Duration
	mu      sync.Mutex
	timer   *time.Timer
	pending []func()
}

// Debounce flushes once no request has been added for d.
func Debounce(d time.Duration) Scheduler {
	return &debounce{d: d}
}

func (s *debounce) Schedule(_ context.Context, flush func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, flush)
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.d, s.fire)
}

func (s *debounce) fire() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()
	for _, f := range pending {
		f()
	}
}
