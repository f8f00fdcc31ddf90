package graph

import (
	"sort"
	"sync"
)

// Events is the event bus of a graph. It is created with the graph and closed
// with it; listeners run inside loop tasks.
type Events struct {
	mu        sync.Mutex
	g         *Graph
	seq       int
	listeners map[string]map[int]func(payload any)
	closed    bool
}

func newEvents(g *Graph) *Events {
	return &Events{g: g, listeners: make(map[string]map[int]func(any))}
}

// On registers fn for events named name and returns a function removing it.
func (e *Events) On(name string, fn func(payload any)) (off func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return func() {}
	}
	e.seq++
	id := e.seq
	if e.listeners[name] == nil {
		e.listeners[name] = make(map[int]func(any))
	}
	e.listeners[name][id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners[name], id)
	}
}

// Once registers fn for the next event named name only.
func (e *Events) Once(name string, fn func(payload any)) (off func()) {
	var once sync.Once
	var remove func()
	remove = e.On(name, func(payload any) {
		once.Do(func() {
			remove()
			fn(payload)
		})
	})
	return remove
}

// Emit delivers an event to the listeners registered when it runs, in
// registration order.
func (e *Events) Emit(name string, payload any) {
	e.g.Do(func() {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		ids := make([]int, 0, len(e.listeners[name]))
		for id := range e.listeners[name] {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		fns := make([]func(any), 0, len(ids))
		for _, id := range ids {
			fns = append(fns, e.listeners[name][id])
		}
		e.mu.Unlock()

		for _, fn := range fns {
			fn(payload)
		}
	})
}

// Close drops every listener. Later registrations are ignored.
func (e *Events) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.listeners = nil
}
