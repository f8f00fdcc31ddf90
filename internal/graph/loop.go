package graph

import "sync"

// loop is a trampoline: tasks never run concurrently and never nest. A task
// submitted while another runs is queued and run by the goroutine that is
// already draining the queue.
type loop struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

func (l *loop) do(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.drain()
}

// drain runs queued tasks until the queue is empty. It is entered with the
// lock held and returns with it released.
func (l *loop) drain() {
	defer func() {
		if r := recover(); r != nil {
			l.mu.Lock()
			l.running = false
			l.mu.Unlock()
			panic(r)
		}
	}()
	for len(l.queue) > 0 {
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()
		task()
		l.mu.Lock()
	}
	l.running = false
	l.mu.Unlock()
}
