package protocol

import "sync"

// serialQueue runs submitted functions one at a time, in submission order, on
// a single worker goroutine. push never blocks, so the transport's delivery
// goroutine can hand work off without waiting on slow handlers.
type serialQueue struct {
	mu      sync.Mutex
	items   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newSerialQueue() *serialQueue {
	q := &serialQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *serialQueue) push(fn func()) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, fn)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	q.mu.Unlock()
	return true
}

// stop discards queued work and ends the worker once the running item returns.
func (q *serialQueue) stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.items = nil
	close(q.wake)
	q.mu.Unlock()
}

func (q *serialQueue) run() {
	defer close(q.done)
	for range q.wake {
		for {
			q.mu.Lock()
			if len(q.items) == 0 || q.stopped {
				q.mu.Unlock()
				break
			}
			fn := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			fn()
		}
	}
}
