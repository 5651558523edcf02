// Package workqueue lets background goroutines hand work to the server's
// event loop. Producers Post closures from any goroutine; the loop is the only
// consumer and runs them with Drain, so game state is never touched
// concurrently.
package workqueue

import (
	"context"
	"sync"

	"github.com/gammazero/deque"
)

// Queue is a FIFO of pending actions with a wake-up channel for the consumer.
type Queue struct {
	mu      sync.Mutex
	items   deque.Deque[func()]
	closed  bool
	wake    chan struct{}
	onPanic func(any)
}

// Option configures a Queue.
type Option func(*Queue)

// WithPanicHandler recovers panics raised by actions and reports them to fn.
// Without it a panicking action crashes the consumer.
func WithPanicHandler(fn func(any)) Option {
	return func(q *Queue) {
		q.onPanic = fn
	}
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Post appends an action. It is safe to call from any goroutine and never
// blocks. Returns false once the queue is closed; the action is dropped.
func (q *Queue) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items.PushBack(fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Wake is signalled after Post. The consumer selects on it alongside its other
// event sources, then calls Drain.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

// TryDequeue removes the oldest action, if any.
func (q *Queue) TryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return nil, false
	}
	return q.items.PopFront(), true
}

// Drain runs actions in FIFO order until the queue is empty or ctx is done.
// Actions posted while draining run in the same call. Returns how many ran.
func (q *Queue) Drain(ctx context.Context) int {
	ran := 0
	for ctx.Err() == nil {
		fn, ok := q.TryDequeue()
		if !ok {
			break
		}
		q.run(fn)
		ran++
	}
	return ran
}

func (q *Queue) run(fn func()) {
	if q.onPanic != nil {
		defer func() {
			if r := recover(); r != nil {
				q.onPanic(r)
			}
		}()
	}
	fn()
}

// Len returns the number of pending actions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close rejects further posts and discards pending actions.
// Returns how many were dropped.
func (q *Queue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	dropped := q.items.Len()
	q.items.Clear()
	return dropped
}
