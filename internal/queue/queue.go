// Package queue provides the command queue shared between the real-time
// computation process (producers) and a single Dispatcher (consumer).
package queue

import (
	"sync"

	"github.com/roach88/stimsync/internal/command"
)

// Queue is a thread-safe, unbounded FIFO of commands.
//
// Any number of goroutines may Push. Exactly one Dispatcher pops. A nil
// command is a legal element (the null sentinel) and is returned by Pop like
// any other, so IsEmpty must be used to tell "nothing queued" from "null
// queued".
//
// The queue signals availability through a size-1 channel so a consumer can
// wait with select alongside context cancellation.
type Queue struct {
	mu     sync.Mutex
	items  []*command.Command
	closed bool
	signal chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		items:  make([]*command.Command, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Push appends a command to the back of the queue.
// Returns false if the queue is closed.
func (q *Queue) Push(c *command.Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, c)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// IsEmpty reports whether no command is queued.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Pop removes and returns the front command. It returns nil both for a
// queued null command and for an empty queue; callers check IsEmpty first.
func (q *Queue) Pop() *command.Command {
	c, _ := q.TryPop()
	return c
}

// TryPop removes and returns the front command and whether one was present.
func (q *Queue) TryPop() (*command.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	c := q.items[0]
	q.items[0] = nil

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return c, true
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wait returns a channel that receives when commands may be available.
// The channel is closed when the queue is closed.
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // check IsEmpty / Pop
//	}
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Close stops accepting new commands and wakes all waiters.
// Commands already queued can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
