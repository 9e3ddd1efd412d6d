// Package ready provides the binary signal a Dispatcher uses to tell waiting
// coordinators that the current command has been handed to its backend.
//
// The same type doubles as the session's end-of-session signal.
package ready

import (
	"context"
	"sync"
)

// State is the value of a Flag.
type State bool

const (
	// Busy means a command was taken and is not yet handed off.
	Busy State = false
	// Ready means the last command was handed to the backend.
	Ready State = true
)

// String returns "ready" or "busy".
func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "busy"
}

// Flag is a synchronized binary signal.
//
// Clear and Set establish happens-before edges: everything a dispatcher does
// before Set is visible to a goroutine that observes IsSet()==true or returns
// from Wait.
//
// Waiters block on a channel that is closed by Set and replaced by Clear, so
// any number of goroutines can wait without polling.
type Flag struct {
	mu   sync.Mutex
	set  bool
	done chan struct{}
}

// New returns a flag in the Busy state.
func New() *Flag {
	return &Flag{done: make(chan struct{})}
}

// NewReady returns a flag in the Ready state.
func NewReady() *Flag {
	f := New()
	f.Set()
	return f
}

// Set moves the flag to Ready and wakes all waiters. Setting a set flag is a no-op.
func (f *Flag) Set() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.set {
		return
	}
	f.set = true
	close(f.done)
}

// Clear moves the flag to Busy. Clearing a clear flag is a no-op.
func (f *Flag) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.set {
		return
	}
	f.set = false
	f.done = make(chan struct{})
}

// IsSet reports whether the flag is Ready.
func (f *Flag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// State returns the current state.
func (f *Flag) State() State {
	return State(f.IsSet())
}

// Done returns a channel that is closed once the flag is Ready.
// After a Clear, callers must call Done again to get the new channel.
func (f *Flag) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Wait blocks until the flag is Ready or ctx is done.
func (f *Flag) Wait(ctx context.Context) error {
	select {
	case <-f.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
