package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/stimsync/internal/command"
)

// DefaultAsyncBuffer is the number of actions an Async backend accepts
// before a send blocks.
const DefaultAsyncBuffer = 64

type call struct {
	op      Op
	payload command.Payload
	ack     chan struct{} // barrier only
}

// Async runs the steady-state actions of a backend on its own goroutine.
//
// BlankScreen, PlayTask and Present enqueue the action and return nil once it
// is accepted; they do not wait for the inner backend to finish. Failures of
// the inner backend are therefore reported asynchronously, through the logger
// and the optional error hook, never to the caller.
//
// Prepare and Close are synchronous: Prepare runs before the worker sees any
// action, and Close drains every accepted action before closing the inner
// backend.
type Async struct {
	inner   Backend
	name    string
	logger  *slog.Logger
	onError func(op Op, err error)

	mu     sync.RWMutex
	closed bool
	calls  chan call
	done   chan struct{}
	once   sync.Once
}

// AsyncOption configures an Async backend.
type AsyncOption func(*Async)

// WithAsyncLogger sets the logger used for inner backend failures.
func WithAsyncLogger(logger *slog.Logger) AsyncOption {
	return func(a *Async) { a.logger = logger }
}

// WithErrorHook registers a function called (on the worker goroutine) for
// every failed inner action.
func WithErrorHook(fn func(op Op, err error)) AsyncOption {
	return func(a *Async) { a.onError = fn }
}

// WithAsyncBuffer sets the action buffer size.
func WithAsyncBuffer(n int) AsyncOption {
	return func(a *Async) {
		if n > 0 {
			a.calls = make(chan call, n)
		}
	}
}

// NewAsync wraps inner and starts its worker goroutine. name tags log lines.
func NewAsync(inner Backend, name string, opts ...AsyncOption) *Async {
	a := &Async{
		inner:  inner,
		name:   name,
		logger: slog.Default(),
		calls:  make(chan call, DefaultAsyncBuffer),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	go a.run()
	return a
}

// Prepare runs the inner Prepare synchronously.
func (a *Async) Prepare(ctx context.Context, cfg Config) error {
	return a.inner.Prepare(ctx, cfg)
}

// BlankScreen hands a blank-screen action to the worker.
func (a *Async) BlankScreen() error {
	return a.send(call{op: OpBlankScreen})
}

// PlayTask hands a task action to the worker.
func (a *Async) PlayTask() error {
	return a.send(call{op: OpPlayTask})
}

// Present hands a normal-content action to the worker.
func (a *Async) Present(payload command.Payload) error {
	return a.send(call{op: OpPresent, payload: payload})
}

// Close stops accepting actions, waits for the accepted ones to run, then
// closes the inner backend and returns its error.
func (a *Async) Close() error {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.calls)
		a.mu.Unlock()
	})
	<-a.done
	return a.inner.Close()
}

// Drain blocks until every action accepted so far has run. It does not
// stop the worker.
func (a *Async) Drain(ctx context.Context) error {
	ack := make(chan struct{})
	if err := a.send(call{op: opBarrier, ack: ack}); err != nil {
		return err
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const opBarrier Op = "barrier"

func (a *Async) send(c call) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return fmt.Errorf("%s %s: %w", a.name, c.op, ErrClosed)
	}
	a.calls <- c
	return nil
}

func (a *Async) run() {
	defer close(a.done)

	for c := range a.calls {
		var err error
		switch c.op {
		case OpBlankScreen:
			err = a.inner.BlankScreen()
		case OpPlayTask:
			err = a.inner.PlayTask()
		case OpPresent:
			err = a.inner.Present(c.payload)
		case opBarrier:
			close(c.ack)
			continue
		}
		if err == nil {
			continue
		}

		a.logger.Error("backend action failed",
			"backend", a.name,
			"op", string(c.op),
			"error", err,
		)
		if a.onError != nil {
			a.onError(c.op, err)
		}
	}
}
