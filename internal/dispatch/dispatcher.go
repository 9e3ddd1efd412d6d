package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/stimsync/internal/backend"
	"github.com/roach88/stimsync/internal/command"
	"github.com/roach88/stimsync/internal/timing"
)

// Source is the consuming side of a command queue.
type Source interface {
	IsEmpty() bool
	Pop() *command.Command
}

// Signal is the dispatcher's view of the ready flag.
type Signal interface {
	Clear()
	Set()
}

// Outcome tells the caller which terminal state a cycle ended in.
type Outcome int

const (
	// OutcomeEmpty: the queue was empty; nothing happened.
	OutcomeEmpty Outcome = iota
	// OutcomeNull: a null command was popped; the ready flag is left Busy.
	OutcomeNull
	// OutcomeSignaled: a command was handed to the backend and the flag set.
	OutcomeSignaled
	// OutcomeFailed: the cycle returned an error; the lock was still released.
	OutcomeFailed
)

// String returns the outcome name used in logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeNull:
		return "null"
	case OutcomeSignaled:
		return "signaled"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Dispatcher drains one modality's command queue into its backend.
//
// Thread-safety model:
//   - RunCycle: serialized by the caller's cycle lock; one cycle at a time
//   - Initialize / Deinitialize: may run concurrently with RunCycle; the
//     backend binding is guarded by an internal mutex
//
// The queue, the ready flag and the recorder are constructed by the session
// and injected here; the dispatcher owns none of them.
type Dispatcher struct {
	modality Modality
	queue    Source
	ready    Signal
	recorder timing.Recorder
	logger   *slog.Logger

	mu      sync.Mutex
	backend backend.Backend
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New creates an unbound dispatcher. Call Initialize before the first cycle.
func New(modality Modality, queue Source, ready Signal, recorder timing.Recorder, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		modality: modality,
		queue:    queue,
		ready:    ready,
		recorder: recorder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("modality", string(modality))
	return d
}

// Modality returns the dispatcher's presentation channel.
func (d *Dispatcher) Modality() Modality {
	return d.modality
}

// Bound reports whether a backend is bound.
func (d *Dispatcher) Bound() bool {
	return d.bound() != nil
}

// Initialize binds the dispatcher to the backend of a live presentation
// session and prepares it.
//
// Any previously bound backend is torn down first. Returns a NOT_CONNECTED
// error if conn has no backend, and a BACKEND_CALL_FAILED error if the
// backend's preparation fails; in both cases the dispatcher stays unbound.
func (d *Dispatcher) Initialize(ctx context.Context, conn backend.Connector, cfg backend.Config) error {
	d.Deinitialize()

	if conn == nil {
		return notConnected(d.modality)
	}
	b := conn.Backend()
	if b == nil {
		return notConnected(d.modality)
	}

	if err := b.Prepare(ctx, cfg); err != nil {
		return backendFailed(d.modality, string(backend.OpPrepare), err)
	}

	d.mu.Lock()
	d.backend = b
	d.mu.Unlock()

	d.logger.Info("dispatcher initialized",
		"screen_id", cfg.ScreenID,
		"feedback_protocol", cfg.FeedbackProtocol,
	)
	return nil
}

// Deinitialize closes and unbinds the backend. It never fails: close errors
// (and panics) are swallowed. The auditory modality logs them; the visual
// modality drops them silently.
func (d *Dispatcher) Deinitialize() {
	d.mu.Lock()
	b := d.backend
	d.backend = nil
	d.mu.Unlock()

	if b == nil {
		return
	}

	if err := closeBackend(b); err != nil && d.modality.logsTeardownFailure() {
		d.logger.Error("failed to close the sound system",
			"error", &Error{Code: ErrCodeTeardownFailed, Modality: d.modality, Op: string(backend.OpClose), Err: err},
		)
	}
}

func closeBackend(b backend.Backend) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during close: %v", r)
		}
	}()
	return b.Close()
}

// RunCycle runs one drain-dispatch-signal cycle.
//
// held must already be locked by the caller. RunCycle takes ownership and
// unlocks it before returning, on every path.
//
// A cycle pops at most one command. Errors are NOT_CONNECTED (no backend
// bound; nothing is popped) and BACKEND_CALL_FAILED (the command was popped
// and the flag cleared; the flag is left Busy).
func (d *Dispatcher) RunCycle(held sync.Locker) (Outcome, error) {
	defer held.Unlock()

	b := d.bound()
	if b == nil {
		return OutcomeFailed, notConnected(d.modality)
	}

	if d.queue.IsEmpty() {
		return OutcomeEmpty, nil
	}

	cmd := d.queue.Pop()
	d.ready.Clear()

	if cmd == nil {
		d.logger.Debug("null command popped, leaving ready flag busy")
		return OutcomeNull, nil
	}

	d.logger.Info("stage",
		"stage", cmd.Stage.String(),
		"iteration", cmd.Iteration,
	)

	if err := d.dispatch(b, cmd); err != nil {
		d.logger.Error("dispatch failed",
			"stage", cmd.Stage.String(),
			"iteration", cmd.Iteration,
			"error", err,
		)
		return OutcomeFailed, err
	}

	d.ready.Set()
	return OutcomeSignaled, nil
}

// dispatch applies the fixed priority: blank screen, then (timed) task,
// then (timed) normal content.
func (d *Dispatcher) dispatch(b backend.Backend, cmd *command.Command) error {
	if cmd.BlankScreen {
		if err := b.BlankScreen(); err != nil {
			return backendFailed(d.modality, string(backend.OpBlankScreen), err)
		}
		cmd.BlankScreen = false
		return nil
	}

	d.recordOnset(cmd)

	if cmd.TaskSequenceActive {
		if err := b.PlayTask(); err != nil {
			return backendFailed(d.modality, string(backend.OpPlayTask), err)
		}
		cmd.TaskSequenceActive = false
		return nil
	}

	if err := b.Present(cmd.Payload); err != nil {
		return backendFailed(d.modality, string(backend.OpPresent), err)
	}
	return nil
}

func (d *Dispatcher) recordOnset(cmd *command.Command) {
	switch cmd.Stage {
	case command.StageInstruction:
		d.recorder.Record(timing.InstructionOnset, cmd.Iteration)
	case command.StageFeedback:
		d.recorder.Record(timing.FeedbackOnset, cmd.Iteration)
	}
}

func (d *Dispatcher) bound() backend.Backend {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backend
}
