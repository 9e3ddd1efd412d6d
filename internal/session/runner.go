package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/stimsync/internal/dispatch"
	"github.com/roach88/stimsync/internal/ready"
)

// DefaultCadence is how often an idle runner polls its queue when no push
// signal arrives.
const DefaultCadence = 50 * time.Millisecond

// Cycler is the dispatcher's cycle entry point.
type Cycler interface {
	RunCycle(held sync.Locker) (dispatch.Outcome, error)
}

// Waiter is the runner's view of the command queue.
type Waiter interface {
	IsEmpty() bool
	Wait() <-chan struct{}
	Closed() bool
}

// Stats counts cycle outcomes.
type Stats struct {
	Cycles     int64 `json:"cycles"`
	Dispatched int64 `json:"dispatched"`
	Nulls      int64 `json:"nulls"`
	Failures   int64 `json:"failures"`
}

// Runner is the external scheduler for one modality. It owns the cycle lock.
//
// Thread-safety: Run must be called from one goroutine. Stats may be read
// concurrently.
type Runner struct {
	name    string
	cycler  Cycler
	queue   Waiter
	end     *ready.Flag
	cadence time.Duration
	logger  *slog.Logger

	mu sync.Mutex

	cycles     atomic.Int64
	dispatched atomic.Int64
	nulls      atomic.Int64
	failures   atomic.Int64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCadence sets the idle poll interval. Non-positive values keep the
// default.
func WithCadence(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.cadence = d
		}
	}
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a runner that cycles c while commands arrive on q, until
// end is set, the queue is closed and drained, or the context is cancelled.
func NewRunner(name string, c Cycler, q Waiter, end *ready.Flag, opts ...RunnerOption) *Runner {
	r := &Runner{
		name:    name,
		cycler:  c,
		queue:   q,
		end:     end,
		cadence: DefaultCadence,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("runner", name)
	return r
}

// Run cycles until the session ends.
//
// Backend failures are logged and the runner moves on to the next command;
// a NOT_CONNECTED error stops the runner because no later cycle can succeed.
// Returns ctx.Err() on cancellation and nil on a normal end.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner starting", "cadence", r.cadence)

	ticker := time.NewTicker(r.cadence)
	defer ticker.Stop()

	for {
		if r.end.IsSet() {
			r.logger.Info("runner stopping: session ended")
			return nil
		}
		if err := ctx.Err(); err != nil {
			r.logger.Info("runner stopping: context cancelled")
			return err
		}

		r.mu.Lock()
		outcome, err := r.cycler.RunCycle(&r.mu)
		r.cycles.Add(1)

		if err != nil {
			r.failures.Add(1)
			if dispatch.IsNotConnected(err) {
				r.logger.Error("runner stopping", "error", err)
				return err
			}
			// Log and continue: the command is gone and retrying it would
			// present stale content.
			continue
		}

		switch outcome {
		case dispatch.OutcomeSignaled:
			r.dispatched.Add(1)
			continue
		case dispatch.OutcomeNull:
			r.nulls.Add(1)
			continue
		}

		// Queue was empty.
		if r.queue.Closed() && r.queue.IsEmpty() {
			r.logger.Info("runner stopping: queue closed")
			return nil
		}

		select {
		case <-ctx.Done():
		case <-r.end.Done():
		case <-r.queue.Wait():
		case <-ticker.C:
		}
	}
}

// Stats returns a snapshot of the outcome counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Cycles:     r.cycles.Load(),
		Dispatched: r.dispatched.Load(),
		Nulls:      r.nulls.Load(),
		Failures:   r.failures.Load(),
	}
}
