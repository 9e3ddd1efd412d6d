package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/stimsync/internal/backend"
	"github.com/roach88/stimsync/internal/command"
	"github.com/roach88/stimsync/internal/dispatch"
	"github.com/roach88/stimsync/internal/queue"
	"github.com/roach88/stimsync/internal/ready"
	"github.com/roach88/stimsync/internal/store"
	"github.com/roach88/stimsync/internal/timing"
)

// Options describes a session to start.
type Options struct {
	// Name labels the session in the store.
	Name string

	// Modalities lists the lanes to run. At least one is required.
	Modalities []dispatch.Modality

	// Backend is handed to every dispatcher's Initialize.
	Backend backend.Config

	// Renderers are optional rendering backends per modality. Every lane
	// journals its actions to the store; a renderer receives the same
	// actions alongside the journal.
	Renderers map[dispatch.Modality]backend.Backend

	// Cadence is the runners' idle poll interval.
	Cadence time.Duration

	// Script, when set, is played into the lanes. The queues are closed when
	// it finishes, which ends the session once they drain.
	Script *Script

	// Inbox, when set, is a drop directory watched for command files.
	Inbox string

	// ConfigSnapshot is stored with the session row (JSON).
	ConfigSnapshot string

	// IDs generates the session ID. Defaults to UUIDv7Generator.
	IDs IDGenerator

	// Now stamps the session row, actions and timing events.
	// Defaults to time.Now.
	Now func() time.Time

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Lane is one modality's slice of a session.
type Lane struct {
	Modality   dispatch.Modality
	Queue      *queue.Queue
	Flag       *ready.Flag
	Dispatcher *dispatch.Dispatcher
	Runner     *Runner

	engine *backend.Engine
	async  *backend.Async
}

// Session is a running presentation session.
//
// Lifecycle: Start -> Run (blocks) -> Close. End may be called at any time
// to stop the runners; cancelling Run's context does the same.
type Session struct {
	id     string
	opts   Options
	store  *store.Store
	log    *timing.Log
	lanes  map[dispatch.Modality]*Lane
	order  []dispatch.Modality
	end    *ready.Flag
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Start records a new session in st and brings up one lane per modality:
// queue, ready flag, journal backend behind an async worker, dispatcher
// (initialized) and runner.
func Start(ctx context.Context, st *store.Store, opts Options) (*Session, error) {
	if len(opts.Modalities) == 0 {
		return nil, errors.New("session: no modality enabled")
	}
	seen := make(map[dispatch.Modality]bool)
	for _, m := range opts.Modalities {
		if !m.Valid() {
			return nil, fmt.Errorf("session: unknown modality %q", m)
		}
		if seen[m] {
			return nil, fmt.Errorf("session: modality %s listed twice", m)
		}
		seen[m] = true
	}
	if opts.IDs == nil {
		opts.IDs = UUIDv7Generator{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ConfigSnapshot == "" {
		opts.ConfigSnapshot = "{}"
	}

	id := opts.IDs.Generate()
	logger := opts.Logger.With("session", id)

	if err := st.WriteSession(ctx, store.Session{
		ID:        id,
		Name:      opts.Name,
		Config:    opts.ConfigSnapshot,
		StartedAt: opts.Now(),
	}); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	s := &Session{
		id:     id,
		opts:   opts,
		store:  st,
		log:    timing.NewLog(st, id, timing.WithNow(opts.Now), timing.WithLogger(logger)),
		lanes:  make(map[dispatch.Modality]*Lane),
		end:    ready.New(),
		logger: logger,
	}

	for _, m := range opts.Modalities {
		lane, err := s.openLane(ctx, m)
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.lanes[m] = lane
		s.order = append(s.order, m)
	}

	logger.Info("session started", "name", opts.Name, "modalities", len(s.order))
	return s, nil
}

func (s *Session) openLane(ctx context.Context, m dispatch.Modality) (*Lane, error) {
	var inner backend.Backend = backend.NewJournal(s.store, s.id, string(m),
		backend.WithJournalNow(s.opts.Now))
	if r := s.opts.Renderers[m]; r != nil {
		inner = backend.Fanout{r, inner}
	}
	async := backend.NewAsync(inner, string(m), backend.WithAsyncLogger(s.logger))

	engine := backend.NewEngine()
	engine.Connect(async)

	q := queue.New()
	flag := ready.NewReady()
	d := dispatch.New(m, q, flag, s.log.Recorder(string(m)), dispatch.WithLogger(s.logger))

	if err := d.Initialize(ctx, engine, s.opts.Backend); err != nil {
		_ = async.Close()
		return nil, fmt.Errorf("session: %w", err)
	}

	return &Lane{
		Modality:   m,
		Queue:      q,
		Flag:       flag,
		Dispatcher: d,
		Runner: NewRunner(string(m), d, q, s.end,
			WithCadence(s.opts.Cadence),
			WithRunnerLogger(s.logger),
		),
		engine: engine,
		async:  async,
	}, nil
}

// Drain blocks until every action the lane's dispatcher handed off so far
// has reached the backend.
func (l *Lane) Drain(ctx context.Context) error {
	return l.async.Drain(ctx)
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Modalities returns the enabled modalities in configuration order.
func (s *Session) Modalities() []dispatch.Modality {
	out := make([]dispatch.Modality, len(s.order))
	copy(out, s.order)
	return out
}

// Lane returns the lane for m, or nil if m is not enabled.
func (s *Session) Lane(m dispatch.Modality) *Lane {
	return s.lanes[m]
}

// Push enqueues c on m's queue. Returns false if m is not enabled or its
// queue is closed.
func (s *Session) Push(m dispatch.Modality, c *command.Command) bool {
	lane := s.lanes[m]
	if lane == nil {
		return false
	}
	return lane.Queue.Push(c)
}

// Run runs the lanes' runners and the configured producers until the
// session ends: End is called, the script finishes and the queues drain, or
// ctx is done. An ended ctx is a normal end and returns nil.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	pctx, stopProducers := context.WithCancel(gctx)
	defer stopProducers()

	var runners sync.WaitGroup
	for _, m := range s.order {
		lane := s.lanes[m]
		runners.Add(1)
		g.Go(func() error {
			defer runners.Done()
			return lane.Runner.Run(gctx)
		})
	}

	// Producers stop once every runner is done.
	g.Go(func() error {
		runners.Wait()
		stopProducers()
		return nil
	})

	if s.opts.Script != nil {
		g.Go(func() error {
			defer s.CloseQueues()
			s.logger.Info("script starting", "script", s.opts.Script.Name, "steps", len(s.opts.Script.Steps))
			if err := Play(pctx, s.opts.Script, s.pushers()); err != nil && pctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	if s.opts.Inbox != "" {
		in := NewInbox(s.opts.Inbox, s.pushers(), WithInboxLogger(s.logger))
		g.Go(func() error {
			if err := in.Run(pctx); err != nil && pctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		s.logger.Info("session interrupted")
		return nil
	}
	return err
}

// End sets the end-of-session flag. Runners stop before their next cycle.
func (s *Session) End() {
	s.end.Set()
}

// Ended reports whether End was called.
func (s *Session) Ended() bool {
	return s.end.IsSet()
}

// CloseQueues stops every lane's queue from accepting commands. Runners
// drain what is queued, then stop.
func (s *Session) CloseQueues() {
	for _, m := range s.order {
		s.lanes[m].Queue.Close()
	}
}

// Stats returns each lane's runner counters.
func (s *Session) Stats() map[dispatch.Modality]Stats {
	out := make(map[dispatch.Modality]Stats, len(s.lanes))
	for m, lane := range s.lanes {
		out[m] = lane.Runner.Stats()
	}
	return out
}

// Close tears the session down: dispatchers are deinitialized (which drains
// and closes their backends), pending timing events are flushed and the
// session row is stamped with its end time. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.end.Set()
		for _, m := range s.order {
			lane := s.lanes[m]
			lane.Dispatcher.Deinitialize()
			lane.engine.Disconnect()
		}
		s.log.Close()

		if err := s.store.EndSession(ctx, s.id, s.opts.Now()); err != nil {
			s.closeErr = fmt.Errorf("session: %w", err)
			return
		}
		s.logger.Info("session closed")
	})
	return s.closeErr
}

func (s *Session) pushers() map[dispatch.Modality]Pusher {
	out := make(map[dispatch.Modality]Pusher, len(s.lanes))
	for m, lane := range s.lanes {
		out[m] = lane.Queue
	}
	return out
}
