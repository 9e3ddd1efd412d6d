package timing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink persists timing events. Implemented by store.Store.
type Sink interface {
	WriteTimingEvent(ctx context.Context, ev Event) error
}

// DefaultBuffer is the number of events a Log holds before Record blocks.
const DefaultBuffer = 256

// Log is the session-wide timing log. It stamps events synchronously (seq and
// wall-clock instant are taken inside Record) and persists them from a
// dedicated goroutine so the dispatch path never waits on disk I/O.
//
// Thread-safety model:
//   - Record (through any per-modality recorder): safe from any goroutine
//   - Close: safe to call more than once
type Log struct {
	sink    Sink
	session string
	clock   *Clock
	now     func() time.Time
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithClock sets the logical clock (e.g. NewClockAt to resume a session).
func WithClock(c *Clock) LogOption {
	return func(l *Log) { l.clock = c }
}

// WithNow overrides the wall clock. Tests use it for deterministic instants.
func WithNow(now func() time.Time) LogOption {
	return func(l *Log) { l.now = now }
}

// WithLogger sets the logger for persistence failures.
func WithLogger(logger *slog.Logger) LogOption {
	return func(l *Log) { l.logger = logger }
}

// WithBuffer sets the event buffer size.
func WithBuffer(n int) LogOption {
	return func(l *Log) {
		if n > 0 {
			l.events = make(chan Event, n)
		}
	}
}

// NewLog starts a timing log for a session writing into sink.
func NewLog(sink Sink, session string, opts ...LogOption) *Log {
	l := &Log{
		sink:    sink,
		session: session,
		clock:   NewClock(),
		now:     time.Now,
		logger:  slog.Default(),
		events:  make(chan Event, DefaultBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.writeLoop()
	return l
}

// Recorder returns a Recorder that tags its events with the given modality.
func (l *Log) Recorder(modality string) Recorder {
	return modalityRecorder{log: l, modality: modality}
}

// Close stops accepting events and blocks until every accepted event has
// been handed to the sink.
func (l *Log) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.events)
		l.mu.Unlock()
	})
	<-l.done
}

func (l *Log) record(modality string, point Point, iteration int) {
	ev := Event{
		Seq:       l.clock.Next(),
		Session:   l.session,
		Modality:  modality,
		Point:     point,
		Iteration: iteration,
		At:        l.now(),
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.logger.Warn("timing event dropped: log closed",
			"session", l.session,
			"modality", modality,
			"point", point.String(),
			"iteration", iteration,
		)
		return
	}
	l.events <- ev
}

func (l *Log) writeLoop() {
	defer close(l.done)

	for ev := range l.events {
		if err := l.sink.WriteTimingEvent(context.Background(), ev); err != nil {
			l.logger.Error("failed to persist timing event",
				"session", ev.Session,
				"modality", ev.Modality,
				"point", ev.Point.String(),
				"iteration", ev.Iteration,
				"seq", ev.Seq,
				"error", err,
			)
		}
	}
}

type modalityRecorder struct {
	log      *Log
	modality string
}

func (r modalityRecorder) Record(point Point, iteration int) {
	r.log.record(r.modality, point, iteration)
}
