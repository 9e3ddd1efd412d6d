package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/stimsync/internal/command"
	"github.com/roach88/stimsync/internal/store"
)

// ActionSink persists handed-off actions. Implemented by store.Store.
type ActionSink interface {
	WriteAction(ctx context.Context, a store.Action) (int64, error)
}

// Journal is a backend that renders nothing and appends every action it
// receives to the session store. It stands in for a real presentation engine
// during dry runs, and its rows are what the timing CLI reports next to the
// onset events.
type Journal struct {
	sink     ActionSink
	session  string
	modality string
	now      func() time.Time

	mu       sync.Mutex
	prepared bool
}

// JournalOption configures a Journal.
type JournalOption func(*Journal)

// WithJournalNow overrides the wall clock used to stamp actions.
func WithJournalNow(now func() time.Time) JournalOption {
	return func(j *Journal) { j.now = now }
}

// NewJournal creates a journal backend for one modality of a session.
func NewJournal(sink ActionSink, session, modality string, opts ...JournalOption) *Journal {
	j := &Journal{
		sink:     sink,
		session:  session,
		modality: modality,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Prepare records the preparation config.
func (j *Journal) Prepare(ctx context.Context, cfg Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("journal prepare: %w", err)
	}
	var payload command.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("journal prepare: %w", err)
	}
	if err := j.write(ctx, OpPrepare, payload); err != nil {
		return err
	}

	j.mu.Lock()
	j.prepared = true
	j.mu.Unlock()
	return nil
}

// BlankScreen implements Backend.
func (j *Journal) BlankScreen() error {
	return j.action(OpBlankScreen, nil)
}

// PlayTask implements Backend.
func (j *Journal) PlayTask() error {
	return j.action(OpPlayTask, nil)
}

// Present implements Backend.
func (j *Journal) Present(payload command.Payload) error {
	return j.action(OpPresent, payload)
}

// Close records the close. Closing an unprepared journal is a no-op.
func (j *Journal) Close() error {
	j.mu.Lock()
	prepared := j.prepared
	j.prepared = false
	j.mu.Unlock()

	if !prepared {
		return nil
	}
	return j.write(context.Background(), OpClose, nil)
}

func (j *Journal) action(op Op, payload command.Payload) error {
	j.mu.Lock()
	prepared := j.prepared
	j.mu.Unlock()

	if !prepared {
		return fmt.Errorf("journal %s: %s before prepare", j.modality, op)
	}
	return j.write(context.Background(), op, payload)
}

func (j *Journal) write(ctx context.Context, op Op, payload command.Payload) error {
	data, err := command.Canonical(payload)
	if err != nil {
		return fmt.Errorf("journal %s %s: %w", j.modality, op, err)
	}

	_, err = j.sink.WriteAction(ctx, store.Action{
		Session:  j.session,
		Modality: j.modality,
		Op:       string(op),
		Payload:  string(data),
		At:       j.now(),
	})
	if err != nil {
		return fmt.Errorf("journal %s %s: %w", j.modality, op, err)
	}
	return nil
}
