package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/roach88/stimsync/internal/backend"
	"github.com/roach88/stimsync/internal/command"
	"github.com/roach88/stimsync/internal/store"
)

var testNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// sliceQueue is a Pusher that records what it receives.
type sliceQueue struct {
	mu     sync.Mutex
	items  []*command.Command
	closed bool
}

func (q *sliceQueue) Push(c *command.Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, c)
	return true
}

func (q *sliceQueue) all() []*command.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*command.Command, len(q.items))
	copy(out, q.items)
	return out
}

// renderer is a rendering backend stand-in.
type renderer struct {
	mu         sync.Mutex
	ops        []backend.Op
	payloads   []command.Payload
	prepareErr error
	failOn     map[backend.Op]error
}

func (r *renderer) add(op backend.Op, p command.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	if p != nil {
		r.payloads = append(r.payloads, p)
	}
	return r.failOn[op]
}

func (r *renderer) Prepare(context.Context, backend.Config) error {
	if r.prepareErr != nil {
		return r.prepareErr
	}
	return r.add(backend.OpPrepare, nil)
}

func (r *renderer) BlankScreen() error              { return r.add(backend.OpBlankScreen, nil) }
func (r *renderer) PlayTask() error                 { return r.add(backend.OpPlayTask, nil) }
func (r *renderer) Present(p command.Payload) error { return r.add(backend.OpPresent, p) }
func (r *renderer) Close() error                    { return r.add(backend.OpClose, nil) }

func (r *renderer) calls() []backend.Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]backend.Op, len(r.ops))
	copy(out, r.ops)
	return out
}
