package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/roach88/stimsync/internal/backend"
	"github.com/roach88/stimsync/internal/command"
	"github.com/roach88/stimsync/internal/queue"
	"github.com/roach88/stimsync/internal/ready"
	"github.com/roach88/stimsync/internal/timing"
)

// trace is an ordered log shared by the fake backend and the tracing
// recorder, so tests can assert "timing recorded, then backend invoked".
type trace struct {
	mu      sync.Mutex
	entries []string
}

func (t *trace) add(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, fmt.Sprintf(format, args...))
}

func (t *trace) all() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.entries))
	copy(out, t.entries)
	return out
}

// tracingRecorder records into a timing.Memory and the shared trace.
type tracingRecorder struct {
	*timing.Memory
	trace *trace
}

func (r *tracingRecorder) Record(point timing.Point, iteration int) {
	r.trace.add("record %s %d", point, iteration)
	r.Memory.Record(point, iteration)
}

// fakeBackend records calls in the shared trace.
type fakeBackend struct {
	trace    *trace
	payloads []command.Payload
	fail     map[backend.Op]error
	panicOn  backend.Op
	closeErr error
	closed   int
	prepared int
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (b *fakeBackend) enter(op backend.Op) error {
	if b.inFlight.Add(1) > 1 {
		b.overlap.Store(true)
	}
	defer b.inFlight.Add(-1)

	if op == b.panicOn {
		panic("backend exploded during " + string(op))
	}
	b.trace.add("backend %s", op)
	return b.fail[op]
}

func (b *fakeBackend) Prepare(context.Context, backend.Config) error {
	b.prepared++
	return b.fail[backend.OpPrepare]
}

func (b *fakeBackend) BlankScreen() error { return b.enter(backend.OpBlankScreen) }
func (b *fakeBackend) PlayTask() error    { return b.enter(backend.OpPlayTask) }

func (b *fakeBackend) Present(p command.Payload) error {
	b.payloads = append(b.payloads, p)
	return b.enter(backend.OpPresent)
}

func (b *fakeBackend) Close() error {
	b.closed++
	if b.panicOn == backend.OpClose {
		panic("close exploded")
	}
	return b.closeErr
}

// countingLock is a sync.Locker that counts unlocks.
type countingLock struct {
	mu       sync.Mutex
	unlocked atomic.Int32
}

func (l *countingLock) Lock() { l.mu.Lock() }

func (l *countingLock) Unlock() {
	l.unlocked.Add(1)
	l.mu.Unlock()
}

// held returns the lock already acquired, as a scheduler would hand it over.
func (l *countingLock) held() *countingLock {
	l.Lock()
	return l
}

type fixture struct {
	q        *queue.Queue
	flag     *ready.Flag
	recorder *tracingRecorder
	backend  *fakeBackend
	engine   *backend.Engine
	trace    *trace
	lock     *countingLock
	logs     *bytes.Buffer
	d        *Dispatcher
}

func newFixture(t *testing.T, modality Modality) *fixture {
	t.Helper()

	tr := &trace{}
	f := &fixture{
		q:        queue.New(),
		flag:     ready.NewReady(),
		recorder: &tracingRecorder{Memory: timing.NewMemoryFor(string(modality)), trace: tr},
		backend:  &fakeBackend{trace: tr},
		engine:   backend.NewEngine(),
		trace:    tr,
		lock:     &countingLock{},
		logs:     &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f.d = New(modality, f.q, f.flag, f.recorder, WithLogger(logger))

	f.engine.Connect(f.backend)
	if err := f.d.Initialize(context.Background(), f.engine, backend.Config{ScreenID: 1}); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	return f
}

// cycle runs one cycle the way a scheduler does: acquire, hand over.
func (f *fixture) cycle() (Outcome, error) {
	return f.d.RunCycle(f.lock.held())
}
