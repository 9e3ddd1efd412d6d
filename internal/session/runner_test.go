package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stimsync/internal/backend"
	"github.com/roach88/stimsync/internal/command"
	"github.com/roach88/stimsync/internal/dispatch"
	"github.com/roach88/stimsync/internal/queue"
	"github.com/roach88/stimsync/internal/ready"
	"github.com/roach88/stimsync/internal/timing"
)

type runnerFixture struct {
	q        *queue.Queue
	flag     *ready.Flag
	end      *ready.Flag
	recorder *timing.Memory
	renderer *renderer
	d        *dispatch.Dispatcher
	r        *Runner
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	f := &runnerFixture{
		q:        queue.New(),
		flag:     ready.NewReady(),
		end:      ready.New(),
		recorder: timing.NewMemoryFor("visual"),
		renderer: &renderer{},
	}
	f.d = dispatch.New(dispatch.Visual, f.q, f.flag, f.recorder)

	engine := backend.NewEngine()
	engine.Connect(f.renderer)
	require.NoError(t, f.d.Initialize(context.Background(), engine, backend.Config{}))

	f.r = NewRunner("visual", f.d, f.q, f.end, WithCadence(time.Millisecond))
	return f
}

func runAsync(ctx context.Context, r *Runner) <-chan error {
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
		return nil
	}
}

func TestRunner_DrainsClosedQueue(t *testing.T) {
	f := newRunnerFixture(t)
	f.q.Push(&command.Command{Stage: command.StageInstruction, Iteration: 1})
	f.q.Push(command.Null())
	f.q.Push(&command.Command{Stage: command.StageFeedback, Iteration: 2})
	f.q.Close()

	err := f.r.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, f.q.IsEmpty())
	assert.Equal(t, []timing.Key{
		{Point: timing.InstructionOnset, Iteration: 1},
		{Point: timing.FeedbackOnset, Iteration: 2},
	}, f.recorder.Keys())

	stats := f.r.Stats()
	assert.Equal(t, int64(2), stats.Dispatched)
	assert.Equal(t, int64(1), stats.Nulls)
	assert.Zero(t, stats.Failures)
	assert.Equal(t, int64(4), stats.Cycles, "three commands and the final empty check")
}

func TestRunner_WakesOnPush(t *testing.T) {
	f := newRunnerFixture(t)
	f.r = NewRunner("visual", f.d, f.q, f.end, WithCadence(time.Hour))
	done := runAsync(context.Background(), f.r)

	f.q.Push(&command.Command{Stage: command.StageFeedback, Iteration: 7})

	require.Eventually(t, func() bool { return f.recorder.Len() == 1 }, 2*time.Second, time.Millisecond)
	assert.True(t, f.flag.IsSet())

	f.end.Set()
	require.NoError(t, waitDone(t, done))
}

func TestRunner_StopsOnEndFlag(t *testing.T) {
	f := newRunnerFixture(t)
	done := runAsync(context.Background(), f.r)

	f.end.Set()

	require.NoError(t, waitDone(t, done))
}

func TestRunner_StopsOnCancel(t *testing.T) {
	f := newRunnerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, f.r)

	cancel()

	assert.ErrorIs(t, waitDone(t, done), context.Canceled)
}

func TestRunner_ContinuesAfterBackendFailure(t *testing.T) {
	f := newRunnerFixture(t)
	f.renderer.failOn = map[backend.Op]error{backend.OpPlayTask: errors.New("task video missing")}
	f.q.Push(&command.Command{Stage: command.StageInstruction, Iteration: 1, TaskSequenceActive: true})
	f.q.Push(&command.Command{Stage: command.StageFeedback, Iteration: 2})
	f.q.Close()

	require.NoError(t, f.r.Run(context.Background()))

	stats := f.r.Stats()
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, int64(1), stats.Dispatched)
	assert.Equal(t, []backend.Op{backend.OpPrepare, backend.OpPlayTask, backend.OpPresent}, f.renderer.calls())
	assert.True(t, f.flag.IsSet(), "the next successful cycle sets the flag again")
}

func TestRunner_StopsWhenNotConnected(t *testing.T) {
	f := newRunnerFixture(t)
	f.d.Deinitialize()
	f.q.Push(&command.Command{Stage: command.StageFeedback, Iteration: 1})

	err := f.r.Run(context.Background())

	assert.True(t, dispatch.IsNotConnected(err))
	assert.Equal(t, 1, f.q.Len())
}

func TestRunner_LockIsFreeBetweenCycles(t *testing.T) {
	f := newRunnerFixture(t)
	done := runAsync(context.Background(), f.r)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.q.Push(&command.Command{Stage: command.StageFeedback, Iteration: i})
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return f.recorder.Len() == 50 }, 5*time.Second, time.Millisecond)

	f.end.Set()
	require.NoError(t, waitDone(t, done))
	require.True(t, f.r.mu.TryLock(), "runner left the cycle lock held")
	f.r.mu.Unlock()
}
