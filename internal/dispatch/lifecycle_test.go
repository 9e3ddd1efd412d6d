package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stimsync/internal/backend"
	"github.com/roach88/stimsync/internal/command"
)

func TestInitialize_BindsAndPrepares(t *testing.T) {
	f := newFixture(t, Visual)

	assert.True(t, f.d.Bound())
	assert.Equal(t, 1, f.backend.prepared)
	assert.Contains(t, f.logs.String(), "dispatcher initialized")
	assert.Contains(t, f.logs.String(), "modality=visual")
}

func TestInitialize_NilConnector(t *testing.T) {
	f := newFixture(t, Visual)

	err := f.d.Initialize(context.Background(), nil, backend.Config{})

	assert.True(t, IsNotConnected(err))
	assert.False(t, f.d.Bound())
	assert.Equal(t, 1, f.backend.closed, "previous backend torn down first")
}

func TestInitialize_DisconnectedEngine(t *testing.T) {
	f := newFixture(t, Auditory)
	f.engine.Disconnect()

	err := f.d.Initialize(context.Background(), f.engine, backend.Config{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, f.d.Bound())

	f.q.Push(&command.Command{Stage: command.StageFeedback})
	outcome, err := f.cycle()
	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, IsNotConnected(err))
}

func TestInitialize_PrepareFailure(t *testing.T) {
	f := newFixture(t, Visual)
	boom := errors.New("no display")
	f.backend.fail = map[backend.Op]error{backend.OpPrepare: boom}

	err := f.d.Initialize(context.Background(), f.engine, backend.Config{})

	require.Error(t, err)
	assert.True(t, IsBackendFailure(err))
	assert.ErrorIs(t, err, boom)
	assert.False(t, f.d.Bound())

	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "prepare", de.Op)
	assert.Equal(t, Visual, de.Modality)
}

func TestInitialize_ReplacesPreviousBackend(t *testing.T) {
	f := newFixture(t, Visual)
	next := &fakeBackend{trace: f.trace}
	f.engine.Connect(next)

	require.NoError(t, f.d.Initialize(context.Background(), f.engine, backend.Config{}))

	assert.Equal(t, 1, f.backend.closed)
	assert.Equal(t, 1, next.prepared)

	f.q.Push(&command.Command{Stage: command.StageOther})
	_, err := f.cycle()
	require.NoError(t, err)
	assert.Len(t, next.payloads, 1)
	assert.Empty(t, f.backend.payloads)
}

func TestDeinitialize_Unbinds(t *testing.T) {
	f := newFixture(t, Visual)

	f.d.Deinitialize()
	f.d.Deinitialize()

	assert.False(t, f.d.Bound())
	assert.Equal(t, 1, f.backend.closed, "second call is a no-op")
}

func TestDeinitialize_VisualCloseErrorIsSilent(t *testing.T) {
	f := newFixture(t, Visual)
	f.backend.closeErr = errors.New("window already gone")

	f.d.Deinitialize()

	assert.False(t, f.d.Bound())
	assert.NotContains(t, f.logs.String(), "window already gone")
	assert.NotContains(t, f.logs.String(), "level=ERROR")
}

func TestDeinitialize_AuditoryCloseErrorIsLogged(t *testing.T) {
	f := newFixture(t, Auditory)
	f.backend.closeErr = errors.New("device busy")

	f.d.Deinitialize()

	assert.False(t, f.d.Bound())
	logs := f.logs.String()
	assert.Contains(t, logs, "failed to close the sound system")
	assert.Contains(t, logs, "TEARDOWN_FAILED")
	assert.Contains(t, logs, "device busy")
}

func TestDeinitialize_ClosePanicIsSwallowed(t *testing.T) {
	f := newFixture(t, Auditory)
	f.backend.panicOn = backend.OpClose

	assert.NotPanics(t, f.d.Deinitialize)
	assert.False(t, f.d.Bound())
	assert.Contains(t, f.logs.String(), "close exploded")
}

func TestRunCycle_LogsStage(t *testing.T) {
	f := newFixture(t, Auditory)
	f.q.Push(&command.Command{Stage: command.StageInstruction, Iteration: 7})

	_, err := f.cycle()
	require.NoError(t, err)

	logs := f.logs.String()
	assert.Contains(t, logs, "msg=stage")
	assert.Contains(t, logs, "stage=instruction")
	assert.Contains(t, logs, "iteration=7")
}

func TestModality(t *testing.T) {
	assert.True(t, Visual.Valid())
	assert.True(t, Auditory.Valid())
	assert.False(t, Modality("haptic").Valid())
	assert.Equal(t, "auditory", Auditory.String())

	f := newFixture(t, Auditory)
	assert.Equal(t, Auditory, f.d.Modality())
}
