package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stimsync/internal/command"
	"github.com/roach88/stimsync/internal/dispatch"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// dropFile writes under a temporary name and renames into place, the way a
// producer must.
func dropFile(t *testing.T, dir, name, content string) {
	t.Helper()
	tmp := filepath.Join(dir, name+".tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, name)))
}

func newTestInbox(t *testing.T) (string, *Inbox, *sliceQueue, *sliceQueue) {
	t.Helper()
	dir := t.TempDir()
	visual, auditory := &sliceQueue{}, &sliceQueue{}
	in := NewInbox(dir, map[dispatch.Modality]Pusher{
		dispatch.Visual:   visual,
		dispatch.Auditory: auditory,
	}, WithRescan(20*time.Millisecond))
	return dir, in, visual, auditory
}

func TestInbox_ScanInNameOrder(t *testing.T) {
	dir, in, visual, auditory := newTestInbox(t)
	writeFile(t, dir, "visual-0002.yaml", "stage: feedback\niteration: 2\n")
	writeFile(t, dir, "visual-0001.yaml", "stage: instruction\niteration: 1\n")
	writeFile(t, dir, "auditory-0001.yml", "stage: feedback\niteration: 1\n---\nnull\n")
	writeFile(t, dir, "notes.txt", "ignored")

	pushed := in.Scan()

	assert.Equal(t, 4, pushed)

	v := visual.all()
	require.Len(t, v, 2)
	assert.Equal(t, command.StageInstruction, v[0].Stage)
	assert.Equal(t, command.StageFeedback, v[1].Stage)

	a := auditory.all()
	require.Len(t, a, 2)
	assert.Equal(t, 1, a[0].Iteration)
	assert.Nil(t, a[1], "null document is pushed as the null sentinel")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "consumed files are removed")
	assert.Equal(t, "notes.txt", entries[0].Name())
}

func TestInbox_RejectsBadFiles(t *testing.T) {
	dir, in, visual, _ := newTestInbox(t)
	writeFile(t, dir, "haptic-0001.yaml", "stage: feedback\n")
	writeFile(t, dir, "nomodality.yaml", "stage: feedback\n")
	writeFile(t, dir, "visual-0001.yaml", "stage: [\n")
	writeFile(t, dir, "visual-0002.yaml", "stage: feedback\niteration: 3\n")

	pushed := in.Scan()

	assert.Equal(t, 1, pushed)
	assert.Len(t, visual.all(), 1)
	for _, name := range []string{"haptic-0001.yaml", "nomodality.yaml", "visual-0001.yaml"} {
		assert.FileExists(t, filepath.Join(dir, name+".rejected"))
	}

	// Rejected files are not picked up again.
	assert.Zero(t, in.Scan())
}

func TestInbox_DisabledModalityRejected(t *testing.T) {
	dir := t.TempDir()
	visual := &sliceQueue{}
	in := NewInbox(dir, map[dispatch.Modality]Pusher{dispatch.Visual: visual})
	writeFile(t, dir, "auditory-0001.yaml", "stage: feedback\n")

	assert.Zero(t, in.Scan())
	assert.FileExists(t, filepath.Join(dir, "auditory-0001.yaml.rejected"))
}

func TestInbox_RunPicksUpDroppedFiles(t *testing.T) {
	dir, in, visual, _ := newTestInbox(t)
	writeFile(t, dir, "visual-0001.yaml", "stage: instruction\niteration: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	require.Eventually(t, func() bool { return len(visual.all()) == 1 }, 2*time.Second, 5*time.Millisecond,
		"files present at start are consumed")

	dropFile(t, dir, "visual-0002.yaml", "stage: feedback\niteration: 2\npayload: {dispValue: 0.5}\n")

	require.Eventually(t, func() bool { return len(visual.all()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, command.Payload{"dispValue": 0.5}, visual.all()[1].Payload)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("inbox did not stop")
	}
}

func TestInbox_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "inbox")
	in := NewInbox(dir, map[dispatch.Modality]Pusher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, in.Run(ctx), context.Canceled)
	assert.DirExists(t, dir)
}

func TestInbox_ClosedQueueDropsCommands(t *testing.T) {
	dir := t.TempDir()
	closed := &sliceQueue{closed: true}
	in := NewInbox(dir, map[dispatch.Modality]Pusher{dispatch.Visual: closed})
	writeFile(t, dir, "visual-0001.yaml", "stage: feedback\n---\nstage: feedback\n")

	assert.Zero(t, in.Scan())
	assert.NoFileExists(t, filepath.Join(dir, "visual-0001.yaml"))
}
