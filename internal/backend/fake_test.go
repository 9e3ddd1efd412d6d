package backend

import (
	"context"
	"sync"

	"github.com/gopxl/beep"

	"github.com/roach88/stimsync/internal/command"
)

// recordingBackend records every call it receives. Calls block on gate when
// it is non-nil, which lets tests prove the caller did not wait.
type recordingBackend struct {
	mu       sync.Mutex
	ops      []Op
	payloads []command.Payload
	failOn   map[Op]error
	gate     chan struct{}
	closeErr error
}

func (b *recordingBackend) record(op Op, p command.Payload) error {
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, op)
	b.payloads = append(b.payloads, p)
	return b.failOn[op]
}

func (b *recordingBackend) Prepare(context.Context, Config) error { return b.record(OpPrepare, nil) }
func (b *recordingBackend) BlankScreen() error                    { return b.record(OpBlankScreen, nil) }
func (b *recordingBackend) PlayTask() error                       { return b.record(OpPlayTask, nil) }
func (b *recordingBackend) Present(p command.Payload) error       { return b.record(OpPresent, p) }

func (b *recordingBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, OpClose)
	return b.closeErr
}

func (b *recordingBackend) calls() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Op, len(b.ops))
	copy(out, b.ops)
	return out
}

// fakeSpeaker captures streamers instead of playing them.
type fakeSpeaker struct {
	mu       sync.Mutex
	initRate beep.SampleRate
	initBuf  int
	initErr  error
	played   []beep.Streamer
	clears   int
	closes   int
}

func (s *fakeSpeaker) Init(sr beep.SampleRate, bufferSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initRate = sr
	s.initBuf = bufferSize
	return s.initErr
}

func (s *fakeSpeaker) Play(streamers ...beep.Streamer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, streamers...)
}

func (s *fakeSpeaker) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *fakeSpeaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
}

// countSamples drains a streamer and returns how many samples it produced.
func countSamples(s beep.Streamer) int {
	buf := make([][2]float64, 512)
	total := 0
	for {
		n, ok := s.Stream(buf)
		total += n
		if !ok {
			return total
		}
	}
}
