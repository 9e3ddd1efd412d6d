package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/roach88/stimsync/internal/command"
)

// Tone defaults. Payload keys "frequency" (Hz) and "duration_ms" override them
// per command.
const (
	DefaultSampleRate    = beep.SampleRate(44100)
	DefaultToneFrequency = 440.0
	DefaultToneDuration  = 200 * time.Millisecond
	TaskCueFrequency     = 880.0
	TaskCueDuration      = 100 * time.Millisecond
)

// Speaker is the audio output Tone plays into.
type Speaker interface {
	Init(sr beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Clear()
	Close()
}

// systemSpeaker is the process-wide beep speaker.
type systemSpeaker struct{}

func (systemSpeaker) Init(sr beep.SampleRate, bufferSize int) error {
	return speaker.Init(sr, bufferSize)
}
func (systemSpeaker) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (systemSpeaker) Clear()                  { speaker.Clear() }
func (systemSpeaker) Close()                  { speaker.Close() }

// Tone is an auditory backend that plays feedback as sine tones.
//
// Present plays a tone whose pitch and length come from the payload; PlayTask
// plays a short fixed cue; BlankScreen silences anything still playing.
type Tone struct {
	out Speaker
	sr  beep.SampleRate

	mu       sync.Mutex
	prepared bool
}

// ToneOption configures a Tone backend.
type ToneOption func(*Tone)

// WithSpeaker replaces the system speaker (tests use a recording fake).
func WithSpeaker(s Speaker) ToneOption {
	return func(t *Tone) { t.out = s }
}

// WithSampleRate sets the output sample rate.
func WithSampleRate(sr beep.SampleRate) ToneOption {
	return func(t *Tone) { t.sr = sr }
}

// NewTone creates an unprepared Tone backend.
func NewTone(opts ...ToneOption) *Tone {
	t := &Tone{out: systemSpeaker{}, sr: DefaultSampleRate}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Prepare initializes the speaker with a 100ms buffer.
func (t *Tone) Prepare(_ context.Context, _ Config) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.prepared {
		return nil
	}
	if err := t.out.Init(t.sr, t.sr.N(time.Second/10)); err != nil {
		return fmt.Errorf("tone prepare: %w", err)
	}
	t.prepared = true
	return nil
}

// BlankScreen silences the output.
func (t *Tone) BlankScreen() error {
	if err := t.ensurePrepared(OpBlankScreen); err != nil {
		return err
	}
	t.out.Clear()
	return nil
}

// PlayTask plays the task cue.
func (t *Tone) PlayTask() error {
	if err := t.ensurePrepared(OpPlayTask); err != nil {
		return err
	}
	return t.play(TaskCueFrequency, TaskCueDuration)
}

// Present plays the feedback tone described by the payload.
func (t *Tone) Present(payload command.Payload) error {
	if err := t.ensurePrepared(OpPresent); err != nil {
		return err
	}

	freq, err := floatParam(payload, "frequency", DefaultToneFrequency)
	if err != nil {
		return fmt.Errorf("tone present: %w", err)
	}
	ms, err := floatParam(payload, "duration_ms", float64(DefaultToneDuration/time.Millisecond))
	if err != nil {
		return fmt.Errorf("tone present: %w", err)
	}
	return t.play(freq, time.Duration(ms*float64(time.Millisecond)))
}

// Close stops playback and releases the speaker.
func (t *Tone) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.prepared {
		return nil
	}
	t.out.Clear()
	t.out.Close()
	t.prepared = false
	return nil
}

func (t *Tone) play(freq float64, d time.Duration) error {
	s, err := ToneStreamer(t.sr, freq, d)
	if err != nil {
		return err
	}
	t.out.Play(s)
	return nil
}

func (t *Tone) ensurePrepared(op Op) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.prepared {
		return fmt.Errorf("tone %s before prepare", op)
	}
	return nil
}

// ToneStreamer returns a sine tone of the given frequency lasting d.
func ToneStreamer(sr beep.SampleRate, freq float64, d time.Duration) (beep.Streamer, error) {
	if d <= 0 {
		return nil, fmt.Errorf("tone duration must be positive, got %s", d)
	}
	sine, err := generators.SineTone(sr, freq)
	if err != nil {
		return nil, fmt.Errorf("tone %gHz: %w", freq, err)
	}
	return beep.Take(sr.N(d), sine), nil
}

func floatParam(p command.Payload, key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%s: expected number, got %T", key, v)
	}
}
