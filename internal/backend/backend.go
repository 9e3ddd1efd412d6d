package backend

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/stimsync/internal/command"
)

// Config is the one-time preparation data handed to a backend before the
// first cycle.
type Config struct {
	// ScreenID selects the display for visual backends. Auditory backends ignore it.
	ScreenID int `json:"screen_id"`
	// WorkFolder is where protocol assets (images, sounds) live.
	WorkFolder string `json:"work_folder"`
	// FeedbackProtocol names the feedback protocol (Cont, Inter, DCM, None).
	FeedbackProtocol string `json:"feedback_protocol"`
	// Params carries backend-specific parameters verbatim.
	Params map[string]any `json:"params,omitempty"`
}

// Backend executes presentation actions for one modality.
//
// BlankScreen, PlayTask and Present are the steady-state actions. For a
// visual backend Present displays feedback; for an auditory backend it plays
// the feedback sound.
type Backend interface {
	Prepare(ctx context.Context, cfg Config) error
	BlankScreen() error
	PlayTask() error
	Present(payload command.Payload) error
	Close() error
}

// Connector hands out the backend of a live presentation session.
// Backend returns nil while no session is connected.
type Connector interface {
	Backend() Backend
}

// ErrClosed is returned by actions sent to a closed Async backend.
var ErrClosed = errors.New("backend closed")

// Op names a backend action in logs and in the action journal.
type Op string

const (
	OpPrepare     Op = "prepare"
	OpBlankScreen Op = "blank_screen"
	OpPlayTask    Op = "play_task"
	OpPresent     Op = "present"
	OpClose       Op = "close"
)

// Engine is the connector for a presentation engine session. It starts
// disconnected; Connect binds a backend and Disconnect drops it.
//
// Thread-safety: all methods are safe for concurrent use.
type Engine struct {
	mu      sync.RWMutex
	backend Backend
}

// NewEngine returns a disconnected engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Connect binds a backend. A nil backend disconnects.
func (e *Engine) Connect(b Backend) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backend = b
}

// Disconnect drops the bound backend.
func (e *Engine) Disconnect() {
	e.Connect(nil)
}

// Backend implements Connector.
func (e *Engine) Backend() Backend {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.backend
}

// Connected reports whether a backend is bound.
func (e *Engine) Connected() bool {
	return e.Backend() != nil
}
