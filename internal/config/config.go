// Package config loads session configuration.
//
// A configuration file is CUE, unified with the embedded #Session schema
// which supplies types, ranges and defaults. Environment variables override
// a few deployment-specific fields after the file is loaded.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/caarlos0/env/v11"

	"github.com/roach88/stimsync/internal/backend"
	"github.com/roach88/stimsync/internal/dispatch"
)

//go:embed schema.cue
var schemaSource string

// Session is a decoded session configuration.
type Session struct {
	Name             string         `json:"name"`
	Database         string         `json:"database" env:"STIMSYNC_DB"`
	WorkFolder       string         `json:"work_folder"`
	FeedbackProtocol string         `json:"feedback_protocol"`
	ScreenID         int            `json:"screen_id"`
	Cadence          string         `json:"cadence" env:"STIMSYNC_CADENCE"`
	Visual           bool           `json:"visual"`
	Auditory         bool           `json:"auditory"`
	Tone             bool           `json:"tone"`
	PTB              map[string]any `json:"ptb,omitempty"`
	Inbox            string         `json:"inbox,omitempty"`
	LogLevel         string         `json:"log_level" env:"STIMSYNC_LOG_LEVEL"`
}

// Error codes.
const (
	ErrCodeNotFound = "CONFIG_NOT_FOUND"
	ErrCodeInvalid  = "CONFIG_INVALID"
	ErrCodeEnv      = "CONFIG_ENV"
)

// LoadError reports a configuration problem with its CUE position when one
// is known.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads path, validates it against the schema, applies environment
// overrides and checks the result.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading config file: %v", err)}
	}
	return Parse(path, data)
}

// Parse is Load on in-memory data. filename labels error positions.
func Parse(filename string, data []byte) (*Session, error) {
	cfg, err := decode(filename, data)
	if err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, &LoadError{Code: ErrCodeEnv, Message: fmt.Sprintf("parse env: %v", err)}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(filename string, data []byte) (*Session, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, cueError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Session")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(err)
	}

	var cfg Session
	if err := unified.Decode(&cfg); err != nil {
		return nil, cueError(err)
	}
	return &cfg, nil
}

func cueError(err error) *LoadError {
	le := &LoadError{Code: ErrCodeInvalid, Message: err.Error()}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		le.Pos = errs[0].Position()
		le.Message = strings.TrimSpace(cueerrors.Details(errs[0], nil))
	}
	return le
}

// Validate checks what the schema cannot see: the values environment
// overrides may have changed, and cross-field rules.
func (s *Session) Validate() error {
	if s.Database == "" {
		return &LoadError{Code: ErrCodeInvalid, Message: "database must not be empty"}
	}
	d, err := time.ParseDuration(s.Cadence)
	if err != nil {
		return &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("cadence: %v", err)}
	}
	if d <= 0 {
		return &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("cadence must be positive, got %s", s.Cadence)}
	}
	if !s.Visual && !s.Auditory {
		return &LoadError{Code: ErrCodeInvalid, Message: "at least one of visual and auditory must be enabled"}
	}
	if s.Tone && !s.Auditory {
		return &LoadError{Code: ErrCodeInvalid, Message: "tone requires auditory"}
	}
	if _, err := parseLevel(s.LogLevel); err != nil {
		return &LoadError{Code: ErrCodeInvalid, Message: err.Error()}
	}
	return nil
}

// CadenceDuration returns the parsed cadence. Call after Validate.
func (s *Session) CadenceDuration() time.Duration {
	d, _ := time.ParseDuration(s.Cadence)
	return d
}

// Modalities returns the enabled modalities, visual first.
func (s *Session) Modalities() []dispatch.Modality {
	var out []dispatch.Modality
	if s.Visual {
		out = append(out, dispatch.Visual)
	}
	if s.Auditory {
		out = append(out, dispatch.Auditory)
	}
	return out
}

// BackendConfig returns the preparation config handed to every backend.
func (s *Session) BackendConfig() backend.Config {
	return backend.Config{
		ScreenID:         s.ScreenID,
		WorkFolder:       s.WorkFolder,
		FeedbackProtocol: s.FeedbackProtocol,
		Params:           s.PTB,
	}
}

// Snapshot returns the configuration as JSON, for the session row.
func (s *Session) Snapshot() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("config snapshot: %w", err)
	}
	return string(data), nil
}

// Level returns the configured log level. Call after Validate.
func (s *Session) Level() slog.Level {
	l, _ := parseLevel(s.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
