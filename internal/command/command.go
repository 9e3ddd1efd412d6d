package command

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Stage is the semantic phase of a trial.
type Stage int

const (
	// StageOther covers every stage that is neither instruction nor feedback
	// (baseline, rest, ...). It never produces a timing record.
	StageOther Stage = iota
	// StageInstruction is the instruction phase of a trial.
	StageInstruction
	// StageFeedback is the feedback phase of a trial.
	StageFeedback
)

// ParseStage maps the wire name of a stage to a Stage.
// Unknown names map to StageOther; matching is case-insensitive.
func ParseStage(s string) Stage {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "instruction":
		return StageInstruction
	case "feedback":
		return StageFeedback
	default:
		return StageOther
	}
}

// String returns the wire name of the stage.
func (s Stage) String() string {
	switch s {
	case StageInstruction:
		return "instruction"
	case StageFeedback:
		return "feedback"
	default:
		return "other"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	*s = ParseStage(string(text))
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Stage) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("stage: expected scalar, got yaml kind %d at line %d", value.Kind, value.Line)
	}
	*s = ParseStage(value.Value)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Stage) MarshalYAML() (any, error) {
	return s.String(), nil
}

// Payload is the modality-specific data forwarded verbatim to a backend
// (feedback value, reward, sound parameters, ...). The dispatcher never
// inspects it.
type Payload map[string]any

// Command is one presentation action for one modality.
//
// At most one of BlankScreen and TaskSequenceActive should be set; the
// Dispatcher does not require it and resolves conflicts by priority
// (blank screen first, then task, then normal content).
type Command struct {
	Stage              Stage   `yaml:"stage" json:"stage"`
	Iteration          int     `yaml:"iteration" json:"iteration"`
	BlankScreen        bool    `yaml:"blank_screen,omitempty" json:"blank_screen,omitempty"`
	TaskSequenceActive bool    `yaml:"task_sequence,omitempty" json:"task_sequence,omitempty"`
	Payload            Payload `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// Null returns the null sentinel command.
func Null() *Command {
	return nil
}

// Validate checks the constraints a producer must uphold.
func (c *Command) Validate() error {
	if c == nil {
		return nil
	}
	if c.Iteration < 0 {
		return fmt.Errorf("command: negative iteration %d", c.Iteration)
	}
	return nil
}

// String returns a short human-readable description used in logs.
func (c *Command) String() string {
	if c == nil {
		return "<null>"
	}
	var flags []string
	if c.BlankScreen {
		flags = append(flags, "blank")
	}
	if c.TaskSequenceActive {
		flags = append(flags, "task")
	}
	if len(flags) == 0 {
		return fmt.Sprintf("%s#%d", c.Stage, c.Iteration)
	}
	return fmt.Sprintf("%s#%d[%s]", c.Stage, c.Iteration, strings.Join(flags, ","))
}
