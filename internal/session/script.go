package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stimsync/internal/command"
	"github.com/roach88/stimsync/internal/dispatch"
)

// Script is a rehearsed session: a timed list of commands per modality.
//
//	name: two-block rehearsal
//	steps:
//	  - modality: visual
//	    command: {stage: instruction, iteration: 1, payload: {text: "tap"}}
//	  - after: 500ms
//	    modality: visual
//	    command: {stage: feedback, iteration: 2, payload: {dispValue: 0.4}}
//	  - modality: visual
//	    command: null
type Script struct {
	// Name identifies the script in logs.
	Name string `yaml:"name"`

	// Description is free text.
	Description string `yaml:"description,omitempty"`

	// Steps are pushed in order.
	Steps []Step `yaml:"steps"`
}

// Step pushes one command onto one modality's queue.
type Step struct {
	// After is the delay before the push, relative to the previous step.
	After time.Duration `yaml:"after,omitempty"`

	// Modality selects the target queue.
	Modality dispatch.Modality `yaml:"modality"`

	// Command is pushed as is. A missing or null command pushes the null
	// sentinel.
	Command *command.Command `yaml:"command"`
}

// LoadScript reads and validates a script file.
// Unknown fields are rejected so typos fail loudly.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and validates a script document.
func ParseScript(data []byte) (*Script, error) {
	var script Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := script.Validate(); err != nil {
		return nil, err
	}
	return &script, nil
}

// Validate checks the script for unknown modalities, negative delays and
// invalid commands.
func (s *Script) Validate() error {
	if s.Name == "" {
		return errors.New("script: missing required field 'name'")
	}
	for i, step := range s.Steps {
		if !step.Modality.Valid() {
			return fmt.Errorf("script: step %d: unknown modality %q", i, step.Modality)
		}
		if step.After < 0 {
			return fmt.Errorf("script: step %d: negative delay %s", i, step.After)
		}
		if err := step.Command.Validate(); err != nil {
			return fmt.Errorf("script: step %d: %w", i, err)
		}
	}
	return nil
}

// Modalities returns the modalities the script targets, in first-use order.
func (s *Script) Modalities() []dispatch.Modality {
	var out []dispatch.Modality
	seen := make(map[dispatch.Modality]bool)
	for _, step := range s.Steps {
		if !seen[step.Modality] {
			seen[step.Modality] = true
			out = append(out, step.Modality)
		}
	}
	return out
}

// Pusher is the producing side of a command queue.
type Pusher interface {
	Push(c *command.Command) bool
}

// Play pushes the script's steps onto the matching queues, honouring each
// step's delay. Each command is copied, so a script can be played more than
// once.
//
// Returns an error if a step targets a modality with no queue or a queue
// that is already closed.
func Play(ctx context.Context, s *Script, targets map[dispatch.Modality]Pusher) error {
	for i, step := range s.Steps {
		if step.After > 0 {
			timer := time.NewTimer(step.After)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		q, ok := targets[step.Modality]
		if !ok {
			return fmt.Errorf("script %q step %d: modality %s is not enabled", s.Name, i, step.Modality)
		}
		if !q.Push(clone(step.Command)) {
			return fmt.Errorf("script %q step %d: %s queue is closed", s.Name, i, step.Modality)
		}
	}
	return nil
}

func clone(c *command.Command) *command.Command {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
