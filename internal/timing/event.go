package timing

import (
	"fmt"
	"time"
)

// Point is a named instant in the experimental protocol.
type Point int

const (
	// InstructionOnset is recorded when an instruction-stage command is dispatched.
	InstructionOnset Point = iota + 1
	// FeedbackOnset is recorded when a feedback-stage command is dispatched.
	FeedbackOnset
)

// String returns the stable name used in the store and in CLI output.
func (p Point) String() string {
	switch p {
	case InstructionOnset:
		return "instruction_onset"
	case FeedbackOnset:
		return "feedback_onset"
	default:
		return fmt.Sprintf("point(%d)", int(p))
	}
}

// ParsePoint is the inverse of Point.String.
func ParsePoint(s string) (Point, error) {
	switch s {
	case "instruction_onset":
		return InstructionOnset, nil
	case "feedback_onset":
		return FeedbackOnset, nil
	default:
		return 0, fmt.Errorf("unknown timeline point %q", s)
	}
}

// Event is one timing record.
type Event struct {
	Seq       int64     `json:"seq"`
	Session   string    `json:"session"`
	Modality  string    `json:"modality"`
	Point     Point     `json:"-"`
	Iteration int       `json:"iteration"`
	At        time.Time `json:"at"`
}

// Key is the (point, iteration) pair an event is keyed by.
type Key struct {
	Point     Point
	Iteration int
}

// Key returns the event's key.
func (e Event) Key() Key {
	return Key{Point: e.Point, Iteration: e.Iteration}
}

// Recorder appends timing events. Record never fails observably: recorders
// that can fail internally log the failure instead of returning it.
type Recorder interface {
	Record(point Point, iteration int)
}
