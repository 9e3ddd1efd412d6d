// Package backend defines the presentation backend contract the dispatchers
// drive, and ships the adapters and reference backends a session wires up.
//
// A Backend executes prepared presentation actions for one modality. The
// dispatch core never waits for rendering: backends are wrapped in Async,
// which hands every action to a dedicated goroutine and returns as soon as
// the action is accepted.
//
// Reference backends:
//   - Journal appends every action it receives to the session store, for
//     dry runs and offline analysis.
//   - Tone plays auditory feedback as sine tones through gopxl/beep.
package backend
