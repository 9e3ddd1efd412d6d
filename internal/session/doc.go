// Package session wires the dispatch core into a running presentation
// session.
//
// A Session owns one lane per enabled modality. Each lane holds the
// modality's command queue, ready flag, dispatcher and the Runner that plays
// the external scheduler: it acquires the cycle lock, hands it to
// Dispatcher.RunCycle and waits for more work.
//
// Commands arrive from producers. Two ship with the package:
//
//   - Play drives a Script (YAML) into the lanes, for rehearsals and tests
//     without a live computation engine
//   - Inbox watches a drop directory and enqueues the command files a
//     cross-process computation engine writes there
//
// Timing records and handed-off backend actions are persisted to the store
// under the session's ID.
package session
