// Package dispatch implements the stimulus dispatcher: the per-modality
// drain-dispatch-signal cycle between the command queue and a presentation
// backend.
//
// LOCK OWNERSHIP:
//
// The caller acquires the cycle lock; RunCycle releases it. RunCycle
// registers the release with defer as its first statement, so every exit
// path (empty queue, null command, success, backend failure, panic) releases
// the lock exactly once. Callers must not unlock after RunCycle returns.
//
// CYCLE:
//
//	Idle -> QueueChecked -> EmptyExit                          (OutcomeEmpty)
//	                     -> Popped -> NullExit                 (OutcomeNull)
//	                               -> Classified -> Dispatched
//	                                  -> [TimingRecorded] -> Signaled  (OutcomeSignaled)
//
// Only Signaled sets the ready flag. EmptyExit never touches it; NullExit
// leaves it Busy because the flag was cleared when the command was popped.
//
// PRIORITY:
//
// Blank screen pre-empts everything, including timing capture. Task sequence
// pre-empts normal content but is still timed. No other order is valid.
package dispatch
