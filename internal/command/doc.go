// Package command defines the presentation command exchanged between the
// real-time computation process and the stimulus dispatchers.
//
// A Command describes one presentation action for one modality. Producers
// build it, push it onto a queue.Queue, and from then on only the consuming
// Dispatcher touches it (it clears the BlankScreen and TaskSequenceActive
// fields once they have been handed to a backend).
//
// A nil *Command is the null sentinel: "the producer had no real data this
// time". It is distinct from an empty queue and the Dispatcher treats the two
// differently.
package command
