// Package timing records when presentation stages start, for offline timing
// analysis of a neurofeedback session.
//
// Every record is an Event keyed by (Point, Iteration). Events are append-only:
// nothing in this package mutates or removes one, and recorders never
// deduplicate, so sending the same command twice yields two events.
//
// Ordering uses the logical sequence number from Clock. The wall-clock instant
// is captured at Record time for latency analysis only.
package timing
