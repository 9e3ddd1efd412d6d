// Package store provides SQLite-backed durable storage for presentation
// sessions.
//
// The store is an append-only log with:
//   - Sessions: one row per presentation session
//   - Timing events: stage onsets keyed by (point, iteration)
//   - Actions: every backend action a dispatcher handed off
//
// # Ordering
//
// Timing events are ordered by their logical seq, never by wall-clock time.
// The wall-clock instant is stored as Unix nanoseconds for latency analysis.
// All queries include ORDER BY seq ASC (or id ASC for actions) so repeated
// reads return identical results.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
