package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/stimsync/internal/timing"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("session not found")

// ReadSession returns one session by id.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, config, started_at, ended_at
		FROM sessions
		WHERE id = ?
	`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("read session: %w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	return sess, nil
}

// ListSessions returns every session, oldest first.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, config, started_at, ended_at
		FROM sessions
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadTimingEvents returns all timing events for a session ordered by seq.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadTimingEvents(ctx context.Context, sessionID string) ([]timing.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, modality, point, iteration, at
		FROM timing_events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query timing events: %w", err)
	}
	defer rows.Close()

	events := []timing.Event{}
	for rows.Next() {
		var (
			ev    timing.Event
			point string
			at    int64
		)
		if err := rows.Scan(&ev.Session, &ev.Seq, &ev.Modality, &point, &ev.Iteration, &at); err != nil {
			return nil, fmt.Errorf("scan timing event: %w", err)
		}
		ev.Point, err = timing.ParsePoint(point)
		if err != nil {
			return nil, fmt.Errorf("scan timing event seq %d: %w", ev.Seq, err)
		}
		ev.At = fromUnixNano(at)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timing events: %w", err)
	}
	return events, nil
}

// LastTimingSeq returns the highest seq recorded for a session, or 0.
// Used to resume a session's logical clock.
func (s *Store) LastTimingSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM timing_events WHERE session_id = ?
	`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last timing seq: %w", err)
	}
	return seq.Int64, nil
}

// ReadActions returns all actions for a session in insertion order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadActions(ctx context.Context, sessionID string) ([]Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, modality, op, payload, at
		FROM actions
		WHERE session_id = ?
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := []Action{}
	for rows.Next() {
		var (
			a  Action
			at int64
		)
		if err := rows.Scan(&a.ID, &a.Session, &a.Modality, &a.Op, &a.Payload, &at); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.At = fromUnixNano(at)
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess    Session
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.Name, &sess.Config, &started, &ended); err != nil {
		return Session{}, err
	}
	sess.StartedAt = fromUnixNano(started)
	sess.EndedAt = fromNullUnixNano(ended)
	return sess, nil
}
