package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/stimsync/internal/timing"
)

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING - writing the same session twice is a no-op.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	cfg := sess.Config
	if cfg == "" {
		cfg = "{}"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, config, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.Name,
		cfg,
		toUnixNano(sess.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// EndSession stamps the end time of a session.
// Returns an error if the session does not exist.
func (s *Store) EndSession(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET ended_at = ? WHERE id = ?
	`, toUnixNano(at), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end session: %w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// WriteTimingEvent appends a timing event. Implements timing.Sink.
//
// Events are never updated. A second event with the same (session, seq) is a
// constraint violation and returns an error; events with the same point and
// iteration but different seq are distinct rows.
//
// Note: The session referenced by ev.Session must exist (foreign key constraint).
func (s *Store) WriteTimingEvent(ctx context.Context, ev timing.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timing_events (session_id, seq, modality, point, iteration, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		ev.Session,
		ev.Seq,
		ev.Modality,
		ev.Point.String(),
		ev.Iteration,
		toUnixNano(ev.At),
	)
	if err != nil {
		return fmt.Errorf("write timing event: %w", err)
	}
	return nil
}

// WriteAction appends a handed-off backend action and returns its row id.
func (s *Store) WriteAction(ctx context.Context, a Action) (int64, error) {
	payload := a.Payload
	if payload == "" {
		payload = "{}"
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (session_id, modality, op, payload, at)
		VALUES (?, ?, ?, ?, ?)
	`,
		a.Session,
		a.Modality,
		a.Op,
		payload,
		toUnixNano(a.At),
	)
	if err != nil {
		return 0, fmt.Errorf("write action: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write action: last insert id: %w", err)
	}
	return id, nil
}
