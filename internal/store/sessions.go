package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one play run.
type Session struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"startedAt"`
	StoppedAt   *time.Time `json:"stoppedAt,omitempty"` // nil while running
	BPM         int        `json:"bpm"`
	BeatsPerBar int        `json:"beatsPerBar"`
	PlayBars    int        `json:"playBars"`
	MuteBars    int        `json:"muteBars"`
	Beats       int64      `json:"beats"`
}

// Duration is the length of a finished session, or zero while it runs.
func (s Session) Duration() time.Duration {
	if s.StoppedAt == nil {
		return 0
	}
	return s.StoppedAt.Sub(s.StartedAt)
}

// BeginSession records the start of a run and returns its id.
func (s *Store) BeginSession(ctx context.Context, at time.Time, bpm, beatsPerBar, playBars, muteBars int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, bpm, beats_per_bar, play_bars, mute_bars)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, at.UnixMilli(), bpm, beatsPerBar, playBars, muteBars)
	if err != nil {
		return "", fmt.Errorf("begin session: %w", err)
	}
	return id, nil
}

// EndSession closes a run. Ending an already ended session is a no-op.
func (s *Store) EndSession(ctx context.Context, id string, at time.Time, beats int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET stopped_at = ?, beats = ?
		WHERE id = ? AND stopped_at IS NULL`,
		at.UnixMilli(), beats, id)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	return nil
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, stopped_at, bpm, beats_per_bar, play_bars, mute_bars, beats
		FROM sessions
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess    Session
			started int64
			stopped sql.NullInt64
		)
		if err := rows.Scan(&sess.ID, &started, &stopped, &sess.BPM, &sess.BeatsPerBar,
			&sess.PlayBars, &sess.MuteBars, &sess.Beats); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.StartedAt = time.UnixMilli(started)
		if stopped.Valid {
			t := time.UnixMilli(stopped.Int64)
			sess.StoppedAt = &t
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
