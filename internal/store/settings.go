package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoSettings is returned by LoadSettings before anything was saved.
var ErrNoSettings = errors.New("no saved settings")

// Settings is the state restored on the next start-up.
type Settings struct {
	BPM         int
	BeatsPerBar int
	PlayBars    int
	MuteBars    int
	PresetIndex int // -1 when the tempo was set by hand
	UpdatedAt   time.Time
}

// SaveSettings replaces the saved settings.
func (s *Store) SaveSettings(ctx context.Context, st Settings) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, bpm, beats_per_bar, play_bars, mute_bars, preset_index, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			bpm = excluded.bpm,
			beats_per_bar = excluded.beats_per_bar,
			play_bars = excluded.play_bars,
			mute_bars = excluded.mute_bars,
			preset_index = excluded.preset_index,
			updated_at = excluded.updated_at`,
		st.BPM, st.BeatsPerBar, st.PlayBars, st.MuteBars, st.PresetIndex, st.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// LoadSettings returns the saved settings or ErrNoSettings.
func (s *Store) LoadSettings(ctx context.Context) (Settings, error) {
	var (
		st      Settings
		updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT bpm, beats_per_bar, play_bars, mute_bars, preset_index, updated_at
		FROM settings WHERE id = 1`).
		Scan(&st.BPM, &st.BeatsPerBar, &st.PlayBars, &st.MuteBars, &st.PresetIndex, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, ErrNoSettings
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	st.UpdatedAt = time.UnixMilli(updated)
	return st, nil
}
