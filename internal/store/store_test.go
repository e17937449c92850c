package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	for _, table := range []string{"settings", "sessions"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := range 3 {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_BadPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db")); err == nil {
		t.Error("Open() in a missing directory should fail")
	}
}

// --- Settings ---

func TestLoadSettings_Empty(t *testing.T) {
	s := createTestStore(t)
	if _, err := s.LoadSettings(context.Background()); !errors.Is(err, ErrNoSettings) {
		t.Errorf("LoadSettings() error = %v, want ErrNoSettings", err)
	}
}

func TestSaveSettings_RoundTripAndOverwrite(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000)

	if err := s.SaveSettings(ctx, Settings{BPM: 90, BeatsPerBar: 3, PlayBars: 2, MuteBars: 1, PresetIndex: 1, UpdatedAt: at}); err != nil {
		t.Fatalf("SaveSettings() failed: %v", err)
	}
	if err := s.SaveSettings(ctx, Settings{BPM: 140, BeatsPerBar: 7, PlayBars: 1, MuteBars: 0, PresetIndex: -1, UpdatedAt: at}); err != nil {
		t.Fatalf("second SaveSettings() failed: %v", err)
	}

	got, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings() failed: %v", err)
	}
	want := Settings{BPM: 140, BeatsPerBar: 7, PlayBars: 1, MuteBars: 0, PresetIndex: -1}
	if got.BPM != want.BPM || got.BeatsPerBar != want.BeatsPerBar || got.PlayBars != want.PlayBars ||
		got.MuteBars != want.MuteBars || got.PresetIndex != want.PresetIndex {
		t.Errorf("LoadSettings() = %+v, want %+v", got, want)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, at)
	}

	var rows int
	s.db.QueryRow("SELECT COUNT(*) FROM settings").Scan(&rows)
	if rows != 1 {
		t.Errorf("settings rows = %d, want 1", rows)
	}
}

// --- Sessions ---

func TestSessions_BeginEndRecent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	t0 := time.UnixMilli(1_700_000_000_000)

	first, err := s.BeginSession(ctx, t0, 120, 4, 1, 0)
	if err != nil {
		t.Fatalf("BeginSession() failed: %v", err)
	}
	if err := s.EndSession(ctx, first, t0.Add(30*time.Second), 60); err != nil {
		t.Fatalf("EndSession() failed: %v", err)
	}
	second, err := s.BeginSession(ctx, t0.Add(time.Minute), 90, 3, 2, 1)
	if err != nil {
		t.Fatalf("BeginSession() failed: %v", err)
	}
	if first == second {
		t.Fatal("session ids collide")
	}

	sessions, err := s.RecentSessions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSessions() failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}

	running, done := sessions[0], sessions[1]
	if running.ID != second || running.StoppedAt != nil || running.Duration() != 0 {
		t.Errorf("newest session = %+v, want running %s", running, second)
	}
	if running.BPM != 90 || running.BeatsPerBar != 3 || running.PlayBars != 2 || running.MuteBars != 1 {
		t.Errorf("newest session tempo = %+v", running)
	}
	if done.ID != first || done.Beats != 60 || done.Duration() != 30*time.Second {
		t.Errorf("oldest session = %+v, want ended %s with 60 beats over 30s", done, first)
	}
}

func TestEndSession_OnlyOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	t0 := time.UnixMilli(1_700_000_000_000)

	id, _ := s.BeginSession(ctx, t0, 120, 4, 1, 0)
	s.EndSession(ctx, id, t0.Add(time.Second), 2)
	s.EndSession(ctx, id, t0.Add(time.Hour), 7200)

	sessions, _ := s.RecentSessions(ctx, 1)
	if len(sessions) != 1 || sessions[0].Beats != 2 {
		t.Errorf("second EndSession overwrote the first: %+v", sessions)
	}
}

func TestRecentSessions_Limit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	t0 := time.UnixMilli(1_700_000_000_000)

	for i := range 5 {
		if _, err := s.BeginSession(ctx, t0.Add(time.Duration(i)*time.Second), 100+i, 4, 1, 0); err != nil {
			t.Fatal(err)
		}
	}
	sessions, err := s.RecentSessions(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 3 {
		t.Fatalf("got %d sessions, want 3", len(sessions))
	}
	if sessions[0].BPM != 104 || sessions[2].BPM != 102 {
		t.Errorf("order = %d..%d, want 104..102", sessions[0].BPM, sessions[2].BPM)
	}
}
