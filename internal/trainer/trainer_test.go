package trainer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"

	"github.com/satindergrewal/metronome/internal/session"
	"github.com/satindergrewal/metronome/internal/stream"
)

type fakeController struct {
	mu    sync.Mutex
	bpm   int
	beats int
	sets  []int
}

func (f *fakeController) SetBpm(bpm int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bpm = bpm
	f.sets = append(f.sets, bpm)
	return true
}

func (f *fakeController) Status() session.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return session.Status{Snapshot: session.Snapshot{BPM: f.bpm, BeatsPerBar: f.beats, Playing: true}}
}

func (f *fakeController) history() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.sets...)
}

func quiet() logging.LeveledLogger {
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = logging.LogLevelDisabled
	return f.NewLogger("trainer")
}

func playBars(tr *Trainer, bars, beats int) {
	for b := 0; b < bars; b++ {
		for i := 0; i < beats; i++ {
			tr.handle(session.Event{Method: session.EventBeat, Args: session.BeatArgs{Beat: i}})
		}
	}
}

// --- nextTempo ---

func TestNextTempo(t *testing.T) {
	tests := []struct {
		bpm     int
		cfg     Config
		want    int
		reached bool
	}{
		{100, Config{StepBPM: 5, TargetBPM: 120}, 105, false},
		{118, Config{StepBPM: 5, TargetBPM: 120}, 120, true},
		{115, Config{StepBPM: 5, TargetBPM: 120}, 120, true},
		{130, Config{StepBPM: 5, TargetBPM: 120}, 130, true},
		{100, Config{StepBPM: -10, TargetBPM: 80}, 90, false},
		{85, Config{StepBPM: -10, TargetBPM: 80}, 80, true},
		{70, Config{StepBPM: -10, TargetBPM: 80}, 70, true},
	}
	for _, tt := range tests {
		got, reached := nextTempo(tt.bpm, tt.cfg)
		if got != tt.want || reached != tt.reached {
			t.Errorf("nextTempo(%d, %+v) = %d, %v; want %d, %v", tt.bpm, tt.cfg, got, reached, tt.want, tt.reached)
		}
	}
}

func TestConfigNormalize(t *testing.T) {
	c := Config{StepBPM: 0, TargetBPM: 999, DwellBars: 0}.Normalize()
	if c.StepBPM != 1 || c.TargetBPM != 250 || c.DwellBars != 1 {
		t.Errorf("Normalize = %+v, want step 1, target 250, dwell 1", c)
	}
}

// --- stepping ---

func TestDisabledTrainerDoesNothing(t *testing.T) {
	ctrl := &fakeController{bpm: 100, beats: 4}
	tr := New(ctrl, Config{StepBPM: 5, TargetBPM: 120, DwellBars: 1}, quiet())

	playBars(tr, 4, 4)

	if got := ctrl.history(); len(got) != 0 {
		t.Errorf("disabled trainer set tempo %v", got)
	}
}

func TestStepsEveryDwell(t *testing.T) {
	ctrl := &fakeController{bpm: 100, beats: 3}
	tr := New(ctrl, Config{StepBPM: 5, TargetBPM: 120, DwellBars: 2}, quiet())
	tr.SetEnabled(true)

	playBars(tr, 1, 3)
	if got := ctrl.history(); len(got) != 0 {
		t.Fatalf("stepped after one bar: %v", got)
	}
	if s := tr.Status(); s.BarsRemaining != 1 {
		t.Errorf("BarsRemaining = %d, want 1", s.BarsRemaining)
	}

	playBars(tr, 1, 3)
	if got := ctrl.history(); len(got) != 1 || got[0] != 105 {
		t.Fatalf("after two bars history = %v, want [105]", got)
	}

	playBars(tr, 6, 3)
	want := []int{105, 110, 115, 120}
	got := ctrl.history()
	if len(got) != len(want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if !tr.Status().Done {
		t.Error("trainer should report done at the target")
	}

	playBars(tr, 4, 3)
	if n := len(ctrl.history()); n != 4 {
		t.Errorf("trainer kept stepping after the target: %v", ctrl.history())
	}
}

func TestPlayStartRestartsDwell(t *testing.T) {
	ctrl := &fakeController{bpm: 100, beats: 4}
	tr := New(ctrl, Config{StepBPM: 5, TargetBPM: 120, DwellBars: 2}, quiet())
	tr.SetEnabled(true)

	playBars(tr, 1, 4)
	tr.handle(session.Event{Method: session.EventPlayStateChanged, Args: session.PlayStateArgs{IsPlaying: true}})
	playBars(tr, 1, 4)

	if got := ctrl.history(); len(got) != 0 {
		t.Errorf("stepped across a restart: %v", got)
	}
}

func TestConfigureResetsDone(t *testing.T) {
	ctrl := &fakeController{bpm: 118, beats: 1}
	tr := New(ctrl, Config{StepBPM: 5, TargetBPM: 120, DwellBars: 1}, quiet())
	tr.SetEnabled(true)
	playBars(tr, 1, 1)
	if !tr.Status().Done {
		t.Fatal("expected done")
	}

	cfg := tr.Configure(Config{StepBPM: 10, TargetBPM: 140, DwellBars: 1})
	if cfg.TargetBPM != 140 {
		t.Errorf("Configure returned %+v", cfg)
	}
	if tr.Status().Done {
		t.Error("Configure should clear done")
	}
	playBars(tr, 1, 1)
	if got := ctrl.history(); got[len(got)-1] != 130 {
		t.Errorf("history = %v, want last 130", got)
	}
}

// --- Run ---

func TestRunFollowsEvents(t *testing.T) {
	ctrl := &fakeController{bpm: 100, beats: 2}
	tr := New(ctrl, Config{StepBPM: 5, TargetBPM: 120, DwellBars: 1}, quiet())
	tr.SetEnabled(true)

	events := stream.NewBroadcaster[session.Event](16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, events)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for events.ListenerCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("Run never subscribed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	events.Publish(session.Event{Method: session.EventBeat, Args: session.BeatArgs{Beat: 0}})
	events.Publish(session.Event{Method: session.EventBeat, Args: session.BeatArgs{Beat: 1}})

	for len(ctrl.history()) == 0 {
		select {
		case <-deadline:
			t.Fatal("trainer never stepped")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := ctrl.history(); got[0] != 105 {
		t.Errorf("first step = %d, want 105", got[0])
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
