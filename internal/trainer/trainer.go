package trainer

import (
	"context"
	"sync"

	"github.com/pion/logging"

	"github.com/satindergrewal/metronome/internal/metronome"
	"github.com/satindergrewal/metronome/internal/session"
	"github.com/satindergrewal/metronome/internal/stream"
)

// Config holds tempo trainer parameters.
type Config struct {
	StepBPM   int `json:"stepBpm"`   // added after each dwell, negative ramps down
	TargetBPM int `json:"targetBpm"` // the ramp stops here
	DwellBars int `json:"dwellBars"` // bars held at each tempo
}

// Normalize clamps the target to the tempo range and the dwell to at least
// one bar. A zero step is replaced by +1.
func (c Config) Normalize() Config {
	c.TargetBPM = metronome.ClampBPM(c.TargetBPM)
	if c.DwellBars < 1 {
		c.DwellBars = 1
	}
	if c.StepBPM == 0 {
		c.StepBPM = 1
	}
	return c
}

// Status is the current state of the trainer.
type Status struct {
	Config
	Enabled       bool `json:"enabled"`
	BarsRemaining int  `json:"barsRemaining"` // before the next step
	Done          bool `json:"done"`          // target reached
}

// Controller is the part of the session the trainer drives.
type Controller interface {
	SetBpm(bpm int) bool
	Status() session.Status
}

// Trainer raises (or lowers) the tempo by a fixed step every few bars until
// a target is reached. It follows the session's beat events, so bars are
// counted as heard and pauses hold the ramp in place.
type Trainer struct {
	ctrl Controller
	log  logging.LeveledLogger

	mu       sync.RWMutex
	cfg      Config
	enabled  bool
	barsLeft int
	done     bool
}

// New creates a disabled trainer.
func New(ctrl Controller, cfg Config, log logging.LeveledLogger) *Trainer {
	if log == nil {
		log = logging.NewDefaultLoggerFactory().NewLogger("trainer")
	}
	cfg = cfg.Normalize()
	return &Trainer{ctrl: ctrl, log: log, cfg: cfg, barsLeft: cfg.DwellBars}
}

// Status returns the trainer state.
func (t *Trainer) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Status{Config: t.cfg, Enabled: t.enabled, BarsRemaining: t.barsLeft, Done: t.done}
}

// SetEnabled turns the ramp on or off. Enabling restarts the dwell.
func (t *Trainer) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	if enabled {
		t.resetDwell()
		t.done = false
	}
	t.mu.Unlock()
	t.log.Infof("trainer enabled: %v", enabled)
}

// Configure replaces the parameters and restarts the dwell.
func (t *Trainer) Configure(cfg Config) Config {
	cfg = cfg.Normalize()
	t.mu.Lock()
	t.cfg = cfg
	t.resetDwell()
	t.done = false
	t.mu.Unlock()
	t.log.Infof("trainer: %+d BPM every %d bars up to %d", cfg.StepBPM, cfg.DwellBars, cfg.TargetBPM)
	return cfg
}

// Run follows events until ctx is cancelled.
func (t *Trainer) Run(ctx context.Context, events *stream.Broadcaster[session.Event]) {
	l := events.Subscribe()
	defer events.Unsubscribe(l)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-l.C:
			if !ok {
				return
			}
			t.handle(ev)
		}
	}
}

func (t *Trainer) handle(ev session.Event) {
	switch args := ev.Args.(type) {
	case session.PlayStateArgs:
		if args.IsPlaying {
			t.mu.Lock()
			t.resetDwell()
			t.mu.Unlock()
		}
	case session.BeatArgs:
		st := t.ctrl.Status()
		// The step lands on the last beat so the next bar starts at the
		// new tempo.
		if args.Beat == st.BeatsPerBar-1 {
			t.barEnded(st.BPM)
		}
	}
}

func (t *Trainer) barEnded(bpm int) {
	t.mu.Lock()
	if !t.enabled || t.done {
		t.mu.Unlock()
		return
	}
	t.barsLeft--
	if t.barsLeft > 0 {
		t.mu.Unlock()
		return
	}
	t.resetDwell()
	next, reached := nextTempo(bpm, t.cfg)
	t.done = reached
	t.mu.Unlock()

	if next != bpm {
		t.ctrl.SetBpm(next)
		t.log.Infof("trainer step: %d -> %d BPM", bpm, next)
	}
	if reached {
		t.log.Infof("trainer reached %d BPM", t.cfg.TargetBPM)
	}
}

// nextTempo applies one step toward the target without overshooting it.
func nextTempo(bpm int, cfg Config) (next int, reached bool) {
	next = bpm + cfg.StepBPM
	if cfg.StepBPM > 0 && next >= cfg.TargetBPM || cfg.StepBPM < 0 && next <= cfg.TargetBPM {
		if cfg.StepBPM > 0 && bpm > cfg.TargetBPM || cfg.StepBPM < 0 && bpm < cfg.TargetBPM {
			// Already past the target in the step's direction.
			return bpm, true
		}
		return cfg.TargetBPM, true
	}
	return metronome.ClampBPM(next), false
}

// resetDwell starts a new dwell. Must be called with mu held.
func (t *Trainer) resetDwell() {
	t.barsLeft = t.cfg.DwellBars
}
