package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"

	"github.com/satindergrewal/metronome/internal/config"
	"github.com/satindergrewal/metronome/internal/metronome"
	"github.com/satindergrewal/metronome/internal/store"
	"github.com/satindergrewal/metronome/internal/stream"
)

// ErrUnknownPreset is returned by ApplyPreset for an index out of range.
var ErrUnknownPreset = errors.New("unknown preset")

const persistTimeout = 2 * time.Second

// Recorder persists settings and play history. *store.Store implements it.
type Recorder interface {
	SaveSettings(ctx context.Context, st store.Settings) error
	BeginSession(ctx context.Context, at time.Time, bpm, beatsPerBar, playBars, muteBars int) (string, error)
	EndSession(ctx context.Context, id string, at time.Time, beats int64) error
}

// Options wire optional collaborators into a Controller.
type Options struct {
	Presets  []config.Preset // DefaultPresets when empty
	Notifier Notifier        // media notification, nil disables it
	Recorder Recorder        // persistence, nil disables it
	Events   *stream.Broadcaster[Event]
	Logger   logging.LeveledLogger
}

// Status is the full picture served to clients.
type Status struct {
	Snapshot
	PlayBars      int    `json:"playBars"`
	MuteBars      int    `json:"muteBars"`
	Initialized   bool   `json:"initialized"`
	Generation    uint64 `json:"generation"`
	DroppedEvents int64  `json:"droppedEvents"`
	Beats         int64  `json:"beats"` // in the current run
}

// Controller is the single path commands take to the engine. UI commands and
// media-session commands both go through it, so the shared State, the
// notification, the event stream and the play history stay in step.
type Controller struct {
	engine   *metronome.Engine
	state    *State
	presets  []config.Preset
	notifier Notifier
	recorder Recorder
	events   *stream.Broadcaster[Event]
	log      logging.LeveledLogger

	mu        sync.Mutex
	visible   bool   // media notification shown
	sessionID string // play history row of the current run

	beats   atomic.Int64
	beatGen atomic.Uint64 // run the beat count belongs to
}

// NewController wires the engine's beat callback to the event stream.
func NewController(engine *metronome.Engine, state *State, opts Options) *Controller {
	if len(opts.Presets) == 0 {
		opts.Presets = config.DefaultPresets
	}
	if opts.Events == nil {
		opts.Events = stream.NewBroadcaster[Event](64)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDefaultLoggerFactory().NewLogger("session")
	}
	c := &Controller{
		engine:   engine,
		state:    state,
		presets:  opts.Presets,
		notifier: opts.Notifier,
		recorder: opts.Recorder,
		events:   opts.Events,
		log:      opts.Logger,
	}
	engine.SetBeatCallback(c.onBeat)
	return c
}

// Events returns the outbound event stream.
func (c *Controller) Events() *stream.Broadcaster[Event] { return c.events }

// State returns the shared state.
func (c *Controller) State() *State { return c.state }

// Presets returns the configured presets.
func (c *Controller) Presets() []config.Preset { return c.presets }

func (c *Controller) onBeat(ev metronome.BeatEvent) {
	if g := c.beatGen.Load(); ev.Generation != g {
		if ev.Generation < g {
			return
		}
		c.beatGen.Store(ev.Generation)
		c.beats.Store(0)
	}
	c.beats.Add(1)
	c.events.Publish(beatEvent(ev.Beat, ev.Muted))
}

// --- UI channel commands ---

// Initialize prepares the audio engine.
func (c *Controller) Initialize() bool {
	return c.engine.Initialize()
}

// Start begins playback and shows the media notification.
func (c *Controller) Start(bpm, beatsPerBar, playBars, muteBars int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(bpm, beatsPerBar, playBars, muteBars)
}

// Stop ends playback and hides the media notification.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.stopLocked()
	c.hideLocked()
	return ok
}

// SetBpm changes the tempo, live if playing.
func (c *Controller) SetBpm(bpm int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SetBPM(c.engine.SetBpm(bpm))
	c.refreshLocked()
	c.saveSettings()
	return true
}

// SetBeatsPerBar changes the meter, live if playing.
func (c *Controller) SetBeatsPerBar(beats int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SetBeatsPerBar(c.engine.SetBeatsPerBar(beats))
	c.refreshLocked()
	c.saveSettings()
	return true
}

// SetBarMute changes the mute pattern, live if playing.
func (c *Controller) SetBarMute(playBars, muteBars int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.SetBarMute(playBars, muteBars)
	c.saveSettings()
	return true
}

// Dispose releases the engine and hides the media notification.
func (c *Controller) Dispose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	ok := c.engine.Dispose()
	c.hideLocked()
	return ok
}

// --- Media-session commands ---

// PlayPause toggles playback. Playback resumes at the shared tempo with
// muting off.
func (c *Controller) PlayPause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Playing() {
		return c.pauseLocked()
	}
	return c.playLocked()
}

// Play starts playback unless already playing.
func (c *Controller) Play() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Playing() {
		return true
	}
	return c.playLocked()
}

// Pause stops playback but keeps the notification.
func (c *Controller) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Playing() {
		return true
	}
	return c.pauseLocked()
}

// StopPlayback ends playback from the media controls.
func (c *Controller) StopPlayback() bool {
	return c.Stop()
}

// ApplyPreset switches to a preset. If playing, playback restarts at the
// new tempo with muting off.
func (c *Controller) ApplyPreset(index int) error {
	if index < 0 || index >= len(c.presets) {
		return fmt.Errorf("%w: %d", ErrUnknownPreset, index)
	}
	p := c.presets[index]

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Playing() {
		if !c.startLocked(p.BPM, p.BeatsPerBar, metronome.DefaultPlayBars, metronome.DefaultMuteBars) {
			return fmt.Errorf("restart at preset %d failed", index)
		}
	} else {
		c.engine.SetBpm(p.BPM)
		c.engine.SetBeatsPerBar(p.BeatsPerBar)
	}
	c.state.SetPreset(index, p.BPM, p.BeatsPerBar)
	c.events.Publish(presetEvent(p.BPM, p.BeatsPerBar, index))
	c.refreshLocked()
	c.saveSettings()
	c.log.Infof("preset %d (%s): %d BPM %d/4", index, p.Name, p.BPM, p.BeatsPerBar)
	return nil
}

// --- Status and supervision ---

// Status returns a snapshot of the whole session.
func (c *Controller) Status() Status {
	p := c.engine.MutePattern()
	return Status{
		Snapshot:      c.state.Snapshot(),
		PlayBars:      p.PlayBars,
		MuteBars:      p.MuteBars,
		Initialized:   c.engine.Initialized(),
		Generation:    c.engine.Generation(),
		DroppedEvents: c.engine.DroppedEvents(),
		Beats:         c.beats.Load(),
	}
}

// Reconcile notices a run that ended on its own (device failure) and brings
// the shared state and listeners back in line.
func (c *Controller) Reconcile() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Playing() || c.engine.IsPlaying() {
		return
	}
	c.log.Warnf("playback ended unexpectedly")
	c.stopLocked()
	c.refreshLocked()
}

// Watch runs Reconcile every interval until ctx is cancelled.
func (c *Controller) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Reconcile()
		}
	}
}

// --- internals, called with mu held ---

func (c *Controller) playLocked() bool {
	s := c.state.Snapshot()
	return c.startLocked(s.BPM, s.BeatsPerBar, metronome.DefaultPlayBars, metronome.DefaultMuteBars)
}

func (c *Controller) pauseLocked() bool {
	ok := c.stopLocked()
	c.refreshLocked()
	return ok
}

func (c *Controller) startLocked(bpm, beatsPerBar, playBars, muteBars int) bool {
	c.endSession()
	c.beats.Store(0)
	if !c.engine.Start(bpm, beatsPerBar, playBars, muteBars) {
		if c.state.SetPlaying(false) {
			c.events.Publish(playStateEvent(false))
		}
		return false
	}
	t := c.engine.Tempo()
	c.state.SetTempo(t.BPM, t.BeatsPerBar)
	if c.state.SetPlaying(true) {
		c.events.Publish(playStateEvent(true))
	}
	c.beginSession()
	c.visible = true
	c.refreshLocked()
	c.saveSettings()
	return true
}

func (c *Controller) stopLocked() bool {
	ok := c.engine.Stop()
	c.endSession()
	if c.state.SetPlaying(false) {
		c.events.Publish(playStateEvent(false))
	}
	return ok
}

// refreshLocked updates a visible notification with the current state.
func (c *Controller) refreshLocked() {
	if c.notifier == nil || !c.visible {
		return
	}
	c.notifier.Show(NowPlayingFor(c.state.Snapshot()))
}

func (c *Controller) hideLocked() {
	if c.notifier == nil || !c.visible {
		return
	}
	c.visible = false
	c.notifier.Hide()
}

func (c *Controller) beginSession() {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	t := c.engine.Tempo()
	p := c.engine.MutePattern()
	id, err := c.recorder.BeginSession(ctx, time.Now(), t.BPM, t.BeatsPerBar, p.PlayBars, p.MuteBars)
	if err != nil {
		c.log.Warnf("record session start: %v", err)
		return
	}
	c.sessionID = id
}

func (c *Controller) endSession() {
	if c.recorder == nil || c.sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.recorder.EndSession(ctx, c.sessionID, time.Now(), c.beats.Load()); err != nil {
		c.log.Warnf("record session end: %v", err)
	}
	c.sessionID = ""
}

func (c *Controller) saveSettings() {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	t := c.engine.Tempo()
	p := c.engine.MutePattern()
	s := c.state.Snapshot()
	err := c.recorder.SaveSettings(ctx, store.Settings{
		BPM:         t.BPM,
		BeatsPerBar: t.BeatsPerBar,
		PlayBars:    p.PlayBars,
		MuteBars:    p.MuteBars,
		PresetIndex: s.PresetIndex,
	})
	if err != nil {
		c.log.Warnf("save settings: %v", err)
	}
}
