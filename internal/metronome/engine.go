package metronome

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"

	"github.com/satindergrewal/metronome/internal/audio"
)

// ErrNotInitialized is logged when playback is requested before Initialize.
var ErrNotInitialized = errors.New("metronome: engine not initialized")

const (
	// DefaultStopTimeout bounds how long Stop waits for the loop to exit.
	DefaultStopTimeout = time.Second
	// DefaultEventBuffer is the number of beat events queued between the
	// loop and the dispatcher before new ones are dropped.
	DefaultEventBuffer = 64
)

// Options tune an Engine. Zero values pick the defaults.
type Options struct {
	SampleRate  int
	StopTimeout time.Duration // bound on waiting for the loop in Stop
	EventBuffer int           // beat events queued for the dispatcher
	Clock       Clock
	Logger      logging.LeveledLogger
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = audio.SampleRate
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = DefaultEventBuffer
	}
	if o.Clock == nil {
		o.Clock = WallClock()
	}
	if o.Logger == nil {
		o.Logger = logging.NewDefaultLoggerFactory().NewLogger("engine")
	}
	return o
}

// run is one Start..Stop cycle of the scheduling loop.
type run struct {
	gen        uint64
	stop       chan struct{}
	done       chan struct{} // loop exited
	events     chan BeatEvent
	dispatched chan struct{} // dispatcher drained
	failed     atomic.Bool
}

// Engine schedules metronome beats into an audio sink in real time.
//
// Lifecycle commands (Initialize, Start, Stop, Dispose) are serialized.
// Parameter setters are lock-free and picked up by the loop at the next beat.
type Engine struct {
	sink  audio.Sink
	opts  Options
	log   logging.LeveledLogger
	clock Clock

	mu           sync.Mutex
	initialized  atomic.Bool
	run          *run
	lastDispatch <-chan struct{}

	current  atomic.Pointer[run]
	ticks    atomic.Pointer[audio.Ticks]
	callback atomic.Pointer[BeatFunc]

	bpm         atomic.Int32
	beatsPerBar atomic.Int32
	mute        atomic.Uint32
	resetBeat   atomic.Bool
	resetBar    atomic.Bool

	generation atomic.Uint64
	dropped    atomic.Int64
}

// New creates an idle engine writing to sink.
func New(sink audio.Sink, opts Options) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		sink:  sink,
		opts:  opts,
		log:   opts.Logger,
		clock: opts.Clock,
	}
	e.bpm.Store(DefaultBPM)
	e.beatsPerBar.Store(DefaultBeatsPerBar)
	e.mute.Store(packMute(MutePattern{PlayBars: DefaultPlayBars, MuteBars: DefaultMuteBars}))
	return e
}

// Initialize opens the sink and renders the click sounds. It can be retried
// after a failure and is a no-op once initialized.
func (e *Engine) Initialize() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized.Load() {
		return true
	}
	if err := e.sink.Open(); err != nil {
		e.log.Errorf("open audio sink: %v", err)
		return false
	}
	e.ticks.Store(audio.NewTicks(e.opts.SampleRate))
	e.initialized.Store(true)
	e.log.Infof("initialized at %d Hz", e.opts.SampleRate)
	return true
}

// Start begins playback from beat 0 of bar 0. A running loop is stopped
// first. Values are clamped to their limits.
func (e *Engine) Start(bpm, beatsPerBar, playBars, muteBars int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized.Load() {
		e.log.Warnf("start: %v", ErrNotInitialized)
		return false
	}
	e.stopLocked()

	e.bpm.Store(int32(ClampBPM(bpm)))
	e.beatsPerBar.Store(int32(ClampBeatsPerBar(beatsPerBar)))
	e.mute.Store(packMute(MutePattern{PlayBars: playBars, MuteBars: muteBars}.Clamp()))
	e.resetBeat.Store(false)
	e.resetBar.Store(false)

	if err := e.sink.Start(); err != nil {
		e.log.Errorf("start audio sink: %v", err)
		return false
	}

	r := &run{
		gen:        e.generation.Add(1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		events:     make(chan BeatEvent, e.opts.EventBuffer),
		dispatched: make(chan struct{}),
	}
	e.run = r
	e.current.Store(r)

	go e.dispatch(r, e.lastDispatch)
	e.lastDispatch = r.dispatched
	go e.loop(r, e.ticks.Load())

	p := e.MutePattern()
	e.log.Infof("run %d started: %d bpm, %d beats per bar, play %d mute %d",
		r.gen, e.bpm.Load(), e.beatsPerBar.Load(), p.PlayBars, p.MuteBars)
	return true
}

// Stop ends playback. Safe to call when idle.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	return true
}

func (e *Engine) stopLocked() {
	r := e.run
	if r == nil {
		return
	}
	e.run = nil
	e.current.Store(nil)

	close(r.stop)
	if err := e.sink.Stop(); err != nil {
		e.log.Warnf("stop audio sink: %v", err)
	}

	timer := time.NewTimer(e.opts.StopTimeout)
	defer timer.Stop()
	select {
	case <-r.done:
		e.log.Debugf("run %d stopped", r.gen)
	case <-timer.C:
		e.log.Warnf("run %d did not exit within %v", r.gen, e.opts.StopTimeout)
		// Its dispatcher only finishes when the stuck write returns. The next
		// run must not wait on it; stale events are dropped by generation.
		e.lastDispatch = nil
	}
}

// Dispose stops playback and releases the sink. Initialize must be called
// again before the next Start.
func (e *Engine) Dispose() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	if !e.initialized.Load() {
		return true
	}
	e.ticks.Store(nil)
	e.initialized.Store(false)
	if err := e.sink.Close(); err != nil {
		e.log.Warnf("close audio sink: %v", err)
	}
	return true
}

// SetBpm changes the tempo from the next beat on and returns the value used.
func (e *Engine) SetBpm(bpm int) int {
	bpm = ClampBPM(bpm)
	e.bpm.Store(int32(bpm))
	return bpm
}

// SetBeatsPerBar changes the meter. The next beat starts a new bar.
func (e *Engine) SetBeatsPerBar(beats int) int {
	beats = ClampBeatsPerBar(beats)
	e.beatsPerBar.Store(int32(beats))
	e.resetBeat.Store(true)
	return beats
}

// SetBarMute changes the mute pattern. The cycle restarts unmuted at the
// next beat.
func (e *Engine) SetBarMute(playBars, muteBars int) MutePattern {
	p := MutePattern{PlayBars: playBars, MuteBars: muteBars}.Clamp()
	e.mute.Store(packMute(p))
	e.resetBar.Store(true)
	return p
}

// SetBeatCallback replaces the beat listener. nil removes it.
func (e *Engine) SetBeatCallback(fn BeatFunc) {
	if fn == nil {
		e.callback.Store(nil)
		return
	}
	e.callback.Store(&fn)
}

// IsPlaying reports whether a run is active and has not failed.
func (e *Engine) IsPlaying() bool {
	r := e.current.Load()
	return r != nil && !r.failed.Load()
}

// Initialized reports whether Initialize has succeeded since the last Dispose.
func (e *Engine) Initialized() bool { return e.initialized.Load() }

// Tempo returns the current tempo.
func (e *Engine) Tempo() Tempo {
	return Tempo{BPM: int(e.bpm.Load()), BeatsPerBar: int(e.beatsPerBar.Load())}
}

// MutePattern returns the current mute pattern.
func (e *Engine) MutePattern() MutePattern { return unpackMute(e.mute.Load()) }

// Generation returns the number of runs started so far.
func (e *Engine) Generation() uint64 { return e.generation.Load() }

// DroppedEvents counts beat events lost because the dispatcher fell behind.
func (e *Engine) DroppedEvents() int64 { return e.dropped.Load() }
