package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindergrewal/metronome/internal/audio"
	"github.com/satindergrewal/metronome/internal/metronome"
	"github.com/satindergrewal/metronome/internal/store"
	"github.com/satindergrewal/metronome/internal/stream"
)

// --- Test doubles ---

type fakeNotifier struct {
	mu    sync.Mutex
	shown []NowPlaying
	hides int
}

func (n *fakeNotifier) Show(np NowPlaying) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, np)
}

func (n *fakeNotifier) Hide() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hides++
}

func (n *fakeNotifier) last() (NowPlaying, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.shown) == 0 {
		return NowPlaying{}, n.hides
	}
	return n.shown[len(n.shown)-1], n.hides
}

type fakeRecorder struct {
	mu       sync.Mutex
	settings []store.Settings
	begun    int
	ended    int
}

func (r *fakeRecorder) SaveSettings(_ context.Context, st store.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = append(r.settings, st)
	return nil
}

func (r *fakeRecorder) BeginSession(context.Context, time.Time, int, int, int, int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begun++
	return "session", nil
}

func (r *fakeRecorder) EndSession(context.Context, string, time.Time, int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended++
	return nil
}

type brokenSink struct{ audio.NopSink }

func (brokenSink) Write([]int16) error { return errors.New("device unplugged") }

func quietLogger() logging.LeveledLogger {
	f := logging.NewDefaultLoggerFactory()
	f.Writer = io.Discard
	return f.NewLogger("test")
}

type fixture struct {
	ctrl     *Controller
	engine   *metronome.Engine
	notifier *fakeNotifier
	recorder *fakeRecorder
	events   *stream.Listener[Event]
}

func newFixture(t *testing.T, sink audio.Sink, state *State) *fixture {
	t.Helper()
	f := &fixture{notifier: &fakeNotifier{}, recorder: &fakeRecorder{}}
	f.engine = metronome.New(sink, metronome.Options{Logger: quietLogger()})
	f.ctrl = NewController(f.engine, state, Options{
		Notifier: f.notifier,
		Recorder: f.recorder,
		Logger:   quietLogger(),
	})
	f.events = f.ctrl.Events().Subscribe()
	t.Cleanup(func() { f.ctrl.Dispose() })
	return f
}

// waitFor returns the next event with the given method, skipping others.
func (f *fixture) waitFor(t *testing.T, method string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-f.events.C:
			if ev.Method == method {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", method)
		}
	}
}

// --- State and NowPlaying ---

func TestStateTracksPreset(t *testing.T) {
	s := NewState(120, 4)
	assert.Equal(t, Snapshot{BPM: 120, BeatsPerBar: 4, PresetIndex: -1}, s.Snapshot())

	s.SetPreset(2, 110, 2)
	assert.Equal(t, 2, s.Snapshot().PresetIndex)
	s.SetBPM(111)
	assert.Equal(t, -1, s.Snapshot().PresetIndex)

	assert.True(t, s.SetPlaying(true))
	assert.False(t, s.SetPlaying(true))
	assert.True(t, s.Playing())
}

func TestNowPlayingFor(t *testing.T) {
	assert.Equal(t, NowPlaying{Title: "120 BPM · 4/4", Text: "Playing", Ongoing: true, Rate: 1},
		NowPlayingFor(Snapshot{BPM: 120, BeatsPerBar: 4, Playing: true}))
	assert.Equal(t, NowPlaying{Title: "90 BPM · 3/4", Text: "Paused", Rate: 0},
		NowPlayingFor(Snapshot{BPM: 90, BeatsPerBar: 3}))
}

// --- UI commands ---

func TestStartBeforeInitialize(t *testing.T) {
	f := newFixture(t, audio.NopSink{}, NewState(120, 4))
	assert.False(t, f.ctrl.Start(120, 4, 1, 0))
	assert.False(t, f.ctrl.State().Playing())
	_, hides := f.notifier.last()
	assert.Zero(t, hides)
}

func TestBeatCountRestartsWithRun(t *testing.T) {
	f := newFixture(t, audio.NopSink{}, NewState(120, 4))
	require.True(t, f.ctrl.Initialize())

	require.True(t, f.ctrl.Start(30, 4, 1, 0))
	f.waitFor(t, EventBeat)
	assert.Equal(t, int64(1), f.ctrl.Status().Beats)

	require.True(t, f.ctrl.Start(30, 4, 1, 0))
	f.waitFor(t, EventBeat)
	assert.Equal(t, int64(1), f.ctrl.Status().Beats)
	assert.Equal(t, 1, f.recorder.ended)
}

func TestStaleBeatIsIgnored(t *testing.T) {
	f := newFixture(t, audio.NopSink{}, NewState(120, 4))

	f.ctrl.onBeat(metronome.BeatEvent{Beat: 0, Generation: 2})
	f.ctrl.onBeat(metronome.BeatEvent{Beat: 1, Generation: 2})
	f.ctrl.onBeat(metronome.BeatEvent{Beat: 3, Generation: 1})
	assert.Equal(t, int64(2), f.ctrl.Status().Beats)

	f.ctrl.onBeat(metronome.BeatEvent{Beat: 0, Generation: 3})
	assert.Equal(t, int64(1), f.ctrl.Status().Beats)
}

func TestStartAndStop(t *testing.T) {
	f := newFixture(t, audio.NopSink{}, NewState(120, 4))
	require.True(t, f.ctrl.Initialize())

	require.True(t, f.ctrl.Start(100, 3, 2, 1))
	ev := f.waitFor(t, EventPlayStateChanged)
	assert.Equal(t, PlayStateArgs{IsPlaying: true}, ev.Args)

	beat := f.waitFor(t, EventBeat)
	assert.Equal(t, BeatArgs{Beat: 0, IsMuted: false}, beat.Args)

	st := f.ctrl.Status()
	assert.True(t, st.Playing)
	assert.Equal(t, 100, st.BPM)
	assert.Equal(t, 3, st.BeatsPerBar)
	assert.Equal(t, 2, st.PlayBars)
	assert.Equal(t, 1, st.MuteBars)
	assert.True(t, st.Initialized)

	np, _ := f.notifier.last()
	assert.Equal(t, "100 BPM · 3/4", np.Title)
	assert.Equal(t, "Playing", np.Text)

	require.True(t, f.ctrl.Stop())
	ev = f.waitFor(t, EventPlayStateChanged)
	assert.Equal(t, PlayStateArgs{IsPlaying: false}, ev.Args)
	assert.False(t, f.ctrl.State().Playing())

	_, hides := f.notifier.last()
	assert.Equal(t, 1, hides)
	assert.Equal(t, 1, f.recorder.begun)
	assert.Equal(t, 1, f.recorder.ended)
	assert.True(t, f.ctrl.Stop())
}

func TestSetBpmClampsAndPersists(t *testing.T) {
	f := newFixture(t, audio.NopSink{}, NewState(120, 4))
	require.True(t, f.ctrl.Initialize())

	assert.True(t, f.ctrl.SetBpm(999))
	assert.Equal(t, 250, f.ctrl.State().Snapshot().BPM)
	assert.True(t, f.ctrl.SetBeatsPerBar(0))
	assert.Equal(t, 1, f.ctrl.State().Snapshot().BeatsPerBar)
	assert.True(t, f.ctrl.SetBarMute(3, 2))
	assert.Equal(t, metronome.MutePattern{PlayBars: 3, MuteBars: 2}, f.engine.MutePattern())

	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	require.Len(t, f.recorder.settings, 3)
	assert.Equal(t, store.Settings{BPM: 250, BeatsPerBar: 1, PlayBars: 3, MuteBars: 2, PresetIndex: -1},
		f.recorder.settings[2])
}

// --- Media-session commands ---

func TestPlayPauseUsesSharedTempo(t *testing.T) {
	f := newFixture(t, audio.NopSink{}, NewState(90, 3))
	require.True(t, f.ctrl.Initialize())
	f.engine.SetBarMute(2, 2)

	require.True(t, f.ctrl.PlayPause())
	assert.True(t, f.engine.IsPlaying())
	assert.Equal(t, metronome.Tempo{BPM: 90, BeatsPerBar: 3}, f.engine.Tempo())
	assert.Equal(t, metronome.MutePattern{PlayBars: 1, MuteBars: 0}, f.engine.MutePattern())

	require.True(t, f.ctrl.PlayPause())
	assert.False(t, f.engine.IsPlaying())
	np, hides := f.notifier.last()
	assert.Equal(t, "Paused", np.Text)
	assert.Zero(t, hides, "pause keeps the notification")
}

func TestPlayAndPauseAreIdempotent(t *testing.T) {
	f := newFixture(t, audio.NopSink{}, NewState(120, 4))
	require.True(t, f.ctrl.Initialize())

	assert.True(t, f.ctrl.Pause())
	assert.False(t, f.engine.IsPlaying())

	require.True(t, f.ctrl.Play())
	gen := f.engine.Generation()
	require.True(t, f.ctrl.Play())
	assert.Equal(t, gen, f.engine.Generation(), "Play while playing must not restart")

	require.True(t, f.ctrl.Pause())
	assert.False(t, f.ctrl.State().Playing())
}

func TestStopPlaybackHides(t *testing.T) {
	f := newFixture(t, audio.NopSink{}, NewState(120, 4))
	require.True(t, f.ctrl.Initialize())
	require.True(t, f.ctrl.Play())

	require.True(t, f.ctrl.StopPlayback())
	_, hides := f.notifier.last()
	assert.Equal(t, 1, hides)
	assert.False(t, f.engine.IsPlaying())
}

func TestApplyPresetWhilePlayingRestarts(t *testing.T) {
	f := newFixture(t, audio.NopSink{}, NewState(120, 4))
	require.True(t, f.ctrl.Initialize())
	require.True(t, f.ctrl.Start(120, 4, 2, 1))
	gen := f.engine.Generation()

	require.NoError(t, f.ctrl.ApplyPreset(1))
	ev := f.waitFor(t, EventPresetChanged)
	assert.Equal(t, PresetArgs{BPM: 90, BeatsPerBar: 3, PresetIndex: 1}, ev.Args)

	assert.Equal(t, gen+1, f.engine.Generation())
	assert.True(t, f.engine.IsPlaying())
	assert.Equal(t, metronome.MutePattern{PlayBars: 1, MuteBars: 0}, f.engine.MutePattern())
	assert.Equal(t, Snapshot{BPM: 90, BeatsPerBar: 3, Playing: true, PresetIndex: 1}, f.ctrl.State().Snapshot())

	np, _ := f.notifier.last()
	assert.Equal(t, "90 BPM · 3/4", np.Title)
}

func TestApplyPresetWhileIdle(t *testing.T) {
	f := newFixture(t, audio.NopSink{}, NewState(120, 4))
	require.True(t, f.ctrl.Initialize())

	require.NoError(t, f.ctrl.ApplyPreset(2))
	assert.False(t, f.engine.IsPlaying())
	assert.Equal(t, uint64(0), f.engine.Generation())
	assert.Equal(t, metronome.Tempo{BPM: 110, BeatsPerBar: 2}, f.engine.Tempo())
	assert.Equal(t, 2, f.ctrl.State().Snapshot().PresetIndex)
}

func TestApplyPresetUnknown(t *testing.T) {
	f := newFixture(t, audio.NopSink{}, NewState(120, 4))
	assert.ErrorIs(t, f.ctrl.ApplyPreset(3), ErrUnknownPreset)
	assert.ErrorIs(t, f.ctrl.ApplyPreset(-1), ErrUnknownPreset)
}

// --- Supervision ---

func TestReconcileAfterDeviceFailure(t *testing.T) {
	f := newFixture(t, brokenSink{}, NewState(120, 4))
	require.True(t, f.ctrl.Initialize())
	require.True(t, f.ctrl.Start(120, 4, 1, 0))
	f.waitFor(t, EventPlayStateChanged)

	require.Eventually(t, func() bool { return !f.engine.IsPlaying() }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, f.ctrl.State().Playing(), "state lags until reconciled")

	f.ctrl.Reconcile()
	assert.False(t, f.ctrl.State().Playing())
	ev := f.waitFor(t, EventPlayStateChanged)
	assert.Equal(t, PlayStateArgs{IsPlaying: false}, ev.Args)
	assert.Equal(t, 1, f.recorder.ended)
}

func TestDisposeHidesAndReleases(t *testing.T) {
	f := newFixture(t, audio.NopSink{}, NewState(120, 4))
	require.True(t, f.ctrl.Initialize())
	require.True(t, f.ctrl.Start(120, 4, 1, 0))

	assert.True(t, f.ctrl.Dispose())
	assert.False(t, f.ctrl.Status().Initialized)
	assert.False(t, f.ctrl.State().Playing())
	_, hides := f.notifier.last()
	assert.Equal(t, 1, hides)
}
