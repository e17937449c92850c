package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pion/logging"

	"github.com/satindergrewal/metronome/internal/audio"
	"github.com/satindergrewal/metronome/internal/config"
	"github.com/satindergrewal/metronome/internal/metronome"
	"github.com/satindergrewal/metronome/internal/session"
	"github.com/satindergrewal/metronome/internal/store"
	"github.com/satindergrewal/metronome/internal/trainer"
)

// pipelineQueueFrames holds a full beat at the slowest tempo (2s) with room.
const pipelineQueueFrames = 250

// app is the wiring shared by serve and play.
type app struct {
	cfg      config.Config
	logs     *logging.DefaultLoggerFactory
	log      logging.LeveledLogger
	store    *store.Store    // nil when persistence is off
	pipeline *audio.Pipeline // nil unless streaming
	engine   *metronome.Engine
	ctrl     *session.Controller
	trainer  *trainer.Trainer
}

// newApp wires the engine, sinks, store and controller. With restore set,
// the last saved settings replace the configured tempo.
func newApp(cfg config.Config, restore bool) (*app, error) {
	a := &app{cfg: cfg, logs: config.LoggerFactory(cfg.LogLevel)}
	a.log = a.logs.NewLogger("metronome")

	presets, err := config.LoadPresets(cfg.PresetsPath)
	if err != nil {
		return nil, err
	}

	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = st
		if restore {
			a.restoreSettings(&cfg)
		}
	}

	var sinks []audio.Sink
	if cfg.Output.Device() {
		sinks = append(sinks, audio.NewDeviceSink(audio.SampleRate))
	}
	if cfg.Output.Stream() {
		a.pipeline = audio.NewPipeline(pipelineQueueFrames)
		sinks = append(sinks, a.pipeline)
	}
	var sink audio.Sink
	switch len(sinks) {
	case 0:
		sink = audio.NopSink{}
	case 1:
		sink = sinks[0]
	default:
		sink = audio.NewMultiSink(sinks...)
	}

	a.engine = metronome.New(sink, metronome.Options{
		SampleRate:  audio.SampleRate,
		StopTimeout: cfg.StopTimeout,
		EventBuffer: cfg.EventBuffer,
		Logger:      a.logs.NewLogger("engine"),
	})
	a.engine.SetBpm(cfg.BPM)
	a.engine.SetBeatsPerBar(cfg.BeatsPerBar)
	a.engine.SetBarMute(cfg.PlayBars, cfg.MuteBars)
	t := a.engine.Tempo()

	opts := session.Options{
		Presets:  presets,
		Notifier: session.LogNotifier{Log: a.logs.NewLogger("media")},
		Logger:   a.logs.NewLogger("session"),
	}
	if a.store != nil {
		opts.Recorder = a.store
	}
	a.ctrl = session.NewController(a.engine, session.NewState(t.BPM, t.BeatsPerBar), opts)

	a.trainer = trainer.New(a.ctrl, trainer.Config{
		StepBPM:   cfg.TrainerStep,
		TargetBPM: cfg.TrainerTarget,
		DwellBars: cfg.TrainerBars,
	}, a.logs.NewLogger("trainer"))

	a.cfg = cfg
	a.log.Infof("output %s, %d BPM %d/4, %d presets", cfg.Output, t.BPM, t.BeatsPerBar, len(presets))
	return a, nil
}

// restoreSettings replaces the configured tempo with the last saved one.
func (a *app) restoreSettings(cfg *config.Config) {
	st, err := a.store.LoadSettings(context.Background())
	if errors.Is(err, store.ErrNoSettings) {
		return
	}
	if err != nil {
		a.log.Warnf("load saved settings: %v", err)
		return
	}
	cfg.BPM, cfg.BeatsPerBar = st.BPM, st.BeatsPerBar
	cfg.PlayBars, cfg.MuteBars = st.PlayBars, st.MuteBars
	a.log.Infof("restored %d BPM %d/4 from %s", st.BPM, st.BeatsPerBar, a.cfg.DBPath)
}

func (a *app) Close() {
	a.ctrl.Dispose()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warnf("close store: %v", err)
		}
	}
}
