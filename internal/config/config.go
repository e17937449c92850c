package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Output selects where rendered audio goes.
type Output string

const (
	OutputDevice Output = "device" // local speaker
	OutputStream Output = "stream" // HTTP and WebRTC listeners
	OutputBoth   Output = "both"
	OutputNone   Output = "none"
)

// Device reports whether the local speaker is used.
func (o Output) Device() bool { return o == OutputDevice || o == OutputBoth }

// Stream reports whether network listeners are fed.
func (o Output) Stream() bool { return o == OutputStream || o == OutputBoth }

func parseOutput(s string) (Output, bool) {
	switch o := Output(strings.ToLower(strings.TrimSpace(s))); o {
	case OutputDevice, OutputStream, OutputBoth, OutputNone:
		return o, true
	}
	return "", false
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Initial metronome state, overridden by saved settings
	BPM         int
	BeatsPerBar int
	PlayBars    int
	MuteBars    int

	Output      Output
	DBPath      string // empty disables persistence
	PresetsPath string // YAML presets file, optional
	OSCAddr     string // host:port for the beat relay, empty disables it
	LogLevel    string

	StopTimeout time.Duration // bound on waiting for the audio loop to exit
	EventBuffer int           // beat events queued between loop and listeners

	// Tempo trainer
	TrainerStep   int // BPM added per step, negative ramps down
	TrainerTarget int // BPM the ramp stops at
	TrainerBars   int // bars held at each tempo
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	out, ok := parseOutput(envStr("METRONOME_OUTPUT", string(OutputBoth)))
	if !ok {
		out = OutputBoth
	}
	return Config{
		Port: envInt("METRONOME_PORT", 8080),

		BPM:         envInt("METRONOME_BPM", 120),
		BeatsPerBar: envInt("METRONOME_BEATS_PER_BAR", 4),
		PlayBars:    envInt("METRONOME_PLAY_BARS", 1),
		MuteBars:    envInt("METRONOME_MUTE_BARS", 0),

		Output:      out,
		DBPath:      envStr("METRONOME_DB", "metronome.db"),
		PresetsPath: envStr("METRONOME_PRESETS", ""),
		OSCAddr:     envStr("METRONOME_OSC_ADDR", ""),
		LogLevel:    envStr("METRONOME_LOG_LEVEL", "info"),

		StopTimeout: envDuration("METRONOME_STOP_TIMEOUT", time.Second),
		EventBuffer: envInt("METRONOME_EVENT_BUFFER", 64),

		TrainerStep:   envInt("METRONOME_TRAINER_STEP", 5),
		TrainerTarget: envInt("METRONOME_TRAINER_TARGET", 160),
		TrainerBars:   envInt("METRONOME_TRAINER_BARS", 4),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go durations ("250ms") or plain seconds ("2").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
