package metronome

import "time"

// Parameter limits. Inputs outside these ranges are clamped, never rejected.
const (
	MinBPM         = 30
	MaxBPM         = 250
	MinBeatsPerBar = 1
	MaxBeatsPerBar = 12
	MinPlayBars    = 1
	MaxPlayBars    = 16
	MinMuteBars    = 0
	MaxMuteBars    = 16
)

// Defaults applied at construction.
const (
	DefaultBPM         = 120
	DefaultBeatsPerBar = 4
	DefaultPlayBars    = 1
	DefaultMuteBars    = 0
)

// Tempo is the speed and meter of the metronome.
type Tempo struct {
	BPM         int `json:"bpm"`
	BeatsPerBar int `json:"beatsPerBar"`
}

// MutePattern alternates PlayBars audible bars with MuteBars silent ones.
// MuteBars == 0 disables muting.
type MutePattern struct {
	PlayBars int `json:"playBars"`
	MuteBars int `json:"muteBars"`
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampBPM limits bpm to [MinBPM, MaxBPM].
func ClampBPM(bpm int) int { return clamp(bpm, MinBPM, MaxBPM) }

// ClampBeatsPerBar limits beats to [MinBeatsPerBar, MaxBeatsPerBar].
func ClampBeatsPerBar(beats int) int { return clamp(beats, MinBeatsPerBar, MaxBeatsPerBar) }

// ClampPlayBars limits bars to [MinPlayBars, MaxPlayBars].
func ClampPlayBars(bars int) int { return clamp(bars, MinPlayBars, MaxPlayBars) }

// ClampMuteBars limits bars to [MinMuteBars, MaxMuteBars].
func ClampMuteBars(bars int) int { return clamp(bars, MinMuteBars, MaxMuteBars) }

// Clamp returns the pattern with both fields in range.
func (p MutePattern) Clamp() MutePattern {
	return MutePattern{PlayBars: ClampPlayBars(p.PlayBars), MuteBars: ClampMuteBars(p.MuteBars)}
}

// Clamp returns the tempo with both fields in range.
func (t Tempo) Clamp() Tempo {
	return Tempo{BPM: ClampBPM(t.BPM), BeatsPerBar: ClampBeatsPerBar(t.BeatsPerBar)}
}

// BeatDuration is the time between two beats at bpm.
func BeatDuration(bpm int) time.Duration {
	if bpm <= 0 {
		return 0
	}
	return time.Minute / time.Duration(bpm)
}

// The mute pattern is stored as one word so the scheduling loop never sees
// a new PlayBars with an old MuteBars.
func packMute(p MutePattern) uint32 {
	return uint32(p.PlayBars)<<16 | uint32(p.MuteBars)&0xFFFF
}

func unpackMute(v uint32) MutePattern {
	return MutePattern{PlayBars: int(v >> 16), MuteBars: int(v & 0xFFFF)}
}
