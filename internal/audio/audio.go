package audio

import "time"

const (
	SampleRate    = 44100
	Channels      = 1
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 882                  // samples per 20ms frame (mono)
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Click parameters shared by every accent.
const (
	TickDuration = 30 * time.Millisecond
	HighFreq     = 1000.0 // Hz, downbeat
	MidFreq      = 800.0  // Hz, middle of the bar
	LowFreq      = 600.0  // Hz, every other beat
)

// Accent classifies a beat into one of the three click sounds.
type Accent int

const (
	AccentHigh Accent = iota
	AccentMid
	AccentLow
)

func (a Accent) String() string {
	switch a {
	case AccentHigh:
		return "high"
	case AccentMid:
		return "mid"
	case AccentLow:
		return "low"
	}
	return "unknown"
}

// Frequency returns the click pitch for the accent.
func (a Accent) Frequency() float64 {
	switch a {
	case AccentHigh:
		return HighFreq
	case AccentMid:
		return MidFreq
	default:
		return LowFreq
	}
}
