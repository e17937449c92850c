package audio

import (
	"math"
	"time"
)

// Tick is an immutable mono click waveform.
type Tick []int16

// GenerateTick synthesizes a sine burst at freqHz with a linear decay from
// full scale to silence across the buffer. A non-positive duration yields an
// empty tick.
func GenerateTick(sampleRate int, freqHz float64, duration time.Duration) Tick {
	n := int(float64(sampleRate) * float64(duration.Milliseconds()) / 1000.0)
	if n <= 0 {
		return Tick{}
	}

	tick := make(Tick, n)
	for i := range tick {
		t := float64(i) / float64(sampleRate)
		envelope := 1.0 - float64(i)/float64(n)
		v := math.Sin(2*math.Pi*freqHz*t) * envelope * 32767
		tick[i] = clip16(v)
	}
	return tick
}

// Ticks holds one pre-rendered click per accent.
type Ticks struct {
	High Tick
	Mid  Tick
	Low  Tick
}

// NewTicks renders the three accent clicks at the given sample rate.
func NewTicks(sampleRate int) *Ticks {
	return &Ticks{
		High: GenerateTick(sampleRate, HighFreq, TickDuration),
		Mid:  GenerateTick(sampleRate, MidFreq, TickDuration),
		Low:  GenerateTick(sampleRate, LowFreq, TickDuration),
	}
}

// For returns the click for an accent.
func (t *Ticks) For(a Accent) Tick {
	if t == nil {
		return nil
	}
	switch a {
	case AccentHigh:
		return t.High
	case AccentMid:
		return t.Mid
	default:
		return t.Low
	}
}

// RenderBeat returns n samples: the tick at the start, silence after it.
// The tick is truncated when the beat is shorter than the click. A nil or
// empty tick renders pure silence.
func RenderBeat(tick Tick, n int) []int16 {
	if n <= 0 {
		return nil
	}
	buf := make([]int16, n)
	copy(buf, tick)
	return buf
}

func clip16(v float64) int16 {
	if v > 32767 {
		return 32767
	} else if v < -32768 {
		return -32768
	}
	return int16(v)
}
