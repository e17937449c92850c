package metronome

import "github.com/satindergrewal/metronome/internal/audio"

// Cursor is the scheduler's position within the bar and the mute cycle.
type Cursor struct {
	Beat  int  // in [0, beatsPerBar)
	Bar   int  // bars since the last mute transition
	Muted bool // inside the silent part of the cycle
}

// Classify picks the click for a beat. The downbeat is High. Meters longer
// than three beats get a Mid click at beatsPerBar/2 (integer division, so a
// 5-beat bar accents index 2). Everything else is Low.
func Classify(beat, beatsPerBar int) audio.Accent {
	switch {
	case beat == 0:
		return audio.AccentHigh
	case beatsPerBar > 3 && beat == beatsPerBar/2:
		return audio.AccentMid
	default:
		return audio.AccentLow
	}
}

// Advance moves to the next beat. When the bar wraps the bar counter grows
// and, if the pattern mutes anything, the cycle flips between playing and
// muted at exact bar boundaries.
func (c Cursor) Advance(beatsPerBar int, p MutePattern) Cursor {
	if beatsPerBar < 1 {
		beatsPerBar = 1
	}
	c.Beat = (c.Beat + 1) % beatsPerBar
	if c.Beat != 0 {
		return c
	}

	c.Bar++
	if p.MuteBars <= 0 {
		return c
	}
	if c.Muted {
		if c.Bar >= p.MuteBars {
			c.Bar = 0
			c.Muted = false
		}
	} else if c.Bar >= p.PlayBars {
		c.Bar = 0
		c.Muted = true
	}
	return c
}
