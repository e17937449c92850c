package main

import (
	"fmt"
	"strings"

	"github.com/satindergrewal/metronome/internal/session"
	"github.com/satindergrewal/metronome/internal/trainer"
)

type actionKind int

const (
	actNone actionKind = iota
	actToggle
	actStop
	actTempo  // delta BPM
	actBeats  // delta beats per bar
	actMute   // cycle the mute pattern
	actPreset // arg is the preset index
	actTrainer
	actQuit
)

type action struct {
	kind actionKind
	arg  int
}

// parseKeys turns one read from a raw terminal into actions. Arrow keys
// arrive as ESC [ A..D within the same read.
func parseKeys(b []byte) []action {
	var out []action
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c == 0x1b && i+2 < len(b) && b[i+1] == '[' {
			switch b[i+2] {
			case 'A':
				out = append(out, action{actTempo, 1})
			case 'B':
				out = append(out, action{actTempo, -1})
			case 'C':
				out = append(out, action{actBeats, 1})
			case 'D':
				out = append(out, action{actBeats, -1})
			}
			i += 2
			continue
		}
		if a := keyAction(c); a.kind != actNone {
			out = append(out, a)
		}
	}
	return out
}

func keyAction(c byte) action {
	switch c {
	case ' ', 'p':
		return action{kind: actToggle}
	case 's':
		return action{kind: actStop}
	case '+', '=':
		return action{actTempo, 1}
	case '-', '_':
		return action{actTempo, -1}
	case ']':
		return action{actTempo, 10}
	case '[':
		return action{actTempo, -10}
	case '>', '.':
		return action{actBeats, 1}
	case '<', ',':
		return action{actBeats, -1}
	case 'm':
		return action{kind: actMute}
	case 't':
		return action{kind: actTrainer}
	case 'q', 0x03, 0x04: // ctrl-c, ctrl-d
		return action{kind: actQuit}
	}
	if c >= '1' && c <= '9' {
		return action{actPreset, int(c - '1')}
	}
	return action{}
}

// mutePatterns is the cycle the m key walks through, as play/mute bar pairs.
var mutePatterns = [][2]int{{1, 0}, {1, 1}, {2, 1}, {3, 1}}

// nextMute returns the pattern after (play, mute). Patterns outside the
// cycle restart it with muting off.
func nextMute(play, mute int) (int, int) {
	for i, p := range mutePatterns {
		if p[0] == play && p[1] == mute {
			n := mutePatterns[(i+1)%len(mutePatterns)]
			return n[0], n[1]
		}
	}
	return 1, 0
}

// renderStatus draws the single status line. beat is the last beat heard,
// or -1 before the first one.
func renderStatus(st session.Status, tr trainer.Status, beat int, muted bool) string {
	var b strings.Builder
	if st.Playing {
		b.WriteString("▶ ")
	} else {
		b.WriteString("■ ")
	}
	fmt.Fprintf(&b, "%3d BPM  %d/4", st.BPM, st.BeatsPerBar)
	if st.MuteBars > 0 {
		fmt.Fprintf(&b, "  play %d mute %d", st.PlayBars, st.MuteBars)
	}
	if tr.Enabled {
		if tr.Done {
			fmt.Fprintf(&b, "  trainer done at %d", tr.TargetBPM)
		} else {
			fmt.Fprintf(&b, "  trainer %+d→%d in %d", tr.StepBPM, tr.TargetBPM, tr.BarsRemaining)
		}
	}
	b.WriteString("  ")
	for i := 0; i < st.BeatsPerBar; i++ {
		switch {
		case !st.Playing || i != beat:
			b.WriteString("·")
		case muted:
			b.WriteString("○")
		default:
			b.WriteString("●")
		}
	}
	return b.String()
}

const startFailedNotice = "audio device failed to start, press space to retry"

// withNotice appends a message to the status line.
func withNotice(line, notice string) string {
	if notice == "" {
		return line
	}
	return line + "  ! " + notice
}

const helpLine = "space play/pause  s stop  ↑↓ +/- tempo  ←→ beats  [ ] tempo ±10  m mute  t trainer  1-9 preset  q quit"
