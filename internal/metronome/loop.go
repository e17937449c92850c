package metronome

import "github.com/satindergrewal/metronome/internal/audio"

// loop renders one beat per iteration against an absolute deadline. It owns
// the cursor; setters reach it only through atomics.
func (e *Engine) loop(r *run, ticks *audio.Ticks) {
	defer close(r.done)
	defer close(r.events)

	var (
		cursor Cursor
		carry  float64
		next   = e.clock.Now()
		rate   = float64(e.opts.SampleRate)
	)

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		if e.resetBeat.Swap(false) {
			cursor.Beat = 0
		}
		if e.resetBar.Swap(false) {
			cursor.Bar = 0
			cursor.Muted = false
		}

		bpm := int(e.bpm.Load())
		beats := int(e.beatsPerBar.Load())
		pattern := unpackMute(e.mute.Load())
		if cursor.Beat >= beats {
			cursor.Beat = 0
		}

		// Fractional sample carry keeps long runs sample-accurate.
		carry += rate * 60 / float64(bpm)
		n := int(carry)
		carry -= float64(n)

		accent := Classify(cursor.Beat, beats)
		var tick audio.Tick
		if !cursor.Muted {
			tick = ticks.For(accent)
		}

		if err := e.sink.Write(audio.RenderBeat(tick, n)); err != nil {
			select {
			case <-r.stop:
			default:
				e.log.Errorf("run %d: audio write failed, playback stopped: %v", r.gen, err)
				r.failed.Store(true)
			}
			return
		}

		select {
		case <-r.stop:
			return
		default:
		}

		ev := BeatEvent{
			Beat:       cursor.Beat,
			Muted:      cursor.Muted,
			Accent:     accent,
			Bar:        cursor.Bar,
			Generation: r.gen,
			At:         next,
		}
		select {
		case r.events <- ev:
		default:
			e.dropped.Add(1)
		}

		cursor = cursor.Advance(beats, pattern)

		beatDur := BeatDuration(bpm)
		next = next.Add(beatDur)
		wait := next.Sub(e.clock.Now())
		if wait < -beatDur {
			// Fell more than a beat behind (suspend, overload). Re-anchor
			// instead of bursting to catch up.
			e.log.Debugf("run %d: %v behind schedule, re-anchoring", r.gen, -wait)
			next = e.clock.Now()
			wait = 0
		}
		if wait <= 0 {
			continue
		}
		select {
		case <-r.stop:
			return
		case <-e.clock.After(wait):
		}
	}
}
