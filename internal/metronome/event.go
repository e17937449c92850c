package metronome

import (
	"time"

	"github.com/satindergrewal/metronome/internal/audio"
)

// BeatEvent reports one scheduled beat. Events of a run carry its
// generation, so consumers can tell runs apart across Stop/Start.
type BeatEvent struct {
	Beat       int          `json:"beat"`
	Muted      bool         `json:"isMuted"`
	Accent     audio.Accent `json:"accent"`
	Bar        int          `json:"bar"`
	Generation uint64       `json:"generation"`
	At         time.Time    `json:"at"` // scheduled start of the beat
}

// BeatFunc receives beat events on the dispatcher goroutine, never on the
// audio loop.
type BeatFunc func(BeatEvent)

// dispatch delivers a run's events in order. It waits for the previous run's
// dispatcher to drain first so two generations never interleave.
func (e *Engine) dispatch(r *run, prev <-chan struct{}) {
	defer close(r.dispatched)
	if prev != nil {
		<-prev
	}
	for ev := range r.events {
		if ev.Generation != e.generation.Load() {
			continue
		}
		if fn := e.callback.Load(); fn != nil {
			(*fn)(ev)
		}
	}
}
