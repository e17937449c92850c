package metronome

import "time"

// Clock is the time source of the scheduling loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }
func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// WallClock returns the system clock.
func WallClock() Clock { return wallClock{} }
