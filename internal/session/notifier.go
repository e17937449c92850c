package session

import (
	"fmt"

	"github.com/pion/logging"
)

// NowPlaying is what the system media controls display.
type NowPlaying struct {
	Title   string  `json:"title"` // "120 BPM · 4/4"
	Text    string  `json:"text"`  // "Playing" or "Paused"
	Ongoing bool    `json:"ongoing"`
	Rate    float64 `json:"rate"` // playback rate, 1 while playing
}

// NowPlayingFor renders a state snapshot for the media controls.
func NowPlayingFor(s Snapshot) NowPlaying {
	np := NowPlaying{
		Title: fmt.Sprintf("%d BPM · %d/4", s.BPM, s.BeatsPerBar),
		Text:  "Paused",
	}
	if s.Playing {
		np.Text = "Playing"
		np.Ongoing = true
		np.Rate = 1
	}
	return np
}

// Notifier shows or hides the persistent media notification.
type Notifier interface {
	Show(NowPlaying)
	Hide()
}

// LogNotifier reports media-session changes to the log.
type LogNotifier struct {
	Log logging.LeveledLogger
}

func (n LogNotifier) Show(np NowPlaying) {
	n.Log.Infof("now playing: %s (%s)", np.Title, np.Text)
}

func (n LogNotifier) Hide() {
	n.Log.Infof("media notification hidden")
}
