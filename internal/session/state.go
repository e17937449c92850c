package session

import "sync"

// State is what the media controls and the UI share: the current tempo and
// whether the metronome is playing. It replaces per-platform globals with one
// object passed by reference.
type State struct {
	mu          sync.RWMutex
	bpm         int
	beatsPerBar int
	playing     bool
	presetIndex int
}

// Snapshot is a consistent copy of State.
type Snapshot struct {
	BPM         int  `json:"bpm"`
	BeatsPerBar int  `json:"beatsPerBar"`
	Playing     bool `json:"isPlaying"`
	PresetIndex int  `json:"presetIndex"` // -1 when set by hand
}

// NewState creates an idle state at the given tempo.
func NewState(bpm, beatsPerBar int) *State {
	return &State{bpm: bpm, beatsPerBar: beatsPerBar, presetIndex: -1}
}

// Snapshot returns a copy of the current values.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{BPM: s.bpm, BeatsPerBar: s.beatsPerBar, Playing: s.playing, PresetIndex: s.presetIndex}
}

// Playing reports whether the metronome is playing.
func (s *State) Playing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playing
}

// SetPlaying updates the play flag and reports whether it changed.
func (s *State) SetPlaying(playing bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.playing != playing
	s.playing = playing
	return changed
}

// SetTempo sets both tempo fields. A manual change clears the preset.
func (s *State) SetTempo(bpm, beatsPerBar int) {
	s.mu.Lock()
	s.bpm, s.beatsPerBar, s.presetIndex = bpm, beatsPerBar, -1
	s.mu.Unlock()
}

// SetBPM sets the tempo and clears the preset.
func (s *State) SetBPM(bpm int) {
	s.mu.Lock()
	s.bpm, s.presetIndex = bpm, -1
	s.mu.Unlock()
}

// SetBeatsPerBar sets the meter and clears the preset.
func (s *State) SetBeatsPerBar(beats int) {
	s.mu.Lock()
	s.beatsPerBar, s.presetIndex = beats, -1
	s.mu.Unlock()
}

// SetPreset records a preset as the current tempo.
func (s *State) SetPreset(index, bpm, beatsPerBar int) {
	s.mu.Lock()
	s.bpm, s.beatsPerBar, s.presetIndex = bpm, beatsPerBar, index
	s.mu.Unlock()
}
