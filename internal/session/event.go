package session

// Outbound event names, as the UI channel expects them.
const (
	EventBeat             = "onBeat"
	EventPlayStateChanged = "onPlayStateChanged"
	EventPresetChanged    = "onPresetChanged"
)

// Event is a notification pushed to the UI.
type Event struct {
	Method string `json:"method"`
	Args   any    `json:"args"`
}

// BeatArgs accompany onBeat.
type BeatArgs struct {
	Beat    int  `json:"beat"`
	IsMuted bool `json:"isMuted"`
}

// PlayStateArgs accompany onPlayStateChanged.
type PlayStateArgs struct {
	IsPlaying bool `json:"isPlaying"`
}

// PresetArgs accompany onPresetChanged.
type PresetArgs struct {
	BPM         int `json:"bpm"`
	BeatsPerBar int `json:"beatsPerBar"`
	PresetIndex int `json:"presetIndex"`
}

func beatEvent(beat int, muted bool) Event {
	return Event{Method: EventBeat, Args: BeatArgs{Beat: beat, IsMuted: muted}}
}

func playStateEvent(playing bool) Event {
	return Event{Method: EventPlayStateChanged, Args: PlayStateArgs{IsPlaying: playing}}
}

func presetEvent(bpm, beats, index int) Event {
	return Event{Method: EventPresetChanged, Args: PresetArgs{BPM: bpm, BeatsPerBar: beats, PresetIndex: index}}
}
