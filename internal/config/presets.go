package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/satindergrewal/metronome/internal/metronome"
)

// Preset is a named tempo the media controls can switch to.
type Preset struct {
	Name        string `yaml:"name" json:"name"`
	BPM         int    `yaml:"bpm" json:"bpm"`
	BeatsPerBar int    `yaml:"beats_per_bar" json:"beatsPerBar"`
}

// DefaultPresets are used when no presets file is configured.
var DefaultPresets = []Preset{
	{Name: "Rock 4/4", BPM: 120, BeatsPerBar: 4},
	{Name: "Waltz 3/4", BPM: 90, BeatsPerBar: 3},
	{Name: "March 2/4", BPM: 110, BeatsPerBar: 2},
}

var errNoPresets = errors.New("presets file defines no presets")

type presetsFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets reads presets from a YAML file:
//
//	presets:
//	  - name: Rock 4/4
//	    bpm: 120
//	    beats_per_bar: 4
//
// An empty path returns DefaultPresets. Values are clamped to engine limits.
func LoadPresets(path string) ([]Preset, error) {
	if path == "" {
		return append([]Preset(nil), DefaultPresets...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	var f presetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets %s: %w", path, err)
	}
	if len(f.Presets) == 0 {
		return nil, fmt.Errorf("%s: %w", path, errNoPresets)
	}

	for i := range f.Presets {
		p := &f.Presets[i]
		p.BPM = metronome.ClampBPM(p.BPM)
		p.BeatsPerBar = metronome.ClampBeatsPerBar(p.BeatsPerBar)
		if p.Name == "" {
			p.Name = fmt.Sprintf("%d BPM %d/4", p.BPM, p.BeatsPerBar)
		}
	}
	return f.Presets, nil
}
