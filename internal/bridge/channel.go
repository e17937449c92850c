package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/pion/logging"
)

var (
	// ErrNotImplemented is returned for an unknown method name.
	ErrNotImplemented = errors.New("method not implemented")
	// ErrInvalidArgument is returned when an argument is not an integer.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Method names accepted by Invoke.
const (
	MethodInitialize     = "initialize"
	MethodStart          = "start"
	MethodStop           = "stop"
	MethodSetBpm         = "setBpm"
	MethodSetBeatsPerBar = "setBeatsPerBar"
	MethodSetBarMute     = "setBarMute"
	MethodDispose        = "dispose"
)

// Argument defaults for missing keys.
const (
	defaultBPM         = 120
	defaultBeatsPerBar = 4
	defaultPlayBars    = 1
	defaultMuteBars    = 0
)

// Commands is the engine surface the UI channel drives.
type Commands interface {
	Initialize() bool
	Start(bpm, beatsPerBar, playBars, muteBars int) bool
	Stop() bool
	SetBpm(bpm int) bool
	SetBeatsPerBar(beats int) bool
	SetBarMute(playBars, muteBars int) bool
	Dispose() bool
}

// Channel decodes named method calls with loosely typed arguments, the way a
// UI toolkit's message channel delivers them, and runs them against Commands.
type Channel struct {
	cmds Commands
	log  logging.LeveledLogger
}

// NewChannel creates a channel over cmds.
func NewChannel(cmds Commands, log logging.LeveledLogger) *Channel {
	return &Channel{cmds: cmds, log: log}
}

// Invoke runs method with args. Every known method returns a bool result.
func (c *Channel) Invoke(ctx context.Context, method string, args map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch method {
	case MethodInitialize:
		return c.cmds.Initialize(), nil

	case MethodStart:
		bpm, err := intArg(args, "bpm", defaultBPM)
		if err != nil {
			return nil, err
		}
		beats, err := intArg(args, "beatsPerBar", defaultBeatsPerBar)
		if err != nil {
			return nil, err
		}
		play, err := intArg(args, "playBars", defaultPlayBars)
		if err != nil {
			return nil, err
		}
		mute, err := intArg(args, "muteBars", defaultMuteBars)
		if err != nil {
			return nil, err
		}
		return c.cmds.Start(bpm, beats, play, mute), nil

	case MethodStop:
		return c.cmds.Stop(), nil

	case MethodSetBpm:
		bpm, err := intArg(args, "bpm", defaultBPM)
		if err != nil {
			return nil, err
		}
		return c.cmds.SetBpm(bpm), nil

	case MethodSetBeatsPerBar:
		beats, err := intArg(args, "beats", defaultBeatsPerBar)
		if err != nil {
			return nil, err
		}
		return c.cmds.SetBeatsPerBar(beats), nil

	case MethodSetBarMute:
		play, err := intArg(args, "playBars", defaultPlayBars)
		if err != nil {
			return nil, err
		}
		mute, err := intArg(args, "muteBars", defaultMuteBars)
		if err != nil {
			return nil, err
		}
		return c.cmds.SetBarMute(play, mute), nil

	case MethodDispose:
		return c.cmds.Dispose(), nil
	}

	c.log.Debugf("unknown method %q", method)
	return nil, fmt.Errorf("%w: %s", ErrNotImplemented, method)
}

// intArg reads an integer argument. JSON numbers arrive as float64 or
// json.Number; both are accepted when they hold a whole number.
func intArg(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if i, ok := wholeNumber(n); ok {
			return i, nil
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		// "120.0" is still a whole number.
		if f, err := n.Float64(); err == nil {
			if i, ok := wholeNumber(f); ok {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidArgument, key, v)
}

func wholeNumber(f float64) (int, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
