// Package relay forwards metronome events to an OSC endpoint, so DAWs,
// lighting rigs and synths can follow the click.
package relay

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pion/logging"

	"github.com/satindergrewal/metronome/internal/session"
	"github.com/satindergrewal/metronome/internal/stream"
)

// OSC addresses.
const (
	AddressBeat    = "/metronome/beat"    // i beat, T|F muted
	AddressPlaying = "/metronome/playing" // T|F
	AddressPreset  = "/metronome/preset"  // i bpm, i beatsPerBar, i index
)

// Relay sends events to one OSC server over UDP.
type Relay struct {
	client *osc.Client
	addr   string
	log    logging.LeveledLogger
}

// New creates a relay for addr ("host:port").
func New(addr string, log logging.LeveledLogger) (*Relay, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("osc address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("osc address %q: invalid port", addr)
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return &Relay{client: osc.NewClient(host, port), addr: addr, log: log}, nil
}

// Message converts an event to its OSC form. ok is false for events the
// relay does not forward.
func Message(ev session.Event) (msg *osc.Message, ok bool) {
	switch args := ev.Args.(type) {
	case session.BeatArgs:
		msg = osc.NewMessage(AddressBeat)
		msg.Append(int32(args.Beat), args.IsMuted)
	case session.PlayStateArgs:
		msg = osc.NewMessage(AddressPlaying)
		msg.Append(args.IsPlaying)
	case session.PresetArgs:
		msg = osc.NewMessage(AddressPreset)
		msg.Append(int32(args.BPM), int32(args.BeatsPerBar), int32(args.PresetIndex))
	default:
		return nil, false
	}
	return msg, true
}

// Send forwards one event.
func (r *Relay) Send(ev session.Event) error {
	msg, ok := Message(ev)
	if !ok {
		return nil
	}
	if err := r.client.Send(msg); err != nil {
		return fmt.Errorf("osc send %s: %w", msg.Address, err)
	}
	return nil
}

// Run forwards events until ctx is cancelled. Send failures are logged and
// do not stop the relay; UDP receivers come and go.
func (r *Relay) Run(ctx context.Context, events *stream.Broadcaster[session.Event]) {
	l := events.Subscribe()
	defer events.Unsubscribe(l)

	r.log.Infof("relaying events to osc://%s", r.addr)
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.Done():
			return
		case ev := <-l.C:
			if err := r.Send(ev); err != nil {
				failures++
				// first failure at warn, the rest at debug
				if failures == 1 {
					r.log.Warnf("%v", err)
				} else {
					r.log.Debugf("%v", err)
				}
				continue
			}
			failures = 0
		}
	}
}
