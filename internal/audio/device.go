//go:build !headless

package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process; every DeviceSink shares it.
var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoRate int
)

func otoContext(sampleRate int, bufferSize time.Duration) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoRate != sampleRate {
			return nil, fmt.Errorf("audio device already running at %d Hz", otoRate)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("resume audio device: %w", err)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	otoCtx = ctx
	otoRate = sampleRate
	return ctx, nil
}

// DeviceSink plays audio on the local output device through oto. Writes
// append to a queue that the oto player drains; an empty queue plays silence.
type DeviceSink struct {
	sampleRate int
	bufferSize time.Duration
	maxQueued  int // samples

	mu     sync.Mutex // Open/Start/Stop/Close
	ctx    *oto.Context
	player *oto.Player

	qmu     sync.Mutex // queue + started, shared with the player's Read
	queue   []int16
	started bool
}

// NewDeviceSink creates a speaker sink. Nothing is opened until Open.
func NewDeviceSink(sampleRate int) *DeviceSink {
	return &DeviceSink{
		sampleRate: sampleRate,
		bufferSize: FrameDuration,
		maxQueued:  sampleRate * 4,
	}
}

// Open acquires the process-wide audio context.
func (d *DeviceSink) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil {
		return nil
	}
	ctx, err := otoContext(d.sampleRate, d.bufferSize)
	if err != nil {
		return err
	}
	d.ctx = ctx
	return nil
}

// Start creates a player reading from the sink's queue and starts it.
func (d *DeviceSink) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return fmt.Errorf("start audio device: %w", ErrSinkClosed)
	}
	if d.player != nil {
		return nil
	}

	d.qmu.Lock()
	d.queue = d.queue[:0]
	d.started = true
	d.qmu.Unlock()

	d.player = d.ctx.NewPlayer(d)
	d.player.Play()
	return nil
}

// Write schedules samples behind whatever is already queued. Writes beyond
// the queue limit drop the oldest audio so latency stays bounded.
func (d *DeviceSink) Write(samples []int16) error {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	if !d.started {
		return ErrSinkClosed
	}
	d.queue = append(d.queue, samples...)
	if over := len(d.queue) - d.maxQueued; over > 0 {
		d.queue = append(d.queue[:0], d.queue[over:]...)
	}
	return nil
}

// Read implements io.Reader for the oto player.
func (d *DeviceSink) Read(p []byte) (int, error) {
	d.qmu.Lock()
	n := len(p) / 2
	if n > len(d.queue) {
		n = len(d.queue)
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(d.queue[i]))
	}
	d.queue = d.queue[n:]
	d.qmu.Unlock()

	clear(p[n*2:])
	return len(p), nil
}

// Stop halts the player and discards queued audio.
func (d *DeviceSink) Stop() error {
	d.qmu.Lock()
	d.started = false
	d.queue = nil
	d.qmu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		d.player.Pause()
		d.player.Close()
		d.player = nil
	}
	return nil
}

// Close stops playback and suspends the shared context.
func (d *DeviceSink) Close() error {
	d.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return nil
	}
	err := d.ctx.Suspend()
	d.ctx = nil
	if err != nil {
		return fmt.Errorf("suspend audio device: %w", err)
	}
	return nil
}
