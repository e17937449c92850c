//go:build headless

package audio

import "sync"

// DeviceSink accepts audio and discards it. Built with -tags headless for
// machines without an audio device.
type DeviceSink struct {
	mu      sync.Mutex
	open    bool
	started bool
}

// NewDeviceSink creates a discarding sink.
func NewDeviceSink(sampleRate int) *DeviceSink {
	return &DeviceSink{}
}

func (d *DeviceSink) Open() error {
	d.mu.Lock()
	d.open = true
	d.mu.Unlock()
	return nil
}

func (d *DeviceSink) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrSinkClosed
	}
	d.started = true
	return nil
}

func (d *DeviceSink) Write(samples []int16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return ErrSinkClosed
	}
	return nil
}

func (d *DeviceSink) Stop() error {
	d.mu.Lock()
	d.started = false
	d.mu.Unlock()
	return nil
}

func (d *DeviceSink) Close() error {
	d.mu.Lock()
	d.open, d.started = false, false
	d.mu.Unlock()
	return nil
}
