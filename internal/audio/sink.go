package audio

import (
	"errors"
	"fmt"
)

// ErrSinkClosed is returned by Write once a sink has been stopped or closed.
var ErrSinkClosed = errors.New("audio sink closed")

// Sink is an audio output capable of playing mono 16-bit PCM at SampleRate.
//
// Open acquires the device, Start begins a playback stream, Write schedules
// samples for playback, Stop ends the stream and must unblock any Write in
// progress, Close releases the device. A sink may be started and stopped any
// number of times between Open and Close.
type Sink interface {
	Open() error
	Start() error
	Write(samples []int16) error
	Stop() error
	Close() error
}

// NopSink discards all audio. Useful when output is disabled.
type NopSink struct{}

func (NopSink) Open() error { return nil }
func (NopSink) Start() error { return nil }
func (NopSink) Write([]int16) error { return nil }
func (NopSink) Stop() error { return nil }
func (NopSink) Close() error { return nil }

// MultiSink fans every operation out to several sinks in order.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. A single sink is still wrapped so callers get
// uniform error messages.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Open opens every sink. If one fails, the ones already opened are closed.
func (m *MultiSink) Open() error {
	for i, s := range m.sinks {
		if err := s.Open(); err != nil {
			for _, opened := range m.sinks[:i] {
				opened.Close()
			}
			return fmt.Errorf("open sink %d: %w", i, err)
		}
	}
	return nil
}

// Start starts every sink. If one fails, the ones already started are stopped.
func (m *MultiSink) Start() error {
	for i, s := range m.sinks {
		if err := s.Start(); err != nil {
			for _, started := range m.sinks[:i] {
				started.Stop()
			}
			return fmt.Errorf("start sink %d: %w", i, err)
		}
	}
	return nil
}

// Write hands the same buffer to every sink and returns the first failure.
// Sinks must not modify the buffer.
func (m *MultiSink) Write(samples []int16) error {
	for i, s := range m.sinks {
		if err := s.Write(samples); err != nil {
			return fmt.Errorf("write sink %d: %w", i, err)
		}
	}
	return nil
}

// Stop stops every sink, even if an earlier one fails.
func (m *MultiSink) Stop() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, even if an earlier one fails.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
