package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PipelineStatus is a snapshot of the pacer's counters.
type PipelineStatus struct {
	Active    bool          `json:"active"`
	Queued    int           `json:"queued"`    // frames waiting
	Latency   time.Duration `json:"latency"`   // queued audio
	FramesOut int64         `json:"frames_out"`
	Underruns int64         `json:"underruns"` // silence inserted while active
	Overruns  int64         `json:"overruns"`  // frames dropped on a full queue
}

// Pipeline slices written audio into FrameDuration frames and releases them
// at real-time rate on Frames(). When nothing is queued it emits silence, so
// listeners downstream always receive a continuous stream.
//
// Pipeline implements Sink; writes never block.
type Pipeline struct {
	queue   chan []int16
	frameCh chan []int16

	mu     sync.Mutex
	carry  []int16 // partial frame left over from the last Write
	active bool

	framesOut atomic.Int64
	underruns atomic.Int64
	overruns  atomic.Int64
}

// NewPipeline creates a pacer that can hold queueFrames frames of audio
// ahead of real time.
func NewPipeline(queueFrames int) *Pipeline {
	if queueFrames < 1 {
		queueFrames = 1
	}
	return &Pipeline{
		queue:   make(chan []int16, queueFrames),
		frameCh: make(chan []int16, 100),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// QueueSize returns the number of frames waiting to be paced out.
func (p *Pipeline) QueueSize() int {
	return len(p.queue)
}

// Open is a no-op; the pipeline has no device to acquire.
func (p *Pipeline) Open() error { return nil }

// Start accepts writes until the next Stop.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	p.active = true
	p.carry = nil
	p.mu.Unlock()
	return nil
}

// Write queues samples as whole frames. A trailing partial frame is held
// until the next Write. Frames that do not fit the queue are dropped.
func (p *Pipeline) Write(samples []int16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return ErrSinkClosed
	}

	data := samples
	if len(p.carry) > 0 {
		data = append(p.carry, samples...)
		p.carry = nil
	}

	for len(data) >= FrameSamples {
		frame := make([]int16, FrameSamples)
		copy(frame, data[:FrameSamples])
		select {
		case p.queue <- frame:
		default:
			p.overruns.Add(1)
		}
		data = data[FrameSamples:]
	}
	if len(data) > 0 {
		p.carry = append([]int16(nil), data...)
	}
	return nil
}

// Stop rejects further writes and discards queued audio.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	p.active = false
	p.carry = nil
	p.mu.Unlock()
	p.Flush()
	return nil
}

// Close is equivalent to Stop; Run keeps pacing silence until its context ends.
func (p *Pipeline) Close() error {
	return p.Stop()
}

// Flush drops every queued frame.
func (p *Pipeline) Flush() {
	for {
		select {
		case <-p.queue:
		default:
			return
		}
	}
}

// Status returns current pacing counters.
func (p *Pipeline) Status() PipelineStatus {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	queued := len(p.queue)
	return PipelineStatus{
		Active:    active,
		Queued:    queued,
		Latency:   time.Duration(queued) * FrameDuration,
		FramesOut: p.framesOut.Load(),
		Underruns: p.underruns.Load(),
		Overruns:  p.overruns.Load(),
	}
}

// Run paces frames out. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	silence := make([]int16, FrameSamples)

	for {
		if !p.sendFrame(ctx, ticker, p.nextFrame(silence)) {
			return
		}
	}
}

func (p *Pipeline) nextFrame(silence []int16) []int16 {
	select {
	case f := <-p.queue:
		return f
	default:
	}

	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	if active {
		p.underruns.Add(1)
	}
	return silence
}

// sendFrame waits for the ticker then sends a frame. Returns false on cancel.
func (p *Pipeline) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
	}

	select {
	case p.frameCh <- frame:
		p.framesOut.Add(1)
		return true
	case <-ctx.Done():
		return false
	}
}
