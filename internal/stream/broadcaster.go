package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// Broadcaster fans out values from one source to N listeners. It carries PCM
// frames to stream clients and bridge events to SSE and OSC consumers.
type Broadcaster[T any] struct {
	mu        sync.RWMutex
	listeners map[*Listener[T]]struct{}
	bufSize   int
	dropped   atomic.Int64
}

// Listener receives values from the broadcaster.
type Listener[T any] struct {
	C    chan T
	done chan struct{}
	once sync.Once
}

// Done is closed when the listener is unsubscribed.
func (l *Listener[T]) Done() <-chan struct{} {
	return l.done
}

// NewBroadcaster creates a broadcaster whose listeners buffer bufSize values.
func NewBroadcaster[T any](bufSize int) *Broadcaster[T] {
	if bufSize < 1 {
		bufSize = 1
	}
	return &Broadcaster[T]{
		listeners: make(map[*Listener[T]]struct{}),
		bufSize:   bufSize,
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster[T]) Subscribe() *Listener[T] {
	l := &Listener[T]{
		C:    make(chan T, b.bufSize),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Safe to call twice.
func (b *Broadcaster[T]) Unsubscribe(l *Listener[T]) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
	l.once.Do(func() { close(l.done) })
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster[T]) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Dropped counts values a slow listener missed.
func (b *Broadcaster[T]) Dropped() int64 {
	return b.dropped.Load()
}

// Publish hands v to every listener without blocking.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		select {
		case l.C <- v:
		default:
			// listener too slow, drop to keep the broadcast moving
			b.dropped.Add(1)
		}
	}
}

// Run publishes everything read from source until ctx is cancelled or
// source is closed.
func (b *Broadcaster[T]) Run(ctx context.Context, source <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-source:
			if !ok {
				return
			}
			b.Publish(v)
		}
	}
}
