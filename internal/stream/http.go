package stream

import (
	"net/http"

	"github.com/pion/logging"

	"github.com/satindergrewal/metronome/internal/audio"
)

// HTTPHandler serves the click track as an endless chunked WAV stream.
// The RIFF header announces an open-ended data chunk, then raw 16-bit mono
// PCM frames follow as the pipeline paces them out.
type HTTPHandler struct {
	broadcaster *Broadcaster[[]int16]
	sampleRate  int
	log         logging.LeveledLogger
}

// NewHTTPHandler creates an HTTP stream handler.
func NewHTTPHandler(b *Broadcaster[[]int16], sampleRate int, log logging.LeveledLogger) *HTTPHandler {
	return &HTTPHandler{broadcaster: b, sampleRate: sampleRate, log: log}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "metronome")

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	h.log.Infof("HTTP listener connected (total: %d)", h.broadcaster.ListenerCount())
	defer h.log.Infof("HTTP listener disconnected")

	if _, err := w.Write(audio.StreamingWAVHeader(h.sampleRate, audio.Channels)); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-listener.Done():
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			if _, err := w.Write(audio.SamplesToBytes(frame)); err != nil {
				h.log.Debugf("HTTP stream write: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
