// Package rtc streams the click track to browsers over WebRTC as Opus.
package rtc

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/satindergrewal/metronome/internal/audio"
	"github.com/satindergrewal/metronome/internal/stream"
)

const opusBitrate = 64000

// Handler serves WebRTC SDP negotiation for low-latency Opus streaming.
// Frames are resampled to 48 kHz before encoding.
type Handler struct {
	broadcaster *stream.Broadcaster[[]int16]
	api         *webrtc.API
	log         logging.LeveledLogger

	mu    sync.Mutex
	peers map[string]*webrtc.PeerConnection
}

// NewHandler creates a WebRTC stream handler. Pion's own logs go
// through factory.
func NewHandler(b *stream.Broadcaster[[]int16], factory logging.LoggerFactory) *Handler {
	se := webrtc.SettingEngine{LoggerFactory: factory}
	return &Handler{
		broadcaster: b,
		api:         webrtc.NewAPI(webrtc.WithSettingEngine(se)),
		log:         factory.NewLogger("webrtc-stream"),
		peers:       make(map[string]*webrtc.PeerConnection),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *Handler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Close hangs up every peer.
func (h *Handler) Close() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]*webrtc.PeerConnection)
	h.mu.Unlock()
	for id, pc := range peers {
		if err := pc.Close(); err != nil {
			h.log.Warnf("peer %s close: %v", id, err)
		}
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, err := h.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"metronome",
	)
	if err != nil {
		pc.Close()
		http.Error(w, "create audio track failed", http.StatusInternalServerError)
		return
	}

	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		http.Error(w, "add track failed", http.StatusInternalServerError)
		return
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return
	}
	<-gatherComplete

	id := uuid.NewString()
	h.mu.Lock()
	h.peers[id] = pc
	h.mu.Unlock()

	h.log.Infof("peer %s connected (total: %d)", id, h.PeerCount())

	go h.streamToPeer(id, track)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			if h.removePeer(id) {
				pc.Close()
				h.log.Infof("peer %s disconnected (remaining: %d)", id, h.PeerCount())
			}
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(pc.LocalDescription()); err != nil {
		h.log.Warnf("peer %s answer: %v", id, err)
	}
}

func (h *Handler) streamToPeer(id string, track *webrtc.TrackLocalStaticSample) {
	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	enc, err := opus.NewEncoder(audio.OpusSampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		h.log.Errorf("peer %s: opus encoder: %v", id, err)
		return
	}
	if err := enc.SetBitrate(opusBitrate); err != nil {
		h.log.Warnf("peer %s: opus bitrate: %v", id, err)
	}

	opusBuf := make([]byte, 4000)

	for {
		select {
		case <-listener.Done():
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			if !h.hasPeer(id) {
				return
			}
			n, err := enc.Encode(audio.Resample(frame, audio.OpusFrameSize), opusBuf)
			if err != nil {
				h.log.Warnf("peer %s: opus encode: %v", id, err)
				continue
			}
			if err := track.WriteSample(media.Sample{
				Data:     opusBuf[:n],
				Duration: audio.FrameDuration,
			}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) hasPeer(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.peers[id]
	return ok
}

func (h *Handler) removePeer(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[id]; !ok {
		return false
	}
	delete(h.peers, id)
	return true
}
