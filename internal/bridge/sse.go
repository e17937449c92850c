package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleEvents streams outbound events as Server-Sent Events. Each event is
// named after its method and carries its arguments as JSON data.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	events := s.ctrl.Events()
	l := events.Subscribe()
	defer events.Unsubscribe(l)

	s.log.Infof("event listener connected (total: %d)", events.ListenerCount())
	defer s.log.Infof("event listener disconnected")

	// Comment line so clients see the stream open before the first beat.
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-l.Done():
			return
		case ev := <-l.C:
			data, err := json.Marshal(ev.Args)
			if err != nil {
				s.log.Warnf("encode %s: %v", ev.Method, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Method, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
