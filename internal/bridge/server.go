package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/pion/logging"

	"github.com/satindergrewal/metronome/internal/session"
	"github.com/satindergrewal/metronome/internal/store"
)

// History lists recent play sessions. *store.Store implements it.
type History interface {
	RecentSessions(ctx context.Context, limit int) ([]store.Session, error)
}

// Server exposes the UI channel, media commands and the event stream over
// HTTP.
type Server struct {
	ctrl    *session.Controller
	channel *Channel
	history History // optional
	log     logging.LeveledLogger
}

// NewServer creates the HTTP bridge. history may be nil.
func NewServer(ctrl *session.Controller, history History, log logging.LeveledLogger) *Server {
	return &Server{
		ctrl:    ctrl,
		channel: NewChannel(ctrl, log),
		history: history,
		log:     log,
	}
}

// Channel returns the command channel behind /api/invoke.
func (s *Server) Channel() *Channel { return s.channel }

// Register adds the bridge routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/invoke/{method}", s.handleInvoke)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/presets", s.handlePresets)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("POST /api/media/preset/{index}", s.handlePreset)
	mux.HandleFunc("POST /api/media/{action}", s.handleMedia)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"ok": false, "error": err.Error()})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var args map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid arguments: %w", err))
		return
	}

	method := r.PathValue("method")
	result, err := s.channel.Invoke(r.Context(), method, args)
	switch {
	case errors.Is(err, ErrNotImplemented):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.log.Debugf("invoke %s %v -> %v", method, args, result)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Presets())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, errors.New("history disabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sessions, err := s.history.RecentSessions(r.Context(), limit)
	if err != nil {
		s.log.Warnf("list sessions: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	var ok bool
	switch action := r.PathValue("action"); action {
	case "playpause":
		ok = s.ctrl.PlayPause()
	case "play":
		ok = s.ctrl.Play()
	case "pause":
		ok = s.ctrl.Pause()
	case "stop":
		ok = s.ctrl.StopPlayback()
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: media action %s", ErrNotImplemented, action))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": ok, "status": s.ctrl.Status()})
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: preset index", ErrInvalidArgument))
		return
	}
	if err := s.ctrl.ApplyPreset(index); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, session.ErrUnknownPreset) {
			code = http.StatusNotFound
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": s.ctrl.Status()})
}
