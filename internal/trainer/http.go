package trainer

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Update is a partial change to the trainer. Nil fields are left alone.
type Update struct {
	Enabled   *bool `json:"enabled"`
	StepBPM   *int  `json:"stepBpm"`
	TargetBPM *int  `json:"targetBpm"`
	DwellBars *int  `json:"dwellBars"`
}

// Apply merges u into the trainer and returns the new status.
func (t *Trainer) Apply(u Update) Status {
	if u.StepBPM != nil || u.TargetBPM != nil || u.DwellBars != nil {
		cfg := t.Status().Config
		if u.StepBPM != nil {
			cfg.StepBPM = *u.StepBPM
		}
		if u.TargetBPM != nil {
			cfg.TargetBPM = *u.TargetBPM
		}
		if u.DwellBars != nil {
			cfg.DwellBars = *u.DwellBars
		}
		t.Configure(cfg)
	}
	if u.Enabled != nil {
		t.SetEnabled(*u.Enabled)
	}
	return t.Status()
}

// Register adds GET and POST /api/trainer to mux.
func (t *Trainer) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/trainer", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, t.Status())
	})
	mux.HandleFunc("POST /api/trainer", func(w http.ResponseWriter, r *http.Request) {
		var u Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": fmt.Sprintf("invalid request: %v", err)})
			return
		}
		writeJSON(w, http.StatusOK, t.Apply(u))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
