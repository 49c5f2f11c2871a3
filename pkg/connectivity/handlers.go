package connectivity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// ProbeTrigger runs an immediate probe of one dependency and reports the
// outcome to the registry before returning. The probe scheduler implements
// this for the manual-check endpoint.
type ProbeTrigger interface {
	TriggerNow(ctx context.Context, id DependencyID) error
}

// Handlers serves the connectivity read surface:
//
//	GET  /internal/connectivity              all snapshots, keyed by dependency
//	GET  /internal/connectivity/{dep}        one snapshot, 404 if untracked
//	POST /internal/connectivity/{dep}/check  run a probe now, return the result
//
// The manual-check route is only served when a trigger is configured.
type Handlers struct {
	registry *Registry
	trigger  ProbeTrigger
}

// NewHandlers creates the read-surface handlers. trigger may be nil, in
// which case manual checks return 404.
func NewHandlers(registry *Registry, trigger ProbeTrigger) *Handlers {
	return &Handlers{registry: registry, trigger: trigger}
}

// Register mounts the connectivity routes on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/internal/connectivity", h.handleAll)
	mux.HandleFunc("/internal/connectivity/", h.handleOne)
}

// handleAll serves the full snapshot map.
func (h *Handlers) handleAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	snapshots := h.registry.AllSnapshots()
	response := make(map[string]Snapshot, len(snapshots))
	for id, snap := range snapshots {
		response[id.String()] = snap
	}

	writeJSON(w, http.StatusOK, response)
}

// handleOne serves a single snapshot or triggers a manual check.
func (h *Handlers) handleOne(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/internal/connectivity/")
	rest = strings.Trim(rest, "/")

	if dep, ok := strings.CutSuffix(rest, "/check"); ok {
		h.handleCheck(w, r, DependencyID(strings.ToLower(dep)))
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if rest == "" || strings.Contains(rest, "/") {
		writeError(w, http.StatusNotFound, "unknown path")
		return
	}

	snap, err := h.registry.Snapshot(DependencyID(strings.ToLower(rest)))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleCheck runs an immediate probe and returns the refreshed snapshot.
func (h *Handlers) handleCheck(w http.ResponseWriter, r *http.Request, id DependencyID) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.trigger == nil {
		writeError(w, http.StatusNotFound, "manual checks not enabled")
		return
	}

	if err := h.trigger.TriggerNow(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	snap, err := h.registry.Snapshot(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
