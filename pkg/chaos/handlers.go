package chaos

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/connectivity"
)

// Handlers serves the fault-injection admin surface:
//
//	GET  /internal/chaos                   active fault rules
//	POST /internal/chaos/{dep}/latency     set synthetic probe latency
//	POST /internal/chaos/{dep}/fail        force probe failures
//	POST /internal/chaos/{dep}/clear       remove all faults for {dep}
type Handlers struct {
	injector *Injector
}

// NewHandlers creates the admin handlers for an injector.
func NewHandlers(injector *Injector) *Handlers {
	return &Handlers{injector: injector}
}

// Register mounts the chaos routes on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/internal/chaos", h.handleRules)
	mux.HandleFunc("/internal/chaos/", h.handleFault)
}

type latencyRequest struct {
	LatencyMs int64 `json:"latencyMs"`
}

type failRequest struct {
	DurationSeconds int64 `json:"durationSeconds"`
}

func (h *Handlers) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rules := h.injector.Rules()
	response := make(map[string]map[string]interface{}, len(rules))
	for id, rule := range rules {
		entry := map[string]interface{}{}
		if rule.Latency > 0 {
			entry["latencyMs"] = rule.Latency.Milliseconds()
		}
		if rule.FailForever {
			entry["failForever"] = true
		} else if !rule.FailUntil.IsZero() {
			entry["failUntil"] = rule.FailUntil
		}
		response[id.String()] = entry
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) handleFault(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/internal/chaos/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown path"})
		return
	}
	id := connectivity.DependencyID(strings.ToLower(parts[0]))

	switch parts[1] {
	case "latency":
		var req latencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LatencyMs < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "latencyMs must be a non-negative integer"})
			return
		}
		h.injector.SetLatency(id, time.Duration(req.LatencyMs)*time.Millisecond)

	case "fail":
		var req failRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		h.injector.ForceFailure(id, time.Duration(req.DurationSeconds)*time.Second)

	case "clear":
		h.injector.Clear(id)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown fault type"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
