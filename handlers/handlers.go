// Package handlers provides the admin HTTP endpoints of the proxy.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/giygas/httpstats/httpstats"
	"github.com/giygas/httpstats/interfaces"
	"github.com/giygas/httpstats/logging"
)

// HealthResponse keeps the JSON field order stable
type HealthResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

// HealthCheck serves the health checker result with its HTTP code
func HealthCheck(checker interfaces.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, data, code := checker.HealthCheck()
		w.Header().Set("Cache-Control", "no-store")
		RespondWithJSON(w, code, HealthResponse{Status: status, Data: data})
	}
}

// StatsResponse is the /stats payload: every counter of both directions
// plus the eight public accessor values.
type StatsResponse struct {
	Instance  string           `json:"instance"`
	State     string           `json:"state"`
	Backend   httpstats.Counts `json:"backend"`
	Frontend  httpstats.Counts `json:"frontend"`
	Accessors map[string]int64 `json:"accessors"`
}

// accessorReader is the read surface of httpstats.Registry
type accessorReader interface {
	Backend2xx() int64
	Backend3xx() int64
	Backend4xx() int64
	Backend5xx() int64
	Frontend2xx() int64
	Frontend3xx() int64
	Frontend4xx() int64
	Frontend5xx() int64
}

// Stats serves a JSON snapshot of the registry
func Stats(reader interfaces.StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := reader.Snapshot()
		resp := StatsResponse{
			Instance: snap.Instance,
			State:    snap.State,
			Backend:  snap.Backend,
			Frontend: snap.Frontend,
		}

		if acc, ok := reader.(accessorReader); ok {
			resp.Accessors = map[string]int64{
				"backend_2xx":  acc.Backend2xx(),
				"backend_3xx":  acc.Backend3xx(),
				"backend_4xx":  acc.Backend4xx(),
				"backend_5xx":  acc.Backend5xx(),
				"frontend_2xx": acc.Frontend2xx(),
				"frontend_3xx": acc.Frontend3xx(),
				"frontend_4xx": acc.Frontend4xx(),
				"frontend_5xx": acc.Frontend5xx(),
			}
		}

		w.Header().Set("Cache-Control", "no-store")
		RespondWithJSON(w, http.StatusOK, resp)
	}
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}
