package healthx

import (
	"context"
	"encoding/json"
	"net/http"

	"go.eggybyte.com/orchid/core/log"
)

// Reporter produces a fresh Report for each request.
type Reporter func(ctx context.Context) Report

// Handler serves /health, /ready and /live on a new mux.
//
// /health returns the full report with 200 when ready and 503 otherwise.
// /ready returns only the readiness verdict with the same status codes.
// /live always returns 200 while the process can answer.
// Only GET and HEAD are accepted.
func Handler(reporter Reporter, logger log.Logger) http.Handler {
	if logger == nil {
		logger = log.Nop()
	}
	mux := http.NewServeMux()
	Register(mux, reporter, logger)
	return mux
}

// Register attaches the health endpoints to an existing mux.
func Register(mux *http.ServeMux, reporter Reporter, logger log.Logger) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}
		report := reporter(r.Context())
		if !report.Readiness {
			logger.Warn("health report not ready",
				log.Str("status", string(report.Status)),
				log.Int("unhealthy", report.Summary.Unhealthy))
		}
		writeJSON(w, statusCode(report), report)
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}
		report := reporter(r.Context())
		body := map[string]any{"status": "ready", "summary": report.Summary}
		if !report.Readiness {
			body["status"] = "not_ready"
		}
		writeJSON(w, statusCode(report), body)
	})

	mux.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
}

func allowed(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func statusCode(report Report) int {
	if report.Readiness {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
