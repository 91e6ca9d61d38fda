package services

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agmark-sync/metrics"
)

// NewAdminHandler exposes metrics, status and pause control for s.
//
//	GET  /metrics  Prometheus exposition
//	GET  /status   scheduler Status as JSON
//	POST /pause    hold the loop before the next commodity
//	POST /resume   release a paused loop
func NewAdminHandler(s *Scheduler, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	if m != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeStatus(w, s.Status())
	})

	mux.HandleFunc("/pause", control(s, s.Pause))
	mux.HandleFunc("/resume", control(s, s.Resume))

	return mux
}

func control(s *Scheduler, action func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		action()
		writeStatus(w, s.Status())
	}
}

func writeStatus(w http.ResponseWriter, st Status) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
