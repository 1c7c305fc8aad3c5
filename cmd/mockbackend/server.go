package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/couchcryptid/hydro-dashboard/internal/domain"
)

// serverOptions tune how the mock backend misbehaves.
type serverOptions struct {
	// Latency delays every response, to make loading states visible.
	Latency time.Duration
	// FailPaths answer 503 instead of data.
	FailPaths []string
}

// newHandler serves fixtures in the backend's wire format.
func newHandler(f *Fixtures, opts serverOptions, logger *slog.Logger) http.Handler {
	failing := make(map[string]bool, len(opts.FailPaths))
	for _, p := range opts.FailPaths {
		failing[p] = true
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if opts.Latency > 0 {
				select {
				case <-time.After(opts.Latency):
				case <-req.Context().Done():
					return
				}
			}
			if failing[req.URL.Path] {
				logger.Debug("injected failure", "path", req.URL.Path)
				http.Error(w, "injected failure", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	for _, c := range domain.Categories() {
		r.Get("/"+c.WireName(), func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, nonNil(f.StationsFor(c)))
		})
	}

	r.Get("/station_count", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]int{
			domain.CategoryGate.WireName():        len(f.StationsFor(domain.CategoryGate)),
			domain.CategoryWeir.WireName():        len(f.StationsFor(domain.CategoryWeir)),
			domain.CategoryPumpStation.WireName(): len(f.StationsFor(domain.CategoryPumpStation)),
		})
	})

	r.Get("/rainfall", func(w http.ResponseWriter, req *http.Request) {
		start, err := domain.ParseDate(req.URL.Query().Get("start"))
		if err != nil {
			http.Error(w, "start: "+err.Error(), http.StatusBadRequest)
			return
		}
		end, err := domain.ParseDate(req.URL.Query().Get("end"))
		if err != nil {
			http.Error(w, "end: "+err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, f.RainfallBetween(start, end))
	})

	r.Get("/regional_counts", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, nonNil(f.Regions))
	})

	r.Get("/region_boundaries", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, nonNil(f.Boundaries))
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
