// Package server exposes aggregated agencies over HTTP for the dashboard
// front end.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/dmvtransit/transitboard/internal/aggregator"
)

// Source produces the agency list served by the API.
type Source interface {
	Aggregate(ctx context.Context) ([]aggregator.Agency, error)
}

// Server serves the dashboard JSON API.
type Server struct {
	source Source
	logger *slog.Logger
}

// New creates a Server over the given aggregation source.
func New(source Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{source: source, logger: logger}
}

// Handler builds the API router. The dashboard is a static page served from
// elsewhere, so every origin may read the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/api/agencies", s.handleAgencies)
	r.Get("/api/agencies/{slug}", s.handleAgency)

	return r
}

func (s *Server) handleAgencies(w http.ResponseWriter, r *http.Request) {
	agencies, err := s.aggregate(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "aggregation failed")
		return
	}
	s.writeJSON(w, http.StatusOK, agencies)
}

func (s *Server) handleAgency(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	agencies, err := s.aggregate(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "aggregation failed")
		return
	}
	for _, agency := range agencies {
		if agency.Slug == slug {
			s.writeJSON(w, http.StatusOK, agency)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "unknown agency")
}

func (s *Server) aggregate(ctx context.Context) ([]aggregator.Agency, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	agencies, err := s.source.Aggregate(ctx)
	if err != nil {
		s.logger.Error("aggregation failed", "error", err)
		return nil, err
	}
	return agencies, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
