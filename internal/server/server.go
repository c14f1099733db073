// Package server exposes the catalog matcher over HTTP.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"recommender/internal/domain"
	"recommender/internal/matcher"
	"recommender/internal/metrics"
)

const (
	defaultK    = 5
	maxBodySize = 1 << 20
)

// Catalog is the matcher surface the API needs.
type Catalog interface {
	domain.CatalogMatcher
	Index() *matcher.Index
}

// Server serves match queries against the installed catalog index.
type Server struct {
	catalog Catalog
	logger  *zap.Logger
}

// New creates an HTTP API server.
func New(catalog Catalog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{catalog: catalog, logger: logger}
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.Health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/catalog", s.CatalogInfo)
		r.Post("/match", s.Match)
	})
	return r
}

// NewHTTPServer wraps the router with timeouts.
func (s *Server) NewHTTPServer(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Items  int    `json:"items"`
}

// Health handles GET /healthz. Unhealthy until an index is installed.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	ix := s.catalog.Index()
	if ix == nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Items: ix.Len()})
}

type catalogResponse struct {
	Items      int `json:"items"`
	Vocabulary int `json:"vocabulary"`
}

// CatalogInfo handles GET /v1/catalog.
func (s *Server) CatalogInfo(w http.ResponseWriter, _ *http.Request) {
	ix := s.catalog.Index()
	if ix == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_unavailable", domain.ErrEmptyCatalog.Error())
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse{Items: ix.Len(), Vocabulary: len(ix.Vocabulary())})
}

type matchRequest struct {
	Tags []string `json:"tags"`
	K    *int     `json:"k"`
}

type matchItem struct {
	Name    string   `json:"name"`
	Brand   string   `json:"brand,omitempty"`
	Accords []string `json:"accords"`
	URL     string   `json:"url,omitempty"`
	Score   float64  `json:"score"`
}

type matchResponse struct {
	Matches      []matchItem `json:"matches"`
	IgnoredTerms []string    `json:"ignored_terms"`
	HasMatch     bool        `json:"has_match"`
}

// Match handles POST /v1/match.
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if dec.More() {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: unexpected data after JSON object")
		return
	}
	k := defaultK
	if req.K != nil {
		k = *req.K
	}
	ranking, err := s.catalog.Query(req.Tags, k)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rankingToResponse(ranking))
}

func rankingToResponse(r domain.Ranking) matchResponse {
	resp := matchResponse{
		Matches:      make([]matchItem, 0, len(r.Matches)),
		IgnoredTerms: r.IgnoredTerms,
		HasMatch:     r.HasMatch(),
	}
	if resp.IgnoredTerms == nil {
		resp.IgnoredTerms = []string{}
	}
	for _, m := range r.Matches {
		accords := make([]string, 0, len(m.Item.Accords))
		for _, a := range m.Item.Accords {
			if a != "" {
				accords = append(accords, a)
			}
		}
		resp.Matches = append(resp.Matches, matchItem{
			Name:    m.Item.Name,
			Brand:   m.Item.Brand,
			Accords: accords,
			URL:     m.Item.ReferenceURL,
			Score:   m.Score,
		})
	}
	return resp
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrEmptyCatalog):
		s.logger.Warn("match on empty catalog", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "catalog_unavailable", domain.ErrEmptyCatalog.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
