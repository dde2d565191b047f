// Package rest exposes the insights service over HTTP.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

// Service is the part of the insights service the HTTP layer drives.
type Service interface {
	ComputePersonality(ctx context.Context, userID string, windowDays int) (domain.PersonalityResult, error)
	ComputeStress(ctx context.Context, userID string, windowDays int) (domain.StressResult, error)
	ComputeRecommendations(ctx context.Context, userID string, k int) ([]domain.Recommendation, error)
	Ingest(ctx context.Context, userID string, batch domain.IngestBatch) (domain.IngestResult, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc     Service
	store   Pinger
	timeout time.Duration
	maxBody int64
	router  chi.Router
}

// Option customizes a Handler.
type Option func(*Handler)

// WithReadiness makes /health report the store's reachability.
func WithReadiness(p Pinger) Option {
	return func(h *Handler) { h.store = p }
}

// WithRequestTimeout bounds each request's context.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithMaxBodyBytes caps the size of ingestion payloads.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc Service, opts ...Option) *Handler {
	h := &Handler{
		svc:     svc,
		maxBody: 10 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(chimiddleware.Recoverer)
	if h.timeout > 0 {
		r.Use(chimiddleware.Timeout(h.timeout))
	}

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/personality", h.GetPersonality)
		r.Get("/stress", h.GetStress)
		r.Get("/recommendations", h.GetRecommendations)
		r.Post("/events", h.PostEvents)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	h.router = r
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

// HealthCheck reports liveness, and store readiness when configured.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		logger(r).Warn().Err(err).Msg("store ping failed")
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Store: "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: "ok"})
}
