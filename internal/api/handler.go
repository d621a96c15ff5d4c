package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rajasatyajit/IssueRadar/internal/auth"
	"github.com/rajasatyajit/IssueRadar/internal/clustering"
	"github.com/rajasatyajit/IssueRadar/internal/ingest"
	middlewares "github.com/rajasatyajit/IssueRadar/internal/middleware"
	"github.com/rajasatyajit/IssueRadar/internal/risk"
	"github.com/rajasatyajit/IssueRadar/internal/store"
)

// Clusterer runs a clustering pass over an organization
type Clusterer interface {
	RunOrganization(ctx context.Context, organizationID string) ([]clustering.BrandResult, error)
}

// Scorer runs a risk scoring pass over an organization
type Scorer interface {
	RunOrganization(ctx context.Context, organizationID string) (risk.Result, error)
}

// Ingester runs RSS ingestion for an organization
type Ingester interface {
	RunOrganization(ctx context.Context, organizationID string) (ingest.Result, error)
}

// Config carries the HTTP-level settings of the handler
type Config struct {
	Verifier      *auth.Verifier
	AuthHeader    string
	RunsPerMinute int

	Version   string
	BuildTime string
	GitCommit string
}

// Handler handles HTTP requests for the API
type Handler struct {
	store     store.Store
	clusterer Clusterer
	scorer    Scorer
	ingester  Ingester
	cfg       Config
	startTime time.Time
}

// NewHandler creates a new API handler
func NewHandler(st store.Store, c Clusterer, s Scorer, i Ingester, cfg Config) *Handler {
	return &Handler{
		store:     st,
		clusterer: c,
		scorer:    s,
		ingester:  i,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		// Health check endpoints
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)

		// Read model
		r.Get("/organizations", h.listOrganizationsHandler)
		r.Get("/organizations/{orgID}/brands", h.listBrandsHandler)
		r.Get("/brands/{brandID}/issues", h.listIssuesHandler)

		// Runs
		r.Group(func(r chi.Router) {
			r.Use(middlewares.OperatorAuth(h.cfg.Verifier, h.cfg.AuthHeader))
			r.Use(middlewares.RateLimit(h.cfg.RunsPerMinute))

			r.Post("/cluster/run", h.clusterRunHandler)
			r.Post("/risk/run", h.riskRunHandler)
			r.Post("/ingest/rss", h.ingestRSSHandler)
		})

		// System info
		r.Get("/version", h.versionHandler)
	})

	// Root health check
	r.Get("/health", h.healthHandler)
}

// healthHandler provides basic health check
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.cfg.Version,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"store": "ok",
	}

	statusCode := http.StatusOK
	status := "ready"

	if err := h.store.Health(ctx); err != nil {
		checks["store"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}

	h.writeJSONResponse(w, statusCode, response)
}

// livenessHandler checks if the application is alive
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// versionHandler returns version information
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version":    h.cfg.Version,
		"build_time": h.cfg.BuildTime,
		"git_commit": h.cfg.GitCommit,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: r.Header.Get("X-Request-ID"),
	}

	h.writeJSONResponse(w, statusCode, response)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
