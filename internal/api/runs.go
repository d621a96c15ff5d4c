package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rajasatyajit/IssueRadar/internal/auth"
	"github.com/rajasatyajit/IssueRadar/internal/clustering"
	apperrors "github.com/rajasatyajit/IssueRadar/internal/errors"
	"github.com/rajasatyajit/IssueRadar/internal/ingest"
	"github.com/rajasatyajit/IssueRadar/internal/logger"
	"github.com/rajasatyajit/IssueRadar/internal/models"
)

// MsgNoOrganization is returned when a run cannot be scoped to an organization
const MsgNoOrganization = "No organization found"

// RunFailure is the body of a run request that could not start
type RunFailure struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ClusterRunResponse is the body of POST /v1/cluster/run
type ClusterRunResponse struct {
	OK      bool                     `json:"ok"`
	OrgID   string                   `json:"orgId"`
	Results []clustering.BrandResult `json:"results"`
}

// RiskRunResponse is the body of POST /v1/risk/run
type RiskRunResponse struct {
	OK           bool   `json:"ok"`
	OrgID        string `json:"orgId"`
	IssuesScored int    `json:"issuesScored"`
	Skipped      int    `json:"skipped"`
	Errors       int    `json:"errors"`
	BrandErrors  int    `json:"brandErrors"`
}

// IngestRunResponse is the body of POST /v1/ingest/rss
type IngestRunResponse struct {
	OK           bool                 `json:"ok"`
	OrgID        string               `json:"orgId"`
	TotalNew     int                  `json:"totalNew"`
	TotalSkipped int                  `json:"totalSkipped"`
	Errors       []ingest.SourceError `json:"errors"`
}

// resolveOrganization picks the organization named by ?org=, or the oldest
// one when the parameter is absent. It returns nil when there is none.
func (h *Handler) resolveOrganization(ctx context.Context, r *http.Request) (*models.Organization, error) {
	if id := strings.TrimSpace(r.URL.Query().Get("org")); id != "" {
		org, err := h.store.GetOrganization(ctx, id)
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvalidInput) {
			return nil, nil
		}
		return org, err
	}

	orgs, err := h.store.ListOrganizations(ctx)
	if err != nil || len(orgs) == 0 {
		return nil, err
	}
	return &orgs[0], nil
}

// startRun resolves the organization and writes the failure response itself
// when the run cannot start.
func (h *Handler) startRun(w http.ResponseWriter, r *http.Request, run string) (*models.Organization, bool) {
	ctx := r.Context()

	org, err := h.resolveOrganization(ctx, r)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to resolve organization", "run", run, "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	if org == nil {
		h.writeJSONResponse(w, http.StatusBadRequest, RunFailure{OK: false, Error: MsgNoOrganization})
		return nil, false
	}

	subject := ""
	if p := auth.GetPrincipal(ctx); p != nil {
		subject = p.Subject
	}
	logger.WithContext(ctx).Info("Run requested", "run", run, "organization_id", org.ID, "principal", subject)
	return org, true
}

// clusterRunHandler handles POST /v1/cluster/run
func (h *Handler) clusterRunHandler(w http.ResponseWriter, r *http.Request) {
	org, ok := h.startRun(w, r, "cluster")
	if !ok {
		return
	}

	results, err := h.clusterer.RunOrganization(r.Context(), org.ID)
	if err != nil {
		logger.WithContext(r.Context()).Error("Clustering run failed", "organization_id", org.ID, "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Clustering run failed")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, ClusterRunResponse{OK: true, OrgID: org.ID, Results: results})
}

// riskRunHandler handles POST /v1/risk/run
func (h *Handler) riskRunHandler(w http.ResponseWriter, r *http.Request) {
	org, ok := h.startRun(w, r, "risk")
	if !ok {
		return
	}

	res, err := h.scorer.RunOrganization(r.Context(), org.ID)
	if err != nil {
		logger.WithContext(r.Context()).Error("Risk run failed", "organization_id", org.ID, "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Risk run failed")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, RiskRunResponse{
		OK:           true,
		OrgID:        org.ID,
		IssuesScored: res.IssuesScored,
		Skipped:      res.Skipped,
		Errors:       res.Errors,
		BrandErrors:  res.BrandErrors,
	})
}

// ingestRSSHandler handles POST /v1/ingest/rss
func (h *Handler) ingestRSSHandler(w http.ResponseWriter, r *http.Request) {
	org, ok := h.startRun(w, r, "ingest")
	if !ok {
		return
	}

	res, err := h.ingester.RunOrganization(r.Context(), org.ID)
	if err != nil {
		logger.WithContext(r.Context()).Error("RSS ingest failed", "organization_id", org.ID, "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "RSS ingest failed")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, IngestRunResponse{
		OK:           true,
		OrgID:        org.ID,
		TotalNew:     res.TotalNew,
		TotalSkipped: res.TotalSkipped,
		Errors:       res.Errors,
	})
}
