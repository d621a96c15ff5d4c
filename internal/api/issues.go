package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/rajasatyajit/IssueRadar/internal/errors"
	"github.com/rajasatyajit/IssueRadar/internal/logger"
)

const (
	defaultIssueLimit = 50
	maxIssueLimit     = 200
)

func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultIssueLimit, nil
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit: %s", limitStr)
	}
	if limit < 1 || limit > maxIssueLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", maxIssueLimit)
	}
	return limit, nil
}

// listOrganizationsHandler handles GET /v1/organizations
func (h *Handler) listOrganizationsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgs, err := h.store.ListOrganizations(ctx)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to list organizations", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"data":      orgs,
		"count":     len(orgs),
		"timestamp": time.Now().UTC(),
	})
}

// listBrandsHandler handles GET /v1/organizations/{orgID}/brands
func (h *Handler) listBrandsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := chi.URLParam(r, "orgID")

	if _, err := h.store.GetOrganization(ctx, orgID); err != nil {
		h.writeLookupError(w, r, err, "Organization not found")
		return
	}

	brands, err := h.store.ListBrands(ctx, orgID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to list brands", "error", err, "organization_id", orgID)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"data":      brands,
		"count":     len(brands),
		"timestamp": time.Now().UTC(),
	})
}

// listIssuesHandler handles GET /v1/brands/{brandID}/issues
func (h *Handler) listIssuesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brandID := chi.URLParam(r, "brandID")

	limit, err := parseLimit(r)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.store.GetBrand(ctx, brandID); err != nil {
		h.writeLookupError(w, r, err, "Brand not found")
		return
	}

	overviews, err := h.store.ListIssueOverviews(ctx, brandID, limit)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to list issues", "error", err, "brand_id", brandID)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"data":      overviews,
		"count":     len(overviews),
		"timestamp": time.Now().UTC(),
	})
}

// writeLookupError maps a failed single-row lookup to 404 or 500
func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvalidInput) {
		h.writeErrorResponse(w, r, http.StatusNotFound, notFound)
		return
	}
	logger.WithContext(r.Context()).Error("Lookup failed", "error", err, "path", r.URL.Path)
	h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
}
