package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/service"
)

// OrganizationHandler serves tenant management endpoints
type OrganizationHandler struct {
	orgs   *service.OrganizationService
	logger *slog.Logger
}

func NewOrganizationHandler(orgs *service.OrganizationService, logger *slog.Logger) *OrganizationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrganizationHandler{orgs: orgs, logger: logger}
}

type CreateOrganizationRequest struct {
	Name      string  `json:"name"`
	StorageID *string `json:"storage_id"`
	Tier      string  `json:"subscription_tier"`
}

type UpdateOrganizationRequest struct {
	Name      *string `json:"name"`
	StorageID *string `json:"storage_id"`
	Active    *bool   `json:"is_active"`
}

type UpgradeSubscriptionRequest struct {
	Tier string `json:"subscription_tier"`
}

// List handles GET /api/v1/organizations
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	orgs, err := h.orgs.List(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if orgs == nil {
		orgs = []*domain.Organization{}
	}
	writeJSON(w, http.StatusOK, orgs)
}

// Create handles POST /api/v1/organizations
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req CreateOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	org, err := h.orgs.Create(r.Context(), p, service.OrganizationInput{
		Name:      req.Name,
		StorageID: req.StorageID,
		Tier:      domain.SubscriptionTier(req.Tier),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

// Get handles GET /api/v1/organizations/{id}
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	org, err := h.orgs.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// Update handles PUT /api/v1/organizations/{id}
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req UpdateOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	org, err := h.orgs.Update(r.Context(), p, id, service.OrganizationUpdate{
		Name:      req.Name,
		StorageID: req.StorageID,
		Active:    req.Active,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// UpgradeSubscription handles PUT /api/v1/organizations/{id}/subscription
func (h *OrganizationHandler) UpgradeSubscription(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req UpgradeSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	tier, err := domain.ParseTier(req.Tier)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	org, err := h.orgs.UpgradeSubscription(r.Context(), p, id, tier)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// Delete handles DELETE /api/v1/organizations/{id}
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if err := h.orgs.Delete(r.Context(), p, id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
