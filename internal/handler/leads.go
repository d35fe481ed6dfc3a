package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/service"
)

// LeadHandler serves lead endpoints
type LeadHandler struct {
	leads  *service.LeadService
	logger *slog.Logger
}

func NewLeadHandler(leads *service.LeadService, logger *slog.Logger) *LeadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeadHandler{leads: leads, logger: logger}
}

// CreateLeadRequest has no organization field; the lead always lands in
// the caller's organization whatever the body says.
type CreateLeadRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	AssignedTo string `json:"assigned_to"`
}

type UpdateLeadRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Status     *string `json:"status"`
	AssignedTo *string `json:"assigned_to"`
}

// List handles GET /api/v1/leads?status=&assigned_to=
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var filter domain.LeadFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.LeadStatus(s)
		if !status.Valid() {
			writeError(w, h.logger, r, fmt.Errorf("%w: unknown lead status %q", domain.ErrValidation, s))
			return
		}
		filter.Status = &status
	}
	if filter.AssignedTo, err = parseOptionalUUID(r.URL.Query().Get("assigned_to")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	leads, err := h.leads.List(r.Context(), p, filter)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if leads == nil {
		leads = []*domain.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

// Create handles POST /api/v1/leads
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req CreateLeadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	assignee, err := parseOptionalUUID(req.AssignedTo)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	lead, err := h.leads.Create(r.Context(), p, service.LeadInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		AssignedTo: assignee,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// Get handles GET /api/v1/leads/{id}
func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	lead, err := h.leads.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// Update handles PUT /api/v1/leads/{id}
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateLeadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	in := service.LeadUpdate{Name: req.Name, Email: req.Email, Phone: req.Phone}
	if req.Status != nil {
		status := domain.LeadStatus(*req.Status)
		in.Status = &status
	}
	if req.AssignedTo != nil {
		// an empty assignee removes the current one
		if in.AssignedTo, err = parseOptionalUUID(*req.AssignedTo); err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		in.Unassign = in.AssignedTo == nil
	}

	lead, err := h.leads.Update(r.Context(), p, id, in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// Delete handles DELETE /api/v1/leads/{id}
func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.leads.Delete(r.Context(), p, id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Score handles POST /api/v1/leads/{id}/score
func (h *LeadHandler) Score(w http.ResponseWriter, r *http.Request) {
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
	lead, err := h.leads.Rescore(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}
