package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/service"
)

// ComplaintHandler serves complaint endpoints
type ComplaintHandler struct {
	complaints *service.ComplaintService
	logger     *slog.Logger
}

func NewComplaintHandler(complaints *service.ComplaintService, logger *slog.Logger) *ComplaintHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComplaintHandler{complaints: complaints, logger: logger}
}

type CreateComplaintRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	AssignedTo  string `json:"assigned_to"`
	CustomerID  string `json:"customer_id"`
}

type UpdateComplaintRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	AssignedTo  *string `json:"assigned_to"`
}

// List handles GET /api/v1/complaints?status=
func (h *ComplaintHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var filter domain.ComplaintFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.ComplaintStatus(s)
		if !status.Valid() {
			writeError(w, h.logger, r, fmt.Errorf("%w: unknown complaint status %q", domain.ErrValidation, s))
			return
		}
		filter.Status = &status
	}

	complaints, err := h.complaints.List(r.Context(), p, filter)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if complaints == nil {
		complaints = []*domain.Complaint{}
	}
	writeJSON(w, http.StatusOK, complaints)
}

// Create handles POST /api/v1/complaints
func (h *ComplaintHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req CreateComplaintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	assignee, err := parseOptionalUUID(req.AssignedTo)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	customer, err := parseOptionalUUID(req.CustomerID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	complaint, err := h.complaints.Create(r.Context(), p, service.ComplaintInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Priority:    domain.Priority(req.Priority),
		AssignedTo:  assignee,
		CustomerID:  customer,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, complaint)
}

// Get handles GET /api/v1/complaints/{id}
func (h *ComplaintHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	complaint, err := h.complaints.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, complaint)
}

// Update handles PUT /api/v1/complaints/{id}
func (h *ComplaintHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateComplaintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	in := service.ComplaintUpdate{Title: req.Title, Description: req.Description, Type: req.Type}
	if req.Status != nil {
		status := domain.ComplaintStatus(*req.Status)
		in.Status = &status
	}
	if req.Priority != nil {
		priority := domain.Priority(*req.Priority)
		in.Priority = &priority
	}
	if req.AssignedTo != nil {
		// an empty assignee removes the current one
		if in.AssignedTo, err = parseOptionalUUID(*req.AssignedTo); err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		in.Unassign = in.AssignedTo == nil
	}

	complaint, err := h.complaints.Update(r.Context(), p, id, in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, complaint)
}

// Delete handles DELETE /api/v1/complaints/{id}
func (h *ComplaintHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.complaints.Delete(r.Context(), p, id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Classify handles POST /api/v1/complaints/{id}/classify
func (h *ComplaintHandler) Classify(w http.ResponseWriter, r *http.Request) {
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
	complaint, err := h.complaints.Classify(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, complaint)
}
