package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/service"
)

// UserHandler serves user administration endpoints
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{users: users, logger: logger}
}

type UpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Role      *string `json:"role"`
	Active    *bool   `json:"is_active"`
}

// List handles GET /api/v1/users?role=&active=true
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var filter domain.UserFilter
	if s := r.URL.Query().Get("role"); s != "" {
		role, err := domain.ParseRole(s)
		if err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		filter.Role = &role
	}
	filter.ActiveOnly = r.URL.Query().Get("active") == "true"

	users, err := h.users.List(r.Context(), p, filter)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if users == nil {
		users = []*domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	user, err := h.users.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Update handles PUT /api/v1/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	in := service.UserUpdate{FirstName: req.FirstName, LastName: req.LastName, Email: req.Email, Active: req.Active}
	if req.Role != nil {
		role, err := domain.ParseRole(*req.Role)
		if err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		in.Role = &role
	}

	user, err := h.users.Update(r.Context(), p, id, in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete handles DELETE /api/v1/users/{id}. Users are deactivated unless
// ?hard=true is given, which only system admins may use.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if r.URL.Query().Get("hard") == "true" {
		err = h.users.Delete(r.Context(), p, id)
	} else {
		err = h.users.Deactivate(r.Context(), p, id)
	}
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
