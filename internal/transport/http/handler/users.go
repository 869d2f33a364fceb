package handler

import (
	"encoding/json"
	"net/http"

	"github.com/forum-api/internal/application/auth"
	"github.com/forum-api/internal/application/user"
	"github.com/forum-api/internal/domain"
	"github.com/forum-api/internal/pkg/validate"
	"github.com/forum-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// UserHandler handles profile endpoints and the admin suspend action.
type UserHandler struct {
	svc     user.Service
	authSvc auth.Service
}

func NewUserHandler(svc user.Service, authSvc auth.Service) *UserHandler {
	return &UserHandler{svc: svc, authSvc: authSvc}
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	targetID := chi.URLParam(r, "id")
	if callerID != targetID && !h.callerIsAdmin(r) {
		writeError(w, http.StatusForbidden, "cannot update another user")
		return
	}
	var req domain.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	u, err := h.svc.Update(r.Context(), targetID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	if err := h.authSvc.Suspend(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "user suspended"})
}

func (h *UserHandler) callerIsAdmin(r *http.Request) bool {
	callerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return false
	}
	caller, err := h.svc.Get(r.Context(), callerID)
	return err == nil && caller.Role == domain.RoleAdmin
}
