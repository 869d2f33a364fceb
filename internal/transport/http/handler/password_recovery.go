package handler

import (
	"encoding/json"
	"net/http"

	"github.com/forum-api/internal/application/auth"
	"github.com/forum-api/internal/pkg/validate"
	"github.com/go-chi/chi/v5"
)

// PasswordRecoveryHandler handles the password reset flow.
type PasswordRecoveryHandler struct {
	svc auth.Service
}

func NewPasswordRecoveryHandler(svc auth.Service) *PasswordRecoveryHandler {
	return &PasswordRecoveryHandler{svc: svc}
}

type recoveryRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

type recoveryConfirmRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

func (h *PasswordRecoveryHandler) Action(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "request":
		var req recoveryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if err := h.svc.RequestPasswordReset(r.Context(), req.Identifier); err != nil {
			httpError(w, err)
			return
		}
		// Same answer for known and unknown identifiers.
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "if the account exists, a code was sent"})
	case "confirm":
		var req recoveryConfirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		outcome, err := h.svc.ConfirmPasswordReset(r.Context(), req.UserID, req.Code, req.NewPassword)
		if err != nil {
			httpError(w, err)
			return
		}
		writeOutcome(w, outcome)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
