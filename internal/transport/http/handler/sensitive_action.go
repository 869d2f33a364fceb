package handler

import (
	"encoding/json"
	"net/http"

	"github.com/forum-api/internal/application/auth"
	"github.com/forum-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// SensitiveActionHandler handles step-up confirmation for dangerous
// operations. The subject always comes from the access token, never from
// the request body.
type SensitiveActionHandler struct {
	svc auth.Service
}

func NewSensitiveActionHandler(svc auth.Service) *SensitiveActionHandler {
	return &SensitiveActionHandler{svc: svc}
}

func (h *SensitiveActionHandler) Action(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch chi.URLParam(r, "action") {
	case "request":
		if err := h.svc.RequestSensitiveAction(r.Context(), userID); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code sent"})
	case "confirm":
		var req struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
			writeError(w, http.StatusBadRequest, "code required")
			return
		}
		outcome, err := h.svc.ConfirmSensitiveAction(r.Context(), userID, req.Code)
		if err != nil {
			httpError(w, err)
			return
		}
		writeOutcome(w, outcome)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
