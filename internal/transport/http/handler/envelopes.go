package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/forum-api/internal/application/verification"
	"github.com/forum-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// TokenEnvelope wraps login/refresh responses.
type TokenEnvelope struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Error        string `json:"error,omitempty"`
}

// OutcomeEnvelope wraps verification-code confirmation responses.
type OutcomeEnvelope struct {
	Outcome verification.Outcome `json:"outcome"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps domain sentinel errors to HTTP statuses. Unauthorized
// responses deliberately carry a fixed message so credential failures are
// indistinguishable from each other.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrLocked):
		writeError(w, http.StatusLocked, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeOutcome renders a code-validation outcome. CONSUMED is the only
// success; LOCKED gets its own status so clients can distinguish "try again"
// from "request a new code".
func writeOutcome(w http.ResponseWriter, outcome verification.Outcome) {
	switch outcome {
	case verification.OutcomeConsumed:
		writeJSON(w, http.StatusOK, OutcomeEnvelope{Outcome: outcome})
	case verification.OutcomeLocked:
		writeJSON(w, http.StatusLocked, OutcomeEnvelope{Outcome: outcome})
	default:
		writeJSON(w, http.StatusBadRequest, OutcomeEnvelope{Outcome: outcome})
	}
}
