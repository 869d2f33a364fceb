package middleware

import (
	"context"
	"net/http"

	"github.com/forum-api/internal/domain"
)

type userGetter interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// RequireRole returns middleware that allows access only to users whose role
// matches one of the provided role names. The role lives in the store, not in
// the token, so a role change or suspension takes effect on the next request
// rather than at token expiry.
func RequireRole(users userGetter, allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			u, err := users.Get(r.Context(), userID)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if u.Status == domain.StatusSuspended {
				writeJSONError(w, http.StatusForbidden, "account suspended")
				return
			}
			for _, role := range allowedRoles {
				if u.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, "forbidden")
		})
	}
}
