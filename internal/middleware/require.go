package middleware

import (
	"net/http"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// RequireAuthenticated rejects requests whose session is anonymous.
// Must be applied after the Session middleware.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := auth.SessionFromContext(r.Context())
		if sess == nil || !sess.IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
