package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-session-auth/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyUser stores the user resolved from the session cookie
const ContextKeyUser ContextKey = "user"

// RequireSession resolves the session cookie to a user and stores it in the
// request context. Any resolution failure ends the request with 401.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, _ := TokenFromRequest(r)

			user, err := s.auth.ResolveCurrentUser(r.Context(), raw)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next(w, r.WithContext(ctx))
		}
	}
}

// UserFromContext returns the user stored by RequireSession.
func UserFromContext(ctx context.Context) (*users.User, bool) {
	user, ok := ctx.Value(ContextKeyUser).(*users.User)
	return user, ok && user != nil
}
