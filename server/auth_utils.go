package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-session-auth/auth"
	"github.com/jrsteele09/go-session-auth/internal/utils"
	"github.com/jrsteele09/go-session-auth/token"
)

// TokenCookieName is the cookie carrying the session token.
const TokenCookieName = "token"

// TokenFromRequest returns the session token from the request's cookie, and
// false when there is none.
func TokenFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(TokenCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// isSecure reports whether the session cookie gets the Secure attribute:
// COOKIE_SECURE when set, otherwise whether the request came over HTTPS.
func (s *Server) isSecure(r *http.Request) bool {
	return utils.ValueOr(s.config.GetCookieSecure(), getScheme(r) == "https")
}

// sessionSetter writes the session cookie for a freshly issued token. The
// cookie lives exactly as long as the token.
func (s *Server) sessionSetter(w http.ResponseWriter, r *http.Request) auth.SessionSetter {
	return func(t token.Token) {
		http.SetCookie(w, &http.Cookie{
			Name:     TokenCookieName,
			Value:    t.Value,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.isSecure(r),
			SameSite: http.SameSiteLaxMode,
			Expires:  t.ExpiresAt.UTC(),
			MaxAge:   int(t.ExpiresAt.Sub(t.IssuedAt) / time.Second),
		})
	}
}

// sessionClearer expires the session cookie with the attributes it was set
// with, so the browser drops it.
func (s *Server) sessionClearer(w http.ResponseWriter, r *http.Request) auth.SessionClearer {
	return func() {
		http.SetCookie(w, &http.Cookie{
			Name:     TokenCookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   s.isSecure(r),
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
		})
	}
}
