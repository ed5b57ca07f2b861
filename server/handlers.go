package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-auth/users"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	ID uuid.UUID `json:"id"`
}

// userResponse is the public view of a user. It never carries the hash.
type userResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func newUserResponse(u *users.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

// RegisterHandler creates an account and logs it in.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := s.validator.decode(w, r, schemaRegister, &req); err != nil {
			writeError(w, r, err)
			return
		}

		id, err := s.auth.Register(r.Context(), req.Name, req.Email, req.Password, s.sessionSetter(w, r))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, registerResponse{ID: id})
	}
}

// LoginHandler checks credentials and sets the session cookie.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := s.validator.decode(w, r, schemaLogin, &req); err != nil {
			writeError(w, r, err)
			return
		}

		user, err := s.auth.Login(r.Context(), req.Email, req.Password, s.sessionSetter(w, r))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newUserResponse(user))
	}
}

// LogoutHandler expires the session cookie. It succeeds with or without a
// session.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.auth.Logout(s.sessionClearer(w, r))
		w.WriteHeader(http.StatusNoContent)
	}
}

// MeHandler returns the user resolved by RequireSession.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeDetail(w, http.StatusUnauthorized, detailNotAuthenticated)
			return
		}
		writeJSON(w, http.StatusOK, newUserResponse(user))
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
