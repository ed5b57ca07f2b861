package server

import (
	"encoding/json"
	"errors"
	"net/http"

	autherrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Client-facing error details.
const (
	detailAlreadyExists      = "User already exists"
	detailInvalidCredentials = "Invalid credentials"
	detailNotAuthenticated   = "Not authenticated"
	detailInvalidToken       = "Invalid token"
	detailExpiredToken       = "Expired token"
	detailUserNotFound       = "User not found"
	detailInternal           = "Internal server error"
)

type detailResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

// writeError maps an auth error to its status and detail. Anything outside
// the taxonomy is logged and reported as a 500 without its message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *invalidRequestError
	switch {
	case errors.As(err, &invalid):
		writeDetail(w, http.StatusUnprocessableEntity, invalid.detail)
	case errors.Is(err, autherrors.ErrAlreadyExists):
		writeDetail(w, http.StatusBadRequest, detailAlreadyExists)
	case errors.Is(err, autherrors.ErrInvalidCredentials):
		writeDetail(w, http.StatusUnauthorized, detailInvalidCredentials)
	case errors.Is(err, autherrors.ErrNotAuthenticated):
		writeDetail(w, http.StatusUnauthorized, detailNotAuthenticated)
	case errors.Is(err, autherrors.ErrExpiredToken):
		writeDetail(w, http.StatusUnauthorized, detailExpiredToken)
	case errors.Is(err, autherrors.ErrInvalidToken):
		writeDetail(w, http.StatusUnauthorized, detailInvalidToken)
	case errors.Is(err, autherrors.ErrUserNotFound):
		writeDetail(w, http.StatusUnauthorized, detailUserNotFound)
	default:
		log.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeDetail(w, http.StatusInternalServerError, detailInternal)
	}
}
