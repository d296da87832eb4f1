package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/devaulthq/devault/crypto"
	"github.com/devaulthq/devault/token"
	"github.com/devaulthq/devault/vault"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// mapError translates domain errors into HTTP responses. Integrity and other
// internal failures collapse to a generic 500; the detail stays in the logs.
func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, vault.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, vault.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, vault.ErrNotMember):
		writeError(w, http.StatusForbidden, "not a member of this project")
	case errors.Is(err, vault.ErrDenied):
		writeError(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, vault.ErrProjectLimit):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, vault.ErrCannotRemoveOwner):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, token.ErrExpired), errors.Is(err, token.ErrInvalid):
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, crypto.ErrIntegrity):
		a.logger.Error("integrity failure", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		a.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
