package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UpsertGlobalSecret handles POST /global-secrets. Re-posting an existing key
// overwrites it in place.
func (a *API) UpsertGlobalSecret(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[GlobalSecretRequest](w, r, maxSecretBodySize)
	if !ok {
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "secret key is required")
		return
	}

	ctx := r.Context()
	secret, err := a.vault.UpsertGlobalSecret(ctx, currentUser(ctx), req.Key, req.Value, req.Service)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGlobalSecretResponse(secret))
}

// ListGlobalSecrets handles GET /global-secrets.
func (a *API) ListGlobalSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := a.vault.ListGlobalSecrets(r.Context(), currentUser(r.Context()))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	out := make([]GlobalSecretResponse, 0, len(secrets))
	for _, s := range secrets {
		out = append(out, toGlobalSecretResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// RevealGlobalSecret handles GET /global-secrets/{secretID}/reveal.
func (a *API) RevealGlobalSecret(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "secretID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	key, value, err := a.vault.RevealGlobalSecret(r.Context(), currentUser(r.Context()), id)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RevealGlobalSecretResponse{Key: key, Value: value})
}

// DeleteGlobalSecret handles DELETE /global-secrets/{secretID}.
func (a *API) DeleteGlobalSecret(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "secretID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err := a.vault.DeleteGlobalSecret(r.Context(), currentUser(r.Context()), id); err != nil {
		a.mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
