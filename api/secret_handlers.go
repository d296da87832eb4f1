package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func pathEnvID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	envID, err := uuid.Parse(chi.URLParam(r, "envID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return uuid.Nil, false
	}
	return envID, true
}

func pathSecretID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	secretID, err := uuid.Parse(chi.URLParam(r, "secretID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return uuid.Nil, false
	}
	return secretID, true
}

// ListSecrets handles GET .../environments/{envID}/secrets. Metadata only.
func (a *API) ListSecrets(w http.ResponseWriter, r *http.Request) {
	envID, ok := pathEnvID(w, r)
	if !ok {
		return
	}
	secrets, err := a.vault.ListSecrets(r.Context(), currentProject(r.Context()), envID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	out := make([]SecretResponse, 0, len(secrets))
	for _, s := range secrets {
		out = append(out, toSecretResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateSecret handles POST .../environments/{envID}/secrets.
func (a *API) CreateSecret(w http.ResponseWriter, r *http.Request) {
	envID, ok := pathEnvID(w, r)
	if !ok {
		return
	}
	req, ok := decodeJSON[CreateSecretRequest](w, r, maxSecretBodySize)
	if !ok {
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "secret key is required")
		return
	}

	ctx := r.Context()
	secret, err := a.vault.CreateSecret(ctx, currentUser(ctx), currentProject(ctx), envID, req.Key, req.Value)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSecretResponse(secret))
}

// UpdateSecret handles PUT .../secrets/{secretID}.
func (a *API) UpdateSecret(w http.ResponseWriter, r *http.Request) {
	envID, ok := pathEnvID(w, r)
	if !ok {
		return
	}
	secretID, ok := pathSecretID(w, r)
	if !ok {
		return
	}
	req, ok := decodeJSON[UpdateSecretRequest](w, r, maxSecretBodySize)
	if !ok {
		return
	}

	ctx := r.Context()
	secret, err := a.vault.UpdateSecret(ctx, currentUser(ctx), currentProject(ctx), envID, secretID, req.Value)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSecretResponse(secret))
}

// DeleteSecret handles DELETE .../secrets/{secretID}.
func (a *API) DeleteSecret(w http.ResponseWriter, r *http.Request) {
	envID, ok := pathEnvID(w, r)
	if !ok {
		return
	}
	secretID, ok := pathSecretID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := a.vault.DeleteSecret(ctx, currentUser(ctx), currentProject(ctx), envID, secretID); err != nil {
		a.mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevealSecret handles GET .../secrets/{secretID}/reveal.
func (a *API) RevealSecret(w http.ResponseWriter, r *http.Request) {
	envID, ok := pathEnvID(w, r)
	if !ok {
		return
	}
	secretID, ok := pathSecretID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	key, value, version, err := a.vault.RevealSecret(ctx, currentUser(ctx), currentProject(ctx), envID, secretID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RevealSecretResponse{Key: key, Value: value, Version: version})
}

// DownloadEnv handles GET .../environments/{envID}/secrets/download: the
// whole environment as dotenv-style plaintext.
func (a *API) DownloadEnv(w http.ResponseWriter, r *http.Request) {
	envID, ok := pathEnvID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	body, _, err := a.vault.DownloadEnv(ctx, currentUser(ctx), currentProject(ctx), envID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=".env"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write(body)
}
