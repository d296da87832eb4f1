package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/devaulthq/devault/vault"
)

// CreateAPIToken handles POST /tokens. The token binds to one project the
// caller can write to; the raw value appears in this response and nowhere
// else.
func (a *API) CreateAPIToken(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateTokenRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "token name is required")
		return
	}

	ctx := r.Context()
	user := currentUser(ctx)
	project, err := a.store.ProjectByID(ctx, req.ProjectID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if _, err := vault.Authorize(user, project, vault.RoleOwner, vault.RoleAdmin, vault.RoleDeveloper); err != nil {
		a.mapError(w, r, err)
		return
	}

	raw, tok, err := a.vault.CreateAPIToken(ctx, user, req.Name, project.ID, req.ExpiresInDays)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateTokenResponse{Token: raw, APIToken: toTokenResponse(tok)})
}

// ListAPITokens handles GET /tokens.
func (a *API) ListAPITokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := a.vault.ListAPITokens(r.Context(), currentUser(r.Context()))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	out := make([]TokenResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, toTokenResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// RevokeAPIToken handles DELETE /tokens/{tokenID}.
func (a *API) RevokeAPIToken(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tokenID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err := a.vault.RevokeAPIToken(r.Context(), currentUser(r.Context()), id); err != nil {
		a.mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
