package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CreateProject handles POST /projects.
func (a *API) CreateProject(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateProjectRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "project name is required")
		return
	}

	project, envs, err := a.vault.CreateProject(r.Context(), currentUser(r.Context()), req.Name, req.Description)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	resp := toProjectResponse(project)
	resp.Environments = toEnvironmentResponses(envs)
	writeJSON(w, http.StatusCreated, resp)
}

// ListProjects handles GET /projects.
func (a *API) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := a.vault.ListProjects(r.Context(), currentUser(r.Context()))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetProject handles GET /projects/{projectID}.
func (a *API) GetProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, envs, secretCount, err := a.vault.GetProject(ctx, currentUser(ctx), currentProject(ctx).ID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	resp := toProjectResponse(project)
	resp.Environments = toEnvironmentResponses(envs)
	resp.SecretCount = &secretCount
	writeJSON(w, http.StatusOK, resp)
}

// DeleteProject handles DELETE /projects/{projectID}. Owner only.
func (a *API) DeleteProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := a.vault.DeleteProject(ctx, currentUser(ctx), currentProject(ctx)); err != nil {
		a.mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMember handles POST /projects/{projectID}/members.
func (a *API) AddMember(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[AddMemberRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	ctx := r.Context()
	project, err := a.vault.AddMember(ctx, currentUser(ctx), currentProject(ctx), req.Email, req.Role)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

// RemoveMember handles DELETE /projects/{projectID}/members/{userID}.
func (a *API) RemoveMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	ctx := r.Context()
	if err := a.vault.RemoveMember(ctx, currentUser(ctx), currentProject(ctx), memberID); err != nil {
		a.mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEnvironments handles GET /projects/{projectID}/environments.
func (a *API) ListEnvironments(w http.ResponseWriter, r *http.Request) {
	envs, err := a.vault.ListEnvironments(r.Context(), currentProject(r.Context()))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnvironmentResponses(envs))
}

// CreateEnvironment handles POST /projects/{projectID}/environments.
func (a *API) CreateEnvironment(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateEnvironmentRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "environment name is required")
		return
	}
	ctx := r.Context()
	env, err := a.vault.CreateEnvironment(ctx, currentUser(ctx), currentProject(ctx), req.Name)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, EnvironmentResponse{ID: env.ID, Name: env.Name, CreatedAt: env.CreatedAt})
}

// DeleteEnvironment handles DELETE /projects/{projectID}/environments/{envID}.
func (a *API) DeleteEnvironment(w http.ResponseWriter, r *http.Request) {
	envID, err := uuid.Parse(chi.URLParam(r, "envID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	ctx := r.Context()
	if err := a.vault.DeleteEnvironment(ctx, currentUser(ctx), currentProject(ctx), envID); err != nil {
		a.mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
