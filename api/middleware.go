package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/devaulthq/devault/audit"
	"github.com/devaulthq/devault/credentials"
	"github.com/devaulthq/devault/vault"
)

type contextKey int

const (
	currentUserKey contextKey = iota
	authMethodKey
	boundProjectKey
	projectKey
	roleKey
)

const (
	authMethodJWT    = "jwt"
	authMethodAPIKey = "apikey"
)

func (a *API) clientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.WithClientIP(r.Context(), clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware authenticates either a programmatic API key or a bearer
// access token. Every failure mode returns the same generic 401; the cause
// goes to the log only.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if raw := r.Header.Get("X-API-Key"); raw != "" {
			tok, err := a.store.APITokenByHash(ctx, credentials.HashAPIToken(raw), time.Now().UTC())
			if err != nil {
				a.logger.Info("api key rejected", "error", err)
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			user, err := a.store.UserByID(ctx, tok.UserID)
			if err != nil {
				a.logger.Error("api key user lookup failed", "token_id", tok.ID, "error", err)
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if err := a.store.TouchAPIToken(ctx, tok.ID, time.Now().UTC()); err != nil {
				a.logger.Warn("updating token last-used failed", "token_id", tok.ID, "error", err)
			}

			ctx = context.WithValue(ctx, currentUserKey, user)
			ctx = context.WithValue(ctx, authMethodKey, authMethodAPIKey)
			ctx = context.WithValue(ctx, boundProjectKey, tok.ProjectID)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		header := r.Header.Get("Authorization")
		bearer, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || bearer == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		userID, err := a.tokens.ParseAccess(bearer)
		if err != nil {
			a.logger.Info("access token rejected", "error", err)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		user, err := a.store.UserByID(ctx, userID)
		if err != nil {
			a.logger.Info("access token user lookup failed", "error", err)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx = context.WithValue(ctx, currentUserKey, user)
		ctx = context.WithValue(ctx, authMethodKey, authMethodJWT)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole loads the project from the URL, runs the role policy for the
// current user and stores the project on the context for the handler. An API
// key only ever reaches the project it was minted for.
func (a *API) RequireRole(allowed ...vault.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
			if err != nil {
				writeError(w, http.StatusNotFound, "not found")
				return
			}

			if method, _ := ctx.Value(authMethodKey).(string); method == authMethodAPIKey {
				bound, _ := ctx.Value(boundProjectKey).(uuid.UUID)
				if bound != projectID {
					writeError(w, http.StatusForbidden, "insufficient permissions")
					return
				}
			}

			project, err := a.store.ProjectByID(ctx, projectID)
			if err != nil {
				a.mapError(w, r, err)
				return
			}
			role, err := vault.Authorize(currentUser(ctx), project, allowed...)
			if err != nil {
				a.mapError(w, r, err)
				return
			}

			ctx = context.WithValue(ctx, projectKey, project)
			ctx = context.WithValue(ctx, roleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func currentUser(ctx context.Context) *vault.User {
	user, _ := ctx.Value(currentUserKey).(*vault.User)
	return user
}

func currentProject(ctx context.Context) *vault.Project {
	project, _ := ctx.Value(projectKey).(*vault.Project)
	return project
}
