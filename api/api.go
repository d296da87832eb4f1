// Package api exposes the vault over a versioned JSON REST surface.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/devaulthq/devault/audit"
	"github.com/devaulthq/devault/token"
	"github.com/devaulthq/devault/vault"
)

// Store is the combined persistence surface the handlers need.
type Store interface {
	vault.Store
	audit.Store
}

// API holds the dependencies needed by the REST handlers.
type API struct {
	store   Store
	vault   *vault.Service
	tokens  *token.Service
	trail   *audit.Trail
	logger  *slog.Logger
	appName string
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithAppName sets the issuer name used in TOTP provisioning URLs.
func WithAppName(name string) Option {
	return func(a *API) {
		a.appName = name
	}
}

// New creates a new API instance.
func New(store Store, vaultSvc *vault.Service, tokens *token.Service, trail *audit.Trail, opts ...Option) *API {
	a := &API{
		store:   store,
		vault:   vaultSvc,
		tokens:  tokens,
		trail:   trail,
		appName: "DeVault",
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(a.clientIPMiddleware)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Post("/auth/register", a.Register)
	r.Post("/auth/login", a.Login)
	r.Post("/auth/login/2fa", a.LoginTwoFactor)
	r.Post("/auth/refresh", a.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware)

		r.Get("/auth/me", a.Me)
		r.Post("/auth/2fa/setup", a.SetupTwoFactor)
		r.Post("/auth/2fa/verify", a.VerifyTwoFactor)
		r.Post("/auth/2fa/disable", a.DisableTwoFactor)

		r.Post("/projects", a.CreateProject)
		r.Get("/projects", a.ListProjects)

		r.Route("/projects/{projectID}", func(r chi.Router) {
			anyRole := []vault.Role{vault.RoleOwner, vault.RoleAdmin, vault.RoleDeveloper, vault.RoleViewer}
			writeRoles := []vault.Role{vault.RoleOwner, vault.RoleAdmin, vault.RoleDeveloper}
			adminRoles := []vault.Role{vault.RoleOwner, vault.RoleAdmin}

			r.With(a.RequireRole(anyRole...)).Get("/", a.GetProject)
			r.With(a.RequireRole(vault.RoleOwner)).Delete("/", a.DeleteProject)

			r.With(a.RequireRole(adminRoles...)).Post("/members", a.AddMember)
			r.With(a.RequireRole(adminRoles...)).Delete("/members/{userID}", a.RemoveMember)

			r.With(a.RequireRole(anyRole...)).Get("/environments", a.ListEnvironments)
			r.With(a.RequireRole(adminRoles...)).Post("/environments", a.CreateEnvironment)
			r.With(a.RequireRole(adminRoles...)).Delete("/environments/{envID}", a.DeleteEnvironment)

			r.Route("/environments/{envID}/secrets", func(r chi.Router) {
				r.With(a.RequireRole(anyRole...)).Get("/", a.ListSecrets)
				r.With(a.RequireRole(writeRoles...)).Post("/", a.CreateSecret)
				r.With(a.RequireRole(writeRoles...)).Get("/download", a.DownloadEnv)
				r.With(a.RequireRole(writeRoles...)).Put("/{secretID}", a.UpdateSecret)
				r.With(a.RequireRole(adminRoles...)).Delete("/{secretID}", a.DeleteSecret)
				r.With(a.RequireRole(anyRole...)).Get("/{secretID}/reveal", a.RevealSecret)
			})
		})

		r.Post("/global-secrets", a.UpsertGlobalSecret)
		r.Get("/global-secrets", a.ListGlobalSecrets)
		r.Get("/global-secrets/{secretID}/reveal", a.RevealGlobalSecret)
		r.Delete("/global-secrets/{secretID}", a.DeleteGlobalSecret)

		r.Post("/tokens", a.CreateAPIToken)
		r.Get("/tokens", a.ListAPITokens)
		r.Delete("/tokens/{tokenID}", a.RevokeAPIToken)

		r.Get("/audit", a.ListAuditEntries)
	})

	return r
}
