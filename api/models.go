package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/devaulthq/devault/vault"
)

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of an account. Password hashes, TOTP
// secrets and refresh tokens never appear here.
type UserResponse struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Plan             vault.Plan `json:"plan"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func toUserResponse(u *vault.User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Plan:             u.Plan,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
	}
}

// AuthResponse is returned from register, completed logins and refresh.
type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// TwoFactorChallengeResponse is returned from POST /auth/login when the
// account has a second factor enabled. TempToken is only accepted by
// POST /auth/login/2fa.
type TwoFactorChallengeResponse struct {
	RequiresTwoFactor bool   `json:"requiresTwoFactor"`
	TempToken         string `json:"tempToken"`
}

// TwoFactorLoginRequest is the JSON body for POST /auth/login/2fa.
type TwoFactorLoginRequest struct {
	Code string `json:"code"`
}

// RefreshRequest is the JSON body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TwoFactorSetupResponse is returned from POST /auth/2fa/setup.
type TwoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
	QRCode     string `json:"qrCode"`
}

// TwoFactorCodeRequest is the JSON body for 2FA verify and disable.
type TwoFactorCodeRequest struct {
	Code string `json:"code"`
}

// CreateProjectRequest is the JSON body for POST /projects.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// EnvironmentResponse describes one environment.
type EnvironmentResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func toEnvironmentResponses(envs []*vault.Environment) []EnvironmentResponse {
	out := make([]EnvironmentResponse, 0, len(envs))
	for _, env := range envs {
		out = append(out, EnvironmentResponse{ID: env.ID, Name: env.Name, CreatedAt: env.CreatedAt})
	}
	return out
}

// ProjectResponse describes a project, optionally with its environments and
// total secret count.
type ProjectResponse struct {
	ID           uuid.UUID             `json:"id"`
	Name         string                `json:"name"`
	Description  string                `json:"description,omitempty"`
	OwnerID      uuid.UUID             `json:"ownerId"`
	Members      []vault.Member        `json:"members"`
	Environments []EnvironmentResponse `json:"environments,omitempty"`
	SecretCount  *int                  `json:"secretCount,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

func toProjectResponse(p *vault.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		Members:     p.Members,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// AddMemberRequest is the JSON body for POST /projects/{projectID}/members.
type AddMemberRequest struct {
	Email string     `json:"email"`
	Role  vault.Role `json:"role"`
}

// CreateEnvironmentRequest is the JSON body for POST .../environments.
type CreateEnvironmentRequest struct {
	Name string `json:"name"`
}

// SecretResponse is a secret's metadata; values only leave through reveal and
// download.
type SecretResponse struct {
	ID            uuid.UUID `json:"id"`
	EnvironmentID uuid.UUID `json:"environmentId"`
	Key           string    `json:"key"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toSecretResponse(s *vault.Secret) SecretResponse {
	return SecretResponse{
		ID:            s.ID,
		EnvironmentID: s.EnvironmentID,
		Key:           s.Key,
		Version:       s.Version,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// CreateSecretRequest is the JSON body for POST .../secrets.
type CreateSecretRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// UpdateSecretRequest is the JSON body for PUT .../secrets/{secretID}.
type UpdateSecretRequest struct {
	Value string `json:"value"`
}

// RevealSecretResponse is returned from GET .../secrets/{secretID}/reveal.
type RevealSecretResponse struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Version int    `json:"version"`
}

// GlobalSecretRequest is the JSON body for POST /global-secrets.
type GlobalSecretRequest struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Service string `json:"service,omitempty"`
}

// GlobalSecretResponse is a global secret's metadata.
type GlobalSecretResponse struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	Service   string    `json:"service,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toGlobalSecretResponse(g *vault.GlobalSecret) GlobalSecretResponse {
	return GlobalSecretResponse{
		ID:        g.ID,
		Key:       g.Key,
		Service:   g.Service,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

// RevealGlobalSecretResponse is returned from GET /global-secrets/{id}/reveal.
type RevealGlobalSecretResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CreateTokenRequest is the JSON body for POST /tokens.
type CreateTokenRequest struct {
	Name          string    `json:"name"`
	ProjectID     uuid.UUID `json:"projectId"`
	ExpiresInDays int       `json:"expiresInDays,omitempty"`
}

// TokenResponse describes an API token; the hash never appears.
type TokenResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	ProjectID uuid.UUID  `json:"projectId"`
	ExpiresAt time.Time  `json:"expiresAt"`
	LastUsed  *time.Time `json:"lastUsed,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toTokenResponse(t *vault.APIToken) TokenResponse {
	return TokenResponse{
		ID:        t.ID,
		Name:      t.Name,
		ProjectID: t.ProjectID,
		ExpiresAt: t.ExpiresAt,
		LastUsed:  t.LastUsed,
		CreatedAt: t.CreatedAt,
	}
}

// CreateTokenResponse is returned from POST /tokens; Token is the raw value,
// shown exactly once.
type CreateTokenResponse struct {
	Token    string        `json:"token"`
	APIToken TokenResponse `json:"apiToken"`
}
