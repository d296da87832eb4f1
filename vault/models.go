// Package vault holds the domain model and the orchestration service for the
// secrets vault: projects, environments, encrypted secrets, membership roles
// and API tokens.
package vault

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/devaulthq/devault/crypto"
)

// Plan is a user's subscription tier; it governs the project quota.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanTeam Plan = "team"
)

// ProjectLimit returns how many projects a plan may own; -1 means unlimited.
// Unknown plans fall back to the free tier.
func (p Plan) ProjectLimit() int {
	switch p {
	case PlanPro:
		return 20
	case PlanTeam:
		return -1
	default:
		return 3
	}
}

// Role is a member's role within a project. Endpoints declare explicit
// allowed-role sets; there is no implicit hierarchy.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleViewer    Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleDeveloper, RoleViewer:
		return true
	}
	return false
}

var emailFolder = cases.Fold()

// NormalizeEmail canonicalizes an email address for the case-insensitive
// uniqueness check.
func NormalizeEmail(email string) string {
	return emailFolder.String(strings.TrimSpace(email))
}

// User is an account identity. RefreshToken holds the single currently valid
// refresh token; it is rotated on every login and refresh, which models one
// active session chain per user.
type User struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	PasswordHash     string    `json:"passwordHash"`
	Plan             Plan      `json:"plan"`
	TwoFactorSecret  string    `json:"twoFactorSecret,omitempty"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	RefreshToken     string    `json:"refreshToken,omitempty"`
	Verified         bool      `json:"verified"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Member ties a user to a project with a role.
type Member struct {
	UserID  uuid.UUID `json:"userId"`
	Role    Role      `json:"role"`
	AddedAt time.Time `json:"addedAt"`
}

// Project groups environments and secrets under one owner plus members.
type Project struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     uuid.UUID `json:"ownerId"`
	Members     []Member  `json:"members"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Member returns the membership entry for userID, if any.
func (p *Project) Member(userID uuid.UUID) (Member, bool) {
	for _, m := range p.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// DefaultEnvironments are created with every new project.
var DefaultEnvironments = []string{"development", "staging", "production"}

// Environment belongs to exactly one project; its name is unique within it.
type Environment struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"projectId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Secret is one key/value entry scoped to a (project, environment) pair.
// Only the sealed envelope is ever persisted; the plaintext value exists in
// memory during encrypt/decrypt only.
type Secret struct {
	ID            uuid.UUID       `json:"id"`
	ProjectID     uuid.UUID       `json:"projectId"`
	EnvironmentID uuid.UUID       `json:"environmentId"`
	Key           string          `json:"key"`
	Value         crypto.Envelope `json:"value"`
	Version       int             `json:"version"`
	CreatedBy     uuid.UUID       `json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// GlobalSecret is a per-user secret outside any project. No version counter:
// re-adding an existing key overwrites in place.
type GlobalSecret struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	Key       string          `json:"key"`
	Value     crypto.Envelope `json:"value"`
	Service   string          `json:"service,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// APIToken is a programmatic credential scoped to one project. Only the hash
// of the opaque token value is stored.
type APIToken struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"userId"`
	ProjectID uuid.UUID  `json:"projectId"`
	Name      string     `json:"name"`
	TokenHash string     `json:"tokenHash"`
	ExpiresAt time.Time  `json:"expiresAt"`
	LastUsed  *time.Time `json:"lastUsed,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
