package vault

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/devaulthq/devault/crypto"
)

// Store is the persistence this package requires. Implementations must
// enforce uniqueness constraints and version increments atomically — inside a
// single transaction, not as check-then-insert — so concurrent creators and
// updaters race safely. Methods return ErrNotFound and ErrConflict from this
// package.
type Store interface {
	// Users. CreateUser fails with ErrConflict when the normalized email is
	// taken. RotateRefreshToken atomically replaces the stored refresh token
	// only when it still equals old, returning ErrConflict otherwise; an
	// empty old matches any stored value (login overwrites unconditionally).
	CreateUser(ctx context.Context, user *User) error
	UserByID(ctx context.Context, id uuid.UUID) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, old, new string) error

	// Projects. DeleteProject cascades: secrets first, then environments,
	// then the project itself.
	CreateProject(ctx context.Context, project *Project) error
	ProjectByID(ctx context.Context, id uuid.UUID) (*Project, error)
	ProjectsForUser(ctx context.Context, userID uuid.UUID) ([]*Project, error)
	CountProjectsOwned(ctx context.Context, userID uuid.UUID) (int, error)
	UpdateProject(ctx context.Context, project *Project) error
	DeleteProject(ctx context.Context, id uuid.UUID) error

	// Environments. Name is unique per project. DeleteEnvironment cascades
	// to the environment's secrets.
	CreateEnvironment(ctx context.Context, env *Environment) error
	EnvironmentByID(ctx context.Context, projectID, envID uuid.UUID) (*Environment, error)
	EnvironmentsForProject(ctx context.Context, projectID uuid.UUID) ([]*Environment, error)
	DeleteEnvironment(ctx context.Context, projectID, envID uuid.UUID) error

	// Secrets. Key is unique per (project, environment). UpdateSecretValue
	// replaces the envelope and bumps the version by exactly one in a single
	// atomic step, so no two concurrent updates can claim the same version.
	CreateSecret(ctx context.Context, secret *Secret) error
	SecretByID(ctx context.Context, projectID, envID, secretID uuid.UUID) (*Secret, error)
	SecretsForEnvironment(ctx context.Context, projectID, envID uuid.UUID) ([]*Secret, error)
	CountSecretsForProject(ctx context.Context, projectID uuid.UUID) (int, error)
	UpdateSecretValue(ctx context.Context, projectID, envID, secretID uuid.UUID, value crypto.Envelope) (*Secret, error)
	DeleteSecret(ctx context.Context, projectID, envID, secretID uuid.UUID) error

	// Global secrets, keyed on (user, key) with create-or-replace semantics.
	UpsertGlobalSecret(ctx context.Context, secret *GlobalSecret) (*GlobalSecret, error)
	GlobalSecretByID(ctx context.Context, userID, id uuid.UUID) (*GlobalSecret, error)
	GlobalSecretsForUser(ctx context.Context, userID uuid.UUID) ([]*GlobalSecret, error)
	DeleteGlobalSecret(ctx context.Context, userID, id uuid.UUID) error

	// API tokens. APITokenByHash only returns tokens with expiresAt after
	// now; implementations may lazily delete expired rows on lookup.
	CreateAPIToken(ctx context.Context, token *APIToken) error
	APITokenByHash(ctx context.Context, hash string, now time.Time) (*APIToken, error)
	APITokensForUser(ctx context.Context, userID uuid.UUID) ([]*APIToken, error)
	DeleteAPIToken(ctx context.Context, userID, id uuid.UUID) error
	TouchAPIToken(ctx context.Context, id uuid.UUID, usedAt time.Time) error
}
