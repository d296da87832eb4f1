package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devaulthq/devault/crypto"
	"github.com/devaulthq/devault/vault"
)

func TestCallersCannotMutateStoredRecords(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	now := time.Now().UTC()
	u := &vault.User{ID: uuid.New(), Email: "a@example.com", PasswordHash: "h", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	got.PasswordHash = "mutated"

	again, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "h", again.PasswordHash)

	p := &vault.Project{
		ID: uuid.New(), Name: "acme", OwnerID: u.ID,
		Members:   []vault.Member{{UserID: u.ID, Role: vault.RoleOwner, AddedAt: now}},
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateProject(ctx, p))

	loaded, err := s.ProjectByID(ctx, p.ID)
	require.NoError(t, err)
	loaded.Members[0].Role = vault.RoleViewer

	fresh, err := s.ProjectByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, vault.RoleOwner, fresh.Members[0].Role)
}

func TestRefreshTokenRotationIsSingleUse(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	u := &vault.User{ID: uuid.New(), Email: "b@example.com"}
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.RotateRefreshToken(ctx, u.ID, "", "one"))
	require.NoError(t, s.RotateRefreshToken(ctx, u.ID, "one", "two"))
	require.ErrorIs(t, s.RotateRefreshToken(ctx, u.ID, "one", "three"), vault.ErrConflict)
}

func TestSecretUpdateBumpsVersion(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	projectID, envID := uuid.New(), uuid.New()
	require.NoError(t, s.CreateEnvironment(ctx, &vault.Environment{ID: envID, ProjectID: projectID, Name: "development"}))

	sec := &vault.Secret{ID: uuid.New(), ProjectID: projectID, EnvironmentID: envID, Key: "K", Version: 1}
	require.NoError(t, s.CreateSecret(ctx, sec))

	updated, err := s.UpdateSecretValue(ctx, projectID, envID, sec.ID, crypto.Envelope{Ciphertext: "00"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	// Wrong environment never matches.
	_, err = s.UpdateSecretValue(ctx, projectID, uuid.New(), sec.ID, crypto.Envelope{})
	require.ErrorIs(t, err, vault.ErrNotFound)
}
