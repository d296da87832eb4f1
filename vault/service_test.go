package vault_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devaulthq/devault/audit"
	"github.com/devaulthq/devault/credentials"
	"github.com/devaulthq/devault/crypto"
	"github.com/devaulthq/devault/storage/memory"
	"github.com/devaulthq/devault/vault"
)

const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestService(t *testing.T) (*vault.Service, *memory.Store) {
	t.Helper()
	box, err := crypto.New(testMasterKey)
	require.NoError(t, err)
	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trail := audit.NewTrail(store, logger)
	return vault.NewService(store, box, trail, logger), store
}

func newTestUser(t *testing.T, store *memory.Store, email string, plan vault.Plan) *vault.User {
	t.Helper()
	u := &vault.User{ID: uuid.New(), Email: email, Name: "User", Plan: plan}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func TestCreateProjectSeedsDefaultEnvironments(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	actor := newTestUser(t, store, "owner@example.com", vault.PlanFree)

	project, envs, err := svc.CreateProject(ctx, actor, "acme", "api backend")
	require.NoError(t, err)
	assert.Equal(t, actor.ID, project.OwnerID)

	require.Len(t, project.Members, 1)
	assert.Equal(t, vault.RoleOwner, project.Members[0].Role)

	require.Len(t, envs, 3)
	names := []string{envs[0].Name, envs[1].Name, envs[2].Name}
	assert.ElementsMatch(t, []string{"development", "staging", "production"}, names)
}

func TestCreateProjectEnforcesPlanQuota(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	actor := newTestUser(t, store, "free@example.com", vault.PlanFree)

	for i := 0; i < 3; i++ {
		_, _, err := svc.CreateProject(ctx, actor, "p", "")
		require.NoError(t, err)
	}
	_, _, err := svc.CreateProject(ctx, actor, "fourth", "")
	require.ErrorIs(t, err, vault.ErrProjectLimit)

	// The team plan is unlimited.
	team := newTestUser(t, store, "team@example.com", vault.PlanTeam)
	for i := 0; i < 5; i++ {
		_, _, err := svc.CreateProject(ctx, team, "p", "")
		require.NoError(t, err)
	}
}

func TestAddMember(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner := newTestUser(t, store, "owner@example.com", vault.PlanPro)
	invitee := newTestUser(t, store, "dev@example.com", vault.PlanFree)
	project, _, err := svc.CreateProject(ctx, owner, "acme", "")
	require.NoError(t, err)

	t.Run("grants a role by email", func(t *testing.T) {
		updated, err := svc.AddMember(ctx, owner, project, "dev@example.com", vault.RoleDeveloper)
		require.NoError(t, err)
		m, ok := updated.Member(invitee.ID)
		require.True(t, ok)
		assert.Equal(t, vault.RoleDeveloper, m.Role)
	})

	t.Run("owner role cannot be granted", func(t *testing.T) {
		_, err := svc.AddMember(ctx, owner, project, "dev@example.com", vault.RoleOwner)
		require.ErrorIs(t, err, vault.ErrConflict)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		_, err := svc.AddMember(ctx, owner, project, "dev@example.com", vault.Role("root"))
		require.ErrorIs(t, err, vault.ErrConflict)
	})

	t.Run("unknown email is not found", func(t *testing.T) {
		_, err := svc.AddMember(ctx, owner, project, "ghost@example.com", vault.RoleViewer)
		require.ErrorIs(t, err, vault.ErrNotFound)
	})

	t.Run("double invite conflicts", func(t *testing.T) {
		_, err := svc.AddMember(ctx, owner, project, "dev@example.com", vault.RoleViewer)
		require.ErrorIs(t, err, vault.ErrConflict)
	})
}

func TestRemoveMember(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner := newTestUser(t, store, "owner@example.com", vault.PlanPro)
	dev := newTestUser(t, store, "dev@example.com", vault.PlanFree)
	project, _, err := svc.CreateProject(ctx, owner, "acme", "")
	require.NoError(t, err)
	project, err = svc.AddMember(ctx, owner, project, dev.Email, vault.RoleDeveloper)
	require.NoError(t, err)

	// The owner can never be removed, even by themselves.
	require.ErrorIs(t, svc.RemoveMember(ctx, owner, project, owner.ID), vault.ErrCannotRemoveOwner)

	require.NoError(t, svc.RemoveMember(ctx, owner, project, dev.ID))
	_, ok := project.Member(dev.ID)
	assert.False(t, ok)

	require.ErrorIs(t, svc.RemoveMember(ctx, owner, project, dev.ID), vault.ErrNotFound)
}

func TestSecretLifecycle(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	actor := newTestUser(t, store, "owner@example.com", vault.PlanPro)
	project, envs, err := svc.CreateProject(ctx, actor, "acme", "")
	require.NoError(t, err)
	envID := envs[0].ID

	created, err := svc.CreateSecret(ctx, actor, project, envID, "DB_URL", "postgres://localhost")
	require.NoError(t, err)
	assert.Equal(t, 1, created.Version)
	// Listing and create responses carry no ciphertext.
	assert.Empty(t, created.Value.Ciphertext)

	t.Run("duplicate key conflicts", func(t *testing.T) {
		_, err := svc.CreateSecret(ctx, actor, project, envID, "DB_URL", "other")
		require.ErrorIs(t, err, vault.ErrConflict)
	})

	t.Run("missing environment is not found", func(t *testing.T) {
		_, err := svc.CreateSecret(ctx, actor, project, uuid.New(), "X", "y")
		require.ErrorIs(t, err, vault.ErrNotFound)
	})

	t.Run("reveal round-trips the plaintext", func(t *testing.T) {
		key, value, version, err := svc.RevealSecret(ctx, actor, project, envID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "DB_URL", key)
		assert.Equal(t, "postgres://localhost", value)
		assert.Equal(t, 1, version)
	})

	t.Run("update bumps version and re-encrypts", func(t *testing.T) {
		before, err := store.SecretByID(ctx, project.ID, envID, created.ID)
		require.NoError(t, err)

		updated, err := svc.UpdateSecret(ctx, actor, project, envID, created.ID, "postgres://localhost")
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)

		after, err := store.SecretByID(ctx, project.ID, envID, created.ID)
		require.NoError(t, err)
		// Same plaintext, fresh nonce: ciphertext must differ.
		assert.NotEqual(t, before.Value.Ciphertext, after.Value.Ciphertext)
		assert.NotEqual(t, before.Value.Nonce, after.Value.Nonce)
	})

	t.Run("delete then reveal is not found", func(t *testing.T) {
		require.NoError(t, svc.DeleteSecret(ctx, actor, project, envID, created.ID))
		_, _, _, err := svc.RevealSecret(ctx, actor, project, envID, created.ID)
		require.ErrorIs(t, err, vault.ErrNotFound)
	})
}

func TestRevealTamperedSecretFails(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	actor := newTestUser(t, store, "owner@example.com", vault.PlanPro)
	project, envs, err := svc.CreateProject(ctx, actor, "acme", "")
	require.NoError(t, err)
	envID := envs[0].ID

	created, err := svc.CreateSecret(ctx, actor, project, envID, "KEY", "value")
	require.NoError(t, err)

	stored, err := store.SecretByID(ctx, project.ID, envID, created.ID)
	require.NoError(t, err)
	stored.Value.Tag = strings.Repeat("0", len(stored.Value.Tag))
	_, err = store.UpdateSecretValue(ctx, project.ID, envID, created.ID, stored.Value)
	require.NoError(t, err)

	_, _, _, err = svc.RevealSecret(ctx, actor, project, envID, created.ID)
	require.ErrorIs(t, err, crypto.ErrIntegrity)
}

func TestDownloadEnv(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	actor := newTestUser(t, store, "owner@example.com", vault.PlanPro)
	project, envs, err := svc.CreateProject(ctx, actor, "acme", "")
	require.NoError(t, err)
	envID := envs[0].ID

	t.Run("empty environment is not found", func(t *testing.T) {
		_, _, err := svc.DownloadEnv(ctx, actor, project, envID)
		require.ErrorIs(t, err, vault.ErrNotFound)
	})

	_, err = svc.CreateSecret(ctx, actor, project, envID, "ZED", "last")
	require.NoError(t, err)
	_, err = svc.CreateSecret(ctx, actor, project, envID, "ALPHA", "first")
	require.NoError(t, err)

	body, count, err := svc.DownloadEnv(ctx, actor, project, envID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, "ALPHA=first\nZED=last", string(body))
}

func TestGlobalSecrets(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	actor := newTestUser(t, store, "u@example.com", vault.PlanFree)

	first, err := svc.UpsertGlobalSecret(ctx, actor, "GITHUB_TOKEN", "ghp_one", " GitHub ")
	require.NoError(t, err)
	assert.Equal(t, "github", first.Service)
	assert.Empty(t, first.Value.Ciphertext)

	// Re-adding the same key overwrites in place.
	second, err := svc.UpsertGlobalSecret(ctx, actor, "GITHUB_TOKEN", "ghp_two", "github")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	key, value, err := svc.RevealGlobalSecret(ctx, actor, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "GITHUB_TOKEN", key)
	assert.Equal(t, "ghp_two", value)

	// Another user cannot see it.
	other := newTestUser(t, store, "other@example.com", vault.PlanFree)
	_, _, err = svc.RevealGlobalSecret(ctx, other, second.ID)
	require.ErrorIs(t, err, vault.ErrNotFound)

	require.NoError(t, svc.DeleteGlobalSecret(ctx, actor, second.ID))
	list, err := svc.ListGlobalSecrets(ctx, actor)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAPITokenLifecycle(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	actor := newTestUser(t, store, "u@example.com", vault.PlanPro)
	project, _, err := svc.CreateProject(ctx, actor, "acme", "")
	require.NoError(t, err)

	raw, tok, err := svc.CreateAPIToken(ctx, actor, "ci", project.ID, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, credentials.APITokenPrefix))

	// Only the hash of the raw value resolves it.
	resolved, err := store.APITokenByHash(ctx, credentials.HashAPIToken(raw), tok.CreatedAt)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, resolved.ID)

	list, err := svc.ListAPITokens(ctx, actor)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].TokenHash)

	// Revocation takes effect immediately.
	require.NoError(t, svc.RevokeAPIToken(ctx, actor, tok.ID))
	_, err = store.APITokenByHash(ctx, credentials.HashAPIToken(raw), tok.CreatedAt)
	require.ErrorIs(t, err, vault.ErrNotFound)

	require.ErrorIs(t, svc.RevokeAPIToken(ctx, actor, tok.ID), vault.ErrNotFound)
}
