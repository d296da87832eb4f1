package vault

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devaulthq/devault/audit"
	"github.com/devaulthq/devault/crypto"
)

// UpsertGlobalSecret creates or replaces the actor's global secret for key.
// Unlike project secrets there is no version counter and no conflict error:
// re-adding an existing key overwrites it, with a fresh nonce every time.
func (s *Service) UpsertGlobalSecret(ctx context.Context, actor *User, key, value, service string) (*GlobalSecret, error) {
	env, err := s.box.Encrypt([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("encrypting global secret value: %w", err)
	}

	now := time.Now().UTC()
	secret, err := s.store.UpsertGlobalSecret(ctx, &GlobalSecret{
		ID:        uuid.New(),
		UserID:    actor.ID,
		Key:       key,
		Value:     env,
		Service:   strings.ToLower(strings.TrimSpace(service)),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionGlobalSecretCreate,
		ResourceType: "global_secret",
		ResourceID:   secret.ID.String(),
		Metadata:     map[string]any{"key": key, "service": secret.Service},
	})

	secret.Value = crypto.Envelope{}
	return secret, nil
}

// ListGlobalSecrets returns the actor's global secrets, metadata only,
// newest first.
func (s *Service) ListGlobalSecrets(ctx context.Context, actor *User) ([]*GlobalSecret, error) {
	secrets, err := s.store.GlobalSecretsForUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	for _, secret := range secrets {
		secret.Value = crypto.Envelope{}
	}
	return secrets, nil
}

// RevealGlobalSecret decrypts one of the actor's global secrets.
func (s *Service) RevealGlobalSecret(ctx context.Context, actor *User, id uuid.UUID) (key, value string, err error) {
	secret, err := s.store.GlobalSecretByID(ctx, actor.ID, id)
	if err != nil {
		return "", "", err
	}

	plaintext, err := s.box.Decrypt(secret.Value)
	if err != nil {
		s.logger.Error("global secret decryption failed", "secret_id", secret.ID, "error", err)
		return "", "", fmt.Errorf("decrypting global secret: %w", err)
	}

	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionGlobalSecretReveal,
		ResourceType: "global_secret",
		ResourceID:   secret.ID.String(),
		Metadata:     map[string]any{"key": secret.Key},
	})
	return secret.Key, string(plaintext), nil
}

// DeleteGlobalSecret removes one of the actor's global secrets.
func (s *Service) DeleteGlobalSecret(ctx context.Context, actor *User, id uuid.UUID) error {
	secret, err := s.store.GlobalSecretByID(ctx, actor.ID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteGlobalSecret(ctx, actor.ID, id); err != nil {
		return err
	}
	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionGlobalSecretDelete,
		ResourceType: "global_secret",
		ResourceID:   secret.ID.String(),
		Metadata:     map[string]any{"key": secret.Key},
	})
	return nil
}
