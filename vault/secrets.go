package vault

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/devaulthq/devault/audit"
	"github.com/devaulthq/devault/crypto"
)

// ListSecrets returns an environment's secrets sorted by key. Envelopes are
// stripped: listing exposes metadata only.
func (s *Service) ListSecrets(ctx context.Context, project *Project, envID uuid.UUID) ([]*Secret, error) {
	secrets, err := s.store.SecretsForEnvironment(ctx, project.ID, envID)
	if err != nil {
		return nil, err
	}
	sort.Slice(secrets, func(i, j int) bool { return secrets[i].Key < secrets[j].Key })
	for _, secret := range secrets {
		secret.Value = crypto.Envelope{}
	}
	return secrets, nil
}

// CreateSecret encrypts value and stores it under key in the given
// environment. Duplicate keys within the environment are a conflict.
// The returned record carries metadata only, never ciphertext or plaintext.
func (s *Service) CreateSecret(ctx context.Context, actor *User, project *Project, envID uuid.UUID, key, value string) (*Secret, error) {
	if _, err := s.store.EnvironmentByID(ctx, project.ID, envID); err != nil {
		return nil, err
	}

	env, err := s.box.Encrypt([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("encrypting secret value: %w", err)
	}

	now := time.Now().UTC()
	secret := &Secret{
		ID:            uuid.New(),
		ProjectID:     project.ID,
		EnvironmentID: envID,
		Key:           key,
		Value:         env,
		Version:       1,
		CreatedBy:     actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateSecret(ctx, secret); err != nil {
		return nil, err
	}

	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionSecretCreate,
		ResourceType: "secret",
		ResourceID:   secret.ID.String(),
		Metadata:     map[string]any{"key": key, "projectId": project.ID.String(), "environmentId": envID.String()},
	})

	secret.Value = crypto.Envelope{}
	return secret, nil
}

// UpdateSecret re-encrypts the secret with a fresh nonce — even an unchanged
// value yields a new ciphertext, so equality across versions never leaks —
// and bumps the version atomically.
func (s *Service) UpdateSecret(ctx context.Context, actor *User, project *Project, envID, secretID uuid.UUID, value string) (*Secret, error) {
	env, err := s.box.Encrypt([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("encrypting secret value: %w", err)
	}

	secret, err := s.store.UpdateSecretValue(ctx, project.ID, envID, secretID, env)
	if err != nil {
		return nil, err
	}

	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionSecretUpdate,
		ResourceType: "secret",
		ResourceID:   secret.ID.String(),
		Metadata:     map[string]any{"key": secret.Key, "newVersion": secret.Version},
	})

	secret.Value = crypto.Envelope{}
	return secret, nil
}

// RevealSecret decrypts one secret value. Reveal is itself a sensitive,
// audited read, distinct from listing metadata. An integrity failure is
// logged with the secret ID and surfaced as a generic decryption error.
func (s *Service) RevealSecret(ctx context.Context, actor *User, project *Project, envID, secretID uuid.UUID) (key, value string, version int, err error) {
	secret, err := s.store.SecretByID(ctx, project.ID, envID, secretID)
	if err != nil {
		return "", "", 0, err
	}

	plaintext, err := s.box.Decrypt(secret.Value)
	if err != nil {
		s.logger.Error("secret decryption failed", "secret_id", secret.ID, "error", err)
		return "", "", 0, fmt.Errorf("decrypting secret: %w", err)
	}

	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionSecretReveal,
		ResourceType: "secret",
		ResourceID:   secret.ID.String(),
		Metadata:     map[string]any{"key": secret.Key},
	})
	return secret.Key, string(plaintext), secret.Version, nil
}

// DeleteSecret removes one secret.
func (s *Service) DeleteSecret(ctx context.Context, actor *User, project *Project, envID, secretID uuid.UUID) error {
	secret, err := s.store.SecretByID(ctx, project.ID, envID, secretID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSecret(ctx, project.ID, envID, secretID); err != nil {
		return err
	}
	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionSecretDelete,
		ResourceType: "secret",
		ResourceID:   secret.ID.String(),
		Metadata:     map[string]any{"key": secret.Key},
	})
	return nil
}

// DownloadEnv decrypts every secret in the environment and renders them as
// KEY=value lines, LF separated, sorted by key. An environment with no
// secrets is a NotFound, indistinguishable from a missing environment. One
// audit entry covers the whole export.
func (s *Service) DownloadEnv(ctx context.Context, actor *User, project *Project, envID uuid.UUID) ([]byte, int, error) {
	secrets, err := s.store.SecretsForEnvironment(ctx, project.ID, envID)
	if err != nil {
		return nil, 0, err
	}
	if len(secrets) == 0 {
		return nil, 0, fmt.Errorf("no secrets in environment: %w", ErrNotFound)
	}
	sort.Slice(secrets, func(i, j int) bool { return secrets[i].Key < secrets[j].Key })

	var buf bytes.Buffer
	for i, secret := range secrets {
		plaintext, err := s.box.Decrypt(secret.Value)
		if err != nil {
			s.logger.Error("secret decryption failed", "secret_id", secret.ID, "error", err)
			return nil, 0, fmt.Errorf("decrypting secret: %w", err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(secret.Key)
		buf.WriteByte('=')
		buf.Write(plaintext)
	}

	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionSecretDownloadEnv,
		ResourceType: "environment",
		ResourceID:   envID.String(),
		Metadata:     map[string]any{"projectId": project.ID.String(), "count": len(secrets)},
	})
	return buf.Bytes(), len(secrets), nil
}
