package vault

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/devaulthq/devault/audit"
	"github.com/devaulthq/devault/credentials"
)

const defaultTokenDays = 30

// CreateAPIToken mints a programmatic token scoped to projectID. The raw
// value is returned exactly once; only its hash is stored.
func (s *Service) CreateAPIToken(ctx context.Context, actor *User, name string, projectID uuid.UUID, expiresInDays int) (string, *APIToken, error) {
	raw, hash, err := credentials.GenerateAPIToken()
	if err != nil {
		return "", nil, err
	}
	if expiresInDays <= 0 {
		expiresInDays = defaultTokenDays
	}

	now := time.Now().UTC()
	token := &APIToken{
		ID:        uuid.New(),
		UserID:    actor.ID,
		ProjectID: projectID,
		Name:      name,
		TokenHash: hash,
		ExpiresAt: now.AddDate(0, 0, expiresInDays),
		CreatedAt: now,
	}
	if err := s.store.CreateAPIToken(ctx, token); err != nil {
		return "", nil, err
	}

	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionTokenCreate,
		ResourceType: "token",
		ResourceID:   token.ID.String(),
		Metadata:     map[string]any{"name": name},
	})
	return raw, token, nil
}

// ListAPITokens returns the actor's tokens with hashes stripped.
func (s *Service) ListAPITokens(ctx context.Context, actor *User) ([]*APIToken, error) {
	tokens, err := s.store.APITokensForUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	for _, t := range tokens {
		t.TokenHash = ""
	}
	return tokens, nil
}

// RevokeAPIToken deletes one of the actor's tokens. A revoked token stops
// authenticating immediately.
func (s *Service) RevokeAPIToken(ctx context.Context, actor *User, id uuid.UUID) error {
	tokens, err := s.store.APITokensForUser(ctx, actor.ID)
	if err != nil {
		return err
	}
	var name string
	found := false
	for _, t := range tokens {
		if t.ID == id {
			name, found = t.Name, true
			break
		}
	}
	if !found {
		return ErrNotFound
	}

	if err := s.store.DeleteAPIToken(ctx, actor.ID, id); err != nil {
		return err
	}
	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionTokenRevoke,
		ResourceType: "token",
		ResourceID:   id.String(),
		Metadata:     map[string]any{"name": name},
	})
	return nil
}
