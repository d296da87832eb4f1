package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
}

func TestIssueAndParsePair(t *testing.T) {
	s := newTestService()
	userID := uuid.New()

	access, refresh, err := s.IssuePair(userID)
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)

	got, err := s.ParseAccess(access)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	got, err = s.ParseRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestTokenTypeConfusion(t *testing.T) {
	s := newTestService()
	userID := uuid.New()

	access, refresh, err := s.IssuePair(userID)
	require.NoError(t, err)
	pending, err := s.IssuePending(userID)
	require.NoError(t, err)

	// A refresh token is signed with a different secret and a different type.
	_, err = s.ParseAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.ParseRefresh(access)
	assert.ErrorIs(t, err, ErrInvalid)

	// The pending token shares the access secret but must never pass the
	// general access path, and vice versa.
	_, err = s.ParseAccess(pending)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.ParsePending(access)
	assert.ErrorIs(t, err, ErrInvalid)

	got, err := s.ParsePending(pending)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestSeparateSecrets(t *testing.T) {
	s := newTestService()
	forger := NewService("access-secret", "access-secret", 15*time.Minute, 720*time.Hour)

	refresh, err := forger.IssueRefresh(uuid.New())
	require.NoError(t, err)

	_, err = s.ParseRefresh(refresh)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestExpiredToken(t *testing.T) {
	s := NewService("access-secret", "refresh-secret", -time.Minute, -time.Minute)

	access, err := s.IssueAccess(uuid.New())
	require.NoError(t, err)

	_, err = s.ParseAccess(access)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestGarbage(t *testing.T) {
	s := newTestService()
	for _, tok := range []string{"", "not-a-jwt", "aaaa.bbbb.cccc"} {
		_, err := s.ParseAccess(tok)
		assert.ErrorIs(t, err, ErrInvalid)
	}
}
