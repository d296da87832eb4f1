package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	entries []*Entry
	fail    bool
}

func (s *fakeStore) AppendAuditEntry(_ context.Context, entry *Entry) error {
	if s.fail {
		return errors.New("disk full")
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeStore) AuditEntries(_ context.Context, actorID uuid.UUID, filter Filter) ([]*Entry, int, error) {
	var out []*Entry
	for _, e := range s.entries {
		if e.ActorID != nil && *e.ActorID == actorID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func TestRecord(t *testing.T) {
	store := &fakeStore{}
	trail := NewTrail(store, slog.Default())
	actor := uuid.New()

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	trail.Record(ctx, Entry{
		ActorID:      &actor,
		Action:       ActionSecretCreate,
		ResourceType: "secret",
		ResourceID:   uuid.NewString(),
		Metadata:     map[string]any{"key": "FOO"},
	})

	require.Len(t, store.entries, 1)
	got := store.entries[0]
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, "203.0.113.7", got.IP)
}

func TestRecordStoreFailureIsSwallowed(t *testing.T) {
	trail := NewTrail(&fakeStore{fail: true}, slog.Default())
	actor := uuid.New()

	// Must not panic or surface the error in any way.
	trail.Record(context.Background(), Entry{ActorID: &actor, Action: ActionAuthLogin})
}

func TestListDefaultsPagination(t *testing.T) {
	store := &fakeStore{}
	trail := NewTrail(store, slog.Default())
	actor := uuid.New()
	trail.Record(context.Background(), Entry{ActorID: &actor, Action: ActionAuthLogin})

	entries, total, err := trail.List(context.Background(), actor, Filter{Page: -3, Limit: 10_000})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, entries, 1)
}
