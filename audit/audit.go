// Package audit records every privileged operation as an immutable log entry.
// Recording is best-effort: an audit write failure is logged and swallowed,
// never surfaced as the failure of the operation it describes.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Action tags form a closed enumeration; extend only by explicit design
// change.
type Action string

const (
	ActionSecretCreate        Action = "secret.create"
	ActionSecretRead          Action = "secret.read"
	ActionSecretUpdate        Action = "secret.update"
	ActionSecretDelete        Action = "secret.delete"
	ActionSecretReveal        Action = "secret.reveal"
	ActionSecretDownloadEnv   Action = "secret.download_env"
	ActionProjectCreate       Action = "project.create"
	ActionProjectDelete       Action = "project.delete"
	ActionProjectMemberAdd    Action = "project.member.add"
	ActionProjectMemberRemove Action = "project.member.remove"
	ActionEnvironmentCreate   Action = "environment.create"
	ActionEnvironmentDelete   Action = "environment.delete"
	ActionAuthLogin           Action = "auth.login"
	ActionAuthLoginFailed     Action = "auth.login.failed"
	ActionAuthRegister        Action = "auth.register"
	ActionAuthTwoFAEnable     Action = "auth.2fa.enable"
	ActionAuthTwoFADisable    Action = "auth.2fa.disable"
	ActionTokenCreate         Action = "token.create"
	ActionTokenRevoke         Action = "token.revoke"
	ActionGlobalSecretCreate  Action = "global_secret.create"
	ActionGlobalSecretDelete  Action = "global_secret.delete"
	ActionGlobalSecretReveal  Action = "global_secret.reveal"
)

// Entry is one immutable audit record. ActorID is nil for unauthenticated
// events such as failed logins against unknown accounts.
type Entry struct {
	ID           uuid.UUID      `json:"id"`
	ActorID      *uuid.UUID     `json:"actorId"`
	Action       Action         `json:"action"`
	ResourceType string         `json:"resourceType,omitempty"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	IP           string         `json:"ip,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Filter narrows List results.
type Filter struct {
	Action    Action
	ProjectID string
	Page      int
	Limit     int
}

// Store is the persistence the trail needs: append-only writes plus a
// per-actor listing. Entries are never updated or deleted by the application.
type Store interface {
	AppendAuditEntry(ctx context.Context, entry *Entry) error
	AuditEntries(ctx context.Context, actorID uuid.UUID, filter Filter) ([]*Entry, int, error)
}

// Trail persists audit entries and mirrors them to the structured log.
type Trail struct {
	store  Store
	logger *slog.Logger
}

// NewTrail creates a Trail writing through store and logging via logger.
func NewTrail(store Store, logger *slog.Logger) *Trail {
	return &Trail{store: store, logger: logger.With("component", "audit")}
}

type contextKey int

const clientIPKey contextKey = iota

// WithClientIP stashes the caller's IP on the context for Record to pick up.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the caller IP previously stored with WithClientIP.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// Record appends an entry. The triggering operation has already committed by
// the time Record runs, so failures here are logged and dropped.
func (t *Trail) Record(ctx context.Context, entry Entry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.IP == "" {
		entry.IP = ClientIP(ctx)
	}

	attrs := []slog.Attr{
		slog.String("action", string(entry.Action)),
		slog.String("ip", entry.IP),
	}
	if entry.ActorID != nil {
		attrs = append(attrs, slog.String("actor_id", entry.ActorID.String()))
	}
	if entry.ResourceType != "" {
		attrs = append(attrs, slog.String("resource_type", entry.ResourceType), slog.String("resource_id", entry.ResourceID))
	}
	t.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)

	if err := t.store.AppendAuditEntry(ctx, &entry); err != nil {
		t.logger.LogAttrs(ctx, slog.LevelError, "audit entry write failed",
			slog.String("action", string(entry.Action)), slog.String("error", err.Error()))
	}
}

// List returns the actor's audit entries, newest first, with the total count
// before pagination.
func (t *Trail) List(ctx context.Context, actorID uuid.UUID, filter Filter) ([]*Entry, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return t.store.AuditEntries(ctx, actorID, filter)
}
