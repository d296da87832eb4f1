// Package memory provides an in-memory store with the same transactional
// semantics as the bbolt backend. It is intended for tests and short-lived
// setups.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devaulthq/devault/audit"
	"github.com/devaulthq/devault/crypto"
	"github.com/devaulthq/devault/vault"
)

// Store implements vault.Store and audit.Store with mutex-guarded maps.
type Store struct {
	mu sync.Mutex

	users  map[uuid.UUID]*vault.User
	emails map[string]uuid.UUID

	projects     map[uuid.UUID]*vault.Project
	environments map[uuid.UUID]*vault.Environment
	envNames     map[string]uuid.UUID

	secrets    map[uuid.UUID]*vault.Secret
	secretKeys map[string]uuid.UUID

	globals    map[uuid.UUID]*vault.GlobalSecret
	globalKeys map[string]uuid.UUID

	tokens      map[uuid.UUID]*vault.APIToken
	tokenHashes map[string]uuid.UUID

	audits []*audit.Entry
}

var (
	_ vault.Store = (*Store)(nil)
	_ audit.Store = (*Store)(nil)
)

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		users:        make(map[uuid.UUID]*vault.User),
		emails:       make(map[string]uuid.UUID),
		projects:     make(map[uuid.UUID]*vault.Project),
		environments: make(map[uuid.UUID]*vault.Environment),
		envNames:     make(map[string]uuid.UUID),
		secrets:      make(map[uuid.UUID]*vault.Secret),
		secretKeys:   make(map[string]uuid.UUID),
		globals:      make(map[uuid.UUID]*vault.GlobalSecret),
		globalKeys:   make(map[string]uuid.UUID),
		tokens:       make(map[uuid.UUID]*vault.APIToken),
		tokenHashes:  make(map[string]uuid.UUID),
	}
}

func envNameKey(projectID uuid.UUID, name string) string {
	return projectID.String() + "/" + name
}

func secretKeyKey(projectID, envID uuid.UUID, key string) string {
	return projectID.String() + "/" + envID.String() + "/" + key
}

func globalKeyKey(userID uuid.UUID, key string) string {
	return userID.String() + "/" + key
}

func cloneUser(u *vault.User) *vault.User { c := *u; return &c }

func cloneProject(p *vault.Project) *vault.Project {
	c := *p
	c.Members = append([]vault.Member(nil), p.Members...)
	return &c
}

func cloneEnv(e *vault.Environment) *vault.Environment { c := *e; return &c }

func cloneSecret(s *vault.Secret) *vault.Secret { c := *s; return &c }

func cloneGlobal(g *vault.GlobalSecret) *vault.GlobalSecret { c := *g; return &c }

func cloneToken(t *vault.APIToken) *vault.APIToken {
	c := *t
	if t.LastUsed != nil {
		lu := *t.LastUsed
		c.LastUsed = &lu
	}
	return &c
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, user *vault.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := vault.NormalizeEmail(user.Email)
	if _, taken := s.emails[email]; taken {
		return fmt.Errorf("email: %w", vault.ErrConflict)
	}
	s.users[user.ID] = cloneUser(user)
	s.emails[email] = user.ID
	return nil
}

func (s *Store) UserByID(_ context.Context, id uuid.UUID) (*vault.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", vault.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*vault.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[vault.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("user: %w", vault.ErrNotFound)
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) UpdateUser(_ context.Context, user *vault.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return fmt.Errorf("user: %w", vault.ErrNotFound)
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Store) RotateRefreshToken(_ context.Context, userID uuid.UUID, old, new string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user: %w", vault.ErrNotFound)
	}
	if old != "" && u.RefreshToken != old {
		return fmt.Errorf("refresh token: %w", vault.ErrConflict)
	}
	u.RefreshToken = new
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// --- projects ---

func (s *Store) CreateProject(_ context.Context, project *vault.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[project.ID] = cloneProject(project)
	return nil
}

func (s *Store) ProjectByID(_ context.Context, id uuid.UUID) (*vault.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project: %w", vault.ErrNotFound)
	}
	return cloneProject(p), nil
}

func (s *Store) ProjectsForUser(_ context.Context, userID uuid.UUID) ([]*vault.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*vault.Project
	for _, p := range s.projects {
		if p.OwnerID == userID {
			out = append(out, cloneProject(p))
			continue
		}
		if _, ok := p.Member(userID); ok {
			out = append(out, cloneProject(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountProjectsOwned(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.projects {
		if p.OwnerID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateProject(_ context.Context, project *vault.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[project.ID]; !ok {
		return fmt.Errorf("project: %w", vault.ErrNotFound)
	}
	s.projects[project.ID] = cloneProject(project)
	return nil
}

func (s *Store) DeleteProject(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return fmt.Errorf("project: %w", vault.ErrNotFound)
	}
	// Children first: secrets, then environments, then the project.
	for sid, sec := range s.secrets {
		if sec.ProjectID == id {
			delete(s.secretKeys, secretKeyKey(sec.ProjectID, sec.EnvironmentID, sec.Key))
			delete(s.secrets, sid)
		}
	}
	for eid, env := range s.environments {
		if env.ProjectID == id {
			delete(s.envNames, envNameKey(id, env.Name))
			delete(s.environments, eid)
		}
	}
	delete(s.projects, id)
	return nil
}

// --- environments ---

func (s *Store) CreateEnvironment(_ context.Context, env *vault.Environment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := envNameKey(env.ProjectID, env.Name)
	if _, taken := s.envNames[key]; taken {
		return fmt.Errorf("environment name: %w", vault.ErrConflict)
	}
	s.environments[env.ID] = cloneEnv(env)
	s.envNames[key] = env.ID
	return nil
}

func (s *Store) EnvironmentByID(_ context.Context, projectID, envID uuid.UUID) (*vault.Environment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	env, ok := s.environments[envID]
	if !ok || env.ProjectID != projectID {
		return nil, fmt.Errorf("environment: %w", vault.ErrNotFound)
	}
	return cloneEnv(env), nil
}

func (s *Store) EnvironmentsForProject(_ context.Context, projectID uuid.UUID) ([]*vault.Environment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*vault.Environment
	for _, env := range s.environments {
		if env.ProjectID == projectID {
			out = append(out, cloneEnv(env))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteEnvironment(_ context.Context, projectID, envID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	env, ok := s.environments[envID]
	if !ok || env.ProjectID != projectID {
		return fmt.Errorf("environment: %w", vault.ErrNotFound)
	}
	for sid, sec := range s.secrets {
		if sec.EnvironmentID == envID {
			delete(s.secretKeys, secretKeyKey(sec.ProjectID, sec.EnvironmentID, sec.Key))
			delete(s.secrets, sid)
		}
	}
	delete(s.envNames, envNameKey(projectID, env.Name))
	delete(s.environments, envID)
	return nil
}

// --- secrets ---

func (s *Store) CreateSecret(_ context.Context, secret *vault.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := secretKeyKey(secret.ProjectID, secret.EnvironmentID, secret.Key)
	if _, taken := s.secretKeys[key]; taken {
		return fmt.Errorf("secret key: %w", vault.ErrConflict)
	}
	s.secrets[secret.ID] = cloneSecret(secret)
	s.secretKeys[key] = secret.ID
	return nil
}

func (s *Store) SecretByID(_ context.Context, projectID, envID, secretID uuid.UUID) (*vault.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[secretID]
	if !ok || sec.ProjectID != projectID || sec.EnvironmentID != envID {
		return nil, fmt.Errorf("secret: %w", vault.ErrNotFound)
	}
	return cloneSecret(sec), nil
}

func (s *Store) SecretsForEnvironment(_ context.Context, projectID, envID uuid.UUID) ([]*vault.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*vault.Secret
	for _, sec := range s.secrets {
		if sec.ProjectID == projectID && sec.EnvironmentID == envID {
			out = append(out, cloneSecret(sec))
		}
	}
	return out, nil
}

func (s *Store) CountSecretsForProject(_ context.Context, projectID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sec := range s.secrets {
		if sec.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateSecretValue(_ context.Context, projectID, envID, secretID uuid.UUID, value crypto.Envelope) (*vault.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[secretID]
	if !ok || sec.ProjectID != projectID || sec.EnvironmentID != envID {
		return nil, fmt.Errorf("secret: %w", vault.ErrNotFound)
	}
	sec.Value = value
	sec.Version++
	sec.UpdatedAt = time.Now().UTC()
	return cloneSecret(sec), nil
}

func (s *Store) DeleteSecret(_ context.Context, projectID, envID, secretID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[secretID]
	if !ok || sec.ProjectID != projectID || sec.EnvironmentID != envID {
		return fmt.Errorf("secret: %w", vault.ErrNotFound)
	}
	delete(s.secretKeys, secretKeyKey(sec.ProjectID, sec.EnvironmentID, sec.Key))
	delete(s.secrets, secretID)
	return nil
}

// --- global secrets ---

func (s *Store) UpsertGlobalSecret(_ context.Context, secret *vault.GlobalSecret) (*vault.GlobalSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := globalKeyKey(secret.UserID, secret.Key)
	if existingID, ok := s.globalKeys[key]; ok {
		existing := s.globals[existingID]
		existing.Value = secret.Value
		existing.Service = secret.Service
		existing.UpdatedAt = time.Now().UTC()
		return cloneGlobal(existing), nil
	}
	s.globals[secret.ID] = cloneGlobal(secret)
	s.globalKeys[key] = secret.ID
	return cloneGlobal(secret), nil
}

func (s *Store) GlobalSecretByID(_ context.Context, userID, id uuid.UUID) (*vault.GlobalSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.globals[id]
	if !ok || g.UserID != userID {
		return nil, fmt.Errorf("global secret: %w", vault.ErrNotFound)
	}
	return cloneGlobal(g), nil
}

func (s *Store) GlobalSecretsForUser(_ context.Context, userID uuid.UUID) ([]*vault.GlobalSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*vault.GlobalSecret
	for _, g := range s.globals {
		if g.UserID == userID {
			out = append(out, cloneGlobal(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteGlobalSecret(_ context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.globals[id]
	if !ok || g.UserID != userID {
		return fmt.Errorf("global secret: %w", vault.ErrNotFound)
	}
	delete(s.globalKeys, globalKeyKey(g.UserID, g.Key))
	delete(s.globals, id)
	return nil
}

// --- api tokens ---

func (s *Store) CreateAPIToken(_ context.Context, token *vault.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = cloneToken(token)
	s.tokenHashes[token.TokenHash] = token.ID
	return nil
}

func (s *Store) APITokenByHash(_ context.Context, hash string, now time.Time) (*vault.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokenHashes[hash]
	if !ok {
		return nil, fmt.Errorf("api token: %w", vault.ErrNotFound)
	}
	t := s.tokens[id]
	if !t.ExpiresAt.After(now) {
		// Lazy sweep: an expired token must never authenticate again.
		delete(s.tokenHashes, hash)
		delete(s.tokens, id)
		return nil, fmt.Errorf("api token: %w", vault.ErrNotFound)
	}
	return cloneToken(t), nil
}

func (s *Store) APITokensForUser(_ context.Context, userID uuid.UUID) ([]*vault.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*vault.APIToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, cloneToken(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteAPIToken(_ context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.UserID != userID {
		return fmt.Errorf("api token: %w", vault.ErrNotFound)
	}
	delete(s.tokenHashes, t.TokenHash)
	delete(s.tokens, id)
	return nil
}

func (s *Store) TouchAPIToken(_ context.Context, id uuid.UUID, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return fmt.Errorf("api token: %w", vault.ErrNotFound)
	}
	t.LastUsed = &usedAt
	return nil
}

// --- audit ---

func (s *Store) AppendAuditEntry(_ context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := *entry
	s.audits = append(s.audits, &e)
	return nil
}

func (s *Store) AuditEntries(_ context.Context, actorID uuid.UUID, filter audit.Filter) ([]*audit.Entry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*audit.Entry
	for i := len(s.audits) - 1; i >= 0; i-- {
		e := s.audits[i]
		if e.ActorID == nil || *e.ActorID != actorID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.ProjectID != "" {
			pid, _ := e.Metadata["projectId"].(string)
			if pid != filter.ProjectID {
				continue
			}
		}
		copied := *e
		matched = append(matched, &copied)
	}

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
