// Package bbolt provides a BBolt-backed store for users, projects, secrets,
// tokens and the audit trail.
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/devaulthq/devault/audit"
	"github.com/devaulthq/devault/crypto"
	"github.com/devaulthq/devault/vault"
)

var (
	bucketUsers          = []byte("users")
	bucketUserEmails     = []byte("user_emails")
	bucketProjects       = []byte("projects")
	bucketEnvironments   = []byte("environments")
	bucketEnvNames       = []byte("environment_names")
	bucketSecrets        = []byte("secrets")
	bucketSecretKeys     = []byte("secret_keys")
	bucketGlobals        = []byte("global_secrets")
	bucketGlobalKeys     = []byte("global_secret_keys")
	bucketAPITokens      = []byte("api_tokens")
	bucketAPITokenHashes = []byte("api_token_hashes")
	bucketAudit          = []byte("audit")
)

var buckets = [][]byte{
	bucketUsers, bucketUserEmails,
	bucketProjects,
	bucketEnvironments, bucketEnvNames,
	bucketSecrets, bucketSecretKeys,
	bucketGlobals, bucketGlobalKeys,
	bucketAPITokens, bucketAPITokenHashes,
	bucketAudit,
}

// Store implements vault.Store and audit.Store backed by a BBolt database.
// Every record is stored as JSON under its UUID; uniqueness constraints live
// in companion index buckets maintained inside the same write transaction.
type Store struct {
	db *bbolt.DB
}

var (
	_ vault.Store = (*Store)(nil)
	_ audit.Store = (*Store)(nil)
)

// NewStore wraps an already-open BBolt database and creates the buckets it
// needs.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns a new
// Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func getJSON(b *bbolt.Bucket, key []byte, v any) (bool, error) {
	data := b.Get(key)
	if data == nil {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

func envNameKey(projectID uuid.UUID, name string) []byte {
	return []byte(projectID.String() + "/" + name)
}

func secretKeyKey(projectID, envID uuid.UUID, key string) []byte {
	return []byte(projectID.String() + "/" + envID.String() + "/" + key)
}

func globalKeyKey(userID uuid.UUID, key string) []byte {
	return []byte(userID.String() + "/" + key)
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, user *vault.User) error {
	email := []byte(vault.NormalizeEmail(user.Email))
	return s.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket(bucketUserEmails)
		if emails.Get(email) != nil {
			return fmt.Errorf("email: %w", vault.ErrConflict)
		}
		if err := emails.Put(email, user.ID[:]); err != nil {
			return err
		}
		return putJSON(tx.Bucket(bucketUsers), user.ID[:], user)
	})
}

func (s *Store) UserByID(_ context.Context, id uuid.UUID) (*vault.User, error) {
	var user vault.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket(bucketUsers), id[:], &user)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("user: %w", vault.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*vault.User, error) {
	var user vault.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketUserEmails).Get([]byte(vault.NormalizeEmail(email)))
		if id == nil {
			return fmt.Errorf("user: %w", vault.ErrNotFound)
		}
		ok, err := getJSON(tx.Bucket(bucketUsers), id, &user)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("user: %w", vault.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpdateUser(_ context.Context, user *vault.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b.Get(user.ID[:]) == nil {
			return fmt.Errorf("user: %w", vault.ErrNotFound)
		}
		return putJSON(b, user.ID[:], user)
	})
}

// RotateRefreshToken swaps the stored refresh token for a new one inside a
// single write transaction. A non-empty old value must match the stored one,
// which makes rotation single-use: a replayed refresh token loses the race
// and gets a conflict.
func (s *Store) RotateRefreshToken(_ context.Context, userID uuid.UUID, old, new string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		var user vault.User
		ok, err := getJSON(b, userID[:], &user)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("user: %w", vault.ErrNotFound)
		}
		if old != "" && user.RefreshToken != old {
			return fmt.Errorf("refresh token: %w", vault.ErrConflict)
		}
		user.RefreshToken = new
		user.UpdatedAt = time.Now().UTC()
		return putJSON(b, userID[:], &user)
	})
}

// --- projects ---

func (s *Store) CreateProject(_ context.Context, project *vault.Project) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketProjects), project.ID[:], project)
	})
}

func (s *Store) ProjectByID(_ context.Context, id uuid.UUID) (*vault.Project, error) {
	var project vault.Project
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket(bucketProjects), id[:], &project)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("project: %w", vault.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *Store) ProjectsForUser(_ context.Context, userID uuid.UUID) ([]*vault.Project, error) {
	var out []*vault.Project
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketProjects).ForEach(func(_, data []byte) error {
			var project vault.Project
			if err := json.Unmarshal(data, &project); err != nil {
				return err
			}
			if project.OwnerID == userID {
				out = append(out, &project)
				return nil
			}
			if _, ok := project.Member(userID); ok {
				out = append(out, &project)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountProjectsOwned(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketProjects).ForEach(func(_, data []byte) error {
			var project vault.Project
			if err := json.Unmarshal(data, &project); err != nil {
				return err
			}
			if project.OwnerID == userID {
				n++
			}
			return nil
		})
	})
	return n, err
}

func (s *Store) UpdateProject(_ context.Context, project *vault.Project) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketProjects)
		if b.Get(project.ID[:]) == nil {
			return fmt.Errorf("project: %w", vault.ErrNotFound)
		}
		return putJSON(b, project.ID[:], project)
	})
}

// DeleteProject removes the project and everything under it in one
// transaction, children first.
func (s *Store) DeleteProject(_ context.Context, id uuid.UUID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		projects := tx.Bucket(bucketProjects)
		if projects.Get(id[:]) == nil {
			return fmt.Errorf("project: %w", vault.ErrNotFound)
		}
		if err := deleteSecretsWhere(tx, func(sec *vault.Secret) bool { return sec.ProjectID == id }); err != nil {
			return err
		}
		if err := deleteEnvironmentsWhere(tx, func(env *vault.Environment) bool { return env.ProjectID == id }); err != nil {
			return err
		}
		return projects.Delete(id[:])
	})
}

func deleteSecretsWhere(tx *bbolt.Tx, match func(*vault.Secret) bool) error {
	secrets := tx.Bucket(bucketSecrets)
	keys := tx.Bucket(bucketSecretKeys)
	var ids [][]byte
	err := secrets.ForEach(func(k, data []byte) error {
		var sec vault.Secret
		if err := json.Unmarshal(data, &sec); err != nil {
			return err
		}
		if match(&sec) {
			ids = append(ids, append([]byte(nil), k...))
			if err := keys.Delete(secretKeyKey(sec.ProjectID, sec.EnvironmentID, sec.Key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range ids {
		if err := secrets.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func deleteEnvironmentsWhere(tx *bbolt.Tx, match func(*vault.Environment) bool) error {
	envs := tx.Bucket(bucketEnvironments)
	names := tx.Bucket(bucketEnvNames)
	var ids [][]byte
	err := envs.ForEach(func(k, data []byte) error {
		var env vault.Environment
		if err := json.Unmarshal(data, &env); err != nil {
			return err
		}
		if match(&env) {
			ids = append(ids, append([]byte(nil), k...))
			if err := names.Delete(envNameKey(env.ProjectID, env.Name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range ids {
		if err := envs.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// --- environments ---

func (s *Store) CreateEnvironment(_ context.Context, env *vault.Environment) error {
	nameKey := envNameKey(env.ProjectID, env.Name)
	return s.db.Update(func(tx *bbolt.Tx) error {
		names := tx.Bucket(bucketEnvNames)
		if names.Get(nameKey) != nil {
			return fmt.Errorf("environment name: %w", vault.ErrConflict)
		}
		if err := names.Put(nameKey, env.ID[:]); err != nil {
			return err
		}
		return putJSON(tx.Bucket(bucketEnvironments), env.ID[:], env)
	})
}

func (s *Store) EnvironmentByID(_ context.Context, projectID, envID uuid.UUID) (*vault.Environment, error) {
	var env vault.Environment
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket(bucketEnvironments), envID[:], &env)
		if err != nil {
			return err
		}
		if !ok || env.ProjectID != projectID {
			return fmt.Errorf("environment: %w", vault.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (s *Store) EnvironmentsForProject(_ context.Context, projectID uuid.UUID) ([]*vault.Environment, error) {
	var out []*vault.Environment
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEnvironments).ForEach(func(_, data []byte) error {
			var env vault.Environment
			if err := json.Unmarshal(data, &env); err != nil {
				return err
			}
			if env.ProjectID == projectID {
				out = append(out, &env)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteEnvironment(_ context.Context, projectID, envID uuid.UUID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		envs := tx.Bucket(bucketEnvironments)
		var env vault.Environment
		ok, err := getJSON(envs, envID[:], &env)
		if err != nil {
			return err
		}
		if !ok || env.ProjectID != projectID {
			return fmt.Errorf("environment: %w", vault.ErrNotFound)
		}
		if err := deleteSecretsWhere(tx, func(sec *vault.Secret) bool { return sec.EnvironmentID == envID }); err != nil {
			return err
		}
		if err := tx.Bucket(bucketEnvNames).Delete(envNameKey(projectID, env.Name)); err != nil {
			return err
		}
		return envs.Delete(envID[:])
	})
}

// --- secrets ---

func (s *Store) CreateSecret(_ context.Context, secret *vault.Secret) error {
	keyKey := secretKeyKey(secret.ProjectID, secret.EnvironmentID, secret.Key)
	return s.db.Update(func(tx *bbolt.Tx) error {
		keys := tx.Bucket(bucketSecretKeys)
		if keys.Get(keyKey) != nil {
			return fmt.Errorf("secret key: %w", vault.ErrConflict)
		}
		if err := keys.Put(keyKey, secret.ID[:]); err != nil {
			return err
		}
		return putJSON(tx.Bucket(bucketSecrets), secret.ID[:], secret)
	})
}

func (s *Store) SecretByID(_ context.Context, projectID, envID, secretID uuid.UUID) (*vault.Secret, error) {
	var secret vault.Secret
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket(bucketSecrets), secretID[:], &secret)
		if err != nil {
			return err
		}
		if !ok || secret.ProjectID != projectID || secret.EnvironmentID != envID {
			return fmt.Errorf("secret: %w", vault.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &secret, nil
}

func (s *Store) SecretsForEnvironment(_ context.Context, projectID, envID uuid.UUID) ([]*vault.Secret, error) {
	var out []*vault.Secret
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSecrets).ForEach(func(_, data []byte) error {
			var secret vault.Secret
			if err := json.Unmarshal(data, &secret); err != nil {
				return err
			}
			if secret.ProjectID == projectID && secret.EnvironmentID == envID {
				out = append(out, &secret)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountSecretsForProject(_ context.Context, projectID uuid.UUID) (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSecrets).ForEach(func(_, data []byte) error {
			var secret vault.Secret
			if err := json.Unmarshal(data, &secret); err != nil {
				return err
			}
			if secret.ProjectID == projectID {
				n++
			}
			return nil
		})
	})
	return n, err
}

// UpdateSecretValue replaces the envelope and bumps the version inside one
// write transaction, so concurrent updates serialize and the version counter
// never skips or repeats.
func (s *Store) UpdateSecretValue(_ context.Context, projectID, envID, secretID uuid.UUID, value crypto.Envelope) (*vault.Secret, error) {
	var secret vault.Secret
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSecrets)
		ok, err := getJSON(b, secretID[:], &secret)
		if err != nil {
			return err
		}
		if !ok || secret.ProjectID != projectID || secret.EnvironmentID != envID {
			return fmt.Errorf("secret: %w", vault.ErrNotFound)
		}
		secret.Value = value
		secret.Version++
		secret.UpdatedAt = time.Now().UTC()
		return putJSON(b, secretID[:], &secret)
	})
	if err != nil {
		return nil, err
	}
	return &secret, nil
}

func (s *Store) DeleteSecret(_ context.Context, projectID, envID, secretID uuid.UUID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSecrets)
		var secret vault.Secret
		ok, err := getJSON(b, secretID[:], &secret)
		if err != nil {
			return err
		}
		if !ok || secret.ProjectID != projectID || secret.EnvironmentID != envID {
			return fmt.Errorf("secret: %w", vault.ErrNotFound)
		}
		if err := tx.Bucket(bucketSecretKeys).Delete(secretKeyKey(projectID, envID, secret.Key)); err != nil {
			return err
		}
		return b.Delete(secretID[:])
	})
}

// --- global secrets ---

func (s *Store) UpsertGlobalSecret(_ context.Context, secret *vault.GlobalSecret) (*vault.GlobalSecret, error) {
	keyKey := globalKeyKey(secret.UserID, secret.Key)
	var out vault.GlobalSecret
	err := s.db.Update(func(tx *bbolt.Tx) error {
		keys := tx.Bucket(bucketGlobalKeys)
		globals := tx.Bucket(bucketGlobals)
		if existingID := keys.Get(keyKey); existingID != nil {
			ok, err := getJSON(globals, existingID, &out)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("global secret index points at missing record")
			}
			out.Value = secret.Value
			out.Service = secret.Service
			out.UpdatedAt = time.Now().UTC()
			return putJSON(globals, existingID, &out)
		}
		out = *secret
		if err := keys.Put(keyKey, secret.ID[:]); err != nil {
			return err
		}
		return putJSON(globals, secret.ID[:], secret)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GlobalSecretByID(_ context.Context, userID, id uuid.UUID) (*vault.GlobalSecret, error) {
	var secret vault.GlobalSecret
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket(bucketGlobals), id[:], &secret)
		if err != nil {
			return err
		}
		if !ok || secret.UserID != userID {
			return fmt.Errorf("global secret: %w", vault.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &secret, nil
}

func (s *Store) GlobalSecretsForUser(_ context.Context, userID uuid.UUID) ([]*vault.GlobalSecret, error) {
	var out []*vault.GlobalSecret
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketGlobals).ForEach(func(_, data []byte) error {
			var secret vault.GlobalSecret
			if err := json.Unmarshal(data, &secret); err != nil {
				return err
			}
			if secret.UserID == userID {
				out = append(out, &secret)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteGlobalSecret(_ context.Context, userID, id uuid.UUID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		globals := tx.Bucket(bucketGlobals)
		var secret vault.GlobalSecret
		ok, err := getJSON(globals, id[:], &secret)
		if err != nil {
			return err
		}
		if !ok || secret.UserID != userID {
			return fmt.Errorf("global secret: %w", vault.ErrNotFound)
		}
		if err := tx.Bucket(bucketGlobalKeys).Delete(globalKeyKey(userID, secret.Key)); err != nil {
			return err
		}
		return globals.Delete(id[:])
	})
}

// --- api tokens ---

func (s *Store) CreateAPIToken(_ context.Context, token *vault.APIToken) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketAPITokenHashes).Put([]byte(token.TokenHash), token.ID[:]); err != nil {
			return err
		}
		return putJSON(tx.Bucket(bucketAPITokens), token.ID[:], token)
	})
}

// APITokenByHash resolves a token by its hash. Expired tokens are deleted on
// the way out, so expiry needs no background sweeper.
func (s *Store) APITokenByHash(_ context.Context, hash string, now time.Time) (*vault.APIToken, error) {
	var token vault.APIToken
	err := s.db.Update(func(tx *bbolt.Tx) error {
		hashes := tx.Bucket(bucketAPITokenHashes)
		id := hashes.Get([]byte(hash))
		if id == nil {
			return fmt.Errorf("api token: %w", vault.ErrNotFound)
		}
		tokens := tx.Bucket(bucketAPITokens)
		ok, err := getJSON(tokens, id, &token)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("api token: %w", vault.ErrNotFound)
		}
		if !token.ExpiresAt.After(now) {
			if err := hashes.Delete([]byte(hash)); err != nil {
				return err
			}
			if err := tokens.Delete(id); err != nil {
				return err
			}
			return fmt.Errorf("api token: %w", vault.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *Store) APITokensForUser(_ context.Context, userID uuid.UUID) ([]*vault.APIToken, error) {
	var out []*vault.APIToken
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAPITokens).ForEach(func(_, data []byte) error {
			var token vault.APIToken
			if err := json.Unmarshal(data, &token); err != nil {
				return err
			}
			if token.UserID == userID {
				out = append(out, &token)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteAPIToken(_ context.Context, userID, id uuid.UUID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		tokens := tx.Bucket(bucketAPITokens)
		var token vault.APIToken
		ok, err := getJSON(tokens, id[:], &token)
		if err != nil {
			return err
		}
		if !ok || token.UserID != userID {
			return fmt.Errorf("api token: %w", vault.ErrNotFound)
		}
		if err := tx.Bucket(bucketAPITokenHashes).Delete([]byte(token.TokenHash)); err != nil {
			return err
		}
		return tokens.Delete(id[:])
	})
}

func (s *Store) TouchAPIToken(_ context.Context, id uuid.UUID, usedAt time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAPITokens)
		var token vault.APIToken
		ok, err := getJSON(b, id[:], &token)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("api token: %w", vault.ErrNotFound)
		}
		token.LastUsed = &usedAt
		return putJSON(b, id[:], &token)
	})
}

// --- audit ---

// AppendAuditEntry appends under a monotonically increasing sequence key, so
// a cursor walk returns entries in insertion order. There is no update or
// delete path for this bucket.
func (s *Store) AppendAuditEntry(_ context.Context, entry *audit.Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return putJSON(b, key, entry)
	})
}

func (s *Store) AuditEntries(_ context.Context, actorID uuid.UUID, filter audit.Filter) ([]*audit.Entry, int, error) {
	var matched []*audit.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		// Newest first.
		for k, data := c.Last(); k != nil; k, data = c.Prev() {
			var entry audit.Entry
			if err := json.Unmarshal(data, &entry); err != nil {
				return err
			}
			if entry.ActorID == nil || *entry.ActorID != actorID {
				continue
			}
			if filter.Action != "" && entry.Action != filter.Action {
				continue
			}
			if filter.ProjectID != "" {
				pid, _ := entry.Metadata["projectId"].(string)
				if pid != filter.ProjectID {
					continue
				}
			}
			matched = append(matched, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
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
