package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/devaulthq/devault/audit"
	"github.com/devaulthq/devault/crypto"
)

// Service orchestrates vault operations: it validates, encrypts through the
// Box, persists through the Store and records every privileged action on the
// audit trail. Role checks happen before Service is invoked (see Authorize);
// Service assumes the caller is already authorized for the project it passes.
type Service struct {
	store  Store
	box    *crypto.Box
	trail  *audit.Trail
	logger *slog.Logger
}

// NewService wires a Service from its collaborators.
func NewService(store Store, box *crypto.Box, trail *audit.Trail, logger *slog.Logger) *Service {
	return &Service{store: store, box: box, trail: trail, logger: logger}
}

// CreateProject creates a project owned by actor with the three default
// environments, enforcing the actor's plan quota.
func (s *Service) CreateProject(ctx context.Context, actor *User, name, description string) (*Project, []*Environment, error) {
	limit := actor.Plan.ProjectLimit()
	if limit >= 0 {
		owned, err := s.store.CountProjectsOwned(ctx, actor.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("counting owned projects: %w", err)
		}
		if owned >= limit {
			return nil, nil, fmt.Errorf("%w (%d)", ErrProjectLimit, limit)
		}
	}

	now := time.Now().UTC()
	project := &Project{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		OwnerID:     actor.ID,
		Members:     []Member{{UserID: actor.ID, Role: RoleOwner, AddedAt: now}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, nil, err
	}

	envs := make([]*Environment, 0, len(DefaultEnvironments))
	for _, envName := range DefaultEnvironments {
		env := &Environment{ID: uuid.New(), ProjectID: project.ID, Name: envName, CreatedAt: now}
		if err := s.store.CreateEnvironment(ctx, env); err != nil {
			return nil, nil, fmt.Errorf("creating default environment %q: %w", envName, err)
		}
		envs = append(envs, env)
	}

	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionProjectCreate,
		ResourceType: "project",
		ResourceID:   project.ID.String(),
	})
	return project, envs, nil
}

// GetProject loads a project the actor can see, with its environments and
// total secret count.
func (s *Service) GetProject(ctx context.Context, actor *User, id uuid.UUID) (*Project, []*Environment, int, error) {
	project, err := s.store.ProjectByID(ctx, id)
	if err != nil {
		return nil, nil, 0, err
	}
	if _, ok := project.Member(actor.ID); !ok && project.OwnerID != actor.ID {
		return nil, nil, 0, ErrNotMember
	}
	envs, err := s.store.EnvironmentsForProject(ctx, project.ID)
	if err != nil {
		return nil, nil, 0, err
	}
	count, err := s.store.CountSecretsForProject(ctx, project.ID)
	if err != nil {
		return nil, nil, 0, err
	}
	return project, envs, count, nil
}

// ListProjects returns every project the actor owns or belongs to.
func (s *Service) ListProjects(ctx context.Context, actor *User) ([]*Project, error) {
	return s.store.ProjectsForUser(ctx, actor.ID)
}

// DeleteProject removes a project and everything under it, children first.
// The owner-only rule is enforced by the route policy before this runs.
func (s *Service) DeleteProject(ctx context.Context, actor *User, project *Project) error {
	if err := s.store.DeleteProject(ctx, project.ID); err != nil {
		return err
	}
	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionProjectDelete,
		ResourceType: "project",
		ResourceID:   project.ID.String(),
		Metadata:     map[string]any{"projectName": project.Name},
	})
	return nil
}

// AddMember invites the user identified by email into project with role.
// The owner role cannot be granted by invitation.
func (s *Service) AddMember(ctx context.Context, actor *User, project *Project, email string, role Role) (*Project, error) {
	if !role.Valid() || role == RoleOwner {
		return nil, fmt.Errorf("%w: invalid member role %q", ErrConflict, role)
	}
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if _, ok := project.Member(user.ID); ok {
		return nil, fmt.Errorf("%w: user is already a member", ErrConflict)
	}

	project.Members = append(project.Members, Member{UserID: user.ID, Role: role, AddedAt: time.Now().UTC()})
	project.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, err
	}

	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionProjectMemberAdd,
		ResourceType: "project",
		ResourceID:   project.ID.String(),
		Metadata:     map[string]any{"addedUserId": user.ID.String(), "role": string(role)},
	})
	return project, nil
}

// RemoveMember removes a member from project. The owner can never be removed,
// regardless of who asks — including the owner themselves.
func (s *Service) RemoveMember(ctx context.Context, actor *User, project *Project, memberID uuid.UUID) error {
	if memberID == project.OwnerID {
		return ErrCannotRemoveOwner
	}

	idx := -1
	for i, m := range project.Members {
		if m.UserID == memberID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("member: %w", ErrNotFound)
	}
	if project.Members[idx].Role == RoleOwner {
		return ErrCannotRemoveOwner
	}

	project.Members = append(project.Members[:idx], project.Members[idx+1:]...)
	project.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return err
	}

	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionProjectMemberRemove,
		ResourceType: "project",
		ResourceID:   project.ID.String(),
		Metadata:     map[string]any{"removedUserId": memberID.String()},
	})
	return nil
}

// ListEnvironments returns a project's environments.
func (s *Service) ListEnvironments(ctx context.Context, project *Project) ([]*Environment, error) {
	return s.store.EnvironmentsForProject(ctx, project.ID)
}

// CreateEnvironment adds an environment to project; the name must be unique
// within it.
func (s *Service) CreateEnvironment(ctx context.Context, actor *User, project *Project, name string) (*Environment, error) {
	env := &Environment{ID: uuid.New(), ProjectID: project.ID, Name: name, CreatedAt: time.Now().UTC()}
	if err := s.store.CreateEnvironment(ctx, env); err != nil {
		return nil, err
	}
	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionEnvironmentCreate,
		ResourceType: "environment",
		ResourceID:   env.ID.String(),
		Metadata:     map[string]any{"projectId": project.ID.String(), "name": name},
	})
	return env, nil
}

// DeleteEnvironment removes an environment and all secrets in it.
func (s *Service) DeleteEnvironment(ctx context.Context, actor *User, project *Project, envID uuid.UUID) error {
	env, err := s.store.EnvironmentByID(ctx, project.ID, envID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEnvironment(ctx, project.ID, envID); err != nil {
		return err
	}
	s.trail.Record(ctx, audit.Entry{
		ActorID:      &actor.ID,
		Action:       audit.ActionEnvironmentDelete,
		ResourceType: "environment",
		ResourceID:   env.ID.String(),
		Metadata:     map[string]any{"name": env.Name},
	})
	return nil
}
