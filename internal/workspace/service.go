// Package workspace is the mutation façade: the only write path into user,
// project and permission state. Every operation follows the same protocol:
// compute the proposed next state, validate it through the resolver, commit
// on success and append the matching ledger entries. Rejected mutations
// leave state untouched and log nothing.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/forgeqa/forgeqa/internal/audit"
	"github.com/forgeqa/forgeqa/internal/capability"
	"github.com/forgeqa/forgeqa/internal/permission"
	"github.com/forgeqa/forgeqa/internal/preset"
	"github.com/forgeqa/forgeqa/internal/project"
	"github.com/forgeqa/forgeqa/internal/shared"
	"github.com/forgeqa/forgeqa/internal/users"
)

// Service owns the stores and coordinates resolver validation with ledger
// recording.
type Service struct {
	logger   *slog.Logger
	users    *users.Store
	projects *project.Store
	presets  *preset.Registry
	resolver *permission.Resolver
	ledger   *audit.Ledger
	validate *validator.Validate

	reqMu    sync.RWMutex
	requests map[string]AccessRequest
}

// NewService wires the façade. Pass nil for logger to use the default.
func NewService(logger *slog.Logger, usersStore *users.Store, projects *project.Store, presets *preset.Registry, resolver *permission.Resolver, ledger *audit.Ledger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger,
		users:    usersStore,
		projects: projects,
		presets:  presets,
		resolver: resolver,
		ledger:   ledger,
		validate: validator.New(),
		requests: make(map[string]AccessRequest),
	}
}

// CreateUserInput carries validated onboarding data.
type CreateUserInput struct {
	Name  string     `validate:"required"`
	Email string     `validate:"required,email"`
	Role  users.Role `validate:"required,oneof=manager employee"`
}

// CreateUser onboards a new user.
func (s *Service) CreateUser(ctx context.Context, actorID int64, input CreateUserInput) (users.User, error) {
	actor, err := s.users.Get(actorID)
	if err != nil {
		return users.User{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return users.User{}, fmt.Errorf("workspace: invalid user input: %w", err)
	}
	u, err := s.users.Create(input.Name, input.Email, input.Role)
	if err != nil {
		return users.User{}, err
	}
	s.ledger.Append(ctx, audit.Record{
		Actor:  auditActor(actor),
		Kind:   audit.KindUserCreated,
		Action: fmt.Sprintf("Added user %s", u.Name),
		Detail: fmt.Sprintf("role %s", u.Role),
	})
	return u, nil
}

// Bootstrap creates a user without an acting user or audit trail. Intended
// for seeding the very first manager.
func (s *Service) Bootstrap(name, email string, role users.Role) (users.User, error) {
	return s.users.Create(name, email, role)
}

// CreateProjectInput carries validated project creation data.
type CreateProjectInput struct {
	Name        string `validate:"required"`
	Description string
	OwnerID     int64 `validate:"required"`
	MemberIDs   []int64
	PresetName  string
}

// CreateProject creates a project owned by OwnerID with the given extra
// members. The owner receives an explicit approve & merge grant so owner
// continuity holds from the first moment regardless of the owner's role.
func (s *Service) CreateProject(ctx context.Context, actorID int64, input CreateProjectInput) (project.Project, error) {
	actor, err := s.users.Get(actorID)
	if err != nil {
		return project.Project{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return project.Project{}, fmt.Errorf("workspace: invalid project input: %w", err)
	}
	owner, err := s.users.Get(input.OwnerID)
	if err != nil {
		return project.Project{}, err
	}
	if input.PresetName != "" {
		if _, err := s.presets.Get(input.PresetName); err != nil {
			return project.Project{}, err
		}
	}

	perms := map[int64]permission.Override{}
	ownerGrant, err := s.resolver.SetCapability(perms, owner.ID, capability.KeyApproveAndMerge, true)
	if err != nil {
		return project.Project{}, err
	}
	perms = ownerGrant

	var added []users.User
	for _, id := range input.MemberIDs {
		if id == owner.ID {
			continue
		}
		if _, ok := perms[id]; ok {
			continue
		}
		member, err := s.users.Get(id)
		if err != nil {
			return project.Project{}, err
		}
		perms[id] = permission.Override{}
		added = append(added, member)
	}

	proposed := project.Project{
		Name:        input.Name,
		Description: input.Description,
		OwnerID:     owner.ID,
		PresetName:  input.PresetName,
		Permissions: perms,
	}
	if err := s.validateContinuity(proposed); err != nil {
		return project.Project{}, err
	}

	created, err := s.projects.Create(proposed)
	if err != nil {
		return project.Project{}, err
	}

	s.ledger.Append(ctx, audit.Record{
		Actor:     auditActor(actor),
		ProjectID: created.ID,
		Kind:      audit.KindProjectCreated,
		Action:    fmt.Sprintf("Created project %q", created.Name),
		Detail:    fmt.Sprintf("owner %s, %d members", owner.Name, len(created.Permissions)),
	})
	s.logMembershipBundle(ctx, actor, created, added)

	s.logger.Info("project created",
		slog.Int64("project", created.ID),
		slog.Int64("owner", owner.ID),
		slog.Int("members", len(created.Permissions)))
	return created, nil
}

// AddMembers adds users to a project, each with an empty override. The
// ledger receives one entry per added member plus one summary entry.
func (s *Service) AddMembers(ctx context.Context, actorID, projectID int64, userIDs []int64) (project.Project, error) {
	actor, err := s.users.Get(actorID)
	if err != nil {
		return project.Project{}, err
	}
	proj, err := s.projects.Get(projectID)
	if err != nil {
		return project.Project{}, err
	}

	var added []users.User
	for _, id := range userIDs {
		if proj.IsMember(id) {
			return project.Project{}, fmt.Errorf("workspace: user %d is already a member", id)
		}
		member, err := s.users.Get(id)
		if err != nil {
			return project.Project{}, err
		}
		proj.Permissions[id] = permission.Override{}
		added = append(added, member)
	}
	if len(added) == 0 {
		return proj, nil
	}
	if err := s.validateContinuity(proj); err != nil {
		return project.Project{}, err
	}

	updated, err := s.projects.Update(proj)
	if err != nil {
		return project.Project{}, err
	}
	s.logMembershipBundle(ctx, actor, updated, added)
	return updated, nil
}

// RemoveMember removes a user from a project and deletes its override.
// The owner cannot be removed, and removing the last member whose effective
// approve & merge is true is rejected; permissions must be reassigned first.
func (s *Service) RemoveMember(ctx context.Context, actorID, projectID, userID int64) (project.Project, error) {
	actor, err := s.users.Get(actorID)
	if err != nil {
		return project.Project{}, err
	}
	proj, err := s.projects.Get(projectID)
	if err != nil {
		return project.Project{}, err
	}
	if !proj.IsMember(userID) {
		return project.Project{}, fmt.Errorf("workspace: user %d is not a member: %w", userID, shared.ErrNotFound)
	}
	if userID == proj.OwnerID {
		return project.Project{}, fmt.Errorf("workspace: project owner cannot be removed")
	}
	member, err := s.users.Get(userID)
	if err != nil {
		return project.Project{}, err
	}

	delete(proj.Permissions, userID)
	if err := s.validateContinuity(proj); err != nil {
		return project.Project{}, err
	}

	updated, err := s.projects.Update(proj)
	if err != nil {
		return project.Project{}, err
	}
	s.ledger.Append(ctx, audit.Record{
		Actor:     auditActor(actor),
		ProjectID: updated.ID,
		Kind:      audit.KindMemberRemoved,
		Action:    fmt.Sprintf("Removed %s from %s", member.Name, updated.Name),
	})
	return updated, nil
}

// SetCapability changes one capability override for a member. Enabling a
// capability also enables everything it implies in the same mutation.
func (s *Service) SetCapability(ctx context.Context, actorID, projectID, userID int64, key capability.Key, value bool) (project.Project, error) {
	actor, err := s.users.Get(actorID)
	if err != nil {
		return project.Project{}, err
	}
	proj, member, err := s.projectMember(projectID, userID)
	if err != nil {
		return project.Project{}, err
	}

	next, err := s.resolver.SetCapability(proj.Permissions, userID, key, value)
	if err != nil {
		return project.Project{}, err
	}
	proj.Permissions = next
	if err := s.validateContinuity(proj); err != nil {
		return project.Project{}, err
	}

	updated, err := s.projects.Update(proj)
	if err != nil {
		return project.Project{}, err
	}
	s.ledger.Append(ctx, audit.Record{
		Actor:     auditActor(actor),
		ProjectID: updated.ID,
		Kind:      audit.KindPermissionsUpdated,
		Action:    fmt.Sprintf("Updated permissions for %s in %s", member.Name, updated.Name),
		Detail:    fmt.Sprintf("%s=%t", key, value),
	})
	return updated, nil
}

// ApplyPreset replaces a member's override with a full copy of the named
// preset.
func (s *Service) ApplyPreset(ctx context.Context, actorID, projectID, userID int64, presetName string) (project.Project, error) {
	actor, err := s.users.Get(actorID)
	if err != nil {
		return project.Project{}, err
	}
	proj, member, err := s.projectMember(projectID, userID)
	if err != nil {
		return project.Project{}, err
	}

	next, err := s.resolver.ApplyPreset(proj.Permissions, userID, presetName)
	if err != nil {
		return project.Project{}, err
	}
	proj.Permissions = next
	if err := s.validateContinuity(proj); err != nil {
		return project.Project{}, err
	}

	updated, err := s.projects.Update(proj)
	if err != nil {
		return project.Project{}, err
	}
	s.ledger.Append(ctx, audit.Record{
		Actor:     auditActor(actor),
		ProjectID: updated.ID,
		Kind:      audit.KindPermissionsUpdated,
		Action:    fmt.Sprintf("Updated permissions for %s in %s", member.Name, updated.Name),
		Detail:    fmt.Sprintf("applied preset %s", presetName),
	})
	return updated, nil
}

// ChangeGlobalRole changes a user's global role. Only managers may do this,
// and a demotion that would strand any project without an effective
// approver is rejected.
func (s *Service) ChangeGlobalRole(ctx context.Context, actorID, userID int64, role users.Role) (users.User, error) {
	actor, err := s.users.Get(actorID)
	if err != nil {
		return users.User{}, err
	}
	if actor.Role != users.RoleManager {
		return users.User{}, fmt.Errorf("workspace: only managers change roles: %w", shared.ErrForbidden)
	}
	target, err := s.users.Get(userID)
	if err != nil {
		return users.User{}, err
	}
	if !role.Valid() {
		return users.User{}, fmt.Errorf("workspace: invalid role %q", role)
	}
	if target.Role == role {
		return target, nil
	}

	// the role change shifts the baseline of every project without an
	// assigned preset, so continuity must hold everywhere the user belongs
	for _, proj := range s.projects.List() {
		if !proj.IsMember(userID) {
			continue
		}
		err := s.resolver.ValidateOwnerContinuity(func(memberID int64) capability.Map {
			if memberID == userID {
				return s.baselineForRole(proj, role)
			}
			return s.baseline(proj, memberID)
		}, proj.Permissions)
		if err != nil {
			return users.User{}, fmt.Errorf("project %q: %w", proj.Name, err)
		}
	}

	updated, err := s.users.SetRole(userID, role)
	if err != nil {
		return users.User{}, err
	}
	s.ledger.Append(ctx, audit.Record{
		Actor:  auditActor(actor),
		Kind:   audit.KindRoleChanged,
		Action: fmt.Sprintf("Changed global role of %s to %s", updated.Name, role),
	})
	return updated, nil
}

// EffectivePermissions resolves the capability map for one member. The
// result is recomputed on every call and never cached.
func (s *Service) EffectivePermissions(projectID, userID int64) (capability.Map, error) {
	proj, _, err := s.projectMember(projectID, userID)
	if err != nil {
		return nil, err
	}
	return s.resolver.ResolveEffective(s.baseline(proj, userID), proj.Permissions[userID]), nil
}

// Ledger exposes the audit ledger for read-side views.
func (s *Service) Ledger() *audit.Ledger {
	return s.ledger
}

// Users exposes the user store for read-side views.
func (s *Service) Users() *users.Store {
	return s.users
}

// Projects exposes the project store for read-side views.
func (s *Service) Projects() *project.Store {
	return s.projects
}

func (s *Service) projectMember(projectID, userID int64) (project.Project, users.User, error) {
	proj, err := s.projects.Get(projectID)
	if err != nil {
		return project.Project{}, users.User{}, err
	}
	if !proj.IsMember(userID) {
		return project.Project{}, users.User{}, fmt.Errorf("workspace: user %d is not a member of %q: %w", userID, proj.Name, shared.ErrNotFound)
	}
	member, err := s.users.Get(userID)
	if err != nil {
		return project.Project{}, users.User{}, err
	}
	return proj, member, nil
}

// baseline returns the inherited capability map for a member: the
// project-assigned preset when one is set, the member's global-role default
// otherwise.
func (s *Service) baseline(proj project.Project, userID int64) capability.Map {
	u, err := s.users.Get(userID)
	if err != nil {
		// unknown member ids inherit nothing
		return capability.Map{}
	}
	return s.baselineForRole(proj, u.Role)
}

func (s *Service) baselineForRole(proj project.Project, role users.Role) capability.Map {
	name := proj.PresetName
	if name == "" {
		name = preset.NameForRole(role)
	}
	p, err := s.presets.Get(name)
	if err != nil {
		return capability.Map{}
	}
	return p.Grants
}

func (s *Service) validateContinuity(proj project.Project) error {
	return s.resolver.ValidateOwnerContinuity(func(userID int64) capability.Map {
		return s.baseline(proj, userID)
	}, proj.Permissions)
}

func (s *Service) logMembershipBundle(ctx context.Context, actor users.User, proj project.Project, added []users.User) {
	if len(added) == 0 {
		return
	}
	for _, member := range added {
		s.ledger.Append(ctx, audit.Record{
			Actor:     auditActor(actor),
			ProjectID: proj.ID,
			Kind:      audit.KindMemberAdded,
			Action:    fmt.Sprintf("Added %s to %s", member.Name, proj.Name),
		})
	}
	s.ledger.Append(ctx, audit.Record{
		Actor:     auditActor(actor),
		ProjectID: proj.ID,
		Kind:      audit.KindPermissionsUpdated,
		Action:    fmt.Sprintf("Updated permissions for %s", proj.Name),
		Detail:    fmt.Sprintf("%d members added", len(added)),
	})
}

func auditActor(u users.User) audit.Actor {
	return audit.Actor{ID: u.ID, Name: u.Name, Email: u.Email}
}
