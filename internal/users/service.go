package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/atrium-ops/atrium/internal/audit"
	"github.com/atrium-ops/atrium/internal/authz"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, filters ListFilters) ([]User, error)
}

// TxRepository bundles account mutations with their audit record.
type TxRepository interface {
	Insert(ctx context.Context, u User, passwordHash string) (int64, error)
	Update(ctx context.Context, u User) error
	Delete(ctx context.Context, id int64) error
	AssignRole(ctx context.Context, userID int64, role string) error
	RemoveRole(ctx context.Context, userID int64, role string) error
	AppendAudit(ctx context.Context, log audit.Log) error
}

// ListFilters narrows user listings.
type ListFilters struct {
	DepartmentID int64
	UserID       int64
	ActiveOnly   bool
	Limit        int
	Offset       int
}

// Service performs account administration behind the authorization engine.
// Role assignments are per-user rows; granting one never touches the role
// graph, so no cache invalidation happens here.
type Service struct {
	repo   RepositoryPort
	engine *authz.Engine
	roles  *authz.RoleGraph
	logger *slog.Logger
}

// NewService constructs the user service.
func NewService(repo RepositoryPort, engine *authz.Engine, roles *authz.RoleGraph, logger *slog.Logger) *Service {
	return &Service{repo: repo, engine: engine, roles: roles, logger: logger}
}

// CreateInput describes a new account.
type CreateInput struct {
	Email        string
	Name         string
	DepartmentID int64
	Password     string
}

// UpdateInput describes editable account fields. Zero values leave the field
// unchanged.
type UpdateInput struct {
	Name         string
	Email        string
	DepartmentID int64
}

func policyRef(u User) authz.UserRef {
	return authz.UserRef{ID: u.ID, DepartmentID: u.DepartmentID, Roles: u.Roles}
}

func denied(d authz.Decision) error {
	if d.Reason == "" {
		return ErrForbidden
	}
	return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
}

// Create registers a new account with a bcrypt password hash and no roles.
func (s *Service) Create(ctx context.Context, actor authz.Actor, input CreateInput) (User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" || input.Name == "" {
		return User{}, fmt.Errorf("%w: email and name are required", ErrValidation)
	}
	if len(input.Password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityCreate, authz.UserRef{}); !d.Allowed {
		return User{}, denied(d)
	}
	if _, err := s.repo.GetByEmail(ctx, input.Email); err == nil {
		return User{}, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user := User{
		Email:        input.Email,
		Name:         input.Name,
		DepartmentID: input.DepartmentID,
		IsActive:     true,
		Version:      1,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, user, string(hash))
		if err != nil {
			return err
		}
		user.ID = id
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "users.create",
			Entity:   "user",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"email": user.Email, "department_id": user.DepartmentID},
		})
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Get loads one account the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id int64) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityView, policyRef(user)); !d.Allowed {
		return User{}, denied(d)
	}
	return user, nil
}

// List returns accounts scoped to what the actor can see: admins see all,
// holders of the department view permission see their department, everyone
// else sees only themselves.
func (s *Service) List(ctx context.Context, actor authz.Actor, filters ListFilters) ([]User, error) {
	if !actor.HasRole(authz.RoleAdmin, authz.RoleSuperAdmin) {
		perms, err := s.engine.EffectivePermissions(actor)
		if err != nil {
			return nil, err
		}
		if perms.Has(authz.PermUsersView) {
			filters.DepartmentID = actor.DepartmentID
		} else {
			filters.UserID = actor.ID
			return s.repo.List(ctx, filters)
		}
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityViewAny, authz.UserRef{}); !d.Allowed {
		return nil, denied(d)
	}
	return s.repo.List(ctx, filters)
}

// Update edits account fields on a strictly lower-tier target.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id int64, input UpdateInput) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityUpdate, policyRef(user)); !d.Allowed {
		return User{}, denied(d)
	}
	if input.Name != "" {
		user.Name = input.Name
	}
	if input.Email != "" {
		user.Email = strings.ToLower(strings.TrimSpace(input.Email))
	}
	if input.DepartmentID != 0 {
		user.DepartmentID = input.DepartmentID
	}
	if err := s.commit(ctx, actor, &user, "users.update", map[string]any{"email": user.Email}); err != nil {
		return User{}, err
	}
	return user, nil
}

// Deactivate disables login for the target account without destroying it.
func (s *Service) Deactivate(ctx context.Context, actor authz.Actor, id int64) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityDeactivate, policyRef(user)); !d.Allowed {
		return User{}, denied(d)
	}
	if user.IsActive {
		user.IsActive = false
		if err := s.commit(ctx, actor, &user, "users.deactivate", nil); err != nil {
			return User{}, err
		}
	}
	return user, nil
}

// Delete removes the target account. Self-deletion is denied for every role,
// super admins included.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id int64) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityDelete, policyRef(user)); !d.Allowed {
		return denied(d)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Delete(ctx, user.ID); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "users.delete",
			Entity:   "user",
			EntityID: strconv.FormatInt(user.ID, 10),
			Meta:     map[string]any{"email": user.Email},
		})
	})
}

// AssignRole grants a role assignment to the target account. The role must
// exist in the graph; escalation limits are enforced by policy.
func (s *Service) AssignRole(ctx context.Context, actor authz.Actor, id int64, role string) (User, error) {
	if _, err := s.roles.Role(role); err != nil {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	grant := authz.RoleAssignmentRef{Target: policyRef(user), RoleName: role}
	if d := s.engine.Check(ctx, actor, authz.AbilityAssignRole, grant); !d.Allowed {
		return User{}, denied(d)
	}
	if user.HasRole(role) {
		return user, nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.AssignRole(ctx, user.ID, role); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "users.assign_role",
			Entity:   "user",
			EntityID: strconv.FormatInt(user.ID, 10),
			Meta:     map[string]any{"role": role},
		})
	})
	if err != nil {
		return User{}, err
	}
	user.Roles = append(user.Roles, role)
	return user, nil
}

// RemoveRole revokes a role assignment from the target account. Revocation is
// guarded by the same policy as granting.
func (s *Service) RemoveRole(ctx context.Context, actor authz.Actor, id int64, role string) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	grant := authz.RoleAssignmentRef{Target: policyRef(user), RoleName: role}
	if d := s.engine.Check(ctx, actor, authz.AbilityAssignRole, grant); !d.Allowed {
		return User{}, denied(d)
	}
	if !user.HasRole(role) {
		return user, nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.RemoveRole(ctx, user.ID, role); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "users.remove_role",
			Entity:   "user",
			EntityID: strconv.FormatInt(user.ID, 10),
			Meta:     map[string]any{"role": role},
		})
	})
	if err != nil {
		return User{}, err
	}
	kept := user.Roles[:0]
	for _, r := range user.Roles {
		if r != role {
			kept = append(kept, r)
		}
	}
	user.Roles = kept
	return user, nil
}

// commit persists the mutated account and its audit event in one transaction.
func (s *Service) commit(ctx context.Context, actor authz.Actor, user *User, action string, meta map[string]any) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Update(ctx, *user); err != nil {
			return err
		}
		user.Version++
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   action,
			Entity:   "user",
			EntityID: strconv.FormatInt(user.ID, 10),
			Meta:     meta,
		})
	})
}
