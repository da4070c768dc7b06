package departments

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/atrium-ops/atrium/internal/audit"
	"github.com/atrium-ops/atrium/internal/authz"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Department, error)
	GetByCode(ctx context.Context, code string) (Department, error)
	List(ctx context.Context, activeOnly bool) ([]Department, error)
}

// TxRepository bundles department mutations with their audit record.
type TxRepository interface {
	Insert(ctx context.Context, dept Department) (int64, error)
	Update(ctx context.Context, dept Department) error
	AppendAudit(ctx context.Context, log audit.Log) error
}

// Service manages the department directory. Reads are open to any signed-in
// actor; mutations are reserved for admins.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs the department service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// UpsertInput describes department fields. Zero values leave the field
// unchanged on update.
type UpsertInput struct {
	Name             string
	Code             string
	HeadUserID       int64
	DeputyHeadUserID int64
}

func requireAdmin(actor authz.Actor) error {
	if actor.HasRole(authz.RoleAdmin, authz.RoleSuperAdmin) {
		return nil
	}
	return ErrForbidden
}

// Create adds a department with a unique short code.
func (s *Service) Create(ctx context.Context, actor authz.Actor, input UpsertInput) (Department, error) {
	if err := requireAdmin(actor); err != nil {
		return Department{}, err
	}
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	if input.Name == "" || input.Code == "" {
		return Department{}, fmt.Errorf("%w: name and code are required", ErrValidation)
	}
	dept := Department{
		Name:             input.Name,
		Code:             input.Code,
		HeadUserID:       input.HeadUserID,
		DeputyHeadUserID: input.DeputyHeadUserID,
		IsActive:         true,
		Version:          1,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, dept)
		if err != nil {
			return err
		}
		dept.ID = id
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "departments.create",
			Entity:   "department",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"code": dept.Code, "name": dept.Name},
		})
	})
	if err != nil {
		return Department{}, err
	}
	return dept, nil
}

// Get loads one department.
func (s *Service) Get(ctx context.Context, id int64) (Department, error) {
	return s.repo.Get(ctx, id)
}

// List returns the department directory.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Department, error) {
	return s.repo.List(ctx, activeOnly)
}

// Update edits department fields, including head and deputy appointments.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id int64, input UpsertInput) (Department, error) {
	if err := requireAdmin(actor); err != nil {
		return Department{}, err
	}
	dept, err := s.repo.Get(ctx, id)
	if err != nil {
		return Department{}, err
	}
	if input.Name != "" {
		dept.Name = input.Name
	}
	if input.Code != "" {
		dept.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	}
	if input.HeadUserID != 0 {
		dept.HeadUserID = input.HeadUserID
	}
	if input.DeputyHeadUserID != 0 {
		dept.DeputyHeadUserID = input.DeputyHeadUserID
	}
	if err := s.commit(ctx, actor, &dept, "departments.update"); err != nil {
		return Department{}, err
	}
	return dept, nil
}

// Deactivate retires a department without deleting its history.
func (s *Service) Deactivate(ctx context.Context, actor authz.Actor, id int64) (Department, error) {
	if err := requireAdmin(actor); err != nil {
		return Department{}, err
	}
	dept, err := s.repo.Get(ctx, id)
	if err != nil {
		return Department{}, err
	}
	if dept.IsActive {
		dept.IsActive = false
		if err := s.commit(ctx, actor, &dept, "departments.deactivate"); err != nil {
			return Department{}, err
		}
	}
	return dept, nil
}

func (s *Service) commit(ctx context.Context, actor authz.Actor, dept *Department, action string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Update(ctx, *dept); err != nil {
			return err
		}
		dept.Version++
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   action,
			Entity:   "department",
			EntityID: strconv.FormatInt(dept.ID, 10),
			Meta:     map[string]any{"code": dept.Code},
		})
	})
}
