package visitors

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/atrium-ops/atrium/internal/audit"
	"github.com/atrium-ops/atrium/internal/authz"
	"github.com/atrium-ops/atrium/internal/notify"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (VisitorVisit, error)
	List(ctx context.Context, filters ListFilters) ([]VisitorVisit, error)
}

// TxRepository bundles the mutations that must commit atomically with their
// audit record.
type TxRepository interface {
	Insert(ctx context.Context, visit VisitorVisit) (int64, error)
	Update(ctx context.Context, visit VisitorVisit) error
	Delete(ctx context.Context, id int64) error
	AppendAudit(ctx context.Context, log audit.Log) error
}

// NotifierPort dispatches notifications.
type NotifierPort interface {
	Dispatch(ctx context.Context, n notify.Notification) error
}

// ListFilters narrows visit listings.
type ListFilters struct {
	DepartmentID int64
	HostUserID   int64
	ActiveOnly   bool
	Limit        int
	Offset       int
}

// Service orchestrates visitor check-in and check-out.
type Service struct {
	repo     RepositoryPort
	engine   *authz.Engine
	notifier NotifierPort
	logger   *slog.Logger
	now      func() time.Time
	title    cases.Caser
}

// NewService constructs the visitor service.
func NewService(repo RepositoryPort, engine *authz.Engine, notifier NotifierPort, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		title:    cases.Title(language.English),
	}
}

// RegisterInput describes a new visit record.
type RegisterInput struct {
	VisitorName  string
	HostUserID   int64
	DepartmentID int64
	Purpose      string
	CheckInNow   bool
}

func policyRef(visit VisitorVisit) authz.VisitRef {
	return authz.VisitRef{
		ID:           visit.ID,
		HostUserID:   visit.HostUserID,
		DepartmentID: visit.DepartmentID,
		CheckedIn:    visit.CheckedIn(),
		CheckedOut:   visit.CheckedOut(),
	}
}

func denied(d authz.Decision) error {
	if d.Reason == "" {
		return ErrForbidden
	}
	return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
}

// normalizeName collapses whitespace and title-cases the guest's name so the
// front desk log reads consistently regardless of how the name was typed.
func (s *Service) normalizeName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return s.title.String(strings.Join(fields, " "))
}

// Register creates a visit record, optionally checking the guest in at once.
func (s *Service) Register(ctx context.Context, actor authz.Actor, input RegisterInput) (VisitorVisit, error) {
	name := s.normalizeName(input.VisitorName)
	if name == "" {
		return VisitorVisit{}, fmt.Errorf("%w: visitor name is required", ErrValidation)
	}
	if input.HostUserID == 0 {
		return VisitorVisit{}, fmt.Errorf("%w: host is required", ErrValidation)
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityCreate, authz.VisitRef{}); !d.Allowed {
		return VisitorVisit{}, denied(d)
	}
	departmentID := input.DepartmentID
	if departmentID == 0 {
		departmentID = actor.DepartmentID
	}
	visit := VisitorVisit{
		VisitorName:  name,
		HostUserID:   input.HostUserID,
		DepartmentID: departmentID,
		Purpose:      input.Purpose,
		Version:      1,
	}
	meta := map[string]any{"visitor_name": name, "host_user_id": input.HostUserID}
	if input.CheckInNow {
		visit.CheckInTime = s.now()
		meta["check_in_time"] = visit.CheckInTime
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, visit)
		if err != nil {
			return err
		}
		visit.ID = id
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "visitors.register",
			Entity:   "visitor_visit",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     meta,
		})
	})
	if err != nil {
		return VisitorVisit{}, err
	}
	if visit.CheckedIn() {
		s.notifyHost(ctx, visit)
	}
	return visit, nil
}

// CheckIn records the guest's arrival and tells the host.
func (s *Service) CheckIn(ctx context.Context, actor authz.Actor, id int64) (VisitorVisit, error) {
	visit, err := s.repo.Get(ctx, id)
	if err != nil {
		return VisitorVisit{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityUpdate, policyRef(visit)); !d.Allowed {
		return VisitorVisit{}, denied(d)
	}
	event, err := visit.CheckIn(s.now())
	if err != nil {
		return VisitorVisit{}, err
	}
	if err := s.commit(ctx, actor, &visit, event); err != nil {
		return VisitorVisit{}, err
	}
	s.notifyHost(ctx, visit)
	return visit, nil
}

// CheckOut records the guest leaving. The already-checked-out veto comes from
// policy so it carries its reason to the caller.
func (s *Service) CheckOut(ctx context.Context, actor authz.Actor, id int64) (VisitorVisit, error) {
	visit, err := s.repo.Get(ctx, id)
	if err != nil {
		return VisitorVisit{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityCheckOut, policyRef(visit)); !d.Allowed {
		return VisitorVisit{}, denied(d)
	}
	event, err := visit.CheckOut(s.now())
	if err != nil {
		return VisitorVisit{}, err
	}
	if err := s.commit(ctx, actor, &visit, event); err != nil {
		return VisitorVisit{}, err
	}
	return visit, nil
}

// Get loads one visit the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id int64) (VisitorVisit, error) {
	visit, err := s.repo.Get(ctx, id)
	if err != nil {
		return VisitorVisit{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityView, policyRef(visit)); !d.Allowed {
		return VisitorVisit{}, denied(d)
	}
	return visit, nil
}

// List returns visits scoped to what the actor can see: admins see all,
// holders of the department view permission see their department, hosts see
// their own guests.
func (s *Service) List(ctx context.Context, actor authz.Actor, filters ListFilters) ([]VisitorVisit, error) {
	if d := s.engine.Check(ctx, actor, authz.AbilityViewAny, authz.VisitRef{}); !d.Allowed {
		return nil, denied(d)
	}
	if !actor.HasRole(authz.RoleAdmin, authz.RoleSuperAdmin) {
		perms, err := s.engine.EffectivePermissions(actor)
		if err != nil {
			return nil, err
		}
		if perms.Has(authz.PermVisitorsView) {
			filters.DepartmentID = actor.DepartmentID
		} else {
			filters.HostUserID = actor.ID
		}
	}
	return s.repo.List(ctx, filters)
}

// Delete removes a completed visit record. Active visits are protected by
// policy for every role.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id int64) error {
	visit, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityDelete, policyRef(visit)); !d.Allowed {
		return denied(d)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Delete(ctx, visit.ID); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "visitors.delete",
			Entity:   "visitor_visit",
			EntityID: strconv.FormatInt(visit.ID, 10),
			Meta:     map[string]any{"visitor_name": visit.VisitorName},
		})
	})
}

func (s *Service) commit(ctx context.Context, actor authz.Actor, visit *VisitorVisit, event Event) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Update(ctx, *visit); err != nil {
			return err
		}
		visit.Version++
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   event.Action,
			Entity:   "visitor_visit",
			EntityID: strconv.FormatInt(visit.ID, 10),
			Meta:     event.Meta,
		})
	})
}

func (s *Service) notifyHost(ctx context.Context, visit VisitorVisit) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Dispatch(ctx, notify.Notification{
		Kind:        notify.KindVisitorArrived,
		RecipientID: visit.HostUserID,
		Subject:     fmt.Sprintf("%s has arrived at reception", visit.VisitorName),
		Meta:        map[string]any{"visit_id": visit.ID, "purpose": visit.Purpose},
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("dispatch notification", slog.Any("error", err), slog.String("kind", notify.KindVisitorArrived))
	}
}
