package incidents

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/atrium-ops/atrium/internal/audit"
	"github.com/atrium-ops/atrium/internal/authz"
	"github.com/atrium-ops/atrium/internal/notify"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Incident, error)
	List(ctx context.Context, filters ListFilters) ([]Incident, error)
}

// TxRepository bundles the mutations that must commit atomically with their
// audit record.
type TxRepository interface {
	Insert(ctx context.Context, inc Incident) (int64, error)
	Update(ctx context.Context, inc Incident) error
	Delete(ctx context.Context, id int64) error
	AppendAudit(ctx context.Context, log audit.Log) error
}

// NotifierPort dispatches notifications; enqueue failures never roll back the
// triggering mutation.
type NotifierPort interface {
	Dispatch(ctx context.Context, n notify.Notification) error
}

// ListFilters narrows incident listings.
type ListFilters struct {
	Status       Status
	DepartmentID int64
	ReportedBy   int64
	Limit        int
	Offset       int
}

// Service orchestrates the incident lifecycle behind the authorization engine.
type Service struct {
	repo     RepositoryPort
	engine   *authz.Engine
	notifier NotifierPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the incident service.
func NewService(repo RepositoryPort, engine *authz.Engine, notifier NotifierPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, engine: engine, notifier: notifier, logger: logger, now: time.Now}
}

// ReportInput describes a new incident report.
type ReportInput struct {
	Title        string
	Description  string
	DepartmentID int64
}

// UpdateInput describes editable incident fields.
type UpdateInput struct {
	Title       string
	Description string
}

func policyRef(inc Incident) authz.IncidentRef {
	return authz.IncidentRef{
		ID:                   inc.ID,
		ReportedBy:           inc.ReportedBy,
		AssignedDepartmentID: inc.AssignedDepartmentID,
		AssignedTo:           inc.AssignedTo,
		Status:               string(inc.Status),
		ReporterDepartmentID: inc.ReporterDepartmentID,
	}
}

func denied(d authz.Decision) error {
	if d.Reason == "" {
		return ErrForbidden
	}
	return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
}

// Report files a new incident on behalf of the actor.
func (s *Service) Report(ctx context.Context, actor authz.Actor, input ReportInput) (Incident, error) {
	if input.Title == "" {
		return Incident{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityCreate, authz.IncidentRef{}); !d.Allowed {
		return Incident{}, denied(d)
	}
	departmentID := input.DepartmentID
	if departmentID == 0 {
		departmentID = actor.DepartmentID
	}
	inc := Incident{
		Title:                input.Title,
		Description:          input.Description,
		ReportedBy:           actor.ID,
		ReporterDepartmentID: actor.DepartmentID,
		AssignedDepartmentID: departmentID,
		Status:               StatusOpen,
		Version:              1,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, inc)
		if err != nil {
			return err
		}
		inc.ID = id
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "incidents.report",
			Entity:   "incident",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"title": inc.Title, "department_id": departmentID},
		})
	})
	if err != nil {
		return Incident{}, err
	}
	return inc, nil
}

// Get loads one incident the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id int64) (Incident, error) {
	inc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityView, policyRef(inc)); !d.Allowed {
		return Incident{}, denied(d)
	}
	return inc, nil
}

// List returns incidents scoped to what the actor can see: admins see all,
// holders of the department view permission see their department, everyone
// else sees only their own reports.
func (s *Service) List(ctx context.Context, actor authz.Actor, filters ListFilters) ([]Incident, error) {
	if d := s.engine.Check(ctx, actor, authz.AbilityViewAny, authz.IncidentRef{}); !d.Allowed {
		return nil, denied(d)
	}
	if !actor.HasRole(authz.RoleAdmin, authz.RoleSuperAdmin) {
		perms, err := s.engine.EffectivePermissions(actor)
		if err != nil {
			return nil, err
		}
		if perms.Has(authz.PermIncidentsView) {
			filters.DepartmentID = actor.DepartmentID
		} else {
			filters.ReportedBy = actor.ID
		}
	}
	return s.repo.List(ctx, filters)
}

// Update edits incident title and description.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id int64, input UpdateInput) (Incident, error) {
	inc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityUpdate, policyRef(inc)); !d.Allowed {
		return Incident{}, denied(d)
	}
	if input.Title != "" {
		inc.Title = input.Title
	}
	if input.Description != "" {
		inc.Description = input.Description
	}
	event := Event{Action: "incidents.update", Meta: map[string]any{"title": inc.Title}}
	if err := s.commit(ctx, actor, &inc, event); err != nil {
		return Incident{}, err
	}
	return inc, nil
}

// Assign hands the incident to a user and notifies them.
func (s *Service) Assign(ctx context.Context, actor authz.Actor, id, assigneeID, departmentID int64) (Incident, error) {
	inc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityAssign, policyRef(inc)); !d.Allowed {
		return Incident{}, denied(d)
	}
	event, err := inc.Assign(assigneeID, departmentID)
	if err != nil {
		return Incident{}, err
	}
	if err := s.commit(ctx, actor, &inc, event); err != nil {
		return Incident{}, err
	}
	s.dispatch(ctx, notify.Notification{
		Kind:        notify.KindIncidentAssigned,
		RecipientID: assigneeID,
		Subject:     fmt.Sprintf("Incident #%d assigned to you", inc.ID),
		Meta:        map[string]any{"incident_id": inc.ID, "title": inc.Title},
	})
	return inc, nil
}

// Resolve marks the incident resolved.
func (s *Service) Resolve(ctx context.Context, actor authz.Actor, id int64, notes string) (Incident, error) {
	inc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityResolve, policyRef(inc)); !d.Allowed {
		return Incident{}, denied(d)
	}
	event, err := inc.Resolve(notes, s.now())
	if err != nil {
		return Incident{}, err
	}
	if err := s.commit(ctx, actor, &inc, event); err != nil {
		return Incident{}, err
	}
	return inc, nil
}

// Reopen returns a resolved or closed incident to open.
func (s *Service) Reopen(ctx context.Context, actor authz.Actor, id int64) (Incident, error) {
	inc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityUpdate, policyRef(inc)); !d.Allowed {
		return Incident{}, denied(d)
	}
	event, err := inc.Reopen()
	if err != nil {
		return Incident{}, err
	}
	if err := s.commit(ctx, actor, &inc, event); err != nil {
		return Incident{}, err
	}
	return inc, nil
}

// Close archives a resolved incident.
func (s *Service) Close(ctx context.Context, actor authz.Actor, id int64) (Incident, error) {
	inc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityResolve, policyRef(inc)); !d.Allowed {
		return Incident{}, denied(d)
	}
	event, err := inc.Close()
	if err != nil {
		return Incident{}, err
	}
	if err := s.commit(ctx, actor, &inc, event); err != nil {
		return Incident{}, err
	}
	return inc, nil
}

// Delete removes an incident. Resolved and closed incidents are protected by
// policy for every role.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id int64) error {
	inc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityDelete, policyRef(inc)); !d.Allowed {
		return denied(d)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Delete(ctx, inc.ID); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "incidents.delete",
			Entity:   "incident",
			EntityID: strconv.FormatInt(inc.ID, 10),
			Meta:     map[string]any{"title": inc.Title, "status": string(inc.Status)},
		})
	})
}

// commit persists the mutated incident and its audit event in one transaction.
func (s *Service) commit(ctx context.Context, actor authz.Actor, inc *Incident, event Event) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Update(ctx, *inc); err != nil {
			return err
		}
		inc.Version++
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   event.Action,
			Entity:   "incident",
			EntityID: strconv.FormatInt(inc.ID, 10),
			Meta:     event.Meta,
		})
	})
}

func (s *Service) dispatch(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, n); err != nil && s.logger != nil {
		s.logger.Warn("dispatch notification", slog.Any("error", err), slog.String("kind", n.Kind))
	}
}
