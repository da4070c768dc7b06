package documents

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
	GetDocument(ctx context.Context, id int64) (Document, error)
	GetRouting(ctx context.Context, id int64) (Routing, error)
	WasRoutedTo(ctx context.Context, documentID, userID int64) (bool, error)
	ListInbox(ctx context.Context, userID int64, limit, offset int) ([]Routing, error)
	ListDocuments(ctx context.Context, filters ListFilters) ([]Document, error)
}

// TxRepository bundles the mutations that must commit atomically with their
// audit record.
type TxRepository interface {
	InsertDocument(ctx context.Context, doc Document) (int64, error)
	UpdateDocument(ctx context.Context, doc Document) error
	DeleteDocument(ctx context.Context, id int64) error
	InsertRouting(ctx context.Context, rt Routing) (int64, error)
	UpdateRouting(ctx context.Context, rt Routing) error
	AppendAudit(ctx context.Context, log audit.Log) error
}

// NotifierPort dispatches notifications.
type NotifierPort interface {
	Dispatch(ctx context.Context, n notify.Notification) error
}

// ListFilters narrows storage listings.
type ListFilters struct {
	DepartmentID int64
	CreatedBy    int64
	Limit        int
	Offset       int
}

// Service orchestrates document routing and storage behind the authorization
// engine.
type Service struct {
	repo     RepositoryPort
	engine   *authz.Engine
	notifier NotifierPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the document service.
func NewService(repo RepositoryPort, engine *authz.Engine, notifier NotifierPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, engine: engine, notifier: notifier, logger: logger, now: time.Now}
}

// UploadInput describes a new storage document.
type UploadInput struct {
	Title          string
	DepartmentID   int64
	IsConfidential bool
	FilePath       string
}

// SendInput routes an existing document to a recipient.
type SendInput struct {
	DocumentID int64
	ToUserID   int64
	Message    string
}

// ForwardInput passes a received document on to the next recipient.
type ForwardInput struct {
	ToUserID int64
	Message  string
}

// UpdateInput describes editable storage fields.
type UpdateInput struct {
	Title          string
	IsConfidential *bool
}

func storageRef(doc Document) authz.DocumentRef {
	return authz.DocumentRef{
		ID:           doc.ID,
		DepartmentID: doc.DepartmentID,
		CreatedBy:    doc.CreatedBy,
		Confidential: doc.IsConfidential,
		Context:      authz.ContextStorage,
	}
}

func routingRef(doc Document, routedToActor bool) authz.DocumentRef {
	return authz.DocumentRef{
		ID:            doc.ID,
		DepartmentID:  doc.DepartmentID,
		CreatedBy:     doc.CreatedBy,
		Confidential:  doc.IsConfidential,
		RoutedToActor: routedToActor,
		Context:       authz.ContextRouting,
	}
}

func denied(d authz.Decision) error {
	if d.Reason == "" {
		return ErrForbidden
	}
	return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
}

// Upload stores a new document in the department archive.
func (s *Service) Upload(ctx context.Context, actor authz.Actor, input UploadInput) (Document, error) {
	if input.Title == "" {
		return Document{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityCreate, authz.DocumentRef{Context: authz.ContextStorage}); !d.Allowed {
		return Document{}, denied(d)
	}
	departmentID := input.DepartmentID
	if departmentID == 0 {
		departmentID = actor.DepartmentID
	}
	doc := Document{
		Title:          input.Title,
		DepartmentID:   departmentID,
		CreatedBy:      actor.ID,
		IsConfidential: input.IsConfidential,
		FilePath:       input.FilePath,
		Version:        1,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertDocument(ctx, doc)
		if err != nil {
			return err
		}
		doc.ID = id
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "documents.upload",
			Entity:   "document",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"title": doc.Title, "department_id": departmentID},
		})
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Send routes a document to a recipient, opening the first hop of its trail.
func (s *Service) Send(ctx context.Context, actor authz.Actor, input SendInput) (Routing, error) {
	if input.ToUserID == 0 {
		return Routing{}, fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	doc, err := s.repo.GetDocument(ctx, input.DocumentID)
	if err != nil {
		return Routing{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityCreate, routingRef(doc, false)); !d.Allowed {
		return Routing{}, denied(d)
	}
	rt := Routing{
		DocumentID: doc.ID,
		FromUserID: actor.ID,
		ToUserID:   input.ToUserID,
		Message:    input.Message,
		Status:     RoutingSent,
		Version:    1,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertRouting(ctx, rt)
		if err != nil {
			return err
		}
		rt.ID = id
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "documents.route",
			Entity:   "document",
			EntityID: strconv.FormatInt(doc.ID, 10),
			Meta:     map[string]any{"routing_id": id, "to_user_id": input.ToUserID},
		})
	})
	if err != nil {
		return Routing{}, err
	}
	s.dispatch(ctx, notify.Notification{
		Kind:        notify.KindDocumentRouted,
		RecipientID: input.ToUserID,
		Subject:     fmt.Sprintf("Document %q routed to you", doc.Title),
		Meta:        map[string]any{"document_id": doc.ID, "routing_id": rt.ID},
	})
	return rt, nil
}

// Open records the recipient reading a routed document. Re-opening an already
// opened or forwarded hop is a harmless no-op.
func (s *Service) Open(ctx context.Context, actor authz.Actor, routingID int64) (Routing, error) {
	rt, err := s.repo.GetRouting(ctx, routingID)
	if err != nil {
		return Routing{}, err
	}
	doc, err := s.repo.GetDocument(ctx, rt.DocumentID)
	if err != nil {
		return Routing{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityView, routingRef(doc, rt.ToUserID == actor.ID)); !d.Allowed {
		return Routing{}, denied(d)
	}
	event, changed := rt.MarkOpened(s.now())
	if !changed {
		return rt, nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateRouting(ctx, rt); err != nil {
			return err
		}
		rt.Version++
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   event.Action,
			Entity:   "document",
			EntityID: strconv.FormatInt(doc.ID, 10),
			Meta:     event.Meta,
		})
	})
	if err != nil {
		return Routing{}, err
	}
	return rt, nil
}

// Forward closes the actor's hop and routes the document to the next
// recipient inside the same transaction. The trail is append-only.
func (s *Service) Forward(ctx context.Context, actor authz.Actor, routingID int64, input ForwardInput) (Routing, error) {
	if input.ToUserID == 0 {
		return Routing{}, fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	rt, err := s.repo.GetRouting(ctx, routingID)
	if err != nil {
		return Routing{}, err
	}
	doc, err := s.repo.GetDocument(ctx, rt.DocumentID)
	if err != nil {
		return Routing{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityForward, routingRef(doc, rt.ToUserID == actor.ID)); !d.Allowed {
		return Routing{}, denied(d)
	}
	event, changed := rt.MarkForwarded(s.now())
	next := Routing{
		DocumentID: doc.ID,
		FromUserID: actor.ID,
		ToUserID:   input.ToUserID,
		Message:    input.Message,
		Status:     RoutingSent,
		Version:    1,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if changed {
			if err := tx.UpdateRouting(ctx, rt); err != nil {
				return err
			}
			rt.Version++
		}
		id, err := tx.InsertRouting(ctx, next)
		if err != nil {
			return err
		}
		next.ID = id
		meta := event.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		meta["next_routing_id"] = id
		meta["to_user_id"] = input.ToUserID
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "documents.forward",
			Entity:   "document",
			EntityID: strconv.FormatInt(doc.ID, 10),
			Meta:     meta,
		})
	})
	if err != nil {
		return Routing{}, err
	}
	s.dispatch(ctx, notify.Notification{
		Kind:        notify.KindDocumentRouted,
		RecipientID: input.ToUserID,
		Subject:     fmt.Sprintf("Document %q forwarded to you", doc.Title),
		Meta:        map[string]any{"document_id": doc.ID, "routing_id": next.ID},
	})
	return next, nil
}

// Get loads one document under the given context's rules.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id int64, docCtx authz.DocumentContext) (Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	ref, err := s.refFor(ctx, actor, doc, docCtx)
	if err != nil {
		return Document{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityView, ref); !d.Allowed {
		return Document{}, denied(d)
	}
	return doc, nil
}

// Download authorizes a file download and leaves an audit trace.
func (s *Service) Download(ctx context.Context, actor authz.Actor, id int64, docCtx authz.DocumentContext) (Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	ref, err := s.refFor(ctx, actor, doc, docCtx)
	if err != nil {
		return Document{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityDownload, ref); !d.Allowed {
		return Document{}, denied(d)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "documents.download",
			Entity:   "document",
			EntityID: strconv.FormatInt(doc.ID, 10),
			Meta:     map[string]any{"context": string(docCtx)},
		})
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Update edits storage fields on a document.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id int64, input UpdateInput) (Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityUpdate, storageRef(doc)); !d.Allowed {
		return Document{}, denied(d)
	}
	if input.Title != "" {
		doc.Title = input.Title
	}
	if input.IsConfidential != nil {
		doc.IsConfidential = *input.IsConfidential
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		doc.Version++
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "documents.update",
			Entity:   "document",
			EntityID: strconv.FormatInt(doc.ID, 10),
			Meta:     map[string]any{"title": doc.Title},
		})
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Delete removes a document under the given context's rules.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id int64, docCtx authz.DocumentContext) error {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	ref, err := s.refFor(ctx, actor, doc, docCtx)
	if err != nil {
		return err
	}
	if d := s.engine.Check(ctx, actor, authz.AbilityDelete, ref); !d.Allowed {
		return denied(d)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteDocument(ctx, doc.ID); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, audit.Log{
			ActorID:  actor.ID,
			Action:   "documents.delete",
			Entity:   "document",
			EntityID: strconv.FormatInt(doc.ID, 10),
			Meta:     map[string]any{"title": doc.Title, "context": string(docCtx)},
		})
	})
}

// Inbox lists the actor's received routings.
func (s *Service) Inbox(ctx context.Context, actor authz.Actor, limit, offset int) ([]Routing, error) {
	if d := s.engine.Check(ctx, actor, authz.AbilityViewAny, authz.DocumentRef{Context: authz.ContextRouting}); !d.Allowed {
		return nil, denied(d)
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListInbox(ctx, actor.ID, limit, offset)
}

// ListStorage lists archive documents scoped to the actor's department unless
// the actor is an admin.
func (s *Service) ListStorage(ctx context.Context, actor authz.Actor, filters ListFilters) ([]Document, error) {
	if d := s.engine.Check(ctx, actor, authz.AbilityViewAny, authz.DocumentRef{Context: authz.ContextStorage}); !d.Allowed {
		return nil, denied(d)
	}
	if !actor.HasRole(authz.RoleAdmin, authz.RoleSuperAdmin) {
		filters.DepartmentID = actor.DepartmentID
	}
	return s.repo.ListDocuments(ctx, filters)
}

// refFor builds the policy ref, materializing the routed-to relation from the
// routing trail when the routing context applies.
func (s *Service) refFor(ctx context.Context, actor authz.Actor, doc Document, docCtx authz.DocumentContext) (authz.DocumentRef, error) {
	if docCtx == authz.ContextStorage {
		return storageRef(doc), nil
	}
	routed, err := s.repo.WasRoutedTo(ctx, doc.ID, actor.ID)
	if err != nil {
		return authz.DocumentRef{}, err
	}
	return routingRef(doc, routed), nil
}

func (s *Service) dispatch(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, n); err != nil && s.logger != nil {
		s.logger.Warn("dispatch notification", slog.Any("error", err), slog.String("kind", n.Kind))
	}
}
