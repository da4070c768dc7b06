package documents

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atrium-ops/atrium/internal/authz"
	"github.com/atrium-ops/atrium/internal/platform/httpx"
	"github.com/atrium-ops/atrium/internal/shared"
)

// Handler exposes the document JSON API. Routing endpoints live under
// /routings, the storage archive under /storage.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/routings", func(r chi.Router) {
		r.Get("/inbox", h.inbox)
		r.Post("/", h.send)
		r.Post("/{id}/open", h.open)
		r.Post("/{id}/forward", h.forward)
	})
	r.Route("/storage", func(r chi.Router) {
		r.Get("/", h.listStorage)
		r.Post("/", h.upload)
		r.Get("/{id}", h.getStorage)
		r.Get("/{id}/download", h.download)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
}

type documentResponse struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	DepartmentID   int64  `json:"department_id"`
	CreatedBy      int64  `json:"created_by"`
	IsConfidential bool   `json:"is_confidential"`
	FilePath       string `json:"file_path,omitempty"`
	Version        int64  `json:"version"`
}

type routingResponse struct {
	ID         int64         `json:"id"`
	DocumentID int64         `json:"document_id"`
	FromUserID int64         `json:"from_user_id"`
	ToUserID   int64         `json:"to_user_id"`
	Message    string        `json:"message,omitempty"`
	Status     RoutingStatus `json:"status"`
	OpenedAt   *time.Time    `json:"opened_at,omitempty"`
	Version    int64         `json:"version"`
}

func docToResponse(doc Document) documentResponse {
	return documentResponse{
		ID:             doc.ID,
		Title:          doc.Title,
		DepartmentID:   doc.DepartmentID,
		CreatedBy:      doc.CreatedBy,
		IsConfidential: doc.IsConfidential,
		FilePath:       doc.FilePath,
		Version:        doc.Version,
	}
}

func routingToResponse(rt Routing) routingResponse {
	resp := routingResponse{
		ID:         rt.ID,
		DocumentID: rt.DocumentID,
		FromUserID: rt.FromUserID,
		ToUserID:   rt.ToUserID,
		Message:    rt.Message,
		Status:     rt.Status,
		Version:    rt.Version,
	}
	if !rt.OpenedAt.IsZero() {
		at := rt.OpenedAt
		resp.OpenedAt = &at
	}
	return resp
}

func (h *Handler) inbox(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	items, err := h.service.Inbox(r.Context(), actor, limit, offset)
	if err != nil {
		h.respondError(w, r, "list inbox", err)
		return
	}
	out := make([]routingResponse, 0, len(items))
	for _, rt := range items {
		out = append(out, routingToResponse(rt))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"routings": out})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body struct {
		DocumentID int64  `json:"document_id"`
		ToUserID   int64  `json:"to_user_id"`
		Message    string `json:"message"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	rt, err := h.service.Send(r.Context(), actor, SendInput{
		DocumentID: body.DocumentID,
		ToUserID:   body.ToUserID,
		Message:    body.Message,
	})
	if err != nil {
		h.respondError(w, r, "send document", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, routingToResponse(rt))
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	rt, err := h.service.Open(r.Context(), actor, pathID(r))
	if err != nil {
		h.respondError(w, r, "open routing", err)
		return
	}
	httpx.JSON(w, http.StatusOK, routingToResponse(rt))
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body struct {
		ToUserID int64  `json:"to_user_id"`
		Message  string `json:"message"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	rt, err := h.service.Forward(r.Context(), actor, pathID(r), ForwardInput{
		ToUserID: body.ToUserID,
		Message:  body.Message,
	})
	if err != nil {
		h.respondError(w, r, "forward routing", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, routingToResponse(rt))
}

func (h *Handler) listStorage(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	items, err := h.service.ListStorage(r.Context(), actor, ListFilters{Limit: limit, Offset: offset})
	if err != nil {
		h.respondError(w, r, "list storage", err)
		return
	}
	out := make([]documentResponse, 0, len(items))
	for _, doc := range items {
		out = append(out, docToResponse(doc))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body struct {
		Title          string `json:"title"`
		DepartmentID   int64  `json:"department_id"`
		IsConfidential bool   `json:"is_confidential"`
		FilePath       string `json:"file_path"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	doc, err := h.service.Upload(r.Context(), actor, UploadInput{
		Title:          body.Title,
		DepartmentID:   body.DepartmentID,
		IsConfidential: body.IsConfidential,
		FilePath:       body.FilePath,
	})
	if err != nil {
		h.respondError(w, r, "upload document", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, docToResponse(doc))
}

func (h *Handler) getStorage(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	doc, err := h.service.Get(r.Context(), actor, pathID(r), authz.ContextStorage)
	if err != nil {
		h.respondError(w, r, "get document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, docToResponse(doc))
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	doc, err := h.service.Download(r.Context(), actor, pathID(r), authz.ContextStorage)
	if err != nil {
		h.respondError(w, r, "download document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"file_path": doc.FilePath})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body struct {
		Title          string `json:"title"`
		IsConfidential *bool  `json:"is_confidential"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	doc, err := h.service.Update(r.Context(), actor, pathID(r), UpdateInput{
		Title:          body.Title,
		IsConfidential: body.IsConfidential,
	})
	if err != nil {
		h.respondError(w, r, "update document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, docToResponse(doc))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if err := h.service.Delete(r.Context(), actor, pathID(r), authz.ContextStorage); err != nil {
		h.respondError(w, r, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrConcurrentModification):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}
