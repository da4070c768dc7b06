package incidents

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atrium-ops/atrium/internal/platform/httpx"
	"github.com/atrium-ops/atrium/internal/shared"
)

// Handler exposes the incident JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers incident routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Post("/{id}/assign", h.assign)
	r.Post("/{id}/resolve", h.resolve)
	r.Post("/{id}/reopen", h.reopen)
	r.Post("/{id}/close", h.close)
	r.Delete("/{id}", h.remove)
}

type incidentResponse struct {
	ID                   int64      `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	ReportedBy           int64      `json:"reported_by"`
	AssignedDepartmentID int64      `json:"assigned_department_id,omitempty"`
	AssignedTo           int64      `json:"assigned_to,omitempty"`
	Status               Status     `json:"status"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes      string     `json:"resolution_notes,omitempty"`
	Version              int64      `json:"version"`
}

func toResponse(inc Incident) incidentResponse {
	resp := incidentResponse{
		ID:                   inc.ID,
		Title:                inc.Title,
		Description:          inc.Description,
		ReportedBy:           inc.ReportedBy,
		AssignedDepartmentID: inc.AssignedDepartmentID,
		AssignedTo:           inc.AssignedTo,
		Status:               inc.Status,
		ResolutionNotes:      inc.ResolutionNotes,
		Version:              inc.Version,
	}
	if !inc.ResolvedAt.IsZero() {
		at := inc.ResolvedAt
		resp.ResolvedAt = &at
	}
	return resp
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	filters := ListFilters{
		Status: Status(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	items, err := h.service.List(r.Context(), actor, filters)
	if err != nil {
		h.respondError(w, r, "list incidents", err)
		return
	}
	out := make([]incidentResponse, 0, len(items))
	for _, inc := range items {
		out = append(out, toResponse(inc))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"incidents": out})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		DepartmentID int64  `json:"department_id"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	inc, err := h.service.Report(r.Context(), actor, ReportInput{
		Title:        body.Title,
		Description:  body.Description,
		DepartmentID: body.DepartmentID,
	})
	if err != nil {
		h.respondError(w, r, "report incident", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(inc))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	inc, err := h.service.Get(r.Context(), actor, pathID(r))
	if err != nil {
		h.respondError(w, r, "get incident", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inc))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	inc, err := h.service.Update(r.Context(), actor, pathID(r), UpdateInput{
		Title:       body.Title,
		Description: body.Description,
	})
	if err != nil {
		h.respondError(w, r, "update incident", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inc))
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body struct {
		AssigneeID   int64 `json:"assignee_id"`
		DepartmentID int64 `json:"department_id"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	inc, err := h.service.Assign(r.Context(), actor, pathID(r), body.AssigneeID, body.DepartmentID)
	if err != nil {
		h.respondError(w, r, "assign incident", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inc))
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	inc, err := h.service.Resolve(r.Context(), actor, pathID(r), body.Notes)
	if err != nil {
		h.respondError(w, r, "resolve incident", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inc))
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	inc, err := h.service.Reopen(r.Context(), actor, pathID(r))
	if err != nil {
		h.respondError(w, r, "reopen incident", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inc))
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	inc, err := h.service.Close(r.Context(), actor, pathID(r))
	if err != nil {
		h.respondError(w, r, "close incident", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inc))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if err := h.service.Delete(r.Context(), actor, pathID(r)); err != nil {
		h.respondError(w, r, "delete incident", err)
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
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
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
