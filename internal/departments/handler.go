package departments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atrium-ops/atrium/internal/platform/httpx"
	"github.com/atrium-ops/atrium/internal/shared"
)

// Handler exposes the department directory JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers department routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Post("/{id}/deactivate", h.deactivate)
}

type departmentResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Code             string `json:"code"`
	HeadUserID       int64  `json:"head_user_id,omitempty"`
	DeputyHeadUserID int64  `json:"deputy_head_user_id,omitempty"`
	IsActive         bool   `json:"is_active"`
	Version          int64  `json:"version"`
}

func toResponse(dept Department) departmentResponse {
	return departmentResponse{
		ID:               dept.ID,
		Name:             dept.Name,
		Code:             dept.Code,
		HeadUserID:       dept.HeadUserID,
		DeputyHeadUserID: dept.DeputyHeadUserID,
		IsActive:         dept.IsActive,
		Version:          dept.Version,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		h.respondError(w, r, "list departments", err)
		return
	}
	out := make([]departmentResponse, 0, len(items))
	for _, dept := range items {
		out = append(out, toResponse(dept))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"departments": out})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body struct {
		Name             string `json:"name"`
		Code             string `json:"code"`
		HeadUserID       int64  `json:"head_user_id"`
		DeputyHeadUserID int64  `json:"deputy_head_user_id"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	dept, err := h.service.Create(r.Context(), actor, UpsertInput{
		Name:             body.Name,
		Code:             body.Code,
		HeadUserID:       body.HeadUserID,
		DeputyHeadUserID: body.DeputyHeadUserID,
	})
	if err != nil {
		h.respondError(w, r, "create department", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(dept))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	dept, err := h.service.Get(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, r, "get department", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(dept))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body struct {
		Name             string `json:"name"`
		Code             string `json:"code"`
		HeadUserID       int64  `json:"head_user_id"`
		DeputyHeadUserID int64  `json:"deputy_head_user_id"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	dept, err := h.service.Update(r.Context(), actor, pathID(r), UpsertInput{
		Name:             body.Name,
		Code:             body.Code,
		HeadUserID:       body.HeadUserID,
		DeputyHeadUserID: body.DeputyHeadUserID,
	})
	if err != nil {
		h.respondError(w, r, "update department", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(dept))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	dept, err := h.service.Deactivate(r.Context(), actor, pathID(r))
	if err != nil {
		h.respondError(w, r, "deactivate department", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(dept))
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
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
