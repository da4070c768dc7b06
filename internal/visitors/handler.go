package visitors

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

// Handler exposes the visitor JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers visitor routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.register)
	r.Get("/{id}", h.get)
	r.Post("/{id}/check-in", h.checkIn)
	r.Post("/{id}/check-out", h.checkOut)
	r.Delete("/{id}", h.remove)
}

type visitResponse struct {
	ID           int64      `json:"id"`
	VisitorName  string     `json:"visitor_name"`
	HostUserID   int64      `json:"host_user_id"`
	DepartmentID int64      `json:"department_id"`
	Purpose      string     `json:"purpose,omitempty"`
	CheckInTime  *time.Time `json:"check_in_time,omitempty"`
	CheckOutTime *time.Time `json:"check_out_time,omitempty"`
	Duration     string     `json:"duration,omitempty"`
	Version      int64      `json:"version"`
}

func toResponse(visit VisitorVisit) visitResponse {
	resp := visitResponse{
		ID:           visit.ID,
		VisitorName:  visit.VisitorName,
		HostUserID:   visit.HostUserID,
		DepartmentID: visit.DepartmentID,
		Purpose:      visit.Purpose,
		Version:      visit.Version,
	}
	if visit.CheckedIn() {
		at := visit.CheckInTime
		resp.CheckInTime = &at
	}
	if visit.CheckedOut() {
		at := visit.CheckOutTime
		resp.CheckOutTime = &at
		resp.Duration = visit.Duration().String()
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
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Limit:      limit,
		Offset:     offset,
	}
	items, err := h.service.List(r.Context(), actor, filters)
	if err != nil {
		h.respondError(w, r, "list visits", err)
		return
	}
	out := make([]visitResponse, 0, len(items))
	for _, visit := range items {
		out = append(out, toResponse(visit))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"visits": out})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body struct {
		VisitorName  string `json:"visitor_name"`
		HostUserID   int64  `json:"host_user_id"`
		DepartmentID int64  `json:"department_id"`
		Purpose      string `json:"purpose"`
		CheckInNow   bool   `json:"check_in_now"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	visit, err := h.service.Register(r.Context(), actor, RegisterInput{
		VisitorName:  body.VisitorName,
		HostUserID:   body.HostUserID,
		DepartmentID: body.DepartmentID,
		Purpose:      body.Purpose,
		CheckInNow:   body.CheckInNow,
	})
	if err != nil {
		h.respondError(w, r, "register visit", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(visit))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	visit, err := h.service.Get(r.Context(), actor, pathID(r))
	if err != nil {
		h.respondError(w, r, "get visit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(visit))
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	visit, err := h.service.CheckIn(r.Context(), actor, pathID(r))
	if err != nil {
		h.respondError(w, r, "check in visitor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(visit))
}

func (h *Handler) checkOut(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	visit, err := h.service.CheckOut(r.Context(), actor, pathID(r))
	if err != nil {
		h.respondError(w, r, "check out visitor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(visit))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if err := h.service.Delete(r.Context(), actor, pathID(r)); err != nil {
		h.respondError(w, r, "delete visit", err)
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
