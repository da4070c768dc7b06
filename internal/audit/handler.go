package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atrium-ops/atrium/internal/authz"
	"github.com/atrium-ops/atrium/internal/platform/httpx"
	"github.com/atrium-ops/atrium/internal/shared"
)

// Handler exposes the audit timeline as JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	engine  *authz.Engine
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, engine *authz.Engine) *Handler {
	return &Handler{logger: logger, service: service, engine: engine}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
}

type timelineRowResponse struct {
	At       time.Time `json:"at"`
	ActorID  int64     `json:"actor_id"`
	Action   string    `json:"action"`
	Entity   string    `json:"entity"`
	EntityID string    `json:"entity_id"`
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if !actor.HasRole(authz.RoleAdmin, authz.RoleSuperAdmin) {
		perms, err := h.engine.EffectivePermissions(actor)
		if err != nil || !perms.Has(authz.PermAuditLogsView) {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
			return
		}
	}

	q := r.URL.Query()
	filters := TimelineFilters{
		Entity: q.Get("entity"),
		Action: q.Get("action"),
	}
	filters.ActorID, _ = strconv.ParseInt(q.Get("actor_id"), 10, 64)
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if from, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filters.From = from
	}
	if to, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filters.To = to
	}

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	rows := make([]timelineRowResponse, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, timelineRowResponse{
			At:       row.At,
			ActorID:  row.ActorID,
			Action:   row.Action,
			Entity:   row.Entity,
			EntityID: row.EntityID,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows, "paging": result.Paging})
}
