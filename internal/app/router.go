package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atrium-ops/atrium/internal/audit"
	"github.com/atrium-ops/atrium/internal/auth"
	"github.com/atrium-ops/atrium/internal/departments"
	"github.com/atrium-ops/atrium/internal/documents"
	"github.com/atrium-ops/atrium/internal/incidents"
	"github.com/atrium-ops/atrium/internal/observability"
	"github.com/atrium-ops/atrium/internal/shared"
	"github.com/atrium-ops/atrium/internal/users"
	"github.com/atrium-ops/atrium/internal/visitors"
	"github.com/atrium-ops/atrium/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Principals     PrincipalSource

	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	DepartmentsHandler *departments.Handler
	DocumentsHandler   *documents.Handler
	IncidentsHandler   *incidents.Handler
	VisitorsHandler    *visitors.Handler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with platform defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Principals:     params.Principals,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.DepartmentsHandler != nil {
		r.Route("/departments", params.DepartmentsHandler.MountRoutes)
	}
	if params.DocumentsHandler != nil {
		r.Route("/documents", params.DocumentsHandler.MountRoutes)
	}
	if params.IncidentsHandler != nil {
		r.Route("/incidents", params.IncidentsHandler.MountRoutes)
	}
	if params.VisitorsHandler != nil {
		r.Route("/visitors", params.VisitorsHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit-logs", params.AuditHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
