package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atrium-ops/atrium/internal/app"
	"github.com/atrium-ops/atrium/internal/audit"
	"github.com/atrium-ops/atrium/internal/auth"
	"github.com/atrium-ops/atrium/internal/authz"
	"github.com/atrium-ops/atrium/internal/departments"
	"github.com/atrium-ops/atrium/internal/documents"
	"github.com/atrium-ops/atrium/internal/incidents"
	"github.com/atrium-ops/atrium/internal/notify"
	"github.com/atrium-ops/atrium/internal/observability"
	"github.com/atrium-ops/atrium/internal/platform/cache"
	"github.com/atrium-ops/atrium/internal/platform/db"
	"github.com/atrium-ops/atrium/internal/shared"
	"github.com/atrium-ops/atrium/internal/users"
	"github.com/atrium-ops/atrium/internal/visitors"
	"github.com/atrium-ops/atrium/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	// The role map is load-fatal: a cycle, an unknown parent, or an unknown
	// permission name must never boot a half-authorized server.
	authzConfig, err := authz.LoadConfig(cfg.AuthzConfigPath)
	if err != nil {
		logger.Error("load authorization config", slog.Any("error", err))
		os.Exit(1)
	}
	_, graph, err := authzConfig.Build()
	if err != nil {
		logger.Error("build role graph", slog.Any("error", err))
		os.Exit(1)
	}
	engine := authz.NewEngine(graph)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	engine.SetObserver(metrics.DecisionObserver())

	sessionManager := shared.NewSessionManager(redisClient, "atrium_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	dispatcher := notify.NewDispatcher(asynqClient, logger)

	documentsService := documents.NewService(documents.NewRepository(dbpool), engine, dispatcher, logger)
	documentsHandler := documents.NewHandler(logger, documentsService)

	incidentsService := incidents.NewService(incidents.NewRepository(dbpool), engine, dispatcher, logger)
	incidentsHandler := incidents.NewHandler(logger, incidentsService)

	visitorsService := visitors.NewService(visitors.NewRepository(dbpool), engine, dispatcher, logger)
	visitorsHandler := visitors.NewHandler(logger, visitorsService)

	usersService := users.NewService(users.NewRepository(dbpool), engine, graph, logger)
	usersHandler := users.NewHandler(logger, usersService)

	departmentsService := departments.NewService(departments.NewRepository(dbpool), logger)
	departmentsHandler := departments.NewHandler(logger, departmentsService)

	auditService := audit.NewService(audit.NewRepository(dbpool))
	auditHandler := audit.NewHandler(logger, auditService, engine)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Principals:         authService,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		DepartmentsHandler: departmentsHandler,
		DocumentsHandler:   documentsHandler,
		IncidentsHandler:   incidentsHandler,
		VisitorsHandler:    visitorsHandler,
		AuditHandler:       auditHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
