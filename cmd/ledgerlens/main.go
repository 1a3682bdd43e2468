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

	"github.com/ledgerlens/ledgerlens/internal/app"
	"github.com/ledgerlens/ledgerlens/internal/audit"
	"github.com/ledgerlens/ledgerlens/internal/auth"
	"github.com/ledgerlens/ledgerlens/internal/identity"
	"github.com/ledgerlens/ledgerlens/internal/members"
	"github.com/ledgerlens/ledgerlens/internal/observability"
	"github.com/ledgerlens/ledgerlens/internal/platform/cache"
	"github.com/ledgerlens/ledgerlens/internal/platform/db"
	"github.com/ledgerlens/ledgerlens/internal/rbac"
	"github.com/ledgerlens/ledgerlens/internal/records"
	"github.com/ledgerlens/ledgerlens/internal/shared"
	"github.com/ledgerlens/ledgerlens/internal/tenant"
	"github.com/ledgerlens/ledgerlens/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Sessions live in redis, so the server cannot come up without it.
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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	tenantStore := tenant.NewRepository(pool)
	identities := identity.NewRepository(pool)

	resolver := rbac.NewRoleResolver(tenantStore)
	evaluator := rbac.NewEvaluator(resolver)
	metrics := observability.NewMetrics()
	guard := rbac.Middleware{
		Evaluator:  evaluator,
		Logger:     logger,
		DeniedPath: cfg.DeniedPath,
		DenialHook: metrics.RecordPermissionDenial,
	}

	recorder := audit.NewPGRecorder(pool)
	memberCache := members.NewCache(redisClient, cfg.MemberCacheTTL)

	cleanupClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := cleanupClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	memberService := members.NewService(evaluator, tenantStore, identities, recorder, memberCache, cleanupClient, logger)
	membersHandler := members.NewHandler(logger, memberService, guard)

	recordsRepo := records.NewRepository(pool)
	recordsService := records.NewService(evaluator, tenantStore, recordsRepo, recorder, logger)
	recordsHandler := records.NewHandler(logger, recordsService, guard)

	auditRepo := audit.NewPGRepository(pool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService, tenantStore, guard)

	authService := auth.NewService(identities, tenantStore, logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	permissionsHandler := rbac.NewPermissionsHandler(logger, evaluator)

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
		RBACMiddleware:     guard,
		Evaluator:          evaluator,
		AuthHandler:        authHandler,
		MembersHandler:     membersHandler,
		RecordsHandler:     recordsHandler,
		AuditHandler:       auditHandler,
		PermissionsHandler: permissionsHandler,
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
