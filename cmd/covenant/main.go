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

	"github.com/covenant-hq/covenant/internal/app"
	"github.com/covenant-hq/covenant/internal/ar"
	"github.com/covenant-hq/covenant/internal/archreview"
	"github.com/covenant-hq/covenant/internal/auth"
	"github.com/covenant-hq/covenant/internal/bank"
	"github.com/covenant-hq/covenant/internal/budget"
	"github.com/covenant-hq/covenant/internal/ledger"
	"github.com/covenant-hq/covenant/internal/observability"
	"github.com/covenant-hq/covenant/internal/platform/cache"
	"github.com/covenant-hq/covenant/internal/platform/db"
	"github.com/covenant-hq/covenant/internal/rbac"
	"github.com/covenant-hq/covenant/internal/reports"
	"github.com/covenant-hq/covenant/internal/tenant"
	"github.com/covenant-hq/covenant/internal/violations"
	"github.com/covenant-hq/covenant/internal/workorder"
	"github.com/covenant-hq/covenant/jobs"
	"github.com/covenant-hq/covenant/report"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	ledgerService := ledger.NewService(ledger.NewRepository(dbpool))
	tenantService := tenant.NewService(tenant.NewRepository(dbpool), ledgerService, logger)
	authService := auth.NewService(auth.NewRepository(dbpool), tenantService, issuer)
	arService := ar.NewService(ar.NewRepository(dbpool), ledgerService, logger)
	bankService := bank.NewService(bank.NewRepository(dbpool), ledgerService, logger)
	budgetService := budget.NewService(budget.NewRepository(dbpool), ledgerService, logger)
	violationsService := violations.NewService(violations.NewRepository(dbpool), arService, logger)
	archService := archreview.NewService(archreview.NewRepository(dbpool))
	workOrderService := workorder.NewService(workorder.NewRepository(dbpool), ledgerService)

	renderer, err := reports.NewRenderer(report.NewClient(cfg.GotenbergURL))
	if err != nil {
		logger.Error("parse report templates", slog.Any("error", err))
		os.Exit(1)
	}
	builder := reports.NewBuilder(tenantService, ledgerService, arService, budgetService, violationsService, workOrderService)
	reportsService := reports.NewService(builder, renderer, tenantService, ledgerService, arService, redisClient, cfg.ReportCacheTTL, logger)

	rbacMiddleware := rbac.Middleware{Logger: logger}
	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Verifier:          authService,
		RBAC:              rbacMiddleware,
		Metrics:           metrics,
		AuthHandler:       auth.NewHandler(logger, authService),
		TenantHandler:     tenant.NewHandler(logger, tenantService, rbacMiddleware.RequireRole),
		LedgerHandler:     ledger.NewHandler(logger, ledgerService),
		ARHandler:         ar.NewHandler(logger, arService),
		BankHandler:       bank.NewHandler(logger, bankService),
		BudgetHandler:     budget.NewHandler(logger, budgetService),
		ViolationsHandler: violations.NewHandler(logger, violationsService),
		ArchHandler:       archreview.NewHandler(logger, archService),
		WorkOrderHandler:  workorder.NewHandler(logger, workOrderService),
		ReportsHandler:    reports.NewHandler(logger, reportsService),
		JobHandler:        jobs.NewHandler(inspector, logger),
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
