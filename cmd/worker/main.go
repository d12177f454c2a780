package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/covenant-hq/covenant/internal/app"
	"github.com/covenant-hq/covenant/internal/ar"
	"github.com/covenant-hq/covenant/internal/budget"
	jobmetrics "github.com/covenant-hq/covenant/internal/jobs"
	"github.com/covenant-hq/covenant/internal/ledger"
	"github.com/covenant-hq/covenant/internal/mail"
	"github.com/covenant-hq/covenant/internal/platform/cache"
	"github.com/covenant-hq/covenant/internal/platform/db"
	"github.com/covenant-hq/covenant/internal/reports"
	"github.com/covenant-hq/covenant/internal/tenant"
	"github.com/covenant-hq/covenant/internal/violations"
	"github.com/covenant-hq/covenant/internal/workorder"
	"github.com/covenant-hq/covenant/jobs"
	"github.com/covenant-hq/covenant/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	ledgerService := ledger.NewService(ledger.NewRepository(pool))
	tenantService := tenant.NewService(tenant.NewRepository(pool), ledgerService, logger)
	arService := ar.NewService(ar.NewRepository(pool), ledgerService, logger)
	budgetService := budget.NewService(budget.NewRepository(pool), ledgerService, logger)
	violationsService := violations.NewService(violations.NewRepository(pool), arService, logger)
	workOrderService := workorder.NewService(workorder.NewRepository(pool), ledgerService)

	renderer, err := reports.NewRenderer(report.NewClient(cfg.GotenbergURL))
	if err != nil {
		logger.Error("parse report templates", slog.Any("error", err))
		os.Exit(1)
	}
	builder := reports.NewBuilder(tenantService, ledgerService, arService, budgetService, violationsService, workOrderService)
	reportsService := reports.NewService(builder, renderer, tenantService, ledgerService, arService, redisClient, cfg.ReportCacheTTL, logger)

	mailer := mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	queueClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)

	sendEmailJob := jobs.NewSendEmailJob(mailer, logger, metrics)
	lateFeesJob := jobs.NewLateFeesJob(tenantService, arService, logger, metrics)
	monthlyInvoicesJob := jobs.NewMonthlyInvoicesJob(tenantService, arService, logger, metrics)
	overdueRemindersJob := jobs.NewOverdueRemindersJob(tenantService, arService, queueClient, logger, metrics)
	violationsEscalateJob := jobs.NewViolationsEscalateJob(tenantService, violationsService, logger, metrics)
	varianceCheckJob := jobs.NewVarianceCheckJob(tenantService, budgetService, logger, metrics)
	integrityJob := jobs.NewLedgerIntegrityJob(pool, logger, metrics)
	boardPackJob := jobs.NewBoardPackJob(reportsService, cfg.PacketStorageDir, logger, metrics)

	lateFeesTask, err := jobs.NewLateFeesTask(jobs.LateFeesPayload{})
	if err != nil {
		logger.Error("build late fees task", slog.Any("error", err))
		os.Exit(1)
	}
	remindersTask, err := jobs.NewOverdueRemindersTask(jobs.TenantScopedPayload{})
	if err != nil {
		logger.Error("build reminders task", slog.Any("error", err))
		os.Exit(1)
	}
	escalateTask, err := jobs.NewViolationsEscalateTask(jobs.TenantScopedPayload{})
	if err != nil {
		logger.Error("build escalate task", slog.Any("error", err))
		os.Exit(1)
	}
	varianceTask, err := jobs.NewVarianceCheckTask(jobs.VarianceCheckPayload{})
	if err != nil {
		logger.Error("build variance task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewLedgerIntegrityTask(jobs.TenantScopedPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: sendEmailJob.Handle},
			{Type: jobs.TaskARLateFees, Handler: lateFeesJob.Handle},
			{Type: jobs.TaskARMonthlyInvoices, Handler: monthlyInvoicesJob.Handle},
			{Type: jobs.TaskAROverdueReminders, Handler: overdueRemindersJob.Handle},
			{Type: jobs.TaskViolationsEscalate, Handler: violationsEscalateJob.Handle},
			{Type: jobs.TaskBudgetVarianceCheck, Handler: varianceCheckJob.Handle},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskBoardPackRender, Handler: boardPackJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: lateFeesTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: escalateTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 8 * * 1", Task: remindersTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 1 * *", Task: varianceTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
