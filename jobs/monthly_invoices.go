package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/covenant-hq/covenant/internal/jobs"
	"github.com/covenant-hq/covenant/internal/shared"
)

const defaultDueDays = 15

// MonthlyInvoicer is the AR operation the billing sweep drives.
type MonthlyInvoicer interface {
	GenerateMonthlyInvoices(ctx context.Context, tenantID int64, period time.Time, amount decimal.Decimal, dueDays int) (shared.RunSummary, error)
}

// MonthlyInvoicesJob bills the monthly assessment across associations.
type MonthlyInvoicesJob struct {
	Tenants TenantLister
	AR      MonthlyInvoicer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewMonthlyInvoicesJob initialises the ar:monthly_invoices handler.
func NewMonthlyInvoicesJob(tenants TenantLister, invoicer MonthlyInvoicer, logger *slog.Logger, metrics *jobmetrics.Metrics) *MonthlyInvoicesJob {
	return &MonthlyInvoicesJob{
		Tenants: tenants,
		AR:      invoicer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one billing run.
func (j *MonthlyInvoicesJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.AR == nil {
		return errors.New("monthly invoices: handler not configured")
	}
	var payload MonthlyInvoicesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil || amount.Sign() <= 0 {
		return asynq.SkipRetry
	}
	period, err := parsePeriod(payload.Period, j.clock())
	if err != nil {
		return asynq.SkipRetry
	}
	if payload.DueDays <= 0 {
		payload.DueDays = defaultDueDays
	}

	tracker := j.Metrics.Track(TaskARMonthlyInvoices)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	tenants, err := resolveTenants(ctx, j.Tenants, payload.TenantID)
	if err != nil {
		resultErr = err
		return resultErr
	}

	for _, tn := range tenants {
		summary, err := j.AR.GenerateMonthlyInvoices(ctx, tn.ID, period, amount, payload.DueDays)
		if err != nil {
			resultErr = errors.Join(resultErr, fmt.Errorf("tenant %d: %w", tn.ID, err))
			j.Logger.Error("monthly billing failed", slog.Int64("tenant_id", tn.ID), slog.Any("error", err))
			continue
		}
		j.Metrics.AddSummary(TaskARMonthlyInvoices, summary)
		logSummary(j.Logger, "monthly billing", tn.ID, summary)
	}
	return resultErr
}
