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

const (
	defaultLateFee   = "25"
	defaultGraceDays = 10
)

// LateFeeAssessor is the AR operation the late-fee sweep drives.
type LateFeeAssessor interface {
	AssessLateFees(ctx context.Context, tenantID int64, asOf time.Time, fee decimal.Decimal, graceDays int) (shared.RunSummary, error)
}

// LateFeesJob assesses late fees across associations.
type LateFeesJob struct {
	Tenants TenantLister
	AR      LateFeeAssessor
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLateFeesJob initialises the ar:late_fees handler.
func NewLateFeesJob(tenants TenantLister, assessor LateFeeAssessor, logger *slog.Logger, metrics *jobmetrics.Metrics) *LateFeesJob {
	return &LateFeesJob{
		Tenants: tenants,
		AR:      assessor,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one late-fee sweep.
func (j *LateFeesJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.AR == nil {
		return errors.New("late fees: handler not configured")
	}
	var payload LateFeesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Fee == "" {
		payload.Fee = defaultLateFee
	}
	if payload.GraceDays <= 0 {
		payload.GraceDays = defaultGraceDays
	}
	fee, err := decimal.NewFromString(payload.Fee)
	if err != nil || fee.Sign() <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskARLateFees)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	tenants, err := resolveTenants(ctx, j.Tenants, payload.TenantID)
	if err != nil {
		resultErr = err
		return resultErr
	}

	asOf := j.clock()
	for _, tn := range tenants {
		summary, err := j.AR.AssessLateFees(ctx, tn.ID, asOf, fee, payload.GraceDays)
		if err != nil {
			resultErr = errors.Join(resultErr, fmt.Errorf("tenant %d: %w", tn.ID, err))
			j.Logger.Error("late fee sweep failed", slog.Int64("tenant_id", tn.ID), slog.Any("error", err))
			continue
		}
		j.Metrics.AddSummary(TaskARLateFees, summary)
		logSummary(j.Logger, "late fee sweep", tn.ID, summary)
	}
	return resultErr
}

// logSummary reports a batch outcome at a level matching its health.
func logSummary(logger *slog.Logger, msg string, tenantID int64, summary shared.RunSummary) {
	attrs := []any{
		slog.Int64("tenant_id", tenantID),
		slog.Int("processed", summary.Processed),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
	}
	if summary.Failed > 0 {
		attrs = append(attrs, slog.Any("errors", summary.Errors))
		logger.Warn(msg, attrs...)
		return
	}
	logger.Info(msg, attrs...)
}
