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

	"github.com/covenant-hq/covenant/internal/budget"
	jobmetrics "github.com/covenant-hq/covenant/internal/jobs"
)

// VarianceChecker is the budget operation the sweep drives.
type VarianceChecker interface {
	CheckAll(ctx context.Context, tenantID int64, thresholdAmount, thresholdPercent *decimal.Decimal, asOf time.Time) ([]budget.VarianceReport, error)
}

// VarianceCheckJob flags budget-vs-actual variances across associations.
type VarianceCheckJob struct {
	Tenants TenantLister
	Budgets VarianceChecker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewVarianceCheckJob initialises the budget:variance_check handler.
func NewVarianceCheckJob(tenants TenantLister, budgets VarianceChecker, logger *slog.Logger, metrics *jobmetrics.Metrics) *VarianceCheckJob {
	return &VarianceCheckJob{
		Tenants: tenants,
		Budgets: budgets,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one variance sweep.
func (j *VarianceCheckJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Budgets == nil {
		return errors.New("variance check: handler not configured")
	}
	var payload VarianceCheckPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	thresholdAmount, err := optionalDecimal(payload.ThresholdAmount)
	if err != nil {
		return asynq.SkipRetry
	}
	thresholdPercent, err := optionalDecimal(payload.ThresholdPercent)
	if err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskBudgetVarianceCheck)
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
		reports, err := j.Budgets.CheckAll(ctx, tn.ID, thresholdAmount, thresholdPercent, asOf)
		if err != nil {
			resultErr = errors.Join(resultErr, fmt.Errorf("tenant %d: %w", tn.ID, err))
			j.Logger.Error("variance sweep failed", slog.Int64("tenant_id", tn.ID), slog.Any("error", err))
			continue
		}
		flagged := 0
		for _, report := range reports {
			flagged += report.Flagged
		}
		j.Logger.Info("variance sweep",
			slog.Int64("tenant_id", tn.ID),
			slog.Int("budgets", len(reports)),
			slog.Int("flagged", flagged),
		)
	}
	return resultErr
}

func optionalDecimal(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
