package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/covenant-hq/covenant/internal/jobs"
	"github.com/covenant-hq/covenant/internal/shared"
	"github.com/covenant-hq/covenant/internal/violations"
)

// ViolationEscalator is the covenant-enforcement operation the sweep drives.
type ViolationEscalator interface {
	EscalateOverdue(ctx context.Context, tenantID int64, asOf time.Time, policy violations.EscalationPolicy) (shared.RunSummary, error)
}

// ViolationsEscalateJob advances overdue violations along the ladder.
type ViolationsEscalateJob struct {
	Tenants    TenantLister
	Violations ViolationEscalator
	Policy     violations.EscalationPolicy
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewViolationsEscalateJob initialises the violations:escalate handler.
func NewViolationsEscalateJob(tenants TenantLister, escalator ViolationEscalator, logger *slog.Logger, metrics *jobmetrics.Metrics) *ViolationsEscalateJob {
	return &ViolationsEscalateJob{
		Tenants:    tenants,
		Violations: escalator,
		Policy:     violations.DefaultPolicy(),
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one escalation sweep.
func (j *ViolationsEscalateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Violations == nil {
		return errors.New("violations escalate: handler not configured")
	}
	var payload TenantScopedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskViolationsEscalate)
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
		summary, err := j.Violations.EscalateOverdue(ctx, tn.ID, asOf, j.Policy)
		if err != nil {
			resultErr = errors.Join(resultErr, fmt.Errorf("tenant %d: %w", tn.ID, err))
			j.Logger.Error("escalation sweep failed", slog.Int64("tenant_id", tn.ID), slog.Any("error", err))
			continue
		}
		j.Metrics.AddSummary(TaskViolationsEscalate, summary)
		logSummary(j.Logger, "escalation sweep", tn.ID, summary)
	}
	return resultErr
}
