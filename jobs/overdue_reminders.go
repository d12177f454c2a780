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

	"github.com/covenant-hq/covenant/internal/ar"
	jobmetrics "github.com/covenant-hq/covenant/internal/jobs"
	"github.com/covenant-hq/covenant/internal/shared"
)

// OverdueReader is the AR slice the reminder sweep reads from.
type OverdueReader interface {
	OverdueInvoices(ctx context.Context, tenantID int64, asOf time.Time) ([]ar.Invoice, error)
	GetOwner(ctx context.Context, tenantID, ownerID int64) (ar.Owner, error)
}

// EmailEnqueuer queues outbound notices; reminders never block on SMTP.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) error
}

// OverdueRemindersJob emails each delinquent owner a summary of what they owe.
type OverdueRemindersJob struct {
	Tenants TenantLister
	AR      OverdueReader
	Mail    EmailEnqueuer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverdueRemindersJob initialises the ar:overdue_reminders handler.
func NewOverdueRemindersJob(tenants TenantLister, reader OverdueReader, mailer EmailEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueRemindersJob {
	return &OverdueRemindersJob{
		Tenants: tenants,
		AR:      reader,
		Mail:    mailer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one reminder sweep.
func (j *OverdueRemindersJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.AR == nil || j.Mail == nil {
		return errors.New("overdue reminders: handler not configured")
	}
	var payload TenantScopedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskAROverdueReminders)
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
		summary, err := j.remind(ctx, tn.ID, tn.Name, asOf)
		if err != nil {
			resultErr = errors.Join(resultErr, fmt.Errorf("tenant %d: %w", tn.ID, err))
			j.Logger.Error("reminder sweep failed", slog.Int64("tenant_id", tn.ID), slog.Any("error", err))
			continue
		}
		j.Metrics.AddSummary(TaskAROverdueReminders, summary)
		logSummary(j.Logger, "reminder sweep", tn.ID, summary)
	}
	return resultErr
}

type ownerDebt struct {
	ownerID  int64
	total    decimal.Decimal
	invoices int
	oldest   time.Time
}

func (j *OverdueRemindersJob) remind(ctx context.Context, tenantID int64, tenantName string, asOf time.Time) (shared.RunSummary, error) {
	var summary shared.RunSummary
	overdue, err := j.AR.OverdueInvoices(ctx, tenantID, asOf)
	if err != nil {
		return summary, err
	}

	debts := make(map[int64]*ownerDebt)
	order := make([]int64, 0)
	for _, inv := range overdue {
		debt, ok := debts[inv.OwnerID]
		if !ok {
			debt = &ownerDebt{ownerID: inv.OwnerID, oldest: inv.DueDate}
			debts[inv.OwnerID] = debt
			order = append(order, inv.OwnerID)
		}
		debt.total = debt.total.Add(inv.AmountDue)
		debt.invoices++
		if inv.DueDate.Before(debt.oldest) {
			debt.oldest = inv.DueDate
		}
	}

	for _, ownerID := range order {
		debt := debts[ownerID]
		owner, err := j.AR.GetOwner(ctx, tenantID, ownerID)
		if err != nil {
			summary.Failure(fmt.Sprintf("owner %d", ownerID), err)
			continue
		}
		if owner.Email == "" {
			summary.Failure(fmt.Sprintf("owner %d", ownerID), errors.New("no email on file"))
			continue
		}
		msg := reminderEmail(tenantName, owner.Name, debt, asOf)
		msg.To = owner.Email
		if err := j.Mail.EnqueueSendEmail(ctx, msg); err != nil {
			summary.Failure(fmt.Sprintf("owner %d", ownerID), err)
			continue
		}
		summary.Success()
	}
	return summary, nil
}

func reminderEmail(tenantName, ownerName string, debt *ownerDebt, asOf time.Time) SendEmailPayload {
	body := fmt.Sprintf(
		"Dear %s,\n\nAs of %s your account with %s has a past-due balance of $%s across %d invoice(s), the oldest due %s.\n\nPlease remit payment promptly to avoid late fees and further action.\n\n%s",
		ownerName,
		asOf.Format("January 2, 2006"),
		tenantName,
		debt.total.StringFixed(2),
		debt.invoices,
		debt.oldest.Format("January 2, 2006"),
		tenantName,
	)
	return SendEmailPayload{
		Subject: fmt.Sprintf("%s: past-due balance of $%s", tenantName, debt.total.StringFixed(2)),
		Body:    body,
	}
}
