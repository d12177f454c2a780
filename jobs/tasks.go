// Package jobs defines the background task types and the Asynq worker that
// executes them.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskTypeSendEmail delivers one transactional email.
	TaskTypeSendEmail = "mail:send"
	// TaskARLateFees assesses late fees on overdue invoices.
	TaskARLateFees = "ar:late_fees"
	// TaskARMonthlyInvoices bills the monthly assessment to every unit.
	TaskARMonthlyInvoices = "ar:monthly_invoices"
	// TaskAROverdueReminders emails owners with past-due balances.
	TaskAROverdueReminders = "ar:overdue_reminders"
	// TaskViolationsEscalate advances overdue violations along the ladder.
	TaskViolationsEscalate = "violations:escalate"
	// TaskBudgetVarianceCheck flags budget-vs-actual variances.
	TaskBudgetVarianceCheck = "budget:variance_check"
	// TaskLedgerIntegrity verifies debits equal credits for every tenant.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskBoardPackRender renders a tenant's monthly board packet to PDF.
	TaskBoardPackRender = "boardpack:render"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs a send-email task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// TenantScopedPayload targets one association, or every association when
// TenantID is zero.
type TenantScopedPayload struct {
	TenantID int64 `json:"tenant_id,omitempty"`
}

// LateFeesPayload parameterises a late-fee run.
type LateFeesPayload struct {
	TenantID  int64  `json:"tenant_id,omitempty"`
	Fee       string `json:"fee,omitempty"`
	GraceDays int    `json:"grace_days,omitempty"`
}

// NewLateFeesTask constructs an ar:late_fees task.
func NewLateFeesTask(payload LateFeesPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskARLateFees, data), nil
}

// MonthlyInvoicesPayload parameterises a monthly billing run. Period is
// "2006-01"; empty means the current month.
type MonthlyInvoicesPayload struct {
	TenantID int64  `json:"tenant_id,omitempty"`
	Period   string `json:"period,omitempty"`
	Amount   string `json:"amount,omitempty"`
	DueDays  int    `json:"due_days,omitempty"`
}

// NewMonthlyInvoicesTask constructs an ar:monthly_invoices task.
func NewMonthlyInvoicesTask(payload MonthlyInvoicesPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskARMonthlyInvoices, data), nil
}

// NewOverdueRemindersTask constructs an ar:overdue_reminders task.
func NewOverdueRemindersTask(payload TenantScopedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAROverdueReminders, data), nil
}

// NewViolationsEscalateTask constructs a violations:escalate task.
func NewViolationsEscalateTask(payload TenantScopedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskViolationsEscalate, data), nil
}

// VarianceCheckPayload parameterises a budget variance sweep.
type VarianceCheckPayload struct {
	TenantID         int64  `json:"tenant_id,omitempty"`
	ThresholdAmount  string `json:"threshold_amount,omitempty"`
	ThresholdPercent string `json:"threshold_percent,omitempty"`
}

// NewVarianceCheckTask constructs a budget:variance_check task.
func NewVarianceCheckTask(payload VarianceCheckPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBudgetVarianceCheck, data), nil
}

// NewLedgerIntegrityTask constructs a ledger:integrity task.
func NewLedgerIntegrityTask(payload TenantScopedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// BoardPackPayload names the tenant and period to render.
type BoardPackPayload struct {
	TenantID int64  `json:"tenant_id"`
	Period   string `json:"period,omitempty"`
}

// NewBoardPackTask constructs a boardpack:render task.
func NewBoardPackTask(payload BoardPackPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBoardPackRender, data), nil
}

// parsePeriod resolves a "2006-01" period string, defaulting to the current
// month in UTC.
func parsePeriod(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01", raw)
}
