package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/covenant-hq/covenant/internal/jobs"
)

// LedgerIntegrityJob re-adds every tenant's books and fails loudly when
// debits and credits diverge. Posting enforces balance per entry; this sweep
// guards against drift from direct writes or migration bugs.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the ledger:integrity handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle executes one integrity sweep.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload TenantScopedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	tenantsChecked, err := j.checkTenantTotals(ctx, payload.TenantID)
	if err != nil {
		resultErr = err
		return resultErr
	}
	brokenEntries, err := j.checkEntries(ctx, payload.TenantID)
	if err != nil {
		resultErr = err
		return resultErr
	}

	if brokenEntries > 0 {
		resultErr = fmt.Errorf("ledger integrity: %d unbalanced entries", brokenEntries)
		return resultErr
	}
	j.Logger.Info("ledger integrity check passed", slog.Int("tenants", tenantsChecked))
	return nil
}

func (j *LedgerIntegrityJob) checkTenantTotals(ctx context.Context, tenantID int64) (int, error) {
	query := `SELECT e.tenant_id, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entries e
JOIN journal_entry_lines l ON l.entry_id = e.id
WHERE ($1 = 0 OR e.tenant_id = $1)
GROUP BY e.tenant_id
ORDER BY e.tenant_id`
	rows, err := j.Pool.Query(ctx, query, tenantID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	checked := 0
	for rows.Next() {
		var id int64
		var debits, credits decimal.Decimal
		if err := rows.Scan(&id, &debits, &credits); err != nil {
			return checked, err
		}
		checked++
		if !debits.Equal(credits) {
			j.Logger.Error("tenant books out of balance",
				slog.Int64("tenant_id", id),
				slog.String("debits", debits.String()),
				slog.String("credits", credits.String()),
			)
		}
	}
	return checked, rows.Err()
}

func (j *LedgerIntegrityJob) checkEntries(ctx context.Context, tenantID int64) (int, error) {
	query := `SELECT e.tenant_id, e.id, e.number, SUM(l.debit), SUM(l.credit)
FROM journal_entries e
JOIN journal_entry_lines l ON l.entry_id = e.id
WHERE ($1 = 0 OR e.tenant_id = $1)
GROUP BY e.tenant_id, e.id, e.number
HAVING SUM(l.debit) <> SUM(l.credit)
ORDER BY e.tenant_id, e.number`
	rows, err := j.Pool.Query(ctx, query, tenantID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	broken := 0
	for rows.Next() {
		var tid, entryID, number int64
		var debits, credits decimal.Decimal
		if err := rows.Scan(&tid, &entryID, &number, &debits, &credits); err != nil {
			return broken, err
		}
		broken++
		j.Logger.Error("unbalanced journal entry",
			slog.Int64("tenant_id", tid),
			slog.Int64("entry_id", entryID),
			slog.Int64("number", number),
			slog.String("debits", debits.String()),
			slog.String("credits", credits.String()),
		)
	}
	return broken, rows.Err()
}
