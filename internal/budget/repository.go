package budget

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covenant-hq/covenant/internal/platform/db"
)

// Repository encapsulates DB operations for budgets.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetBudget(ctx context.Context, tenantID, budgetID int64) (Budget, error)
	GetBudgetByYear(ctx context.Context, tenantID, fundID int64, year int) (Budget, error)
	ListBudgets(ctx context.Context, tenantID int64) ([]Budget, error)
}

// TxRepository exposes methods available inside a budget transaction.
type TxRepository interface {
	InsertBudget(ctx context.Context, b Budget) (Budget, error)
	InsertBudgetLine(ctx context.Context, line BudgetLine) (BudgetLine, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed budget repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const budgetColumns = `id, tenant_id, fund_id, year, name, created_at, updated_at`

func (r *repository) scanBudgetWithLines(ctx context.Context, row pgx.Row) (Budget, error) {
	var b Budget
	err := row.Scan(&b.ID, &b.TenantID, &b.FundID, &b.Year, &b.Name, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, ErrBudgetNotFound
		}
		return Budget{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, budget_id, account_id, annual, monthly, created_at
FROM budget_lines WHERE budget_id=$1 ORDER BY id`, b.ID)
	if err != nil {
		return Budget{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line BudgetLine
		if err := rows.Scan(&line.ID, &line.BudgetID, &line.AccountID, &line.Annual, &line.Monthly, &line.CreatedAt); err != nil {
			return Budget{}, err
		}
		b.Lines = append(b.Lines, line)
	}
	return b, rows.Err()
}

func (r *repository) GetBudget(ctx context.Context, tenantID, budgetID int64) (Budget, error) {
	return r.scanBudgetWithLines(ctx, r.db.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE tenant_id=$1 AND id=$2`, tenantID, budgetID))
}

func (r *repository) GetBudgetByYear(ctx context.Context, tenantID, fundID int64, year int) (Budget, error) {
	return r.scanBudgetWithLines(ctx, r.db.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE tenant_id=$1 AND fund_id=$2 AND year=$3`, tenantID, fundID, year))
}

func (r *repository) ListBudgets(ctx context.Context, tenantID int64) ([]Budget, error) {
	rows, err := r.db.Query(ctx, `SELECT `+budgetColumns+` FROM budgets
WHERE tenant_id=$1 ORDER BY year DESC, fund_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var budgets []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.TenantID, &b.FundID, &b.Year, &b.Name, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertBudget(ctx context.Context, b Budget) (Budget, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO budgets (tenant_id, fund_id, year, name)
VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`, b.TenantID, b.FundID, b.Year, b.Name)
	if err := row.Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_budgets_tenant_fund_year" {
			return Budget{}, ErrBudgetExists
		}
		return Budget{}, err
	}
	return b, nil
}

func (r *txRepository) InsertBudgetLine(ctx context.Context, line BudgetLine) (BudgetLine, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO budget_lines (budget_id, account_id, annual, monthly)
VALUES ($1,$2,$3,$4) RETURNING id, created_at`, line.BudgetID, line.AccountID, line.Annual, line.Monthly)
	if err := row.Scan(&line.ID, &line.CreatedAt); err != nil {
		return BudgetLine{}, err
	}
	return line, nil
}
