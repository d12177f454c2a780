package bank

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covenant-hq/covenant/internal/platform/db"
)

// Repository encapsulates DB operations for bank reconciliation.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetBankAccount(ctx context.Context, tenantID, bankAccountID int64) (BankAccount, error)
	ListBankAccounts(ctx context.Context, tenantID int64) ([]BankAccount, error)
	ListStatementLines(ctx context.Context, bankAccountID int64, from, to time.Time) ([]StatementLine, error)
	ListUnclearedStatementLines(ctx context.Context, bankAccountID int64, from, to time.Time) ([]StatementLine, error)
	ListUnreconciledLedgerLines(ctx context.Context, tenantID, ledgerAccountID int64, from, to time.Time) ([]LedgerLine, error)
}

// TxRepository exposes methods available inside a bank transaction.
type TxRepository interface {
	InsertBankAccount(ctx context.Context, a BankAccount) (BankAccount, error)
	InsertStatementLine(ctx context.Context, line StatementLine) (StatementLine, error)
	MarkCleared(ctx context.Context, statementLineID, ledgerLineID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed bank repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) GetBankAccount(ctx context.Context, tenantID, bankAccountID int64) (BankAccount, error) {
	var a BankAccount
	err := r.db.QueryRow(ctx, `SELECT id, tenant_id, ledger_account_id, name, account_mask, created_at, updated_at
FROM bank_accounts WHERE tenant_id=$1 AND id=$2`, tenantID, bankAccountID).
		Scan(&a.ID, &a.TenantID, &a.LedgerAccountID, &a.Name, &a.AccountMask, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BankAccount{}, ErrBankAccountNotFound
		}
		return BankAccount{}, err
	}
	return a, nil
}

func (r *repository) ListBankAccounts(ctx context.Context, tenantID int64) ([]BankAccount, error) {
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, ledger_account_id, name, account_mask, created_at, updated_at
FROM bank_accounts WHERE tenant_id=$1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []BankAccount
	for rows.Next() {
		var a BankAccount
		if err := rows.Scan(&a.ID, &a.TenantID, &a.LedgerAccountID, &a.Name, &a.AccountMask, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

const statementColumns = `id, bank_account_id, date, description, amount, reference, cleared, matched_line_id, created_at`

func collectStatementLines(rows pgx.Rows) ([]StatementLine, error) {
	defer rows.Close()
	var lines []StatementLine
	for rows.Next() {
		var l StatementLine
		if err := rows.Scan(&l.ID, &l.BankAccountID, &l.Date, &l.Description, &l.Amount, &l.Reference, &l.Cleared, &l.MatchedLineID, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) ListStatementLines(ctx context.Context, bankAccountID int64, from, to time.Time) ([]StatementLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+statementColumns+` FROM bank_statement_lines
WHERE bank_account_id=$1 AND date BETWEEN $2 AND $3 ORDER BY date, id`, bankAccountID, from, to)
	if err != nil {
		return nil, err
	}
	return collectStatementLines(rows)
}

func (r *repository) ListUnclearedStatementLines(ctx context.Context, bankAccountID int64, from, to time.Time) ([]StatementLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+statementColumns+` FROM bank_statement_lines
WHERE bank_account_id=$1 AND NOT cleared AND date BETWEEN $2 AND $3 ORDER BY date, id`, bankAccountID, from, to)
	if err != nil {
		return nil, err
	}
	return collectStatementLines(rows)
}

// ListUnreconciledLedgerLines flattens journal lines on the mirrored cash
// account into signed amounts: debit positive, credit negative. Lines already
// claimed by a cleared statement line are excluded.
func (r *repository) ListUnreconciledLedgerLines(ctx context.Context, tenantID, ledgerAccountID int64, from, to time.Time) ([]LedgerLine, error) {
	rows, err := r.db.Query(ctx, `SELECT l.id, l.entry_id, e.date, l.debit - l.credit, l.memo
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.tenant_id=$1 AND l.account_id=$2 AND e.date BETWEEN $3 AND $4
  AND NOT EXISTS (SELECT 1 FROM bank_statement_lines s WHERE s.matched_line_id = l.id)
ORDER BY e.date, l.id`, tenantID, ledgerAccountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []LedgerLine
	for rows.Next() {
		var l LedgerLine
		if err := rows.Scan(&l.LineID, &l.EntryID, &l.Date, &l.Amount, &l.Memo); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertBankAccount(ctx context.Context, a BankAccount) (BankAccount, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO bank_accounts (tenant_id, ledger_account_id, name, account_mask)
VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`, a.TenantID, a.LedgerAccountID, a.Name, a.AccountMask)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return BankAccount{}, err
	}
	return a, nil
}

func (r *txRepository) InsertStatementLine(ctx context.Context, line StatementLine) (StatementLine, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO bank_statement_lines (bank_account_id, date, description, amount, reference)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`, line.BankAccountID, line.Date, line.Description, line.Amount, line.Reference)
	if err := row.Scan(&line.ID, &line.CreatedAt); err != nil {
		return StatementLine{}, err
	}
	return line, nil
}

func (r *txRepository) MarkCleared(ctx context.Context, statementLineID, ledgerLineID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE bank_statement_lines SET cleared=TRUE, matched_line_id=$2 WHERE id=$1`,
		statementLineID, ledgerLineID)
	return err
}
