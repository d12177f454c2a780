package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/platform/db"
)

// Sequence names allocated from the per-tenant counter table.
const (
	SeqJournalEntry = "journal_entry"
	SeqInvoice      = "invoice"
	SeqPayment      = "payment"
)

// AccountTotals aggregates posted debit/credit sums for one account.
type AccountTotals struct {
	AccountID int64
	Number    string
	Name      string
	Type      AccountType
	Debits    decimal.Decimal
	Credits   decimal.Decimal
}

// Repository encapsulates DB operations for the ledger core.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetFund(ctx context.Context, tenantID, fundID int64) (Fund, error)
	GetFundByType(ctx context.Context, tenantID int64, fundType FundType) (Fund, error)
	ListFunds(ctx context.Context, tenantID int64) ([]Fund, error)
	GetAccount(ctx context.Context, tenantID, accountID int64) (Account, error)
	GetAccountByNumber(ctx context.Context, tenantID, fundID int64, number string) (Account, error)
	ListAccounts(ctx context.Context, tenantID int64) ([]Account, error)
	ListEntries(ctx context.Context, tenantID int64, limit, offset int) ([]JournalEntry, int, error)
	GetEntryWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error)
	SumAccount(ctx context.Context, tenantID, accountID int64) (debits, credits decimal.Decimal, err error)
	FundTotals(ctx context.Context, tenantID, fundID int64) ([]AccountTotals, error)
}

// TxRepository exposes methods available within a posting transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, tenantID int64, name string) (int64, error)
	InsertFund(ctx context.Context, in CreateFundInput) (Fund, error)
	InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	InsertEntry(ctx context.Context, in PostingInput, number int64) (JournalEntry, error)
	InsertEntryLines(ctx context.Context, entryID int64, lines []PostingLineInput) ([]JournalEntryLine, error)
	GetFund(ctx context.Context, tenantID, fundID int64) (Fund, error)
	GetEntryWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error)
	HasReversal(ctx context.Context, tenantID, entryID int64) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed ledger repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const fundColumns = `id, tenant_id, fund_type, name, created_at, updated_at`

func scanFund(row pgx.Row) (Fund, error) {
	var f Fund
	err := row.Scan(&f.ID, &f.TenantID, &f.Type, &f.Name, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Fund{}, ErrFundNotFound
		}
		return Fund{}, err
	}
	return f, nil
}

func (r *repository) GetFund(ctx context.Context, tenantID, fundID int64) (Fund, error) {
	return scanFund(r.db.QueryRow(ctx, `SELECT `+fundColumns+` FROM funds WHERE tenant_id=$1 AND id=$2`, tenantID, fundID))
}

func (r *repository) GetFundByType(ctx context.Context, tenantID int64, fundType FundType) (Fund, error) {
	return scanFund(r.db.QueryRow(ctx, `SELECT `+fundColumns+` FROM funds WHERE tenant_id=$1 AND fund_type=$2`, tenantID, fundType))
}

func (r *repository) ListFunds(ctx context.Context, tenantID int64) ([]Fund, error) {
	rows, err := r.db.Query(ctx, `SELECT `+fundColumns+` FROM funds WHERE tenant_id=$1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var funds []Fund
	for rows.Next() {
		var f Fund
		if err := rows.Scan(&f.ID, &f.TenantID, &f.Type, &f.Name, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		funds = append(funds, f)
	}
	return funds, rows.Err()
}

const accountColumns = `id, tenant_id, fund_id, number, name, type, parent_id, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.FundID, &a.Number, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetAccount(ctx context.Context, tenantID, accountID int64) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, accountID))
}

func (r *repository) GetAccountByNumber(ctx context.Context, tenantID, fundID int64, number string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND fund_id=$2 AND number=$3`, tenantID, fundID, number))
}

func (r *repository) ListAccounts(ctx context.Context, tenantID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 ORDER BY fund_id, number`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.FundID, &a.Number, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) ListEntries(ctx context.Context, tenantID int64, limit, offset int) ([]JournalEntry, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE tenant_id=$1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, number, entry_date, entry_type, description, reverses_id, created_by, created_at
FROM journal_entries WHERE tenant_id=$1 ORDER BY number DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Number, &e.Date, &e.Type, &e.Description, &e.ReversesID, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *repository) GetEntryWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	return getEntryWithLines(ctx, r.db, tenantID, entryID)
}

func (r *repository) SumAccount(ctx context.Context, tenantID, accountID int64) (decimal.Decimal, decimal.Decimal, error) {
	var debits, credits decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.tenant_id=$1 AND l.account_id=$2`, tenantID, accountID).Scan(&debits, &credits)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debits, credits, nil
}

func (r *repository) FundTotals(ctx context.Context, tenantID, fundID int64) ([]AccountTotals, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.number, a.name, a.type, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM accounts a
LEFT JOIN journal_entry_lines l ON l.account_id = a.id
LEFT JOIN journal_entries e ON e.id = l.entry_id AND e.tenant_id = a.tenant_id
WHERE a.tenant_id=$1 AND a.fund_id=$2
GROUP BY a.id, a.number, a.name, a.type
ORDER BY a.number`, tenantID, fundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var totals []AccountTotals
	for rows.Next() {
		var t AccountTotals
		if err := rows.Scan(&t.AccountID, &t.Number, &t.Name, &t.Type, &t.Debits, &t.Credits); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getEntryWithLines(ctx context.Context, q queryer, tenantID, entryID int64) (JournalEntry, error) {
	var e JournalEntry
	err := q.QueryRow(ctx, `SELECT id, tenant_id, number, entry_date, entry_type, description, reverses_id, created_by, created_at
FROM journal_entries WHERE tenant_id=$1 AND id=$2`, tenantID, entryID).
		Scan(&e.ID, &e.TenantID, &e.Number, &e.Date, &e.Type, &e.Description, &e.ReversesID, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, memo, created_at
FROM journal_entry_lines WHERE entry_id=$1 ORDER BY id`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalEntryLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit, &line.Memo, &line.CreatedAt); err != nil {
			return JournalEntry{}, err
		}
		e.Lines = append(e.Lines, line)
	}
	return e, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// NextNumber allocates the next value from the tenant's named counter row.
// The row is locked FOR UPDATE, so concurrent allocations serialize instead of
// racing a read-max-then-increment.
func (r *txRepository) NextNumber(ctx context.Context, tenantID int64, name string) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO tenant_sequences (tenant_id, name, last_value)
VALUES ($1, $2, 1)
ON CONFLICT (tenant_id, name) DO UPDATE SET last_value = tenant_sequences.last_value + 1
RETURNING last_value`, tenantID, name).Scan(&next)
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *txRepository) InsertFund(ctx context.Context, in CreateFundInput) (Fund, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO funds (tenant_id, fund_type, name)
VALUES ($1,$2,$3) RETURNING id, created_at, updated_at`, in.TenantID, in.Type, in.Name)
	f := Fund{TenantID: in.TenantID, Type: in.Type, Name: in.Name}
	if err := row.Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if isUniqueViolation(err, "uq_funds_tenant_type") {
			return Fund{}, ErrFundExists
		}
		return Fund{}, err
	}
	return f, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (tenant_id, fund_id, number, name, type, parent_id, is_active)
VALUES ($1,$2,$3,$4,$5,$6,TRUE) RETURNING id, created_at, updated_at`,
		in.TenantID, in.FundID, in.Number, in.Name, in.Type, in.ParentID)
	a := Account{TenantID: in.TenantID, FundID: in.FundID, Number: in.Number, Name: in.Name, Type: in.Type, ParentID: in.ParentID, IsActive: true}
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if isUniqueViolation(err, "uq_accounts_tenant_fund_number") {
			return Account{}, ErrAccountExists
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, in PostingInput, number int64) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (tenant_id, number, entry_date, entry_type, description, reverses_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		in.TenantID, number, in.Date, in.Type, in.Description, in.ReversesID, in.CreatedBy)
	e := JournalEntry{
		TenantID:    in.TenantID,
		Number:      number,
		Date:        in.Date,
		Type:        in.Type,
		Description: in.Description,
		ReversesID:  in.ReversesID,
		CreatedBy:   in.CreatedBy,
	}
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *txRepository) InsertEntryLines(ctx context.Context, entryID int64, lines []PostingLineInput) ([]JournalEntryLine, error) {
	out := make([]JournalEntryLine, 0, len(lines))
	for _, line := range lines {
		row := r.tx.QueryRow(ctx, `INSERT INTO journal_entry_lines (entry_id, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`,
			entryID, line.AccountID, line.Debit, line.Credit, line.Memo)
		l := JournalEntryLine{EntryID: entryID, AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit, Memo: line.Memo}
		if err := row.Scan(&l.ID, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *txRepository) GetFund(ctx context.Context, tenantID, fundID int64) (Fund, error) {
	return scanFund(r.tx.QueryRow(ctx, `SELECT `+fundColumns+` FROM funds WHERE tenant_id=$1 AND id=$2`, tenantID, fundID))
}

func (r *txRepository) GetEntryWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	return getEntryWithLines(ctx, r.tx, tenantID, entryID)
}

func (r *txRepository) HasReversal(ctx context.Context, tenantID, entryID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries WHERE tenant_id=$1 AND reverses_id=$2)`, tenantID, entryID).Scan(&exists)
	return exists, err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}
