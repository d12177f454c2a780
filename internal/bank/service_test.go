package bank

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/covenant-hq/covenant/internal/ledger"
	_ "github.com/covenant-hq/covenant/testing"
)

type memoryRepo struct {
	accounts    map[int64]BankAccount
	statements  map[int64]StatementLine
	ledgerLines []LedgerLine
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[int64]BankAccount), statements: make(map[int64]StatementLine)}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

type memoryTx struct{ repo *memoryRepo }

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetBankAccount(ctx context.Context, tenantID, bankAccountID int64) (BankAccount, error) {
	a, ok := r.accounts[bankAccountID]
	if !ok || a.TenantID != tenantID {
		return BankAccount{}, ErrBankAccountNotFound
	}
	return a, nil
}

func (r *memoryRepo) ListBankAccounts(ctx context.Context, tenantID int64) ([]BankAccount, error) {
	var out []BankAccount
	for _, a := range r.accounts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) statementLines(bankAccountID int64, from, to time.Time, unclearedOnly bool) []StatementLine {
	var out []StatementLine
	for _, l := range r.statements {
		if l.BankAccountID != bankAccountID {
			continue
		}
		if l.Date.Before(from) || l.Date.After(to) {
			continue
		}
		if unclearedOnly && l.Cleared {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (r *memoryRepo) ListStatementLines(ctx context.Context, bankAccountID int64, from, to time.Time) ([]StatementLine, error) {
	return r.statementLines(bankAccountID, from, to, false), nil
}

func (r *memoryRepo) ListUnclearedStatementLines(ctx context.Context, bankAccountID int64, from, to time.Time) ([]StatementLine, error) {
	return r.statementLines(bankAccountID, from, to, true), nil
}

func (r *memoryRepo) ListUnreconciledLedgerLines(ctx context.Context, tenantID, ledgerAccountID int64, from, to time.Time) ([]LedgerLine, error) {
	claimed := make(map[int64]bool)
	for _, s := range r.statements {
		if s.MatchedLineID != nil {
			claimed[*s.MatchedLineID] = true
		}
	}
	var out []LedgerLine
	for _, l := range r.ledgerLines {
		if claimed[l.LineID] || l.Date.Before(from) || l.Date.After(to) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (t *memoryTx) InsertBankAccount(ctx context.Context, a BankAccount) (BankAccount, error) {
	a.ID = t.repo.id()
	t.repo.accounts[a.ID] = a
	return a, nil
}

func (t *memoryTx) InsertStatementLine(ctx context.Context, line StatementLine) (StatementLine, error) {
	line.ID = t.repo.id()
	t.repo.statements[line.ID] = line
	return line, nil
}

func (t *memoryTx) MarkCleared(ctx context.Context, statementLineID, ledgerLineID int64) error {
	line := t.repo.statements[statementLineID]
	line.Cleared = true
	id := ledgerLineID
	line.MatchedLineID = &id
	t.repo.statements[statementLineID] = line
	return nil
}

type fakeLedger struct{}

func (fakeLedger) AccountBalance(ctx context.Context, tenantID, accountID int64) (ledger.Balance, error) {
	return ledger.Balance{AccountID: accountID}, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestParseStatement(t *testing.T) {
	rows, err := ParseStatement(strings.NewReader(`date,description,amount,reference
2025-03-01,ACH deposit,350.00,PMT-000001
2025-03-05,Landscaping,-1200.50,CHK-2041
`))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, rows[0].Amount.Equal(dec("350")))
	require.Equal(t, "PMT-000001", rows[0].Reference)
	require.True(t, rows[1].Amount.Equal(dec("-1200.5")))
}

func TestParseStatementRejectsBadHeader(t *testing.T) {
	_, err := ParseStatement(strings.NewReader("when,what,much,ref\n2025-03-01,x,1,r\n"))
	require.ErrorIs(t, err, ErrBadHeader)
}

func TestParseStatementRejectsBadRow(t *testing.T) {
	_, err := ParseStatement(strings.NewReader("date,description,amount,reference\n2025-03-40,x,1,r\n"))
	require.Error(t, err)
	_, err = ParseStatement(strings.NewReader("date,description,amount,reference\n2025-03-01,x,lots,r\n"))
	require.Error(t, err)
	_, err = ParseStatement(strings.NewReader("date,description,amount,reference\n2025-03-01,x,0,r\n"))
	require.Error(t, err)
}

func newTestService(t *testing.T) (*Service, *memoryRepo, BankAccount) {
	t.Helper()
	repo := newMemoryRepo()
	svc := NewService(repo, fakeLedger{}, nil)
	account, err := svc.CreateBankAccount(context.Background(), CreateBankAccountInput{
		TenantID: 1, LedgerAccountID: 10, Name: "Operating Checking", AccountMask: "***4417",
	})
	require.NoError(t, err)
	return svc, repo, account
}

func TestImportStatement(t *testing.T) {
	svc, repo, account := newTestService(t)

	summary, err := svc.ImportStatement(context.Background(), 1, account.ID, strings.NewReader(`date,description,amount,reference
2025-03-01,Deposit,350.00,PMT-000001
2025-03-02,Deposit,125.00,PMT-000002
`))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Succeeded)

	lines, err := repo.ListStatementLines(context.Background(), account.ID, date("2025-03-01"), date("2025-03-31"))
	require.NoError(t, err)
	require.Len(t, lines, 2)
}

func TestReconcileMatchesAmountAndReference(t *testing.T) {
	svc, repo, account := newTestService(t)
	ctx := context.Background()

	_, err := svc.ImportStatement(ctx, 1, account.ID, strings.NewReader(`date,description,amount,reference
2025-03-01,Deposit,350.00,PMT-000001
2025-03-03,Deposit,350.00,PMT-000002
2025-03-10,Wire out,-900.00,
`))
	require.NoError(t, err)

	repo.ledgerLines = []LedgerLine{
		{LineID: 101, EntryID: 1, Date: date("2025-03-01"), Amount: dec("350"), Memo: "PMT-000002"},
		{LineID: 102, EntryID: 2, Date: date("2025-03-02"), Amount: dec("350"), Memo: "PMT-000001"},
		{LineID: 103, EntryID: 3, Date: date("2025-03-15"), Amount: dec("-450"), Memo: "CHK-9"},
	}

	report, err := svc.Reconcile(ctx, 1, account.ID, date("2025-03-01"), date("2025-03-31"))
	require.NoError(t, err)
	require.Len(t, report.Matched, 2)

	// Reference beats date proximity: the 03-01 deposit pairs with the line
	// carrying its payment number even though another line shares the amount.
	byStatement := make(map[int64]Match)
	for _, m := range report.Matched {
		require.True(t, m.ByReference)
		byStatement[m.LedgerLineID] = m
	}
	require.Contains(t, byStatement, int64(101))
	require.Contains(t, byStatement, int64(102))

	require.Len(t, report.Unmatched, 1)
	require.True(t, report.Unmatched[0].Amount.Equal(dec("-900")))
	require.Len(t, report.Outstanding, 1)
	require.Equal(t, int64(103), report.Outstanding[0].LineID)
}

func TestReconcileIsIdempotent(t *testing.T) {
	svc, repo, account := newTestService(t)
	ctx := context.Background()

	_, err := svc.ImportStatement(ctx, 1, account.ID, strings.NewReader(`date,description,amount,reference
2025-03-01,Deposit,350.00,PMT-000001
`))
	require.NoError(t, err)
	repo.ledgerLines = []LedgerLine{
		{LineID: 101, EntryID: 1, Date: date("2025-03-01"), Amount: dec("350"), Memo: "PMT-000001"},
	}

	report, err := svc.Reconcile(ctx, 1, account.ID, date("2025-03-01"), date("2025-03-31"))
	require.NoError(t, err)
	require.Len(t, report.Matched, 1)

	// A second run has nothing left to pair.
	report, err = svc.Reconcile(ctx, 1, account.ID, date("2025-03-01"), date("2025-03-31"))
	require.NoError(t, err)
	require.Empty(t, report.Matched)
	require.Empty(t, report.Unmatched)
	require.Empty(t, report.Outstanding)
}

func TestReconcileDateWindow(t *testing.T) {
	svc, repo, account := newTestService(t)
	ctx := context.Background()

	_, err := svc.ImportStatement(ctx, 1, account.ID, strings.NewReader(`date,description,amount,reference
2025-03-10,Deposit,200.00,REF-1
`))
	require.NoError(t, err)
	// Five days off is outside the window even with the amount equal.
	repo.ledgerLines = []LedgerLine{
		{LineID: 201, EntryID: 1, Date: date("2025-03-15"), Amount: dec("200"), Memo: "REF-1"},
	}

	report, err := svc.Reconcile(ctx, 1, account.ID, date("2025-03-01"), date("2025-03-31"))
	require.NoError(t, err)
	require.Empty(t, report.Matched)
	require.Len(t, report.Unmatched, 1)
	require.Len(t, report.Outstanding, 1)
}
