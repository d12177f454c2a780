package ledger

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	_ "github.com/covenant-hq/covenant/testing"
)

type memoryRepo struct {
	funds     map[int64]Fund
	accounts  map[int64]Account
	entries   map[int64]JournalEntry
	sequences map[string]int64
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		funds:     make(map[int64]Fund),
		accounts:  make(map[int64]Account),
		entries:   make(map[int64]JournalEntry),
		sequences: make(map[string]int64),
	}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetFund(ctx context.Context, tenantID, fundID int64) (Fund, error) {
	f, ok := r.funds[fundID]
	if !ok || f.TenantID != tenantID {
		return Fund{}, ErrFundNotFound
	}
	return f, nil
}

func (r *memoryRepo) GetFundByType(ctx context.Context, tenantID int64, fundType FundType) (Fund, error) {
	for _, f := range r.funds {
		if f.TenantID == tenantID && f.Type == fundType {
			return f, nil
		}
	}
	return Fund{}, ErrFundNotFound
}

func (r *memoryRepo) ListFunds(ctx context.Context, tenantID int64) ([]Fund, error) {
	var out []Fund
	for _, f := range r.funds {
		if f.TenantID == tenantID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) GetAccount(ctx context.Context, tenantID, accountID int64) (Account, error) {
	a, ok := r.accounts[accountID]
	if !ok || a.TenantID != tenantID {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (r *memoryRepo) GetAccountByNumber(ctx context.Context, tenantID, fundID int64, number string) (Account, error) {
	for _, a := range r.accounts {
		if a.TenantID == tenantID && a.FundID == fundID && a.Number == number {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (r *memoryRepo) ListAccounts(ctx context.Context, tenantID int64) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *memoryRepo) ListEntries(ctx context.Context, tenantID int64, limit, offset int) ([]JournalEntry, int, error) {
	var out []JournalEntry
	for _, e := range r.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *memoryRepo) GetEntryWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	e, ok := r.entries[entryID]
	if !ok || e.TenantID != tenantID {
		return JournalEntry{}, ErrEntryNotFound
	}
	return e, nil
}

func (r *memoryRepo) SumAccount(ctx context.Context, tenantID, accountID int64) (decimal.Decimal, decimal.Decimal, error) {
	debits, credits := decimal.Zero, decimal.Zero
	for _, e := range r.entries {
		if e.TenantID != tenantID {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				debits = debits.Add(l.Debit)
				credits = credits.Add(l.Credit)
			}
		}
	}
	return debits, credits, nil
}

func (r *memoryRepo) FundTotals(ctx context.Context, tenantID, fundID int64) ([]AccountTotals, error) {
	var out []AccountTotals
	accounts, _ := r.ListAccounts(ctx, tenantID)
	for _, a := range accounts {
		if a.FundID != fundID {
			continue
		}
		debits, credits, _ := r.SumAccount(ctx, tenantID, a.ID)
		out = append(out, AccountTotals{AccountID: a.ID, Number: a.Number, Name: a.Name, Type: a.Type, Debits: debits, Credits: credits})
	}
	return out, nil
}

func (t *memoryTx) NextNumber(ctx context.Context, tenantID int64, name string) (int64, error) {
	key := fmt.Sprintf("%d/%s", tenantID, name)
	t.repo.sequences[key]++
	return t.repo.sequences[key], nil
}

func (t *memoryTx) InsertFund(ctx context.Context, in CreateFundInput) (Fund, error) {
	for _, f := range t.repo.funds {
		if f.TenantID == in.TenantID && f.Type == in.Type {
			return Fund{}, ErrFundExists
		}
	}
	f := Fund{ID: t.repo.id(), TenantID: in.TenantID, Type: in.Type, Name: in.Name, CreatedAt: time.Now()}
	t.repo.funds[f.ID] = f
	return f, nil
}

func (t *memoryTx) InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	for _, a := range t.repo.accounts {
		if a.TenantID == in.TenantID && a.FundID == in.FundID && a.Number == in.Number {
			return Account{}, ErrAccountExists
		}
	}
	a := Account{ID: t.repo.id(), TenantID: in.TenantID, FundID: in.FundID, Number: in.Number, Name: in.Name, Type: in.Type, ParentID: in.ParentID, IsActive: true}
	t.repo.accounts[a.ID] = a
	return a, nil
}

func (t *memoryTx) InsertEntry(ctx context.Context, in PostingInput, number int64) (JournalEntry, error) {
	e := JournalEntry{
		ID:          t.repo.id(),
		TenantID:    in.TenantID,
		Number:      number,
		Date:        in.Date,
		Type:        in.Type,
		Description: in.Description,
		ReversesID:  in.ReversesID,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   time.Now(),
	}
	t.repo.entries[e.ID] = e
	return e, nil
}

func (t *memoryTx) InsertEntryLines(ctx context.Context, entryID int64, lines []PostingLineInput) ([]JournalEntryLine, error) {
	e := t.repo.entries[entryID]
	out := make([]JournalEntryLine, 0, len(lines))
	for _, l := range lines {
		line := JournalEntryLine{ID: t.repo.id(), EntryID: entryID, AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo}
		e.Lines = append(e.Lines, line)
		out = append(out, line)
	}
	t.repo.entries[entryID] = e
	return out, nil
}

func (t *memoryTx) GetFund(ctx context.Context, tenantID, fundID int64) (Fund, error) {
	return t.repo.GetFund(ctx, tenantID, fundID)
}

func (t *memoryTx) GetEntryWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	return t.repo.GetEntryWithLines(ctx, tenantID, entryID)
}

func (t *memoryTx) HasReversal(ctx context.Context, tenantID, entryID int64) (bool, error) {
	for _, e := range t.repo.entries {
		if e.TenantID == tenantID && e.ReversesID != nil && *e.ReversesID == entryID {
			return true, nil
		}
	}
	return false, nil
}

func seedLedger(t *testing.T, svc *Service) (Fund, Account, Account) {
	t.Helper()
	ctx := context.Background()
	fund, err := svc.CreateFund(ctx, CreateFundInput{TenantID: 1, Type: FundOperating, Name: "Operating"})
	require.NoError(t, err)
	cash, err := svc.CreateAccount(ctx, CreateAccountInput{TenantID: 1, FundID: fund.ID, Number: AcctCash, Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
	income, err := svc.CreateAccount(ctx, CreateAccountInput{TenantID: 1, FundID: fund.ID, Number: AcctAssessmentIncome, Name: "Assessment Income", Type: AccountTypeRevenue})
	require.NoError(t, err)
	return fund, cash, income
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPostEntryRejectsUnbalanced(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, cash, income := seedLedger(t, svc)

	_, err := svc.PostEntry(context.Background(), PostingInput{
		TenantID: 1,
		Date:     time.Now(),
		Type:     EntryStandard,
		Lines: []PostingLineInput{
			{AccountID: cash.ID, Debit: dec("100")},
			{AccountID: income.ID, Credit: dec("90")},
		},
	})
	require.ErrorIs(t, err, ErrUnbalanced)
}

func TestPostEntryRejectsEmptyAndSingleLine(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, cash, _ := seedLedger(t, svc)

	_, err := svc.PostEntry(context.Background(), PostingInput{TenantID: 1, Date: time.Now(), Type: EntryStandard})
	require.ErrorIs(t, err, ErrTooFewLines)

	_, err = svc.PostEntry(context.Background(), PostingInput{
		TenantID: 1, Date: time.Now(), Type: EntryStandard,
		Lines: []PostingLineInput{{AccountID: cash.ID, Debit: dec("100")}},
	})
	require.ErrorIs(t, err, ErrTooFewLines)
}

func TestPostEntryRejectsMixedLine(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, cash, income := seedLedger(t, svc)

	_, err := svc.PostEntry(context.Background(), PostingInput{
		TenantID: 1, Date: time.Now(), Type: EntryStandard,
		Lines: []PostingLineInput{
			{AccountID: cash.ID, Debit: dec("50"), Credit: dec("50")},
			{AccountID: income.ID, Credit: dec("0")},
		},
	})
	require.Error(t, err)
}

func TestEntryNumbersSequentialNoGaps(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, cash, income := seedLedger(t, svc)

	for i := 1; i <= 5; i++ {
		entry, err := svc.PostEntry(context.Background(), PostingInput{
			TenantID: 1, Date: time.Now(), Type: EntryStandard,
			Lines: []PostingLineInput{
				{AccountID: cash.ID, Debit: dec("10")},
				{AccountID: income.ID, Credit: dec("10")},
			},
		})
		require.NoError(t, err)
		require.Equal(t, int64(i), entry.Number)
	}
}

func TestAccountBalanceNormalSide(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, cash, income := seedLedger(t, svc)
	ctx := context.Background()

	post := func(amount string) {
		_, err := svc.PostEntry(ctx, PostingInput{
			TenantID: 1, Date: time.Now(), Type: EntryAssessment,
			Lines: []PostingLineInput{
				{AccountID: cash.ID, Debit: dec(amount)},
				{AccountID: income.ID, Credit: dec(amount)},
			},
		})
		require.NoError(t, err)
	}
	post("250.00")
	post("75.50")

	cashBal, err := svc.AccountBalance(ctx, 1, cash.ID)
	require.NoError(t, err)
	require.True(t, cashBal.Net.Equal(dec("325.50")), "cash balance %s", cashBal.Net)

	incomeBal, err := svc.AccountBalance(ctx, 1, income.ID)
	require.NoError(t, err)
	require.True(t, incomeBal.Net.Equal(dec("325.50")), "income balance %s", incomeBal.Net)
}

func TestAccountBalanceOrderInvariant(t *testing.T) {
	amounts := []string{"10.00", "300.25", "4.75"}

	run := func(order []string) decimal.Decimal {
		svc := NewService(newMemoryRepo())
		_, cash, income := seedLedger(t, svc)
		for _, amt := range order {
			_, err := svc.PostEntry(context.Background(), PostingInput{
				TenantID: 1, Date: time.Now(), Type: EntryStandard,
				Lines: []PostingLineInput{
					{AccountID: cash.ID, Debit: dec(amt)},
					{AccountID: income.ID, Credit: dec(amt)},
				},
			})
			require.NoError(t, err)
		}
		bal, err := svc.AccountBalance(context.Background(), 1, cash.ID)
		require.NoError(t, err)
		return bal.Net
	}

	forward := run(amounts)
	reversed := run([]string{amounts[2], amounts[1], amounts[0]})
	require.True(t, forward.Equal(reversed))
}

func TestTrialBalanceBalances(t *testing.T) {
	svc := NewService(newMemoryRepo())
	fund, cash, income := seedLedger(t, svc)
	ctx := context.Background()

	expense, err := svc.CreateAccount(ctx, CreateAccountInput{TenantID: 1, FundID: fund.ID, Number: AcctMaintenanceExpense, Name: "Maintenance", Type: AccountTypeExpense})
	require.NoError(t, err)

	_, err = svc.PostEntry(ctx, PostingInput{
		TenantID: 1, Date: time.Now(), Type: EntryAssessment,
		Lines: []PostingLineInput{
			{AccountID: cash.ID, Debit: dec("1000")},
			{AccountID: income.ID, Credit: dec("1000")},
		},
	})
	require.NoError(t, err)
	_, err = svc.PostEntry(ctx, PostingInput{
		TenantID: 1, Date: time.Now(), Type: EntryStandard,
		Lines: []PostingLineInput{
			{AccountID: expense.ID, Debit: dec("400")},
			{AccountID: cash.ID, Credit: dec("400")},
		},
	})
	require.NoError(t, err)

	tb, err := svc.TrialBalance(ctx, 1, fund.ID)
	require.NoError(t, err)
	require.True(t, tb.Balanced)
	require.True(t, tb.TotalDebit.Equal(tb.TotalCredit))
	require.True(t, tb.TotalDebit.Equal(dec("1000")), "total debit %s", tb.TotalDebit)
}

func TestReverseEntry(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, cash, income := seedLedger(t, svc)
	ctx := context.Background()

	entry, err := svc.PostEntry(ctx, PostingInput{
		TenantID: 1, Date: time.Now(), Type: EntryStandard,
		Lines: []PostingLineInput{
			{AccountID: cash.ID, Debit: dec("120")},
			{AccountID: income.ID, Credit: dec("120")},
		},
	})
	require.NoError(t, err)

	reversal, err := svc.ReverseEntry(ctx, ReverseInput{TenantID: 1, EntryID: entry.ID})
	require.NoError(t, err)
	require.Equal(t, EntryReversal, reversal.Type)
	require.NotNil(t, reversal.ReversesID)
	require.Equal(t, entry.ID, *reversal.ReversesID)
	require.True(t, reversal.Lines[0].Credit.Equal(dec("120")))
	require.True(t, reversal.Lines[1].Debit.Equal(dec("120")))

	bal, err := svc.AccountBalance(ctx, 1, cash.ID)
	require.NoError(t, err)
	require.True(t, bal.Net.IsZero())

	_, err = svc.ReverseEntry(ctx, ReverseInput{TenantID: 1, EntryID: entry.ID})
	require.ErrorIs(t, err, ErrAlreadyReversed)
}

func TestCreateFundDuplicateType(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()
	_, err := svc.CreateFund(ctx, CreateFundInput{TenantID: 1, Type: FundReserve, Name: "Reserve"})
	require.NoError(t, err)
	_, err = svc.CreateFund(ctx, CreateFundInput{TenantID: 1, Type: FundReserve, Name: "Reserve Again"})
	require.ErrorIs(t, err, ErrFundExists)
}

func TestCreateAccountFundMismatch(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	otherFund, err := svc.CreateFund(ctx, CreateFundInput{TenantID: 2, Type: FundOperating, Name: "Other HOA Operating"})
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, CreateAccountInput{TenantID: 1, FundID: otherFund.ID, Number: AcctCash, Name: "Cash", Type: AccountTypeAsset})
	require.ErrorIs(t, err, ErrFundMismatch)
}
