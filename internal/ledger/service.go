package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Service owns the double-entry core: chart of accounts, journal posting and
// balance computation. Every method takes an explicit tenant id; there is no
// ambient tenant context.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateFund creates one of the tenant's segregated funds. At most one fund
// per (tenant, type) exists; a duplicate returns ErrFundExists.
func (s *Service) CreateFund(ctx context.Context, in CreateFundInput) (Fund, error) {
	if err := in.Validate(); err != nil {
		return Fund{}, err
	}
	var fund Fund
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertFund(ctx, in)
		if err != nil {
			return err
		}
		fund = created
		return nil
	})
	if err != nil {
		return Fund{}, err
	}
	return fund, nil
}

// CreateAccount creates a chart of accounts node after checking the fund
// belongs to the same tenant. The tenant/fund pairing is rejected here, not
// at write time in the database.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fund, err := tx.GetFund(ctx, in.TenantID, in.FundID)
		if err != nil {
			if errors.Is(err, ErrFundNotFound) {
				return ErrFundMismatch
			}
			return err
		}
		if fund.TenantID != in.TenantID {
			return ErrFundMismatch
		}
		created, err := tx.InsertAccount(ctx, in)
		if err != nil {
			return err
		}
		account = created
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// PostEntry atomically allocates the tenant's next entry number and writes the
// header plus all lines. The balance invariant is validated before any write;
// an unbalanced or empty entry is never persisted.
func (s *Service) PostEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, in.TenantID, SeqJournalEntry)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertEntry(ctx, in, number)
		if err != nil {
			return err
		}
		lines, err := tx.InsertEntryLines(ctx, inserted.ID, in.Lines)
		if err != nil {
			return err
		}
		inserted.Lines = lines
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// ReverseEntry posts a new entry with every line's debit and credit swapped.
// The original entry is never mutated. Reversing twice returns
// ErrAlreadyReversed.
func (s *Service) ReverseEntry(ctx context.Context, in ReverseInput) (JournalEntry, error) {
	if in.TenantID == 0 || in.EntryID == 0 {
		return JournalEntry{}, errors.New("ledger: tenant and entry required")
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryWithLines(ctx, in.TenantID, in.EntryID)
		if err != nil {
			return err
		}
		reversed, err := tx.HasReversal(ctx, in.TenantID, in.EntryID)
		if err != nil {
			return err
		}
		if reversed {
			return ErrAlreadyReversed
		}
		date := in.Date
		if date.IsZero() {
			date = s.now()
		}
		posting := PostingInput{
			TenantID:    in.TenantID,
			Date:        date,
			Type:        EntryReversal,
			Description: reversalDescription(in.Description, original.Number),
			CreatedBy:   in.CreatedBy,
			ReversesID:  &original.ID,
			Lines:       reverseLines(original.Lines),
		}
		number, err := tx.NextNumber(ctx, in.TenantID, SeqJournalEntry)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertEntry(ctx, posting, number)
		if err != nil {
			return err
		}
		lines, err := tx.InsertEntryLines(ctx, inserted.ID, posting.Lines)
		if err != nil {
			return err
		}
		inserted.Lines = lines
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return reversal, nil
}

// GetEntry fetches one entry with its lines.
func (s *Service) GetEntry(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	return s.repo.GetEntryWithLines(ctx, tenantID, entryID)
}

// ListEntries returns a page of entries, newest first.
func (s *Service) ListEntries(ctx context.Context, tenantID int64, limit, offset int) ([]JournalEntry, int, error) {
	return s.repo.ListEntries(ctx, tenantID, limit, offset)
}

// ListAccounts returns the tenant's chart of accounts.
func (s *Service) ListAccounts(ctx context.Context, tenantID int64) ([]Account, error) {
	return s.repo.ListAccounts(ctx, tenantID)
}

// ListFunds returns the tenant's funds.
func (s *Service) ListFunds(ctx context.Context, tenantID int64) ([]Fund, error) {
	return s.repo.ListFunds(ctx, tenantID)
}

// GetFund fetches one fund.
func (s *Service) GetFund(ctx context.Context, tenantID, fundID int64) (Fund, error) {
	return s.repo.GetFund(ctx, tenantID, fundID)
}

// GetFundByType resolves one of the tenant's funds by its fixed type.
func (s *Service) GetFundByType(ctx context.Context, tenantID int64, fundType FundType) (Fund, error) {
	return s.repo.GetFundByType(ctx, tenantID, fundType)
}

// ResolveAccount resolves an account by its stable number within a fund.
// Command scripts go through this single lookup instead of ad hoc string
// matching at each call site.
func (s *Service) ResolveAccount(ctx context.Context, tenantID, fundID int64, number string) (Account, error) {
	return s.repo.GetAccountByNumber(ctx, tenantID, fundID, number)
}

// AccountBalance sums every line posted against the account and nets the
// result by the account type's normal side: debits-credits for debit-normal
// accounts, credits-debits otherwise. Computed fresh on every call.
func (s *Service) AccountBalance(ctx context.Context, tenantID, accountID int64) (Balance, error) {
	account, err := s.repo.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return Balance{}, err
	}
	debits, credits, err := s.repo.SumAccount(ctx, tenantID, accountID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		AccountID: accountID,
		Debits:    debits,
		Credits:   credits,
		Net:       NetBalance(account.Type, debits, credits),
	}, nil
}

// TrialBalance aggregates every account of a fund and checks debits equal
// credits across the fund.
func (s *Service) TrialBalance(ctx context.Context, tenantID, fundID int64) (TrialBalance, error) {
	if _, err := s.repo.GetFund(ctx, tenantID, fundID); err != nil {
		return TrialBalance{}, err
	}
	totals, err := s.repo.FundTotals(ctx, tenantID, fundID)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(totals), nil
}

// NetBalance nets raw debit/credit sums by the account type's normal side.
func NetBalance(accountType AccountType, debits, credits decimal.Decimal) decimal.Decimal {
	if accountType.NormalSide() == NormalDebit {
		return debits.Sub(credits)
	}
	return credits.Sub(debits)
}

func reverseLines(lines []JournalEntryLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Memo:      line.Memo,
		})
	}
	return out
}

func reversalDescription(desc string, number int64) string {
	if desc != "" {
		return desc
	}
	return fmt.Sprintf("Reversal of JE %d", number)
}
