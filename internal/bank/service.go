package bank

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/covenant-hq/covenant/internal/ledger"
	"github.com/covenant-hq/covenant/internal/shared"
)

// LedgerPort is the slice of the ledger service bank accounts need for
// validating the mirrored cash account.
type LedgerPort interface {
	AccountBalance(ctx context.Context, tenantID, accountID int64) (ledger.Balance, error)
}

// Service handles bank accounts, statement import and reconciliation.
type Service struct {
	repo   Repository
	gl     LedgerPort
	logger *slog.Logger
}

// NewService builds the bank service.
func NewService(repo Repository, gl LedgerPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, gl: gl, logger: logger}
}

// CreateBankAccountInput captures bank account creation input.
type CreateBankAccountInput struct {
	TenantID        int64  `json:"-"`
	LedgerAccountID int64  `json:"ledger_account_id"`
	Name            string `json:"name"`
	AccountMask     string `json:"account_mask"`
}

// Validate ensures bank account input correctness.
func (in CreateBankAccountInput) Validate() error {
	if in.TenantID == 0 || in.LedgerAccountID == 0 {
		return errors.New("bank: tenant and ledger account required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("bank: name required")
	}
	return nil
}

// CreateBankAccount registers a bank account mirrored by a ledger cash
// account. The ledger account must exist for the tenant.
func (s *Service) CreateBankAccount(ctx context.Context, in CreateBankAccountInput) (BankAccount, error) {
	if err := in.Validate(); err != nil {
		return BankAccount{}, err
	}
	if _, err := s.gl.AccountBalance(ctx, in.TenantID, in.LedgerAccountID); err != nil {
		return BankAccount{}, err
	}
	var account BankAccount
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertBankAccount(ctx, BankAccount{
			TenantID:        in.TenantID,
			LedgerAccountID: in.LedgerAccountID,
			Name:            in.Name,
			AccountMask:     in.AccountMask,
		})
		if err != nil {
			return err
		}
		account = created
		return nil
	})
	return account, err
}

// GetBankAccount fetches one bank account.
func (s *Service) GetBankAccount(ctx context.Context, tenantID, bankAccountID int64) (BankAccount, error) {
	return s.repo.GetBankAccount(ctx, tenantID, bankAccountID)
}

// ListBankAccounts returns the tenant's bank accounts.
func (s *Service) ListBankAccounts(ctx context.Context, tenantID int64) ([]BankAccount, error) {
	return s.repo.ListBankAccounts(ctx, tenantID)
}

// ImportStatement parses a statement CSV and stores its rows. The parse is
// all-or-nothing; row insert failures accumulate into the summary.
func (s *Service) ImportStatement(ctx context.Context, tenantID, bankAccountID int64, r io.Reader) (shared.RunSummary, error) {
	var summary shared.RunSummary
	if _, err := s.repo.GetBankAccount(ctx, tenantID, bankAccountID); err != nil {
		return summary, err
	}
	rows, err := ParseStatement(r)
	if err != nil {
		return summary, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, row := range rows {
			_, err := tx.InsertStatementLine(ctx, StatementLine{
				BankAccountID: bankAccountID,
				Date:          row.Date,
				Description:   row.Description,
				Amount:        row.Amount,
				Reference:     row.Reference,
			})
			if err != nil {
				summary.Failure(row.Reference, err)
				return err
			}
			summary.Success()
		}
		return nil
	})
	if err != nil {
		return summary, err
	}
	if s.logger != nil {
		s.logger.Info("statement imported",
			slog.Int64("bank_account", bankAccountID), slog.String("summary", summary.String()))
	}
	return summary, nil
}

// Reconcile matches uncleared statement lines against unreconciled journal
// lines on the mirrored cash account and marks the matches cleared. The
// report carries what matched, what on the statement did not, and which
// journal lines are still outstanding.
func (s *Service) Reconcile(ctx context.Context, tenantID, bankAccountID int64, from, to time.Time) (ReconciliationReport, error) {
	account, err := s.repo.GetBankAccount(ctx, tenantID, bankAccountID)
	if err != nil {
		return ReconciliationReport{}, err
	}
	statement, err := s.repo.ListUnclearedStatementLines(ctx, bankAccountID, from, to)
	if err != nil {
		return ReconciliationReport{}, err
	}
	// Widen the journal query by the match window so edge-of-range
	// transactions still pair up.
	ledgerLines, err := s.repo.ListUnreconciledLedgerLines(ctx, tenantID, account.LedgerAccountID,
		from.AddDate(0, 0, -matchWindow), to.AddDate(0, 0, matchWindow))
	if err != nil {
		return ReconciliationReport{}, err
	}

	matched, unmatched, outstanding := matchLines(statement, ledgerLines)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, m := range matched {
			if err := tx.MarkCleared(ctx, m.StatementLineID, m.LedgerLineID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ReconciliationReport{}, err
	}
	return ReconciliationReport{
		BankAccountID: bankAccountID,
		From:          from,
		To:            to,
		Matched:       matched,
		Unmatched:     unmatched,
		Outstanding:   outstanding,
	}, nil
}
