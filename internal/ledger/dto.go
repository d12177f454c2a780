package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PostingLineInput describes a journal line for a posting request.
type PostingLineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	TenantID    int64
	Date        time.Time
	Type        EntryType
	Description string
	CreatedBy   int64
	ReversesID  *int64
	Lines       []PostingLineInput
}

// Validate ensures posting input meets the double-entry criteria before any
// write happens. An unbalanced or empty entry is never persisted.
func (in PostingInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("ledger: tenant required")
	}
	if in.Date.IsZero() {
		return errors.New("ledger: entry date required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("ledger: line %d cannot be both debit and credit", idx)
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return fmt.Errorf("ledger: line %d has no amount", idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return ErrUnbalanced
	}
	return nil
}

// CreateFundInput captures fund creation input.
type CreateFundInput struct {
	TenantID int64
	Type     FundType
	Name     string
}

// Validate ensures fund input correctness.
func (in CreateFundInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("ledger: tenant required")
	}
	switch in.Type {
	case FundOperating, FundReserve, FundSpecialAssessment:
	default:
		return fmt.Errorf("ledger: unknown fund type %q", in.Type)
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("ledger: fund name required")
	}
	return nil
}

// CreateAccountInput captures account creation input.
type CreateAccountInput struct {
	TenantID int64
	FundID   int64
	Number   string
	Name     string
	Type     AccountType
	ParentID *int64
}

// Validate ensures account input correctness.
func (in CreateAccountInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("ledger: tenant required")
	}
	if in.FundID == 0 {
		return errors.New("ledger: fund required")
	}
	if strings.TrimSpace(in.Number) == "" {
		return errors.New("ledger: account number required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("ledger: account name required")
	}
	if !in.Type.Valid() {
		return fmt.Errorf("ledger: unknown account type %q", in.Type)
	}
	return nil
}

// ReverseInput wraps parameters for posting a reversal entry.
type ReverseInput struct {
	TenantID    int64
	EntryID     int64
	Date        time.Time
	Description string
	CreatedBy   int64
}
