package bank

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// BankAccount links a real-world bank account to the ledger cash account that
// mirrors it.
type BankAccount struct {
	ID              int64
	TenantID        int64
	LedgerAccountID int64
	Name            string
	AccountMask     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StatementLine is one imported bank statement row. Amount is signed:
// deposits positive, withdrawals negative.
type StatementLine struct {
	ID            int64
	BankAccountID int64
	Date          time.Time
	Description   string
	Amount        decimal.Decimal
	Reference     string
	Cleared       bool
	MatchedLineID *int64
	CreatedAt     time.Time
}

// LedgerLine is a journal line on the mirrored cash account, flattened for
// matching. Amount is signed the same way as statement lines: debits to cash
// positive, credits negative.
type LedgerLine struct {
	LineID  int64
	EntryID int64
	Date    time.Time
	Amount  decimal.Decimal
	Memo    string
}

// Match pairs a statement line with the journal line it cleared.
type Match struct {
	StatementLineID int64           `json:"statement_line_id"`
	LedgerLineID    int64           `json:"ledger_line_id"`
	Amount          decimal.Decimal `json:"amount"`
	ByReference     bool            `json:"by_reference"`
}

// ReconciliationReport summarizes one reconciliation run.
type ReconciliationReport struct {
	BankAccountID int64           `json:"bank_account_id"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Matched       []Match         `json:"matched"`
	Unmatched     []StatementLine `json:"unmatched"`
	Outstanding   []LedgerLine    `json:"outstanding"`
}

var (
	// ErrBankAccountNotFound occurs when a bank account is missing.
	ErrBankAccountNotFound = errors.New("bank: account not found")
	// ErrBadHeader occurs when a statement CSV does not start with the fixed header.
	ErrBadHeader = errors.New("bank: statement header must be date,description,amount,reference")
)
