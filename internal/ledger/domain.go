package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// FundType enumerates the segregated pools of money a tenant operates.
type FundType string

const (
	FundOperating         FundType = "OPERATING"
	FundReserve           FundType = "RESERVE"
	FundSpecialAssessment FundType = "SPECIAL_ASSESSMENT"
)

// Fund models a named pool of money per tenant. At most one fund per
// (tenant, fund type); funds are never deleted.
type Fund struct {
	ID        int64
	TenantID  int64
	Type      FundType
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalSide identifies which side records an increase for an account type.
type NormalSide string

const (
	NormalDebit  NormalSide = "DEBIT"
	NormalCredit NormalSide = "CREDIT"
)

// NormalSide returns the increase side for the account type.
func (t AccountType) NormalSide() NormalSide {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return NormalDebit
	default:
		return NormalCredit
	}
}

// Valid reports whether t is one of the five fixed account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Account models a chart of accounts node. (TenantID, FundID, Number) is unique.
type Account struct {
	ID        int64
	TenantID  int64
	FundID    int64
	Number    string
	Name      string
	Type      AccountType
	ParentID  *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryType tags the business origin of a journal entry.
type EntryType string

const (
	EntryStandard   EntryType = "STANDARD"
	EntryOpening    EntryType = "OPENING"
	EntryAssessment EntryType = "ASSESSMENT"
	EntryPayment    EntryType = "PAYMENT"
	EntryLateFee    EntryType = "LATE_FEE"
	EntryAdjustment EntryType = "ADJUSTMENT"
	EntryReversal   EntryType = "REVERSAL"
)

// JournalEntry captures posting metadata. Entries are immutable once created;
// a correction is a new reversal entry, never an edit.
type JournalEntry struct {
	ID          int64
	TenantID    int64
	Number      int64
	Date        time.Time
	Type        EntryType
	Description string
	ReversesID  *int64
	CreatedBy   int64
	CreatedAt   time.Time
	Lines       []JournalEntryLine
}

// JournalEntryLine stores a debit or credit amount for an account. Exactly one
// of Debit/Credit is strictly positive and the other is zero.
type JournalEntryLine struct {
	ID        int64
	EntryID   int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
	CreatedAt time.Time
}

// Balance aggregates posted line totals for one account, netted by the
// account's normal side.
type Balance struct {
	AccountID int64
	Debits    decimal.Decimal
	Credits   decimal.Decimal
	Net       decimal.Decimal
}

var (
	// ErrUnbalanced occurs when an entry's debits do not equal its credits.
	ErrUnbalanced = errors.New("ledger: entry does not balance")
	// ErrTooFewLines occurs when an entry has fewer than two lines.
	ErrTooFewLines = errors.New("ledger: entry requires at least two lines")
	// ErrEntryNotFound occurs when a journal entry is missing.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrAccountNotFound occurs when an account is missing.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrAccountExists occurs when (tenant, fund, number) already exists.
	ErrAccountExists = errors.New("ledger: account number already exists")
	// ErrFundNotFound occurs when a fund is missing.
	ErrFundNotFound = errors.New("ledger: fund not found")
	// ErrFundExists occurs when the tenant already has a fund of the type.
	ErrFundExists = errors.New("ledger: fund of this type already exists")
	// ErrFundMismatch occurs when an account references a fund of another tenant.
	ErrFundMismatch = errors.New("ledger: fund does not belong to tenant")
	// ErrAlreadyReversed occurs when reversing an entry twice.
	ErrAlreadyReversed = errors.New("ledger: entry already reversed")
)
