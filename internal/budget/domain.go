package budget

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Budget is a tenant's approved plan for one fund and fiscal year.
type Budget struct {
	ID        int64
	TenantID  int64
	FundID    int64
	Year      int
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Lines     []BudgetLine
}

// BudgetLine plans one account for the year. Monthly is the even spread used
// for year-to-date comparison.
type BudgetLine struct {
	ID        int64
	BudgetID  int64
	AccountID int64
	Annual    decimal.Decimal
	Monthly   decimal.Decimal
	CreatedAt time.Time
}

// VarianceRow compares one account's budget against posted actuals.
type VarianceRow struct {
	AccountID     int64           `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	AccountName   string          `json:"account_name"`
	Budgeted      decimal.Decimal `json:"budgeted"`
	Actual        decimal.Decimal `json:"actual"`
	Variance      decimal.Decimal `json:"variance"`
	VariancePct   decimal.Decimal `json:"variance_pct"`
	Flagged       bool            `json:"flagged"`
}

// VarianceReport is the budget-vs-actual comparison for one budget.
type VarianceReport struct {
	BudgetID int64         `json:"budget_id"`
	TenantID int64         `json:"tenant_id"`
	FundID   int64         `json:"fund_id"`
	Year     int           `json:"year"`
	Rows     []VarianceRow `json:"rows"`
	Flagged  int           `json:"flagged"`
}

var (
	// ErrBudgetNotFound occurs when a budget is missing.
	ErrBudgetNotFound = errors.New("budget: not found")
	// ErrBudgetExists occurs when the tenant already budgets the fund and year.
	ErrBudgetExists = errors.New("budget: fund already budgeted for year")
)
