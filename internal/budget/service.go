package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/ledger"
)

var twelve = decimal.NewFromInt(12)

// LedgerPort is the slice of the ledger service variance needs for actuals.
type LedgerPort interface {
	GetFund(ctx context.Context, tenantID, fundID int64) (ledger.Fund, error)
	TrialBalance(ctx context.Context, tenantID, fundID int64) (ledger.TrialBalance, error)
}

// Service handles budgets and budget-vs-actual variance.
type Service struct {
	repo   Repository
	gl     LedgerPort
	logger *slog.Logger
}

// NewService builds the budget service.
func NewService(repo Repository, gl LedgerPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, gl: gl, logger: logger}
}

// BudgetLineInput plans one account.
type BudgetLineInput struct {
	AccountID int64           `json:"account_id"`
	Annual    decimal.Decimal `json:"annual"`
}

// CreateBudgetInput captures budget creation input.
type CreateBudgetInput struct {
	TenantID int64             `json:"-"`
	FundID   int64             `json:"fund_id"`
	Year     int               `json:"year"`
	Name     string            `json:"name"`
	Lines    []BudgetLineInput `json:"lines"`
}

// Validate ensures budget input correctness.
func (in CreateBudgetInput) Validate() error {
	if in.TenantID == 0 || in.FundID == 0 {
		return errors.New("budget: tenant and fund required")
	}
	if in.Year < 2000 || in.Year > 2200 {
		return errors.New("budget: implausible year")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("budget: name required")
	}
	if len(in.Lines) == 0 {
		return errors.New("budget: at least one line required")
	}
	seen := make(map[int64]bool, len(in.Lines))
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("budget: line %d account required", idx)
		}
		if seen[line.AccountID] {
			return fmt.Errorf("budget: line %d duplicates account %d", idx, line.AccountID)
		}
		seen[line.AccountID] = true
	}
	return nil
}

// CreateBudget stores a budget with its lines. Monthly amounts are the even
// twelfth of the annual figure.
func (s *Service) CreateBudget(ctx context.Context, in CreateBudgetInput) (Budget, error) {
	if err := in.Validate(); err != nil {
		return Budget{}, err
	}
	fund, err := s.gl.GetFund(ctx, in.TenantID, in.FundID)
	if err != nil {
		return Budget{}, err
	}
	var budget Budget
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertBudget(ctx, Budget{
			TenantID: in.TenantID,
			FundID:   fund.ID,
			Year:     in.Year,
			Name:     in.Name,
		})
		if err != nil {
			return err
		}
		for _, line := range in.Lines {
			inserted, err := tx.InsertBudgetLine(ctx, BudgetLine{
				BudgetID:  created.ID,
				AccountID: line.AccountID,
				Annual:    line.Annual,
				Monthly:   line.Annual.Div(twelve).Round(2),
			})
			if err != nil {
				return err
			}
			created.Lines = append(created.Lines, inserted)
		}
		budget = created
		return nil
	})
	return budget, err
}

// Get fetches one budget with lines.
func (s *Service) Get(ctx context.Context, tenantID, budgetID int64) (Budget, error) {
	return s.repo.GetBudget(ctx, tenantID, budgetID)
}

// List returns the tenant's budgets.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Budget, error) {
	return s.repo.ListBudgets(ctx, tenantID)
}

// Variance compares the budget against posted actuals from the fund's trial
// balance and flags rows past either threshold. Nil thresholds disable the
// corresponding check.
func (s *Service) Variance(ctx context.Context, tenantID, budgetID int64, thresholdAmount, thresholdPercent *decimal.Decimal) (VarianceReport, error) {
	budget, err := s.repo.GetBudget(ctx, tenantID, budgetID)
	if err != nil {
		return VarianceReport{}, err
	}
	tb, err := s.gl.TrialBalance(ctx, tenantID, budget.FundID)
	if err != nil {
		return VarianceReport{}, err
	}
	actuals := make(map[int64]ActualBalance, len(tb.Rows))
	for _, row := range tb.Rows {
		actuals[row.AccountID] = ActualBalance{
			AccountID: row.AccountID,
			Number:    row.Number,
			Name:      row.Name,
			Amount:    row.Balance,
		}
	}
	rows := ComputeVariance(budget.Lines, actuals, thresholdAmount, thresholdPercent)
	report := VarianceReport{
		BudgetID: budget.ID,
		TenantID: tenantID,
		FundID:   budget.FundID,
		Year:     budget.Year,
		Rows:     rows,
	}
	for _, row := range rows {
		if row.Flagged {
			report.Flagged++
		}
	}
	return report, nil
}

// CheckAll runs variance for every budget of the tenant and logs flagged
// rows; used by the scheduled variance check.
func (s *Service) CheckAll(ctx context.Context, tenantID int64, thresholdAmount, thresholdPercent *decimal.Decimal, asOf time.Time) ([]VarianceReport, error) {
	budgets, err := s.repo.ListBudgets(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var reports []VarianceReport
	for _, b := range budgets {
		if b.Year != asOf.Year() {
			continue
		}
		report, err := s.Variance(ctx, tenantID, b.ID, thresholdAmount, thresholdPercent)
		if err != nil {
			return reports, err
		}
		if report.Flagged > 0 && s.logger != nil {
			s.logger.Warn("budget variance over threshold",
				slog.Int64("tenant", tenantID),
				slog.Int64("budget", b.ID),
				slog.Int("flagged", report.Flagged))
		}
		reports = append(reports, report)
	}
	return reports, nil
}
