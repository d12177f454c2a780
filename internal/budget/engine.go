package budget

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ActualBalance wraps a posted net balance for one account.
type ActualBalance struct {
	AccountID int64
	Number    string
	Name      string
	Amount    decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ComputeVariance merges budgeted and actual amounts per account and applies
// threshold flags. Accounts that appear on only one side still get a row.
// Rows come back largest absolute variance first.
func ComputeVariance(lines []BudgetLine, actuals map[int64]ActualBalance, thresholdAmount, thresholdPercent *decimal.Decimal) []VarianceRow {
	lookup := make(map[int64]VarianceRow, len(lines))
	for _, line := range lines {
		lookup[line.AccountID] = VarianceRow{AccountID: line.AccountID, Budgeted: line.Annual}
	}
	for accountID, actual := range actuals {
		row := lookup[accountID]
		row.AccountID = accountID
		row.AccountNumber = actual.Number
		row.AccountName = actual.Name
		row.Actual = actual.Amount
		lookup[accountID] = row
	}
	rows := make([]VarianceRow, 0, len(lookup))
	for _, row := range lookup {
		row.Variance = row.Actual.Sub(row.Budgeted)
		if !row.Budgeted.IsZero() {
			row.VariancePct = row.Variance.Div(row.Budgeted.Abs()).Mul(hundred).Round(2)
		}
		row.Flagged = exceedsThreshold(row, thresholdAmount, thresholdPercent)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].Variance.Abs(), rows[j].Variance.Abs()
		if a.Equal(b) {
			return rows[i].AccountNumber < rows[j].AccountNumber
		}
		return a.GreaterThan(b)
	})
	return rows
}

func exceedsThreshold(row VarianceRow, amt, pct *decimal.Decimal) bool {
	if amt != nil && row.Variance.Abs().GreaterThanOrEqual(*amt) {
		return true
	}
	if pct != nil && row.VariancePct.Abs().GreaterThanOrEqual(*pct) {
		return true
	}
	return false
}
