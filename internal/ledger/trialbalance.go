package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TrialBalanceRow is one account inside the trial balance.
type TrialBalanceRow struct {
	AccountID int64           `json:"account_id"`
	Number    string          `json:"number"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Balance   decimal.Decimal `json:"balance"`
}

// TrialBalance is the final structure rendered in reports.
type TrialBalance struct {
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
	Balanced    bool              `json:"balanced"`
}

// BuildTrialBalance folds raw account totals into the report. Each account's
// net balance goes on its normal side, so for a consistent ledger the debit
// and credit columns total to the same figure.
func BuildTrialBalance(totals []AccountTotals) TrialBalance {
	tb := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, t := range totals {
		net := NetBalance(t.Type, t.Debits, t.Credits)
		row := TrialBalanceRow{
			AccountID: t.AccountID,
			Number:    t.Number,
			Name:      t.Name,
			Type:      t.Type,
			Balance:   net,
		}
		if t.Type.NormalSide() == NormalDebit {
			row.Debit = net
			row.Credit = decimal.Zero
		} else {
			row.Debit = decimal.Zero
			row.Credit = net
		}
		// Accounts carrying a balance opposite their normal side flip columns.
		if net.IsNegative() {
			if t.Type.NormalSide() == NormalDebit {
				row.Debit = decimal.Zero
				row.Credit = net.Neg()
			} else {
				row.Debit = net.Neg()
				row.Credit = decimal.Zero
			}
		}
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
		tb.Rows = append(tb.Rows, row)
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Number < tb.Rows[j].Number })
	tb.Balanced = tb.TotalDebit.Equal(tb.TotalCredit)
	return tb
}
