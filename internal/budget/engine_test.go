package budget

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	_ "github.com/covenant-hq/covenant/testing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeVarianceFlagsThreshold(t *testing.T) {
	lines := []BudgetLine{
		{AccountID: 1, Annual: dec("12000")},
		{AccountID: 2, Annual: dec("5000")},
	}
	actuals := map[int64]ActualBalance{
		1: {AccountID: 1, Number: "5000", Name: "Repairs & Maintenance", Amount: dec("13500")},
		2: {AccountID: 2, Number: "5100", Name: "Utilities", Amount: dec("5050")},
		3: {AccountID: 3, Number: "5200", Name: "Insurance", Amount: dec("800")},
	}
	threshold := dec("1000")
	rows := ComputeVariance(lines, actuals, &threshold, nil)
	require.Len(t, rows, 3)

	// Largest absolute variance first.
	require.Equal(t, int64(1), rows[0].AccountID)
	require.True(t, rows[0].Variance.Equal(dec("1500")))
	require.True(t, rows[0].Flagged)
	require.True(t, rows[0].VariancePct.Equal(dec("12.5")))

	// Unbudgeted account still shows up, 800 under threshold.
	var unbudgeted VarianceRow
	for _, row := range rows {
		if row.AccountID == 3 {
			unbudgeted = row
		}
	}
	require.True(t, unbudgeted.Variance.Equal(dec("800")))
	require.False(t, unbudgeted.Flagged)
	require.True(t, unbudgeted.VariancePct.IsZero())

	// Small overspend not flagged.
	for _, row := range rows {
		if row.AccountID == 2 {
			require.False(t, row.Flagged)
		}
	}
}

func TestComputeVariancePercentThreshold(t *testing.T) {
	lines := []BudgetLine{{AccountID: 1, Annual: dec("1000")}}
	actuals := map[int64]ActualBalance{1: {AccountID: 1, Number: "5000", Amount: dec("1200")}}

	pct := dec("15")
	rows := ComputeVariance(lines, actuals, nil, &pct)
	require.Len(t, rows, 1)
	require.True(t, rows[0].VariancePct.Equal(dec("20")))
	require.True(t, rows[0].Flagged)

	pct = dec("25")
	rows = ComputeVariance(lines, actuals, nil, &pct)
	require.False(t, rows[0].Flagged)
}

func TestComputeVarianceUnderspendFlagsAbsolute(t *testing.T) {
	lines := []BudgetLine{{AccountID: 1, Annual: dec("10000")}}
	actuals := map[int64]ActualBalance{1: {AccountID: 1, Number: "5000", Amount: dec("7000")}}

	threshold := dec("2000")
	rows := ComputeVariance(lines, actuals, &threshold, nil)
	require.True(t, rows[0].Variance.Equal(dec("-3000")))
	require.True(t, rows[0].Flagged)
}
