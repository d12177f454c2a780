package reports

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/covenant-hq/covenant/internal/ar"
	"github.com/covenant-hq/covenant/internal/ledger"
	"github.com/covenant-hq/covenant/internal/tenant"
)

func newTestService(t *testing.T) (*Service, *fakeLedger, *fakeAR) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tenants := &fakeTenants{tn: tenant.Tenant{ID: 1, Name: "Maple Grove HOA"}}
	gl := &fakeLedger{balances: map[int64]ledger.TrialBalance{}}
	receivable := &fakeAR{}
	builder := NewBuilder(tenants, gl, receivable, nil, nil, nil)
	svc := NewService(builder, nil, tenants, gl, receivable, client, time.Minute, slog.Default())
	return svc, gl, receivable
}

func TestAgingCSVIsCached(t *testing.T) {
	svc, _, receivable := newTestService(t)
	ctx := context.Background()
	asOf := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)

	receivable.aging = ar.AgingReport{AsOf: asOf, Rows: []ar.AgingRow{{OwnerID: 1, OwnerName: "Alice Nguyen", Total: dec("750")}}}
	first, err := svc.AgingCSV(ctx, 1, asOf)
	require.NoError(t, err)
	require.Contains(t, string(first), "Alice Nguyen")

	// underlying data changes but the cached report is served
	receivable.aging = ar.AgingReport{AsOf: asOf, Rows: []ar.AgingRow{{OwnerID: 2, OwnerName: "Bob Ortiz", Total: dec("100")}}}
	second, err := svc.AgingCSV(ctx, 1, asOf)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.NoError(t, svc.InvalidateTenant(ctx, 1))
	third, err := svc.AgingCSV(ctx, 1, asOf)
	require.NoError(t, err)
	require.Contains(t, string(third), "Bob Ortiz")
}

func TestTrialBalanceCSVResolvesFund(t *testing.T) {
	svc, gl, _ := newTestService(t)
	ctx := context.Background()

	gl.funds = []ledger.Fund{{ID: 5, Type: ledger.FundReserve, Name: "Reserve"}}
	gl.balances[5] = ledger.TrialBalance{
		Rows:        []ledger.TrialBalanceRow{{Number: "1000", Name: "Cash", Type: ledger.AccountTypeAsset, Debit: dec("900")}},
		TotalDebit:  dec("900"),
		TotalCredit: dec("900"),
		Balanced:    true,
	}

	out, err := svc.TrialBalanceCSV(ctx, 1, 5)
	require.NoError(t, err)
	require.Contains(t, string(out), "Fund: Reserve")
	require.Contains(t, string(out), "1000,Cash")

	_, err = svc.TrialBalanceCSV(ctx, 1, 99)
	require.ErrorIs(t, err, ledger.ErrFundNotFound)
}

func TestOwnerLedgerCSVIsNotCached(t *testing.T) {
	svc, _, receivable := newTestService(t)
	ctx := context.Background()

	receivable.statement = ar.OwnerLedger{OwnerID: 7, OwnerName: "Alice Nguyen", Balance: dec("300")}
	first, err := svc.OwnerLedgerCSV(ctx, 1, 7)
	require.NoError(t, err)
	require.Contains(t, string(first), "300.00")

	receivable.statement = ar.OwnerLedger{OwnerID: 7, OwnerName: "Alice Nguyen", Balance: dec("0")}
	second, err := svc.OwnerLedgerCSV(ctx, 1, 7)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestAuditorExportPagesThroughJournal(t *testing.T) {
	svc, gl, _ := newTestService(t)
	ctx := context.Background()

	gl.accounts = []ledger.Account{{ID: 10, Number: "1000", Name: "Cash"}}
	for i := 0; i < auditorPageSize+3; i++ {
		gl.entries = append(gl.entries, ledger.JournalEntry{
			Number: int64(i + 1),
			Date:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i%28),
			Type:   ledger.EntryStandard,
			Lines:  []ledger.JournalEntryLine{{AccountID: 10, Debit: dec("1")}},
		})
	}

	out, err := svc.AuditorExportCSV(ctx, 1)
	require.NoError(t, err)
	require.Contains(t, string(out), "Entries: 503")
}
