package workorder

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/covenant-hq/covenant/internal/ledger"
	_ "github.com/covenant-hq/covenant/testing"
)

type memoryRepo struct {
	orders map[int64]WorkOrder
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[int64]WorkOrder)}
}

type memoryTx struct{ repo *memoryRepo }

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetWorkOrder(ctx context.Context, tenantID, workOrderID int64) (WorkOrder, error) {
	wo, ok := r.orders[workOrderID]
	if !ok || wo.TenantID != tenantID {
		return WorkOrder{}, ErrWorkOrderNotFound
	}
	return wo, nil
}

func (r *memoryRepo) ListWorkOrders(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]WorkOrder, int, error) {
	var out []WorkOrder
	for _, wo := range r.orders {
		if wo.TenantID == tenantID && (status == "" || wo.Status == status) {
			out = append(out, wo)
		}
	}
	return out, len(out), nil
}

func (t *memoryTx) InsertWorkOrder(ctx context.Context, wo WorkOrder) (WorkOrder, error) {
	t.repo.nextID++
	wo.ID = t.repo.nextID
	t.repo.orders[wo.ID] = wo
	return wo, nil
}

func (t *memoryTx) GetWorkOrderForUpdate(ctx context.Context, tenantID, workOrderID int64) (WorkOrder, error) {
	return t.repo.GetWorkOrder(ctx, tenantID, workOrderID)
}

func (t *memoryTx) UpdateWorkOrder(ctx context.Context, wo WorkOrder) error {
	if _, ok := t.repo.orders[wo.ID]; !ok {
		return ErrWorkOrderNotFound
	}
	t.repo.orders[wo.ID] = wo
	return nil
}

type fakeLedger struct {
	entries  []ledger.PostingInput
	accounts map[string]ledger.Account
	nextID   int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{accounts: make(map[string]ledger.Account)}
}

func (f *fakeLedger) PostEntry(ctx context.Context, in ledger.PostingInput) (ledger.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return ledger.JournalEntry{}, err
	}
	f.entries = append(f.entries, in)
	return ledger.JournalEntry{ID: int64(len(f.entries)), Number: int64(len(f.entries))}, nil
}

func (f *fakeLedger) GetFundByType(ctx context.Context, tenantID int64, fundType ledger.FundType) (ledger.Fund, error) {
	return ledger.Fund{ID: 1, TenantID: tenantID, Type: fundType}, nil
}

func (f *fakeLedger) ResolveAccount(ctx context.Context, tenantID, fundID int64, number string) (ledger.Account, error) {
	if a, ok := f.accounts[number]; ok {
		return a, nil
	}
	f.nextID++
	a := ledger.Account{ID: f.nextID, TenantID: tenantID, FundID: fundID, Number: number}
	f.accounts[number] = a
	return a, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T) (*Service, *fakeLedger, WorkOrder) {
	t.Helper()
	gl := newFakeLedger()
	svc := NewService(newMemoryRepo(), gl)
	svc.WithNow(func() time.Time { return time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC) })
	wo, err := svc.Create(context.Background(), CreateInput{
		TenantID: 1, Title: "Replace pool pump", Priority: PriorityHigh, EstimatedCost: dec("1500"),
	})
	require.NoError(t, err)
	return svc, gl, wo
}

func TestLifecycleAndCompletionPosting(t *testing.T) {
	svc, gl, wo := newTestService(t)
	ctx := context.Background()
	require.Equal(t, StatusOpen, wo.Status)

	wo, err := svc.Assign(ctx, 1, wo.ID, "BlueWave Pools")
	require.NoError(t, err)
	require.Equal(t, StatusAssigned, wo.Status)
	require.Equal(t, "BlueWave Pools", wo.AssignedTo)

	wo, err = svc.Start(ctx, 1, wo.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, wo.Status)

	wo, err = svc.Complete(ctx, 1, wo.ID, dec("1725.40"))
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, wo.Status)
	require.True(t, wo.ActualCost.Equal(dec("1725.40")))
	require.NotNil(t, wo.CompletedAt)
	require.NotNil(t, wo.JournalID)

	require.Len(t, gl.entries, 1)
	entry := gl.entries[0]
	require.Len(t, entry.Lines, 2)
	require.True(t, entry.Lines[0].Debit.Equal(dec("1725.40")))
	require.True(t, entry.Lines[1].Credit.Equal(dec("1725.40")))
}

func TestZeroCostCompletionPostsNothing(t *testing.T) {
	svc, gl, wo := newTestService(t)
	ctx := context.Background()

	_, err := svc.Assign(ctx, 1, wo.ID, "Self")
	require.NoError(t, err)
	_, err = svc.Start(ctx, 1, wo.ID)
	require.NoError(t, err)

	wo, err = svc.Complete(ctx, 1, wo.ID, decimal.Zero)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, wo.Status)
	require.Nil(t, wo.JournalID)
	require.Empty(t, gl.entries)
}

func TestInvalidTransitions(t *testing.T) {
	svc, _, wo := newTestService(t)
	ctx := context.Background()

	// Cannot start or complete an OPEN order.
	_, err := svc.Start(ctx, 1, wo.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Complete(ctx, 1, wo.ID, dec("100"))
	require.ErrorIs(t, err, ErrInvalidTransition)

	wo, err = svc.Cancel(ctx, 1, wo.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, wo.Status)

	// Terminal.
	_, err = svc.Assign(ctx, 1, wo.ID, "Anyone")
	require.ErrorIs(t, err, ErrInvalidTransition)
}
