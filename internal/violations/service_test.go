package violations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/covenant-hq/covenant/internal/ar"
	_ "github.com/covenant-hq/covenant/testing"
)

type memoryRepo struct {
	violations map[int64]Violation
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{violations: make(map[int64]Violation)}
}

type memoryTx struct{ repo *memoryRepo }

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetViolation(ctx context.Context, tenantID, violationID int64) (Violation, error) {
	v, ok := r.violations[violationID]
	if !ok || v.TenantID != tenantID {
		return Violation{}, ErrViolationNotFound
	}
	return v, nil
}

func (r *memoryRepo) ListViolations(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]Violation, int, error) {
	var out []Violation
	for _, v := range r.violations {
		if v.TenantID == tenantID && (status == "" || v.Status == status) {
			out = append(out, v)
		}
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListActive(ctx context.Context, tenantID int64) ([]Violation, error) {
	var out []Violation
	for _, v := range r.violations {
		if v.TenantID == tenantID && v.Status != StatusResolved {
			out = append(out, v)
		}
	}
	return out, nil
}

func (t *memoryTx) InsertViolation(ctx context.Context, v Violation) (Violation, error) {
	t.repo.nextID++
	v.ID = t.repo.nextID
	t.repo.violations[v.ID] = v
	return v, nil
}

func (t *memoryTx) GetViolationForUpdate(ctx context.Context, tenantID, violationID int64) (Violation, error) {
	return t.repo.GetViolation(ctx, tenantID, violationID)
}

func (t *memoryTx) UpdateViolation(ctx context.Context, v Violation) error {
	if _, ok := t.repo.violations[v.ID]; !ok {
		return ErrViolationNotFound
	}
	t.repo.violations[v.ID] = v
	return nil
}

type fakeAR struct {
	created []ar.CreateInvoiceInput
	issued  []int64
	nextID  int64
}

func (f *fakeAR) CreateInvoice(ctx context.Context, in ar.CreateInvoiceInput) (ar.Invoice, error) {
	if err := in.Validate(); err != nil {
		return ar.Invoice{}, err
	}
	f.nextID++
	f.created = append(f.created, in)
	return ar.Invoice{ID: f.nextID, TenantID: in.TenantID, OwnerID: in.OwnerID, Status: ar.InvoiceDraft}, nil
}

func (f *fakeAR) IssueInvoice(ctx context.Context, tenantID, invoiceID int64) (ar.Invoice, error) {
	f.issued = append(f.issued, invoiceID)
	return ar.Invoice{ID: invoiceID, TenantID: tenantID, Status: ar.InvoiceIssued}, nil
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(t *testing.T, now time.Time) (*Service, *memoryRepo, *fakeAR) {
	t.Helper()
	repo := newMemoryRepo()
	arPort := &fakeAR{}
	svc := NewService(repo, arPort, nil)
	svc.WithNow(func() time.Time { return now })
	return svc, repo, arPort
}

func TestLadderAdvancesInOrder(t *testing.T) {
	svc, _, arPort := newTestService(t, date("2025-01-01"))
	ctx := context.Background()

	v, err := svc.Report(ctx, ReportInput{TenantID: 1, UnitID: 2, OwnerID: 3, Category: "Landscaping", Description: "Dead lawn"})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, v.Status)

	policy := DefaultPolicy()
	for _, want := range []Status{StatusNoticeSent, StatusHearing, StatusFined, StatusEscalated} {
		v, err = svc.Advance(ctx, 1, v.ID, policy)
		require.NoError(t, err)
		require.Equal(t, want, v.Status)
	}

	// ESCALATED is the top rung.
	_, err = svc.Advance(ctx, 1, v.ID, policy)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// The FINED stage billed exactly one fine invoice.
	require.Len(t, arPort.created, 1)
	require.Equal(t, ar.LineFine, arPort.created[0].Lines[0].Kind)
	require.True(t, arPort.created[0].Lines[0].Amount.Equal(policy.FineAmount))
	require.Len(t, arPort.issued, 1)
	require.NotNil(t, v.FineInvoiceID)
}

func TestResolveStopsLadder(t *testing.T) {
	svc, _, _ := newTestService(t, date("2025-01-01"))
	ctx := context.Background()

	v, err := svc.Report(ctx, ReportInput{TenantID: 1, UnitID: 2, OwnerID: 3, Category: "Noise"})
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, 1, v.ID)
	require.NoError(t, err)
	require.Equal(t, StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = svc.Resolve(ctx, 1, v.ID)
	require.ErrorIs(t, err, ErrAlreadyResolved)
	_, err = svc.Advance(ctx, 1, v.ID, DefaultPolicy())
	require.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestEscalateOverdueHonorsDeadlines(t *testing.T) {
	svc, _, _ := newTestService(t, date("2025-01-01"))
	ctx := context.Background()

	v, err := svc.Report(ctx, ReportInput{TenantID: 1, UnitID: 2, OwnerID: 3, Category: "Parking"})
	require.NoError(t, err)
	fresh, err := svc.Report(ctx, ReportInput{TenantID: 1, UnitID: 4, OwnerID: 5, Category: "Trash"})
	require.NoError(t, err)

	policy := DefaultPolicy()

	// Day 6: nothing due yet.
	summary, err := svc.EscalateOverdue(ctx, 1, date("2025-01-06"), policy)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Processed)

	// Day 8: both reports outstayed OPEN.
	summary, err = svc.EscalateOverdue(ctx, 1, date("2025-01-08"), policy)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Succeeded)

	got, err := svc.Get(ctx, 1, v.ID)
	require.NoError(t, err)
	require.Equal(t, StatusNoticeSent, got.Status)
	got, err = svc.Get(ctx, 1, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, StatusNoticeSent, got.Status)
}

func TestEscalateOverdueMixedSuccess(t *testing.T) {
	now := date("2025-01-01")
	repo := newMemoryRepo()
	arPort := &fakeAR{}
	svc := NewService(repo, arPort, nil)
	svc.WithNow(func() time.Time { return now })
	ctx := context.Background()

	// One violation sits at HEARING past its deadline with a bad owner id,
	// so the fine invoice fails validation; the other advances cleanly.
	bad := Violation{TenantID: 1, UnitID: 2, Category: "Fence", Status: StatusHearing,
		ReportedAt: date("2024-11-01"), LastActionAt: date("2024-11-01")}
	good := Violation{TenantID: 1, UnitID: 3, OwnerID: 4, Category: "Paint", Status: StatusOpen,
		ReportedAt: date("2024-12-01"), LastActionAt: date("2024-12-01")}
	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.InsertViolation(ctx, bad); err != nil {
			return err
		}
		_, err := tx.InsertViolation(ctx, good)
		return err
	}))

	summary, err := svc.EscalateOverdue(ctx, 1, now, DefaultPolicy())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
}
