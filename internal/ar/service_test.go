package ar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/covenant-hq/covenant/internal/ledger"
	_ "github.com/covenant-hq/covenant/testing"
)

type memoryRepo struct {
	owners       map[int64]Owner
	units        map[int64]Unit
	ownerships   map[int64]Ownership
	invoices     map[int64]Invoice
	payments     map[int64]Payment
	applications map[int64][]PaymentApplication
	sequences    map[string]int64
	nextID       int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		owners:       make(map[int64]Owner),
		units:        make(map[int64]Unit),
		ownerships:   make(map[int64]Ownership),
		invoices:     make(map[int64]Invoice),
		payments:     make(map[int64]Payment),
		applications: make(map[int64][]PaymentApplication),
		sequences:    make(map[string]int64),
	}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

type memoryTx struct{ repo *memoryRepo }

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetOwner(ctx context.Context, tenantID, ownerID int64) (Owner, error) {
	o, ok := r.owners[ownerID]
	if !ok || o.TenantID != tenantID {
		return Owner{}, ErrOwnerNotFound
	}
	return o, nil
}

func (r *memoryRepo) ListOwners(ctx context.Context, tenantID int64, limit, offset int) ([]Owner, int, error) {
	var out []Owner
	for _, o := range r.owners {
		if o.TenantID == tenantID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (r *memoryRepo) OwnerNames(ctx context.Context, tenantID int64) (map[int64]string, error) {
	names := make(map[int64]string)
	for _, o := range r.owners {
		if o.TenantID == tenantID {
			names[o.ID] = o.Name
		}
	}
	return names, nil
}

func (r *memoryRepo) GetUnit(ctx context.Context, tenantID, unitID int64) (Unit, error) {
	u, ok := r.units[unitID]
	if !ok || u.TenantID != tenantID {
		return Unit{}, ErrUnitNotFound
	}
	return u, nil
}

func (r *memoryRepo) ListUnits(ctx context.Context, tenantID int64, limit, offset int) ([]Unit, int, error) {
	var out []Unit
	for _, u := range r.units {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitNumber < out[j].UnitNumber })
	return out, len(out), nil
}

func (r *memoryRepo) ListCurrentOwnerships(ctx context.Context, tenantID int64) ([]Ownership, error) {
	var out []Ownership
	for _, o := range r.ownerships {
		if o.TenantID == tenantID && o.IsCurrent {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitID < out[j].UnitID })
	return out, nil
}

func (r *memoryRepo) GetInvoiceWithLines(ctx context.Context, tenantID, invoiceID int64) (Invoice, error) {
	inv, ok := r.invoices[invoiceID]
	if !ok || inv.TenantID != tenantID {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (r *memoryRepo) openInvoices(tenantID, ownerID int64) []Invoice {
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.TenantID != tenantID {
			continue
		}
		if ownerID != 0 && inv.OwnerID != ownerID {
			continue
		}
		if inv.Status != InvoiceIssued && inv.Status != InvoicePartial {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].InvoiceDate.Equal(out[j].InvoiceDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].InvoiceDate.Before(out[j].InvoiceDate)
	})
	return out
}

func (r *memoryRepo) ListInvoices(ctx context.Context, tenantID int64, req ListInvoicesRequest) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.TenantID != tenantID {
			continue
		}
		if req.Status != "" && inv.Status != req.Status {
			continue
		}
		if req.OwnerID != 0 && inv.OwnerID != req.OwnerID {
			continue
		}
		out = append(out, inv)
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListOpenInvoices(ctx context.Context, tenantID int64) ([]Invoice, error) {
	return r.openInvoices(tenantID, 0), nil
}

func (r *memoryRepo) ListInvoicesByOwner(ctx context.Context, tenantID, ownerID int64) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID && inv.OwnerID == ownerID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceDate.Before(out[j].InvoiceDate) })
	return out, nil
}

func (r *memoryRepo) GetPayment(ctx context.Context, tenantID, paymentID int64) (Payment, error) {
	p, ok := r.payments[paymentID]
	if !ok || p.TenantID != tenantID {
		return Payment{}, ErrPaymentNotFound
	}
	p.Applications = r.applications[paymentID]
	return p, nil
}

func (r *memoryRepo) ListPaymentsByOwner(ctx context.Context, tenantID, ownerID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.TenantID == tenantID && p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedDate.Before(out[j].ReceivedDate) })
	return out, nil
}

func (t *memoryTx) NextNumber(ctx context.Context, tenantID int64, name string) (int64, error) {
	key := fmt.Sprintf("%d/%s", tenantID, name)
	t.repo.sequences[key]++
	return t.repo.sequences[key], nil
}

func (t *memoryTx) InsertOwner(ctx context.Context, in CreateOwnerInput) (Owner, error) {
	o := Owner{ID: t.repo.id(), TenantID: in.TenantID, Name: in.Name, Email: in.Email, Phone: in.Phone, MailingAddress: in.MailingAddress}
	t.repo.owners[o.ID] = o
	return o, nil
}

func (t *memoryTx) InsertUnit(ctx context.Context, in CreateUnitInput) (Unit, error) {
	u := Unit{ID: t.repo.id(), TenantID: in.TenantID, UnitNumber: in.UnitNumber, Address: in.Address, SquareFeet: in.SquareFeet}
	t.repo.units[u.ID] = u
	return u, nil
}

func (t *memoryTx) InsertOwnership(ctx context.Context, in CreateOwnershipInput) (Ownership, error) {
	o := Ownership{ID: t.repo.id(), TenantID: in.TenantID, OwnerID: in.OwnerID, UnitID: in.UnitID, Percentage: in.Percentage, StartDate: in.StartDate, IsCurrent: true}
	t.repo.ownerships[o.ID] = o
	return o, nil
}

func (t *memoryTx) EndCurrentOwnership(ctx context.Context, tenantID, unitID int64, endDate time.Time) error {
	for id, o := range t.repo.ownerships {
		if o.TenantID == tenantID && o.UnitID == unitID && o.IsCurrent {
			end := endDate
			o.IsCurrent = false
			o.EndDate = &end
			t.repo.ownerships[id] = o
		}
	}
	return nil
}

func (t *memoryTx) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	inv.ID = t.repo.id()
	t.repo.invoices[inv.ID] = inv
	return inv, nil
}

func (t *memoryTx) InsertInvoiceLine(ctx context.Context, line InvoiceLine) (InvoiceLine, error) {
	line.ID = t.repo.id()
	line.CreatedAt = time.Now()
	inv := t.repo.invoices[line.InvoiceID]
	inv.Lines = append(inv.Lines, line)
	t.repo.invoices[line.InvoiceID] = inv
	return line, nil
}

func (t *memoryTx) GetInvoiceForUpdate(ctx context.Context, tenantID, invoiceID int64) (Invoice, error) {
	return t.repo.GetInvoiceWithLines(ctx, tenantID, invoiceID)
}

func (t *memoryTx) ListOpenInvoicesForUpdate(ctx context.Context, tenantID, ownerID int64) ([]Invoice, error) {
	return t.repo.openInvoices(tenantID, ownerID), nil
}

func (t *memoryTx) UpdateInvoice(ctx context.Context, inv Invoice) error {
	existing, ok := t.repo.invoices[inv.ID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Lines = existing.Lines
	t.repo.invoices[inv.ID] = inv
	return nil
}

func (t *memoryTx) HasLateFeeSince(ctx context.Context, invoiceID int64, since time.Time) (bool, error) {
	inv := t.repo.invoices[invoiceID]
	for _, line := range inv.Lines {
		if line.Kind == LineLateFee && !line.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	p.ID = t.repo.id()
	t.repo.payments[p.ID] = p
	return p, nil
}

func (t *memoryTx) InsertApplication(ctx context.Context, app PaymentApplication) (PaymentApplication, error) {
	app.ID = t.repo.id()
	t.repo.applications[app.PaymentID] = append(t.repo.applications[app.PaymentID], app)
	return app, nil
}

// fakeLedger records postings without a database.
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

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *fakeLedger, Owner, Unit) {
	t.Helper()
	repo := newMemoryRepo()
	gl := newFakeLedger()
	svc := NewService(repo, gl, nil)
	ctx := context.Background()
	owner, err := svc.CreateOwner(ctx, CreateOwnerInput{TenantID: 1, Name: "Pat Alvarez", Email: "pat@example.com"})
	require.NoError(t, err)
	unit, err := svc.CreateUnit(ctx, CreateUnitInput{TenantID: 1, UnitNumber: "101", Address: "101 Elm Ct"})
	require.NoError(t, err)
	return svc, repo, gl, owner, unit
}

func issueInvoice(t *testing.T, svc *Service, owner Owner, unit Unit, invoiceDate, dueDate string, amount string) Invoice {
	t.Helper()
	ctx := context.Background()
	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{
		TenantID:    1,
		OwnerID:     owner.ID,
		UnitID:      unit.ID,
		InvoiceDate: date(invoiceDate),
		DueDate:     date(dueDate),
		Lines:       []InvoiceLineInput{{Kind: LineAssessment, Description: "Monthly assessment", Amount: dec(amount)}},
	})
	require.NoError(t, err)
	issued, err := svc.IssueInvoice(ctx, 1, inv.ID)
	require.NoError(t, err)
	return issued
}

func TestInvoiceLifecyclePartialThenPaid(t *testing.T) {
	svc, _, _, owner, unit := newTestService(t)
	ctx := context.Background()

	inv := issueInvoice(t, svc, owner, unit, "2025-03-01", "2025-03-15", "1000")
	require.Equal(t, InvoiceIssued, inv.Status)

	_, err := svc.ReceivePayment(ctx, ReceivePaymentInput{
		TenantID: 1, OwnerID: owner.ID, ReceivedDate: date("2025-03-10"), Amount: dec("400"), Method: "CHECK",
	})
	require.NoError(t, err)
	got, err := svc.GetInvoice(ctx, 1, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoicePartial, got.Status)
	require.True(t, got.AmountDue.Equal(dec("600")), "amount due %s", got.AmountDue)

	_, err = svc.ReceivePayment(ctx, ReceivePaymentInput{
		TenantID: 1, OwnerID: owner.ID, ReceivedDate: date("2025-03-20"), Amount: dec("600"), Method: "CHECK",
	})
	require.NoError(t, err)
	got, err = svc.GetInvoice(ctx, 1, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoicePaid, got.Status)
	require.True(t, got.AmountDue.IsZero())
	require.True(t, got.AmountDue.Equal(got.Total.Sub(got.AmountPaid)))
}

func TestReceivePaymentFIFO(t *testing.T) {
	svc, _, _, owner, unit := newTestService(t)
	ctx := context.Background()

	first := issueInvoice(t, svc, owner, unit, "2025-01-01", "2025-01-15", "300")
	second := issueInvoice(t, svc, owner, unit, "2025-02-01", "2025-02-15", "400")

	payment, err := svc.ReceivePayment(ctx, ReceivePaymentInput{
		TenantID: 1, OwnerID: owner.ID, ReceivedDate: date("2025-02-20"), Amount: dec("500"), Method: "ACH",
	})
	require.NoError(t, err)
	require.True(t, payment.AmountApplied.Equal(dec("500")))
	require.True(t, payment.AmountUnapplied.IsZero())
	require.Len(t, payment.Applications, 2)
	require.Equal(t, first.ID, payment.Applications[0].InvoiceID)
	require.True(t, payment.Applications[0].Amount.Equal(dec("300")))
	require.Equal(t, second.ID, payment.Applications[1].InvoiceID)
	require.True(t, payment.Applications[1].Amount.Equal(dec("200")))

	one, err := svc.GetInvoice(ctx, 1, first.ID)
	require.NoError(t, err)
	require.Equal(t, InvoicePaid, one.Status)
	two, err := svc.GetInvoice(ctx, 1, second.ID)
	require.NoError(t, err)
	require.Equal(t, InvoicePartial, two.Status)
	require.True(t, two.AmountDue.Equal(dec("200")))
}

func TestReceivePaymentOverpaymentBecomesCredit(t *testing.T) {
	svc, _, gl, owner, unit := newTestService(t)
	ctx := context.Background()

	issueInvoice(t, svc, owner, unit, "2025-01-01", "2025-01-15", "250")

	payment, err := svc.ReceivePayment(ctx, ReceivePaymentInput{
		TenantID: 1, OwnerID: owner.ID, ReceivedDate: date("2025-01-20"), Amount: dec("300"), Method: "CHECK",
	})
	require.NoError(t, err)
	require.True(t, payment.AmountApplied.Equal(dec("250")))
	require.True(t, payment.AmountUnapplied.Equal(dec("50")))
	require.True(t, payment.Amount.Equal(payment.AmountApplied.Add(payment.AmountUnapplied)))

	// Cash debit covers the full receipt; credit is split AR vs prepaid.
	last := gl.entries[len(gl.entries)-1]
	require.Len(t, last.Lines, 3)
	require.True(t, last.Lines[0].Debit.Equal(dec("300")))
}

func TestParsePayments(t *testing.T) {
	rows, err := ParsePayments(strings.NewReader(`owner_id,date,amount,method,reference
12,2025-03-01,350.00,ACH,LBX-0001
7,2025-03-02,125.50,CHECK,LBX-0002
`))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(12), rows[0].OwnerID)
	require.True(t, rows[0].Amount.Equal(dec("350")))
	require.Equal(t, "LBX-0002", rows[1].Reference)
}

func TestParsePaymentsRejectsBadHeader(t *testing.T) {
	_, err := ParsePayments(strings.NewReader("who,when,much,how,ref\n1,2025-03-01,1,ACH,r\n"))
	require.ErrorIs(t, err, ErrBadHeader)
}

func TestParsePaymentsRejectsBadRow(t *testing.T) {
	_, err := ParsePayments(strings.NewReader("owner_id,date,amount,method,reference\nzero,2025-03-01,1,ACH,r\n"))
	require.Error(t, err)
	_, err = ParsePayments(strings.NewReader("owner_id,date,amount,method,reference\n1,2025-03-40,1,ACH,r\n"))
	require.Error(t, err)
	_, err = ParsePayments(strings.NewReader("owner_id,date,amount,method,reference\n1,2025-03-01,-5,ACH,r\n"))
	require.Error(t, err)
}

func TestImportPaymentsCSVAppliesRows(t *testing.T) {
	svc, _, _, owner, unit := newTestService(t)
	ctx := context.Background()

	first := issueInvoice(t, svc, owner, unit, "2025-01-01", "2025-01-15", "300")
	second := issueInvoice(t, svc, owner, unit, "2025-02-01", "2025-02-15", "400")

	// Second row names an owner that does not exist; the first still applies.
	file := fmt.Sprintf(`owner_id,date,amount,method,reference
%d,2025-02-20,500.00,ACH,LBX-0001
9999,2025-02-20,100.00,ACH,LBX-0002
`, owner.ID)
	summary, err := svc.ImportPaymentsCSV(ctx, 1, strings.NewReader(file))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)

	// Oldest invoice paid off first, remainder on the next.
	one, err := svc.GetInvoice(ctx, 1, first.ID)
	require.NoError(t, err)
	require.Equal(t, InvoicePaid, one.Status)
	two, err := svc.GetInvoice(ctx, 1, second.ID)
	require.NoError(t, err)
	require.True(t, two.AmountDue.Equal(dec("200")))
}

func TestImportPaymentsCSVBadFileChangesNothing(t *testing.T) {
	svc, repo, _, owner, unit := newTestService(t)

	issueInvoice(t, svc, owner, unit, "2025-01-01", "2025-01-15", "300")
	_, err := svc.ImportPaymentsCSV(context.Background(), 1, strings.NewReader("nope\n"))
	require.ErrorIs(t, err, ErrBadHeader)
	require.Empty(t, repo.payments)
}

func TestAgingBucketBoundaries(t *testing.T) {
	require.Equal(t, BucketCurrent, BucketFor(DaysOverdue(date("2025-02-05"), date("2025-02-05"))))
	require.Equal(t, Bucket1To30, BucketFor(DaysOverdue(date("2025-02-04"), date("2025-02-05"))))
	require.Equal(t, Bucket1To30, BucketFor(30))
	require.Equal(t, Bucket31To60, BucketFor(31))
	// Worked example: due 2025-01-01, evaluated 2025-02-05 is 35 days overdue.
	days := DaysOverdue(date("2025-01-01"), date("2025-02-05"))
	require.Equal(t, 35, days)
	require.Equal(t, Bucket31To60, BucketFor(days))
	require.Equal(t, Bucket61To90, BucketFor(90))
	require.Equal(t, Bucket90Plus, BucketFor(91))
}

func TestAgingReport(t *testing.T) {
	svc, _, _, owner, unit := newTestService(t)
	ctx := context.Background()

	issueInvoice(t, svc, owner, unit, "2024-12-20", "2025-01-01", "100") // 35 days overdue
	issueInvoice(t, svc, owner, unit, "2025-02-01", "2025-02-10", "200") // current

	report, err := svc.Aging(ctx, 1, date("2025-02-05"))
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	row := report.Rows[0]
	require.Equal(t, "Pat Alvarez", row.OwnerName)
	require.True(t, row.Days31To60.Equal(dec("100")))
	require.True(t, row.Current.Equal(dec("200")))
	require.True(t, report.Totals.Total.Equal(dec("300")))
}

func TestAssessLateFees(t *testing.T) {
	svc, _, gl, owner, unit := newTestService(t)
	ctx := context.Background()

	overdue := issueInvoice(t, svc, owner, unit, "2025-01-01", "2025-01-15", "500")
	issueInvoice(t, svc, owner, unit, "2025-03-01", "2025-03-30", "500")

	summary, err := svc.AssessLateFees(ctx, 1, date("2025-03-10"), dec("25"), 10)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Equal(t, 1, summary.Succeeded)

	got, err := svc.GetInvoice(ctx, 1, overdue.ID)
	require.NoError(t, err)
	require.True(t, got.LateFee.Equal(dec("25")))
	require.True(t, got.Total.Equal(dec("525")))
	require.True(t, got.AmountDue.Equal(dec("525")))

	// A second run inside the same window does not double-assess.
	summary, err = svc.AssessLateFees(ctx, 1, date("2025-03-11"), dec("25"), 10)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Failed)
	got, err = svc.GetInvoice(ctx, 1, overdue.ID)
	require.NoError(t, err)
	require.True(t, got.LateFee.Equal(dec("25")))

	var lateFeeEntries int
	for _, e := range gl.entries {
		if e.Type == ledger.EntryLateFee {
			lateFeeEntries++
		}
	}
	require.Equal(t, 1, lateFeeEntries)
}

func TestGenerateMonthlyInvoices(t *testing.T) {
	svc, _, _, owner, unit := newTestService(t)
	ctx := context.Background()

	_, err := svc.TransferOwnership(ctx, CreateOwnershipInput{
		TenantID: 1, OwnerID: owner.ID, UnitID: unit.ID, Percentage: dec("100"), StartDate: date("2024-01-01"),
	})
	require.NoError(t, err)

	summary, err := svc.GenerateMonthlyInvoices(ctx, 1, date("2025-04-01"), dec("350"), 15)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)

	invoices, _, err := svc.ListInvoices(ctx, 1, ListInvoicesRequest{Status: InvoiceIssued})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	require.True(t, invoices[0].Total.Equal(dec("350")))
}

func TestVoidIssuedInvoiceReversesIssueEntry(t *testing.T) {
	svc, _, gl, owner, unit := newTestService(t)
	ctx := context.Background()

	inv := issueInvoice(t, svc, owner, unit, "2025-01-01", "2025-01-15", "1000")
	posted := len(gl.entries)

	voided, err := svc.VoidInvoice(ctx, 1, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceVoid, voided.Status)
	require.True(t, voided.AmountDue.IsZero())

	require.Len(t, gl.entries, posted+1)
	reversal := gl.entries[len(gl.entries)-1]
	require.Equal(t, ledger.EntryReversal, reversal.Type)
	ar := gl.accounts[ledger.AcctAccountsReceivable]
	income := gl.accounts[ledger.AcctAssessmentIncome]
	for _, line := range reversal.Lines {
		switch line.AccountID {
		case ar.ID:
			require.True(t, line.Credit.Equal(dec("1000")))
		case income.ID:
			require.True(t, line.Debit.Equal(dec("1000")))
		default:
			t.Fatalf("unexpected account %d on reversal", line.AccountID)
		}
	}
}

func TestVoidInvoiceWithLateFeeReversesBothIncomes(t *testing.T) {
	svc, _, gl, owner, unit := newTestService(t)
	ctx := context.Background()

	inv := issueInvoice(t, svc, owner, unit, "2025-01-01", "2025-01-15", "300")
	summary, err := svc.AssessLateFees(ctx, 1, date("2025-02-10"), dec("25"), 10)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)

	_, err = svc.VoidInvoice(ctx, 1, inv.ID)
	require.NoError(t, err)

	reversal := gl.entries[len(gl.entries)-1]
	require.Equal(t, ledger.EntryReversal, reversal.Type)
	lateFee := gl.accounts[ledger.AcctLateFeeIncome]
	ar := gl.accounts[ledger.AcctAccountsReceivable]
	var arCredit, lateFeeDebit decimal.Decimal
	for _, line := range reversal.Lines {
		if line.AccountID == ar.ID {
			arCredit = line.Credit
		}
		if line.AccountID == lateFee.ID {
			lateFeeDebit = line.Debit
		}
	}
	require.True(t, arCredit.Equal(dec("325")))
	require.True(t, lateFeeDebit.Equal(dec("25")))
}

func TestVoidDraftInvoicePostsNothing(t *testing.T) {
	svc, _, gl, owner, unit := newTestService(t)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{
		TenantID:    1,
		OwnerID:     owner.ID,
		UnitID:      unit.ID,
		InvoiceDate: date("2025-01-01"),
		DueDate:     date("2025-01-15"),
		Lines:       []InvoiceLineInput{{Kind: LineAssessment, Description: "Monthly assessment", Amount: dec("100")}},
	})
	require.NoError(t, err)

	_, err = svc.VoidInvoice(ctx, 1, inv.ID)
	require.NoError(t, err)
	require.Empty(t, gl.entries)
}

func TestVoidInvoiceWithPaymentsRejected(t *testing.T) {
	svc, _, _, owner, unit := newTestService(t)
	ctx := context.Background()

	inv := issueInvoice(t, svc, owner, unit, "2025-01-01", "2025-01-15", "100")
	_, err := svc.ReceivePayment(ctx, ReceivePaymentInput{
		TenantID: 1, OwnerID: owner.ID, ReceivedDate: date("2025-01-10"), Amount: dec("40"), Method: "CASH",
	})
	require.NoError(t, err)

	_, err = svc.VoidInvoice(ctx, 1, inv.ID)
	require.ErrorIs(t, err, ErrHasPayments)
}

func TestOwnerLedgerRunningBalance(t *testing.T) {
	svc, _, _, owner, unit := newTestService(t)
	ctx := context.Background()

	issueInvoice(t, svc, owner, unit, "2025-01-01", "2025-01-15", "300")
	issueInvoice(t, svc, owner, unit, "2025-02-01", "2025-02-15", "400")
	_, err := svc.ReceivePayment(ctx, ReceivePaymentInput{
		TenantID: 1, OwnerID: owner.ID, ReceivedDate: date("2025-02-20"), Amount: dec("500"), Method: "ACH",
	})
	require.NoError(t, err)

	statement, err := svc.OwnerLedger(ctx, 1, owner.ID)
	require.NoError(t, err)
	require.Len(t, statement.Rows, 3)
	require.True(t, statement.Rows[0].Balance.Equal(dec("300")))
	require.True(t, statement.Rows[1].Balance.Equal(dec("700")))
	require.True(t, statement.Rows[2].Balance.Equal(dec("200")))
	require.True(t, statement.Balance.Equal(dec("200")))
}
