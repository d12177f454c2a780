package ar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/ledger"
	"github.com/covenant-hq/covenant/internal/shared"
)

// LedgerPort is the slice of the ledger service AR needs for posting.
type LedgerPort interface {
	PostEntry(ctx context.Context, in ledger.PostingInput) (ledger.JournalEntry, error)
	GetFundByType(ctx context.Context, tenantID int64, fundType ledger.FundType) (ledger.Fund, error)
	ResolveAccount(ctx context.Context, tenantID, fundID int64, number string) (ledger.Account, error)
}

// Service handles owners, units, invoicing and payment application.
type Service struct {
	repo   Repository
	gl     LedgerPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the AR service.
func NewService(repo Repository, gl LedgerPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, gl: gl, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateOwner registers a new owner for the tenant.
func (s *Service) CreateOwner(ctx context.Context, in CreateOwnerInput) (Owner, error) {
	if err := in.Validate(); err != nil {
		return Owner{}, err
	}
	var owner Owner
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertOwner(ctx, in)
		if err != nil {
			return err
		}
		owner = created
		return nil
	})
	return owner, err
}

// CreateUnit registers a new unit for the tenant.
func (s *Service) CreateUnit(ctx context.Context, in CreateUnitInput) (Unit, error) {
	if err := in.Validate(); err != nil {
		return Unit{}, err
	}
	var unit Unit
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertUnit(ctx, in)
		if err != nil {
			return err
		}
		unit = created
		return nil
	})
	return unit, err
}

// TransferOwnership ends the unit's current ownership and records the new one.
func (s *Service) TransferOwnership(ctx context.Context, in CreateOwnershipInput) (Ownership, error) {
	if err := in.Validate(); err != nil {
		return Ownership{}, err
	}
	var ownership Ownership
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.EndCurrentOwnership(ctx, in.TenantID, in.UnitID, in.StartDate); err != nil {
			return err
		}
		created, err := tx.InsertOwnership(ctx, in)
		if err != nil {
			return err
		}
		ownership = created
		return nil
	})
	return ownership, err
}

// CreateInvoice records a DRAFT invoice with its lines. Totals are derived
// from the lines; nothing posts to the ledger until the invoice is issued.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (Invoice, error) {
	if err := in.Validate(); err != nil {
		return Invoice{}, err
	}
	if _, err := s.repo.GetOwner(ctx, in.TenantID, in.OwnerID); err != nil {
		return Invoice{}, err
	}
	if _, err := s.repo.GetUnit(ctx, in.TenantID, in.UnitID); err != nil {
		return Invoice{}, err
	}
	subtotal := in.Subtotal()
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextNumber(ctx, in.TenantID, ledger.SeqInvoice)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertInvoice(ctx, Invoice{
			TenantID:    in.TenantID,
			OwnerID:     in.OwnerID,
			UnitID:      in.UnitID,
			Number:      fmt.Sprintf("INV-%06d", seq),
			Status:      InvoiceDraft,
			InvoiceDate: in.InvoiceDate,
			DueDate:     in.DueDate,
			Subtotal:    subtotal,
			LateFee:     decimal.Zero,
			Total:       subtotal,
			AmountPaid:  decimal.Zero,
			AmountDue:   subtotal,
		})
		if err != nil {
			return err
		}
		for _, line := range in.Lines {
			created, err := tx.InsertInvoiceLine(ctx, InvoiceLine{
				InvoiceID:   inserted.ID,
				Kind:        line.Kind,
				Description: line.Description,
				Amount:      line.Amount,
			})
			if err != nil {
				return err
			}
			inserted.Lines = append(inserted.Lines, created)
		}
		invoice = inserted
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// IssueInvoice moves a DRAFT invoice to ISSUED and posts the assessment
// entry (receivable debit, revenue credit) to the operating fund.
func (s *Service) IssueInvoice(ctx context.Context, tenantID, invoiceID int64) (Invoice, error) {
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != InvoiceDraft {
			return ErrInvalidStatus
		}
		inv.Status = InvoiceIssued
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	if err := s.postInvoiceEntry(ctx, invoice); err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// VoidInvoice cancels a DRAFT or unpaid ISSUED invoice. Voiding an issued
// invoice posts a reversal entry backing out the receivable and the income
// that issuing (and any late fees) recognized; the issue entry itself is
// never edited.
func (s *Service) VoidInvoice(ctx context.Context, tenantID, invoiceID int64) (Invoice, error) {
	var invoice Invoice
	var wasIssued bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != InvoiceDraft && inv.Status != InvoiceIssued {
			return ErrInvalidStatus
		}
		if inv.AmountPaid.IsPositive() {
			return ErrHasPayments
		}
		wasIssued = inv.Status == InvoiceIssued
		inv.Status = InvoiceVoid
		inv.AmountDue = decimal.Zero
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	if wasIssued {
		if err := s.postVoidEntry(ctx, invoice); err != nil {
			return Invoice{}, err
		}
	}
	return invoice, nil
}

// ReceivePayment records a receipt and applies it FIFO across the owner's
// open invoices, oldest invoice date first. Any remainder is carried as the
// owner's credit balance. The cash entry posts against the operating fund.
func (s *Service) ReceivePayment(ctx context.Context, in ReceivePaymentInput) (Payment, error) {
	if err := in.Validate(); err != nil {
		return Payment{}, err
	}
	if _, err := s.repo.GetOwner(ctx, in.TenantID, in.OwnerID); err != nil {
		return Payment{}, err
	}
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextNumber(ctx, in.TenantID, ledger.SeqPayment)
		if err != nil {
			return err
		}
		open, err := tx.ListOpenInvoicesForUpdate(ctx, in.TenantID, in.OwnerID)
		if err != nil {
			return err
		}
		p := Payment{
			TenantID:     in.TenantID,
			OwnerID:      in.OwnerID,
			Number:       fmt.Sprintf("PMT-%06d", seq),
			ReceivedDate: in.ReceivedDate,
			Amount:       in.Amount,
			Method:       in.Method,
			Reference:    in.Reference,
		}
		remaining := in.Amount
		applied := decimal.Zero
		type allocation struct {
			invoiceID int64
			amount    decimal.Decimal
		}
		var allocations []allocation
		for _, inv := range open {
			if remaining.IsZero() {
				break
			}
			portion := decimal.Min(remaining, inv.AmountDue)
			if portion.IsZero() {
				continue
			}
			inv.AmountPaid = inv.AmountPaid.Add(portion)
			inv.AmountDue = inv.Total.Sub(inv.AmountPaid)
			if inv.AmountDue.IsZero() {
				inv.Status = InvoicePaid
			} else {
				inv.Status = InvoicePartial
			}
			if err := tx.UpdateInvoice(ctx, inv); err != nil {
				return err
			}
			allocations = append(allocations, allocation{invoiceID: inv.ID, amount: portion})
			applied = applied.Add(portion)
			remaining = remaining.Sub(portion)
		}
		p.AmountApplied = applied
		p.AmountUnapplied = remaining
		inserted, err := tx.InsertPayment(ctx, p)
		if err != nil {
			return err
		}
		for _, alloc := range allocations {
			app, err := tx.InsertApplication(ctx, PaymentApplication{
				PaymentID: inserted.ID,
				InvoiceID: alloc.invoiceID,
				Amount:    alloc.amount,
				AppliedAt: s.now(),
			})
			if err != nil {
				return err
			}
			inserted.Applications = append(inserted.Applications, app)
		}
		payment = inserted
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	if err := s.postPaymentEntry(ctx, payment); err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// AssessLateFees adds a late fee line to every overdue open invoice that has
// not been assessed since the cutoff. Per-record failures accumulate into the
// summary; one bad invoice never aborts the run.
func (s *Service) AssessLateFees(ctx context.Context, tenantID int64, asOf time.Time, fee decimal.Decimal, graceDays int) (shared.RunSummary, error) {
	var summary shared.RunSummary
	if fee.LessThanOrEqual(decimal.Zero) {
		return summary, fmt.Errorf("ar: late fee must be positive")
	}
	open, err := s.repo.ListOpenInvoices(ctx, tenantID)
	if err != nil {
		return summary, err
	}
	cutoff := asOf.AddDate(0, -1, 0)
	for _, inv := range open {
		if DaysOverdue(inv.DueDate, asOf) <= graceDays {
			continue
		}
		invoiceID := inv.ID
		alreadyAssessed := false
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			locked, err := tx.GetInvoiceForUpdate(ctx, tenantID, invoiceID)
			if err != nil {
				return err
			}
			assessed, err := tx.HasLateFeeSince(ctx, invoiceID, cutoff)
			if err != nil {
				return err
			}
			if assessed {
				alreadyAssessed = true
				return nil
			}
			if _, err := tx.InsertInvoiceLine(ctx, InvoiceLine{
				InvoiceID:   invoiceID,
				Kind:        LineLateFee,
				Description: fmt.Sprintf("Late fee assessed %s", asOf.Format("2006-01-02")),
				Amount:      fee,
			}); err != nil {
				return err
			}
			locked.LateFee = locked.LateFee.Add(fee)
			locked.Total = locked.Total.Add(fee)
			locked.AmountDue = locked.Total.Sub(locked.AmountPaid)
			return tx.UpdateInvoice(ctx, locked)
		})
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("late fee assessment failed", slog.String("invoice", inv.Number), slog.Any("error", err))
			}
			summary.Failure(inv.Number, err)
			continue
		}
		if alreadyAssessed {
			continue
		}
		if err := s.postLateFeeEntry(ctx, tenantID, inv, fee, asOf); err != nil {
			summary.Failure(inv.Number, err)
			continue
		}
		summary.Success()
	}
	return summary, nil
}

// GenerateMonthlyInvoices creates and issues one assessment invoice per unit
// with a current ownership.
func (s *Service) GenerateMonthlyInvoices(ctx context.Context, tenantID int64, period time.Time, amount decimal.Decimal, dueDays int) (shared.RunSummary, error) {
	var summary shared.RunSummary
	if amount.LessThanOrEqual(decimal.Zero) {
		return summary, fmt.Errorf("ar: assessment amount must be positive")
	}
	ownerships, err := s.repo.ListCurrentOwnerships(ctx, tenantID)
	if err != nil {
		return summary, err
	}
	first := time.Date(period.Year(), period.Month(), 1, 0, 0, 0, 0, time.UTC)
	for _, o := range ownerships {
		invoice, err := s.CreateInvoice(ctx, CreateInvoiceInput{
			TenantID:    tenantID,
			OwnerID:     o.OwnerID,
			UnitID:      o.UnitID,
			InvoiceDate: first,
			DueDate:     first.AddDate(0, 0, dueDays),
			Lines: []InvoiceLineInput{{
				Kind:        LineAssessment,
				Description: fmt.Sprintf("Monthly assessment %s", first.Format("January 2006")),
				Amount:      amount,
			}},
		})
		if err != nil {
			summary.Failure(fmt.Sprintf("unit %d", o.UnitID), err)
			continue
		}
		if _, err := s.IssueInvoice(ctx, tenantID, invoice.ID); err != nil {
			summary.Failure(invoice.Number, err)
			continue
		}
		summary.Success()
	}
	return summary, nil
}

// ImportPaymentsCSV parses a lockbox payments file and runs each row through
// the normal payment application path, so FIFO allocation and GL posting
// behave exactly as for a payment keyed in by hand. Rows that fail (unknown
// owner, say) are reported in the summary; the rest still apply.
func (s *Service) ImportPaymentsCSV(ctx context.Context, tenantID int64, r io.Reader) (shared.RunSummary, error) {
	var summary shared.RunSummary
	rows, err := ParsePayments(r)
	if err != nil {
		return summary, err
	}
	for _, row := range rows {
		_, err := s.ReceivePayment(ctx, ReceivePaymentInput{
			TenantID:     tenantID,
			OwnerID:      row.OwnerID,
			ReceivedDate: row.Date,
			Amount:       row.Amount,
			Method:       row.Method,
			Reference:    row.Reference,
		})
		if err != nil {
			summary.Failure(row.Reference, err)
			continue
		}
		summary.Success()
	}
	if s.logger != nil {
		s.logger.Info("payments import finished", slog.Int64("tenant", tenantID), slog.String("summary", summary.String()))
	}
	return summary, nil
}

// Aging builds the AR aging report as of the given date.
func (s *Service) Aging(ctx context.Context, tenantID int64, asOf time.Time) (AgingReport, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	open, err := s.repo.ListOpenInvoices(ctx, tenantID)
	if err != nil {
		return AgingReport{}, err
	}
	names, err := s.repo.OwnerNames(ctx, tenantID)
	if err != nil {
		return AgingReport{}, err
	}
	return BuildAgingReport(asOf, open, names), nil
}

// GetInvoice fetches one invoice with lines.
func (s *Service) GetInvoice(ctx context.Context, tenantID, invoiceID int64) (Invoice, error) {
	return s.repo.GetInvoiceWithLines(ctx, tenantID, invoiceID)
}

// ListInvoices returns a page of invoices.
func (s *Service) ListInvoices(ctx context.Context, tenantID int64, req ListInvoicesRequest) ([]Invoice, int, error) {
	return s.repo.ListInvoices(ctx, tenantID, req)
}

// GetPayment fetches one payment with applications.
func (s *Service) GetPayment(ctx context.Context, tenantID, paymentID int64) (Payment, error) {
	return s.repo.GetPayment(ctx, tenantID, paymentID)
}

// GetOwner fetches one owner.
func (s *Service) GetOwner(ctx context.Context, tenantID, ownerID int64) (Owner, error) {
	return s.repo.GetOwner(ctx, tenantID, ownerID)
}

// OverdueInvoices returns open invoices whose due date has passed.
func (s *Service) OverdueInvoices(ctx context.Context, tenantID int64, asOf time.Time) ([]Invoice, error) {
	open, err := s.repo.ListOpenInvoices(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	overdue := make([]Invoice, 0, len(open))
	for _, inv := range open {
		if inv.DueDate.Before(asOf) {
			overdue = append(overdue, inv)
		}
	}
	return overdue, nil
}

// GetUnit fetches one unit.
func (s *Service) GetUnit(ctx context.Context, tenantID, unitID int64) (Unit, error) {
	return s.repo.GetUnit(ctx, tenantID, unitID)
}

// CurrentOwner resolves the owner of record for a unit.
func (s *Service) CurrentOwner(ctx context.Context, tenantID, unitID int64) (Owner, error) {
	ownerships, err := s.repo.ListCurrentOwnerships(ctx, tenantID)
	if err != nil {
		return Owner{}, err
	}
	for _, o := range ownerships {
		if o.UnitID == unitID {
			return s.repo.GetOwner(ctx, tenantID, o.OwnerID)
		}
	}
	return Owner{}, ErrOwnerNotFound
}

// ListOwners returns a page of owners.
func (s *Service) ListOwners(ctx context.Context, tenantID int64, limit, offset int) ([]Owner, int, error) {
	return s.repo.ListOwners(ctx, tenantID, limit, offset)
}

// ListUnits returns a page of units.
func (s *Service) ListUnits(ctx context.Context, tenantID int64, limit, offset int) ([]Unit, int, error) {
	return s.repo.ListUnits(ctx, tenantID, limit, offset)
}

// OwnerLedger builds the owner statement: every invoice and payment in date
// order with a running balance.
func (s *Service) OwnerLedger(ctx context.Context, tenantID, ownerID int64) (OwnerLedger, error) {
	owner, err := s.repo.GetOwner(ctx, tenantID, ownerID)
	if err != nil {
		return OwnerLedger{}, err
	}
	invoices, err := s.repo.ListInvoicesByOwner(ctx, tenantID, ownerID)
	if err != nil {
		return OwnerLedger{}, err
	}
	payments, err := s.repo.ListPaymentsByOwner(ctx, tenantID, ownerID)
	if err != nil {
		return OwnerLedger{}, err
	}
	return BuildOwnerLedger(owner, invoices, payments), nil
}

func (s *Service) operatingAccounts(ctx context.Context, tenantID int64, numbers ...string) (ledger.Fund, map[string]ledger.Account, error) {
	fund, err := s.gl.GetFundByType(ctx, tenantID, ledger.FundOperating)
	if err != nil {
		return ledger.Fund{}, nil, err
	}
	accounts := make(map[string]ledger.Account, len(numbers))
	for _, number := range numbers {
		account, err := s.gl.ResolveAccount(ctx, tenantID, fund.ID, number)
		if err != nil {
			return ledger.Fund{}, nil, err
		}
		accounts[number] = account
	}
	return fund, accounts, nil
}

func (s *Service) postInvoiceEntry(ctx context.Context, inv Invoice) error {
	_, accounts, err := s.operatingAccounts(ctx, inv.TenantID, ledger.AcctAccountsReceivable, ledger.AcctAssessmentIncome)
	if err != nil {
		return err
	}
	_, err = s.gl.PostEntry(ctx, ledger.PostingInput{
		TenantID:    inv.TenantID,
		Date:        inv.InvoiceDate,
		Type:        ledger.EntryAssessment,
		Description: fmt.Sprintf("Invoice %s issued", inv.Number),
		Lines: []ledger.PostingLineInput{
			{AccountID: accounts[ledger.AcctAccountsReceivable].ID, Debit: inv.Total, Memo: inv.Number},
			{AccountID: accounts[ledger.AcctAssessmentIncome].ID, Credit: inv.Total, Memo: inv.Number},
		},
	})
	return err
}

// postVoidEntry backs out the issue entry and any late-fee entries: income
// accounts take the debit side, the receivable takes the credit.
func (s *Service) postVoidEntry(ctx context.Context, inv Invoice) error {
	_, accounts, err := s.operatingAccounts(ctx, inv.TenantID,
		ledger.AcctAccountsReceivable, ledger.AcctAssessmentIncome, ledger.AcctLateFeeIncome)
	if err != nil {
		return err
	}
	lines := []ledger.PostingLineInput{
		{AccountID: accounts[ledger.AcctAssessmentIncome].ID, Debit: inv.Subtotal, Memo: inv.Number},
	}
	if inv.LateFee.IsPositive() {
		lines = append(lines, ledger.PostingLineInput{
			AccountID: accounts[ledger.AcctLateFeeIncome].ID, Debit: inv.LateFee, Memo: inv.Number,
		})
	}
	lines = append(lines, ledger.PostingLineInput{
		AccountID: accounts[ledger.AcctAccountsReceivable].ID, Credit: inv.Total, Memo: inv.Number,
	})
	_, err = s.gl.PostEntry(ctx, ledger.PostingInput{
		TenantID:    inv.TenantID,
		Date:        s.now(),
		Type:        ledger.EntryReversal,
		Description: fmt.Sprintf("Invoice %s voided", inv.Number),
		Lines:       lines,
	})
	return err
}

func (s *Service) postPaymentEntry(ctx context.Context, p Payment) error {
	_, accounts, err := s.operatingAccounts(ctx, p.TenantID,
		ledger.AcctCash, ledger.AcctAccountsReceivable, ledger.AcctPrepaidAssessments)
	if err != nil {
		return err
	}
	lines := []ledger.PostingLineInput{
		{AccountID: accounts[ledger.AcctCash].ID, Debit: p.Amount, Memo: p.Number},
	}
	if p.AmountApplied.IsPositive() {
		lines = append(lines, ledger.PostingLineInput{
			AccountID: accounts[ledger.AcctAccountsReceivable].ID, Credit: p.AmountApplied, Memo: p.Number,
		})
	}
	if p.AmountUnapplied.IsPositive() {
		lines = append(lines, ledger.PostingLineInput{
			AccountID: accounts[ledger.AcctPrepaidAssessments].ID, Credit: p.AmountUnapplied, Memo: p.Number,
		})
	}
	_, err = s.gl.PostEntry(ctx, ledger.PostingInput{
		TenantID:    p.TenantID,
		Date:        p.ReceivedDate,
		Type:        ledger.EntryPayment,
		Description: fmt.Sprintf("Payment %s received", p.Number),
		Lines:       lines,
	})
	return err
}

func (s *Service) postLateFeeEntry(ctx context.Context, tenantID int64, inv Invoice, fee decimal.Decimal, asOf time.Time) error {
	_, accounts, err := s.operatingAccounts(ctx, tenantID, ledger.AcctAccountsReceivable, ledger.AcctLateFeeIncome)
	if err != nil {
		return err
	}
	_, err = s.gl.PostEntry(ctx, ledger.PostingInput{
		TenantID:    tenantID,
		Date:        asOf,
		Type:        ledger.EntryLateFee,
		Description: fmt.Sprintf("Late fee on %s", inv.Number),
		Lines: []ledger.PostingLineInput{
			{AccountID: accounts[ledger.AcctAccountsReceivable].ID, Debit: fee, Memo: inv.Number},
			{AccountID: accounts[ledger.AcctLateFeeIncome].ID, Credit: fee, Memo: inv.Number},
		},
	})
	return err
}
