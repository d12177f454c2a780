package ar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreateOwnerInput captures owner creation input.
type CreateOwnerInput struct {
	TenantID       int64
	Name           string
	Email          string
	Phone          string
	MailingAddress string
}

// Validate ensures owner input correctness.
func (in CreateOwnerInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("ar: tenant required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("ar: owner name required")
	}
	return nil
}

// CreateUnitInput captures unit creation input.
type CreateUnitInput struct {
	TenantID   int64
	UnitNumber string
	Address    string
	SquareFeet int
}

// Validate ensures unit input correctness.
func (in CreateUnitInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("ar: tenant required")
	}
	if strings.TrimSpace(in.UnitNumber) == "" {
		return errors.New("ar: unit number required")
	}
	return nil
}

// CreateOwnershipInput links an owner to a unit.
type CreateOwnershipInput struct {
	TenantID   int64
	OwnerID    int64
	UnitID     int64
	Percentage decimal.Decimal
	StartDate  time.Time
}

// Validate ensures ownership input correctness.
func (in CreateOwnershipInput) Validate() error {
	if in.TenantID == 0 || in.OwnerID == 0 || in.UnitID == 0 {
		return errors.New("ar: tenant, owner and unit required")
	}
	if in.Percentage.LessThanOrEqual(decimal.Zero) || in.Percentage.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("ar: percentage must be in (0,100]")
	}
	if in.StartDate.IsZero() {
		return errors.New("ar: start date required")
	}
	return nil
}

// InvoiceLineInput is one billable item on a new invoice.
type InvoiceLineInput struct {
	Kind        LineKind
	Description string
	Amount      decimal.Decimal
}

// CreateInvoiceInput captures invoice creation input. Invoices are created in
// DRAFT and become receivable when issued.
type CreateInvoiceInput struct {
	TenantID    int64
	OwnerID     int64
	UnitID      int64
	InvoiceDate time.Time
	DueDate     time.Time
	Lines       []InvoiceLineInput
}

// Validate ensures invoice input correctness.
func (in CreateInvoiceInput) Validate() error {
	if in.TenantID == 0 || in.OwnerID == 0 || in.UnitID == 0 {
		return errors.New("ar: tenant, owner and unit required")
	}
	if in.InvoiceDate.IsZero() || in.DueDate.IsZero() {
		return errors.New("ar: invoice and due dates required")
	}
	if in.DueDate.Before(in.InvoiceDate) {
		return errors.New("ar: due date before invoice date")
	}
	if len(in.Lines) == 0 {
		return errors.New("ar: at least one line required")
	}
	for idx, line := range in.Lines {
		if line.Amount.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("ar: line %d amount must be positive", idx)
		}
		if strings.TrimSpace(line.Description) == "" {
			return fmt.Errorf("ar: line %d description required", idx)
		}
	}
	return nil
}

// Subtotal sums the line amounts.
func (in CreateInvoiceInput) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range in.Lines {
		total = total.Add(line.Amount)
	}
	return total
}

// ReceivePaymentInput captures a receipt from an owner.
type ReceivePaymentInput struct {
	TenantID     int64
	OwnerID      int64
	ReceivedDate time.Time
	Amount       decimal.Decimal
	Method       string
	Reference    string
}

// Validate ensures payment input correctness.
func (in ReceivePaymentInput) Validate() error {
	if in.TenantID == 0 || in.OwnerID == 0 {
		return errors.New("ar: tenant and owner required")
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("ar: amount must be positive")
	}
	if in.ReceivedDate.IsZero() {
		return errors.New("ar: received date required")
	}
	return nil
}
