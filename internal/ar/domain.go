package ar

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Owner is a party that can hold units and owe assessments.
type Owner struct {
	ID             int64
	TenantID       int64
	Name           string
	Email          string
	Phone          string
	MailingAddress string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Unit is a property record within the association.
type Unit struct {
	ID         int64
	TenantID   int64
	UnitNumber string
	Address    string
	SquareFeet int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Ownership links an owner to a unit over an effective date range.
type Ownership struct {
	ID         int64
	TenantID   int64
	OwnerID    int64
	UnitID     int64
	Percentage decimal.Decimal
	StartDate  time.Time
	EndDate    *time.Time
	IsCurrent  bool
	CreatedAt  time.Time
}

// InvoiceStatus enumerates invoice lifecycle values.
type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "DRAFT"
	InvoiceIssued  InvoiceStatus = "ISSUED"
	InvoicePartial InvoiceStatus = "PARTIAL"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceVoid    InvoiceStatus = "VOID"
)

// LineKind tags the billable event behind an invoice line.
type LineKind string

const (
	LineAssessment LineKind = "ASSESSMENT"
	LineLateFee    LineKind = "LATE_FEE"
	LineSpecial    LineKind = "SPECIAL"
	LineFine       LineKind = "FINE"
)

// Invoice is a billable event for an owner/unit. Subtotal, late fee, total,
// amount paid and amount due are kept consistent by the service;
// AmountDue == Total - AmountPaid always holds.
type Invoice struct {
	ID          int64
	TenantID    int64
	OwnerID     int64
	UnitID      int64
	Number      string
	Status      InvoiceStatus
	InvoiceDate time.Time
	DueDate     time.Time
	Subtotal    decimal.Decimal
	LateFee     decimal.Decimal
	Total       decimal.Decimal
	AmountPaid  decimal.Decimal
	AmountDue   decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []InvoiceLine
}

// InvoiceLine is one billable item on an invoice.
type InvoiceLine struct {
	ID          int64
	InvoiceID   int64
	Kind        LineKind
	Description string
	Amount      decimal.Decimal
	CreatedAt   time.Time
}

// Payment is a receipt from an owner, applied FIFO across open invoices.
// Amount == AmountApplied + AmountUnapplied always holds.
type Payment struct {
	ID              int64
	TenantID        int64
	OwnerID         int64
	Number          string
	ReceivedDate    time.Time
	Amount          decimal.Decimal
	AmountApplied   decimal.Decimal
	AmountUnapplied decimal.Decimal
	Method          string
	Reference       string
	CreatedAt       time.Time
	Applications    []PaymentApplication
}

// PaymentApplication records one payment-to-invoice allocation.
type PaymentApplication struct {
	ID        int64
	PaymentID int64
	InvoiceID int64
	Amount    decimal.Decimal
	AppliedAt time.Time
}

var (
	// ErrOwnerNotFound occurs when an owner is missing.
	ErrOwnerNotFound = errors.New("ar: owner not found")
	// ErrUnitNotFound occurs when a unit is missing.
	ErrUnitNotFound = errors.New("ar: unit not found")
	// ErrInvoiceNotFound occurs when an invoice is missing.
	ErrInvoiceNotFound = errors.New("ar: invoice not found")
	// ErrPaymentNotFound occurs when a payment is missing.
	ErrPaymentNotFound = errors.New("ar: payment not found")
	// ErrInvalidStatus occurs on a lifecycle transition the invoice does not allow.
	ErrInvalidStatus = errors.New("ar: invalid invoice status for operation")
	// ErrHasPayments occurs when voiding an invoice that already received money.
	ErrHasPayments = errors.New("ar: invoice has payments applied")
	// ErrBadHeader occurs when a payments CSV does not start with the expected columns.
	ErrBadHeader = errors.New("ar: unrecognized payments header")
)
