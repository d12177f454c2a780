package ar

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerLineType tags a row of the owner statement.
type LedgerLineType string

const (
	LedgerLineInvoice LedgerLineType = "INVOICE"
	LedgerLinePayment LedgerLineType = "PAYMENT"
)

// OwnerLedgerRow is one movement on the owner statement.
type OwnerLedgerRow struct {
	Date      time.Time       `json:"date"`
	Type      LedgerLineType  `json:"type"`
	Reference string          `json:"reference"`
	Charge    decimal.Decimal `json:"charge"`
	Payment   decimal.Decimal `json:"payment"`
	Balance   decimal.Decimal `json:"balance"`
}

// OwnerLedger is the owner statement: charges and receipts in date order with
// a running balance.
type OwnerLedger struct {
	OwnerID   int64            `json:"owner_id"`
	OwnerName string           `json:"owner_name"`
	Rows      []OwnerLedgerRow `json:"rows"`
	Balance   decimal.Decimal  `json:"balance"`
}

// BuildOwnerLedger merges invoices and payments into a running statement.
// Voided invoices are skipped; unapplied payment remainder still reduces the
// balance because it is the owner's credit.
func BuildOwnerLedger(owner Owner, invoices []Invoice, payments []Payment) OwnerLedger {
	out := OwnerLedger{OwnerID: owner.ID, OwnerName: owner.Name, Balance: decimal.Zero}
	for _, inv := range invoices {
		if inv.Status == InvoiceVoid || inv.Status == InvoiceDraft {
			continue
		}
		out.Rows = append(out.Rows, OwnerLedgerRow{
			Date:      inv.InvoiceDate,
			Type:      LedgerLineInvoice,
			Reference: inv.Number,
			Charge:    inv.Total,
		})
	}
	for _, p := range payments {
		out.Rows = append(out.Rows, OwnerLedgerRow{
			Date:      p.ReceivedDate,
			Type:      LedgerLinePayment,
			Reference: p.Number,
			Payment:   p.Amount,
		})
	}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		if out.Rows[i].Date.Equal(out.Rows[j].Date) {
			// Charges before receipts on the same day.
			return out.Rows[i].Type == LedgerLineInvoice && out.Rows[j].Type == LedgerLinePayment
		}
		return out.Rows[i].Date.Before(out.Rows[j].Date)
	})
	for i := range out.Rows {
		out.Balance = out.Balance.Add(out.Rows[i].Charge).Sub(out.Rows[i].Payment)
		out.Rows[i].Balance = out.Balance
	}
	return out
}
