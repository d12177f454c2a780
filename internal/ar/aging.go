package ar

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgingBucket classifies an invoice by time since due.
type AgingBucket string

const (
	BucketCurrent AgingBucket = "CURRENT"
	Bucket1To30   AgingBucket = "1-30"
	Bucket31To60  AgingBucket = "31-60"
	Bucket61To90  AgingBucket = "61-90"
	Bucket90Plus  AgingBucket = "90+"
)

// DaysOverdue returns how many whole days past due the invoice is as of the
// given date, never negative.
func DaysOverdue(dueDate, asOf time.Time) int {
	days := int(asOf.Sub(dueDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// BucketFor maps days overdue onto the reporting bucket. Due today or in the
// future is CURRENT; 31 days overdue lands in 31-60.
func BucketFor(daysOverdue int) AgingBucket {
	switch {
	case daysOverdue <= 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket1To30
	case daysOverdue <= 60:
		return Bucket31To60
	case daysOverdue <= 90:
		return Bucket61To90
	default:
		return Bucket90Plus
	}
}

// AgingRow is a per-owner row of the AR aging report.
type AgingRow struct {
	OwnerID    int64           `json:"owner_id"`
	OwnerName  string          `json:"owner_name"`
	Current    decimal.Decimal `json:"current"`
	Days1To30  decimal.Decimal `json:"days_1_30"`
	Days31To60 decimal.Decimal `json:"days_31_60"`
	Days61To90 decimal.Decimal `json:"days_61_90"`
	Days90Plus decimal.Decimal `json:"days_90_plus"`
	Total      decimal.Decimal `json:"total"`
}

// AgingReport sums open invoice balances into buckets per owner.
type AgingReport struct {
	AsOf   time.Time  `json:"as_of"`
	Rows   []AgingRow `json:"rows"`
	Totals AgingRow   `json:"totals"`
}

func (r *AgingRow) add(bucket AgingBucket, amount decimal.Decimal) {
	switch bucket {
	case BucketCurrent:
		r.Current = r.Current.Add(amount)
	case Bucket1To30:
		r.Days1To30 = r.Days1To30.Add(amount)
	case Bucket31To60:
		r.Days31To60 = r.Days31To60.Add(amount)
	case Bucket61To90:
		r.Days61To90 = r.Days61To90.Add(amount)
	default:
		r.Days90Plus = r.Days90Plus.Add(amount)
	}
	r.Total = r.Total.Add(amount)
}

// BuildAgingReport iterates all open invoices and sums amount due into
// buckets keyed by owner.
func BuildAgingReport(asOf time.Time, invoices []Invoice, ownerNames map[int64]string) AgingReport {
	report := AgingReport{AsOf: asOf}
	rows := make(map[int64]*AgingRow)
	order := make([]int64, 0)
	for _, inv := range invoices {
		if inv.Status != InvoiceIssued && inv.Status != InvoicePartial {
			continue
		}
		if inv.AmountDue.IsZero() {
			continue
		}
		row, ok := rows[inv.OwnerID]
		if !ok {
			row = &AgingRow{OwnerID: inv.OwnerID, OwnerName: ownerNames[inv.OwnerID]}
			rows[inv.OwnerID] = row
			order = append(order, inv.OwnerID)
		}
		bucket := BucketFor(DaysOverdue(inv.DueDate, asOf))
		row.add(bucket, inv.AmountDue)
		report.Totals.add(bucket, inv.AmountDue)
	}
	for _, ownerID := range order {
		report.Rows = append(report.Rows, *rows[ownerID])
	}
	return report
}
