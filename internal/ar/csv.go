package ar

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var paymentsHeader = []string{"owner_id", "date", "amount", "method", "reference"}

// PaymentRow is one parsed payments CSV row before application.
type PaymentRow struct {
	OwnerID   int64
	Date      time.Time
	Amount    decimal.Decimal
	Method    string
	Reference string
}

// ParsePayments reads a lockbox payments CSV with the fixed header
// owner_id,date,amount,method,reference. Dates are YYYY-MM-DD; amounts are
// positive decimals. A malformed row fails the whole parse with its line
// number so the file can be fixed and re-imported.
func ParsePayments(r io.Reader) ([]PaymentRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, ErrBadHeader
	}
	if len(header) != len(paymentsHeader) {
		return nil, ErrBadHeader
	}
	for i, col := range header {
		if strings.ToLower(strings.TrimSpace(col)) != paymentsHeader[i] {
			return nil, ErrBadHeader
		}
	}

	var rows []PaymentRow
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("ar: payments line %d: %w", line, err)
		}
		ownerID, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil || ownerID <= 0 {
			return nil, fmt.Errorf("ar: payments line %d: bad owner id %q", line, record[0])
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("ar: payments line %d: bad date %q", line, record[1])
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(record[2]))
		if err != nil {
			return nil, fmt.Errorf("ar: payments line %d: bad amount %q", line, record[2])
		}
		if !amount.IsPositive() {
			return nil, fmt.Errorf("ar: payments line %d: amount must be positive", line)
		}
		rows = append(rows, PaymentRow{
			OwnerID:   ownerID,
			Date:      date,
			Amount:    amount,
			Method:    strings.TrimSpace(record[3]),
			Reference: strings.TrimSpace(record[4]),
		})
	}
	return rows, nil
}
