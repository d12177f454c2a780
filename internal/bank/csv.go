package bank

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var statementHeader = []string{"date", "description", "amount", "reference"}

// StatementRow is one parsed CSV row before persistence.
type StatementRow struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Reference   string
}

// ParseStatement reads a bank statement CSV with the fixed header
// date,description,amount,reference. Dates are YYYY-MM-DD; amounts are
// signed decimals. A malformed row fails the whole parse with its line
// number so the file can be fixed and re-imported.
func ParseStatement(r io.Reader) ([]StatementRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, ErrBadHeader
	}
	if len(header) != len(statementHeader) {
		return nil, ErrBadHeader
	}
	for i, col := range header {
		if strings.ToLower(strings.TrimSpace(col)) != statementHeader[i] {
			return nil, ErrBadHeader
		}
	}

	var rows []StatementRow
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("bank: statement line %d: %w", line, err)
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("bank: statement line %d: bad date %q", line, record[0])
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(record[2]))
		if err != nil {
			return nil, fmt.Errorf("bank: statement line %d: bad amount %q", line, record[2])
		}
		if amount.IsZero() {
			return nil, fmt.Errorf("bank: statement line %d: zero amount", line)
		}
		rows = append(rows, StatementRow{
			Date:        date,
			Description: strings.TrimSpace(record[1]),
			Amount:      amount,
			Reference:   strings.TrimSpace(record[3]),
		})
	}
	return rows, nil
}
