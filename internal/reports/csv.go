package reports

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/ar"
	"github.com/covenant-hq/covenant/internal/ledger"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	if _, err := s.buf.WriteString(line); err != nil {
		return err
	}
	return nil
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}

func formatDecimal(v decimal.Decimal) string {
	return v.StringFixed(2)
}

// WriteAgingCSV renders the delinquency aging report.
func WriteAgingCSV(w io.Writer, tenantName string, report ar.AgingReport) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeComment(fmt.Sprintf("# Report: AR Aging | Association: %s | As of: %s", tenantName, report.AsOf.Format("2006-01-02"))); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Owner ID", "Owner", "Current", "1-30", "31-60", "61-90", "90+", "Total"}); err != nil {
		return err
	}
	for _, row := range report.Rows {
		if err := streamer.writeRow([]string{
			fmt.Sprintf("%d", row.OwnerID),
			row.OwnerName,
			formatDecimal(row.Current),
			formatDecimal(row.Days1To30),
			formatDecimal(row.Days31To60),
			formatDecimal(row.Days61To90),
			formatDecimal(row.Days90Plus),
			formatDecimal(row.Total),
		}); err != nil {
			return err
		}
	}
	totals := report.Totals
	if err := streamer.writeRow([]string{
		"",
		"Totals",
		formatDecimal(totals.Current),
		formatDecimal(totals.Days1To30),
		formatDecimal(totals.Days31To60),
		formatDecimal(totals.Days61To90),
		formatDecimal(totals.Days90Plus),
		formatDecimal(totals.Total),
	}); err != nil {
		return err
	}
	return streamer.Close()
}

// WriteTrialBalanceCSV renders a fund trial balance.
func WriteTrialBalanceCSV(w io.Writer, tenantName, fundName string, tb ledger.TrialBalance) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeComment(fmt.Sprintf("# Report: Trial Balance | Association: %s | Fund: %s", tenantName, fundName)); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Account", "Name", "Type", "Debit", "Credit"}); err != nil {
		return err
	}
	for _, row := range tb.Rows {
		if err := streamer.writeRow([]string{
			row.Number,
			row.Name,
			string(row.Type),
			formatDecimal(row.Debit),
			formatDecimal(row.Credit),
		}); err != nil {
			return err
		}
	}
	if err := streamer.writeRow([]string{"", "Totals", "", formatDecimal(tb.TotalDebit), formatDecimal(tb.TotalCredit)}); err != nil {
		return err
	}
	balanced := "OUT OF BALANCE"
	if tb.Balanced {
		balanced = "balanced"
	}
	if err := streamer.writeComment("# " + balanced); err != nil {
		return err
	}
	return streamer.Close()
}

// WriteOwnerLedgerCSV renders an owner statement with running balance.
func WriteOwnerLedgerCSV(w io.Writer, tenantName string, statement ar.OwnerLedger) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeComment(fmt.Sprintf("# Report: Owner Ledger | Association: %s | Owner: %s", tenantName, statement.OwnerName)); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Date", "Type", "Reference", "Charge", "Payment", "Balance"}); err != nil {
		return err
	}
	for _, row := range statement.Rows {
		if err := streamer.writeRow([]string{
			row.Date.Format("2006-01-02"),
			string(row.Type),
			row.Reference,
			formatDecimal(row.Charge),
			formatDecimal(row.Payment),
			formatDecimal(row.Balance),
		}); err != nil {
			return err
		}
	}
	if err := streamer.writeRow([]string{"", "", "Ending balance", "", "", formatDecimal(statement.Balance)}); err != nil {
		return err
	}
	return streamer.Close()
}

// WriteAuditorExportCSV dumps every journal entry line in number order so an
// external auditor can rebuild the books. Accounts are resolved to numbers so
// the file stands alone.
func WriteAuditorExportCSV(w io.Writer, tenantName string, entries []ledger.JournalEntry, accounts map[int64]ledger.Account) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeComment(fmt.Sprintf("# Report: Auditor Journal Export | Association: %s | Entries: %d", tenantName, len(entries))); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Entry", "Date", "Type", "Description", "Account", "Account Name", "Debit", "Credit", "Memo"}); err != nil {
		return err
	}
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, entry := range entries {
		for _, line := range entry.Lines {
			number := ""
			name := ""
			if acct, ok := accounts[line.AccountID]; ok {
				number = acct.Number
				name = acct.Name
			}
			totalDebit = totalDebit.Add(line.Debit)
			totalCredit = totalCredit.Add(line.Credit)
			if err := streamer.writeRow([]string{
				fmt.Sprintf("%d", entry.Number),
				entry.Date.Format("2006-01-02"),
				string(entry.Type),
				entry.Description,
				number,
				name,
				formatDecimal(line.Debit),
				formatDecimal(line.Credit),
				line.Memo,
			}); err != nil {
				return err
			}
		}
	}
	if err := streamer.writeRow([]string{"", "", "", "Totals", "", "", formatDecimal(totalDebit), formatDecimal(totalCredit), ""}); err != nil {
		return err
	}
	return streamer.Close()
}
