package bank

import "time"

// matchWindow is how many days a statement date may differ from the journal
// date and still count as the same transaction.
const matchWindow = 3

func withinWindow(a, b time.Time) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= matchWindow*24*time.Hour
}

// matchLines pairs uncleared statement lines against unreconciled journal
// lines. A pair must agree on signed amount and fall within the date window;
// among candidates a memo that carries the statement reference wins. Each
// journal line clears at most one statement line.
func matchLines(statement []StatementLine, ledger []LedgerLine) ([]Match, []StatementLine, []LedgerLine) {
	used := make(map[int64]bool, len(ledger))
	var matched []Match
	var unmatched []StatementLine

	for _, sl := range statement {
		bestIdx := -1
		bestByRef := false
		for idx, ll := range ledger {
			if used[ll.LineID] {
				continue
			}
			if !ll.Amount.Equal(sl.Amount) || !withinWindow(sl.Date, ll.Date) {
				continue
			}
			byRef := sl.Reference != "" && ll.Memo == sl.Reference
			if bestIdx == -1 || (byRef && !bestByRef) {
				bestIdx = idx
				bestByRef = byRef
			}
			if byRef {
				break
			}
		}
		if bestIdx == -1 {
			unmatched = append(unmatched, sl)
			continue
		}
		used[ledger[bestIdx].LineID] = true
		matched = append(matched, Match{
			StatementLineID: sl.ID,
			LedgerLineID:    ledger[bestIdx].LineID,
			Amount:          sl.Amount,
			ByReference:     bestByRef,
		})
	}

	var outstanding []LedgerLine
	for _, ll := range ledger {
		if !used[ll.LineID] {
			outstanding = append(outstanding, ll)
		}
	}
	return matched, unmatched, outstanding
}
