package violations

import (
	"time"

	"github.com/shopspring/decimal"
)

// EscalationPolicy sets how long a violation may sit in each stage before the
// escalation run advances it, and the fine charged at the FINED stage.
type EscalationPolicy struct {
	NoticeAfterDays   int
	HearingAfterDays  int
	FineAfterDays     int
	EscalateAfterDays int
	FineAmount        decimal.Decimal
}

// DefaultPolicy mirrors a typical association's enforcement schedule.
func DefaultPolicy() EscalationPolicy {
	return EscalationPolicy{
		NoticeAfterDays:   7,
		HearingAfterDays:  14,
		FineAfterDays:     14,
		EscalateAfterDays: 30,
		FineAmount:        decimal.NewFromInt(100),
	}
}

// deadlineDays returns how many days the violation may rest in the status.
func (p EscalationPolicy) deadlineDays(s Status) (int, bool) {
	switch s {
	case StatusOpen:
		return p.NoticeAfterDays, true
	case StatusNoticeSent:
		return p.HearingAfterDays, true
	case StatusHearing:
		return p.FineAfterDays, true
	case StatusFined:
		return p.EscalateAfterDays, true
	}
	return 0, false
}

// Due reports whether the violation has outstayed its current stage.
func (p EscalationPolicy) Due(v Violation, asOf time.Time) bool {
	days, ok := p.deadlineDays(v.Status)
	if !ok {
		return false
	}
	return !asOf.Before(v.LastActionAt.AddDate(0, 0, days))
}
