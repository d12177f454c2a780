package violations

import (
	"errors"
	"time"
)

// Status enumerates the violation enforcement ladder.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusNoticeSent Status = "NOTICE_SENT"
	StatusHearing    Status = "HEARING"
	StatusFined      Status = "FINED"
	StatusEscalated  Status = "ESCALATED"
	StatusResolved   Status = "RESOLVED"
)

// nextStage maps each active status to the stage that follows it. RESOLVED is
// reachable from any active status and never advances.
var nextStage = map[Status]Status{
	StatusOpen:       StatusNoticeSent,
	StatusNoticeSent: StatusHearing,
	StatusHearing:    StatusFined,
	StatusFined:      StatusEscalated,
}

// Active reports whether the violation still moves through the ladder.
func (s Status) Active() bool {
	_, ok := nextStage[s]
	return ok || s == StatusEscalated
}

// Violation is one recorded covenant breach against a unit.
type Violation struct {
	ID            int64
	TenantID      int64
	UnitID        int64
	OwnerID       int64
	Category      string
	Description   string
	Status        Status
	ReportedAt    time.Time
	LastActionAt  time.Time
	FineInvoiceID *int64
	ResolvedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	// ErrViolationNotFound occurs when a violation is missing.
	ErrViolationNotFound = errors.New("violations: not found")
	// ErrInvalidTransition occurs on a ladder move the current status does not allow.
	ErrInvalidTransition = errors.New("violations: invalid status transition")
	// ErrAlreadyResolved occurs when acting on a resolved violation.
	ErrAlreadyResolved = errors.New("violations: already resolved")
)
