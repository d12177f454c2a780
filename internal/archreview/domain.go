package archreview

import (
	"errors"
	"time"
)

// Status enumerates the architectural request workflow.
type Status string

const (
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusDenied      Status = "DENIED"
	StatusWithdrawn   Status = "WITHDRAWN"
)

// transitions lists the allowed moves. Decisions and withdrawal are terminal.
var transitions = map[Status][]Status{
	StatusSubmitted:   {StatusUnderReview, StatusWithdrawn},
	StatusUnderReview: {StatusApproved, StatusDenied, StatusWithdrawn},
}

// CanTransition reports whether the move from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Request is one owner's application to alter their unit or lot.
type Request struct {
	ID            int64
	TenantID      int64
	UnitID        int64
	OwnerID       int64
	Title         string
	Description   string
	Status        Status
	SubmittedAt   time.Time
	DecisionNotes string
	DecidedBy     *int64
	DecidedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	// ErrRequestNotFound occurs when a request is missing.
	ErrRequestNotFound = errors.New("archreview: request not found")
	// ErrInvalidTransition occurs on a workflow move the current status does not allow.
	ErrInvalidTransition = errors.New("archreview: invalid status transition")
)
