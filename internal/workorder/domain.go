package workorder

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Priority orders dispatch urgency.
type Priority string

const (
	PriorityLow       Priority = "LOW"
	PriorityMedium    Priority = "MEDIUM"
	PriorityHigh      Priority = "HIGH"
	PriorityEmergency Priority = "EMERGENCY"
)

// Valid reports whether the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityEmergency:
		return true
	}
	return false
}

// Status enumerates the work order lifecycle.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// transitions lists allowed lifecycle moves. COMPLETED and CANCELLED are
// terminal.
var transitions = map[Status][]Status{
	StatusOpen:       {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether the lifecycle move is allowed.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// WorkOrder is one maintenance job against a unit or a common area. A nil
// UnitID means common-area work.
type WorkOrder struct {
	ID            int64
	TenantID      int64
	UnitID        *int64
	Title         string
	Description   string
	Priority      Priority
	Status        Status
	AssignedTo    string
	EstimatedCost decimal.Decimal
	ActualCost    decimal.Decimal
	JournalID     *int64
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	// ErrWorkOrderNotFound occurs when a work order is missing.
	ErrWorkOrderNotFound = errors.New("workorder: not found")
	// ErrInvalidTransition occurs on a lifecycle move the current status does not allow.
	ErrInvalidTransition = errors.New("workorder: invalid status transition")
)
