package workorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/ledger"
)

// LedgerPort is the slice of the ledger service completion posting needs.
type LedgerPort interface {
	PostEntry(ctx context.Context, in ledger.PostingInput) (ledger.JournalEntry, error)
	GetFundByType(ctx context.Context, tenantID int64, fundType ledger.FundType) (ledger.Fund, error)
	ResolveAccount(ctx context.Context, tenantID, fundID int64, number string) (ledger.Account, error)
}

// Service handles the work order lifecycle.
type Service struct {
	repo Repository
	gl   LedgerPort
	now  func() time.Time
}

// NewService builds the work order service.
func NewService(repo Repository, gl LedgerPort) *Service {
	return &Service{repo: repo, gl: gl, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInput captures a new work order.
type CreateInput struct {
	TenantID      int64           `json:"-"`
	UnitID        *int64          `json:"unit_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Priority      Priority        `json:"priority"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
}

// Validate ensures work order input correctness.
func (in CreateInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("workorder: tenant required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return errors.New("workorder: title required")
	}
	if !in.Priority.Valid() {
		return errors.New("workorder: invalid priority")
	}
	if in.EstimatedCost.IsNegative() {
		return errors.New("workorder: estimated cost cannot be negative")
	}
	return nil
}

// Create records a new OPEN work order.
func (s *Service) Create(ctx context.Context, in CreateInput) (WorkOrder, error) {
	if err := in.Validate(); err != nil {
		return WorkOrder{}, err
	}
	var order WorkOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertWorkOrder(ctx, WorkOrder{
			TenantID:      in.TenantID,
			UnitID:        in.UnitID,
			Title:         in.Title,
			Description:   in.Description,
			Priority:      in.Priority,
			Status:        StatusOpen,
			EstimatedCost: in.EstimatedCost,
			ActualCost:    decimal.Zero,
		})
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	return order, err
}

// Assign moves an OPEN work order to ASSIGNED with the vendor or staffer.
func (s *Service) Assign(ctx context.Context, tenantID, workOrderID int64, assignee string) (WorkOrder, error) {
	if strings.TrimSpace(assignee) == "" {
		return WorkOrder{}, errors.New("workorder: assignee required")
	}
	return s.transition(ctx, tenantID, workOrderID, StatusAssigned, func(wo *WorkOrder) {
		wo.AssignedTo = assignee
	})
}

// Start moves an ASSIGNED work order to IN_PROGRESS.
func (s *Service) Start(ctx context.Context, tenantID, workOrderID int64) (WorkOrder, error) {
	return s.transition(ctx, tenantID, workOrderID, StatusInProgress, nil)
}

// Cancel aborts the work order from any non-terminal status.
func (s *Service) Cancel(ctx context.Context, tenantID, workOrderID int64) (WorkOrder, error) {
	return s.transition(ctx, tenantID, workOrderID, StatusCancelled, nil)
}

// Complete finishes an IN_PROGRESS work order, records the actual cost and
// posts the expense to the operating fund: maintenance expense debit,
// accounts payable credit. A zero-cost completion posts nothing.
func (s *Service) Complete(ctx context.Context, tenantID, workOrderID int64, actualCost decimal.Decimal) (WorkOrder, error) {
	if actualCost.IsNegative() {
		return WorkOrder{}, errors.New("workorder: actual cost cannot be negative")
	}
	completedAt := s.now()
	order, err := s.transition(ctx, tenantID, workOrderID, StatusCompleted, func(wo *WorkOrder) {
		wo.ActualCost = actualCost
		wo.CompletedAt = &completedAt
	})
	if err != nil {
		return WorkOrder{}, err
	}
	if actualCost.IsZero() {
		return order, nil
	}
	entry, err := s.postCompletionEntry(ctx, order)
	if err != nil {
		return WorkOrder{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetWorkOrderForUpdate(ctx, tenantID, workOrderID)
		if err != nil {
			return err
		}
		locked.JournalID = &entry.ID
		if err := tx.UpdateWorkOrder(ctx, locked); err != nil {
			return err
		}
		order = locked
		return nil
	})
	if err != nil {
		return WorkOrder{}, err
	}
	return order, nil
}

func (s *Service) postCompletionEntry(ctx context.Context, wo WorkOrder) (ledger.JournalEntry, error) {
	fund, err := s.gl.GetFundByType(ctx, wo.TenantID, ledger.FundOperating)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	expense, err := s.gl.ResolveAccount(ctx, wo.TenantID, fund.ID, ledger.AcctMaintenanceExpense)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	payable, err := s.gl.ResolveAccount(ctx, wo.TenantID, fund.ID, ledger.AcctAccountsPayable)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	memo := fmt.Sprintf("WO-%d", wo.ID)
	return s.gl.PostEntry(ctx, ledger.PostingInput{
		TenantID:    wo.TenantID,
		Date:        *wo.CompletedAt,
		Type:        ledger.EntryStandard,
		Description: fmt.Sprintf("Work order completed: %s", wo.Title),
		Lines: []ledger.PostingLineInput{
			{AccountID: expense.ID, Debit: wo.ActualCost, Memo: memo},
			{AccountID: payable.ID, Credit: wo.ActualCost, Memo: memo},
		},
	})
}

func (s *Service) transition(ctx context.Context, tenantID, workOrderID int64, to Status, mutate func(*WorkOrder)) (WorkOrder, error) {
	var order WorkOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		wo, err := tx.GetWorkOrderForUpdate(ctx, tenantID, workOrderID)
		if err != nil {
			return err
		}
		if !CanTransition(wo.Status, to) {
			return ErrInvalidTransition
		}
		wo.Status = to
		if mutate != nil {
			mutate(&wo)
		}
		if err := tx.UpdateWorkOrder(ctx, wo); err != nil {
			return err
		}
		order = wo
		return nil
	})
	return order, err
}

// Get fetches one work order.
func (s *Service) Get(ctx context.Context, tenantID, workOrderID int64) (WorkOrder, error) {
	return s.repo.GetWorkOrder(ctx, tenantID, workOrderID)
}

// List returns a page of work orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]WorkOrder, int, error) {
	return s.repo.ListWorkOrders(ctx, tenantID, status, limit, offset)
}
