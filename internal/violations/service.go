package violations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/covenant-hq/covenant/internal/ar"
	"github.com/covenant-hq/covenant/internal/shared"
)

// ARPort is the slice of the AR service fines are billed through.
type ARPort interface {
	CreateInvoice(ctx context.Context, in ar.CreateInvoiceInput) (ar.Invoice, error)
	IssueInvoice(ctx context.Context, tenantID, invoiceID int64) (ar.Invoice, error)
}

// Service handles violation reporting and the enforcement ladder.
type Service struct {
	repo   Repository
	ar     ARPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the violations service.
func NewService(repo Repository, arPort ARPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, ar: arPort, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ReportInput captures a new violation report.
type ReportInput struct {
	TenantID    int64  `json:"-"`
	UnitID      int64  `json:"unit_id"`
	OwnerID     int64  `json:"owner_id"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Validate ensures report input correctness.
func (in ReportInput) Validate() error {
	if in.TenantID == 0 || in.UnitID == 0 || in.OwnerID == 0 {
		return errors.New("violations: tenant, unit and owner required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return errors.New("violations: category required")
	}
	return nil
}

// Report records a new OPEN violation.
func (s *Service) Report(ctx context.Context, in ReportInput) (Violation, error) {
	if err := in.Validate(); err != nil {
		return Violation{}, err
	}
	now := s.now()
	var violation Violation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertViolation(ctx, Violation{
			TenantID:     in.TenantID,
			UnitID:       in.UnitID,
			OwnerID:      in.OwnerID,
			Category:     in.Category,
			Description:  in.Description,
			Status:       StatusOpen,
			ReportedAt:   now,
			LastActionAt: now,
		})
		if err != nil {
			return err
		}
		violation = created
		return nil
	})
	return violation, err
}

// Advance moves the violation one rung up the ladder. Entering FINED bills
// the owner through AR; the invoice posts after the status commits.
func (s *Service) Advance(ctx context.Context, tenantID, violationID int64, policy EscalationPolicy) (Violation, error) {
	var violation Violation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v, err := tx.GetViolationForUpdate(ctx, tenantID, violationID)
		if err != nil {
			return err
		}
		if v.Status == StatusResolved {
			return ErrAlreadyResolved
		}
		next, ok := nextStage[v.Status]
		if !ok {
			return ErrInvalidTransition
		}
		v.Status = next
		v.LastActionAt = s.now()
		if err := tx.UpdateViolation(ctx, v); err != nil {
			return err
		}
		violation = v
		return nil
	})
	if err != nil {
		return Violation{}, err
	}
	if violation.Status == StatusFined {
		if err := s.billFine(ctx, &violation, policy); err != nil {
			return Violation{}, err
		}
	}
	return violation, nil
}

// billFine creates and issues a FINE invoice, then links it to the violation.
func (s *Service) billFine(ctx context.Context, v *Violation, policy EscalationPolicy) error {
	now := s.now()
	invoice, err := s.ar.CreateInvoice(ctx, ar.CreateInvoiceInput{
		TenantID:    v.TenantID,
		OwnerID:     v.OwnerID,
		UnitID:      v.UnitID,
		InvoiceDate: now,
		DueDate:     now.AddDate(0, 0, 30),
		Lines: []ar.InvoiceLineInput{{
			Kind:        ar.LineFine,
			Description: fmt.Sprintf("Violation fine: %s", v.Category),
			Amount:      policy.FineAmount,
		}},
	})
	if err != nil {
		return err
	}
	if _, err := s.ar.IssueInvoice(ctx, v.TenantID, invoice.ID); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetViolationForUpdate(ctx, v.TenantID, v.ID)
		if err != nil {
			return err
		}
		locked.FineInvoiceID = &invoice.ID
		if err := tx.UpdateViolation(ctx, locked); err != nil {
			return err
		}
		*v = locked
		return nil
	})
}

// Resolve closes the violation from any active status.
func (s *Service) Resolve(ctx context.Context, tenantID, violationID int64) (Violation, error) {
	var violation Violation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v, err := tx.GetViolationForUpdate(ctx, tenantID, violationID)
		if err != nil {
			return err
		}
		if v.Status == StatusResolved {
			return ErrAlreadyResolved
		}
		now := s.now()
		v.Status = StatusResolved
		v.LastActionAt = now
		v.ResolvedAt = &now
		if err := tx.UpdateViolation(ctx, v); err != nil {
			return err
		}
		violation = v
		return nil
	})
	return violation, err
}

// EscalateOverdue advances every active violation that has outstayed its
// stage deadline. Per-record failures accumulate into the summary.
func (s *Service) EscalateOverdue(ctx context.Context, tenantID int64, asOf time.Time, policy EscalationPolicy) (shared.RunSummary, error) {
	var summary shared.RunSummary
	active, err := s.repo.ListActive(ctx, tenantID)
	if err != nil {
		return summary, err
	}
	for _, v := range active {
		if !policy.Due(v, asOf) {
			continue
		}
		if _, err := s.Advance(ctx, tenantID, v.ID, policy); err != nil {
			if s.logger != nil {
				s.logger.Warn("violation escalation failed",
					slog.Int64("violation", v.ID), slog.Any("error", err))
			}
			summary.Failure(fmt.Sprintf("violation %d", v.ID), err)
			continue
		}
		summary.Success()
	}
	return summary, nil
}

// Get fetches one violation.
func (s *Service) Get(ctx context.Context, tenantID, violationID int64) (Violation, error) {
	return s.repo.GetViolation(ctx, tenantID, violationID)
}

// List returns a page of violations, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]Violation, int, error) {
	return s.repo.ListViolations(ctx, tenantID, status, limit, offset)
}

// ListActive returns every violation not yet resolved.
func (s *Service) ListActive(ctx context.Context, tenantID int64) ([]Violation, error) {
	return s.repo.ListActive(ctx, tenantID)
}
