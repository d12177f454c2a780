package archreview

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Service handles the architectural request workflow.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the archreview service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SubmitInput captures a new architectural request.
type SubmitInput struct {
	TenantID    int64  `json:"-"`
	UnitID      int64  `json:"unit_id"`
	OwnerID     int64  `json:"owner_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Validate ensures submission input correctness.
func (in SubmitInput) Validate() error {
	if in.TenantID == 0 || in.UnitID == 0 || in.OwnerID == 0 {
		return errors.New("archreview: tenant, unit and owner required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return errors.New("archreview: title required")
	}
	return nil
}

// Submit records a new SUBMITTED request.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Request, error) {
	if err := in.Validate(); err != nil {
		return Request{}, err
	}
	var request Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertRequest(ctx, Request{
			TenantID:    in.TenantID,
			UnitID:      in.UnitID,
			OwnerID:     in.OwnerID,
			Title:       in.Title,
			Description: in.Description,
			Status:      StatusSubmitted,
			SubmittedAt: s.now(),
		})
		if err != nil {
			return err
		}
		request = created
		return nil
	})
	return request, err
}

// StartReview moves a SUBMITTED request into UNDER_REVIEW.
func (s *Service) StartReview(ctx context.Context, tenantID, requestID int64) (Request, error) {
	return s.transition(ctx, tenantID, requestID, StatusUnderReview, "", 0)
}

// Decide records an APPROVED or DENIED decision with reviewer notes.
func (s *Service) Decide(ctx context.Context, tenantID, requestID int64, approved bool, notes string, decidedBy int64) (Request, error) {
	if decidedBy == 0 {
		return Request{}, errors.New("archreview: decider required")
	}
	to := StatusDenied
	if approved {
		to = StatusApproved
	}
	return s.transition(ctx, tenantID, requestID, to, notes, decidedBy)
}

// Withdraw lets the owner pull a request before a decision lands.
func (s *Service) Withdraw(ctx context.Context, tenantID, requestID int64) (Request, error) {
	return s.transition(ctx, tenantID, requestID, StatusWithdrawn, "", 0)
}

func (s *Service) transition(ctx context.Context, tenantID, requestID int64, to Status, notes string, decidedBy int64) (Request, error) {
	var request Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequestForUpdate(ctx, tenantID, requestID)
		if err != nil {
			return err
		}
		if !CanTransition(req.Status, to) {
			return ErrInvalidTransition
		}
		req.Status = to
		if to == StatusApproved || to == StatusDenied {
			now := s.now()
			req.DecisionNotes = notes
			req.DecidedBy = &decidedBy
			req.DecidedAt = &now
		}
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		request = req
		return nil
	})
	return request, err
}

// Get fetches one request.
func (s *Service) Get(ctx context.Context, tenantID, requestID int64) (Request, error) {
	return s.repo.GetRequest(ctx, tenantID, requestID)
}

// List returns a page of requests, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]Request, int, error) {
	return s.repo.ListRequests(ctx, tenantID, status, limit, offset)
}
