package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/covenant-hq/covenant/internal/ledger"
)

// LedgerPort is the slice of the ledger service tenant provisioning needs to
// create and look up funds and chart accounts.
type LedgerPort interface {
	CreateFund(ctx context.Context, in ledger.CreateFundInput) (ledger.Fund, error)
	CreateAccount(ctx context.Context, in ledger.CreateAccountInput) (ledger.Account, error)
	GetFundByType(ctx context.Context, tenantID int64, fundType ledger.FundType) (ledger.Fund, error)
	ResolveAccount(ctx context.Context, tenantID, fundID int64, number string) (ledger.Account, error)
}

// Service handles tenant onboarding and membership management.
type Service struct {
	repo   Repository
	gl     LedgerPort
	logger *slog.Logger
}

// NewService builds the tenant service.
func NewService(repo Repository, gl LedgerPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, gl: gl, logger: logger}
}

var fundNames = map[ledger.FundType]string{
	ledger.FundOperating:         "Operating Fund",
	ledger.FundReserve:           "Reserve Fund",
	ledger.FundSpecialAssessment: "Special Assessment Fund",
}

// Onboard creates the tenant, its admin membership, the three segregated
// funds and the default chart of accounts. Fund and account provisioning
// happens after the tenant row commits so the ledger sees a real tenant id.
func (s *Service) Onboard(ctx context.Context, in OnboardInput) (Tenant, error) {
	if err := in.Validate(); err != nil {
		return Tenant{}, err
	}
	var created Tenant
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.InsertTenant(ctx, in)
		if err != nil {
			return err
		}
		if _, err := tx.InsertMembership(ctx, AddMemberInput{
			TenantID: t.ID,
			UserID:   in.AdminUserID,
			Role:     RoleAdmin,
		}); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return Tenant{}, err
	}
	if err := s.provisionLedger(ctx, created.ID); err != nil {
		return Tenant{}, fmt.Errorf("tenant: provisioning ledger for %s: %w", created.Slug, err)
	}
	if s.logger != nil {
		s.logger.Info("tenant onboarded", slog.Int64("tenant", created.ID), slog.String("slug", created.Slug))
	}
	return created, nil
}

func (s *Service) provisionLedger(ctx context.Context, tenantID int64) error {
	funds := make(map[ledger.FundType]ledger.Fund, len(fundNames))
	for _, fundType := range []ledger.FundType{ledger.FundOperating, ledger.FundReserve, ledger.FundSpecialAssessment} {
		fund, err := s.gl.CreateFund(ctx, ledger.CreateFundInput{
			TenantID: tenantID,
			Type:     fundType,
			Name:     fundNames[fundType],
		})
		if err != nil {
			return err
		}
		funds[fundType] = fund
	}
	for _, ref := range ledger.DefaultChart() {
		if _, err := s.gl.CreateAccount(ctx, ledger.CreateAccountInput{
			TenantID: tenantID,
			FundID:   funds[ref.Fund].ID,
			Number:   ref.Number,
			Name:     ref.Name,
			Type:     ref.Type,
		}); err != nil {
			return err
		}
	}
	return nil
}

// SetupReserveFund provisions the reserve fund and its chart section for an
// existing tenant, filling in whatever is missing. Associations onboarded
// before the reserve section grew new accounts get repaired the same way.
// Idempotent: existing funds and accounts are left alone.
func (s *Service) SetupReserveFund(ctx context.Context, tenantID int64) (ledger.Fund, error) {
	if _, err := s.repo.GetTenant(ctx, tenantID); err != nil {
		return ledger.Fund{}, err
	}
	fund, err := s.gl.GetFundByType(ctx, tenantID, ledger.FundReserve)
	if errors.Is(err, ledger.ErrFundNotFound) {
		fund, err = s.gl.CreateFund(ctx, ledger.CreateFundInput{
			TenantID: tenantID,
			Type:     ledger.FundReserve,
			Name:     fundNames[ledger.FundReserve],
		})
	}
	if err != nil {
		return ledger.Fund{}, err
	}
	for _, ref := range ledger.DefaultChart() {
		if ref.Fund != ledger.FundReserve {
			continue
		}
		if _, err := s.gl.ResolveAccount(ctx, tenantID, fund.ID, ref.Number); err == nil {
			continue
		} else if !errors.Is(err, ledger.ErrAccountNotFound) {
			return ledger.Fund{}, err
		}
		if _, err := s.gl.CreateAccount(ctx, ledger.CreateAccountInput{
			TenantID: tenantID,
			FundID:   fund.ID,
			Number:   ref.Number,
			Name:     ref.Name,
			Type:     ref.Type,
		}); err != nil {
			return ledger.Fund{}, err
		}
	}
	if s.logger != nil {
		s.logger.Info("reserve fund provisioned", slog.Int64("tenant", tenantID), slog.Int64("fund", fund.ID))
	}
	return fund, nil
}

// AddMember adds a user to the tenant with the given role.
func (s *Service) AddMember(ctx context.Context, in AddMemberInput) (Membership, error) {
	if err := in.Validate(); err != nil {
		return Membership{}, err
	}
	if _, err := s.repo.GetTenant(ctx, in.TenantID); err != nil {
		return Membership{}, err
	}
	var membership Membership
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertMembership(ctx, in)
		if err != nil {
			return err
		}
		membership = created
		return nil
	})
	return membership, err
}

// ChangeRole updates an existing member's role.
func (s *Service) ChangeRole(ctx context.Context, tenantID, userID int64, role Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateMembershipRole(ctx, tenantID, userID, role)
	})
}

// RemoveMember drops a user's membership.
func (s *Service) RemoveMember(ctx context.Context, tenantID, userID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteMembership(ctx, tenantID, userID)
	})
}

// Get fetches one tenant.
func (s *Service) Get(ctx context.Context, tenantID int64) (Tenant, error) {
	return s.repo.GetTenant(ctx, tenantID)
}

// GetBySlug fetches one tenant by slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (Tenant, error) {
	return s.repo.GetTenantBySlug(ctx, slug)
}

// List returns a page of tenants.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Tenant, int, error) {
	return s.repo.ListTenants(ctx, limit, offset)
}

// RoleFor resolves the user's role within the tenant.
func (s *Service) RoleFor(ctx context.Context, tenantID, userID int64) (Role, error) {
	m, err := s.repo.GetMembership(ctx, tenantID, userID)
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// Memberships lists every tenant the user belongs to.
func (s *Service) Memberships(ctx context.Context, userID int64) ([]Membership, error) {
	return s.repo.ListMembershipsByUser(ctx, userID)
}
