package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covenant-hq/covenant/internal/ledger"
	_ "github.com/covenant-hq/covenant/testing"
)

type memoryRepo struct {
	tenants     map[int64]Tenant
	memberships map[int64]Membership
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{tenants: make(map[int64]Tenant), memberships: make(map[int64]Membership)}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

type memoryTx struct{ repo *memoryRepo }

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetTenant(ctx context.Context, tenantID int64) (Tenant, error) {
	t, ok := r.tenants[tenantID]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	return t, nil
}

func (r *memoryRepo) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	for _, t := range r.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return Tenant{}, ErrTenantNotFound
}

func (r *memoryRepo) ListTenants(ctx context.Context, limit, offset int) ([]Tenant, int, error) {
	var out []Tenant
	for _, t := range r.tenants {
		out = append(out, t)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetMembership(ctx context.Context, tenantID, userID int64) (Membership, error) {
	for _, m := range r.memberships {
		if m.TenantID == tenantID && m.UserID == userID {
			return m, nil
		}
	}
	return Membership{}, ErrNotMember
}

func (r *memoryRepo) ListMemberships(ctx context.Context, tenantID int64) ([]Membership, error) {
	var out []Membership
	for _, m := range r.memberships {
		if m.TenantID == tenantID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListMembershipsByUser(ctx context.Context, userID int64) ([]Membership, error) {
	var out []Membership
	for _, m := range r.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *memoryTx) InsertTenant(ctx context.Context, in OnboardInput) (Tenant, error) {
	for _, existing := range t.repo.tenants {
		if existing.Slug == in.Slug {
			return Tenant{}, ErrSlugTaken
		}
	}
	created := Tenant{ID: t.repo.id(), Name: in.Name, Slug: in.Slug, Timezone: in.Timezone}
	t.repo.tenants[created.ID] = created
	return created, nil
}

func (t *memoryTx) InsertMembership(ctx context.Context, in AddMemberInput) (Membership, error) {
	for _, m := range t.repo.memberships {
		if m.TenantID == in.TenantID && m.UserID == in.UserID {
			return Membership{}, ErrMemberExists
		}
	}
	m := Membership{ID: t.repo.id(), TenantID: in.TenantID, UserID: in.UserID, Role: in.Role}
	t.repo.memberships[m.ID] = m
	return m, nil
}

func (t *memoryTx) UpdateMembershipRole(ctx context.Context, tenantID, userID int64, role Role) error {
	for id, m := range t.repo.memberships {
		if m.TenantID == tenantID && m.UserID == userID {
			m.Role = role
			t.repo.memberships[id] = m
			return nil
		}
	}
	return ErrNotMember
}

func (t *memoryTx) DeleteMembership(ctx context.Context, tenantID, userID int64) error {
	for id, m := range t.repo.memberships {
		if m.TenantID == tenantID && m.UserID == userID {
			delete(t.repo.memberships, id)
			return nil
		}
	}
	return ErrNotMember
}

// fakeLedger records fund and account provisioning calls.
type fakeLedger struct {
	funds    []ledger.Fund
	accounts []ledger.Account
	nextID   int64
}

func (f *fakeLedger) CreateFund(ctx context.Context, in ledger.CreateFundInput) (ledger.Fund, error) {
	if err := in.Validate(); err != nil {
		return ledger.Fund{}, err
	}
	for _, fund := range f.funds {
		if fund.TenantID == in.TenantID && fund.Type == in.Type {
			return ledger.Fund{}, ledger.ErrFundExists
		}
	}
	f.nextID++
	fund := ledger.Fund{ID: f.nextID, TenantID: in.TenantID, Type: in.Type, Name: in.Name}
	f.funds = append(f.funds, fund)
	return fund, nil
}

func (f *fakeLedger) CreateAccount(ctx context.Context, in ledger.CreateAccountInput) (ledger.Account, error) {
	if err := in.Validate(); err != nil {
		return ledger.Account{}, err
	}
	f.nextID++
	account := ledger.Account{ID: f.nextID, TenantID: in.TenantID, FundID: in.FundID, Number: in.Number, Name: in.Name, Type: in.Type}
	f.accounts = append(f.accounts, account)
	return account, nil
}

func (f *fakeLedger) GetFundByType(ctx context.Context, tenantID int64, fundType ledger.FundType) (ledger.Fund, error) {
	for _, fund := range f.funds {
		if fund.TenantID == tenantID && fund.Type == fundType {
			return fund, nil
		}
	}
	return ledger.Fund{}, ledger.ErrFundNotFound
}

func (f *fakeLedger) ResolveAccount(ctx context.Context, tenantID, fundID int64, number string) (ledger.Account, error) {
	for _, account := range f.accounts {
		if account.TenantID == tenantID && account.FundID == fundID && account.Number == number {
			return account, nil
		}
	}
	return ledger.Account{}, ledger.ErrAccountNotFound
}

func TestOnboardProvisionsFundsAndChart(t *testing.T) {
	repo := newMemoryRepo()
	gl := &fakeLedger{}
	svc := NewService(repo, gl, nil)
	ctx := context.Background()

	created, err := svc.Onboard(ctx, OnboardInput{Name: "Cedar Grove HOA", Slug: "cedar-grove", Timezone: "America/Denver", AdminUserID: 7})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	require.Len(t, gl.funds, 3)
	types := map[ledger.FundType]bool{}
	for _, fund := range gl.funds {
		require.Equal(t, created.ID, fund.TenantID)
		types[fund.Type] = true
	}
	require.True(t, types[ledger.FundOperating])
	require.True(t, types[ledger.FundReserve])
	require.True(t, types[ledger.FundSpecialAssessment])

	require.Len(t, gl.accounts, len(ledger.DefaultChart()))

	role, err := svc.RoleFor(ctx, created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, role)
}

func TestOnboardRejectsBadSlug(t *testing.T) {
	svc := NewService(newMemoryRepo(), &fakeLedger{}, nil)
	_, err := svc.Onboard(context.Background(), OnboardInput{Name: "X", Slug: "Not A Slug", AdminUserID: 1})
	require.Error(t, err)
}

func TestOnboardDuplicateSlug(t *testing.T) {
	svc := NewService(newMemoryRepo(), &fakeLedger{}, nil)
	ctx := context.Background()
	_, err := svc.Onboard(ctx, OnboardInput{Name: "First", Slug: "shared", AdminUserID: 1})
	require.NoError(t, err)
	_, err = svc.Onboard(ctx, OnboardInput{Name: "Second", Slug: "shared", AdminUserID: 2})
	require.ErrorIs(t, err, ErrSlugTaken)
}

func TestSetupReserveFundRepairsMissingProvisioning(t *testing.T) {
	repo := newMemoryRepo()
	gl := &fakeLedger{}
	svc := NewService(repo, gl, nil)
	ctx := context.Background()

	created, err := svc.Onboard(ctx, OnboardInput{Name: "Birch Hollow", Slug: "birch-hollow", AdminUserID: 3})
	require.NoError(t, err)

	// Simulate a tenant onboarded without a reserve fund.
	var funds []ledger.Fund
	var accounts []ledger.Account
	var reserveID int64
	for _, fund := range gl.funds {
		if fund.Type == ledger.FundReserve {
			reserveID = fund.ID
			continue
		}
		funds = append(funds, fund)
	}
	for _, account := range gl.accounts {
		if account.FundID == reserveID {
			continue
		}
		accounts = append(accounts, account)
	}
	gl.funds, gl.accounts = funds, accounts

	fund, err := svc.SetupReserveFund(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.FundReserve, fund.Type)

	var reserveRefs int
	for _, ref := range ledger.DefaultChart() {
		if ref.Fund == ledger.FundReserve {
			reserveRefs++
		}
	}
	var provisioned int
	for _, account := range gl.accounts {
		if account.FundID == fund.ID {
			provisioned++
		}
	}
	require.Equal(t, reserveRefs, provisioned)

	// Running again must not duplicate anything.
	before := len(gl.accounts)
	again, err := svc.SetupReserveFund(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, fund.ID, again.ID)
	require.Len(t, gl.accounts, before)
}

func TestSetupReserveFundUnknownTenant(t *testing.T) {
	svc := NewService(newMemoryRepo(), &fakeLedger{}, nil)
	_, err := svc.SetupReserveFund(context.Background(), 42)
	require.ErrorIs(t, err, ErrTenantNotFound)
}

func TestAddMemberAndChangeRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &fakeLedger{}, nil)
	ctx := context.Background()

	created, err := svc.Onboard(ctx, OnboardInput{Name: "Elm Park", Slug: "elm-park", AdminUserID: 1})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, AddMemberInput{TenantID: created.ID, UserID: 2, Role: RoleBoard})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, AddMemberInput{TenantID: created.ID, UserID: 2, Role: RoleBoard})
	require.ErrorIs(t, err, ErrMemberExists)

	require.NoError(t, svc.ChangeRole(ctx, created.ID, 2, RoleManager))
	role, err := svc.RoleFor(ctx, created.ID, 2)
	require.NoError(t, err)
	require.Equal(t, RoleManager, role)

	require.NoError(t, svc.RemoveMember(ctx, created.ID, 2))
	_, err = svc.RoleFor(ctx, created.ID, 2)
	require.ErrorIs(t, err, ErrNotMember)
}

func TestRoleLadder(t *testing.T) {
	require.True(t, RoleAdmin.Allows(RoleManager))
	require.True(t, RoleManager.Allows(RoleBoard))
	require.True(t, RoleBoard.Allows(RoleReadonly))
	require.False(t, RoleReadonly.Allows(RoleBoard))
	require.False(t, RoleBoard.Allows(RoleAdmin))
	require.False(t, Role("OWNER").Valid())
}
