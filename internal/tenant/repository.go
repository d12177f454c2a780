package tenant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covenant-hq/covenant/internal/platform/db"
)

// Repository encapsulates DB operations for tenants and memberships.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetTenant(ctx context.Context, tenantID int64) (Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (Tenant, error)
	ListTenants(ctx context.Context, limit, offset int) ([]Tenant, int, error)
	GetMembership(ctx context.Context, tenantID, userID int64) (Membership, error)
	ListMemberships(ctx context.Context, tenantID int64) ([]Membership, error)
	ListMembershipsByUser(ctx context.Context, userID int64) ([]Membership, error)
}

// TxRepository exposes methods available inside a tenant transaction.
type TxRepository interface {
	InsertTenant(ctx context.Context, in OnboardInput) (Tenant, error)
	InsertMembership(ctx context.Context, in AddMemberInput) (Membership, error)
	UpdateMembershipRole(ctx context.Context, tenantID, userID int64, role Role) error
	DeleteMembership(ctx context.Context, tenantID, userID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed tenant repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const tenantColumns = `id, name, slug, timezone, created_at, updated_at`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Timezone, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrTenantNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

func (r *repository) GetTenant(ctx context.Context, tenantID int64) (Tenant, error) {
	return scanTenant(r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id=$1`, tenantID))
}

func (r *repository) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	return scanTenant(r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug=$1`, slug))
}

func (r *repository) ListTenants(ctx context.Context, limit, offset int) ([]Tenant, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Timezone, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, t)
	}
	return tenants, total, rows.Err()
}

func (r *repository) GetMembership(ctx context.Context, tenantID, userID int64) (Membership, error) {
	var m Membership
	err := r.db.QueryRow(ctx, `SELECT id, tenant_id, user_id, role, created_at
FROM memberships WHERE tenant_id=$1 AND user_id=$2`, tenantID, userID).
		Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, ErrNotMember
		}
		return Membership{}, err
	}
	return m, nil
}

func (r *repository) ListMemberships(ctx context.Context, tenantID int64) ([]Membership, error) {
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, user_id, role, created_at
FROM memberships WHERE tenant_id=$1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	return collectMemberships(rows)
}

func (r *repository) ListMembershipsByUser(ctx context.Context, userID int64) ([]Membership, error) {
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, user_id, role, created_at
FROM memberships WHERE user_id=$1 ORDER BY tenant_id`, userID)
	if err != nil {
		return nil, err
	}
	return collectMemberships(rows)
}

func collectMemberships(rows pgx.Rows) ([]Membership, error) {
	defer rows.Close()
	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertTenant(ctx context.Context, in OnboardInput) (Tenant, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO tenants (name, slug, timezone)
VALUES ($1,$2,$3) RETURNING id, created_at, updated_at`, in.Name, in.Slug, in.Timezone)
	t := Tenant{Name: in.Name, Slug: in.Slug, Timezone: in.Timezone}
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if isUniqueViolation(err, "uq_tenants_slug") {
			return Tenant{}, ErrSlugTaken
		}
		return Tenant{}, err
	}
	return t, nil
}

func (r *txRepository) InsertMembership(ctx context.Context, in AddMemberInput) (Membership, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO memberships (tenant_id, user_id, role)
VALUES ($1,$2,$3) RETURNING id, created_at`, in.TenantID, in.UserID, in.Role)
	m := Membership{TenantID: in.TenantID, UserID: in.UserID, Role: in.Role}
	if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
		if isUniqueViolation(err, "uq_memberships_tenant_user") {
			return Membership{}, ErrMemberExists
		}
		return Membership{}, err
	}
	return m, nil
}

func (r *txRepository) UpdateMembershipRole(ctx context.Context, tenantID, userID int64, role Role) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE memberships SET role=$3 WHERE tenant_id=$1 AND user_id=$2`, tenantID, userID, role)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

func (r *txRepository) DeleteMembership(ctx context.Context, tenantID, userID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM memberships WHERE tenant_id=$1 AND user_id=$2`, tenantID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}
