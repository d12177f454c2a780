package violations

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covenant-hq/covenant/internal/platform/db"
)

// Repository encapsulates DB operations for violations.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetViolation(ctx context.Context, tenantID, violationID int64) (Violation, error)
	ListViolations(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]Violation, int, error)
	ListActive(ctx context.Context, tenantID int64) ([]Violation, error)
}

// TxRepository exposes methods available inside a violations transaction.
type TxRepository interface {
	InsertViolation(ctx context.Context, v Violation) (Violation, error)
	GetViolationForUpdate(ctx context.Context, tenantID, violationID int64) (Violation, error)
	UpdateViolation(ctx context.Context, v Violation) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed violations repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const violationColumns = `id, tenant_id, unit_id, owner_id, category, description, status, reported_at, last_action_at, fine_invoice_id, resolved_at, created_at, updated_at`

func scanViolation(row pgx.Row) (Violation, error) {
	var v Violation
	err := row.Scan(&v.ID, &v.TenantID, &v.UnitID, &v.OwnerID, &v.Category, &v.Description, &v.Status,
		&v.ReportedAt, &v.LastActionAt, &v.FineInvoiceID, &v.ResolvedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Violation{}, ErrViolationNotFound
		}
		return Violation{}, err
	}
	return v, nil
}

func collectViolations(rows pgx.Rows) ([]Violation, error) {
	defer rows.Close()
	var violations []Violation
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.ID, &v.TenantID, &v.UnitID, &v.OwnerID, &v.Category, &v.Description, &v.Status,
			&v.ReportedAt, &v.LastActionAt, &v.FineInvoiceID, &v.ResolvedAt, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

func (r *repository) GetViolation(ctx context.Context, tenantID, violationID int64) (Violation, error) {
	return scanViolation(r.db.QueryRow(ctx,
		`SELECT `+violationColumns+` FROM violations WHERE tenant_id=$1 AND id=$2`, tenantID, violationID))
}

func (r *repository) ListViolations(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]Violation, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM violations
WHERE tenant_id=$1 AND ($2='' OR status=$2)`, tenantID, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+violationColumns+` FROM violations
WHERE tenant_id=$1 AND ($2='' OR status=$2) ORDER BY reported_at DESC, id DESC LIMIT $3 OFFSET $4`,
		tenantID, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	violations, err := collectViolations(rows)
	return violations, total, err
}

func (r *repository) ListActive(ctx context.Context, tenantID int64) ([]Violation, error) {
	rows, err := r.db.Query(ctx, `SELECT `+violationColumns+` FROM violations
WHERE tenant_id=$1 AND status <> 'RESOLVED' ORDER BY reported_at, id`, tenantID)
	if err != nil {
		return nil, err
	}
	return collectViolations(rows)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertViolation(ctx context.Context, v Violation) (Violation, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO violations (tenant_id, unit_id, owner_id, category, description, status, reported_at, last_action_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		v.TenantID, v.UnitID, v.OwnerID, v.Category, v.Description, v.Status, v.ReportedAt, v.LastActionAt)
	if err := row.Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return Violation{}, err
	}
	return v, nil
}

func (r *txRepository) GetViolationForUpdate(ctx context.Context, tenantID, violationID int64) (Violation, error) {
	return scanViolation(r.tx.QueryRow(ctx,
		`SELECT `+violationColumns+` FROM violations WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, violationID))
}

func (r *txRepository) UpdateViolation(ctx context.Context, v Violation) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE violations
SET status=$3, last_action_at=$4, fine_invoice_id=$5, resolved_at=$6, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, v.TenantID, v.ID, v.Status, v.LastActionAt, v.FineInvoiceID, v.ResolvedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrViolationNotFound
	}
	return nil
}
