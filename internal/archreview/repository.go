package archreview

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covenant-hq/covenant/internal/platform/db"
)

// Repository encapsulates DB operations for architectural requests.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetRequest(ctx context.Context, tenantID, requestID int64) (Request, error)
	ListRequests(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]Request, int, error)
}

// TxRepository exposes methods available inside an archreview transaction.
type TxRepository interface {
	InsertRequest(ctx context.Context, req Request) (Request, error)
	GetRequestForUpdate(ctx context.Context, tenantID, requestID int64) (Request, error)
	UpdateRequest(ctx context.Context, req Request) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed archreview repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const requestColumns = `id, tenant_id, unit_id, owner_id, title, description, status, submitted_at, decision_notes, decided_by, decided_at, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.TenantID, &req.UnitID, &req.OwnerID, &req.Title, &req.Description, &req.Status,
		&req.SubmittedAt, &req.DecisionNotes, &req.DecidedBy, &req.DecidedAt, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, err
	}
	return req, nil
}

func (r *repository) GetRequest(ctx context.Context, tenantID, requestID int64) (Request, error) {
	return scanRequest(r.db.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM architectural_requests WHERE tenant_id=$1 AND id=$2`, tenantID, requestID))
}

func (r *repository) ListRequests(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]Request, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM architectural_requests
WHERE tenant_id=$1 AND ($2='' OR status=$2)`, tenantID, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+requestColumns+` FROM architectural_requests
WHERE tenant_id=$1 AND ($2='' OR status=$2) ORDER BY submitted_at DESC, id DESC LIMIT $3 OFFSET $4`,
		tenantID, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var requests []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.TenantID, &req.UnitID, &req.OwnerID, &req.Title, &req.Description, &req.Status,
			&req.SubmittedAt, &req.DecisionNotes, &req.DecidedBy, &req.DecidedAt, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}
	return requests, total, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertRequest(ctx context.Context, req Request) (Request, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO architectural_requests (tenant_id, unit_id, owner_id, title, description, status, submitted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		req.TenantID, req.UnitID, req.OwnerID, req.Title, req.Description, req.Status, req.SubmittedAt)
	if err := row.Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return Request{}, err
	}
	return req, nil
}

func (r *txRepository) GetRequestForUpdate(ctx context.Context, tenantID, requestID int64) (Request, error) {
	return scanRequest(r.tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM architectural_requests WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, requestID))
}

func (r *txRepository) UpdateRequest(ctx context.Context, req Request) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE architectural_requests
SET status=$3, decision_notes=$4, decided_by=$5, decided_at=$6, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, req.TenantID, req.ID, req.Status, req.DecisionNotes, req.DecidedBy, req.DecidedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}
