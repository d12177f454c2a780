package workorder

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covenant-hq/covenant/internal/platform/db"
)

// Repository encapsulates DB operations for work orders.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetWorkOrder(ctx context.Context, tenantID, workOrderID int64) (WorkOrder, error)
	ListWorkOrders(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]WorkOrder, int, error)
}

// TxRepository exposes methods available inside a work order transaction.
type TxRepository interface {
	InsertWorkOrder(ctx context.Context, wo WorkOrder) (WorkOrder, error)
	GetWorkOrderForUpdate(ctx context.Context, tenantID, workOrderID int64) (WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, wo WorkOrder) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed work order repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const workOrderColumns = `id, tenant_id, unit_id, title, description, priority, status, assigned_to, estimated_cost, actual_cost, journal_id, completed_at, created_at, updated_at`

func scanWorkOrder(row pgx.Row) (WorkOrder, error) {
	var wo WorkOrder
	err := row.Scan(&wo.ID, &wo.TenantID, &wo.UnitID, &wo.Title, &wo.Description, &wo.Priority, &wo.Status,
		&wo.AssignedTo, &wo.EstimatedCost, &wo.ActualCost, &wo.JournalID, &wo.CompletedAt, &wo.CreatedAt, &wo.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WorkOrder{}, ErrWorkOrderNotFound
		}
		return WorkOrder{}, err
	}
	return wo, nil
}

func (r *repository) GetWorkOrder(ctx context.Context, tenantID, workOrderID int64) (WorkOrder, error) {
	return scanWorkOrder(r.db.QueryRow(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE tenant_id=$1 AND id=$2`, tenantID, workOrderID))
}

func (r *repository) ListWorkOrders(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]WorkOrder, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM work_orders
WHERE tenant_id=$1 AND ($2='' OR status=$2)`, tenantID, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+workOrderColumns+` FROM work_orders
WHERE tenant_id=$1 AND ($2='' OR status=$2) ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		tenantID, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var orders []WorkOrder
	for rows.Next() {
		var wo WorkOrder
		if err := rows.Scan(&wo.ID, &wo.TenantID, &wo.UnitID, &wo.Title, &wo.Description, &wo.Priority, &wo.Status,
			&wo.AssignedTo, &wo.EstimatedCost, &wo.ActualCost, &wo.JournalID, &wo.CompletedAt, &wo.CreatedAt, &wo.UpdatedAt); err != nil {
			return nil, 0, err
		}
		orders = append(orders, wo)
	}
	return orders, total, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertWorkOrder(ctx context.Context, wo WorkOrder) (WorkOrder, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO work_orders (tenant_id, unit_id, title, description, priority, status, assigned_to, estimated_cost, actual_cost)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at, updated_at`,
		wo.TenantID, wo.UnitID, wo.Title, wo.Description, wo.Priority, wo.Status, wo.AssignedTo, wo.EstimatedCost, wo.ActualCost)
	if err := row.Scan(&wo.ID, &wo.CreatedAt, &wo.UpdatedAt); err != nil {
		return WorkOrder{}, err
	}
	return wo, nil
}

func (r *txRepository) GetWorkOrderForUpdate(ctx context.Context, tenantID, workOrderID int64) (WorkOrder, error) {
	return scanWorkOrder(r.tx.QueryRow(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, workOrderID))
}

func (r *txRepository) UpdateWorkOrder(ctx context.Context, wo WorkOrder) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE work_orders
SET status=$3, assigned_to=$4, actual_cost=$5, journal_id=$6, completed_at=$7, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, wo.TenantID, wo.ID, wo.Status, wo.AssignedTo, wo.ActualCost, wo.JournalID, wo.CompletedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrWorkOrderNotFound
	}
	return nil
}
