package ar

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covenant-hq/covenant/internal/platform/db"
)

// ListInvoicesRequest filters paginated invoice listings.
type ListInvoicesRequest struct {
	Status  InvoiceStatus
	OwnerID int64
	Limit   int
	Offset  int
}

// Repository encapsulates DB operations for accounts receivable.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetOwner(ctx context.Context, tenantID, ownerID int64) (Owner, error)
	ListOwners(ctx context.Context, tenantID int64, limit, offset int) ([]Owner, int, error)
	OwnerNames(ctx context.Context, tenantID int64) (map[int64]string, error)
	GetUnit(ctx context.Context, tenantID, unitID int64) (Unit, error)
	ListUnits(ctx context.Context, tenantID int64, limit, offset int) ([]Unit, int, error)
	ListCurrentOwnerships(ctx context.Context, tenantID int64) ([]Ownership, error)
	GetInvoiceWithLines(ctx context.Context, tenantID, invoiceID int64) (Invoice, error)
	ListInvoices(ctx context.Context, tenantID int64, req ListInvoicesRequest) ([]Invoice, int, error)
	ListOpenInvoices(ctx context.Context, tenantID int64) ([]Invoice, error)
	ListInvoicesByOwner(ctx context.Context, tenantID, ownerID int64) ([]Invoice, error)
	GetPayment(ctx context.Context, tenantID, paymentID int64) (Payment, error)
	ListPaymentsByOwner(ctx context.Context, tenantID, ownerID int64) ([]Payment, error)
}

// TxRepository exposes methods available inside an AR transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, tenantID int64, name string) (int64, error)
	InsertOwner(ctx context.Context, in CreateOwnerInput) (Owner, error)
	InsertUnit(ctx context.Context, in CreateUnitInput) (Unit, error)
	InsertOwnership(ctx context.Context, in CreateOwnershipInput) (Ownership, error)
	EndCurrentOwnership(ctx context.Context, tenantID, unitID int64, endDate time.Time) error
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	InsertInvoiceLine(ctx context.Context, line InvoiceLine) (InvoiceLine, error)
	GetInvoiceForUpdate(ctx context.Context, tenantID, invoiceID int64) (Invoice, error)
	ListOpenInvoicesForUpdate(ctx context.Context, tenantID, ownerID int64) ([]Invoice, error)
	UpdateInvoice(ctx context.Context, inv Invoice) error
	HasLateFeeSince(ctx context.Context, invoiceID int64, since time.Time) (bool, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	InsertApplication(ctx context.Context, app PaymentApplication) (PaymentApplication, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed AR repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) GetOwner(ctx context.Context, tenantID, ownerID int64) (Owner, error) {
	var o Owner
	err := r.db.QueryRow(ctx, `SELECT id, tenant_id, name, email, phone, mailing_address, created_at, updated_at
FROM owners WHERE tenant_id=$1 AND id=$2`, tenantID, ownerID).
		Scan(&o.ID, &o.TenantID, &o.Name, &o.Email, &o.Phone, &o.MailingAddress, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Owner{}, ErrOwnerNotFound
		}
		return Owner{}, err
	}
	return o, nil
}

func (r *repository) ListOwners(ctx context.Context, tenantID int64, limit, offset int) ([]Owner, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM owners WHERE tenant_id=$1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, name, email, phone, mailing_address, created_at, updated_at
FROM owners WHERE tenant_id=$1 ORDER BY name LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var owners []Owner
	for rows.Next() {
		var o Owner
		if err := rows.Scan(&o.ID, &o.TenantID, &o.Name, &o.Email, &o.Phone, &o.MailingAddress, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		owners = append(owners, o)
	}
	return owners, total, rows.Err()
}

func (r *repository) OwnerNames(ctx context.Context, tenantID int64) (map[int64]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM owners WHERE tenant_id=$1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (r *repository) GetUnit(ctx context.Context, tenantID, unitID int64) (Unit, error) {
	var u Unit
	err := r.db.QueryRow(ctx, `SELECT id, tenant_id, unit_number, address, square_feet, created_at, updated_at
FROM units WHERE tenant_id=$1 AND id=$2`, tenantID, unitID).
		Scan(&u.ID, &u.TenantID, &u.UnitNumber, &u.Address, &u.SquareFeet, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Unit{}, ErrUnitNotFound
		}
		return Unit{}, err
	}
	return u, nil
}

func (r *repository) ListUnits(ctx context.Context, tenantID int64, limit, offset int) ([]Unit, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM units WHERE tenant_id=$1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, unit_number, address, square_feet, created_at, updated_at
FROM units WHERE tenant_id=$1 ORDER BY unit_number LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.TenantID, &u.UnitNumber, &u.Address, &u.SquareFeet, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		units = append(units, u)
	}
	return units, total, rows.Err()
}

func (r *repository) ListCurrentOwnerships(ctx context.Context, tenantID int64) ([]Ownership, error) {
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, owner_id, unit_id, percentage, start_date, end_date, is_current, created_at
FROM ownerships WHERE tenant_id=$1 AND is_current ORDER BY unit_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ownerships []Ownership
	for rows.Next() {
		var o Ownership
		if err := rows.Scan(&o.ID, &o.TenantID, &o.OwnerID, &o.UnitID, &o.Percentage, &o.StartDate, &o.EndDate, &o.IsCurrent, &o.CreatedAt); err != nil {
			return nil, err
		}
		ownerships = append(ownerships, o)
	}
	return ownerships, rows.Err()
}

const invoiceColumns = `id, tenant_id, owner_id, unit_id, number, status, invoice_date, due_date, subtotal, late_fee, total, amount_paid, amount_due, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.OwnerID, &inv.UnitID, &inv.Number, &inv.Status, &inv.InvoiceDate, &inv.DueDate,
		&inv.Subtotal, &inv.LateFee, &inv.Total, &inv.AmountPaid, &inv.AmountDue, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.OwnerID, &inv.UnitID, &inv.Number, &inv.Status, &inv.InvoiceDate, &inv.DueDate,
			&inv.Subtotal, &inv.LateFee, &inv.Total, &inv.AmountPaid, &inv.AmountDue, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *repository) GetInvoiceWithLines(ctx context.Context, tenantID, invoiceID int64) (Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id=$1 AND id=$2`, tenantID, invoiceID))
	if err != nil {
		return Invoice{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, invoice_id, kind, description, amount, created_at
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Kind, &line.Description, &line.Amount, &line.CreatedAt); err != nil {
			return Invoice{}, err
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv, rows.Err()
}

func (r *repository) ListInvoices(ctx context.Context, tenantID int64, req ListInvoicesRequest) ([]Invoice, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices
WHERE tenant_id=$1 AND ($2='' OR status=$2) AND ($3=0 OR owner_id=$3)`, tenantID, string(req.Status), req.OwnerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE tenant_id=$1 AND ($2='' OR status=$2) AND ($3=0 OR owner_id=$3)
ORDER BY invoice_date DESC, id DESC LIMIT $4 OFFSET $5`, tenantID, string(req.Status), req.OwnerID, req.Limit, req.Offset)
	if err != nil {
		return nil, 0, err
	}
	invoices, err := collectInvoices(rows)
	return invoices, total, err
}

func (r *repository) ListOpenInvoices(ctx context.Context, tenantID int64) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE tenant_id=$1 AND status IN ('ISSUED','PARTIAL') ORDER BY invoice_date, id`, tenantID)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

func (r *repository) ListInvoicesByOwner(ctx context.Context, tenantID, ownerID int64) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE tenant_id=$1 AND owner_id=$2 ORDER BY invoice_date, id`, tenantID, ownerID)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

const paymentColumns = `id, tenant_id, owner_id, number, received_date, amount, amount_applied, amount_unapplied, method, reference, created_at`

func (r *repository) GetPayment(ctx context.Context, tenantID, paymentID int64) (Payment, error) {
	var p Payment
	err := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE tenant_id=$1 AND id=$2`, tenantID, paymentID).
		Scan(&p.ID, &p.TenantID, &p.OwnerID, &p.Number, &p.ReceivedDate, &p.Amount, &p.AmountApplied, &p.AmountUnapplied, &p.Method, &p.Reference, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, payment_id, invoice_id, amount, applied_at
FROM payment_applications WHERE payment_id=$1 ORDER BY id`, paymentID)
	if err != nil {
		return Payment{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var app PaymentApplication
		if err := rows.Scan(&app.ID, &app.PaymentID, &app.InvoiceID, &app.Amount, &app.AppliedAt); err != nil {
			return Payment{}, err
		}
		p.Applications = append(p.Applications, app)
	}
	return p, rows.Err()
}

func (r *repository) ListPaymentsByOwner(ctx context.Context, tenantID, ownerID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments
WHERE tenant_id=$1 AND owner_id=$2 ORDER BY received_date, id`, tenantID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.TenantID, &p.OwnerID, &p.Number, &p.ReceivedDate, &p.Amount, &p.AmountApplied, &p.AmountUnapplied, &p.Method, &p.Reference, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) NextNumber(ctx context.Context, tenantID int64, name string) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO tenant_sequences (tenant_id, name, last_value)
VALUES ($1, $2, 1)
ON CONFLICT (tenant_id, name) DO UPDATE SET last_value = tenant_sequences.last_value + 1
RETURNING last_value`, tenantID, name).Scan(&next)
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *txRepository) InsertOwner(ctx context.Context, in CreateOwnerInput) (Owner, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO owners (tenant_id, name, email, phone, mailing_address)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`, in.TenantID, in.Name, in.Email, in.Phone, in.MailingAddress)
	o := Owner{TenantID: in.TenantID, Name: in.Name, Email: in.Email, Phone: in.Phone, MailingAddress: in.MailingAddress}
	if err := row.Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Owner{}, err
	}
	return o, nil
}

func (r *txRepository) InsertUnit(ctx context.Context, in CreateUnitInput) (Unit, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO units (tenant_id, unit_number, address, square_feet)
VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`, in.TenantID, in.UnitNumber, in.Address, in.SquareFeet)
	u := Unit{TenantID: in.TenantID, UnitNumber: in.UnitNumber, Address: in.Address, SquareFeet: in.SquareFeet}
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return Unit{}, err
	}
	return u, nil
}

func (r *txRepository) InsertOwnership(ctx context.Context, in CreateOwnershipInput) (Ownership, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO ownerships (tenant_id, owner_id, unit_id, percentage, start_date, is_current)
VALUES ($1,$2,$3,$4,$5,TRUE) RETURNING id, created_at`, in.TenantID, in.OwnerID, in.UnitID, in.Percentage, in.StartDate)
	o := Ownership{TenantID: in.TenantID, OwnerID: in.OwnerID, UnitID: in.UnitID, Percentage: in.Percentage, StartDate: in.StartDate, IsCurrent: true}
	if err := row.Scan(&o.ID, &o.CreatedAt); err != nil {
		return Ownership{}, err
	}
	return o, nil
}

func (r *txRepository) EndCurrentOwnership(ctx context.Context, tenantID, unitID int64, endDate time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE ownerships SET is_current=FALSE, end_date=$3
WHERE tenant_id=$1 AND unit_id=$2 AND is_current`, tenantID, unitID, endDate)
	return err
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO invoices (tenant_id, owner_id, unit_id, number, status, invoice_date, due_date, subtotal, late_fee, total, amount_paid, amount_due)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id, created_at, updated_at`,
		inv.TenantID, inv.OwnerID, inv.UnitID, inv.Number, inv.Status, inv.InvoiceDate, inv.DueDate,
		inv.Subtotal, inv.LateFee, inv.Total, inv.AmountPaid, inv.AmountDue)
	if err := row.Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *txRepository) InsertInvoiceLine(ctx context.Context, line InvoiceLine) (InvoiceLine, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO invoice_lines (invoice_id, kind, description, amount)
VALUES ($1,$2,$3,$4) RETURNING id, created_at`, line.InvoiceID, line.Kind, line.Description, line.Amount)
	if err := row.Scan(&line.ID, &line.CreatedAt); err != nil {
		return InvoiceLine{}, err
	}
	return line, nil
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, tenantID, invoiceID int64) (Invoice, error) {
	return scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, invoiceID))
}

// ListOpenInvoicesForUpdate locks the owner's open invoices oldest first so a
// concurrent receipt cannot double-apply against the same balance.
func (r *txRepository) ListOpenInvoicesForUpdate(ctx context.Context, tenantID, ownerID int64) ([]Invoice, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE tenant_id=$1 AND owner_id=$2 AND status IN ('ISSUED','PARTIAL')
ORDER BY invoice_date, id FOR UPDATE`, tenantID, ownerID)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

func (r *txRepository) UpdateInvoice(ctx context.Context, inv Invoice) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE invoices
SET status=$3, subtotal=$4, late_fee=$5, total=$6, amount_paid=$7, amount_due=$8, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, inv.TenantID, inv.ID, inv.Status, inv.Subtotal, inv.LateFee, inv.Total, inv.AmountPaid, inv.AmountDue)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) HasLateFeeSince(ctx context.Context, invoiceID int64, since time.Time) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoice_lines
WHERE invoice_id=$1 AND kind='LATE_FEE' AND created_at >= $2)`, invoiceID, since).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payments (tenant_id, owner_id, number, received_date, amount, amount_applied, amount_unapplied, method, reference)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		p.TenantID, p.OwnerID, p.Number, p.ReceivedDate, p.Amount, p.AmountApplied, p.AmountUnapplied, p.Method, p.Reference)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (r *txRepository) InsertApplication(ctx context.Context, app PaymentApplication) (PaymentApplication, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payment_applications (payment_id, invoice_id, amount, applied_at)
VALUES ($1,$2,$3,$4) RETURNING id`, app.PaymentID, app.InvoiceID, app.Amount, app.AppliedAt)
	if err := row.Scan(&app.ID); err != nil {
		return PaymentApplication{}, err
	}
	return app, nil
}
