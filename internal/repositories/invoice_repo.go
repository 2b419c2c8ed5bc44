package repositories

import (
	"context"
	"fmt"
	"time"

	"warrantyhub/internal/models"

	"github.com/google/uuid"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	ListRecent(ctx context.Context) ([]*models.Invoice, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
	NextInvoiceNumber(ctx context.Context, issued time.Time) (string, error)
}

type invoiceRepo struct {
	db Database
}

func NewInvoiceRepo(db Database) InvoiceRepository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) Create(ctx context.Context, invoice *models.Invoice) error {
	query := `
		INSERT INTO invoices (id, dealer_id, sale_id, invoice_number, total_amount, status, issued_date, due_date, paid_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, invoice.ID, invoice.DealerID, invoice.SaleID, invoice.InvoiceNumber, invoice.TotalAmount, invoice.Status, invoice.IssuedDate, invoice.DueDate, invoice.PaidDate)
	return err
}

func (r *invoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice := &models.Invoice{}
	query := `
		SELECT id, dealer_id, sale_id, invoice_number, total_amount, status, issued_date, due_date, paid_date, created_at, updated_at
		FROM invoices
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&invoice.ID, &invoice.DealerID, &invoice.SaleID, &invoice.InvoiceNumber, &invoice.TotalAmount, &invoice.Status, &invoice.IssuedDate, &invoice.DueDate, &invoice.PaidDate, &invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *invoiceRepo) ListRecent(ctx context.Context) ([]*models.Invoice, error) {
	query := `
		SELECT id, dealer_id, sale_id, invoice_number, total_amount, status, issued_date, due_date, paid_date, created_at, updated_at
		FROM invoices
		ORDER BY issued_date DESC
	`
	return r.list(ctx, query)
}

func (r *invoiceRepo) ListByStatus(ctx context.Context, status string) ([]*models.Invoice, error) {
	query := `
		SELECT id, dealer_id, sale_id, invoice_number, total_amount, status, issued_date, due_date, paid_date, created_at, updated_at
		FROM invoices
		WHERE status = $1
		ORDER BY issued_date DESC
	`
	return r.list(ctx, query, status)
}

func (r *invoiceRepo) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE invoices
		SET status = 'paid', paid_date = $1, updated_at = NOW()
		WHERE id = $2
	`
	_, err := r.db.Exec(ctx, query, at, id)
	return err
}

// MarkOverdue flips every pending invoice past its due date and returns
// how many rows changed. The nightly sweep runs this on each partition.
func (r *invoiceRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	query := `
		UPDATE invoices
		SET status = 'overdue', updated_at = NOW()
		WHERE status = 'pending' AND due_date < $1
	`
	tag, err := r.db.Exec(ctx, query, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// NextInvoiceNumber builds a month-scoped sequential number like
// INV-202608-00042. Uniqueness is enforced by the table constraint.
func (r *invoiceRepo) NextInvoiceNumber(ctx context.Context, issued time.Time) (string, error) {
	var count int64
	query := `
		SELECT COUNT(*)
		FROM invoices
		WHERE date_trunc('month', issued_date) = date_trunc('month', $1::timestamptz)
	`
	if err := r.db.QueryRow(ctx, query, issued).Scan(&count); err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%s-%05d", issued.Format("200601"), count+1), nil
}

func (r *invoiceRepo) list(ctx context.Context, query string, args ...any) ([]*models.Invoice, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice := &models.Invoice{}
		if err := rows.Scan(&invoice.ID, &invoice.DealerID, &invoice.SaleID, &invoice.InvoiceNumber, &invoice.TotalAmount, &invoice.Status, &invoice.IssuedDate, &invoice.DueDate, &invoice.PaidDate, &invoice.CreatedAt, &invoice.UpdatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}
