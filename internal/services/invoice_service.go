package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"warrantyhub/internal/common"
	"warrantyhub/internal/logger"
	"warrantyhub/internal/models"
	"warrantyhub/internal/repositories"
	"warrantyhub/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrInvoiceNotFound is returned when an invoice id has no row in the
// routed partition.
var ErrInvoiceNotFound = errors.New("invoice not found")

// defaultPaymentTermDays is the net term applied when the caller does not
// set a due date.
const defaultPaymentTermDays = 30

// InvoiceService bills warranty sales. Invoices live in the partition of
// the sale they bill; the overdue sweep walks every partition once a night
// and flips expired pending invoices.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, d tenancy.Decision, invoice *models.Invoice) error
	GetInvoice(ctx context.Context, d tenancy.Decision, id uuid.UUID) (*models.Invoice, error)
	ListInvoices(ctx context.Context, d tenancy.Decision, status string) ([]*models.Invoice, error)
	MarkPaid(ctx context.Context, d tenancy.Decision, id uuid.UUID) error
	SweepOverdue(ctx context.Context, asOf time.Time) (int64, tenancy.Report)
}

type invoiceService struct {
	registry *tenancy.Registry
	fanout   *tenancy.FanOut
}

// NewInvoiceService creates a new InvoiceService instance
func NewInvoiceService(registry *tenancy.Registry, fanout *tenancy.FanOut) InvoiceService {
	return &invoiceService{
		registry: registry,
		fanout:   fanout,
	}
}

func validateInvoice(invoice *models.Invoice) error {
	if invoice.SaleID == uuid.Nil {
		return fmt.Errorf("sale_id is required")
	}
	if invoice.TotalAmount < 0 {
		return fmt.Errorf("total_amount cannot be negative")
	}
	if !invoice.DueDate.IsZero() && !invoice.IssuedDate.IsZero() && invoice.DueDate.Before(invoice.IssuedDate) {
		return fmt.Errorf("due_date cannot be before issued_date")
	}
	return nil
}

// CreateInvoice issues an invoice for a sale in the routed partition. The
// invoice number is allocated per partition, so numbers are unique within
// a dealer's books rather than across the fleet.
func (s *invoiceService) CreateInvoice(ctx context.Context, d tenancy.Decision, invoice *models.Invoice) error {
	if err := validateInvoice(invoice); err != nil {
		return err
	}
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return err
	}

	sale, err := repositories.NewSaleRepo(h).GetByID(ctx, invoice.SaleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSaleNotFound
		}
		return fmt.Errorf("failed to load sale: %w", err)
	}
	if sale.Status == string(models.SaleStatusCancelled) {
		return fmt.Errorf("cannot invoice a cancelled sale")
	}

	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	invoice.DealerID = d.Owner()
	invoice.Status = string(models.InvoiceStatusPending)
	if invoice.IssuedDate.IsZero() {
		invoice.IssuedDate = time.Now().UTC()
	}
	if invoice.DueDate.IsZero() {
		invoice.DueDate = invoice.IssuedDate.AddDate(0, 0, defaultPaymentTermDays)
	}
	if invoice.TotalAmount == 0 {
		invoice.TotalAmount = sale.SalePrice
	}

	repo := repositories.NewInvoiceRepo(h)
	number, err := repo.NextInvoiceNumber(ctx, invoice.IssuedDate)
	if err != nil {
		return fmt.Errorf("failed to allocate invoice number: %w", err)
	}
	invoice.InvoiceNumber = number

	if err := repo.Create(ctx, invoice); err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, d tenancy.Decision, id uuid.UUID) (*models.Invoice, error) {
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return nil, err
	}
	invoice, err := repositories.NewInvoiceRepo(h).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, d tenancy.Decision, status string) ([]*models.Invoice, error) {
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return nil, err
	}
	repo := repositories.NewInvoiceRepo(h)
	if status == "" {
		invoices, err := repo.ListRecent(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list invoices: %w", err)
		}
		return invoices, nil
	}
	if err := common.ValidateInvoiceStatus(status); err != nil {
		return nil, err
	}
	invoices, err := repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

func (s *invoiceService) MarkPaid(ctx context.Context, d tenancy.Decision, id uuid.UUID) error {
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return err
	}
	repo := repositories.NewInvoiceRepo(h)
	invoice, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvoiceNotFound
		}
		return fmt.Errorf("failed to load invoice: %w", err)
	}
	switch invoice.Status {
	case string(models.InvoiceStatusPending), string(models.InvoiceStatusOverdue):
	default:
		return fmt.Errorf("invoice %s is %s and cannot be paid", invoice.InvoiceNumber, invoice.Status)
	}
	if err := repo.MarkPaid(ctx, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	return nil
}

// SweepOverdue flips pending invoices past their due date to overdue in
// every partition, master included since retail invoices age too. Each
// partition is one branch; an unreachable partition is retried on the next
// nightly run.
func (s *invoiceService) SweepOverdue(ctx context.Context, asOf time.Time) (int64, tenancy.Report) {
	targets, err := s.fanout.Targets(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("overdue sweep aborted: cannot list fan-out targets", zap.Error(err))
		return 0, tenancy.Report{}
	}

	var marked atomic.Int64
	report := s.fanout.Each(ctx, targets, func(ctx context.Context, src tenancy.Source, h tenancy.Handle) error {
		n, err := repositories.NewInvoiceRepo(h).MarkOverdue(ctx, asOf)
		if err != nil {
			return err
		}
		marked.Add(n)
		return nil
	})

	logger.FromContext(ctx).Info("overdue sweep finished",
		zap.Int64("invoices_marked", marked.Load()),
		zap.Int("partitions_ok", report.Succeeded),
		zap.Int("partitions_failed", report.Failed))
	return marked.Load(), report
}
