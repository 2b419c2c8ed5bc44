package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"warrantyhub/internal/common"
	"warrantyhub/internal/models"
	"warrantyhub/internal/repositories"
	"warrantyhub/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrSaleNotFound is returned when a sale id has no row in the routed
// partition.
var ErrSaleNotFound = errors.New("warranty sale not found")

// SalesService records warranty contracts and assembles the fleet-wide
// sale ledger. A sale lives in exactly one partition: the selling dealer's
// database, or the master for direct retail sales.
type SalesService interface {
	CreateSale(ctx context.Context, d tenancy.Decision, sale *models.WarrantySale) error
	GetSale(ctx context.Context, d tenancy.Decision, id uuid.UUID) (*models.WarrantySale, error)
	CancelSale(ctx context.Context, d tenancy.Decision, id uuid.UUID) error
	ListSales(ctx context.Context, d tenancy.Decision, filter models.SaleSearchFilter) ([]*models.WarrantySale, error)
	ListFleet(ctx context.Context, filter models.SaleSearchFilter) ([]*models.WarrantySale, error)
}

type salesService struct {
	registry *tenancy.Registry
	fanout   *tenancy.FanOut
}

// NewSalesService creates a new SalesService instance
func NewSalesService(registry *tenancy.Registry, fanout *tenancy.FanOut) SalesService {
	return &salesService{
		registry: registry,
		fanout:   fanout,
	}
}

func validateSale(sale *models.WarrantySale) error {
	if sale.CustomerID == uuid.Nil {
		return fmt.Errorf("customer_id is required")
	}
	if sale.VehicleID == uuid.Nil {
		return fmt.Errorf("vehicle_id is required")
	}
	if sale.PackageID == uuid.Nil {
		return fmt.Errorf("package_id is required")
	}
	if sale.SalePrice < 0 {
		return fmt.Errorf("sale_price cannot be negative")
	}
	return nil
}

// CreateSale writes a warranty contract into the routed partition. The
// customer, vehicle and package copy must all live in that same partition;
// a sale never references rows across database boundaries.
func (s *salesService) CreateSale(ctx context.Context, d tenancy.Decision, sale *models.WarrantySale) error {
	if err := validateSale(sale); err != nil {
		return err
	}
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return err
	}

	if _, err := repositories.NewCustomerRepo(h).GetByID(ctx, sale.CustomerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("failed to load customer: %w", err)
	}
	vehicle, err := repositories.NewVehicleRepo(h).GetByID(ctx, sale.VehicleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVehicleNotFound
		}
		return fmt.Errorf("failed to load vehicle: %w", err)
	}
	if vehicle.CustomerID != sale.CustomerID {
		return fmt.Errorf("vehicle does not belong to the customer")
	}
	pkg, err := repositories.NewTenantCatalogRepo(h).GetByID(ctx, sale.PackageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPackageNotFound
		}
		return fmt.Errorf("failed to load package: %w", err)
	}
	if pkg.Status != string(models.PackageStatusActive) {
		return fmt.Errorf("package %s is retired", pkg.ID)
	}

	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	sale.DealerID = d.Owner()
	sale.Status = string(models.SaleStatusActive)
	if sale.SoldAt.IsZero() {
		sale.SoldAt = time.Now().UTC()
	}
	if sale.SalePrice == 0 {
		sale.SalePrice = pkg.RetailPrice
	}
	expires := sale.SoldAt.AddDate(0, pkg.DurationMonths, 0)
	sale.ExpiresAt = &expires

	if err := repositories.NewSaleRepo(h).Create(ctx, sale); err != nil {
		return fmt.Errorf("failed to create sale: %w", err)
	}
	return nil
}

func (s *salesService) GetSale(ctx context.Context, d tenancy.Decision, id uuid.UUID) (*models.WarrantySale, error) {
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return nil, err
	}
	sale, err := repositories.NewSaleRepo(h).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return sale, nil
}

func (s *salesService) CancelSale(ctx context.Context, d tenancy.Decision, id uuid.UUID) error {
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return err
	}
	repo := repositories.NewSaleRepo(h)
	sale, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSaleNotFound
		}
		return fmt.Errorf("failed to load sale: %w", err)
	}
	if sale.Status != string(models.SaleStatusActive) {
		return fmt.Errorf("only active sales can be cancelled")
	}
	if err := repo.UpdateStatus(ctx, id, string(models.SaleStatusCancelled)); err != nil {
		return fmt.Errorf("failed to cancel sale: %w", err)
	}
	return nil
}

func (s *salesService) ListSales(ctx context.Context, d tenancy.Decision, filter models.SaleSearchFilter) ([]*models.WarrantySale, error) {
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return nil, err
	}
	sales, err := repositories.NewSaleRepo(h).ListRecent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return pageSales(sales, filter)
}

// ListFleet merges the sale ledgers of the master and every active dealer,
// tolerating unreachable partitions the same way the customer directory
// does.
func (s *salesService) ListFleet(ctx context.Context, filter models.SaleSearchFilter) ([]*models.WarrantySale, error) {
	targets, err := s.fanout.Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list fan-out targets: %w", err)
	}
	merged := tenancy.Collect(ctx, s.fanout, targets, func(ctx context.Context, src tenancy.Source, h tenancy.Handle) ([]*models.WarrantySale, error) {
		return repositories.NewSaleRepo(h).ListRecent(ctx)
	})
	return pageSales(merged, filter)
}

// pageSales filters, orders and pages a merged ledger: most recent sale
// first, same ceiling as the customer directory.
func pageSales(sales []*models.WarrantySale, filter models.SaleSearchFilter) ([]*models.WarrantySale, error) {
	limit, offset, err := common.ValidatePaginationParams(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}

	kept := make([]*models.WarrantySale, 0, len(sales))
	for _, sale := range sales {
		if filter.Status != nil && sale.Status != *filter.Status {
			continue
		}
		if filter.PackageID != nil && sale.PackageID != *filter.PackageID {
			continue
		}
		if filter.DealerID != nil {
			if sale.DealerID == nil || *sale.DealerID != *filter.DealerID {
				continue
			}
		}
		if filter.SoldFrom != nil && sale.SoldAt.Before(*filter.SoldFrom) {
			continue
		}
		if filter.SoldTo != nil && sale.SoldAt.After(*filter.SoldTo) {
			continue
		}
		kept = append(kept, sale)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].SoldAt.After(kept[j].SoldAt)
	})

	if offset >= len(kept) {
		return []*models.WarrantySale{}, nil
	}
	end := offset + limit
	if end > len(kept) {
		end = len(kept)
	}
	return kept[offset:end], nil
}
