package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"warrantyhub/internal/caching"
	"warrantyhub/internal/common"
	"warrantyhub/internal/logger"
	"warrantyhub/internal/metrics"
	"warrantyhub/internal/models"
	"warrantyhub/internal/repositories"
	"warrantyhub/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrPackageAssigned is returned when a catalog entry is assigned to a
// dealer that already holds a copy of it.
var ErrPackageAssigned = errors.New("package already assigned to dealer")

// ErrPackageNotFound is returned for reads and propagations against a
// catalog id that has no master row.
var ErrPackageNotFound = errors.New("package not found")

const packageCacheTTL = 10 * time.Minute

// PropagationReport summarizes a catalog push across the dealer fleet.
// Updated dealers received the new shared fields, skipped dealers never
// opted into the package, failed dealers could not be reached or written.
type PropagationReport struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// CatalogService owns the master warranty catalog and pushes shared field
// changes out to every dealer copy. Dealer-local pricing is never written
// by a push; items are replaced wholesale only when the caller supplied a
// new list.
type CatalogService interface {
	CreatePackage(ctx context.Context, pkg *models.WarrantyPackage) error
	GetPackage(ctx context.Context, id uuid.UUID) (*models.WarrantyPackage, error)
	ListPackages(ctx context.Context, limit, offset int) ([]*models.WarrantyPackage, error)
	UpdatePackage(ctx context.Context, pkg *models.WarrantyPackage) (*PropagationReport, error)
	RetirePackage(ctx context.Context, id uuid.UUID) (*PropagationReport, error)
	AssignToDealer(ctx context.Context, dealerID, packageID uuid.UUID, dealerCost, retailPrice float64) error
	SetLocalPricing(ctx context.Context, d tenancy.Decision, packageID uuid.UUID, dealerCost, retailPrice float64) error
}

type catalogService struct {
	packages repositories.PackageRepository
	registry *tenancy.Registry
	fanout   *tenancy.FanOut
	cache    caching.CacheService
}

// NewCatalogService creates a new CatalogService instance
func NewCatalogService(
	packages repositories.PackageRepository,
	registry *tenancy.Registry,
	fanout *tenancy.FanOut,
	cache caching.CacheService,
) CatalogService {
	return &catalogService{
		packages: packages,
		registry: registry,
		fanout:   fanout,
		cache:    cache,
	}
}

func validatePackage(pkg *models.WarrantyPackage) error {
	if pkg.Name == "" {
		return fmt.Errorf("package name is required")
	}
	if pkg.DurationMonths <= 0 {
		return fmt.Errorf("duration_months must be positive")
	}
	if pkg.DealerCost < 0 || pkg.RetailPrice < 0 {
		return fmt.Errorf("prices cannot be negative")
	}
	if pkg.Status != "" {
		if err := common.ValidatePackageStatus(pkg.Status); err != nil {
			return err
		}
	}
	for _, item := range pkg.Items {
		if item.Name == "" {
			return fmt.Errorf("package item name is required")
		}
	}
	return nil
}

// CreatePackage inserts a new catalog entry into the master database.
// Dealers only see it once it is assigned to them.
func (s *catalogService) CreatePackage(ctx context.Context, pkg *models.WarrantyPackage) error {
	if err := validatePackage(pkg); err != nil {
		return err
	}
	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}
	if pkg.Status == "" {
		pkg.Status = string(models.PackageStatusActive)
	}
	for i, item := range pkg.Items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.PackageID = pkg.ID
		item.Position = i
	}
	if err := s.packages.Create(ctx, pkg); err != nil {
		return fmt.Errorf("failed to create package: %w", err)
	}
	return nil
}

func (s *catalogService) GetPackage(ctx context.Context, id uuid.UUID) (*models.WarrantyPackage, error) {
	if cached, err := s.cache.GetPackage(ctx, id); err == nil && cached != nil {
		return cached, nil
	}
	pkg, err := s.packages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	if err := s.cache.SetPackage(ctx, pkg, packageCacheTTL); err != nil {
		logger.FromContext(ctx).Warn("package cache write failed", zap.Error(err))
	}
	return pkg, nil
}

func (s *catalogService) ListPackages(ctx context.Context, limit, offset int) ([]*models.WarrantyPackage, error) {
	return s.packages.List(ctx, limit, offset)
}

// UpdatePackage writes the master row and pushes the shared fields to every
// dealer holding a copy. The master edit is committed before the push
// starts and is never rolled back on partial propagation failure; the
// report tells the caller how far the push reached.
func (s *catalogService) UpdatePackage(ctx context.Context, pkg *models.WarrantyPackage) (*PropagationReport, error) {
	if err := validatePackage(pkg); err != nil {
		return nil, err
	}
	current, err := s.packages.GetByID(ctx, pkg.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to load package: %w", err)
	}
	// Master pricing fields are as editable as the rest; only dealer
	// copies protect their local overrides.
	pkg.CreatedBy = current.CreatedBy
	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, fmt.Errorf("failed to update package: %w", err)
	}
	if pkg.Items != nil {
		for i, item := range pkg.Items {
			if item.ID == uuid.Nil {
				item.ID = uuid.New()
			}
			item.PackageID = pkg.ID
			item.Position = i
		}
		if err := s.packages.ReplaceItems(ctx, pkg.ID, pkg.Items); err != nil {
			return nil, fmt.Errorf("failed to replace package items: %w", err)
		}
	}
	if err := s.cache.DeletePackage(ctx, pkg.ID); err != nil {
		logger.FromContext(ctx).Warn("package cache invalidation failed", zap.Error(err))
	}
	report := s.propagate(ctx, pkg)
	return report, nil
}

// RetirePackage flips the master status to retired and propagates it, so
// dealers stop selling the package without losing historical sales.
func (s *catalogService) RetirePackage(ctx context.Context, id uuid.UUID) (*PropagationReport, error) {
	pkg, err := s.packages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to load package: %w", err)
	}
	pkg.Status = string(models.PackageStatusRetired)
	pkg.Items = nil
	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, fmt.Errorf("failed to retire package: %w", err)
	}
	if err := s.cache.DeletePackage(ctx, id); err != nil {
		logger.FromContext(ctx).Warn("package cache invalidation failed", zap.Error(err))
	}
	report := s.propagate(ctx, pkg)
	return report, nil
}

// propagate pushes the shared fields of pkg to every active dealer. Each
// branch updates one tenant copy; a dealer without a copy is counted as
// skipped, a dealer that cannot be written is counted as failed. Branches
// never abort each other.
func (s *catalogService) propagate(ctx context.Context, pkg *models.WarrantyPackage) *PropagationReport {
	targets, err := s.fanout.TenantTargets(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("catalog push aborted: cannot list active dealers",
			zap.String("package_id", pkg.ID.String()),
			zap.Error(err))
		metrics.CatalogPropagationsTotal.WithLabelValues("aborted").Inc()
		return &PropagationReport{}
	}

	var updated, skipped atomic.Int64
	result := s.fanout.Each(ctx, targets, func(ctx context.Context, src tenancy.Source, h tenancy.Handle) error {
		catalog := repositories.NewTenantCatalogRepo(h)
		changed, err := catalog.UpdateShared(ctx, pkg)
		if err != nil {
			return fmt.Errorf("update shared fields: %w", err)
		}
		if !changed {
			// Dealer never opted into this package.
			skipped.Add(1)
			return nil
		}
		if pkg.Items != nil {
			if err := catalog.ReplaceItems(ctx, pkg.ID, pkg.Items); err != nil {
				return fmt.Errorf("replace items: %w", err)
			}
		}
		updated.Add(1)
		return nil
	})

	report := &PropagationReport{
		Updated: int(updated.Load()),
		Skipped: int(skipped.Load()),
		Failed:  result.Failed,
	}
	logger.FromContext(ctx).Info("catalog push finished",
		zap.String("package_id", pkg.ID.String()),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	outcome := "ok"
	if report.Failed > 0 {
		outcome = "partial"
	}
	metrics.CatalogPropagationsTotal.WithLabelValues(outcome).Inc()
	return report
}

// AssignToDealer copies a master catalog entry into one dealer database
// under the same id, with the pricing the dealer negotiated. From then on
// the copy receives shared-field pushes.
func (s *catalogService) AssignToDealer(ctx context.Context, dealerID, packageID uuid.UUID, dealerCost, retailPrice float64) error {
	if dealerCost < 0 || retailPrice < 0 {
		return fmt.Errorf("prices cannot be negative")
	}
	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPackageNotFound
		}
		return fmt.Errorf("failed to load package: %w", err)
	}
	h, err := s.registry.Resolve(ctx, dealerID)
	if err != nil {
		return err
	}
	catalog := repositories.NewTenantCatalogRepo(h)
	exists, err := catalog.Exists(ctx, packageID)
	if err != nil {
		return fmt.Errorf("failed to check dealer catalog: %w", err)
	}
	if exists {
		return ErrPackageAssigned
	}

	dealerCopy := *pkg
	dealerCopy.DealerCost = dealerCost
	dealerCopy.RetailPrice = retailPrice
	dealerCopy.CreatedBy = nil
	if err := catalog.InsertCopy(ctx, &dealerCopy); err != nil {
		return fmt.Errorf("failed to copy package to dealer: %w", err)
	}
	logger.FromContext(ctx).Info("package assigned to dealer",
		zap.String("package_id", packageID.String()),
		zap.String("dealer_id", dealerID.String()))
	return nil
}

// SetLocalPricing updates the dealer-local price columns of one copy. It
// is the only write path for dealer_cost and retail_price after
// assignment; catalog pushes never touch them.
func (s *catalogService) SetLocalPricing(ctx context.Context, d tenancy.Decision, packageID uuid.UUID, dealerCost, retailPrice float64) error {
	if dealerCost < 0 || retailPrice < 0 {
		return fmt.Errorf("prices cannot be negative")
	}
	if d.Scope != tenancy.ScopeTenant {
		return fmt.Errorf("local pricing applies to dealer copies only")
	}
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return err
	}
	catalog := repositories.NewTenantCatalogRepo(h)
	exists, err := catalog.Exists(ctx, packageID)
	if err != nil {
		return fmt.Errorf("failed to check dealer catalog: %w", err)
	}
	if !exists {
		return ErrPackageNotFound
	}
	if err := catalog.UpdateLocalPricing(ctx, packageID, dealerCost, retailPrice); err != nil {
		return fmt.Errorf("failed to update dealer pricing: %w", err)
	}
	return nil
}
