package repositories

import (
	"context"

	"warrantyhub/internal/models"

	"github.com/google/uuid"
)

// TenantCatalogRepository operates on the warranty-package copies inside a
// single dealer database. The dealer table variant has no created_by
// column, and DealerCost/RetailPrice are dealer-local values that catalog
// pushes must never touch.
type TenantCatalogRepository interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.WarrantyPackage, error)
	InsertCopy(ctx context.Context, pkg *models.WarrantyPackage) error
	UpdateShared(ctx context.Context, pkg *models.WarrantyPackage) (bool, error)
	ReplaceItems(ctx context.Context, packageID uuid.UUID, items []*models.PackageItem) error
	UpdateLocalPricing(ctx context.Context, id uuid.UUID, dealerCost, retailPrice float64) error
}

type tenantCatalogRepo struct {
	db Database
}

func NewTenantCatalogRepo(db Database) TenantCatalogRepository {
	return &tenantCatalogRepo{db: db}
}

func (r *tenantCatalogRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM warranty_packages WHERE id = $1)`
	err := r.db.QueryRow(ctx, query, id).Scan(&exists)
	return exists, err
}

func (r *tenantCatalogRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WarrantyPackage, error) {
	pkg := &models.WarrantyPackage{}
	query := `
		SELECT id, name, description, duration_months, max_odometer_km, dealer_cost, retail_price, status, created_at, updated_at
		FROM warranty_packages
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&pkg.ID, &pkg.Name, &pkg.Description, &pkg.DurationMonths, &pkg.MaxOdometerKm, &pkg.DealerCost, &pkg.RetailPrice, &pkg.Status, &pkg.CreatedAt, &pkg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

// InsertCopy seeds a dealer database with a catalog package under the
// master identifier. Local pricing starts from the master values and is
// the dealer's to change afterwards.
func (r *tenantCatalogRepo) InsertCopy(ctx context.Context, pkg *models.WarrantyPackage) error {
	query := `
		INSERT INTO warranty_packages (id, name, description, duration_months, max_odometer_km, dealer_cost, retail_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, pkg.ID, pkg.Name, pkg.Description, pkg.DurationMonths, pkg.MaxOdometerKm, pkg.DealerCost, pkg.RetailPrice, pkg.Status)
	if err != nil {
		return err
	}
	if len(pkg.Items) == 0 {
		return nil
	}
	return r.ReplaceItems(ctx, pkg.ID, pkg.Items)
}

// UpdateShared pushes master-maintained fields into the dealer copy and
// reports whether a copy existed. DealerCost and RetailPrice are absent
// from the statement on purpose.
func (r *tenantCatalogRepo) UpdateShared(ctx context.Context, pkg *models.WarrantyPackage) (bool, error) {
	query := `
		UPDATE warranty_packages
		SET name = $1, description = $2, duration_months = $3, max_odometer_km = $4, status = $5, updated_at = NOW()
		WHERE id = $6
	`
	tag, err := r.db.Exec(ctx, query, pkg.Name, pkg.Description, pkg.DurationMonths, pkg.MaxOdometerKm, pkg.Status, pkg.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *tenantCatalogRepo) ReplaceItems(ctx context.Context, packageID uuid.UUID, items []*models.PackageItem) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM package_items WHERE package_id = $1`, packageID); err != nil {
		return err
	}
	query := `
		INSERT INTO package_items (id, package_id, name, description, coverage_limit, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, item := range items {
		if _, err := r.db.Exec(ctx, query, uuid.New(), packageID, item.Name, item.Description, item.CoverageLimit, i); err != nil {
			return err
		}
	}
	return nil
}

func (r *tenantCatalogRepo) UpdateLocalPricing(ctx context.Context, id uuid.UUID, dealerCost, retailPrice float64) error {
	query := `
		UPDATE warranty_packages
		SET dealer_cost = $1, retail_price = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.Exec(ctx, query, dealerCost, retailPrice, id)
	return err
}
