package repositories

import (
	"context"

	"warrantyhub/internal/models"

	"github.com/google/uuid"
)

// PackageRepository manages the authoritative catalog in the master
// database. Dealer-side copies are handled by TenantCatalogRepository.
type PackageRepository interface {
	Create(ctx context.Context, pkg *models.WarrantyPackage) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WarrantyPackage, error)
	List(ctx context.Context, limit, offset int) ([]*models.WarrantyPackage, error)
	Update(ctx context.Context, pkg *models.WarrantyPackage) error
	ReplaceItems(ctx context.Context, packageID uuid.UUID, items []*models.PackageItem) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type packageRepo struct {
	db Database
}

func NewPackageRepo(db Database) PackageRepository {
	return &packageRepo{db: db}
}

func (r *packageRepo) Create(ctx context.Context, pkg *models.WarrantyPackage) error {
	query := `
		INSERT INTO warranty_packages (id, name, description, duration_months, max_odometer_km, dealer_cost, retail_price, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, pkg.ID, pkg.Name, pkg.Description, pkg.DurationMonths, pkg.MaxOdometerKm, pkg.DealerCost, pkg.RetailPrice, pkg.Status, pkg.CreatedBy)
	if err != nil {
		return err
	}
	if len(pkg.Items) == 0 {
		return nil
	}
	return r.insertItems(ctx, pkg.ID, pkg.Items)
}

func (r *packageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WarrantyPackage, error) {
	pkg := &models.WarrantyPackage{}
	query := `
		SELECT id, name, description, duration_months, max_odometer_km, dealer_cost, retail_price, status, created_by, created_at, updated_at
		FROM warranty_packages
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&pkg.ID, &pkg.Name, &pkg.Description, &pkg.DurationMonths, &pkg.MaxOdometerKm, &pkg.DealerCost, &pkg.RetailPrice, &pkg.Status, &pkg.CreatedBy, &pkg.CreatedAt, &pkg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	pkg.Items = items
	return pkg, nil
}

func (r *packageRepo) List(ctx context.Context, limit, offset int) ([]*models.WarrantyPackage, error) {
	query := `
		SELECT id, name, description, duration_months, max_odometer_km, dealer_cost, retail_price, status, created_by, created_at, updated_at
		FROM warranty_packages
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packages []*models.WarrantyPackage
	for rows.Next() {
		pkg := &models.WarrantyPackage{}
		if err := rows.Scan(&pkg.ID, &pkg.Name, &pkg.Description, &pkg.DurationMonths, &pkg.MaxOdometerKm, &pkg.DealerCost, &pkg.RetailPrice, &pkg.Status, &pkg.CreatedBy, &pkg.CreatedAt, &pkg.UpdatedAt); err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

func (r *packageRepo) Update(ctx context.Context, pkg *models.WarrantyPackage) error {
	query := `
		UPDATE warranty_packages
		SET name = $1, description = $2, duration_months = $3, max_odometer_km = $4, dealer_cost = $5, retail_price = $6, status = $7, updated_at = NOW()
		WHERE id = $8
	`
	_, err := r.db.Exec(ctx, query, pkg.Name, pkg.Description, pkg.DurationMonths, pkg.MaxOdometerKm, pkg.DealerCost, pkg.RetailPrice, pkg.Status, pkg.ID)
	return err
}

func (r *packageRepo) ReplaceItems(ctx context.Context, packageID uuid.UUID, items []*models.PackageItem) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM package_items WHERE package_id = $1`, packageID); err != nil {
		return err
	}
	return r.insertItems(ctx, packageID, items)
}

func (r *packageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM warranty_packages WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

func (r *packageRepo) insertItems(ctx context.Context, packageID uuid.UUID, items []*models.PackageItem) error {
	query := `
		INSERT INTO package_items (id, package_id, name, description, coverage_limit, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, item := range items {
		id := item.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := r.db.Exec(ctx, query, id, packageID, item.Name, item.Description, item.CoverageLimit, i); err != nil {
			return err
		}
	}
	return nil
}

func (r *packageRepo) listItems(ctx context.Context, packageID uuid.UUID) ([]*models.PackageItem, error) {
	query := `
		SELECT id, package_id, name, description, coverage_limit, position
		FROM package_items
		WHERE package_id = $1
		ORDER BY position
	`
	rows, err := r.db.Query(ctx, query, packageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.PackageItem
	for rows.Next() {
		item := &models.PackageItem{}
		if err := rows.Scan(&item.ID, &item.PackageID, &item.Name, &item.Description, &item.CoverageLimit, &item.Position); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
