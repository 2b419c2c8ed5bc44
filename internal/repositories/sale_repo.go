package repositories

import (
	"context"

	"warrantyhub/internal/models"

	"github.com/google/uuid"
)

type SaleRepository interface {
	Create(ctx context.Context, sale *models.WarrantySale) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WarrantySale, error)
	ListRecent(ctx context.Context) ([]*models.WarrantySale, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.WarrantySale, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type saleRepo struct {
	db Database
}

func NewSaleRepo(db Database) SaleRepository {
	return &saleRepo{db: db}
}

func (r *saleRepo) Create(ctx context.Context, sale *models.WarrantySale) error {
	query := `
		INSERT INTO warranty_sales (id, dealer_id, customer_id, vehicle_id, package_id, sold_by_user_id, sale_price, status, sold_at, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, sale.ID, sale.DealerID, sale.CustomerID, sale.VehicleID, sale.PackageID, sale.SoldByUserID, sale.SalePrice, sale.Status, sale.SoldAt, sale.ExpiresAt)
	return err
}

func (r *saleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WarrantySale, error) {
	sale := &models.WarrantySale{}
	query := `
		SELECT id, dealer_id, customer_id, vehicle_id, package_id, sold_by_user_id, sale_price, status, sold_at, expires_at, created_at, updated_at
		FROM warranty_sales
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&sale.ID, &sale.DealerID, &sale.CustomerID, &sale.VehicleID, &sale.PackageID, &sale.SoldByUserID, &sale.SalePrice, &sale.Status, &sale.SoldAt, &sale.ExpiresAt, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// ListRecent returns every sale in this partition, newest first; merged
// ordering and pagination happen above the fan-out.
func (r *saleRepo) ListRecent(ctx context.Context) ([]*models.WarrantySale, error) {
	query := `
		SELECT id, dealer_id, customer_id, vehicle_id, package_id, sold_by_user_id, sale_price, status, sold_at, expires_at, created_at, updated_at
		FROM warranty_sales
		ORDER BY sold_at DESC
	`
	return r.list(ctx, query)
}

func (r *saleRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.WarrantySale, error) {
	query := `
		SELECT id, dealer_id, customer_id, vehicle_id, package_id, sold_by_user_id, sale_price, status, sold_at, expires_at, created_at, updated_at
		FROM warranty_sales
		WHERE customer_id = $1
		ORDER BY sold_at DESC
	`
	return r.list(ctx, query, customerID)
}

func (r *saleRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `
		UPDATE warranty_sales
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`
	_, err := r.db.Exec(ctx, query, status, id)
	return err
}

func (r *saleRepo) list(ctx context.Context, query string, args ...any) ([]*models.WarrantySale, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []*models.WarrantySale
	for rows.Next() {
		sale := &models.WarrantySale{}
		if err := rows.Scan(&sale.ID, &sale.DealerID, &sale.CustomerID, &sale.VehicleID, &sale.PackageID, &sale.SoldByUserID, &sale.SalePrice, &sale.Status, &sale.SoldAt, &sale.ExpiresAt, &sale.CreatedAt, &sale.UpdatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}
