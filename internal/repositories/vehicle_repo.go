package repositories

import (
	"context"

	"warrantyhub/internal/models"

	"github.com/google/uuid"
)

type VehicleRepository interface {
	Create(ctx context.Context, vehicle *models.Vehicle) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Vehicle, error)
	Update(ctx context.Context, vehicle *models.Vehicle) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type vehicleRepo struct {
	db Database
}

func NewVehicleRepo(db Database) VehicleRepository {
	return &vehicleRepo{db: db}
}

func (r *vehicleRepo) Create(ctx context.Context, vehicle *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (id, dealer_id, customer_id, vin, make, model, year, odometer_km, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, vehicle.ID, vehicle.DealerID, vehicle.CustomerID, vehicle.VIN, vehicle.Make, vehicle.Model, vehicle.Year, vehicle.OdometerKm)
	return err
}

func (r *vehicleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	vehicle := &models.Vehicle{}
	query := `
		SELECT id, dealer_id, customer_id, vin, make, model, year, odometer_km, created_at, updated_at
		FROM vehicles
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&vehicle.ID, &vehicle.DealerID, &vehicle.CustomerID, &vehicle.VIN, &vehicle.Make, &vehicle.Model, &vehicle.Year, &vehicle.OdometerKm, &vehicle.CreatedAt, &vehicle.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (r *vehicleRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Vehicle, error) {
	query := `
		SELECT id, dealer_id, customer_id, vin, make, model, year, odometer_km, created_at, updated_at
		FROM vehicles
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*models.Vehicle
	for rows.Next() {
		vehicle := &models.Vehicle{}
		if err := rows.Scan(&vehicle.ID, &vehicle.DealerID, &vehicle.CustomerID, &vehicle.VIN, &vehicle.Make, &vehicle.Model, &vehicle.Year, &vehicle.OdometerKm, &vehicle.CreatedAt, &vehicle.UpdatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, vehicle)
	}
	return vehicles, rows.Err()
}

func (r *vehicleRepo) Update(ctx context.Context, vehicle *models.Vehicle) error {
	query := `
		UPDATE vehicles
		SET vin = $1, make = $2, model = $3, year = $4, odometer_km = $5, updated_at = NOW()
		WHERE id = $6
	`
	_, err := r.db.Exec(ctx, query, vehicle.VIN, vehicle.Make, vehicle.Model, vehicle.Year, vehicle.OdometerKm, vehicle.ID)
	return err
}

func (r *vehicleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM vehicles WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
