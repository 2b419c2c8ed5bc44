package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"warrantyhub/internal/common"
	"warrantyhub/internal/models"
	"warrantyhub/internal/repositories"
	"warrantyhub/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrVehicleNotFound is returned when a vehicle id has no row in the
// routed partition.
var ErrVehicleNotFound = errors.New("vehicle not found")

// VehicleService manages the vehicles a warranty can be sold against.
// Vehicles live next to their customer, in whichever partition owns the
// customer.
type VehicleService interface {
	CreateVehicle(ctx context.Context, d tenancy.Decision, vehicle *models.Vehicle) error
	GetVehicle(ctx context.Context, d tenancy.Decision, id uuid.UUID) (*models.Vehicle, error)
	ListByCustomer(ctx context.Context, d tenancy.Decision, customerID uuid.UUID) ([]*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, d tenancy.Decision, vehicle *models.Vehicle) error
	DeleteVehicle(ctx context.Context, d tenancy.Decision, id uuid.UUID) error
}

type vehicleService struct {
	registry *tenancy.Registry
}

// NewVehicleService creates a new VehicleService instance
func NewVehicleService(registry *tenancy.Registry) VehicleService {
	return &vehicleService{registry: registry}
}

func validateVehicle(vehicle *models.Vehicle) error {
	if vehicle.CustomerID == uuid.Nil {
		return fmt.Errorf("customer_id is required")
	}
	if err := common.ValidateVIN(vehicle.VIN, "vin"); err != nil {
		return err
	}
	if err := common.ValidateRequiredString(vehicle.Make, "make"); err != nil {
		return err
	}
	if err := common.ValidateRequiredString(vehicle.Model, "model"); err != nil {
		return err
	}
	if err := common.ValidateModelYear(vehicle.Year, "year"); err != nil {
		return err
	}
	if vehicle.OdometerKm != nil && *vehicle.OdometerKm < 0 {
		return fmt.Errorf("odometer_km cannot be negative")
	}
	return nil
}

func (s *vehicleService) CreateVehicle(ctx context.Context, d tenancy.Decision, vehicle *models.Vehicle) error {
	if err := validateVehicle(vehicle); err != nil {
		return err
	}
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return err
	}
	if _, err := repositories.NewCustomerRepo(h).GetByID(ctx, vehicle.CustomerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("failed to load customer: %w", err)
	}
	if vehicle.ID == uuid.Nil {
		vehicle.ID = uuid.New()
	}
	vehicle.DealerID = d.Owner()
	vehicle.VIN = strings.ToUpper(strings.TrimSpace(vehicle.VIN))
	if err := repositories.NewVehicleRepo(h).Create(ctx, vehicle); err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}
	return nil
}

func (s *vehicleService) GetVehicle(ctx context.Context, d tenancy.Decision, id uuid.UUID) (*models.Vehicle, error) {
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return nil, err
	}
	vehicle, err := repositories.NewVehicleRepo(h).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVehicleNotFound
		}
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	return vehicle, nil
}

func (s *vehicleService) ListByCustomer(ctx context.Context, d tenancy.Decision, customerID uuid.UUID) ([]*models.Vehicle, error) {
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return nil, err
	}
	vehicles, err := repositories.NewVehicleRepo(h).ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	return vehicles, nil
}

func (s *vehicleService) UpdateVehicle(ctx context.Context, d tenancy.Decision, vehicle *models.Vehicle) error {
	if err := validateVehicle(vehicle); err != nil {
		return err
	}
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return err
	}
	repo := repositories.NewVehicleRepo(h)
	current, err := repo.GetByID(ctx, vehicle.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVehicleNotFound
		}
		return fmt.Errorf("failed to load vehicle: %w", err)
	}
	if current.CustomerID != vehicle.CustomerID {
		return fmt.Errorf("vehicle cannot change owner")
	}
	vehicle.VIN = strings.ToUpper(strings.TrimSpace(vehicle.VIN))
	if err := repo.Update(ctx, vehicle); err != nil {
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	return nil
}

func (s *vehicleService) DeleteVehicle(ctx context.Context, d tenancy.Decision, id uuid.UUID) error {
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return err
	}
	if err := repositories.NewVehicleRepo(h).Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	return nil
}
