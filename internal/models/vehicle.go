package models

import (
	"time"

	"github.com/google/uuid"
)

type Vehicle struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	DealerID   *uuid.UUID `json:"dealer_id" db:"dealer_id"`
	CustomerID uuid.UUID  `json:"customer_id" db:"customer_id"`
	VIN        string     `json:"vin" db:"vin"`
	Make       string     `json:"make" db:"make"`
	Model      string     `json:"model" db:"model"`
	Year       int        `json:"year" db:"year"`
	OdometerKm *int       `json:"odometer_km" db:"odometer_km"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}
