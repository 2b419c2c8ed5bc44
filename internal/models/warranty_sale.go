package models

import (
	"time"

	"github.com/google/uuid"
)

// SaleStatus represents the lifecycle of a sold warranty
type SaleStatus string

const (
	SaleStatusActive    SaleStatus = "active"
	SaleStatusExpired   SaleStatus = "expired"
	SaleStatusCancelled SaleStatus = "cancelled"
)

// SaleSearchFilter holds the filter criteria applied to merged sale
// listings. Like the customer directory, filtering and paging happen in
// memory after the fan-out.
type SaleSearchFilter struct {
	Status    *string    `json:"status,omitempty"`     // Sale status filter
	PackageID *uuid.UUID `json:"package_id,omitempty"` // Restrict to one package
	DealerID  *uuid.UUID `json:"dealer_id,omitempty"`  // Restrict to one dealer
	SoldFrom  *time.Time `json:"sold_from,omitempty"`  // Sold on or after
	SoldTo    *time.Time `json:"sold_to,omitempty"`    // Sold on or before
	Limit     int        `json:"limit,omitempty"`      // Page size (default: 50)
	Offset    int        `json:"offset,omitempty"`     // Page offset
}

// WarrantySale records a warranty contract sold to a customer. Dealer
// sales live in the dealer's own database; direct retail sales live in
// the master with no dealer attached.
type WarrantySale struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	DealerID     *uuid.UUID `json:"dealer_id" db:"dealer_id"`
	CustomerID   uuid.UUID  `json:"customer_id" db:"customer_id"`
	VehicleID    uuid.UUID  `json:"vehicle_id" db:"vehicle_id"`
	PackageID    uuid.UUID  `json:"package_id" db:"package_id"`
	SoldByUserID *uuid.UUID `json:"sold_by_user_id" db:"sold_by_user_id"`
	SalePrice    float64    `json:"sale_price" db:"sale_price"`
	Status       string     `json:"status" db:"status"`
	SoldAt       time.Time  `json:"sold_at" db:"sold_at"`
	ExpiresAt    *time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}
