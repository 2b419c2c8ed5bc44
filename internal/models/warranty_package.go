package models

import (
	"time"

	"github.com/google/uuid"
)

// PackageStatus represents the catalog state of a warranty package
type PackageStatus string

const (
	PackageStatusActive  PackageStatus = "active"
	PackageStatusRetired PackageStatus = "retired"
)

// WarrantyPackage is a catalog entry. The master database holds the
// authoritative row; every dealer assigned the package holds a copy under
// the same id. Name, description, term and status are shared fields
// maintained from the master; DealerCost and RetailPrice are dealer-local
// and survive catalog pushes untouched.
type WarrantyPackage struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	Description    *string    `json:"description" db:"description"`
	DurationMonths int        `json:"duration_months" db:"duration_months"`
	MaxOdometerKm  *int       `json:"max_odometer_km" db:"max_odometer_km"`
	DealerCost     float64    `json:"dealer_cost" db:"dealer_cost"`
	RetailPrice    float64    `json:"retail_price" db:"retail_price"`
	Status         string     `json:"status" db:"status"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty" db:"created_by"` // master column only
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`

	Items []*PackageItem `json:"items,omitempty" db:"-"`
}

// PackageItem is a single line of coverage inside a package. Items have no
// independent lifecycle: catalog pushes replace a dealer's item list
// wholesale, and only when the caller supplied a new list.
type PackageItem struct {
	ID            uuid.UUID `json:"id" db:"id"`
	PackageID     uuid.UUID `json:"package_id" db:"package_id"`
	Name          string    `json:"name" db:"name"`
	Description   *string   `json:"description" db:"description"`
	CoverageLimit *float64  `json:"coverage_limit" db:"coverage_limit"`
	Position      int       `json:"position" db:"position"`
}
