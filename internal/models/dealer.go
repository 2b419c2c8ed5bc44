package models

import (
	"time"

	"github.com/google/uuid"
)

// DealerStatus represents the lifecycle state of a dealer account
type DealerStatus string

const (
	DealerStatusActive    DealerStatus = "active"
	DealerStatusSuspended DealerStatus = "suspended"
	DealerStatusClosed    DealerStatus = "closed"
)

// Dealer is the master record for a dealership. A denormalized copy is
// seeded into the dealer's own database during provisioning so tenant-side
// queries never have to reach back into the master.
type Dealer struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	LegalName     *string    `json:"legal_name" db:"legal_name"`
	Email         string     `json:"email" db:"email"`
	Phone         *string    `json:"phone" db:"phone"`
	Address       *string    `json:"address" db:"address"`
	LicenseNumber *string    `json:"license_number" db:"license_number"`
	Status        string     `json:"status" db:"status"`
	DatabaseName  *string    `json:"database_name,omitempty" db:"database_name"`
	ProvisionedAt *time.Time `json:"provisioned_at,omitempty" db:"provisioned_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
