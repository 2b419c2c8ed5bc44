package models

import (
	"time"

	"github.com/google/uuid"
)

// MappingStatus represents the provisioning state of a dealer database
type MappingStatus string

const (
	MappingStatusActive   MappingStatus = "active"
	MappingStatusDisabled MappingStatus = "disabled"
)

// DealerDatabaseMapping records which physical database serves a dealer.
// It lives only in the master database and is written as the final step
// of provisioning, so a mapping row implies a fully built tenant.
type DealerDatabaseMapping struct {
	ID           uuid.UUID `json:"id" db:"id"`
	DealerID     uuid.UUID `json:"dealer_id" db:"dealer_id"`
	DatabaseName string    `json:"database_name" db:"database_name"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
