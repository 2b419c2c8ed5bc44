package models

import (
	"time"

	"github.com/google/uuid"
)

// CustomerSearchFilter holds the filter criteria applied to directory
// listings after the per-dealer results have been merged. Filtering is
// deliberately done in memory: the per-database queries stay identical
// across dealers and the merged set is small.
type CustomerSearchFilter struct {
	Query    string     `json:"query,omitempty"`     // Substring match on name, email, phone
	DealerID *uuid.UUID `json:"dealer_id,omitempty"` // Restrict to a single dealer
	Limit    int        `json:"limit,omitempty"`     // Page size (default: 50)
	Offset   int        `json:"offset,omitempty"`    // Page offset
}

// Customer rows live in each dealer database, and in the master database
// for retail customers not yet attached to any dealer (DealerID nil).
// Cross-dealer views are assembled by fan-out.
type Customer struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	DealerID         *uuid.UUID `json:"dealer_id" db:"dealer_id"`
	AccountManagerID *uuid.UUID `json:"account_manager_id" db:"account_manager_id"`
	FirstName        string     `json:"first_name" db:"first_name"`
	LastName         string     `json:"last_name" db:"last_name"`
	Email            *string    `json:"email" db:"email"`
	Phone            *string    `json:"phone" db:"phone"`
	Address          *string    `json:"address" db:"address"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}
