package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a master-only record. Platform operators have no dealer; dealer
// staff carry the dealer they belong to.
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	DealerID     *uuid.UUID `json:"dealer_id" db:"dealer_id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // Never serialize in JSON
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Role         string     `json:"role" db:"role"`
	Status       string     `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}
