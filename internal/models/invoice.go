package models

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus represents the payment state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice bills a customer for a warranty sale. Dealer invoices live in
// the dealer's own database, retail invoices in the master.
type Invoice struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	DealerID      *uuid.UUID `json:"dealer_id" db:"dealer_id"`
	SaleID        uuid.UUID  `json:"sale_id" db:"sale_id"`
	InvoiceNumber string     `json:"invoice_number" db:"invoice_number"`
	TotalAmount   float64    `json:"total_amount" db:"total_amount"`
	Status        string     `json:"status" db:"status"`
	IssuedDate    time.Time  `json:"issued_date" db:"issued_date"`
	DueDate       time.Time  `json:"due_date" db:"due_date"`
	PaidDate      *time.Time `json:"paid_date" db:"paid_date"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
