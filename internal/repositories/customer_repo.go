package repositories

import (
	"context"

	"warrantyhub/internal/models"

	"github.com/google/uuid"
)

type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	Update(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListRecent(ctx context.Context) ([]*models.Customer, error)
	FindByContact(ctx context.Context, email, phone string) (*models.Customer, error)
	FindUnassignedByContact(ctx context.Context, email, phone string) (*models.Customer, error)
}

type customerRepo struct {
	db Database
}

func NewCustomerRepo(db Database) CustomerRepository {
	return &customerRepo{db: db}
}

func (r *customerRepo) Create(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (id, dealer_id, account_manager_id, first_name, last_name, email, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, customer.ID, customer.DealerID, customer.AccountManagerID, customer.FirstName, customer.LastName, customer.Email, customer.Phone, customer.Address)
	return err
}

func (r *customerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	customer := &models.Customer{}
	query := `
		SELECT id, dealer_id, account_manager_id, first_name, last_name, email, phone, address, created_at, updated_at
		FROM customers
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&customer.ID, &customer.DealerID, &customer.AccountManagerID, &customer.FirstName, &customer.LastName, &customer.Email, &customer.Phone, &customer.Address, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return customer, nil
}

func (r *customerRepo) Update(ctx context.Context, customer *models.Customer) error {
	query := `
		UPDATE customers
		SET account_manager_id = $1, first_name = $2, last_name = $3, email = $4, phone = $5, address = $6, updated_at = NOW()
		WHERE id = $7
	`
	_, err := r.db.Exec(ctx, query, customer.AccountManagerID, customer.FirstName, customer.LastName, customer.Email, customer.Phone, customer.Address, customer.ID)
	return err
}

func (r *customerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM customers WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// ListRecent returns every customer in this partition, newest first. The
// caller merges, filters and pages across partitions; per-partition
// pagination would break the merged ordering.
func (r *customerRepo) ListRecent(ctx context.Context) ([]*models.Customer, error) {
	query := `
		SELECT id, dealer_id, account_manager_id, first_name, last_name, email, phone, address, created_at, updated_at
		FROM customers
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		customer := &models.Customer{}
		if err := rows.Scan(&customer.ID, &customer.DealerID, &customer.AccountManagerID, &customer.FirstName, &customer.LastName, &customer.Email, &customer.Phone, &customer.Address, &customer.CreatedAt, &customer.UpdatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}

// FindByContact returns the oldest customer matching the given email or
// phone, or pgx.ErrNoRows when this partition has none.
func (r *customerRepo) FindByContact(ctx context.Context, email, phone string) (*models.Customer, error) {
	query := `
		SELECT id, dealer_id, account_manager_id, first_name, last_name, email, phone, address, created_at, updated_at
		FROM customers
		WHERE ($1 <> '' AND email = $1) OR ($2 <> '' AND phone = $2)
		ORDER BY created_at
		LIMIT 1
	`
	return r.findOne(ctx, query, email, phone)
}

// FindUnassignedByContact is the master-partition probe: it only considers
// customers not attached to any dealer.
func (r *customerRepo) FindUnassignedByContact(ctx context.Context, email, phone string) (*models.Customer, error) {
	query := `
		SELECT id, dealer_id, account_manager_id, first_name, last_name, email, phone, address, created_at, updated_at
		FROM customers
		WHERE dealer_id IS NULL AND (($1 <> '' AND email = $1) OR ($2 <> '' AND phone = $2))
		ORDER BY created_at
		LIMIT 1
	`
	return r.findOne(ctx, query, email, phone)
}

func (r *customerRepo) findOne(ctx context.Context, query string, args ...any) (*models.Customer, error) {
	customer := &models.Customer{}
	err := r.db.QueryRow(ctx, query, args...).Scan(&customer.ID, &customer.DealerID, &customer.AccountManagerID, &customer.FirstName, &customer.LastName, &customer.Email, &customer.Phone, &customer.Address, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return customer, nil
}
