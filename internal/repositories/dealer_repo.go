package repositories

import (
	"context"
	"time"

	"warrantyhub/internal/models"

	"github.com/google/uuid"
)

type DealerRepository interface {
	Create(ctx context.Context, dealer *models.Dealer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dealer, error)
	GetByEmail(ctx context.Context, email string) (*models.Dealer, error)
	List(ctx context.Context, limit, offset int) ([]*models.Dealer, error)
	Update(ctx context.Context, dealer *models.Dealer) error
	SetProvisioned(ctx context.Context, id uuid.UUID, databaseName string, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	EmailExists(ctx context.Context, email string) (bool, error)
}

type dealerRepo struct {
	db Database
}

func NewDealerRepo(db Database) DealerRepository {
	return &dealerRepo{db: db}
}

// Create inserts the dealer's business-identity fields. The same insert
// seeds the denormalized copy into a freshly provisioned dealer database:
// the provisioning columns stay empty there.
func (r *dealerRepo) Create(ctx context.Context, dealer *models.Dealer) error {
	query := `
		INSERT INTO dealers (id, name, legal_name, email, phone, address, license_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, dealer.ID, dealer.Name, dealer.LegalName, dealer.Email, dealer.Phone, dealer.Address, dealer.LicenseNumber, dealer.Status)
	return err
}

func (r *dealerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dealer, error) {
	dealer := &models.Dealer{}
	query := `
		SELECT id, name, legal_name, email, phone, address, license_number, status, database_name, provisioned_at, created_at, updated_at
		FROM dealers
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&dealer.ID, &dealer.Name, &dealer.LegalName, &dealer.Email, &dealer.Phone, &dealer.Address, &dealer.LicenseNumber, &dealer.Status, &dealer.DatabaseName, &dealer.ProvisionedAt, &dealer.CreatedAt, &dealer.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return dealer, nil
}

func (r *dealerRepo) GetByEmail(ctx context.Context, email string) (*models.Dealer, error) {
	dealer := &models.Dealer{}
	query := `
		SELECT id, name, legal_name, email, phone, address, license_number, status, database_name, provisioned_at, created_at, updated_at
		FROM dealers
		WHERE email = $1
	`
	err := r.db.QueryRow(ctx, query, email).Scan(&dealer.ID, &dealer.Name, &dealer.LegalName, &dealer.Email, &dealer.Phone, &dealer.Address, &dealer.LicenseNumber, &dealer.Status, &dealer.DatabaseName, &dealer.ProvisionedAt, &dealer.CreatedAt, &dealer.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return dealer, nil
}

func (r *dealerRepo) List(ctx context.Context, limit, offset int) ([]*models.Dealer, error) {
	query := `
		SELECT id, name, legal_name, email, phone, address, license_number, status, database_name, provisioned_at, created_at, updated_at
		FROM dealers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dealers []*models.Dealer
	for rows.Next() {
		dealer := &models.Dealer{}
		if err := rows.Scan(&dealer.ID, &dealer.Name, &dealer.LegalName, &dealer.Email, &dealer.Phone, &dealer.Address, &dealer.LicenseNumber, &dealer.Status, &dealer.DatabaseName, &dealer.ProvisionedAt, &dealer.CreatedAt, &dealer.UpdatedAt); err != nil {
			return nil, err
		}
		dealers = append(dealers, dealer)
	}
	return dealers, rows.Err()
}

func (r *dealerRepo) Update(ctx context.Context, dealer *models.Dealer) error {
	query := `
		UPDATE dealers
		SET name = $1, legal_name = $2, email = $3, phone = $4, address = $5, license_number = $6, status = $7, updated_at = NOW()
		WHERE id = $8
	`
	_, err := r.db.Exec(ctx, query, dealer.Name, dealer.LegalName, dealer.Email, dealer.Phone, dealer.Address, dealer.LicenseNumber, dealer.Status, dealer.ID)
	return err
}

func (r *dealerRepo) SetProvisioned(ctx context.Context, id uuid.UUID, databaseName string, at time.Time) error {
	query := `
		UPDATE dealers
		SET database_name = $1, provisioned_at = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.Exec(ctx, query, databaseName, at, id)
	return err
}

func (r *dealerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM dealers WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

func (r *dealerRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM dealers WHERE email = $1)`
	err := r.db.QueryRow(ctx, query, email).Scan(&exists)
	return exists, err
}
