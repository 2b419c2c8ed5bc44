package repositories

import (
	"context"

	"warrantyhub/internal/models"

	"github.com/google/uuid"
)

type MappingRepository interface {
	Create(ctx context.Context, mapping *models.DealerDatabaseMapping) error
	GetByDealerID(ctx context.Context, dealerID uuid.UUID) (*models.DealerDatabaseMapping, error)
	ListActive(ctx context.Context) ([]*models.DealerDatabaseMapping, error)
	UpdateStatus(ctx context.Context, dealerID uuid.UUID, status string) error
	DeleteByDealerID(ctx context.Context, dealerID uuid.UUID) error
}

type mappingRepo struct {
	db Database
}

func NewMappingRepo(db Database) MappingRepository {
	return &mappingRepo{db: db}
}

func (r *mappingRepo) Create(ctx context.Context, mapping *models.DealerDatabaseMapping) error {
	query := `
		INSERT INTO dealer_database_mappings (id, dealer_id, database_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, mapping.ID, mapping.DealerID, mapping.DatabaseName, mapping.Status)
	return err
}

func (r *mappingRepo) GetByDealerID(ctx context.Context, dealerID uuid.UUID) (*models.DealerDatabaseMapping, error) {
	mapping := &models.DealerDatabaseMapping{}
	query := `
		SELECT id, dealer_id, database_name, status, created_at, updated_at
		FROM dealer_database_mappings
		WHERE dealer_id = $1
	`
	err := r.db.QueryRow(ctx, query, dealerID).Scan(&mapping.ID, &mapping.DealerID, &mapping.DatabaseName, &mapping.Status, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return mapping, nil
}

func (r *mappingRepo) ListActive(ctx context.Context) ([]*models.DealerDatabaseMapping, error) {
	query := `
		SELECT m.id, m.dealer_id, m.database_name, m.status, m.created_at, m.updated_at
		FROM dealer_database_mappings m
		JOIN dealers d ON d.id = m.dealer_id
		WHERE m.status = 'active' AND d.status = 'active'
		ORDER BY m.created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []*models.DealerDatabaseMapping
	for rows.Next() {
		mapping := &models.DealerDatabaseMapping{}
		if err := rows.Scan(&mapping.ID, &mapping.DealerID, &mapping.DatabaseName, &mapping.Status, &mapping.CreatedAt, &mapping.UpdatedAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, mapping)
	}
	return mappings, rows.Err()
}

func (r *mappingRepo) UpdateStatus(ctx context.Context, dealerID uuid.UUID, status string) error {
	query := `
		UPDATE dealer_database_mappings
		SET status = $1, updated_at = NOW()
		WHERE dealer_id = $2
	`
	_, err := r.db.Exec(ctx, query, status, dealerID)
	return err
}

func (r *mappingRepo) DeleteByDealerID(ctx context.Context, dealerID uuid.UUID) error {
	query := `DELETE FROM dealer_database_mappings WHERE dealer_id = $1`
	_, err := r.db.Exec(ctx, query, dealerID)
	return err
}
