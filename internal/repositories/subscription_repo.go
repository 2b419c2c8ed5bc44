package repositories

import (
	"context"

	"warrantyhub/internal/models"

	"github.com/google/uuid"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *models.Subscription) error
	GetActiveByDealer(ctx context.Context, dealerID uuid.UUID) (*models.Subscription, error)
	ListByDealer(ctx context.Context, dealerID uuid.UUID) ([]*models.Subscription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type subscriptionRepo struct {
	db Database
}

func NewSubscriptionRepo(db Database) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

func (r *subscriptionRepo) Create(ctx context.Context, subscription *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, dealer_id, plan_name, amount, currency, status, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, subscription.ID, subscription.DealerID, subscription.PlanName, subscription.Amount, subscription.Currency, subscription.Status, subscription.StartDate, subscription.EndDate)
	return err
}

func (r *subscriptionRepo) GetActiveByDealer(ctx context.Context, dealerID uuid.UUID) (*models.Subscription, error) {
	subscription := &models.Subscription{}
	query := `
		SELECT id, dealer_id, plan_name, amount, currency, status, start_date, end_date, created_at, updated_at
		FROM subscriptions
		WHERE dealer_id = $1 AND status = 'active'
		ORDER BY start_date DESC
		LIMIT 1
	`
	err := r.db.QueryRow(ctx, query, dealerID).Scan(&subscription.ID, &subscription.DealerID, &subscription.PlanName, &subscription.Amount, &subscription.Currency, &subscription.Status, &subscription.StartDate, &subscription.EndDate, &subscription.CreatedAt, &subscription.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

func (r *subscriptionRepo) ListByDealer(ctx context.Context, dealerID uuid.UUID) ([]*models.Subscription, error) {
	query := `
		SELECT id, dealer_id, plan_name, amount, currency, status, start_date, end_date, created_at, updated_at
		FROM subscriptions
		WHERE dealer_id = $1
		ORDER BY start_date DESC
	`
	rows, err := r.db.Query(ctx, query, dealerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscriptions []*models.Subscription
	for rows.Next() {
		subscription := &models.Subscription{}
		if err := rows.Scan(&subscription.ID, &subscription.DealerID, &subscription.PlanName, &subscription.Amount, &subscription.Currency, &subscription.Status, &subscription.StartDate, &subscription.EndDate, &subscription.CreatedAt, &subscription.UpdatedAt); err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, rows.Err()
}

func (r *subscriptionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `
		UPDATE subscriptions
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`
	_, err := r.db.Exec(ctx, query, status, id)
	return err
}
