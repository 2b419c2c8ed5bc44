package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warrantyhub/internal/logger"
	"warrantyhub/internal/models"
	"warrantyhub/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNoActiveSubscription is returned when a dealer has no active
// subscription row.
var ErrNoActiveSubscription = errors.New("dealer has no active subscription")

// PlanConfig describes a billing plan for dealer accounts.
type PlanConfig struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Months   int     `json:"months"`
}

// availablePlans are the plans a dealer can renew onto. The free trial is
// created by provisioning and never renewed directly.
var availablePlans = map[string]PlanConfig{
	"standard": {
		Name:     "standard",
		Amount:   199.0,
		Currency: "USD",
		Months:   1,
	},
	"premium": {
		Name:     "premium",
		Amount:   499.0,
		Currency: "USD",
		Months:   1,
	},
	"annual": {
		Name:     "annual",
		Amount:   1990.0,
		Currency: "USD",
		Months:   12,
	},
}

// SubscriptionService manages dealer billing rows in the master database.
// Subscriptions gate nothing in the data plane yet; they are master-side
// bookkeeping created at provisioning and renewed by admins.
type SubscriptionService interface {
	ListByDealer(ctx context.Context, dealerID uuid.UUID) ([]*models.Subscription, error)
	GetActive(ctx context.Context, dealerID uuid.UUID) (*models.Subscription, error)
	Renew(ctx context.Context, dealerID uuid.UUID, planName string) (*models.Subscription, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	AvailablePlans() map[string]PlanConfig
}

type subscriptionService struct {
	subs    repositories.SubscriptionRepository
	dealers repositories.DealerRepository
}

// NewSubscriptionService creates a new SubscriptionService instance
func NewSubscriptionService(subs repositories.SubscriptionRepository, dealers repositories.DealerRepository) SubscriptionService {
	return &subscriptionService{
		subs:    subs,
		dealers: dealers,
	}
}

func (s *subscriptionService) ListByDealer(ctx context.Context, dealerID uuid.UUID) ([]*models.Subscription, error) {
	if _, err := s.dealers.GetByID(ctx, dealerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDealerNotFound
		}
		return nil, fmt.Errorf("failed to load dealer: %w", err)
	}
	subs, err := s.subs.ListByDealer(ctx, dealerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *subscriptionService) GetActive(ctx context.Context, dealerID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.subs.GetActiveByDealer(ctx, dealerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("failed to get active subscription: %w", err)
	}
	return sub, nil
}

// Renew closes the dealer's current subscription and opens a new one on
// the chosen plan, starting now.
func (s *subscriptionService) Renew(ctx context.Context, dealerID uuid.UUID, planName string) (*models.Subscription, error) {
	plan, ok := availablePlans[planName]
	if !ok {
		return nil, fmt.Errorf("unknown plan: %s", planName)
	}
	if _, err := s.dealers.GetByID(ctx, dealerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDealerNotFound
		}
		return nil, fmt.Errorf("failed to load dealer: %w", err)
	}

	current, err := s.subs.GetActiveByDealer(ctx, dealerID)
	if err == nil {
		if err := s.subs.UpdateStatus(ctx, current.ID, "expired"); err != nil {
			return nil, fmt.Errorf("failed to close current subscription: %w", err)
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check current subscription: %w", err)
	}

	now := time.Now().UTC()
	end := now.AddDate(0, plan.Months, 0)
	sub := &models.Subscription{
		ID:        uuid.New(),
		DealerID:  dealerID,
		PlanName:  plan.Name,
		Amount:    plan.Amount,
		Currency:  plan.Currency,
		Status:    "active",
		StartDate: now,
		EndDate:   &end,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	logger.FromContext(ctx).Info("subscription renewed",
		zap.String("dealer_id", dealerID.String()),
		zap.String("plan", plan.Name))
	return sub, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := s.subs.UpdateStatus(ctx, id, "cancelled"); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return nil
}

func (s *subscriptionService) AvailablePlans() map[string]PlanConfig {
	return availablePlans
}
