package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"warrantyhub/internal/caching"
	"warrantyhub/internal/common"
	"warrantyhub/internal/logger"
	"warrantyhub/internal/models"
	"warrantyhub/internal/repositories"
	"warrantyhub/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrDealerNotFound is returned when a dealer id has no master row.
var ErrDealerNotFound = errors.New("dealer not found")

// ErrDealerEmailTaken is returned when a new dealer's contact email is
// already used by another dealer or by a user account.
var ErrDealerEmailTaken = errors.New("email already in use")

const dealerCacheTTL = 15 * time.Minute

// DealerService manages dealer accounts. Creating a dealer provisions its
// isolated database synchronously; suspension disables the mapping so the
// registry stops handing out connections without destroying any data.
type DealerService interface {
	CreateDealer(ctx context.Context, dealer *models.Dealer) error
	GetDealer(ctx context.Context, id uuid.UUID) (*models.Dealer, error)
	ListDealers(ctx context.Context, limit, offset int) ([]*models.Dealer, error)
	SuspendDealer(ctx context.Context, id uuid.UUID) error
	ReactivateDealer(ctx context.Context, id uuid.UUID) error
}

type dealerService struct {
	dealers     repositories.DealerRepository
	users       repositories.UserRepository
	mappings    repositories.MappingRepository
	provisioner *tenancy.Provisioner
	registry    *tenancy.Registry
	cache       caching.CacheService
}

// NewDealerService creates a new DealerService instance
func NewDealerService(
	dealers repositories.DealerRepository,
	users repositories.UserRepository,
	mappings repositories.MappingRepository,
	provisioner *tenancy.Provisioner,
	registry *tenancy.Registry,
	cache caching.CacheService,
) DealerService {
	return &dealerService{
		dealers:     dealers,
		users:       users,
		mappings:    mappings,
		provisioner: provisioner,
		registry:    registry,
		cache:       cache,
	}
}

func validateDealer(dealer *models.Dealer) error {
	if err := common.ValidateRequiredString(dealer.Name, "name"); err != nil {
		return err
	}
	dealer.Email = strings.ToLower(strings.TrimSpace(dealer.Email))
	if _, err := mail.ParseAddress(dealer.Email); err != nil {
		return fmt.Errorf("invalid email address")
	}
	if err := common.SanitizeHTMLField(dealer.Address, "address"); err != nil {
		return err
	}
	return nil
}

// CreateDealer inserts the master dealer row and provisions the dealer's
// database in the same call. On provisioning failure the master row is
// compensated away and the aggregated error is returned, so a dealer
// either exists fully provisioned or not at all.
func (s *dealerService) CreateDealer(ctx context.Context, dealer *models.Dealer) error {
	if err := validateDealer(dealer); err != nil {
		return err
	}

	// The contact email doubles as a login hint, so it must be free
	// across both dealers and user accounts.
	taken, err := s.dealers.EmailExists(ctx, dealer.Email)
	if err != nil {
		return fmt.Errorf("failed to check dealer email: %w", err)
	}
	if !taken {
		taken, err = s.users.EmailExists(ctx, dealer.Email)
		if err != nil {
			return fmt.Errorf("failed to check user email: %w", err)
		}
	}
	if taken {
		return ErrDealerEmailTaken
	}

	if dealer.ID == uuid.Nil {
		dealer.ID = uuid.New()
	}
	dealer.Status = string(models.DealerStatusActive)
	if err := s.dealers.Create(ctx, dealer); err != nil {
		return fmt.Errorf("failed to create dealer: %w", err)
	}

	if err := s.provisioner.Provision(ctx, dealer); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("dealer created",
		zap.String("dealer_id", dealer.ID.String()),
		zap.String("name", dealer.Name))
	return nil
}

func (s *dealerService) GetDealer(ctx context.Context, id uuid.UUID) (*models.Dealer, error) {
	if cached, err := s.cache.GetDealer(ctx, id); err == nil && cached != nil {
		return cached, nil
	}
	dealer, err := s.dealers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDealerNotFound
		}
		return nil, fmt.Errorf("failed to get dealer: %w", err)
	}
	if err := s.cache.SetDealer(ctx, dealer, dealerCacheTTL); err != nil {
		logger.FromContext(ctx).Warn("dealer cache write failed", zap.Error(err))
	}
	return dealer, nil
}

func (s *dealerService) ListDealers(ctx context.Context, limit, offset int) ([]*models.Dealer, error) {
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return nil, err
	}
	dealers, err := s.dealers.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list dealers: %w", err)
	}
	return dealers, nil
}

// SuspendDealer disables the dealer's mapping and evicts any cached
// connection. Subsequent resolves fail as not configured; the database and
// its data stay untouched for reactivation.
func (s *dealerService) SuspendDealer(ctx context.Context, id uuid.UUID) error {
	dealer, err := s.dealers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDealerNotFound
		}
		return fmt.Errorf("failed to load dealer: %w", err)
	}
	if dealer.Status == string(models.DealerStatusSuspended) {
		return nil
	}

	dealer.Status = string(models.DealerStatusSuspended)
	if err := s.dealers.Update(ctx, dealer); err != nil {
		return fmt.Errorf("failed to suspend dealer: %w", err)
	}
	if err := s.mappings.UpdateStatus(ctx, id, string(models.MappingStatusDisabled)); err != nil {
		return fmt.Errorf("failed to disable dealer mapping: %w", err)
	}
	s.registry.Evict(id)
	if err := s.cache.DeleteDealer(ctx, id); err != nil {
		logger.FromContext(ctx).Warn("dealer cache invalidation failed", zap.Error(err))
	}
	logger.FromContext(ctx).Info("dealer suspended", zap.String("dealer_id", id.String()))
	return nil
}

func (s *dealerService) ReactivateDealer(ctx context.Context, id uuid.UUID) error {
	dealer, err := s.dealers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDealerNotFound
		}
		return fmt.Errorf("failed to load dealer: %w", err)
	}
	if dealer.Status == string(models.DealerStatusActive) {
		return nil
	}
	if dealer.ProvisionedAt == nil {
		return fmt.Errorf("dealer %s was never provisioned", id)
	}

	dealer.Status = string(models.DealerStatusActive)
	if err := s.dealers.Update(ctx, dealer); err != nil {
		return fmt.Errorf("failed to reactivate dealer: %w", err)
	}
	if err := s.mappings.UpdateStatus(ctx, id, string(models.MappingStatusActive)); err != nil {
		return fmt.Errorf("failed to enable dealer mapping: %w", err)
	}
	if err := s.cache.DeleteDealer(ctx, id); err != nil {
		logger.FromContext(ctx).Warn("dealer cache invalidation failed", zap.Error(err))
	}
	logger.FromContext(ctx).Info("dealer reactivated", zap.String("dealer_id", id.String()))
	return nil
}
