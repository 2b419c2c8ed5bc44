package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"warrantyhub/internal/logger"
	"warrantyhub/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheService fronts the master database for hot catalog and dealer reads.
// Only master-side rows are cached: tenant copies carry dealer-local pricing
// and are always read from their own database.
type CacheService interface {
	// Warranty package caching (master catalog)
	GetPackage(ctx context.Context, packageID uuid.UUID) (*models.WarrantyPackage, error)
	SetPackage(ctx context.Context, pkg *models.WarrantyPackage, ttl time.Duration) error
	DeletePackage(ctx context.Context, packageID uuid.UUID) error

	// Dealer caching
	GetDealer(ctx context.Context, dealerID uuid.UUID) (*models.Dealer, error)
	SetDealer(ctx context.Context, dealer *models.Dealer, ttl time.Duration) error
	DeleteDealer(ctx context.Context, dealerID uuid.UUID) error

	// Cache invalidation
	InvalidateAll(ctx context.Context) error

	Close() error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port and rediss://host:port forms as well.
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		logger.L().Warn("redis ping failed on initialization, continuing without warm cache",
			zap.String("addr", parsedAddr),
			zap.Error(pingErr))
	}

	return &redisCacheService{client: client}
}

func (r *redisCacheService) GetPackage(ctx context.Context, packageID uuid.UUID) (*models.WarrantyPackage, error) {
	key := fmt.Sprintf("warrantyhub:package:%s", packageID.String())
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var pkg models.WarrantyPackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *redisCacheService) SetPackage(ctx context.Context, pkg *models.WarrantyPackage, ttl time.Duration) error {
	key := fmt.Sprintf("warrantyhub:package:%s", pkg.ID.String())
	data, err := json.Marshal(pkg)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCacheService) DeletePackage(ctx context.Context, packageID uuid.UUID) error {
	key := fmt.Sprintf("warrantyhub:package:%s", packageID.String())
	return r.client.Del(ctx, key).Err()
}

func (r *redisCacheService) GetDealer(ctx context.Context, dealerID uuid.UUID) (*models.Dealer, error) {
	key := fmt.Sprintf("warrantyhub:dealer:%s", dealerID.String())
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var dealer models.Dealer
	if err := json.Unmarshal(data, &dealer); err != nil {
		return nil, err
	}
	return &dealer, nil
}

func (r *redisCacheService) SetDealer(ctx context.Context, dealer *models.Dealer, ttl time.Duration) error {
	key := fmt.Sprintf("warrantyhub:dealer:%s", dealer.ID.String())
	data, err := json.Marshal(dealer)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCacheService) DeleteDealer(ctx context.Context, dealerID uuid.UUID) error {
	key := fmt.Sprintf("warrantyhub:dealer:%s", dealerID.String())
	return r.client.Del(ctx, key).Err()
}

func (r *redisCacheService) InvalidateAll(ctx context.Context) error {
	pattern := "warrantyhub:*"
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (r *redisCacheService) Close() error {
	return r.client.Close()
}
