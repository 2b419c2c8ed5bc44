package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"warrantyhub/internal/config"
	"warrantyhub/internal/logger"
	"warrantyhub/internal/metrics"
	"warrantyhub/internal/models"
	"warrantyhub/internal/repositories"
	"warrantyhub/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Handle is a live, pooled connection to one database. *pgxpool.Pool
// satisfies it, and every Handle satisfies repositories.Database, so
// repositories can be constructed over master and tenant handles alike.
type Handle interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Opener dials one database. It must return a probed, healthy handle;
// database.NewPool satisfies this contract.
type Opener func(ctx context.Context, dsn string) (Handle, error)

func defaultOpener(db config.DBConfig) Opener {
	settings := database.PoolSettings{
		MaxConns:        int32(db.MaxConns),
		MinConns:        int32(db.MinConns),
		ConnMaxLifetime: db.ConnMaxLifetime,
	}
	return func(ctx context.Context, dsn string) (Handle, error) {
		return database.NewPool(ctx, dsn, settings)
	}
}

// Registry caches one pooled handle per dealer database. Handles are probed
// before reuse and evicted on failure, so a broken handle costs one failed
// probe, not a failed request.
type Registry struct {
	db       config.DBConfig
	cfg      config.RegistryConfig
	master   Handle
	mappings repositories.MappingRepository
	open     Opener

	group singleflight.Group

	mu      sync.Mutex
	handles map[uuid.UUID]Handle
	closed  bool
}

// NewRegistry builds a registry over the master handle. A nil opener uses
// pgx pools bounded by the shared database settings.
func NewRegistry(master Handle, mappings repositories.MappingRepository, db config.DBConfig, cfg config.RegistryConfig, open Opener) *Registry {
	if open == nil {
		open = defaultOpener(db)
	}
	return &Registry{
		db:       db,
		cfg:      cfg,
		master:   master,
		mappings: mappings,
		open:     open,
		handles:  make(map[uuid.UUID]Handle),
	}
}

// Master returns the handle for the master database.
func (r *Registry) Master() Handle {
	return r.master
}

// Resolve returns a healthy handle for the dealer's database. A cached
// handle is probed before reuse; a failed probe evicts it and opens a fresh
// one within the same call. A dealer without an active mapping gets
// ErrTenantNotConfigured, a dealer whose database cannot be reached gets
// ErrTenantUnreachable. Both are terminal for the attempt.
func (r *Registry) Resolve(ctx context.Context, dealerID uuid.UUID) (Handle, error) {
	if h, ok := r.lookup(dealerID); ok {
		err := r.probe(ctx, h)
		if err == nil {
			metrics.TenantResolvesTotal.WithLabelValues("hit").Inc()
			return h, nil
		}
		logger.FromContext(ctx).Warn("tenant handle failed probe, reopening",
			zap.String("dealer_id", dealerID.String()),
			zap.Error(err))
		r.drop(dealerID, h)
	}

	v, err, _ := r.group.Do(dealerID.String(), func() (interface{}, error) {
		return r.connect(ctx, dealerID)
	})
	if err != nil {
		metrics.TenantResolvesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.TenantResolvesTotal.WithLabelValues("miss").Inc()
	return v.(Handle), nil
}

// connect runs inside the per-dealer singleflight. It detaches from the
// triggering request's cancellation because other callers may be waiting on
// the same flight.
func (r *Registry) connect(ctx context.Context, dealerID uuid.UUID) (Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	r.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	if r.cfg.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ResolveTimeout)
		defer cancel()
	}

	// A caller that lost the probe race may have repopulated the slot while
	// this one waited on the flight.
	if h, ok := r.lookup(dealerID); ok {
		return h, nil
	}

	mapping, err := r.mappings.GetByDealerID(ctx, dealerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: dealer %s", ErrTenantNotConfigured, dealerID)
	}
	if err != nil {
		return nil, fmt.Errorf("look up mapping for dealer %s: %w", dealerID, err)
	}
	if mapping.Status != string(models.MappingStatusActive) {
		return nil, fmt.Errorf("%w: mapping for dealer %s is %s", ErrTenantNotConfigured, dealerID, mapping.Status)
	}

	h, err := r.open(ctx, r.db.TenantDSN(mapping.DatabaseName))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrTenantUnreachable, mapping.DatabaseName, err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		h.Close()
		return nil, ErrRegistryClosed
	}
	r.handles[dealerID] = h
	r.mu.Unlock()

	metrics.TenantHandlesOpen.Inc()
	return h, nil
}

func (r *Registry) probe(ctx context.Context, h Handle) error {
	if r.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ProbeTimeout)
		defer cancel()
	}
	return h.Ping(ctx)
}

func (r *Registry) lookup(dealerID uuid.UUID) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[dealerID]
	return h, ok
}

// drop removes the handle only while it is still the cached one, so a racing
// resolve cannot close a fresh replacement.
func (r *Registry) drop(dealerID uuid.UUID, h Handle) {
	r.mu.Lock()
	cur, ok := r.handles[dealerID]
	if ok && cur == h {
		delete(r.handles, dealerID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	h.Close()
	metrics.TenantHandlesOpen.Dec()
	metrics.TenantEvictionsTotal.Inc()
}

// Evict closes and forgets the dealer's cached handle, if any. The next
// Resolve reopens it.
func (r *Registry) Evict(dealerID uuid.UUID) {
	if h, ok := r.lookup(dealerID); ok {
		r.drop(dealerID, h)
	}
}

// Sweep probes every cached handle and evicts the ones that fail. The
// background health job calls this; it returns the number evicted.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	snapshot := make(map[uuid.UUID]Handle, len(r.handles))
	for id, h := range r.handles {
		snapshot[id] = h
	}
	r.mu.Unlock()

	evicted := 0
	for id, h := range snapshot {
		if err := r.probe(ctx, h); err != nil {
			logger.FromContext(ctx).Warn("evicting unhealthy tenant handle",
				zap.String("dealer_id", id.String()),
				zap.Error(err))
			r.drop(id, h)
			evicted++
		}
	}
	return evicted
}

// Open reports how many tenant handles are currently cached.
func (r *Registry) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Shutdown closes every cached tenant handle and rejects further resolves.
// The master handle is owned by the caller and stays open. Idempotent.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	handles := r.handles
	r.handles = make(map[uuid.UUID]Handle)
	r.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, h := range handles {
		h := h
		g.Go(func() error {
			h.Close()
			metrics.TenantHandlesOpen.Dec()
			return nil
		})
	}
	return g.Wait()
}
