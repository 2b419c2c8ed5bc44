package tenancy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warrantyhub/internal/config"
	"warrantyhub/internal/logger"
	"warrantyhub/internal/metrics"
	"warrantyhub/internal/models"
	"warrantyhub/internal/repositories"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const (
	tenantDatabasePrefix = "wh_tenant_"

	trialPlanName = "trial"
	trialDays     = 30
)

// TenantDatabaseName derives the physical database name for a dealer. The
// name is deterministic, so re-running a failed attempt collides on the
// existing database instead of leaking a second one.
func TenantDatabaseName(dealerID uuid.UUID) string {
	return tenantDatabasePrefix + strings.ReplaceAll(dealerID.String(), "-", "")
}

// ProvisioningError aggregates the step failure with any rollback failures
// from the same attempt.
type ProvisioningError struct {
	DealerID uuid.UUID
	Errs     *multierror.Error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision dealer %s: %s", e.DealerID, e.Errs)
}

func (e *ProvisioningError) Unwrap() error { return e.Errs }

// Provisioner builds a dealer's database: the physical CREATE DATABASE, the
// tenant schema, the seeded dealer row and the master-side bookkeeping that
// makes the tenant resolvable. Steps run synchronously and are never retried
// mid-flight; a failed attempt is compensated and reported as one error.
type Provisioner struct {
	admin    AdminChannel
	open     Opener
	db       config.DBConfig
	cfg      config.ProvisionerConfig
	dealers  repositories.DealerRepository
	mappings repositories.MappingRepository
	subs     repositories.SubscriptionRepository
	ddl      string
}

// NewProvisioner wires the provisioning saga. tenantDDL is the derived
// tenant schema applied to each fresh database. A nil opener uses pgx pools
// bounded by the shared database settings.
func NewProvisioner(admin AdminChannel, open Opener, db config.DBConfig, cfg config.ProvisionerConfig,
	dealers repositories.DealerRepository, mappings repositories.MappingRepository,
	subs repositories.SubscriptionRepository, tenantDDL []byte) *Provisioner {
	if open == nil {
		open = defaultOpener(db)
	}
	return &Provisioner{
		admin:    admin,
		open:     open,
		db:       db,
		cfg:      cfg,
		dealers:  dealers,
		mappings: mappings,
		subs:     subs,
		ddl:      string(tenantDDL),
	}
}

// Provision builds the tenant database for a freshly inserted dealer row.
// On success the dealer struct carries its database name and provisioning
// timestamp. On failure every completed master-side step is compensated
// best-effort, the dealer row is removed, and one aggregated
// ProvisioningError is returned. A created physical database is left in
// place unless DropOrphans is set; it is unreachable either way because no
// mapping row survives a failed run.
func (p *Provisioner) Provision(ctx context.Context, dealer *models.Dealer) error {
	name := TenantDatabaseName(dealer.ID)
	log := logger.FromContext(ctx).With(
		zap.String("dealer_id", dealer.ID.String()),
		zap.String("database", name),
	)

	dbCreated, err := p.build(ctx, dealer, name, log)
	if err == nil {
		metrics.ProvisionsTotal.WithLabelValues("ok").Inc()
		log.Info("tenant provisioned")
		return nil
	}

	log.Error("provisioning failed, rolling back", zap.Error(err))
	errs := multierror.Append(nil, err)
	errs = p.compensate(ctx, dealer, name, dbCreated, errs, log)
	metrics.ProvisionsTotal.WithLabelValues("error").Inc()
	return &ProvisioningError{DealerID: dealer.ID, Errs: errs}
}

func (p *Provisioner) build(ctx context.Context, dealer *models.Dealer, name string, log *zap.Logger) (bool, error) {
	stepCtx, cancel := p.step(ctx)
	exists, err := p.admin.DatabaseExists(stepCtx, name)
	cancel()
	if err != nil {
		return false, err
	}
	if exists {
		return false, fmt.Errorf("database %s already exists", name)
	}

	stepCtx, cancel = p.step(ctx)
	err = p.admin.CreateDatabase(stepCtx, name)
	cancel()
	if err != nil {
		return false, err
	}
	log.Info("tenant database created")

	// From here on a failed step leaves a physical database behind.
	handle, err := p.open(ctx, p.db.TenantDSN(name))
	if err != nil {
		return true, fmt.Errorf("open fresh tenant database %s: %w", name, err)
	}
	defer handle.Close()

	stepCtx, cancel = p.step(ctx)
	_, err = handle.Exec(stepCtx, p.ddl)
	cancel()
	if err != nil {
		return true, fmt.Errorf("apply tenant schema to %s: %w", name, err)
	}
	log.Info("tenant schema applied")

	stepCtx, cancel = p.step(ctx)
	err = repositories.NewDealerRepo(handle).Create(stepCtx, dealer)
	cancel()
	if err != nil {
		return true, fmt.Errorf("seed dealer row into %s: %w", name, err)
	}

	now := time.Now()
	mapping := &models.DealerDatabaseMapping{
		ID:           uuid.New(),
		DealerID:     dealer.ID,
		DatabaseName: name,
		Status:       string(models.MappingStatusActive),
	}
	stepCtx, cancel = p.step(ctx)
	err = p.mappings.Create(stepCtx, mapping)
	cancel()
	if err != nil {
		return true, fmt.Errorf("record dealer database mapping: %w", err)
	}

	stepCtx, cancel = p.step(ctx)
	err = p.dealers.SetProvisioned(stepCtx, dealer.ID, name, now)
	cancel()
	if err != nil {
		return true, fmt.Errorf("mark dealer provisioned: %w", err)
	}

	end := now.AddDate(0, 0, trialDays)
	subscription := &models.Subscription{
		ID:        uuid.New(),
		DealerID:  dealer.ID,
		PlanName:  trialPlanName,
		Amount:    0,
		Currency:  "USD",
		Status:    "active",
		StartDate: now,
		EndDate:   &end,
	}
	stepCtx, cancel = p.step(ctx)
	err = p.subs.Create(stepCtx, subscription)
	cancel()
	if err != nil {
		return true, fmt.Errorf("create trial subscription: %w", err)
	}

	dealer.DatabaseName = &name
	dealer.ProvisionedAt = &now
	return true, nil
}

// compensate undoes the master-side bookkeeping of a failed build. It runs
// detached from the request context, which may already be canceled.
func (p *Provisioner) compensate(ctx context.Context, dealer *models.Dealer, name string, dbCreated bool, errs *multierror.Error, log *zap.Logger) *multierror.Error {
	base := context.WithoutCancel(ctx)

	stepCtx, cancel := p.step(base)
	if err := p.mappings.DeleteByDealerID(stepCtx, dealer.ID); err != nil {
		log.Error("rollback failed: delete dealer database mapping", zap.Error(err))
		errs = multierror.Append(errs, fmt.Errorf("rollback mapping: %w", err))
	}
	cancel()

	stepCtx, cancel = p.step(base)
	if err := p.dealers.Delete(stepCtx, dealer.ID); err != nil {
		log.Error("rollback failed: delete master dealer row", zap.Error(err))
		errs = multierror.Append(errs, fmt.Errorf("rollback dealer row: %w", err))
	}
	cancel()

	if !dbCreated {
		return errs
	}
	if !p.cfg.DropOrphans {
		log.Warn("leaving orphaned tenant database in place")
		return errs
	}

	stepCtx, cancel = p.step(base)
	if err := p.admin.DropDatabase(stepCtx, name); err != nil {
		log.Error("rollback failed: drop tenant database", zap.Error(err))
		errs = multierror.Append(errs, fmt.Errorf("rollback database: %w", err))
	}
	cancel()
	return errs
}

func (p *Provisioner) step(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StepTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.cfg.StepTimeout)
}
