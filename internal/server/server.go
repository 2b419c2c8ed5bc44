package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"warrantyhub/internal/analytics"
	"warrantyhub/internal/caching"
	"warrantyhub/internal/config"
	"warrantyhub/internal/handlers"
	"warrantyhub/internal/jobs/background"
	"warrantyhub/internal/logger"
	"warrantyhub/internal/middleware"
	"warrantyhub/internal/repositories"
	"warrantyhub/internal/schema"
	"warrantyhub/internal/services"
	"warrantyhub/internal/tenancy"
	"warrantyhub/pkg/database"
)

// Server owns every long-lived component of the process: the master and
// admin pools, the tenant handle registry, the cache, the background
// scheduler and the HTTP surface. Shutdown tears them down in dependency
// order.
type Server struct {
	cfg       *config.Config
	echo      *echo.Echo
	master    *pgxpool.Pool
	admin     tenancy.AdminChannel
	adminPool *pgxpool.Pool
	registry  *tenancy.Registry
	cache     caching.CacheService
	scheduler *background.JobScheduler
}

// New wires the whole process from configuration. Both database pools are
// opened and pinged before this returns, so a non-nil Server can serve
// traffic immediately.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	settings := database.PoolSettings{
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}

	master, err := database.NewPool(ctx, cfg.DB.MasterDSN(), settings)
	if err != nil {
		return nil, fmt.Errorf("connect master database: %w", err)
	}

	adminPool, err := database.NewPool(ctx, cfg.DB.AdminDSN(), settings)
	if err != nil {
		master.Close()
		return nil, fmt.Errorf("connect admin database: %w", err)
	}

	tenantDDL, err := loadTenantDDL(cfg.Schema)
	if err != nil {
		master.Close()
		adminPool.Close()
		return nil, fmt.Errorf("load tenant schema: %w", err)
	}

	// Master-side repositories.
	dealerRepo := repositories.NewDealerRepo(master)
	userRepo := repositories.NewUserRepo(master)
	mappingRepo := repositories.NewMappingRepo(master)
	subscriptionRepo := repositories.NewSubscriptionRepo(master)
	packageRepo := repositories.NewPackageRepo(master)

	// Tenancy plumbing.
	admin := tenancy.NewAdminChannel(adminPool)
	registry := tenancy.NewRegistry(master, mappingRepo, cfg.DB, cfg.Registry, nil)
	fanout := tenancy.NewFanOut(registry, mappingRepo, cfg.FanOut)
	provisioner := tenancy.NewProvisioner(admin, nil, cfg.DB, cfg.Provisioner,
		dealerRepo, mappingRepo, subscriptionRepo, tenantDDL)

	cache := caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	// Services.
	dealerSvc := services.NewDealerService(dealerRepo, userRepo, mappingRepo, provisioner, registry, cache)
	catalogSvc := services.NewCatalogService(packageRepo, registry, fanout, cache)
	directorySvc := services.NewDirectoryService(registry, fanout)
	vehicleSvc := services.NewVehicleService(registry)
	salesSvc := services.NewSalesService(registry, fanout)
	invoiceSvc := services.NewInvoiceService(registry, fanout)
	subscriptionSvc := services.NewSubscriptionService(subscriptionRepo, dealerRepo)
	analyticsSvc := analytics.NewService(fanout)

	var scheduler *background.JobScheduler
	if cfg.Jobs.Enabled {
		scheduler, err = background.NewJobScheduler(cfg.Jobs, registry, invoiceSvc, logger.L())
		if err != nil {
			master.Close()
			adminPool.Close()
			return nil, fmt.Errorf("build job scheduler: %w", err)
		}
	}

	e, err := buildEcho(cfg, apiHandlers{
		dealers:       handlers.NewDealerHandlers(dealerSvc, catalogSvc),
		packages:      handlers.NewPackageHandlers(catalogSvc),
		customers:     handlers.NewCustomerHandlers(directorySvc),
		vehicles:      handlers.NewVehicleHandlers(vehicleSvc),
		sales:         handlers.NewSaleHandlers(salesSvc),
		invoices:      handlers.NewInvoiceHandlers(invoiceSvc),
		subscriptions: handlers.NewSubscriptionHandlers(subscriptionSvc),
		analytics:     handlers.NewAnalyticsHandlers(analyticsSvc),
		health:        handlers.NewHealthHandlers(registry),
	})
	if err != nil {
		master.Close()
		adminPool.Close()
		return nil, err
	}

	return &Server{
		cfg:       cfg,
		echo:      e,
		master:    master,
		admin:     admin,
		adminPool: adminPool,
		registry:  registry,
		cache:     cache,
		scheduler: scheduler,
	}, nil
}

// Start launches the background scheduler and blocks serving HTTP until
// Shutdown is called or the listener fails.
func (s *Server) Start() error {
	if s.scheduler != nil {
		s.scheduler.Start()
	}

	addr := ":" + s.cfg.Server.Port
	logger.L().Info("warrantyhub listening",
		zap.String("addr", addr),
		zap.String("env", s.cfg.Server.Env))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server, stops the scheduler, then closes tenant
// handles, pools and the cache. Later steps run even when earlier ones
// fail; all failures come back as one aggregated error.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs *multierror.Error

	if err := s.echo.Shutdown(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("http server: %w", err))
	}
	if s.scheduler != nil {
		if err := s.scheduler.Stop(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("job scheduler: %w", err))
		}
	}
	if err := s.registry.Shutdown(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("tenant registry: %w", err))
	}
	s.master.Close()
	s.adminPool.Close()
	if err := s.cache.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("cache: %w", err))
	}

	logger.L().Info("warrantyhub stopped")
	return errs.ErrorOrNil()
}

// loadTenantDDL reads the derived tenant schema artifact. When the artifact
// has not been generated yet it is derived from the master schema sources
// in memory, so serve works on a fresh checkout.
func loadTenantDDL(cfg config.SchemaConfig) ([]byte, error) {
	ddl, err := os.ReadFile(cfg.ArtifactPath)
	if err == nil {
		return ddl, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return schema.NewDeriver(cfg.SourceDir, cfg.ExcludedEntities).Derive()
}

// buildEcho assembles the HTTP surface: global middleware, the open health
// and metrics endpoints, then the JWT-guarded /v1 API.
func buildEcho(cfg *config.Config, h apiHandlers) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())
	e.Use(logger.Middleware())

	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())

	e.GET("/health", h.health.LivenessCheck)
	e.GET("/health/ready", h.health.ReadinessCheck)
	e.GET("/health/detailed", h.health.DetailedHealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	jwtMiddleware, err := middleware.NewJWTMiddleware(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("build jwt middleware: %w", err)
	}

	v1 := e.Group("/v1")
	v1.Use(versionMiddleware.VersionHeader("v1"))
	v1.Use(jwtMiddleware)
	v1.Use(middleware.NewAuditMiddleware(logger.L()).AuditMutations())

	registerRoutes(v1, h)
	return e, nil
}
