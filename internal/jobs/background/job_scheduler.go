package background

import (
	"context"
	"time"

	"warrantyhub/internal/config"
	"warrantyhub/internal/tenancy"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// HandleSweeper evicts tenant handles that no longer answer pings.
type HandleSweeper interface {
	Sweep(ctx context.Context) int
}

// OverdueSweeper flips aged pending invoices to overdue across all partitions.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, asOf time.Time) (int64, tenancy.Report)
}

// JobScheduler runs the recurring maintenance jobs: the registry health sweep
// and the invoice overdue sweep. Each job runs in singleton mode so a slow
// pass never overlaps the next one.
type JobScheduler struct {
	scheduler gocron.Scheduler
	registry  HandleSweeper
	invoices  OverdueSweeper
	log       *zap.Logger
	jobs      map[string]gocron.Job
}

// NewJobScheduler creates a scheduler with all maintenance jobs registered.
// Start must be called before any job runs.
func NewJobScheduler(cfg config.JobsConfig, registry HandleSweeper, invoices OverdueSweeper, log *zap.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler: scheduler,
		registry:  registry,
		invoices:  invoices,
		log:       log,
		jobs:      make(map[string]gocron.Job),
	}
	if err := js.registerJobs(cfg); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start begins executing registered jobs on their schedules.
func (js *JobScheduler) Start() {
	js.log.Info("starting background job scheduler", zap.Int("jobs", len(js.jobs)))
	js.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running jobs to finish.
func (js *JobScheduler) Stop() error {
	js.log.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs(cfg config.JobsConfig) error {
	healthJob, err := js.scheduler.NewJob(
		gocron.DurationJob(cfg.HealthSweepEvery),
		gocron.NewTask(js.sweepRegistryHealth),
		gocron.WithName("registry-health-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	js.jobs["registry-health-sweep"] = healthJob

	overdueJob, err := js.scheduler.NewJob(
		gocron.CronJob(cfg.OverdueSweepCron, false),
		gocron.NewTask(js.sweepOverdueInvoices),
		gocron.WithName("invoice-overdue-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	js.jobs["invoice-overdue-sweep"] = overdueJob

	return nil
}

// sweepRegistryHealth pings every cached tenant handle and evicts the dead
// ones so the next request reopens them instead of hitting a broken pool.
func (js *JobScheduler) sweepRegistryHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	evicted := js.registry.Sweep(ctx)
	if evicted > 0 {
		js.log.Warn("registry health sweep evicted unhealthy tenant handles",
			zap.Int("evicted", evicted))
		return
	}
	js.log.Debug("registry health sweep completed", zap.Int("evicted", 0))
}

// sweepOverdueInvoices marks pending invoices past their due date as overdue
// on every partition, master included.
func (js *JobScheduler) sweepOverdueInvoices() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	marked, report := js.invoices.SweepOverdue(ctx, time.Now().UTC())
	js.log.Info("invoice overdue sweep completed",
		zap.Int64("invoices_marked", marked),
		zap.Int("partitions_ok", report.Succeeded),
		zap.Int("partitions_failed", report.Failed))
}
