package tenancy

import (
	"context"
	"fmt"
	"sync"

	"warrantyhub/internal/config"
	"warrantyhub/internal/logger"
	"warrantyhub/internal/metrics"
	"warrantyhub/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Source identifies one partition in a fan-out: the master database or one
// dealer's tenant database.
type Source struct {
	DealerID uuid.UUID
}

// MasterSource is the master-partition source.
var MasterSource = Source{}

func (s Source) IsMaster() bool {
	return s.DealerID == uuid.Nil
}

func (s Source) String() string {
	if s.IsMaster() {
		return "master"
	}
	return s.DealerID.String()
}

// FanOut runs one operation across many partitions. A failing partition is
// logged and skipped, never aborting its siblings, so reads degrade to the
// reachable subset instead of failing outright.
type FanOut struct {
	registry *Registry
	mappings repositories.MappingRepository
	cfg      config.FanOutConfig
}

func NewFanOut(registry *Registry, mappings repositories.MappingRepository, cfg config.FanOutConfig) *FanOut {
	return &FanOut{registry: registry, mappings: mappings, cfg: cfg}
}

// Targets returns the master partition followed by one source per active
// dealer mapping, in mapping creation order.
func (f *FanOut) Targets(ctx context.Context) ([]Source, error) {
	mappings, err := f.mappings.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active mappings: %w", err)
	}
	targets := make([]Source, 0, len(mappings)+1)
	targets = append(targets, MasterSource)
	for _, m := range mappings {
		targets = append(targets, Source{DealerID: m.DealerID})
	}
	return targets, nil
}

// TenantTargets is Targets without the master partition, for operations that
// only make sense inside dealer databases.
func (f *FanOut) TenantTargets(ctx context.Context) ([]Source, error) {
	targets, err := f.Targets(ctx)
	if err != nil {
		return nil, err
	}
	return targets[1:], nil
}

// Collect runs fn on every source concurrently and merges the results in
// source order. Failed branches contribute nothing to the merge.
func Collect[T any](ctx context.Context, f *FanOut, sources []Source, fn func(ctx context.Context, src Source, h Handle) ([]T, error)) []T {
	results := make([][]T, len(sources))
	sem := make(chan struct{}, f.concurrency())
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var rows []T
			err := f.run(ctx, src, func(ctx context.Context, h Handle) error {
				var ferr error
				rows, ferr = fn(ctx, src, h)
				return ferr
			})
			if f.settle(ctx, src, err) {
				results[i] = rows
			}
		}(i, src)
	}
	wg.Wait()

	var merged []T
	for _, rows := range results {
		merged = append(merged, rows...)
	}
	return merged
}

// Report summarizes a write-shaped fan-out.
type Report struct {
	Succeeded int
	Failed    int
}

// Each runs fn on every source concurrently. One failed source never blocks
// the rest; the report carries the counts.
func (f *FanOut) Each(ctx context.Context, sources []Source, fn func(ctx context.Context, src Source, h Handle) error) Report {
	outcomes := make([]bool, len(sources))
	sem := make(chan struct{}, f.concurrency())
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := f.run(ctx, src, func(ctx context.Context, h Handle) error {
				return fn(ctx, src, h)
			})
			outcomes[i] = f.settle(ctx, src, err)
		}(i, src)
	}
	wg.Wait()

	var report Report
	for _, ok := range outcomes {
		if ok {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	return report
}

// First scans sources in order and returns the first hit, short-circuiting
// every source after it. The scan is sequential so a hit in an early
// partition never races a later one. A failing source is logged and
// skipped, so a miss is only as authoritative as the partitions that
// answered.
func First[T any](ctx context.Context, f *FanOut, sources []Source, fn func(ctx context.Context, src Source, h Handle) (T, bool, error)) (T, bool) {
	var zero T
	for _, src := range sources {
		var (
			out   T
			found bool
		)
		err := f.run(ctx, src, func(ctx context.Context, h Handle) error {
			var ferr error
			out, found, ferr = fn(ctx, src, h)
			return ferr
		})
		if !f.settle(ctx, src, err) {
			continue
		}
		if found {
			return out, true
		}
	}
	return zero, false
}

// run executes one branch with its own timeout and panic capture.
func (f *FanOut) run(ctx context.Context, src Source, fn func(ctx context.Context, h Handle) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("branch panic: %v", p)
		}
	}()

	if f.cfg.BranchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.BranchTimeout)
		defer cancel()
	}

	h, err := f.handle(ctx, src)
	if err != nil {
		return err
	}
	return fn(ctx, h)
}

func (f *FanOut) handle(ctx context.Context, src Source) (Handle, error) {
	if src.IsMaster() {
		return f.registry.Master(), nil
	}
	return f.registry.Resolve(ctx, src.DealerID)
}

// settle records one branch outcome: exactly one log line per failure.
func (f *FanOut) settle(ctx context.Context, src Source, err error) bool {
	if err != nil {
		logger.FromContext(ctx).Error("fan-out branch failed",
			zap.String("source", src.String()),
			zap.Error(err))
		metrics.FanOutBranchesTotal.WithLabelValues("error").Inc()
		return false
	}
	metrics.FanOutBranchesTotal.WithLabelValues("ok").Inc()
	return true
}

func (f *FanOut) concurrency() int {
	if f.cfg.Concurrency > 0 {
		return f.cfg.Concurrency
	}
	return 4
}
