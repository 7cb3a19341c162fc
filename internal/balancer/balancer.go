package balancer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kubev2v/memory-balancer/internal/inventory"
	"github.com/kubev2v/memory-balancer/internal/migration"
	"github.com/kubev2v/memory-balancer/pkg/metrics"
	"go.uber.org/zap"
)

// DefaultMaxPasses is used when the balancer is created without a pass bound.
const DefaultMaxPasses = 20

// Fetcher returns the raw inventory records.
type Fetcher interface {
	FetchInventory(ctx context.Context) (inventory.Records, error)
}

// Executor realizes the moves of a staging set.
type Executor interface {
	Execute(ctx context.Context, staging *inventory.StagingSet) *migration.Report
}

// Result summarizes a convergence run.
type Result struct {
	ID       uuid.UUID
	Passes   int
	Staged   int
	Migrated int
	Failed   int
}

type Balancer struct {
	fetcher   Fetcher
	executor  Executor
	tolerance float64
	maxPasses int
}

func New(fetcher Fetcher, executor Executor, tolerance float64, maxPasses int) *Balancer {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	return &Balancer{
		fetcher:   fetcher,
		executor:  executor,
		tolerance: tolerance,
		maxPasses: maxPasses,
	}
}

// Run balances the inventory until a pass stages nothing.
//
// After each pass with staged moves the executor is called and a fresh snapshot is
// taken, whatever the outcome of the individual relocations. No snapshot is taken
// after the last allowed pass. The run fails with
// ErrInventoryFetch when the inventory cannot be read and with ErrNonConvergence when
// the maximum number of passes is reached.
func (b *Balancer) Run(ctx context.Context) (*Result, error) {
	result := &Result{ID: uuid.New()}
	logger := zap.S().Named("balancer").With("run", result.ID.String())
	logger.Infof("Starting balancing run with tolerance %.2f and at most %d passes", b.tolerance, b.maxPasses)

	snap, err := b.snapshot(ctx)
	if err != nil {
		b.finish(metrics.RunInventoryError)
		return result, err
	}

	for pass := 1; pass <= b.maxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			b.finish(metrics.RunCancelled)
			return result, err
		}

		result.Passes = pass
		metrics.IncreasePassesMetric()

		staging := Balance(snap, b.tolerance)
		if staging.Empty() {
			logger.Infof("Nothing to migrate. Converged after %d passes", pass)
			b.finish(metrics.RunConverged)
			return result, nil
		}

		logger.Infof("Pass %d staged %d moves", pass, staging.Len())
		result.Staged += staging.Len()
		metrics.IncreaseStagedMovesMetric(staging.Len())

		report := b.executor.Execute(ctx, staging)
		result.Migrated += len(report.Succeeded)
		result.Failed += len(report.Failed)
		if report.HasFailures() {
			logger.Warnf("Pass %d: %d of %d migrations failed", pass, len(report.Failed), staging.Len())
		}

		if pass == b.maxPasses {
			break
		}

		snap, err = b.snapshot(ctx)
		if err != nil {
			b.finish(metrics.RunInventoryError)
			return result, err
		}
	}

	b.finish(metrics.RunNotConverged)
	err = NewErrNonConvergence(b.maxPasses)
	logger.Warnf("%v", err)
	return result, err
}

// Plan computes a single pass on a fresh snapshot without migrating anything.
func (b *Balancer) Plan(ctx context.Context) (*inventory.StagingSet, error) {
	snap, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	staging := Balance(snap, b.tolerance)
	if staging.Empty() {
		zap.S().Named("balancer").Info("Nothing to migrate")
	}
	return staging, nil
}

func (b *Balancer) snapshot(ctx context.Context) (*inventory.Snapshot, error) {
	records, err := b.fetcher.FetchInventory(ctx)
	if err != nil {
		var fetchErr *inventory.ErrInventoryFetch
		if !errors.As(err, &fetchErr) {
			err = inventory.NewErrInventoryFetch(err)
		}
		zap.S().Named("balancer").Errorf("%v", err)
		return nil, err
	}

	snap, skipped := inventory.NewSnapshot(records)
	for _, e := range skipped {
		zap.S().Named("balancer").Warnf("skipping record: %v", e)
	}
	for _, h := range snap.Hosts {
		if pct, ok := h.UtilizationPercent(); ok {
			metrics.UpdateHostUtilizationMetric(h.String(), pct)
		}
	}
	zap.S().Named("balancer").Debugf("snapshot: %d hosts, %d powered on vms, %d clusters", len(snap.Hosts), len(snap.VMs), len(snap.Clusters))

	return snap, nil
}

func (b *Balancer) finish(outcome string) {
	metrics.IncreaseConvergenceRunsMetric(outcome)
}
