package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/kubev2v/memory-balancer/internal/inventory"
	"github.com/kubev2v/memory-balancer/pkg/metrics"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"
)

// Relocator moves a vm to another host. It blocks until the move is done.
type Relocator interface {
	Relocate(ctx context.Context, vm types.ManagedObjectReference, target types.ManagedObjectReference) error
}

// Report is the outcome of executing a staging set.
type Report struct {
	Succeeded []*inventory.Move
	Failed    []*ErrRelocation
}

func (r *Report) HasFailures() bool {
	return len(r.Failed) > 0
}

type Executor struct {
	relocator Relocator
	timeout   time.Duration
}

// NewExecutor returns an executor bounding every relocation by timeout.
// A zero timeout leaves relocations bounded only by the caller's context.
func NewExecutor(relocator Relocator, timeout time.Duration) *Executor {
	return &Executor{
		relocator: relocator,
		timeout:   timeout,
	}
}

// Execute relocates the staged vms one after the other. A failed relocation is
// reported and the next move is attempted.
func (e *Executor) Execute(ctx context.Context, staging *inventory.StagingSet) *Report {
	report := &Report{}

	for _, move := range staging.Moves() {
		if err := ctx.Err(); err != nil {
			report.Failed = append(report.Failed, NewErrRelocation(move, err))
			continue
		}

		zap.S().Named("migration").Infof("Migrating %s (%d MB) from %s to %s", move.VM.Name, move.VM.MemoryAllocatedMB, move.Source, move.Target)
		start := time.Now()

		if err := e.relocate(ctx, move); err != nil {
			relocationErr := NewErrRelocation(move, err)
			zap.S().Named("migration").Errorf("%v", relocationErr)
			metrics.IncreaseMigrationsMetric(metrics.MigrationFailed)
			report.Failed = append(report.Failed, relocationErr)
			continue
		}

		move.VM.Staged = false
		metrics.IncreaseMigrationsMetric(metrics.MigrationSucceeded)
		report.Succeeded = append(report.Succeeded, move)
		zap.S().Named("migration").Infof("vm %s migrated to %s in %s", move.VM.Name, move.Target, time.Since(start).Round(time.Millisecond))
	}

	return report
}

// relocate runs the relocation under its own deadline. The call runs in a separate
// goroutine so that a relocator ignoring its context cannot hold up the batch.
func (e *Executor) relocate(ctx context.Context, move *inventory.Move) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.relocator.Relocate(ctx, move.VM.Ref, move.Target.Ref)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("relocation did not complete: %w", ctx.Err())
	}
}
