package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kubev2v/memory-balancer/internal/balancer"
	"github.com/kubev2v/memory-balancer/internal/migration"
	"github.com/kubev2v/memory-balancer/internal/server"
	"github.com/kubev2v/memory-balancer/pkg/log"
	"github.com/lthibault/jitterbug/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
)

type RunOptions struct {
	GlobalOptions

	Interval time.Duration
}

func DefaultRunOptions() *RunOptions {
	return &RunOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdRun() *cobra.Command {
	o := DefaultRunOptions()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Balance host memory until no further move is possible.",
		Example: "memory-balancer run --config /etc/memory-balancer/config.yaml\n" +
			"memory-balancer run --tolerance 15 --interval 1h",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *RunOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.DurationVar(&o.Interval, "interval", o.Interval, "Repeat the balancing run at this interval. Zero runs once.")
}

func (o *RunOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	if cmd.Flags().Changed("interval") {
		o.config.Interval.Duration = o.Interval
	}
	return nil
}

func (o *RunOptions) Run(ctx context.Context, args []string) error {
	undo := log.Setup(o.config.LogLevel)
	defer undo()

	zap.S().Infof("Configuration: %s", o.config.String())

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if o.config.MetricsAddress != "" {
		metricsServer := server.NewServer(o.config.MetricsAddress)
		go metricsServer.Start()
		defer func() {
			stopCh := make(chan any)
			metricsServer.Stop(stopCh)
			<-stopCh
			zap.S().Info("metrics server stopped")
		}()
	}

	client, err := o.Client(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			zap.S().Warnf("%v", err)
		}
	}()

	executor := migration.NewExecutor(client, o.config.MigrationTimeout.Duration)
	b := balancer.New(client, executor, o.config.Tolerance, o.config.MaxPasses)

	if o.config.Interval.Duration == 0 {
		return runOnce(ctx, b)
	}
	return runPeriodically(ctx, b, o.config.Interval.Duration)
}

// runner is a convergence run, implemented by balancer.Balancer.
type runner interface {
	Run(ctx context.Context) (*balancer.Result, error)
}

func runOnce(ctx context.Context, b runner) error {
	result, err := b.Run(ctx)
	if result != nil {
		zap.S().Infof("run %s: %d passes, %d moves staged, %d vms migrated, %d migrations failed",
			result.ID, result.Passes, result.Staged, result.Migrated, result.Failed)
	}
	return err
}

// runPeriodically starts a run right away and then on a jittered ticker. A failing
// run is logged and the next one is still scheduled. Runs never overlap.
func runPeriodically(ctx context.Context, b runner, interval time.Duration) error {
	defer utilruntime.HandleCrash()

	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 20, Mean: 0})
	defer ticker.Stop()

	for {
		if err := runOnce(ctx, b); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			zap.S().Errorf("balancing run failed: %v", err)
		}

		select {
		case <-ctx.Done():
			zap.S().Info("stopping balancer")
			return nil
		case <-ticker.C:
		}
	}
}
