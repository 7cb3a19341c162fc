package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/kubev2v/memory-balancer/internal/config"
	"github.com/kubev2v/memory-balancer/internal/util"
	"github.com/kubev2v/memory-balancer/internal/vsphere"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type GlobalOptions struct {
	ConfigFile string
	LogLevel   string
	Tolerance  float64
	MaxPasses  int

	config *config.Config
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		ConfigFile: util.GetEnv("BALANCER_CONFIG_FILE", config.DefaultConfigFile),
		Tolerance:  config.DefaultTolerance,
		MaxPasses:  config.DefaultMaxPasses,
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "Path to the balancer's configuration file")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level, overrides the configuration file")
	fs.Float64VarP(&o.Tolerance, "tolerance", "t", o.Tolerance, "Greatest utilization span, in percentage points, allowed between two hosts of a cluster")
	fs.IntVar(&o.MaxPasses, "max-passes", o.MaxPasses, "Number of balancing passes after which a run is reported as not converging")
}

// Complete loads the configuration file, the environment and the flags, in this order.
// A missing configuration file is only an error when it was set explicitly.
func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	o.config = config.NewDefault()

	_, statErr := os.Stat(o.ConfigFile)
	if cmd.Flags().Changed("config") || statErr == nil {
		if err := o.config.ParseConfigFile(o.ConfigFile); err != nil {
			return err
		}
	}

	if err := o.config.LoadEnv(); err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		o.config.LogLevel = o.LogLevel
	}
	if cmd.Flags().Changed("tolerance") {
		o.config.Tolerance = o.Tolerance
	}
	if cmd.Flags().Changed("max-passes") {
		o.config.MaxPasses = o.MaxPasses
	}

	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if o.config == nil {
		return fmt.Errorf("configuration not loaded")
	}
	return o.config.Validate()
}

func (o *GlobalOptions) Client(ctx context.Context) (*vsphere.Client, error) {
	return vsphere.NewClient(ctx, vsphere.Credentials{
		URL:      o.config.VCenter.URL,
		Username: o.config.VCenter.Username,
		Password: o.config.VCenter.Password,
		Insecure: o.config.VCenter.Insecure,
	})
}
