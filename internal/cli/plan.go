package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kubev2v/memory-balancer/internal/balancer"
	"github.com/kubev2v/memory-balancer/internal/inventory"
	"github.com/kubev2v/memory-balancer/pkg/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"
)

const (
	jsonFormat = "json"
	yamlFormat = "yaml"
)

var (
	legalOutputTypes = []string{jsonFormat, yamlFormat}
)

type PlanOptions struct {
	GlobalOptions

	Output string
}

func DefaultPlanOptions() *PlanOptions {
	return &PlanOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdPlan() *cobra.Command {
	o := DefaultPlanOptions()
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Display the moves the next balancing pass would stage, without migrating.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *PlanOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *PlanOptions) Validate(args []string) error {
	if len(o.Output) > 0 && !funk.Contains(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return o.GlobalOptions.Validate(args)
}

func (o *PlanOptions) Run(ctx context.Context, out io.Writer) error {
	undo := log.Setup(o.config.LogLevel)
	defer undo()

	client, err := o.Client(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			zap.S().Warnf("%v", err)
		}
	}()

	staging, err := balancer.New(client, nil, o.config.Tolerance, o.config.MaxPasses).Plan(ctx)
	if err != nil {
		return err
	}
	return printPlan(out, staging, o.Output)
}

func printPlan(out io.Writer, staging *inventory.StagingSet, output string) error {
	summary := staging.Summary()
	switch output {
	case jsonFormat:
		marshalled, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshalling plan: %w", err)
		}
		fmt.Fprintf(out, "%s\n", string(marshalled))
		return nil
	case yamlFormat:
		marshalled, err := yaml.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshalling plan: %w", err)
		}
		fmt.Fprintf(out, "%s", string(marshalled))
		return nil
	default:
		w := tabwriter.NewWriter(out, 0, 8, 1, '\t', 0)
		fmt.Fprintln(w, "VM\tMEMORY (MB)\tSOURCE\tTARGET")
		for _, m := range summary {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", m.VM, m.MemoryMB, m.Source, m.Target)
		}
		return w.Flush()
	}
}
