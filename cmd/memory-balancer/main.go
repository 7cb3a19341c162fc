package main

import (
	"os"

	"github.com/kubev2v/memory-balancer/internal/cli"
	"github.com/kubev2v/memory-balancer/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	logger := log.InitLog(zap.NewAtomicLevelAt(zapcore.InfoLevel))
	defer func() { _ = logger.Sync() }()

	undo := zap.ReplaceGlobals(logger)
	defer undo()

	command := NewBalancerCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewBalancerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory-balancer [flags] [options]",
		Short: "memory-balancer evens out host memory utilization inside vSphere clusters.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdRun())
	cmd.AddCommand(cli.NewCmdPlan())

	return cmd
}
