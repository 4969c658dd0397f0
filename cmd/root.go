package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"nathanbeddoewebdev/cloudharvest/cmd/commands/auth"
	cfgcmd "nathanbeddoewebdev/cloudharvest/cmd/commands/config"
	"nathanbeddoewebdev/cloudharvest/cmd/commands/harvest"
	"nathanbeddoewebdev/cloudharvest/cmd/commands/runs"
	"nathanbeddoewebdev/cloudharvest/cmd/commands/serve"
	"nathanbeddoewebdev/cloudharvest/internal/config"
	"nathanbeddoewebdev/cloudharvest/internal/logger"
	"nathanbeddoewebdev/cloudharvest/internal/providers"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "cloudharvest",
		Short: "Harvest monitoring metrics for every resource in a cloud account",
		Long: `cloudharvest discovers the compute instances and storage volumes in a
cloud account and fetches a fixed catalog of monitoring metrics for each of
them over a recent time window.

Supported providers: AWS (EC2 + CloudWatch) and Hetzner Cloud.

Quick start:
  cloudharvest harvest                     # every pass, text output
  cloudharvest harvest compute -o json     # one pass, JSON lines
  cloudharvest serve                       # scheduled runs + /metrics
  cloudharvest runs list                   # past pass outcomes`,
		PersistentPreRunE: initLogger,
	}

	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides config)")

	cmd.AddCommand(harvest.NewCommand())
	cmd.AddCommand(serve.NewCommand())
	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(runs.NewCommand())

	return cmd
}

// initLogger configures the global logger from --log-level or the stored
// log-level key. A terminal on stderr gets the console encoder.
func initLogger(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		if cfg, err := config.Load(); err == nil {
			level = cfg.LogLevel
		}
	}
	if level == "" {
		level = "info"
	}
	return logger.Init(level, term.IsTerminal(int(os.Stderr.Fd())))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	providers.RegisterAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var root = rootCmd()
	err := root.ExecuteContext(ctx)
	_ = logger.Get().Sync()
	if err != nil {
		stop()
		os.Exit(1)
	}
}
