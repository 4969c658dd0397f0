package serve

import (
	"fmt"

	harvestcmd "nathanbeddoewebdev/cloudharvest/cmd/commands/harvest"
	"nathanbeddoewebdev/cloudharvest/internal/daemon"
	"nathanbeddoewebdev/cloudharvest/internal/sink"

	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Harvest on a schedule and expose the results to Prometheus",
		Long: `Run harvesting passes on a cron schedule and serve the latest samples
plus harvester self-metrics at /metrics. /healthz reports the last run.

The schedule accepts standard five-field cron expressions and descriptors
such as "@every 5m" or "@hourly".

Examples:
  cloudharvest serve
  cloudharvest serve --listen :9200 --schedule "*/10 * * * *"
  cloudharvest serve --provider hetzner --run-on-start`,
		Args:         cobra.NoArgs,
		RunE:         runServe,
		SilenceUsage: true,
	}

	harvestcmd.AddFlags(cmd)
	cmd.Flags().String("listen", daemon.DefaultListen, "Address to serve /metrics and /healthz on")
	cmd.Flags().String("schedule", daemon.DefaultSchedule, "Cron schedule for harvesting runs")
	cmd.Flags().Bool("run-on-start", false, "Run once immediately instead of waiting for the first tick")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	setup, err := harvestcmd.Resolve(cmd)
	if err != nil {
		return err
	}
	defer setup.Close()

	exporter := sink.NewExporter("cloudharvest")
	h := setup.Harvester(exporter, exporter)

	listen, _ := cmd.Flags().GetString("listen")
	schedule, _ := cmd.Flags().GetString("schedule")
	runOnStart, _ := cmd.Flags().GetBool("run-on-start")

	d, err := daemon.New(h, exporter.Handler(), daemon.Config{
		Listen:     listen,
		Schedule:   schedule,
		RunOnStart: runOnStart,
	}, setup.Log)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Serving %s metrics on %s (schedule %s)\n", setup.Provider.GetDisplayName(), listen, schedule)
	return d.Start(cmd.Context())
}
