package harvest

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/cloudharvest/internal/config"
	"nathanbeddoewebdev/cloudharvest/internal/domain"
	"nathanbeddoewebdev/cloudharvest/internal/sink"

	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest [compute|storage|agent|all]",
		Short: "Harvest metrics for every discovered resource",
		Long: `Discover compute instances and storage volumes, then fetch every
catalog metric for each of them over one shared time window.

Passes run in order (compute, storage, agent). A failed pass is reported
and the remaining passes still run.

Examples:
  cloudharvest harvest
  cloudharvest harvest compute --lookback 3h --period 1m
  cloudharvest harvest storage -o json
  cloudharvest harvest all --provider hetzner --chart`,
		Args:         cobra.MaximumNArgs(1),
		ValidArgs:    []string{"compute", "storage", "agent", "all"},
		RunE:         runHarvest,
		SilenceUsage: true,
	}

	AddFlags(cmd)
	cmd.Flags().StringP("output", "o", "text", "Output format: text, json or kafka")
	cmd.Flags().Bool("chart", false, "Draw a chart under each text record")

	return cmd
}

func runHarvest(cmd *cobra.Command, args []string) error {
	kinds, err := parseKinds(args)
	if err != nil {
		return err
	}

	setup, err := Resolve(cmd)
	if err != nil {
		return err
	}
	defer setup.Close()

	output, _ := cmd.Flags().GetString("output")
	chart, _ := cmd.Flags().GetBool("chart")
	out, err := newSink(cmd, output, chart, setup.App)
	if err != nil {
		return err
	}
	defer out.Close()

	results := setup.Harvester(out).RunKinds(cmd.Context(), kinds...)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s pass failed: %v\n", r.Kind, r.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d passes failed", failed, len(results))
	}
	return nil
}

func parseKinds(args []string) ([]domain.ResourceKind, error) {
	if len(args) == 0 {
		return domain.Kinds, nil
	}
	if strings.EqualFold(strings.TrimSpace(args[0]), "all") {
		return domain.Kinds, nil
	}
	if k, ok := domain.ParseKind(args[0]); ok {
		return []domain.ResourceKind{k}, nil
	}
	return nil, fmt.Errorf("unknown resource kind %q (valid: compute, storage, agent, all)", args[0])
}

func newSink(cmd *cobra.Command, output string, chart bool, cfg *config.Config) (sink.Sink, error) {
	switch strings.ToLower(output) {
	case "", "text":
		return sink.NewText(cmd.OutOrStdout(), chart), nil
	case "json":
		return sink.NewJSONLines(cmd.OutOrStdout()), nil
	case "kafka":
		return sink.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return nil, fmt.Errorf("unsupported output format %q", output)
	}
}
