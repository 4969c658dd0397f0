package runs

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/domain"
	"nathanbeddoewebdev/cloudharvest/internal/runlog"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent harvesting passes",
		Long: `List recent harvesting passes, newest first.

Examples:
  cloudharvest runs list
  cloudharvest runs list --limit 50
  cloudharvest runs list --kind storage
  cloudharvest runs list -o json`,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().Int("limit", 25, "Number of entries to display")
	cmd.Flags().String("kind", "", "Filter by resource kind (compute, storage, agent)")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}

	kind, _ := cmd.Flags().GetString("kind")
	if kind != "" {
		k, ok := domain.ParseKind(kind)
		if !ok {
			return fmt.Errorf("unknown resource kind %q (valid: compute, storage, agent)", kind)
		}
		kind = string(k)
	}
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = "table"
	}

	repo, err := runlog.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	var entries []runlog.Entry
	if kind != "" {
		entries, err = repo.ListByKind(kind, limit)
	} else {
		entries, err = repo.List(limit)
	}
	if err != nil {
		return err
	}

	if output == "json" {
		if entries == nil {
			entries = []runlog.Entry{}
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}
	if output != "table" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tPROVIDER\tKIND\tOUTCOME\tRECORDS\tFAILED\tDURATION\tERROR")
	fmt.Fprintln(w, "-------\t--------\t----\t-------\t-------\t------\t--------\t-----")
	for _, e := range entries {
		errStr := e.Error
		if errStr == "" {
			errStr = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Provider,
			e.Kind,
			e.Outcome,
			e.Records,
			e.Failed,
			formatDuration(e.DurationMs),
			errStr,
		)
	}
	w.Flush()
	return nil
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}
