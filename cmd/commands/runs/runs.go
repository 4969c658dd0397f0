package runs

import "github.com/spf13/cobra"

// NewCommand returns the "runs" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "View and manage the harvesting run log",
		Long: "View the outcome of past harvesting passes and prune old entries.\n\n" +
			"The run log is stored locally in ~/.config/cloudharvest/runs.db.\n" +
			"It records pass outcomes only, never metric samples.",
		SilenceUsage: true,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(PruneCommand())

	return cmd
}
