package config

import (
	"nathanbeddoewebdev/cloudharvest/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage cloudharvest configuration",
		Long: "View and modify persistent cloudharvest settings.\n\n" +
			"Configuration is stored at ~/.config/cloudharvest/config.json.\n" +
			"Command-line flags override stored values for a single run.\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())

	return cmd
}
