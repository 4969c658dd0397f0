package auth

import (
	"nathanbeddoewebdev/cloudharvest/internal/services/auth"

	"github.com/spf13/cobra"
)

// newStore is swapped in tests.
var newStore = auth.DefaultStore

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication for providers",
		Long: `Manage authentication for providers.

Use this command group to log in and store API tokens securely. AWS
credentials are not stored here: they come from the standard AWS
credential chain (environment, shared config, instance role).`,
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(StatusCommand())

	return cmd
}
