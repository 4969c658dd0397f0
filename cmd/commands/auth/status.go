package auth

import (
	"fmt"

	"nathanbeddoewebdev/cloudharvest/internal/providers"
	"nathanbeddoewebdev/cloudharvest/internal/services/auth"

	"github.com/spf13/cobra"
)

// chainProviders read credentials from their SDK, not the token store.
var chainProviders = map[string]string{
	"aws": "uses the AWS credential chain",
}

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication status for providers",
		Long: `Show which providers have stored API tokens.

Example:
  cloudharvest auth status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()

			names := providers.List()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No providers registered.")
				return nil
			}

			for _, provider := range names {
				if note, ok := chainProviders[provider]; ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", provider, note)
					continue
				}
				ok, err := auth.HasToken(store, provider)
				switch {
				case err != nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: error (%v)\n", provider, err)
				case ok:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: logged in\n", provider)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: not logged in (run 'cloudharvest auth login %s' or set %s)\n", provider, provider, auth.EnvVar(provider))
				}
			}
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
