package cli

import (
	"github.com/spf13/cobra"

	"github.com/capsula-erp/capsula/internal/users"
)

func newUsersCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage operator accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "provision",
		Short: "Create the development accounts, skipping existing usernames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := rt.services(cmd.Context())
			if err != nil {
				return err
			}
			report, err := services.Users.Provision(cmd.Context(), users.DevAccounts())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	})
	return cmd
}
