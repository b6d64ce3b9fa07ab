package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capsula-erp/capsula/internal/platform/db"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := rt.database(cmd.Context())
			if err != nil {
				return err
			}
			applied, err := db.Migrate(cmd.Context(), pool, rt.logger)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, version := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", version)
			}
			return nil
		},
	}
}
