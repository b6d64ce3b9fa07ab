package cli

import (
	"github.com/spf13/cobra"

	"github.com/capsula-erp/capsula/internal/platform/db"
)

func newSeedCmd(rt *runtime) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the development dataset into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if migrate {
				pool, err := rt.database(ctx)
				if err != nil {
					return err
				}
				if _, err := db.Migrate(ctx, pool, rt.logger); err != nil {
					return err
				}
			}
			services, err := rt.services(ctx)
			if err != nil {
				return err
			}
			summary, err := services.Seeder(rt.logger).Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations first")
	return cmd
}
