package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capsula-erp/capsula/jobs"
)

func newJobsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Enqueue background jobs and inspect the queue",
	}

	var days int
	trigger := &cobra.Command{
		Use:       "trigger <name>",
		Short:     "Enqueue a job immediately",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs.TaskNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days == 0 {
				days = rt.cfg.ExpiryScanDays
			}
			// Reject unknown names before touching Redis.
			if _, err := jobs.NewTask(args[0], days); err != nil {
				return err
			}
			client := jobs.NewClient(rt.cfg.Queue())
			defer client.Close()
			info, err := client.Trigger(cmd.Context(), args[0], days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	trigger.Flags().IntVar(&days, "within-days", 0, "expiry scan horizon in days (defaults to EXPIRY_SCAN_DAYS)")

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Show the default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := jobs.NewClient(rt.cfg.Queue())
			defer client.Close()
			stats, err := client.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}

	cmd.AddCommand(trigger, inspect)
	return cmd
}
