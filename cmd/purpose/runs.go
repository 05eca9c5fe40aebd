package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/card-purpose/internal/cli"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent classify runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly("database", store)

			runs, err := store.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No runs recorded yet"))
				return nil
			}
			for _, r := range runs {
				status := cli.SuccessStyle.Render("done")
				if r.Canceled {
					status = cli.WarningStyle.Render("interrupted")
				}
				fmt.Fprintf(out, "%s  %-11s total=%d auto=%d revised=%d manual=%d unclassified=%d  %s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04"), status,
					r.Total, r.AutoConfirmed, r.AIRevised, r.ManualReview, r.Unclassified, r.InputPath)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "number of runs to show")
	return cmd
}
