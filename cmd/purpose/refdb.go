package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/card-purpose/internal/cli"
	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/ingest"
	"github.com/Veraticus/card-purpose/internal/model"
)

func refdbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refdb",
		Short: "Manage the merchant reference database",
	}
	cmd.AddCommand(refdbImportCmd(), refdbListCmd(), refdbStatsCmd())
	return cmd
}

func refdbImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a curated master list (가맹점명, 사용용도)",
		Long: `Import a master list of merchants and their categories. Merchant names
are normalized before they are stored; an existing key is overwritten.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			inputPath, _ := cmd.Flags().GetString("input")

			f, err := os.Open(inputPath) //nolint:gosec // path is supplied by the user
			if err != nil {
				return common.NewUserError("could not open "+inputPath, err)
			}
			entries, skipped, err := ingest.ReadReference(f)
			_ = f.Close()
			if err != nil {
				return common.NewUserError("could not read "+inputPath, err)
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly("database", store)

			refs, err := openReferences(ctx, store)
			if err != nil {
				return err
			}
			if err := refs.Import(ctx, entries); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d merchants (%d total)", len(entries), refs.Snapshot().Len())))
			if skipped > 0 {
				fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Skipped %d rows without a merchant or category", skipped)))
			}
			return nil
		},
	}
	cmd.Flags().StringP("input", "i", "", "master list CSV")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func refdbListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reference entries in key order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly("database", store)

			refs, err := openReferences(ctx, store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			shown := 0
			refs.Snapshot().Each(func(e model.ReferenceEntry) bool {
				fmt.Fprintf(out, "%-30s %-20s %-8s %s\n", e.Key, e.Category, e.Provenance, e.UpdatedAt.Format("2006-01-02"))
				shown++
				return limit <= 0 || shown < limit
			})
			return nil
		},
	}
	cmd.Flags().Int("limit", 50, "maximum entries to show (0 for all)")
	return cmd
}

func refdbStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show reference entry counts by provenance and category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly("database", store)

			stats, err := store.GetReferenceStats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderReferenceStats(stats))
			return nil
		},
	}
}
