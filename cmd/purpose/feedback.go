package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/card-purpose/internal/auditlog"
	"github.com/Veraticus/card-purpose/internal/cli"
	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/feedback"
	"github.com/Veraticus/card-purpose/internal/ingest"
)

func feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Apply confirmed categories to the reference database",
		Long: `Read a reviewed classify output and fold every row with a 확정용도
value back into the reference database. Each applied row is recorded in the
audit log; every 50 records a reminder to revisit thresholds is shown.

Examples:
  purpose feedback --input out.csv
  purpose feedback --history 20`,
		RunE: runFeedback,
	}

	cmd.Flags().StringP("input", "i", "", "reviewed result CSV")
	cmd.Flags().Int("history", 0, "show the last N audit entries instead of applying")

	return cmd
}

func runFeedback(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	inputPath, _ := cmd.Flags().GetString("input")
	history, _ := cmd.Flags().GetInt("history")

	audit, err := openAuditLog()
	if err != nil {
		return err
	}
	defer closeQuietly("audit log", audit)

	if history > 0 {
		return showHistory(cmd, audit, history)
	}
	if inputPath == "" {
		return common.NewUserError("--input is required", common.ErrInvalidInput)
	}

	f, err := os.Open(inputPath) //nolint:gosec // path is supplied by the user
	if err != nil {
		return common.NewUserError("could not open "+inputPath, err)
	}
	records, err := ingest.ReadFeedback(f)
	_ = f.Close()
	if err != nil {
		return common.NewUserError("could not read "+inputPath, err)
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("No rows have a 확정용도 value; nothing to apply"))
		return nil
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
	rs, err := loadRuleset("")
	if err != nil {
		return err
	}

	loop, err := feedback.NewLoop(ctx, refs, audit, appCfg.FeedbackConfig(),
		feedback.WithTaxonomy(rs.Taxonomy()),
		feedback.WithNotifier(feedback.LogNotifier{Logger: slog.Default()}))
	if err != nil {
		return err
	}

	summary, err := loop.Apply(ctx, records)
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderFeedbackSummary(summary, loop.Counter()))
	if err != nil {
		return fmt.Errorf("feedback stopped after %d records: %w", summary.Applied(), err)
	}
	return nil
}

func showHistory(cmd *cobra.Command, audit *auditlog.Log, n int) error {
	ctx := cmd.Context()
	count, err := audit.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("The audit log is empty"))
		return nil
	}

	from := uint64(1)
	if count > uint64(n) {
		from = count - uint64(n) + 1
	}
	entries, err := audit.List(ctx, from, n)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range entries {
		rec := e.Record
		line := fmt.Sprintf("%6d  %s  %-20s %s -> %s (%s)",
			e.Sequence,
			rec.ReceivedAt.Format("2006-01-02 15:04"),
			rec.MerchantKey,
			orDash(rec.OriginalCategory),
			rec.ConfirmedCategory,
			e.Outcome)
		if e.RetrainSignaled {
			line += "  " + cli.WarningStyle.Render("retrain")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
