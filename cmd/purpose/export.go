package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/card-purpose/internal/cli"
	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/feedback"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-training",
		Short: "Write the reference data as train/test CSVs",
		Long: `Shuffle the reference data with a fixed seed and split it into
train.csv and test.csv for tuning thresholds or training a model.`,
		RunE: runExport,
	}
	cmd.Flags().StringP("output-dir", "o", ".", "directory for train.csv and test.csv")
	cmd.Flags().Float64("split", 0, "share of rows in the training set (default from config)")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dir, _ := cmd.Flags().GetString("output-dir")
	split, _ := cmd.Flags().GetFloat64("split")
	if split == 0 {
		split = appCfg.Feedback.TrainSplit
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return common.NewUserError("could not create "+dir, err)
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

	trainPath := filepath.Join(dir, "train.csv")
	testPath := filepath.Join(dir, "test.csv")
	train, err := os.Create(trainPath) //nolint:gosec // path is supplied by the user
	if err != nil {
		return common.NewUserError("could not create "+trainPath, err)
	}
	defer closeQuietly(trainPath, train)
	test, err := os.Create(testPath) //nolint:gosec // path is supplied by the user
	if err != nil {
		return common.NewUserError("could not create "+testPath, err)
	}
	defer closeQuietly(testPath, test)

	summary, err := feedback.ExportTrainingData(ctx, refs.Snapshot(), train, test, split)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Wrote %d training and %d test rows to %s", summary.Train, summary.Test, dir)))
	return nil
}
