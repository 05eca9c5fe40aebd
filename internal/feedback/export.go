package feedback

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/gocarina/gocsv"

	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/refdb"
)

// DefaultTrainSplit is the share of rows written to the training set.
const DefaultTrainSplit = 0.7

// exportSeed fixes the shuffle so repeated exports of one snapshot match.
const exportSeed = 42

// TrainingRow is one labeled merchant in an exported data set.
type TrainingRow struct {
	Merchant   string `csv:"가맹점명"`
	Category   string `csv:"사용용도"`
	Provenance string `csv:"provenance"`
}

// ExportSummary reports the size of each exported set.
type ExportSummary struct {
	Train int
	Test  int
}

// ExportTrainingData shuffles the snapshot deterministically and writes the
// first split share of rows to train and the rest to test.
func ExportTrainingData(ctx context.Context, snap *refdb.Snapshot, train, test io.Writer, split float64) (ExportSummary, error) {
	if split <= 0 || split >= 1 {
		return ExportSummary{}, fmt.Errorf("%w: split must be between 0 and 1, got %v", common.ErrInvalidInput, split)
	}
	if err := ctx.Err(); err != nil {
		return ExportSummary{}, err
	}

	rows := make([]*TrainingRow, 0, snap.Len())
	for _, e := range snap.Entries() {
		rows = append(rows, &TrainingRow{
			Merchant:   e.Key,
			Category:   e.Category,
			Provenance: string(e.Provenance),
		})
	}

	rng := rand.New(rand.NewPCG(exportSeed, exportSeed))
	rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

	cut := int(float64(len(rows)) * split)
	trainRows, testRows := rows[:cut], rows[cut:]

	if err := gocsv.Marshal(&trainRows, train); err != nil {
		return ExportSummary{}, fmt.Errorf("failed to write training set: %w", err)
	}
	if err := gocsv.Marshal(&testRows, test); err != nil {
		return ExportSummary{}, fmt.Errorf("failed to write test set: %w", err)
	}

	return ExportSummary{Train: len(trainRows), Test: len(testRows)}, nil
}
