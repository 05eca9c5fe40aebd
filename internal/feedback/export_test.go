package feedback_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/feedback"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/refdb"
)

func exportSnapshot(n int) *refdb.Snapshot {
	entries := make([]model.ReferenceEntry, n)
	for i := range entries {
		entries[i] = model.ReferenceEntry{
			Key:        fmt.Sprintf("가맹점%02d", i),
			Category:   "중식대",
			Provenance: model.ProvenanceManual,
		}
	}
	return refdb.NewSnapshot(entries)
}

func TestExportTrainingData(t *testing.T) {
	snap := exportSnapshot(10)

	var train, test bytes.Buffer
	summary, err := feedback.ExportTrainingData(context.Background(), snap, &train, &test, feedback.DefaultTrainSplit)
	require.NoError(t, err)

	assert.Equal(t, 7, summary.Train)
	assert.Equal(t, 3, summary.Test)

	trainLines := strings.Split(strings.TrimSpace(train.String()), "\n")
	testLines := strings.Split(strings.TrimSpace(test.String()), "\n")
	assert.Equal(t, "가맹점명,사용용도,provenance", trainLines[0])
	assert.Len(t, trainLines, 8)
	assert.Len(t, testLines, 4)

	// Every entry lands in exactly one set.
	seen := map[string]bool{}
	for _, line := range append(trainLines[1:], testLines[1:]...) {
		key := strings.SplitN(line, ",", 2)[0]
		assert.False(t, seen[key], key)
		seen[key] = true
	}
	assert.Len(t, seen, 10)
}

func TestExportTrainingData_Deterministic(t *testing.T) {
	var a, b, discard bytes.Buffer
	_, err := feedback.ExportTrainingData(context.Background(), exportSnapshot(20), &a, &discard, 0.5)
	require.NoError(t, err)
	_, err = feedback.ExportTrainingData(context.Background(), exportSnapshot(20), &b, &discard, 0.5)
	require.NoError(t, err)

	assert.Equal(t, a.String(), b.String())
}

func TestExportTrainingData_InvalidSplit(t *testing.T) {
	var w bytes.Buffer
	for _, split := range []float64{0, 1, -0.3, 1.5} {
		_, err := feedback.ExportTrainingData(context.Background(), exportSnapshot(3), &w, &w, split)
		require.ErrorIs(t, err, common.ErrInvalidInput, "split %v", split)
	}
}
