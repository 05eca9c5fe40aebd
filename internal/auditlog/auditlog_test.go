package auditlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/card-purpose/internal/model"
)

func openTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit", "feedback.db")
	l, err := Open(path)
	require.NoError(t, err)
	return l, path
}

func entry(key, confirmed string) model.AuditEntry {
	return model.AuditEntry{
		Record: model.FeedbackRecord{
			MerchantKey:       key,
			ConfirmedCategory: confirmed,
			ReceivedAt:        time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
			OriginalSource:    model.SourceAIPrediction,
		},
		Outcome: model.FeedbackInserted,
	}
}

func TestAppend_AssignsIncreasingSequence(t *testing.T) {
	l, _ := openTestLog(t)
	defer func() { _ = l.Close() }()
	ctx := context.Background()

	first, err := l.Append(ctx, entry("와와식당", "중식대"))
	require.NoError(t, err)
	second, err := l.Append(ctx, entry("와와식당", "기타"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)

	count, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	entries, err := l.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "중식대", entries[0].Record.ConfirmedCategory)
	assert.Equal(t, "기타", entries[1].Record.ConfirmedCategory)
	assert.Equal(t, uint64(2), entries[1].Sequence)
	assert.True(t, entries[0].Record.ReceivedAt.Equal(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)))
}

func TestList_FromAndLimit(t *testing.T) {
	l, _ := openTestLog(t)
	defer func() { _ = l.Close() }()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.Append(ctx, entry("다이소", "소모품비"))
		require.NoError(t, err)
	}

	entries, err := l.List(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(3), entries[0].Sequence)
	assert.Equal(t, uint64(4), entries[1].Sequence)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	l, path := openTestLog(t)
	ctx := context.Background()
	_, err := l.Append(ctx, entry("서브웨이", "중식대"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	seq, err := reopened.Append(ctx, entry("서브웨이", "중식대"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
}

func TestAppend_CanceledContext(t *testing.T) {
	l, _ := openTestLog(t)
	defer func() { _ = l.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Append(ctx, entry("A", "B"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClose_Twice(t *testing.T) {
	l, _ := openTestLog(t)
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Close(), ErrClosed)
}
