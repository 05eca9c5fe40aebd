package refdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/model"
)

// memoryStore is an in-memory ReferenceStore with failure injection.
type memoryStore struct {
	loadErr   error
	upsertErr error
	entries   map[string]model.ReferenceEntry
	writes    []model.ReferenceEntry
	mu        sync.Mutex
}

func newMemoryStore(entries ...model.ReferenceEntry) *memoryStore {
	s := &memoryStore{entries: make(map[string]model.ReferenceEntry)}
	for _, e := range entries {
		s.entries[e.Key] = e
	}
	return s
}

func (m *memoryStore) LoadReferenceEntries(_ context.Context) ([]model.ReferenceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]model.ReferenceEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryStore) UpsertReferenceEntry(_ context.Context, entry model.ReferenceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.entries[entry.Key] = entry
	m.writes = append(m.writes, entry)
	return nil
}

func (m *memoryStore) UpsertReferenceEntries(ctx context.Context, entries []model.ReferenceEntry) error {
	for _, e := range entries {
		if err := m.UpsertReferenceEntry(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryStore) CountReferenceEntries(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLoad(t *testing.T) {
	store := newMemoryStore(
		model.ReferenceEntry{Key: "서브웨이", Category: "중식대", Provenance: model.ProvenanceManual},
		model.ReferenceEntry{Key: "다이소", Category: "소모품비", Provenance: model.ProvenanceManual},
	)

	db, err := Load(context.Background(), store)
	require.NoError(t, err)

	snap := db.Snapshot()
	assert.Equal(t, 2, snap.Len())
	e, ok := snap.Lookup("서브웨이")
	require.True(t, ok)
	assert.Equal(t, "중식대", e.Category)
	assert.Equal(t, []string{"소모품비", "중식대"}, snap.Categories())
	assert.Equal(t, "다이소", snap.Entries()[0].Key)
}

func TestLoad_PersistenceFailureIsFatal(t *testing.T) {
	store := newMemoryStore()
	store.loadErr = errors.New("database is locked")

	_, err := Load(context.Background(), store)
	assert.ErrorIs(t, err, common.ErrPersistence)
}

func TestUpsert_CopyOnWrite(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	db, err := Load(context.Background(), newMemoryStore(), WithClock(fixedClock(now)))
	require.NoError(t, err)

	before := db.Snapshot()
	entry, existed, err := db.Upsert(context.Background(), model.ReferenceEntry{
		Key: "와와식당", Category: "중식대", Provenance: model.ProvenanceFeedback,
	})
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, now, entry.UpdatedAt)

	_, ok := before.Lookup("와와식당")
	assert.False(t, ok, "earlier snapshots must not observe later writes")

	after := db.Snapshot()
	got, ok := after.Lookup("와와식당")
	require.True(t, ok)
	assert.Equal(t, now, got.UpdatedAt)
	assert.Equal(t, before.Version()+1, after.Version())
}

func TestUpsert_LastWriteWins(t *testing.T) {
	store := newMemoryStore()
	db, err := Load(context.Background(), store)
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = db.Upsert(ctx, model.ReferenceEntry{Key: "신사", Category: "기타", Provenance: model.ProvenanceFeedback})
	require.NoError(t, err)
	_, existed, err := db.Upsert(ctx, model.ReferenceEntry{Key: "신사", Category: "수수료", Provenance: model.ProvenanceFeedback})
	require.NoError(t, err)
	assert.True(t, existed)

	e, _ := db.Snapshot().Lookup("신사")
	assert.Equal(t, "수수료", e.Category)
	assert.Equal(t, "수수료", store.entries["신사"].Category)
}

func TestUpsert_PersistenceFailureLeavesSnapshot(t *testing.T) {
	store := newMemoryStore()
	db, err := Load(context.Background(), store)
	require.NoError(t, err)
	store.upsertErr = errors.New("disk I/O error")

	_, _, err = db.Upsert(context.Background(), model.ReferenceEntry{Key: "A", Category: "B", Provenance: model.ProvenanceFeedback})
	require.ErrorIs(t, err, common.ErrPersistence)
	assert.Zero(t, db.Snapshot().Len())
}

func TestImport(t *testing.T) {
	db, err := Load(context.Background(), newMemoryStore())
	require.NoError(t, err)

	require.NoError(t, db.Import(context.Background(), []model.ReferenceEntry{
		{Key: "A", Category: "중식대", Provenance: model.ProvenanceManual},
		{Key: "B", Category: "세금", Provenance: model.ProvenanceManual},
		{Key: "A", Category: "기타", Provenance: model.ProvenanceManual},
	}))

	snap := db.Snapshot()
	assert.Equal(t, 2, snap.Len())
	e, _ := snap.Lookup("A")
	assert.Equal(t, "기타", e.Category)
	assert.Equal(t, uint64(1), snap.Version())

	require.NoError(t, db.Import(context.Background(), nil))
}

func TestUpsert_ConcurrentWritersSerialize(t *testing.T) {
	db, err := Load(context.Background(), newMemoryStore())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := db.Upsert(context.Background(), model.ReferenceEntry{
				Key: string(rune('A' + i)), Category: "기타", Provenance: model.ProvenanceFeedback,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, db.Snapshot().Len())
	assert.Equal(t, uint64(20), db.Snapshot().Version())
}
