// Package refdb holds the in-memory reference database used by the matchers.
package refdb

import (
	"sort"

	"github.com/Veraticus/card-purpose/internal/model"
)

// Snapshot is an immutable view of the reference database. It is safe for
// concurrent readers.
type Snapshot struct {
	entries map[string]model.ReferenceEntry
	keys    []string
	version uint64
}

// NewSnapshot builds a snapshot from entries. Later duplicates win.
func NewSnapshot(entries []model.ReferenceEntry) *Snapshot {
	m := make(map[string]model.ReferenceEntry, len(entries))
	for _, e := range entries {
		m[e.Key] = e
	}
	return newSnapshot(m, 0)
}

func newSnapshot(entries map[string]model.ReferenceEntry, version uint64) *Snapshot {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Snapshot{entries: entries, keys: keys, version: version}
}

// Lookup returns the entry for key.
func (s *Snapshot) Lookup(key string) (model.ReferenceEntry, bool) {
	if s == nil {
		return model.ReferenceEntry{}, false
	}
	e, ok := s.entries[key]
	return e, ok
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Version increases by one for every write applied to the database.
func (s *Snapshot) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

// Each calls fn for every entry in key order until fn returns false.
func (s *Snapshot) Each(fn func(model.ReferenceEntry) bool) {
	if s == nil {
		return
	}
	for _, k := range s.keys {
		if !fn(s.entries[k]) {
			return
		}
	}
}

// Entries returns all entries in key order.
func (s *Snapshot) Entries() []model.ReferenceEntry {
	out := make([]model.ReferenceEntry, 0, s.Len())
	s.Each(func(e model.ReferenceEntry) bool {
		out = append(out, e)
		return true
	})
	return out
}

// Categories returns the distinct categories present, sorted.
func (s *Snapshot) Categories() []string {
	seen := make(map[string]struct{})
	s.Each(func(e model.ReferenceEntry) bool {
		seen[e.Category] = struct{}{}
		return true
	})
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// with returns a copy of s with entry applied.
func (s *Snapshot) with(entry model.ReferenceEntry) *Snapshot {
	return s.withAll([]model.ReferenceEntry{entry})
}

// withAll returns a copy of s with entries applied in order.
func (s *Snapshot) withAll(entries []model.ReferenceEntry) *Snapshot {
	m := make(map[string]model.ReferenceEntry, s.Len()+len(entries))
	if s != nil {
		for k, v := range s.entries {
			m[k] = v
		}
	}
	for _, e := range entries {
		m[e.Key] = e
	}
	return newSnapshot(m, s.Version()+1)
}
