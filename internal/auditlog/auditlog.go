// Package auditlog keeps the append-only feedback history in a bolt database.
package auditlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"

	"github.com/Veraticus/card-purpose/internal/model"
)

var bucketName = []byte("feedback")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("audit log closed")

// Log is an append-only store of feedback audit entries. Entries are keyed by
// a monotonically increasing sequence and are never rewritten.
type Log struct {
	db *bolt.DB
}

// Open opens or creates the audit log at path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create audit bucket: %w", err)
	}

	return &Log{db: db}, nil
}

// Append writes entry under the next sequence number and returns it.
func (l *Log) Append(ctx context.Context, entry model.AuditEntry) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var seq uint64
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		next, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		entry.Sequence = next

		val, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode audit entry: %w", err)
		}
		if err := b.Put(itob(next), val); err != nil {
			return err
		}
		seq = next
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return seq, nil
}

// Count returns the number of entries in the log.
func (l *Log) Count(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n uint64
	err := l.db.View(func(tx *bolt.Tx) error {
		n = uint64(tx.Bucket(bucketName).Stats().KeyN)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return n, nil
}

// List returns up to limit entries starting at fromSequence. A non-positive
// limit returns everything from fromSequence on.
func (l *Log) List(ctx context.Context, fromSequence uint64, limit int) ([]model.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []model.AuditEntry
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(itob(fromSequence)); k != nil; k, v = c.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var entry model.AuditEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to decode audit entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close releases the underlying database.
func (l *Log) Close() error {
	if l.db == nil {
		return ErrClosed
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
