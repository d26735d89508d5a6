package storage

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Store is the pebble database behind the dex. Every mutating dex call runs
// in one Txn so it commits fully or not at all.
type Store struct {
	db *pebble.DB
}

// Open opens a Pebble database at the given path.
func Open(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(128 << 20), // 128MB cache
		MemTableSize:             64 << 20,                   // 64MB memtable
		MaxConcurrentCompactions: func() int { return 3 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		LBaseMaxBytes:            64 << 20,
		MaxOpenFiles:             1000,
		BytesPerSync:             512 << 10,
	}
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store backed by an in-memory filesystem.
func OpenInMemory() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory pebble db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// View returns a reader over committed state.
func (s *Store) View() *View { return &View{r: s.db} }

// Begin starts a transaction. Reads through the Txn see its own writes.
func (s *Store) Begin() *Txn {
	b := s.db.NewIndexedBatch()
	return &Txn{View: View{r: b}, batch: b}
}

// Txn is an atomic unit of writes over an indexed pebble batch.
type Txn struct {
	View
	batch  *pebble.Batch
	closed bool
}

// Commit durably applies every write of the Txn.
func (t *Txn) Commit() error {
	if t.closed {
		return errors.New("transaction already closed")
	}
	t.closed = true
	defer t.batch.Close()
	if err := t.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Discard drops uncommitted writes. It is safe after Commit.
func (t *Txn) Discard() {
	if t.closed {
		return
	}
	t.closed = true
	_ = t.batch.Close()
}

func (t *Txn) set(key []byte, v any) error {
	val, err := encodeJSON(v)
	if err != nil {
		return err
	}
	return t.batch.Set(key, val, nil)
}

func (t *Txn) setRaw(key, val []byte) error {
	return t.batch.Set(key, val, nil)
}

func (t *Txn) del(key []byte) error {
	return t.batch.Delete(key, nil)
}
