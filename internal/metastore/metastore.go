// Package metastore implements the metadata-store client: CRUD over
// HashTracker records keyed by content hash, backed by an embedded
// Badger key/value database standing in for a DynamoDB table. The
// on-disk encoding still carries the "NONE" sentinel for empty path
// sets, even though Badger itself has no trouble storing an empty list
// — kept for fidelity to the documented wire schema (file_names/
// expiration) rather than out of necessity.
package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// noneSentinel stands in for an empty path set in the encoded record.
// Stripped on read, inserted on write.
const noneSentinel = "NONE"

// HashTracker is the content-addressed record mapping one content hash
// to the set of paths currently resolving to it, plus an expiration
// deadline after which the tombstone becomes permanently purgeable.
type HashTracker struct {
	Hash       string
	Paths      map[string]struct{}
	Expiration time.Time
}

// NewEmptyTracker returns the "never existed" sentinel value a lookup
// miss resolves to: empty paths, expiration at the epoch.
func NewEmptyTracker(hash string) *HashTracker {
	return &HashTracker{Hash: hash, Paths: map[string]struct{}{}, Expiration: time.Unix(0, 0).UTC()}
}

// HasPaths reports whether any path currently resolves to this hash.
func (h *HashTracker) HasPaths() bool { return len(h.Paths) > 0 }

// record is the on-disk JSON encoding of a HashTracker, named after the
// original attribute names (file_names/expiration) for schema parity.
type record struct {
	FileNames  []string `json:"file_names"`
	Expiration int64    `json:"expiration"`
}

func encode(t *HashTracker) ([]byte, error) {
	names := make([]string, 0, len(t.Paths))
	for p := range t.Paths {
		names = append(names, p)
	}

	if len(names) == 0 {
		names = []string{noneSentinel}
	}

	return json.Marshal(record{FileNames: names, Expiration: t.Expiration.Unix()})
}

func decode(hash string, data []byte) (*HashTracker, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("metastore: decode record for %s: %w", hash, err)
	}

	paths := make(map[string]struct{}, len(r.FileNames))

	for _, n := range r.FileNames {
		if n == noneSentinel {
			continue
		}

		paths[n] = struct{}{}
	}

	return &HashTracker{Hash: hash, Paths: paths, Expiration: time.Unix(r.Expiration, 0).UTC()}, nil
}

// Store wraps a Badger database with the five operations the
// reconciliation engine consumes.
type Store struct {
	db *badger.DB
}

// Config mirrors the shape of the embedded-store configuration used
// throughout the reference examples: in-memory for tests, path-backed
// for production, with Badger's own GC and sync-write knobs exposed.
type Config struct {
	InMemory          bool
	Path              string
	SyncWrites        bool
	NumVersionsToKeep int
}

// DefaultConfig returns sync-writes-on, single-version, path-backed
// defaults (override Path).
func DefaultConfig() Config {
	return Config{SyncWrites: true, NumVersionsToKeep: 1}
}

// InMemoryConfig returns defaults suitable for tests: no disk footprint.
func InMemoryConfig() Config {
	cfg := DefaultConfig()
	cfg.InMemory = true

	return cfg
}

// Open opens (or creates) the Badger database described by cfg.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.InMemory = cfg.InMemory
	opts.SyncWrites = cfg.SyncWrites
	opts.NumVersionsToKeep = cfg.NumVersionsToKeep
	opts.Logger = nil // the engine logs via slog at a higher level

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("metastore: open badger: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying Badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the tracker for hash, or (nil, false, nil) if it does not
// exist — per the error taxonomy, not-found is not an error.
func (s *Store) Get(ctx context.Context, hash string) (*HashTracker, bool, error) {
	var tracker *HashTracker

	err := s.withTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}

		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			t, decodeErr := decode(hash, val)
			if decodeErr != nil {
				return decodeErr
			}

			tracker = t

			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("metastore: get %s: %w", hash, err)
	}

	return tracker, tracker != nil, nil
}

// GetAll streams every HashTracker record via a full-table scan. The
// backing Badger iterator already streams records incrementally, so the
// paginated-scan contract other metadata-store backends would need is
// satisfied without an explicit page token.
func (s *Store) GetAll(ctx context.Context) ([]*HashTracker, error) {
	var out []*HashTracker

	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			hash := string(item.KeyCopy(nil))

			err := item.Value(func(val []byte) error {
				t, err := decode(hash, val)
				if err != nil {
					return err
				}

				out = append(out, t)

				return nil
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("metastore: get_all: %w", err)
	}

	return out, nil
}

// Put unconditionally upserts tracker.
func (s *Store) Put(ctx context.Context, tracker *HashTracker) error {
	data, err := encode(tracker)
	if err != nil {
		return fmt.Errorf("metastore: encode %s: %w", tracker.Hash, err)
	}

	err = s.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(tracker.Hash), data)
	})
	if err != nil {
		return fmt.Errorf("metastore: put %s: %w", tracker.Hash, err)
	}

	return nil
}

// Delete unconditionally removes the record for hash.
func (s *Store) Delete(ctx context.Context, hash string) error {
	err := s.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(hash))
	})
	if err != nil {
		return fmt.Errorf("metastore: delete %s: %w", hash, err)
	}

	return nil
}

// Update is the convenience operation from §4.4: delete iff paths is
// empty and the tracker has expired, otherwise put.
func (s *Store) Update(ctx context.Context, tracker *HashTracker, now time.Time) error {
	if !tracker.HasPaths() && !tracker.Expiration.After(now) {
		return s.Delete(ctx, tracker.Hash)
	}

	return s.Put(ctx, tracker)
}

// withTxn runs fn inside a read-write Badger transaction, committing on
// success. Grounded on the WithTxn shape expected by the embedded-store
// test fixtures in the reference pack.
func (s *Store) withTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	return s.db.Update(fn)
}

// withReadTxn runs fn inside a read-only Badger transaction.
func (s *Store) withReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	return s.db.View(fn)
}
