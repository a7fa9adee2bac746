// Package cache persists token tree snapshots in badger so a project can be
// reopened without reparsing every file.
package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"

	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/version"
)

// SchemaVersion changes whenever the snapshot payload layout does.
const SchemaVersion = "1"

// Key schema:
//
//	snap:{projectHash}:data -> gzip(JSON(tree.Snapshot))
//	snap:{projectHash}:meta -> JSON(Meta)
const (
	keyPrefix  = "snap:"
	keySuffixD = ":data"
	keySuffixM = ":meta"
)

// ErrNotFound is returned by Load when no snapshot exists for a project.
var ErrNotFound = errors.New("snapshot not found")

// Meta describes one stored snapshot.
type Meta struct {
	ProjectRoot    string            `json:"project_root"`
	ProjectHash    string            `json:"project_hash"`
	Session        string            `json:"session,omitempty"`
	Build          string            `json:"build"`
	SchemaVersion  string            `json:"schema_version"`
	CreatedAtMilli int64             `json:"created_at_milli"`
	Files          int               `json:"files"`
	Tokens         int               `json:"tokens"`
	CompressedSize int64             `json:"compressed_size"`
	ContentHash    uint64            `json:"content_hash"`
	Fingerprints   map[string]uint64 `json:"fingerprints,omitempty"`
}

// Store saves and loads snapshots. Safe for concurrent use; badger handles
// its own transactions.
type Store struct {
	db     *badger.DB
	log    *debug.Logger
	ownsDB bool
}

// Open opens (or creates) a badger database in dir.
func Open(dir string, log *debug.Logger) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening snapshot cache %s: %w", dir, err)
	}
	s, _ := New(db, log)
	s.ownsDB = true
	return s, nil
}

// OpenInMemory opens a throwaway database, used by tests and by sessions
// with caching disabled.
func OpenInMemory(log *debug.Logger) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening in-memory snapshot cache: %w", err)
	}
	s, _ := New(db, log)
	s.ownsDB = true
	return s, nil
}

// New wraps an already opened database. The caller keeps ownership of db.
func New(db *badger.DB, log *debug.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if log == nil {
		log = debug.Discard()
	}
	return &Store{db: db, log: log}, nil
}

// ProjectHash returns the key prefix used for a project root.
func ProjectHash(root string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(root))
}

func dataKey(hash string) []byte { return []byte(keyPrefix + hash + keySuffixD) }
func metaKey(hash string) []byte { return []byte(keyPrefix + hash + keySuffixM) }

// Save replaces the stored snapshot of root. fingerprints maps each parsed
// path to the content hash it had when parsed.
func (s *Store) Save(ctx context.Context, root, session string, snap *tree.Snapshot, fingerprints map[string]uint64) (*Meta, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	payload := compressed.Bytes()

	hash := ProjectHash(root)
	meta := &Meta{
		ProjectRoot:    root,
		ProjectHash:    hash,
		Session:        session,
		Build:          version.BuildID(),
		SchemaVersion:  SchemaVersion,
		CreatedAtMilli: time.Now().UnixMilli(),
		Files:          len(snap.Files),
		Tokens:         len(snap.Tokens),
		CompressedSize: int64(len(payload)),
		ContentHash:    xxhash.Sum64(payload),
		Fingerprints:   fingerprints,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dataKey(hash), payload); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set(metaKey(hash), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	s.log.Log(debug.ComponentTree, "snapshot saved for %s: %d tokens, %d bytes", root, meta.Tokens, meta.CompressedSize)
	return meta, nil
}

// Load returns the stored snapshot of root, verifying its content hash and
// schema version.
func (s *Store) Load(ctx context.Context, root string) (*tree.Snapshot, *Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	hash := ProjectHash(root)

	var payload, metaJSON []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(hash))
		if err != nil {
			return err
		}
		if metaJSON, err = item.ValueCopy(nil); err != nil {
			return err
		}
		item, err = txn.Get(dataKey(hash))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading snapshot for %s: %w", root, err)
	}

	var meta Meta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", root, err)
	}
	if meta.SchemaVersion != SchemaVersion {
		return nil, nil, fmt.Errorf("snapshot for %s has schema %q, want %q: %w", root, meta.SchemaVersion, SchemaVersion, ErrNotFound)
	}
	if actual := xxhash.Sum64(payload); actual != meta.ContentHash {
		return nil, nil, fmt.Errorf("integrity check failed for %s: expected %016x, got %016x", root, meta.ContentHash, actual)
	}

	gr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing snapshot for %s: %w", root, err)
	}
	defer gr.Close()
	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, nil, fmt.Errorf("reading decompressed snapshot for %s: %w", root, err)
	}
	var snap tree.Snapshot
	if err := json.Unmarshal(jsonData, &snap); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling snapshot for %s: %w", root, err)
	}

	s.log.Log(debug.ComponentTree, "snapshot loaded for %s: %d tokens", root, len(snap.Tokens))
	return &snap, &meta, nil
}

// Delete removes the stored snapshot of root. Missing snapshots are not an error.
func (s *Store) Delete(root string) error {
	hash := ProjectHash(root)
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range [][]byte{dataKey(hash), metaKey(hash)} {
			if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

// Close closes the database when the store opened it.
func (s *Store) Close() error {
	if s == nil || !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
