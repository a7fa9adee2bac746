package tree

import (
	"sync"
	"sync/atomic"

	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// Tree is the shared token tree of one parser session. All access goes
// through View (shared) or Update (exclusive), so a multi-step traversal never
// observes a half-applied mutation batch.
type Tree struct {
	mu    sync.RWMutex
	store *Store
	log   *debug.Logger

	// epoch counts completed Update batches.
	epoch atomic.Uint64
}

// New creates an empty tree. A nil logger discards output.
func New(log *debug.Logger) *Tree {
	if log == nil {
		log = debug.Discard()
	}
	return &Tree{store: NewStore(), log: log}
}

// View runs fn with shared access. fn must not retain or modify the store.
func (t *Tree) View(fn func(s *Store) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fn(t.store)
}

// Update runs fn with exclusive access as one mutation batch.
func (t *Tree) Update(fn func(s *Store) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.epoch.Add(1)
	return fn(t.store)
}

// Epoch returns the number of completed mutation batches.
func (t *Tree) Epoch() uint64 {
	return t.epoch.Load()
}

// Replace swaps in a new store, e.g. one loaded from a snapshot.
func (t *Tree) Replace(s *Store) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store = s
	t.epoch.Add(1)
	t.log.Log(debug.ComponentTree, "store replaced (%d tokens)", s.Len())
}

// Len returns the number of live tokens.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Len()
}

// Clear removes every token.
func (t *Tree) Clear() {
	_ = t.Update(func(s *Store) error {
		s.Clear()
		return nil
	})
}

// FileIndex returns the index of path, allocating one on first use.
func (t *Tree) FileIndex(path string) types.FileIdx {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.FileIndex(path)
}

// LookupFile returns the index of a known path.
func (t *Tree) LookupFile(path string) (types.FileIdx, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.LookupFile(path)
}
