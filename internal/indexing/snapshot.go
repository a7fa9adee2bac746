package indexing

import (
	"context"
	stderrors "errors"

	"github.com/standardbeagle/cccomplete/internal/cache"
	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/errors"
	"github.com/standardbeagle/cccomplete/internal/tree"
)

// snapshotStore returns the store given with WithSnapshotStore or opens the
// one under the configured cache directory.
func (m *Manager) snapshotStore() (*cache.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.ErrManagerClose
	}
	if m.store != nil {
		return m.store, nil
	}
	s, err := cache.Open(m.cfg.CacheDir(), m.log)
	if err != nil {
		return nil, err
	}
	m.store, m.ownStore = s, true
	return s, nil
}

// SaveSnapshot stores the tree and the content fingerprints of its files.
// Running parses finish first; queued ones wait until the copy is taken.
func (m *Manager) SaveSnapshot(ctx context.Context) (*cache.Meta, error) {
	store, err := m.snapshotStore()
	if err != nil {
		return nil, err
	}

	m.pause()
	var snap *tree.Snapshot
	_ = m.tree.View(func(s *tree.Store) error {
		snap = s.Snapshot()
		return nil
	})
	m.mu.Lock()
	fingerprints := make(map[string]uint64, len(m.fingerprints))
	for p, fp := range m.fingerprints {
		fingerprints[p] = fp
	}
	m.mu.Unlock()
	m.resume()

	return store.Save(ctx, m.cfg.Project.Root, m.session, snap, fingerprints)
}

// LoadSnapshot replaces the tree with the stored snapshot of the project.
// It reports false when there is none. Files whose content still matches
// the stored fingerprints are skipped by later parses.
func (m *Manager) LoadSnapshot(ctx context.Context) (bool, error) {
	store, err := m.snapshotStore()
	if err != nil {
		return false, err
	}
	snap, meta, err := store.Load(ctx, m.cfg.Project.Root)
	if stderrors.Is(err, cache.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s, err := tree.FromSnapshot(snap)
	if err != nil {
		return false, errors.NewIndexingError("load snapshot", err)
	}

	m.pause()
	m.tree.Replace(s)
	m.mu.Lock()
	m.fingerprints = make(map[string]uint64, len(meta.Fingerprints))
	for p, fp := range meta.Fingerprints {
		m.fingerprints[p] = fp
	}
	m.mu.Unlock()
	m.resume()

	m.metrics.SetTreeTokens(m.tree.Len())
	m.log.Log(debug.ComponentManager, "snapshot of session %s loaded: %d files, %d tokens",
		meta.Session, meta.Files, meta.Tokens)
	return true, nil
}
