package cache

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cccomplete/internal/parser"
	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/version"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func buildSnapshot(t *testing.T) *tree.Snapshot {
	t.Helper()
	tr := tree.New(nil)
	opts := parser.DefaultOptions()
	opts.UseBuffer = true
	src := "namespace ns { class Foo { public: int bar; void baz(int x); }; }\nint global;\n"
	_, err := parser.NewParserThread(tr, "/proj/a.cc", src, opts, nil).Parse(context.Background())
	require.NoError(t, err)
	var snap *tree.Snapshot
	_ = tr.View(func(s *tree.Store) error {
		snap = s.Snapshot()
		return nil
	})
	return snap
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	snap := buildSnapshot(t)

	meta, err := s.Save(ctx, "/proj", "session-1", snap, map[string]uint64{"/proj/a.cc": 42})
	require.NoError(t, err)
	assert.Equal(t, ProjectHash("/proj"), meta.ProjectHash)
	assert.Equal(t, len(snap.Tokens), meta.Tokens)
	assert.Positive(t, meta.CompressedSize)

	loaded, loadedMeta, err := s.Load(ctx, "/proj")
	require.NoError(t, err)
	assert.Equal(t, snap.Files, loaded.Files)
	assert.Len(t, loaded.Tokens, len(snap.Tokens))
	assert.Equal(t, uint64(42), loadedMeta.Fingerprints["/proj/a.cc"])
	assert.Equal(t, "session-1", loadedMeta.Session)
	assert.Equal(t, version.BuildID(), loadedMeta.Build)

	store, err := tree.FromSnapshot(loaded)
	require.NoError(t, err)
	assert.NotEmpty(t, store.FindByName("Foo"))
	assert.NotEmpty(t, store.FindByName("baz"))
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Load(context.Background(), "/nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveReplacesPrevious(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	snap := buildSnapshot(t)
	_, err := s.Save(ctx, "/proj", "", snap, nil)
	require.NoError(t, err)

	empty := &tree.Snapshot{}
	_, err = s.Save(ctx, "/proj", "", empty, nil)
	require.NoError(t, err)

	loaded, _, err := s.Load(ctx, "/proj")
	require.NoError(t, err)
	assert.Empty(t, loaded.Tokens)
}

func TestProjectsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Save(ctx, "/a", "", buildSnapshot(t), nil)
	require.NoError(t, err)

	_, _, err = s.Load(ctx, "/b")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete("/a"))
	require.NoError(t, s.Delete("/a"))
	_, _, err = s.Load(ctx, "/a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCorruptPayloadIsRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Save(ctx, "/proj", "", buildSnapshot(t), nil)
	require.NoError(t, err)

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dataKey(ProjectHash("/proj")), []byte("garbage"))
	})
	require.NoError(t, err)

	_, _, err = s.Load(ctx, "/proj")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integrity check failed")
}

func TestCanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Save(ctx, "/proj", "", &tree.Snapshot{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsNilDB(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}
