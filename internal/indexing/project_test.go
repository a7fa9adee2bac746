package indexing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cccomplete/internal/cache"
	"github.com/standardbeagle/cccomplete/internal/config"
	"github.com/standardbeagle/cccomplete/internal/resolver"
)

func projectFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.cc"), "#include \"b.h\"\nWidget w;\n")
	writeFile(t, filepath.Join(root, "src", "b.h"), "class Widget { public: void draw(); };\n")
	writeFile(t, filepath.Join(root, "README.md"), "# readme\n")
	writeFile(t, filepath.Join(root, ".git", "hooks", "x.c"), "int hidden;\n")
	writeFile(t, filepath.Join(root, "third_party", "lib.cc"), "int vendored;\n")
	writeFile(t, filepath.Join(root, "build", "gen.cc"), "int generated;\n")
	return root
}

func excludeBuild(c *config.Config) {
	c.Index.Exclude = append(c.Index.Exclude, "**/build/**")
}

func TestDiscoverFiles(t *testing.T) {
	root := projectFixture(t)
	m := newTestManager(t, root, excludeBuild)

	files, err := m.DiscoverFiles(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "src", "a.cc"),
		filepath.Join(root, "src", "b.h"),
	}, files)

	// explicit files and overlapping roots are deduplicated
	files, err = m.DiscoverFiles(context.Background(), "src", "src/b.h", "README.md")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = m.DiscoverFiles(context.Background(), "missing")
	assert.Error(t, err)
}

func TestParseProject(t *testing.T) {
	root := projectFixture(t)
	m := newTestManager(t, root, excludeBuild)

	require.NoError(t, m.ParseProject(context.Background(), nil))
	_, ok := m.Tree().LookupFile(filepath.Join(root, "src", "a.cc"))
	assert.True(t, ok)
	_, ok = m.Tree().LookupFile(filepath.Join(root, "build", "gen.cc"))
	assert.False(t, ok)

	got, err := m.Complete("w.dr", resolver.Caret{})
	require.NoError(t, err)
	assert.Equal(t, []string{"draw"}, names(got))
}

func TestParseProjectCanceled(t *testing.T) {
	root := projectFixture(t)
	m := newTestManager(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.ParseProject(ctx, nil), context.Canceled)
}

func TestSnapshotRoundTrip(t *testing.T) {
	store, err := cache.OpenInMemory(nil)
	require.NoError(t, err)
	defer store.Close()

	root := projectFixture(t)
	cfg := func() *config.Config {
		c := config.Default(root)
		excludeBuild(c)
		return c
	}
	ctx := context.Background()

	first := NewManager(cfg(), WithSnapshotStore(store))
	ok, err := first.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.ParseProject(ctx, nil))
	meta, err := first.SaveSnapshot(ctx)
	require.NoError(t, err)
	assert.Positive(t, meta.Files)
	assert.Len(t, meta.Fingerprints, 2)
	assert.Equal(t, first.Session(), meta.Session)
	tokens := first.Tree().Len()
	require.NoError(t, first.Close())

	second := NewManager(cfg(), WithSnapshotStore(store))
	defer second.Close()
	ok, err = second.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tokens, second.Tree().Len())

	res, err := second.ParseFile(ctx, filepath.Join(root, "src", "a.cc"))
	require.NoError(t, err)
	assert.True(t, res.Unchanged)

	got, err := second.Complete("w.dr", resolver.Caret{})
	require.NoError(t, err)
	assert.Equal(t, []string{"draw"}, names(got))
}

func TestWatchPicksUpNewFiles(t *testing.T) {
	root := projectFixture(t)
	m := newTestManager(t, root, excludeBuild)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.Watch(ctx))
	assert.Error(t, m.Watch(ctx), "second watcher")
	assert.True(t, m.WatchStats().IsActive)
	assert.Positive(t, m.WatchStats().Directories)

	added := writeFile(t, filepath.Join(root, "src", "new.cc"), "int fresh;\n")
	assert.Eventually(t, func() bool {
		_, ok := m.Tree().LookupFile(added)
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(added))
	assert.Eventually(t, func() bool {
		got, err := m.Complete("fres", resolver.Caret{})
		return err == nil && len(got) == 0
	}, 5*time.Second, 20*time.Millisecond)

	// files in excluded directories are ignored
	writeFile(t, filepath.Join(root, "build", "late.cc"), "int late;\n")

	cancel()
	assert.Eventually(t, func() bool { return !m.WatchStats().IsActive }, 5*time.Second, 10*time.Millisecond)
	_, ok := m.Tree().LookupFile(filepath.Join(root, "build", "late.cc"))
	assert.False(t, ok)
}
