package indexing

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/cccomplete/internal/config"
	"github.com/standardbeagle/cccomplete/internal/errors"
	"github.com/standardbeagle/cccomplete/internal/resolver"
	"github.com/standardbeagle/cccomplete/internal/security"
	"github.com/standardbeagle/cccomplete/internal/tree"
)

func newTestManager(t *testing.T, root string, tweak ...func(*config.Config)) *Manager {
	t.Helper()
	cfg := config.Default(root)
	cfg.Performance.ParallelFileWorkers = 2
	cfg.Performance.DebounceMs = 10
	cfg.Index.WatchDebounceMs = 10
	for _, fn := range tweak {
		fn(cfg)
	}
	m := NewManager(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func names(cands []resolver.Candidate) []string {
	var out []string
	for _, c := range cands {
		out = append(out, c.Name)
	}
	return out
}

func waitIdle(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.WaitIdle(ctx))
}

const fooSource = `class Foo {
public:
    int Bar;
    int Baz();
};
Foo Foo_instance;
`

func TestParseBufferAndComplete(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	res, err := m.ParseBuffer(context.Background(), "a.cc", fooSource)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.Config().Project.Root, "a.cc"), res.Path)
	assert.Positive(t, res.Inserted)

	got, err := m.Complete("    Foo_instance.Ba", resolver.Caret{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Bar", "Baz"}, names(got))

	got, err = m.Complete("Foo_instance.Qux", resolver.Caret{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCompleteHonorsMaxResults(t *testing.T) {
	m := newTestManager(t, t.TempDir(), func(c *config.Config) { c.Completion.MaxResults = 1 })
	_, err := m.ParseBuffer(context.Background(), "a.cc", fooSource)
	require.NoError(t, err)

	got, err := m.Complete("Foo_instance.Ba", resolver.Caret{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestParseFileSkipsUnchangedContent(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, filepath.Join(root, "a.cc"), "int alpha;\n")
	m := newTestManager(t, root)
	ctx := context.Background()

	res, err := m.ParseFile(ctx, path)
	require.NoError(t, err)
	assert.False(t, res.Unchanged)

	res, err = m.ParseFile(ctx, "a.cc")
	require.NoError(t, err)
	assert.True(t, res.Unchanged)

	writeFile(t, path, "int alpha;\nint beta;\n")
	res, err = m.ParseFile(ctx, path)
	require.NoError(t, err)
	assert.False(t, res.Unchanged)
	assert.Equal(t, 2, m.Tree().Len())

	series, err := testutil.GatherAndCount(m.Registry(), "cccomplete_parser_files_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "parsed and skipped series")
}

func TestParseFileMissingLeavesTreeUntouched(t *testing.T) {
	root := t.TempDir()
	m := newTestManager(t, root)
	ctx := context.Background()
	_, err := m.ParseBuffer(ctx, "gone.cc", "int kept;\n")
	require.NoError(t, err)

	_, err = m.ParseFile(ctx, "gone.cc")
	require.Error(t, err)
	var fe *errors.FileError
	assert.True(t, stderrors.As(err, &fe))
	assert.Equal(t, 1, m.Tree().Len())
}

func TestParseFileRejectsBinaryAndOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pch.h"), "CPCH\x00\x01\x02int x;")
	writeFile(t, filepath.Join(root, "big.cc"), strings.Repeat("int x;\n", 64))

	cfg := config.Default(root)
	cfg.Performance.ParallelFileWorkers = 2
	m := NewManager(cfg, WithMaxFileSize(128))
	t.Cleanup(func() { _ = m.Close() })
	ctx := context.Background()

	_, err := m.ParseFile(ctx, "pch.h")
	var fe *errors.FileError
	require.True(t, stderrors.As(err, &fe), "%v", err)
	assert.ErrorIs(t, err, security.ErrBinary)

	_, err = m.ParseFile(ctx, "big.cc")
	assert.ErrorIs(t, err, security.ErrTooLarge)
	assert.Zero(t, m.Tree().Len())
}

func TestRemoveFile(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	ctx := context.Background()
	_, err := m.ParseBuffer(ctx, "a.cc", fooSource)
	require.NoError(t, err)
	before := m.Tree().Len()

	removed, err := m.RemoveFile(ctx, "a.cc")
	require.NoError(t, err)
	assert.Equal(t, before, removed)
	assert.Equal(t, 0, m.Tree().Len())

	removed, err = m.RemoveFile(ctx, "never.cc")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestEnqueueAndWaitIdle(t *testing.T) {
	root := t.TempDir()
	var paths []string
	for _, name := range []string{"a.cc", "b.cc", "c.cc"} {
		paths = append(paths, writeFile(t, filepath.Join(root, name), "int v_"+strings.TrimSuffix(name, ".cc")+";\n"))
	}
	m := newTestManager(t, root)
	require.NoError(t, m.Enqueue(paths...))
	require.NoError(t, m.Enqueue(paths[0]))
	waitIdle(t, m)

	assert.Zero(t, m.Pending())
	for _, p := range paths {
		_, ok := m.Tree().LookupFile(p)
		assert.True(t, ok, p)
	}
	assert.Equal(t, 3, m.Tree().Len())
}

func TestAbortBuildingTreeKeepsTreeValid(t *testing.T) {
	root := t.TempDir()
	var paths []string
	for i := 0; i < 40; i++ {
		name := filepath.Join(root, "f"+string(rune('a'+i%26))+strings.Repeat("x", i/26)+".cc")
		paths = append(paths, writeFile(t, name, "class C { public: int a; int b; };\nint g;\n"))
	}
	m := newTestManager(t, root)
	require.NoError(t, m.Enqueue(paths...))
	m.AbortBuildingTree()

	assert.Zero(t, m.Pending())
	waitIdle(t, m)
	require.NoError(t, m.Tree().View(func(s *tree.Store) error { return s.Validate() }))

	// the manager keeps working after an abort
	res, err := m.ParseBuffer(context.Background(), "after.cc", "int after;\n")
	require.NoError(t, err)
	assert.False(t, res.Aborted)
}

// cancelAfter reports cancellation from its n+1th Err call on, which lands
// an abort between two commit batches of one parse.
type cancelAfter struct {
	context.Context
	n int
}

func (c *cancelAfter) Err() error {
	if c.n > 0 {
		c.n--
		return nil
	}
	return context.Canceled
}

func treeHas(m *Manager, name string) bool {
	found := false
	_ = m.Tree().View(func(s *tree.Store) error {
		found = s.FindByName(name).Len() > 0
		return nil
	})
	return found
}

func TestAbortedParseForgetsFingerprint(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	ctx := context.Background()
	const original = "int a1;\nint a2;\n"
	_, err := m.ParseBuffer(ctx, "edit.cc", original)
	require.NoError(t, err)

	// checks: job start, parse start, then before the second batch
	edited := "int b1;\nint b2;\n"
	r := m.runJob(&cancelAfter{Context: ctx, n: 2}, &job{path: m.normalize("edit.cc"), source: &edited})
	require.ErrorIs(t, r.err, errors.ErrAborted)
	require.True(t, r.res.Aborted)
	require.Equal(t, 1, r.res.Batches)
	assert.True(t, treeHas(m, "b1"))
	assert.False(t, treeHas(m, "b2"))

	res, err := m.ParseBuffer(ctx, "edit.cc", original)
	require.NoError(t, err)
	assert.False(t, res.Unchanged)
	assert.True(t, treeHas(m, "a1"))
	assert.True(t, treeHas(m, "a2"))
	assert.False(t, treeHas(m, "b1"))
	require.NoError(t, m.Tree().View(func(s *tree.Store) error { return s.Validate() }))
}

func TestPanickingJobBecomesParseError(t *testing.T) {
	root := t.TempDir()
	m := newTestManager(t, root)
	path := writeFile(t, filepath.Join(root, "a.cc"), "int a;\n")
	m.validator = nil

	r := m.safeRunJob(context.Background(), &job{path: path})
	var perr *errors.ParseError
	require.True(t, stderrors.As(r.err, &perr), "%v", r.err)
	assert.Contains(t, r.err.Error(), "parser panic")
	assert.Zero(t, m.Tree().Len())
}

func TestResolveIncludeOrder(t *testing.T) {
	root := t.TempDir()
	from := writeFile(t, filepath.Join(root, "src", "a.cc"), "")
	localSrc := writeFile(t, filepath.Join(root, "src", "local.h"), "")
	localInc := writeFile(t, filepath.Join(root, "inc", "local.h"), "")
	other := writeFile(t, filepath.Join(root, "inc", "other.h"), "")
	m := newTestManager(t, root, func(c *config.Config) { c.Parser.IncludeDirs = []string{"inc"} })

	tests := []struct {
		name   string
		angled bool
		want   string
		found  bool
	}{
		{"local.h", false, localSrc, true},
		{"local.h", true, localInc, true},
		{"other.h", false, other, true},
		{"missing.h", false, "", false},
		{localInc, true, localInc, true},
	}
	for _, tt := range tests {
		got, ok := m.ResolveInclude(from, tt.name, tt.angled)
		assert.Equal(t, tt.found, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestParseFollowsIncludes(t *testing.T) {
	root := t.TempDir()
	src := writeFile(t, filepath.Join(root, "a.cc"), "#include \"b.h\"\nint user;\n")
	hdr := writeFile(t, filepath.Join(root, "b.h"), "struct FromHeader { int field; };\n")
	m := newTestManager(t, root)

	_, err := m.ParseFile(context.Background(), src)
	require.NoError(t, err)
	waitIdle(t, m)

	_, ok := m.Tree().LookupFile(hdr)
	assert.True(t, ok)
	got, err := m.Complete("FromH", resolver.Caret{})
	require.NoError(t, err)
	assert.Equal(t, []string{"FromHeader"}, names(got))
}

func TestIncludesNotFollowedWhenDisabled(t *testing.T) {
	root := t.TempDir()
	src := writeFile(t, filepath.Join(root, "a.cc"), "#include \"b.h\"\nint user;\n")
	hdr := writeFile(t, filepath.Join(root, "b.h"), "struct FromHeader {};\n")
	m := newTestManager(t, root, func(c *config.Config) { c.Parser.FollowIncludes = false })

	_, err := m.ParseFile(context.Background(), src)
	require.NoError(t, err)
	waitIdle(t, m)
	_, ok := m.Tree().LookupFile(hdr)
	assert.False(t, ok)
}

func TestDebouncedEvents(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, filepath.Join(root, "a.cc"), "int first;\n")
	m := newTestManager(t, root)

	flushed := make(chan int, 4)
	m.SetOnFlush(func(n int) { flushed <- n })

	m.OnFileSaved(path)
	m.OnFileSaved(path)
	m.OnFileAdded(path)
	assert.LessOrEqual(t, m.PendingEvents(), 1)

	select {
	case n := <-flushed:
		assert.Equal(t, 1, n)
	case <-time.After(5 * time.Second):
		t.Fatal("events were not flushed")
	}
	waitIdle(t, m)
	_, ok := m.Tree().LookupFile(path)
	require.True(t, ok)

	m.OnFileRemoved(path)
	m.FlushEvents()
	select {
	case <-flushed:
	case <-time.After(5 * time.Second):
		t.Fatal("removal was not flushed")
	}
	waitIdle(t, m)
	assert.Equal(t, 0, m.Tree().Len())
}

func TestEditorActivatedParsesUnknownFiles(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, filepath.Join(root, "open.cc"), "int opened;\n")
	m := newTestManager(t, root)

	m.OnEditorActivated("open.cc")
	waitIdle(t, m)
	_, ok := m.Tree().LookupFile(path)
	assert.True(t, ok)

	// known files are not parsed again
	writeFile(t, path, "int opened;\nint more;\n")
	m.OnEditorActivated(path)
	waitIdle(t, m)
	assert.Equal(t, 1, m.Tree().Len())
}

func TestFindDeclaration(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	ctx := context.Background()
	_, err := m.ParseBuffer(ctx, "foo.h", "class Foo {\npublic:\n  void run();\n};\n")
	require.NoError(t, err)
	_, err = m.ParseBuffer(ctx, "foo.cc", "#include \"foo.h\"\n\nvoid Foo::run() {}\n")
	require.NoError(t, err)
	waitIdle(t, m)

	locs, err := m.FindDeclaration("Foo::run", resolver.Caret{})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	root := m.Config().Project.Root
	assert.Equal(t, "function", locs[0].Kind)
	assert.Equal(t, filepath.Join(root, "foo.h"), locs[0].File)
	assert.Equal(t, 3, locs[0].Line)
	assert.Equal(t, filepath.Join(root, "foo.cc"), locs[0].ImplFile)
	assert.Equal(t, 3, locs[0].ImplLine)
	assert.Contains(t, locs[0].Signature, "run")

	locs, err = m.FindDeclaration("Foo::ru", resolver.Caret{})
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestCallTips(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	_, err := m.ParseBuffer(context.Background(), "a.cc", "int add(int a, int b);\n")
	require.NoError(t, err)

	tips, err := m.CallTips("  int x = add(1, ", resolver.Caret{})
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, "int b", tips[0].Highlight())
}

func TestTestExpressionReturnsDocs(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	src := "class W {\npublic:\n    int a; ///< first member\n    int b;\n};\nW w;\n"
	_, err := m.ParseBuffer(context.Background(), "w.cc", src)
	require.NoError(t, err)

	got, err := m.TestExpression("w.", resolver.Caret{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Contains(t, got[0].Doc, "first member")
	assert.Equal(t, "b", got[1].Name)
	assert.Empty(t, got[1].Doc)
}

func TestDumpFormats(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	_, err := m.ParseBuffer(context.Background(), "a.cc", fooSource)
	require.NoError(t, err)

	var text strings.Builder
	require.NoError(t, m.Dump(&text, FormatText))
	assert.Contains(t, text.String(), "class Foo [1,1]")

	var js strings.Builder
	require.NoError(t, m.Dump(&js, FormatJSON))
	var records []tree.Record
	require.NoError(t, json.Unmarshal([]byte(js.String()), &records))
	assert.Len(t, records, m.Tree().Len())

	var ym strings.Builder
	require.NoError(t, m.Dump(&ym, FormatYAML))
	assert.Contains(t, ym.String(), "name: Foo")

	assert.Error(t, m.Dump(&ym, "xml"))
}

func TestStats(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	_, err := m.ParseBuffer(context.Background(), "a.cc", fooSource)
	require.NoError(t, err)
	stats := m.Stats()
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, m.Tree().Len(), stats.TotalTokens)
}

func TestCloseStopsEverything(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	root := t.TempDir()
	path := writeFile(t, filepath.Join(root, "a.cc"), "int a;\n")
	cfg := config.Default(root)
	cfg.Performance.DebounceMs = 10_000
	m := NewManager(cfg)
	require.NoError(t, m.Watch(context.Background()))
	m.OnFileSaved(path)
	require.NoError(t, m.Enqueue(path))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.ParseFile(context.Background(), path)
	assert.ErrorIs(t, err, errors.ErrManagerClose)
	assert.ErrorIs(t, m.Enqueue(path), errors.ErrManagerClose)
	assert.False(t, m.WatchStats().IsActive)
}
