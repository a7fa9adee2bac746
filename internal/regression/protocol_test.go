package regression

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cccomplete/internal/config"
	"github.com/standardbeagle/cccomplete/internal/indexing"
)

func TestParseCases(t *testing.T) {
	src := `int x; // plain comment
// not a test line

// a.b//c,d
obj.mem//mem///<docs here
// p->//*///<*

// f//g///-
`
	cases := ParseCases(src)
	require.Len(t, cases, 4)

	assert.Equal(t, Case{Line: 4, Expr: "a.b", Expected: []string{"c", "d"}}, cases[0])
	assert.Equal(t, Case{Line: 5, Expr: "obj.mem", Expected: []string{"mem"}, Doc: "docs here", HasDoc: true}, cases[1])
	assert.Equal(t, Case{Line: 6, Expr: "p->", Expected: []string{"*"}, Doc: "*", HasDoc: true}, cases[2])
	assert.Equal(t, Case{Line: 8, Expr: "f", Expected: []string{"g"}, Doc: "-", HasDoc: true}, cases[3])
}

func TestParseCasesOnlyReadsTheTrailingBlock(t *testing.T) {
	src := "// early//test\nint x;\n// late//test\n"
	cases := ParseCases(src)
	require.Len(t, cases, 1)
	assert.Equal(t, "late", cases[0].Expr)

	assert.Empty(t, ParseCases("int x;\n"))
	assert.Empty(t, ParseCases(""))
}

func TestCaseCheck(t *testing.T) {
	matches := []indexing.Match{
		{Name: "Bar", Doc: "Does bar."},
		{Name: "Baz"},
	}
	tests := []struct {
		line string
		ok   bool
	}{
		{"x//Bar,Baz", true},
		{"x//Bar,Qux", false},
		{"x//*", true},
		{"x//Bar///<Does", true},
		{"x//Bar///<nope", false},
		{"x//Baz///<-", true},
		{"x//Baz///<*", false},
		{"x//Bar///<*", true},
		{"x///<Does", true},
	}
	for _, tt := range tests {
		c, ok := parseLine(tt.line)
		require.True(t, ok, tt.line)
		failure := c.Check(matches)
		assert.Equal(t, tt.ok, failure == "", "%s: %s", tt.line, failure)
	}

	c, _ := parseLine("x//*")
	assert.NotEmpty(t, c.Check(nil))
}

func newManager(t *testing.T) *indexing.Manager {
	t.Helper()
	root, err := filepath.Abs("testdata")
	require.NoError(t, err)
	cfg := config.Default(root)
	cfg.Performance.ParallelFileWorkers = 2
	m := indexing.NewManager(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestRunDir(t *testing.T) {
	m := newManager(t)
	reports, err := RunDir(context.Background(), m, "testdata", "*.cc")
	require.NoError(t, err)
	require.Len(t, reports, 3)

	for _, rep := range reports {
		assert.NotEmpty(t, rep.Results, rep.File)
		for _, res := range rep.Results {
			assert.True(t, res.Passed(), "%s:%d %s: %s", filepath.Base(rep.File), res.Case.Line, res.Case, res.Failure)
		}
	}

	var out strings.Builder
	require.NoError(t, WriteText(&out, reports, false))
	assert.Contains(t, out.String(), "3 files")
	assert.Contains(t, out.String(), " 0 failed")
}

func TestRunReportsFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fail.cc")
	require.NoError(t, os.WriteFile(path, []byte("struct P { int x; };\nP p;\n// p.//y\n// p.//x\n"), 0o644))

	m := newManager(t)
	rep, err := Run(context.Background(), m, path)
	require.NoError(t, err)
	require.Len(t, rep.Results, 2)
	assert.False(t, rep.Results[0].Passed())
	assert.Equal(t, []string{"x"}, rep.Results[0].Got)
	assert.True(t, rep.Results[1].Passed())
	assert.Equal(t, 1, rep.Failed())

	var out strings.Builder
	require.NoError(t, WriteText(&out, []*Report{rep}, true))
	assert.Contains(t, out.String(), "FAIL ")
	assert.Contains(t, out.String(), "PASS ")

	_, err = Run(context.Background(), m, filepath.Join(dir, "missing.cc"))
	assert.Error(t, err)
}
