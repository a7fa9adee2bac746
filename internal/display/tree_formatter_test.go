package display

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cccomplete/internal/parser"
	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
)

const outlineSource = `namespace ns {
class Foo {
public:
    void run(int n);
    int count;
};
}
void ns::Foo::run(int n) { int local = n; }
`

func format(t *testing.T, src string, opts FormatterOptions) string {
	t.Helper()
	tr := tree.New(nil)
	popts := parser.DefaultOptions()
	popts.UseBuffer = true
	_, err := parser.NewParserThread(tr, "/src/test.cc", src, popts, nil).Parse(context.Background())
	require.NoError(t, err)

	var out string
	require.NoError(t, tr.View(func(s *tree.Store) error {
		out = NewTreeFormatter(opts).Format(s)
		return nil
	}))
	return out
}

func TestFormatOutline(t *testing.T) {
	out := format(t, outlineSource, FormatterOptions{ShowLines: true, Root: types.GlobalScope})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 5, out)

	assert.True(t, strings.HasPrefix(lines[0], "Token tree: "))
	assert.Contains(t, lines[0], "in 1 files")
	assert.Equal(t, "└─ namespace ns [test.cc:1]", lines[1])
	assert.Equal(t, "   └─ class Foo [test.cc:2]", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "      ├─ function run("), lines[3])
	assert.True(t, strings.HasSuffix(lines[3], "[test.cc:4 -> test.cc:8]"), lines[3])
	assert.Equal(t, "      └─ variable count [test.cc:5]", lines[4])
	assert.NotContains(t, out, "local")
}

func TestFormatOptions(t *testing.T) {
	out := format(t, outlineSource, FormatterOptions{ShowLocals: true, Root: types.GlobalScope})
	assert.Contains(t, out, "variable local")
	assert.NotContains(t, out, "[test.cc")

	out = format(t, outlineSource, FormatterOptions{MaxDepth: 1, Root: types.GlobalScope})
	assert.Contains(t, out, "namespace ns")
	assert.NotContains(t, out, "class Foo")
}

func TestFormatEmpty(t *testing.T) {
	assert.Equal(t, "Token tree is empty\n", NewTreeFormatter(FormatterOptions{}).Format(nil))

	var out string
	_ = tree.New(nil).View(func(s *tree.Store) error {
		out = NewTreeFormatter(FormatterOptions{Root: types.GlobalScope}).Format(s)
		return nil
	})
	assert.Equal(t, "Token tree is empty\n", out)
}
