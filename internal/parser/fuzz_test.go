package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/standardbeagle/cccomplete/internal/tree"
)

// FuzzParse parses arbitrary input twice into one tree and checks the tree
// stays consistent
func FuzzParse(f *testing.F) {
	paths, _ := filepath.Glob(filepath.Join("..", "regression", "testdata", "*.cc"))
	for _, p := range paths {
		if data, err := os.ReadFile(p); err == nil {
			f.Add(string(data))
		}
	}
	for _, s := range []string{
		"struct Foo { int a; };\nauto s = R\"",
		"class A : public B<C<D>> { void f() { for (;;) { struct { int q; } x; } } };",
		"namespace { enum class E : int { a = 1 << 2, b }; }",
		"template<typename T, int N = (3 > 2)> using V = T[N];",
		"int (*fp)(int, char) = 0; typedef void (*cb)();",
		"}}}{{{ ::: ->->",
		"#define X struct\nX S { int y; };",
	} {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, src string) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("input %q caused panic: %v", src, r)
			}
		}()
		tr := tree.New(nil)
		opts := bufferOptions()
		// parse twice so the second run exercises RemoveFile and merging
		for i := 0; i < 2; i++ {
			// binary content is reported as an error but still parsed up to the NUL
			_, _ = NewParserThread(tr, "fuzz.cc", src, opts, nil).Parse(context.Background())
			if err := tr.View(func(s *tree.Store) error { return s.Validate() }); err != nil {
				t.Fatalf("invalid tree after parse %d: %v", i+1, err)
			}
		}
	})
}
