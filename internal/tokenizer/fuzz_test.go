package tokenizer

import (
	"os"
	"path/filepath"
	"testing"
)

// seedSources adds the regression sources and a few edge inputs to the corpus.
func seedSources(f *testing.F) {
	f.Helper()
	paths, _ := filepath.Glob(filepath.Join("..", "regression", "testdata", "*.cc"))
	for _, p := range paths {
		if data, err := os.ReadFile(p); err == nil {
			f.Add(string(data))
		}
	}
	for _, s := range []string{
		"",
		"R\"",
		"u8R\"x(",
		"#if 0\n#else",
		"#define A A B\nA",
		"/* open",
		"'\\",
		"template<class T> struct S<",
		"a->*b<=>c...",
	} {
		f.Add(s)
	}
}

// FuzzGetNextToken drains the tokenizer over arbitrary input
func FuzzGetNextToken(f *testing.F) {
	seedSources(f)
	f.Fuzz(func(t *testing.T, src string) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("input %q caused panic: %v", src, r)
			}
		}()
		tk := New(Options{WantPreprocessor: true, StoreDocumentation: true})
		tk.Init(src)
		// capped: nested macro bodies can expand exponentially
		for i := 0; i < 1<<20; i++ {
			if tk.GetNextToken().Kind == EOF {
				return
			}
		}
	})
}
