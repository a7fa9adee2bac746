package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, tk *Tokenizer) []Lexeme {
	t.Helper()
	var out []Lexeme
	for i := 0; i < 10000; i++ {
		lx := tk.GetNextToken()
		if lx.Kind == EOF {
			return out
		}
		out = append(out, lx)
	}
	t.Fatal("tokenizer did not reach EOF")
	return nil
}

func texts(lx []Lexeme) []string {
	out := make([]string, len(lx))
	for i, l := range lx {
		out[i] = l.Text
	}
	return out
}

func newTok(src string, opts Options) *Tokenizer {
	tk := New(opts)
	tk.Init(src)
	return tk
}

func TestGetNextToken_Kinds(t *testing.T) {
	tk := newTok(`class Foo : public Bar { int x = 0x1F; char c = '\''; const char* s = "a\"b"; };`, Options{})
	lx := lexAll(t, tk)

	assert.Equal(t, []string{"class", "Foo", ":", "public", "Bar", "{", "int", "x", "=", "0x1F", ";",
		"char", "c", "=", `'\''`, ";", "const", "char", "*", "s", "=", `"a\"b"`, ";", "}", ";"}, texts(lx))
	assert.Equal(t, Keyword, lx[0].Kind)
	assert.Equal(t, Identifier, lx[1].Kind)
	assert.Equal(t, Number, lx[9].Kind)
	assert.Equal(t, Char, lx[14].Kind)
	assert.Equal(t, String, lx[21].Kind)
}

func TestGetNextToken_Operators(t *testing.T) {
	tk := newTok(`a->b::c ... x <<= 1 >>= 2 <=> p->*q`, Options{})
	assert.Equal(t, []string{"a", "->", "b", "::", "c", "...", "x", "<<=", "1", ">>=", "2", "<=>", "p", "->*", "q"}, texts(lexAll(t, tk)))
}

func TestGetNextToken_LinesAndComments(t *testing.T) {
	src := "int a; // comment\n/* block\n comment */ int b;\n\nint c;"
	lx := lexAll(t, newTok(src, Options{}))
	require.Len(t, lx, 9)
	assert.Equal(t, 1, lx[0].Line)
	assert.Equal(t, 3, lx[3].Line)
	assert.Equal(t, 5, lx[6].Line)
}

func TestGetNextToken_Unterminated(t *testing.T) {
	lx := lexAll(t, newTok("char* s = \"abc\nint x; /* never closed", Options{}))
	assert.Equal(t, []string{"char", "*", "s", "=", "\"abc", "int", "x", ";"}, texts(lx))
	assert.Equal(t, 2, lx[5].Line)
}

func TestGetNextToken_RawString(t *testing.T) {
	lx := lexAll(t, newTok("auto s = R\"x(a)\"\nb)x\"; int y;", Options{}))
	require.Len(t, lx, 8)
	assert.Equal(t, String, lx[3].Kind)
	assert.Equal(t, "R\"x(a)\"\nb)x\"", lx[3].Text)
	assert.Equal(t, 2, lx[5].Line)
}

func TestGetNextToken_IncompleteRawString(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"prefix at end", "auto s = R\"", []string{"auto", "s", "=", "R\""}},
		{"utf8 prefix at end", "auto s = u8R\"", []string{"auto", "s", "=", "u8R\""}},
		{"wide prefix at end", "auto s = LR\"", []string{"auto", "s", "=", "LR\""}},
		{"empty literal", "auto s = R\"\"", []string{"auto", "s", "=", "R\"\""}},
		{"no delimiter paren", "auto s = R\"ab\"; int y;", []string{"auto", "s", "=", "R\"ab\"", ";", "int", "y", ";"}},
		{"unterminated line", "auto s = R\"abc\nint z(1);", []string{"auto", "s", "=", "R\"abc", "int", "z", "(", "1", ")", ";"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lx := lexAll(t, newTok(tt.src, Options{}))
			assert.Equal(t, tt.want, texts(lx))
			assert.Equal(t, String, lx[3].Kind)
		})
	}
}

func TestGetNextToken_Numbers(t *testing.T) {
	lx := lexAll(t, newTok("1'000'000 1.5e-3 .25f 0x1e+2", Options{}))
	assert.Equal(t, []string{"1'000'000", "1.5e-3", ".25f", "0x1e", "+", "2"}, texts(lx))
}

func TestPeekAndUnget(t *testing.T) {
	tk := newTok("a b c", Options{})
	assert.Equal(t, "a", tk.PeekToken().Text)
	assert.Equal(t, "a", tk.GetNextToken().Text)
	b := tk.GetNextToken()
	assert.Equal(t, "b", b.Text)
	tk.UngetToken()
	assert.Equal(t, "b", tk.GetNextToken().Text)
	assert.Equal(t, "c", tk.GetNextToken().Text)
	assert.Equal(t, EOF, tk.GetNextToken().Kind)
	assert.Equal(t, EOF, tk.GetNextToken().Kind)
}

func TestSaveRestore(t *testing.T) {
	tk := newTok("a b\nc d", Options{})
	tk.GetNextToken()
	st := tk.Save()
	assert.Equal(t, "b", tk.GetNextToken().Text)
	assert.Equal(t, "c", tk.GetNextToken().Text)
	tk.Restore(st)
	assert.Equal(t, "b", tk.GetNextToken().Text)
	c := tk.GetNextToken()
	assert.Equal(t, 2, c.Line)
}

func TestReadParenGroup(t *testing.T) {
	tk := newTok("(const std::string& name, int n = 0, void (*cb)(int)) const;", Options{})
	require.True(t, tk.GetNextToken().Is("("))
	assert.Equal(t, "(const std::string& name, int n = 0, void(*cb)(int))", tk.ReadParenGroup())
	assert.Equal(t, "const", tk.GetNextToken().Text)
}

func TestReadAngleGroup(t *testing.T) {
	tk := newTok("<typename T, std::vector<std::map<K, V>>> class X;", Options{})
	tk.GetNextToken()
	text, ok := tk.ReadAngleGroup()
	require.True(t, ok)
	assert.Equal(t, "<typename T, std::vector<std::map<K, V>>>", text)
	assert.Equal(t, "class", tk.GetNextToken().Text)

	tk = newTok("<vector<int>> x;", Options{})
	tk.GetNextToken()
	text, ok = tk.ReadAngleGroup()
	require.True(t, ok)
	assert.Equal(t, "<vector<int>>", text)
	assert.Equal(t, "x", tk.GetNextToken().Text)

	tk = newTok("< b; int c;", Options{})
	tk.GetNextToken()
	_, ok = tk.ReadAngleGroup()
	assert.False(t, ok)
	assert.Equal(t, ";", tk.GetNextToken().Text)
}

func TestSkipBlock(t *testing.T) {
	tk := newTok(`{ if (x) { s = "}"; } /* } */ c = '}'; } after`, Options{})
	tk.GetNextToken()
	assert.True(t, tk.SkipBlock("{"))
	assert.Equal(t, "after", tk.GetNextToken().Text)

	tk = newTok("{ { never closed", Options{})
	tk.GetNextToken()
	assert.False(t, tk.SkipBlock("{"))
}

func TestSkipToOneOf(t *testing.T) {
	tk := newTok("x = f(a, b) + g[1]; next", Options{})
	lx, ok := tk.SkipToOneOf(";", ",")
	assert.True(t, ok)
	assert.Equal(t, ";", lx.Text)
	assert.Equal(t, "next", tk.GetNextToken().Text)

	tk = newTok("int broken } tail", Options{})
	lx, ok = tk.SkipToOneOf(";")
	assert.False(t, ok)
	assert.Equal(t, "}", lx.Text)
	assert.Equal(t, "}", tk.GetNextToken().Text, "closing brace of the outer scope is pushed back")
}

func TestSkipToEOL(t *testing.T) {
	tk := newTok("a b c\nd", Options{})
	tk.GetNextToken()
	tk.SkipToEOL()
	lx := tk.GetNextToken()
	assert.Equal(t, "d", lx.Text)
	assert.Equal(t, 2, lx.Line)
}
