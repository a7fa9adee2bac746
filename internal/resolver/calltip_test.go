package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tipSource = `int Foo(int a, int b, int c);
class Point {
public:
    Point(int x);
    Point(const char* s, int n);
    void moveBy(int dx, int dy);
};
Point origin;
#define SQUARE(x) ((x)*(x))
`

func signatures(tips []CallTip) []string {
	var out []string
	for _, tip := range tips {
		out = append(out, tip.Signature)
	}
	return out
}

func TestCallTipsHighlightTheCurrentParameter(t *testing.T) {
	_, r := build(t, tipSource)
	tips, err := r.CallTips(Request{Expr: "x = Foo(1, "})
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, "int Foo(int a, int b, int c)", tips[0].Signature)
	assert.Equal(t, 1, tips[0].Commas)
	assert.Equal(t, "int b", tips[0].Highlight())

	tips, err = r.CallTips(Request{Expr: "Foo(bar(1, 2), "})
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, "int b", tips[0].Highlight())
}

func TestCallTipsForConstructorsMembersAndMacros(t *testing.T) {
	_, r := build(t, tipSource)
	tips, err := r.CallTips(Request{Expr: "Point("})
	require.NoError(t, err)
	assert.Equal(t, []string{"Point::Point(const char* s, int n)", "Point::Point(int x)"}, signatures(tips))

	tips, err = r.CallTips(Request{Expr: "origin.moveBy(3, "})
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, "int dy", tips[0].Highlight())

	tips, err = r.CallTips(Request{Expr: "SQUARE("})
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, "x", tips[0].Highlight())
}

func TestCallTipsOutsideACall(t *testing.T) {
	_, r := build(t, tipSource)
	tips, err := r.CallTips(Request{Expr: "Foo(1); x = "})
	require.NoError(t, err)
	assert.Empty(t, tips)

	tips, err = r.CallTips(Request{Expr: "Unknown("})
	require.NoError(t, err)
	assert.Empty(t, tips)
}

func TestCallTipHighlight(t *testing.T) {
	tests := []struct {
		tip    string
		commas int
		want   string
	}{
		{"int Foo(int a, int b, int c)", 0, "int a"},
		{"int Foo(int a, int b, int c)", 2, "int c"},
		{"int Foo(int a, int b, int c)", 3, ""},
		{"void f()", 0, ""},
		{"int printf(const char* fmt, ...)", 3, "..."},
		{"void g(std::map<int, char> m, int x)", 1, "int x"},
		{"void h(void(*)(int, int) cb, int y)", 1, "int y"},
		{"int Point::size() const", 0, ""},
	}
	for _, tt := range tests {
		start, end := CallTipHighlight(tt.tip, tt.commas)
		got := ""
		if start >= 0 {
			got = tt.tip[start:end]
		}
		assert.Equal(t, tt.want, got, "%s with %d commas", tt.tip, tt.commas)
	}
}

func TestFindFunctionOpenParenthesis(t *testing.T) {
	assert.Equal(t, 3, FindFunctionOpenParenthesis("Foo(1, bar(2), "))
	assert.Equal(t, 1, FindFunctionOpenParenthesis(`f("(", `))
	assert.Equal(t, -1, FindFunctionOpenParenthesis("x = (a) + b"))
	assert.Equal(t, -1, FindFunctionOpenParenthesis("g(1); y"))
}
