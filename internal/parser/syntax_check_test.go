package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSyntaxClean(t *testing.T) {
	diags, err := CheckSyntax([]byte("class A { public: int f() const { return 1; } };\n"))
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestCheckSyntaxReportsErrors(t *testing.T) {
	src := "int main() {\n  int x = ;\n  return 0;\n}\n"
	diags, err := CheckSyntax([]byte(src))
	require.NoError(t, err)
	require.NotEmpty(t, diags)
	assert.Equal(t, 2, diags[0].Line)
	for i := 1; i < len(diags); i++ {
		assert.LessOrEqual(t, diags[i-1].Line, diags[i].Line)
	}
}

func TestCheckSyntaxMissingBrace(t *testing.T) {
	diags, err := CheckSyntax([]byte("struct S { int a;\n"))
	require.NoError(t, err)
	require.NotEmpty(t, diags)
	assert.NotEmpty(t, diags[0].String())
}
