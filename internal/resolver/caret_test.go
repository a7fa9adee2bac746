package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpressionAtCaret(t *testing.T) {
	cases := map[string]string{
		"    int x = obj.mem":       "obj.mem",
		"if (p->next->va":           "p->next->va",
		"auto v = make(a, b).ba":    "make(a, b).ba",
		"std::vector<int>::":        "std::vector<int>::",
		"return a + b":              "b",
		"x.":                        "x.",
		"  list[i + 1].":            "list[i + 1].",
		"*this->m":                  "this->m",
		"::Global":                  "::Global",
		"":                          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExpressionAtCaret(in), in)
	}
}
