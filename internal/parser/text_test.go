package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/standardbeagle/cccomplete/internal/types"
)

func TestNormalizeArgs(t *testing.T) {
	cases := map[string]string{
		"":                                "()",
		"void":                            "()",
		"int a, int b = 2":                "(int, int)",
		"const std::string& name":         "(const std::string&)",
		"char* argv[]":                    "(char*[])",
		"void (*cb)(int), void* user":     "(void(*)(int), void*)",
		"std::map<int, char> m, unsigned": "(std::map<int, char>, unsigned)",
		"const char*":                     "(const char*)",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeArgs(lexString(in)), in)
	}
}

func TestParamName(t *testing.T) {
	cases := map[string]string{
		"int a":            "a",
		"const Foo& foo":   "foo",
		"char* argv[]":     "argv",
		"void (*cb)(int)":  "cb",
		"Args... args":     "args",
		"unsigned":         "",
		"const char":       "",
		"std::vector<T> v": "v",
	}
	for in, want := range cases {
		lx := lexString(in)
		i := paramName(lx)
		got := ""
		if i >= 0 {
			got = lx[i].Text
		}
		assert.Equal(t, want, got, in)
	}
}

func TestParamBaseType(t *testing.T) {
	base, args := paramBaseType(lexString("const std::vector<int>&"))
	assert.Equal(t, "std::vector", base)
	assert.Equal(t, "<int>", args)

	base, _ = paramBaseType(lexString("::Global*"))
	assert.Equal(t, "Global", base)

	base, _ = paramBaseType(lexString("unsigned long"))
	assert.Equal(t, "long", base)
}

func TestTemplateParams(t *testing.T) {
	assert.Equal(t, []string{"T", "N"}, templateParams("<typename T, int N = 3>"))
	assert.Equal(t, []string{"K", "V", "Alloc"},
		templateParams("<class K, class V, class Alloc = std::allocator<std::pair<K, V>>>"))
	assert.Equal(t, []string{"Ts"}, templateParams("<typename... Ts>"))
	assert.Empty(t, templateParams("<>"))
}

func TestParseAncestors(t *testing.T) {
	got := parseAncestors(lexString("public Base<int, char>, virtual ::ns::Other, Plain"), types.AccessPrivate)
	want := []types.Ancestor{
		{Name: "Base<int, char>", Access: types.AccessPublic},
		{Name: "ns::Other", Access: types.AccessPrivate, Virtual: true},
		{Name: "Plain", Access: types.AccessPrivate},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, "Base<int, char>,ns::Other,Plain", ancestorsString(got))
}

func TestDeclPart(t *testing.T) {
	p := declPart{kind: partName, text: "::a::b::c", tmpl: "<T>"}
	assert.Equal(t, "c", p.last())
	assert.Equal(t, "a::b", p.qualifier())
	assert.Equal(t, "::a::b::c<T>", p.full())

	plain := declPart{kind: partName, text: "x"}
	assert.Equal(t, "x", plain.last())
	assert.Empty(t, plain.qualifier())
}
