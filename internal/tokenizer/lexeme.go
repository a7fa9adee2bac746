package tokenizer

import "strings"

// LexemeKind classifies one lexical unit.
type LexemeKind int

const (
	EOF LexemeKind = iota
	Identifier
	Keyword
	Number
	String
	Char
	Operator
	Preprocessor
)

func (k LexemeKind) String() string {
	switch k {
	case Identifier:
		return "identifier"
	case Keyword:
		return "keyword"
	case Number:
		return "number"
	case String:
		return "string"
	case Char:
		return "char"
	case Operator:
		return "operator"
	case Preprocessor:
		return "preprocessor"
	default:
		return "eof"
	}
}

// Lexeme is one unit produced by the tokenizer.
type Lexeme struct {
	Kind LexemeKind
	Text string
	// Line is the 1-based source line the lexeme was written on. Lexemes
	// produced by a macro expansion carry the line of the macro use.
	Line     int
	Expanded bool
	// Doc is the documentation comment that directly preceded the lexeme.
	Doc string
	// Directive is set on Preprocessor lexemes for #include and #define.
	Directive *Directive

	hide []string // macros this lexeme was expanded from
}

// Is reports whether the lexeme is the operator or keyword text s.
func (l Lexeme) Is(s string) bool {
	return (l.Kind == Operator || l.Kind == Keyword) && l.Text == s
}

// IsWord reports whether the lexeme is an identifier, keyword or number.
func (l Lexeme) IsWord() bool {
	return l.Kind == Identifier || l.Kind == Keyword || l.Kind == Number
}

// Directive describes a preprocessor directive handed to the parser.
type Directive struct {
	Name string // "include" or "define"
	Line int

	// #include
	Path   string
	Angled bool

	// #define
	Macro        string
	Params       string // "(a, b)" for function-like macros
	Body         string
	FunctionLike bool
}

var keywords = map[string]struct{}{}

func init() {
	for _, kw := range strings.Fields(`alignas alignof and and_eq asm auto bitand bitor bool break case catch
		char char8_t char16_t char32_t class compl concept const consteval constexpr constinit const_cast
		continue co_await co_return co_yield decltype default delete do double dynamic_cast else enum
		explicit export extern false final float for friend goto if inline int long mutable namespace new
		noexcept not not_eq nullptr operator or or_eq override private protected public register
		reinterpret_cast requires return short signed sizeof static static_assert static_cast struct
		switch template this thread_local throw true try typedef typeid typename union unsigned using
		virtual void volatile wchar_t while xor xor_eq`) {
		keywords[kw] = struct{}{}
	}
}

// IsKeyword reports whether s is a reserved C++ keyword.
func IsKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}

// operators sorted longest first for maximal munch.
var operators = []string{
	">>=", "<<=", "...", "->*", "<=>",
	"::", "->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", ".*", "##",
}

// JoinLexemes renders lexemes as normalized source text: single spaces between
// words, after commas and around '=', none inside brackets.
func JoinLexemes(lx []Lexeme) string {
	var b strings.Builder
	for i, cur := range lx {
		if i > 0 && needsSpace(lx, i) {
			b.WriteByte(' ')
		}
		b.WriteString(cur.Text)
	}
	return b.String()
}

func wordish(l Lexeme) bool {
	return l.IsWord() || l.Kind == String || l.Kind == Char
}

func needsSpace(lx []Lexeme, i int) bool {
	prev, cur := lx[i-1], lx[i]
	switch {
	case wordish(prev) && wordish(cur):
		return true
	case prev.Kind == Operator && prev.Text == ",":
		return true
	case (prev.Kind == Operator && prev.Text == "=") || (cur.Kind == Operator && cur.Text == "="):
		return true
	case prev.Kind == Operator && prev.Text == ">" && wordish(cur):
		return true
	case prev.Kind == Operator && isDeclaratorSuffix(prev.Text) && wordish(cur) && i >= 2:
		// "char* s" and "Args... args", but "(*cb)"
		before := lx[i-2]
		return wordish(before) || (before.Kind == Operator && (before.Text == ">" || isDeclaratorSuffix(before.Text)))
	}
	return false
}

func isDeclaratorSuffix(s string) bool {
	return s == "*" || s == "&" || s == "&&" || s == "..."
}
