package parser

import (
	"strings"

	"github.com/standardbeagle/cccomplete/internal/tokenizer"
	"github.com/standardbeagle/cccomplete/internal/types"
)

type partKind uint8

const (
	partName    partKind = iota // possibly qualified identifier
	partKeyword                 // builtin type word or cv-qualifier
	partPointer                 // '*', '&', '&&' or '...'
	partOperator                // "operator==" and friends
)

// declPart is one element of a declaration specifier sequence.
type declPart struct {
	kind  partKind
	text  string // qualified name without template arguments
	tmpl  string // "<...>" following the last name component
	line  int
	doc   string
}

// last returns the final "::" component of a qualified name.
func (p declPart) last() string {
	if i := strings.LastIndex(p.text, "::"); i >= 0 {
		return p.text[i+2:]
	}
	return p.text
}

// qualifier returns everything before the final "::" component.
func (p declPart) qualifier() string {
	if i := strings.LastIndex(p.text, "::"); i >= 0 {
		return strings.TrimPrefix(p.text[:i], "::")
	}
	return ""
}

func (p declPart) full() string {
	return p.text + p.tmpl
}

var specifierWords = map[string]struct{}{
	"static": {}, "inline": {}, "extern": {}, "virtual": {}, "explicit": {}, "mutable": {},
	"constexpr": {}, "consteval": {}, "constinit": {}, "register": {}, "thread_local": {},
	"friend": {}, "typename": {}, "struct": {}, "class": {}, "union": {}, "enum": {},
	"__inline": {}, "__forceinline": {},
}

var builtinTypes = map[string]struct{}{
	"void": {}, "bool": {}, "char": {}, "char8_t": {}, "char16_t": {}, "char32_t": {}, "wchar_t": {},
	"short": {}, "int": {}, "long": {}, "signed": {}, "unsigned": {}, "float": {}, "double": {},
	"auto": {},
}

func isBuiltinType(s string) bool {
	_, ok := builtinTypes[s]
	return ok
}

func isSpecifier(s string) bool {
	_, ok := specifierWords[s]
	return ok
}

// attributeWords introduce a parenthesized group that carries no type information.
var attributeWords = map[string]struct{}{
	"__attribute__": {}, "__declspec": {}, "alignas": {}, "__asm__": {}, "asm": {},
	"__asm": {}, "_Alignas": {},
}

func isAttributeWord(s string) bool {
	_, ok := attributeWords[s]
	return ok
}

// typeText renders the type parts of a declaration, dropping storage specifiers.
func typeText(parts []declPart) string {
	lx := make([]tokenizer.Lexeme, 0, len(parts))
	for _, p := range parts {
		switch p.kind {
		case partKeyword:
			if isSpecifier(p.text) {
				continue
			}
			lx = append(lx, tokenizer.Lexeme{Kind: tokenizer.Keyword, Text: p.text})
		case partPointer:
			lx = append(lx, tokenizer.Lexeme{Kind: tokenizer.Operator, Text: p.text})
		default:
			lx = append(lx, tokenizer.Lexeme{Kind: tokenizer.Identifier, Text: p.full()})
		}
	}
	return tokenizer.JoinLexemes(lx)
}

// baseTypeOf returns the type name a member lookup should continue from and
// the template arguments written after it.
func baseTypeOf(parts []declPart) (string, string) {
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i].kind == partName {
			return strings.TrimPrefix(parts[i].text, "::"), parts[i].tmpl
		}
	}
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i].kind == partKeyword && isBuiltinType(parts[i].text) {
			return parts[i].text, ""
		}
	}
	return "", ""
}

func hasKeyword(parts []declPart, kw string) bool {
	for _, p := range parts {
		if p.kind == partKeyword && p.text == kw {
			return true
		}
	}
	return false
}

// lexString splits text into raw lexemes without macro expansion.
func lexString(text string) []tokenizer.Lexeme {
	tk := tokenizer.New(tokenizer.Options{})
	tk.Init(text)
	var out []tokenizer.Lexeme
	for {
		lx := tk.GetNextToken()
		if lx.Kind == tokenizer.EOF {
			return out
		}
		out = append(out, lx)
	}
}

// splitTopLevel splits lexemes at commas outside any brackets, including
// angle brackets.
func splitTopLevel(lx []tokenizer.Lexeme) [][]tokenizer.Lexeme {
	var out [][]tokenizer.Lexeme
	depth, start := 0, 0
	for i, l := range lx {
		if l.Kind != tokenizer.Operator {
			continue
		}
		switch l.Text {
		case "(", "[", "{", "<":
			depth++
		case ")", "]", "}", ">":
			if depth > 0 {
				depth--
			}
		case ">>":
			depth -= 2
			if depth < 0 {
				depth = 0
			}
		case ",":
			if depth == 0 {
				out = append(out, lx[start:i])
				start = i + 1
			}
		}
	}
	if start < len(lx) {
		out = append(out, lx[start:])
	}
	return out
}

// cutDefault drops a top-level "= value" suffix.
func cutDefault(lx []tokenizer.Lexeme) []tokenizer.Lexeme {
	depth := 0
	for i, l := range lx {
		if l.Kind != tokenizer.Operator {
			continue
		}
		switch l.Text {
		case "(", "[", "{", "<":
			depth++
		case ")", "]", "}", ">":
			depth--
		case "=":
			if depth == 0 {
				return lx[:i]
			}
		}
	}
	return lx
}

// paramName finds the declared name of one parameter. It returns -1 for
// unnamed parameters.
func paramName(lx []tokenizer.Lexeme) int {
	// function pointer: ( * name )
	for i := 0; i+3 < len(lx); i++ {
		if lx[i].Is("(") && (lx[i+1].Is("*") || lx[i+1].Is("&")) && lx[i+2].Kind == tokenizer.Identifier && lx[i+3].Is(")") {
			return i + 2
		}
	}
	end := len(lx)
	for end > 0 && lx[end-1].Is("]") {
		// array suffix
		for end > 0 && !lx[end-1].Is("[") {
			end--
		}
		end--
	}
	if end < 2 {
		return -1
	}
	last := lx[end-1]
	if last.Kind != tokenizer.Identifier {
		return -1
	}
	prev := lx[end-2]
	switch {
	case prev.Kind == tokenizer.Identifier:
		return end - 1
	case prev.Kind == tokenizer.Keyword:
		if prev.Text == "const" || prev.Text == "volatile" || isSpecifier(prev.Text) {
			return -1
		}
		return end - 1
	case prev.Kind == tokenizer.Operator:
		switch prev.Text {
		case "*", "&", "&&", ">", "...":
			return end - 1
		}
	}
	return -1
}

// param is one parsed function parameter.
type param struct {
	name string
	line int
	typ  []tokenizer.Lexeme
}

// parseParams splits an argument list into parameters with the declared
// names removed.
func parseParams(args []tokenizer.Lexeme) []param {
	var out []param
	for _, raw := range splitTopLevel(args) {
		lx := cutDefault(raw)
		if len(lx) == 0 {
			continue
		}
		if len(lx) == 1 && lx[0].Is("void") {
			continue
		}
		p := param{}
		if i := paramName(lx); i >= 0 {
			p.name = lx[i].Text
			p.line = lx[i].Line
			p.typ = make([]tokenizer.Lexeme, 0, len(lx)-1)
			p.typ = append(p.typ, lx[:i]...)
			p.typ = append(p.typ, lx[i+1:]...)
		} else {
			p.typ = lx
		}
		out = append(out, p)
	}
	return out
}

// normalizeArgs renders an argument list for overload matching: defaults and
// parameter names removed, "(void)" collapsed to "()".
func normalizeArgs(args []tokenizer.Lexeme) string {
	params := parseParams(args)
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, tokenizer.JoinLexemes(p.typ))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// paramBaseType returns the lookup type of a parameter's type lexemes.
func paramBaseType(lx []tokenizer.Lexeme) (string, string) {
	var parts []declPart
	for i := 0; i < len(lx); i++ {
		l := lx[i]
		switch {
		case l.Kind == tokenizer.Identifier || l.Is("::"):
			text := l.Text
			if l.Is("::") && i+1 < len(lx) && lx[i+1].Kind == tokenizer.Identifier {
				text += lx[i+1].Text
				i++
			}
			for i+2 < len(lx) && lx[i+1].Is("::") && lx[i+2].Kind == tokenizer.Identifier {
				text += "::" + lx[i+2].Text
				i += 2
			}
			p := declPart{kind: partName, text: text}
			if i+1 < len(lx) && lx[i+1].Is("<") {
				depth := 0
				start := i + 1
				for i+1 < len(lx) {
					i++
					if lx[i].Is("<") {
						depth++
					} else if lx[i].Is(">") {
						depth--
						if depth == 0 {
							break
						}
					}
				}
				p.tmpl = "<" + tokenizer.JoinLexemes(lx[start+1:i]) + ">"
			}
			parts = append(parts, p)
		case l.Kind == tokenizer.Keyword:
			parts = append(parts, declPart{kind: partKeyword, text: l.Text})
		}
	}
	return baseTypeOf(parts)
}

// templateParams extracts the formal parameter names of "<typename T, int N = 1>".
func templateParams(text string) []string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "<")
	text = strings.TrimSuffix(text, ">")
	var out []string
	for _, p := range splitTopLevel(lexString(text)) {
		p = cutDefault(p)
		for i := len(p) - 1; i >= 0; i-- {
			if p[i].Kind == tokenizer.Identifier {
				out = append(out, p[i].Text)
				break
			}
		}
	}
	return out
}

// parseAncestors reads a base-class list such as
// "public Base<int>, private virtual Other".
func parseAncestors(lx []tokenizer.Lexeme, defaultAccess types.AccessKind) []types.Ancestor {
	var out []types.Ancestor
	for _, spec := range splitTopLevel(lx) {
		a := types.Ancestor{Access: defaultAccess}
		var name []tokenizer.Lexeme
		for _, l := range spec {
			switch {
			case l.Is("virtual"):
				a.Virtual = true
			case l.Is("public") || l.Is("protected") || l.Is("private"):
				a.Access = types.ParseAccessKind(l.Text)
			case l.Is("...") || l.Is("typename"):
			default:
				name = append(name, l)
			}
		}
		if len(name) == 0 {
			continue
		}
		a.Name = strings.TrimPrefix(tokenizer.JoinLexemes(name), "::")
		out = append(out, a)
	}
	return out
}

func ancestorsString(list []types.Ancestor) string {
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = a.Name
	}
	return strings.Join(names, ",")
}
