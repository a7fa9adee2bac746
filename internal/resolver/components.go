package resolver

import (
	"strings"
)

// ComponentKind is the role a component plays in an expression.
type ComponentKind uint8

const (
	// ComponentSearchText is the text being typed; always the last component.
	ComponentSearchText ComponentKind = iota
	// ComponentClass is a value followed by '.' or '->'.
	ComponentClass
	// ComponentNamespace is a scope followed by '::'.
	ComponentNamespace
	// ComponentFunction is a name followed by a call.
	ComponentFunction
	// ComponentTypeCast is the target type of a C-style cast.
	ComponentTypeCast
)

func (k ComponentKind) String() string {
	switch k {
	case ComponentSearchText:
		return "search-text"
	case ComponentClass:
		return "class"
	case ComponentNamespace:
		return "namespace"
	case ComponentFunction:
		return "function"
	case ComponentTypeCast:
		return "type-cast"
	}
	return "unknown"
}

// OperatorKind is the operator that follows a component.
type OperatorKind uint8

const (
	OperatorNone OperatorKind = iota
	OperatorDot
	OperatorArrow
	OperatorScope
	// OperatorSquare marks a subscripted value, "a[i]."
	OperatorSquare
	// OperatorParen marks a call applied to the result of a call, "f()()."
	OperatorParen
)

func (o OperatorKind) String() string {
	switch o {
	case OperatorDot:
		return "."
	case OperatorArrow:
		return "->"
	case OperatorScope:
		return "::"
	case OperatorSquare:
		return "[]"
	case OperatorParen:
		return "()"
	}
	return ""
}

// ParserComponent is one segment of a decomposed expression.
type ParserComponent struct {
	Text         string
	TemplateArgs string
	Kind         ComponentKind
	Operator     OperatorKind
}

// maxComponents bounds the chain length of one expression.
const maxComponents = 64

// BreakUpComponents splits expr on top-level '.', '->' and '::'. Calls and
// subscripts are folded into the component they apply to. An expression
// ending in an operator yields a trailing empty search-text component; a
// malformed chain such as "a..b" yields none.
func BreakUpComponents(expr string) []ParserComponent {
	return breakUp(strings.TrimSpace(expr), 0)
}

func breakUp(expr string, depth int) []ParserComponent {
	var out []ParserComponent
	if depth > 8 {
		return out
	}
	sc := &exprScanner{s: expr}
	sc.skipUnary()
	if sc.accept("::") {
		// rooted at the global scope
		out = append(out, ParserComponent{Kind: ComponentNamespace, Operator: OperatorScope})
	}

	for len(out) < maxComponents {
		sc.skipSpace()
		if sc.done() {
			if n := len(out); n > 0 && out[n-1].Operator != OperatorNone {
				out = append(out, ParserComponent{Kind: ComponentSearchText})
			}
			return out
		}

		var comp ParserComponent
		switch {
		case sc.peek() == '(':
			inner, ok := sc.group('(', ')')
			if !ok {
				// unbalanced: the caret is inside the group
				return breakUp(inner, depth+1)
			}
			sc.skipSpace()
			if typ := castType(inner); typ != "" && (isIdentStart(sc.peek()) || sc.peek() == '(') {
				// (Type*)operand
				comp = ParserComponent{Text: typ, Kind: ComponentTypeCast}
				sc.skipOperand()
			} else {
				sub := breakUp(inner, depth+1)
				if len(sub) == 0 {
					return out
				}
				out = append(out, sub[:len(sub)-1]...)
				comp = sub[len(sub)-1]
				if comp.Kind == ComponentSearchText {
					comp.Kind = ComponentClass
				}
			}
		case isIdentStart(sc.peek()) || sc.peek() == '~':
			comp.Text = sc.ident()
			sc.skipSpace()
			if sc.peek() == '<' {
				if args, ok := sc.templateArgs(); ok {
					comp.TemplateArgs = args
				}
			}
		default:
			if n := len(out); n > 0 && out[n-1].Operator != OperatorNone {
				// an operator followed by another operator, e.g. "a..b"
				return nil
			}
			// not an expression character
			return out
		}

		sc.skipSpace()
		for !sc.done() {
			switch sc.peek() {
			case '(':
				if inner, ok := sc.group('(', ')'); !ok {
					return breakUp(inner, depth+1)
				}
				if comp.Kind == ComponentFunction {
					comp.Operator = OperatorParen
				}
				comp.Kind = ComponentFunction
				sc.skipSpace()
				continue
			case '[':
				if inner, ok := sc.group('[', ']'); !ok {
					return breakUp(inner, depth+1)
				}
				comp.Operator = OperatorSquare
				sc.skipSpace()
				continue
			}
			break
		}

		sep := OperatorNone
		switch {
		case sc.accept("->"):
			sep = OperatorArrow
		case sc.accept("::"):
			sep = OperatorScope
		case sc.accept("."):
			sep = OperatorDot
		}
		if sep == OperatorNone && !sc.done() {
			// trailing garbage ends the expression
			sc.pos = len(sc.s)
		}

		switch {
		case sep == OperatorNone:
			if comp.Kind != ComponentTypeCast {
				comp.Kind = ComponentSearchText
			}
			comp.Operator = OperatorNone
		case comp.Operator == OperatorSquare || comp.Operator == OperatorParen:
			if comp.Kind == ComponentSearchText {
				comp.Kind = ComponentClass
			}
		case sep == OperatorScope:
			if comp.Kind != ComponentFunction && comp.Kind != ComponentTypeCast {
				comp.Kind = ComponentNamespace
			}
			comp.Operator = sep
		default:
			if comp.Kind == ComponentSearchText {
				comp.Kind = ComponentClass
			}
			comp.Operator = sep
		}
		out = append(out, comp)
		if sep == OperatorNone {
			return out
		}
	}
	return out
}

// castType returns the type named by the contents of "(Type*)" or "" when
// inner does not look like a type.
func castType(inner string) string {
	t := strings.TrimSpace(inner)
	for _, p := range []string{"const ", "struct ", "class ", "typename "} {
		t = strings.TrimPrefix(t, p)
	}
	t = strings.TrimRight(t, "*& ")
	t = strings.TrimSuffix(t, " const")
	t = strings.TrimRight(t, "*& ")
	if i := strings.IndexByte(t, '<'); i >= 0 {
		if !strings.HasSuffix(t, ">") {
			return ""
		}
		t = strings.TrimSpace(t[:i])
	}
	if t == "" {
		return ""
	}
	for i := 0; i < len(t); i++ {
		if c := t[i]; !isIdentChar(c) && c != ':' {
			return ""
		}
	}
	return strings.TrimPrefix(t, "::")
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// exprScanner walks an expression string byte by byte.
type exprScanner struct {
	s   string
	pos int
}

func (sc *exprScanner) done() bool { return sc.pos >= len(sc.s) }

func (sc *exprScanner) peek() byte {
	if sc.done() {
		return 0
	}
	return sc.s[sc.pos]
}

func (sc *exprScanner) accept(op string) bool {
	if strings.HasPrefix(sc.s[sc.pos:], op) {
		sc.pos += len(op)
		return true
	}
	return false
}

func (sc *exprScanner) skipSpace() {
	for !sc.done() && (sc.s[sc.pos] == ' ' || sc.s[sc.pos] == '\t') {
		sc.pos++
	}
}

// skipUnary drops leading '*', '&' and '!' operators.
func (sc *exprScanner) skipUnary() {
	for {
		sc.skipSpace()
		switch sc.peek() {
		case '*', '&', '!':
			sc.pos++
		default:
			return
		}
	}
}

func (sc *exprScanner) ident() string {
	start := sc.pos
	if sc.peek() == '~' {
		sc.pos++
	}
	for !sc.done() && isIdentChar(sc.s[sc.pos]) {
		sc.pos++
	}
	return sc.s[start:sc.pos]
}

// group consumes a bracketed group starting at the current open byte and
// returns its contents. When the group is not closed it returns the
// remaining text and false.
func (sc *exprScanner) group(open, close byte) (string, bool) {
	start := sc.pos + 1
	depth := 0
	for i := sc.pos; i < len(sc.s); i++ {
		switch c := sc.s[i]; c {
		case '"', '\'':
			i = skipQuoted(sc.s, i)
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				sc.pos = i + 1
				return sc.s[start:i], true
			}
		}
	}
	sc.pos = len(sc.s)
	return sc.s[start:], false
}

// templateArgs consumes "<...>" when it is balanced and looks like a
// template argument list rather than a comparison.
func (sc *exprScanner) templateArgs() (string, bool) {
	depth := 0
	for i := sc.pos; i < len(sc.s); i++ {
		switch sc.s[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				args := sc.s[sc.pos : i+1]
				sc.pos = i + 1
				return args, true
			}
		case ';', '{', '}', '|', '&', '=':
			return "", false
		}
	}
	return "", false
}

// skipOperand consumes the operand of a C-style cast up to the next
// top-level separator.
func (sc *exprScanner) skipOperand() {
	for !sc.done() {
		switch c := sc.peek(); {
		case c == '(':
			if _, ok := sc.group('(', ')'); !ok {
				return
			}
		case c == '[':
			if _, ok := sc.group('[', ']'); !ok {
				return
			}
		case isIdentChar(c) || c == ' ':
			sc.pos++
		default:
			return
		}
	}
}

func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j
		}
	}
	return len(s) - 1
}
