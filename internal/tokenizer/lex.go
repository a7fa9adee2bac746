package tokenizer

import (
	"strings"

	"github.com/standardbeagle/cccomplete/internal/debug"
)

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (t *Tokenizer) peekByte(off int) byte {
	if t.pos+off < len(t.src) {
		return t.src[t.pos+off]
	}
	return 0
}

// advance moves the cursor one byte, counting lines.
func (t *Tokenizer) advance() {
	if t.pos < len(t.src) {
		if t.src[t.pos] == '\n' {
			t.line++
			t.atLineStart = true
		}
		t.pos++
	}
}

// lex produces the next raw lexeme, before macro expansion.
func (t *Tokenizer) lex() Lexeme {
	for {
		t.skipWhitespaceAndComments()
		if t.pos >= len(t.src) {
			if len(t.conds) > 0 {
				t.log.Log(debug.ComponentTokenizer, "%d unterminated conditional(s) at EOF", len(t.conds))
				t.conds = nil
			}
			return Lexeme{Kind: EOF, Line: t.line}
		}
		c := t.src[t.pos]
		if c == '#' && t.atLineStart {
			if lx, ok := t.directive(); ok {
				return lx
			}
			continue
		}
		t.atLineStart = false

		line := t.line
		doc := t.doc
		t.doc = ""

		var lx Lexeme
		switch {
		case isIdentStart(c):
			lx = t.lexIdentifier()
		case isDigit(c) || (c == '.' && isDigit(t.peekByte(1))):
			lx = t.lexNumber()
		case c == '"':
			lx = t.lexQuoted('"', String, "")
		case c == '\'':
			lx = t.lexQuoted('\'', Char, "")
		default:
			lx = t.lexOperator()
		}
		lx.Line = line
		lx.Doc = doc
		return lx
	}
}

func (t *Tokenizer) skipWhitespaceAndComments() {
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			t.pos++
		case c == '\n':
			t.advance()
		case c == '\\' && (t.peekByte(1) == '\n' || (t.peekByte(1) == '\r' && t.peekByte(2) == '\n')):
			// line splice outside a directive
			for t.src[t.pos] != '\n' {
				t.pos++
			}
			t.line++
			t.pos++
		case c == '/' && t.peekByte(1) == '/':
			t.lineComment()
		case c == '/' && t.peekByte(1) == '*':
			t.blockComment()
		default:
			return
		}
	}
}

func (t *Tokenizer) lineComment() {
	line := t.line
	start := t.pos + 2
	for t.pos < len(t.src) && t.src[t.pos] != '\n' {
		if t.src[t.pos] == '\\' && t.peekByte(1) == '\n' {
			t.pos++
			t.advance()
			t.atLineStart = false
			continue
		}
		t.pos++
	}
	t.collectDoc(t.src[start:t.pos], false, line)
}

func (t *Tokenizer) blockComment() {
	line := t.line
	start := t.pos + 2
	t.pos += 2
	for t.pos < len(t.src) {
		if t.src[t.pos] == '*' && t.peekByte(1) == '/' {
			body := t.src[start:t.pos]
			t.pos += 2
			t.collectDoc(body, true, line)
			return
		}
		t.advance()
	}
	// unterminated comment ends at EOF
	t.collectDoc(t.src[start:], true, line)
}

// collectDoc files a comment body as leading or trailing documentation.
func (t *Tokenizer) collectDoc(body string, block bool, line int) {
	if !t.opts.StoreDocumentation || body == "" {
		return
	}
	marker := body[0]
	if block {
		if (marker != '*' && marker != '!') || body == "*" || strings.HasPrefix(body, "**") {
			return
		}
	} else if (marker != '/' && marker != '!') || strings.HasPrefix(body, "//") {
		return
	}
	body = body[1:]
	trailing := strings.HasPrefix(body, "<")
	if trailing {
		body = body[1:]
	}
	text := cleanDoc(body)
	if text == "" {
		return
	}
	if trailing {
		if t.onTrailingDoc != nil {
			t.onTrailingDoc(text, line)
		}
		return
	}
	if t.doc != "" {
		t.doc += "\n" + text
	} else {
		t.doc = text
	}
}

func cleanDoc(body string) string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimLeft(l, "*")
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func (t *Tokenizer) lexIdentifier() Lexeme {
	start := t.pos
	for t.pos < len(t.src) && isIdentChar(t.src[t.pos]) {
		t.pos++
	}
	text := t.src[start:t.pos]

	// encoding prefixes of string and char literals
	if t.pos < len(t.src) {
		switch next := t.src[t.pos]; {
		case next == '"' && (text == "R" || text == "LR" || text == "uR" || text == "UR" || text == "u8R"):
			return t.lexRawString(text)
		case next == '"' && (text == "L" || text == "u" || text == "U" || text == "u8"):
			return t.lexQuoted('"', String, text)
		case next == '\'' && (text == "L" || text == "u" || text == "U" || text == "u8"):
			return t.lexQuoted('\'', Char, text)
		}
	}

	if IsKeyword(text) {
		return Lexeme{Kind: Keyword, Text: text}
	}
	return Lexeme{Kind: Identifier, Text: text}
}

func (t *Tokenizer) lexNumber() Lexeme {
	start := t.pos
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		switch {
		case isIdentChar(c) || c == '.':
			t.pos++
		case c == '\'' && isIdentChar(t.peekByte(1)) && t.pos > start:
			t.pos++ // digit separator
		case (c == '+' || c == '-') && t.pos > start && strings.ContainsRune("eEpP", rune(t.src[t.pos-1])) && !isHexBody(t.src[start:t.pos]):
			t.pos++
		default:
			return Lexeme{Kind: Number, Text: t.src[start:t.pos]}
		}
	}
	return Lexeme{Kind: Number, Text: t.src[start:t.pos]}
}

// isHexBody reports whether a hex integer literal is in progress, where 'e' is a digit.
func isHexBody(s string) bool {
	return (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) && !strings.ContainsAny(s, "pP")
}

// lexQuoted reads a string or char literal. An unterminated literal ends at
// the end of the line.
func (t *Tokenizer) lexQuoted(quote byte, kind LexemeKind, prefix string) Lexeme {
	start := t.pos - len(prefix)
	t.pos++
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		switch {
		case c == '\\' && t.pos+1 < len(t.src):
			if t.src[t.pos+1] == '\n' {
				t.pos++
				t.advance()
				t.atLineStart = false
				continue
			}
			t.pos += 2
			continue
		case c == quote:
			t.pos++
			return Lexeme{Kind: kind, Text: t.src[start:t.pos]}
		case c == '\n':
			t.log.Log(debug.ComponentTokenizer, "unterminated literal at line %d", t.line)
			return Lexeme{Kind: kind, Text: t.src[start:t.pos]}
		}
		t.pos++
	}
	return Lexeme{Kind: kind, Text: t.src[start:t.pos]}
}

// lexRawString reads R"delim( ... )delim", which may span lines.
func (t *Tokenizer) lexRawString(prefix string) Lexeme {
	start := t.pos - len(prefix)
	open := strings.IndexByte(t.src[t.pos+1:], '(')
	if open < 0 || open > 16 || strings.ContainsAny(t.src[t.pos+1:t.pos+1+open], " \t\n\\\")") {
		// not a raw string after all; lexQuoted consumes the opening quote
		return t.lexQuoted('"', String, prefix)
	}
	t.pos++ // opening quote
	delim := t.src[t.pos : t.pos+open]
	t.pos += open + 1
	end := strings.Index(t.src[t.pos:], ")"+delim+"\"")
	stop := len(t.src)
	if end >= 0 {
		stop = t.pos + end + len(delim) + 2
	}
	for t.pos < stop {
		t.advance()
	}
	t.atLineStart = false
	return Lexeme{Kind: String, Text: t.src[start:t.pos]}
}

func (t *Tokenizer) lexOperator() Lexeme {
	rest := t.src[t.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			t.pos += len(op)
			return Lexeme{Kind: Operator, Text: op}
		}
	}
	t.pos++
	return Lexeme{Kind: Operator, Text: rest[:1]}
}

// skipRestOfLine moves to the end of the current logical line, honoring
// line splices, without consuming the newline.
func (t *Tokenizer) skipRestOfLine() {
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		if c == '\n' {
			return
		}
		if c == '\\' && t.peekByte(1) == '\n' {
			t.pos++
			t.advance()
			continue
		}
		if c == '/' && t.peekByte(1) == '*' {
			// a block comment may run past the line end
			t.pos += 2
			for t.pos < len(t.src) && !(t.src[t.pos] == '*' && t.peekByte(1) == '/') {
				t.advance()
			}
			t.pos = min(t.pos+2, len(t.src))
			continue
		}
		t.pos++
	}
}

// readRestOfLine returns the remaining logical line with comments stripped.
func (t *Tokenizer) readRestOfLine() string {
	var b strings.Builder
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		switch {
		case c == '\n':
			return strings.TrimSpace(b.String())
		case c == '\\' && (t.peekByte(1) == '\n' || (t.peekByte(1) == '\r' && t.peekByte(2) == '\n')):
			for t.src[t.pos] != '\n' {
				t.pos++
			}
			t.advance()
			t.atLineStart = false
			b.WriteByte(' ')
			continue
		case c == '/' && t.peekByte(1) == '/':
			for t.pos < len(t.src) && t.src[t.pos] != '\n' {
				t.pos++
			}
			continue
		case c == '/' && t.peekByte(1) == '*':
			t.pos += 2
			for t.pos < len(t.src) && !(t.src[t.pos] == '*' && t.peekByte(1) == '/') {
				t.advance()
			}
			t.atLineStart = false
			t.pos = min(t.pos+2, len(t.src))
			b.WriteByte(' ')
			continue
		case c == '"' || c == '\'':
			lx := t.lexQuoted(c, String, "")
			b.WriteString(lx.Text)
			continue
		case c == '\r':
			t.pos++
			continue
		}
		b.WriteByte(c)
		t.pos++
	}
	return strings.TrimSpace(b.String())
}
