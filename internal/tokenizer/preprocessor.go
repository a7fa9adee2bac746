package tokenizer

import (
	"strings"

	"github.com/standardbeagle/cccomplete/internal/debug"
)

// directive handles a '#' at the start of a line. It returns a Preprocessor
// lexeme for #include and #define; every other directive is consumed here.
func (t *Tokenizer) directive() (Lexeme, bool) {
	line := t.line
	doc := t.doc
	t.doc = ""
	t.pos++ // '#'
	t.atLineStart = false
	t.skipBlanks()
	name := t.readWord()

	switch name {
	case "include", "include_next", "import":
		d := &Directive{Name: "include", Line: line}
		t.skipBlanks()
		rest := t.readRestOfLine()
		switch {
		case strings.HasPrefix(rest, "<"):
			d.Angled = true
			if end := strings.IndexByte(rest, '>'); end > 0 {
				d.Path = rest[1:end]
			} else {
				d.Path = rest[1:]
			}
		case strings.HasPrefix(rest, "\""):
			if end := strings.IndexByte(rest[1:], '"'); end >= 0 {
				d.Path = rest[1 : end+1]
			} else {
				d.Path = rest[1:]
			}
		default:
			d.Path = rest // computed include, left to the caller
		}
		t.lastInclude = d
		return Lexeme{Kind: Preprocessor, Text: "include", Line: line, Doc: doc, Directive: d}, true

	case "define":
		d := t.readDefine(line)
		if d == nil {
			t.skipRestOfLine()
			return Lexeme{}, false
		}
		if !d.FunctionLike && t.opts.WantPreprocessor {
			t.AddMacro(d.Macro, d.Body)
		}
		t.lastDefine = d
		return Lexeme{Kind: Preprocessor, Text: "define", Line: line, Doc: doc, Directive: d}, true

	case "undef":
		t.skipBlanks()
		if m := t.readWord(); m != "" && t.opts.WantPreprocessor {
			t.RemoveMacro(m)
		}
		t.skipRestOfLine()

	case "if", "ifdef", "ifndef":
		expr := t.readRestOfLine()
		t.openConditional(name, expr, line)

	case "elif", "elifdef", "elifndef", "else":
		// reached from a taken branch: everything up to #endif is skipped
		t.skipRestOfLine()
		if len(t.conds) == 0 {
			t.log.Log(debug.ComponentTokenizer, "#%s without #if at line %d", name, line)
			return Lexeme{}, false
		}
		t.skipConditional(false)
		t.conds = t.conds[:len(t.conds)-1]

	case "endif":
		t.skipRestOfLine()
		if len(t.conds) > 0 {
			t.conds = t.conds[:len(t.conds)-1]
		}

	default:
		// pragma, error, warning, line and the null directive
		t.skipRestOfLine()
	}
	return Lexeme{}, false
}

// openConditional enters an #if block. Only a literal false condition is
// evaluated; every other condition takes its first branch, so header guards
// and feature tests behave as if defined.
func (t *Tokenizer) openConditional(name, expr string, line int) {
	for name == "if" || name == "elif" {
		if !isFalseCondition(expr) {
			break
		}
		stop, next := t.skipConditional(true)
		switch stop {
		case "endif", "":
			return
		case "else":
			t.conds = append(t.conds, condState{line: line})
			return
		default: // elif family
			name, expr = stop, next
		}
	}
	t.conds = append(t.conds, condState{line: line})
}

func isFalseCondition(expr string) bool {
	expr = strings.TrimSpace(expr)
	for strings.HasPrefix(expr, "(") && strings.HasSuffix(expr, ")") {
		expr = strings.TrimSpace(expr[1 : len(expr)-1])
	}
	return expr == "0" || expr == "false"
}

// skipConditional skips source lines until the #endif closing the current
// block or, when stopAtElse is set, an #else/#elif at the same depth. It
// returns the stop directive and, for #elif, its condition.
func (t *Tokenizer) skipConditional(stopAtElse bool) (string, string) {
	depth := 0
	if t.pos < len(t.src) && t.src[t.pos] != '\n' {
		t.skipRestOfLine()
	}
	inComment := false
	for t.pos < len(t.src) {
		t.advance() // newline ending the previous line
		t.atLineStart = true
		if inComment {
			inComment = t.skipCommentTail()
			if inComment {
				continue
			}
		}
		t.skipBlanks()
		if t.pos < len(t.src) && t.src[t.pos] == '#' {
			t.pos++
			t.skipBlanks()
			name := t.readWord()
			switch name {
			case "if", "ifdef", "ifndef":
				depth++
			case "endif":
				if depth == 0 {
					t.skipRestOfLine()
					t.atLineStart = false
					return "endif", ""
				}
				depth--
			case "else", "elif", "elifdef", "elifndef":
				if depth == 0 && stopAtElse {
					expr := t.readRestOfLine()
					t.atLineStart = false
					return name, expr
				}
			}
		}
		inComment = t.skipLineTracking()
	}
	t.log.Log(debug.ComponentTokenizer, "conditional block runs to EOF")
	return "", ""
}

// skipLineTracking skips to the end of the line and reports whether a block
// comment is still open there.
func (t *Tokenizer) skipLineTracking() bool {
	for t.pos < len(t.src) && t.src[t.pos] != '\n' {
		c := t.src[t.pos]
		switch {
		case c == '\\' && t.peekByte(1) == '\n':
			t.pos++
			t.advance()
			continue
		case c == '/' && t.peekByte(1) == '/':
			for t.pos < len(t.src) && t.src[t.pos] != '\n' {
				t.pos++
			}
			return false
		case c == '/' && t.peekByte(1) == '*':
			t.pos += 2
			if t.skipCommentTail() {
				return true
			}
			continue
		case c == '"' || c == '\'':
			t.lexQuoted(c, String, "")
			continue
		}
		t.pos++
	}
	return false
}

// skipCommentTail consumes a block comment body on the current line. It
// reports true when the comment continues on the next line.
func (t *Tokenizer) skipCommentTail() bool {
	for t.pos < len(t.src) && t.src[t.pos] != '\n' {
		if t.src[t.pos] == '*' && t.peekByte(1) == '/' {
			t.pos += 2
			return false
		}
		t.pos++
	}
	return true
}

func (t *Tokenizer) skipBlanks() {
	for t.pos < len(t.src) && (t.src[t.pos] == ' ' || t.src[t.pos] == '\t' || t.src[t.pos] == '\r') {
		t.pos++
	}
}

func (t *Tokenizer) readWord() string {
	start := t.pos
	for t.pos < len(t.src) && isIdentChar(t.src[t.pos]) {
		t.pos++
	}
	return t.src[start:t.pos]
}

func (t *Tokenizer) readDefine(line int) *Directive {
	t.skipBlanks()
	name := t.readWord()
	if name == "" {
		return nil
	}
	d := &Directive{Name: "define", Line: line, Macro: name}
	if t.pos < len(t.src) && t.src[t.pos] == '(' {
		d.FunctionLike = true
		end := strings.IndexByte(t.src[t.pos:], ')')
		nl := strings.IndexByte(t.src[t.pos:], '\n')
		if end < 0 || (nl >= 0 && nl < end) {
			d.Params = "()"
		} else {
			d.Params = t.src[t.pos : t.pos+end+1]
			t.pos += end + 1
		}
	}
	d.Body = t.readRestOfLine()
	return d
}
