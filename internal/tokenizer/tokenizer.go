// Package tokenizer turns C/C++ source text into a restartable stream of
// lexemes. It never fails: malformed literals and comments end at the line or
// input end, and lexing resumes at the next character.
package tokenizer

import (
	"github.com/standardbeagle/cccomplete/internal/debug"
)

// maxExpansions bounds macro expansion work for a single returned lexeme.
const maxExpansions = 256

// Options configure one tokenizer instance.
type Options struct {
	// WantPreprocessor registers object-like #define macros for inline expansion.
	WantPreprocessor bool
	// StoreDocumentation collects doc comments onto lexemes.
	StoreDocumentation bool
	// Macros is the initial replacement table (name -> body). It is always applied.
	Macros map[string]string
	Logger *debug.Logger
}

type macro struct {
	body     string
	lexemes  []Lexeme
	compiled bool
}

type condState struct {
	line int
}

// Tokenizer lexes one source buffer.
type Tokenizer struct {
	opts Options
	log  *debug.Logger

	src         string
	pos         int
	line        int
	atLineStart bool

	// unget is returned verbatim; expansion lexemes are still subject to
	// macro expansion. Both are stacks with the next lexeme last.
	unget     []Lexeme
	expansion []Lexeme

	last     Lexeme
	macros   map[string]*macro
	conds    []condState
	doc      string
	carryDoc string

	lastInclude *Directive
	lastDefine  *Directive

	onTrailingDoc func(doc string, line int)
}

// State is an opaque cursor snapshot taken by Save.
type State struct {
	pos, line   int
	atLineStart bool
	unget       []Lexeme
	expansion   []Lexeme
	last        Lexeme
	conds       []condState
	doc         string
	carryDoc    string
}

// New creates a tokenizer. Call Init before reading lexemes.
func New(opts Options) *Tokenizer {
	log := opts.Logger
	if log == nil {
		log = debug.Discard()
	}
	t := &Tokenizer{opts: opts, log: log}
	t.Init("")
	return t
}

// Init loads source and resets the cursor, line counter and macro table.
func (t *Tokenizer) Init(source string) {
	t.src = source
	t.pos = 0
	t.line = 1
	t.atLineStart = true
	t.unget = t.unget[:0]
	t.expansion = t.expansion[:0]
	t.last = Lexeme{}
	t.conds = nil
	t.doc = ""
	t.carryDoc = ""
	t.lastInclude = nil
	t.lastDefine = nil
	t.macros = make(map[string]*macro, len(t.opts.Macros))
	for name, body := range t.opts.Macros {
		t.macros[name] = &macro{body: body}
	}
}

// SetTrailingDocHandler installs the callback receiving ///< and //!< comments.
func (t *Tokenizer) SetTrailingDocHandler(fn func(doc string, line int)) {
	t.onTrailingDoc = fn
}

// Line is the current line of the raw cursor.
func (t *Tokenizer) Line() int {
	return t.line
}

// AddMacro registers an object-like macro.
func (t *Tokenizer) AddMacro(name, body string) {
	t.macros[name] = &macro{body: body}
}

// RemoveMacro forgets a macro.
func (t *Tokenizer) RemoveMacro(name string) {
	delete(t.macros, name)
}

// HasMacro reports whether name is currently a known object-like macro.
func (t *Tokenizer) HasMacro(name string) bool {
	_, ok := t.macros[name]
	return ok
}

// ReadInclude returns the most recent #include directive.
func (t *Tokenizer) ReadInclude() (*Directive, bool) {
	return t.lastInclude, t.lastInclude != nil
}

// ReadDefine returns the most recent #define directive.
func (t *Tokenizer) ReadDefine() (*Directive, bool) {
	return t.lastDefine, t.lastDefine != nil
}

// GetNextToken returns the next lexeme, or an EOF lexeme at end of input.
func (t *Tokenizer) GetNextToken() Lexeme {
	if n := len(t.unget); n > 0 {
		lx := t.unget[n-1]
		t.unget = t.unget[:n-1]
		t.last = lx
		return lx
	}

	for expansions := 0; ; {
		var lx Lexeme
		if n := len(t.expansion); n > 0 {
			lx = t.expansion[n-1]
			t.expansion = t.expansion[:n-1]
		} else {
			lx = t.lex()
		}

		if lx.Kind == Identifier && expansions < maxExpansions {
			if m, ok := t.macros[lx.Text]; ok && !hidden(lx.hide, lx.Text) {
				expansions++
				t.expand(lx, m)
				continue
			}
		} else if lx.Kind == Identifier && expansions >= maxExpansions {
			t.log.Log(debug.ComponentTokenizer, "expansion limit reached at line %d (%s)", lx.Line, lx.Text)
		}

		if t.carryDoc != "" && lx.Doc == "" && lx.Kind != EOF {
			lx.Doc = t.carryDoc
		}
		t.carryDoc = ""
		t.last = lx
		return lx
	}
}

// PeekToken returns the next lexeme without consuming it.
func (t *Tokenizer) PeekToken() Lexeme {
	prev := t.last
	lx := t.GetNextToken()
	t.unget = append(t.unget, lx)
	t.last = prev
	return lx
}

// UngetToken pushes the last returned lexeme back.
func (t *Tokenizer) UngetToken() {
	t.unget = append(t.unget, t.last)
}

// Unget pushes lx back so it is returned next.
func (t *Tokenizer) Unget(lx Lexeme) {
	t.unget = append(t.unget, lx)
}

// Save snapshots the cursor.
func (t *Tokenizer) Save() State {
	return State{
		pos:         t.pos,
		line:        t.line,
		atLineStart: t.atLineStart,
		unget:       append([]Lexeme(nil), t.unget...),
		expansion:   append([]Lexeme(nil), t.expansion...),
		last:        t.last,
		conds:       append([]condState(nil), t.conds...),
		doc:         t.doc,
		carryDoc:    t.carryDoc,
	}
}

// Restore rewinds the cursor to a snapshot taken on the same source.
func (t *Tokenizer) Restore(s State) {
	t.pos = s.pos
	t.line = s.line
	t.atLineStart = s.atLineStart
	t.unget = append(t.unget[:0], s.unget...)
	t.expansion = append(t.expansion[:0], s.expansion...)
	t.last = s.last
	t.conds = append(t.conds[:0], s.conds...)
	t.doc = s.doc
	t.carryDoc = s.carryDoc
}

func (t *Tokenizer) expand(use Lexeme, m *macro) {
	if !m.compiled {
		sub := New(Options{Logger: t.log})
		sub.Init(m.body)
		for {
			lx := sub.lex()
			if lx.Kind == EOF {
				break
			}
			lx.Doc = ""
			m.lexemes = append(m.lexemes, lx)
		}
		m.compiled = true
	}
	if len(m.lexemes) == 0 {
		if use.Doc != "" {
			t.carryDoc = use.Doc
		}
		return
	}
	hide := make([]string, len(use.hide)+1)
	copy(hide, use.hide)
	hide[len(use.hide)] = use.Text
	for i := len(m.lexemes) - 1; i >= 0; i-- {
		lx := m.lexemes[i]
		lx.Line = use.Line
		lx.Expanded = true
		lx.hide = hide
		if i == 0 {
			lx.Doc = use.Doc
		}
		t.expansion = append(t.expansion, lx)
	}
}

func hidden(hide []string, name string) bool {
	for _, h := range hide {
		if h == name {
			return true
		}
	}
	return false
}

// ReadParenGroupLexemes consumes lexemes up to the ')' matching an already
// consumed '(' and returns the inner lexemes. ok is false at EOF.
func (t *Tokenizer) ReadParenGroupLexemes() (inner []Lexeme, ok bool) {
	depth := 1
	for {
		lx := t.GetNextToken()
		switch {
		case lx.Kind == EOF:
			return inner, false
		case lx.Kind == Preprocessor:
			continue
		case lx.Is("(") || lx.Is("[") || lx.Is("{"):
			depth++
		case lx.Is(")") || lx.Is("]") || lx.Is("}"):
			depth--
			if depth == 0 {
				return inner, true
			}
		}
		inner = append(inner, lx)
	}
}

// ReadParenGroup returns the normalized text of a parenthesized group whose
// '(' was already consumed, including both parentheses.
func (t *Tokenizer) ReadParenGroup() string {
	inner, _ := t.ReadParenGroupLexemes()
	return "(" + JoinLexemes(inner) + ")"
}

// ReadAngleGroup reads a template argument list whose '<' was already
// consumed. It gives up, pushing back the stop lexeme, on ';', '{' or '}'
// outside parentheses, so comparisons do not swallow statements.
func (t *Tokenizer) ReadAngleGroup() (string, bool) {
	var inner []Lexeme
	depth, parens := 1, 0
	for {
		lx := t.GetNextToken()
		switch {
		case lx.Kind == EOF:
			return "<" + JoinLexemes(inner) + ">", false
		case lx.Is("(") || lx.Is("["):
			parens++
		case lx.Is(")") || lx.Is("]"):
			if parens > 0 {
				parens--
			}
		case parens == 0 && (lx.Is(";") || lx.Is("{") || lx.Is("}")):
			t.Unget(lx)
			return "<" + JoinLexemes(inner) + ">", false
		case parens == 0 && lx.Is("<"):
			depth++
		case parens == 0 && lx.Is(">"):
			depth--
		case parens == 0 && lx.Is(">>"):
			if depth == 1 {
				// the second '>' belongs to the enclosing context
				t.Unget(Lexeme{Kind: Operator, Text: ">", Line: lx.Line})
				depth = 0
			} else {
				depth -= 2
				if depth == 0 {
					lx.Text = ">"
					inner = append(inner, lx)
				}
			}
		}
		if depth <= 0 {
			return "<" + JoinLexemes(inner) + ">", true
		}
		inner = append(inner, lx)
	}
}

// SkipBlock skips to the bracket matching an already consumed open bracket
// ("{", "(" or "["). It reports false when EOF is reached first.
func (t *Tokenizer) SkipBlock(open string) bool {
	closer := map[string]string{"{": "}", "(": ")", "[": "]"}[open]
	if closer == "" {
		return false
	}
	depth := 1
	for {
		lx := t.GetNextToken()
		switch {
		case lx.Kind == EOF:
			return false
		case lx.Is(open):
			depth++
		case lx.Is(closer):
			depth--
			if depth == 0 {
				return true
			}
		}
	}
}

// SkipToOneOf consumes lexemes until one of the operators in stops appears
// outside any brackets, and returns it. A closing bracket that would leave the
// current nesting level is pushed back and reported with ok false.
func (t *Tokenizer) SkipToOneOf(stops ...string) (Lexeme, bool) {
	depth := 0
	for {
		lx := t.GetNextToken()
		if lx.Kind == EOF {
			return lx, false
		}
		if lx.Kind != Operator {
			continue
		}
		if depth == 0 {
			for _, s := range stops {
				if lx.Text == s {
					return lx, true
				}
			}
		}
		switch lx.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			if depth == 0 {
				t.Unget(lx)
				return lx, false
			}
			depth--
		}
	}
}

// SkipToEOL discards buffered lexemes and the rest of the current line.
func (t *Tokenizer) SkipToEOL() {
	t.unget = t.unget[:0]
	t.expansion = t.expansion[:0]
	t.skipRestOfLine()
}
