package parser

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/tokenizer"
	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// maxNesting bounds brace nesting; deeper blocks are skipped unparsed.
const maxNesting = 256

type scopeKind uint8

const (
	scopeNamespace scopeKind = iota
	scopeClass
	scopeBody
)

// scope is the parsing context of one brace level.
type scope struct {
	parent int
	kind   scopeKind
	access types.AccessKind
	// className is the name constructors are recognized by.
	className string
}

func (s scope) local() bool {
	return s.kind == scopeBody
}

// builder turns the lexeme stream of one file into tokens of a staging store.
type builder struct {
	tk    *tokenizer.Tokenizer
	store *tree.Store
	file  types.FileIdx
	opts  Options
	log   *debug.Logger

	includes  []Include
	onInclude func(Include)

	// lastToken receives trailing documentation comments.
	lastToken int
	unnamed   int
	depth     int
}

func newBuilder(src string, file types.FileIdx, opts Options, log *debug.Logger) *builder {
	b := &builder{
		store:     tree.NewStore(),
		file:      file,
		opts:      opts,
		log:       log,
		lastToken: -1,
	}
	b.tk = tokenizer.New(tokenizer.Options{
		WantPreprocessor:   opts.WantPreprocessor,
		StoreDocumentation: opts.StoreDocumentation,
		Macros:             opts.Macros,
		Logger:             log,
	})
	b.tk.SetTrailingDocHandler(b.trailingDoc)
	b.tk.Init(src)
	return b
}

func (b *builder) trailingDoc(doc string, _ int) {
	tok := b.store.Get(b.lastToken)
	if tok == nil {
		return
	}
	if tok.Doc == "" {
		tok.Doc = doc
	} else {
		tok.Doc += "\n" + doc
	}
}

// run parses the whole source into the staging store.
func (b *builder) run() {
	for {
		_, closed := b.parseScope(scope{parent: types.GlobalScope, kind: scopeNamespace, access: types.AccessPublic})
		if !closed {
			return
		}
		// stray '}' at file scope
		b.log.Log(debug.ComponentParser, "unbalanced '}' at line %d", b.tk.Line())
	}
}

func (b *builder) next() tokenizer.Lexeme {
	return b.tk.GetNextToken()
}

func (b *builder) peek() tokenizer.Lexeme {
	return b.tk.PeekToken()
}

// accept consumes the next lexeme when it is the operator or keyword s.
func (b *builder) accept(s string) bool {
	if b.peek().Is(s) {
		b.next()
		return true
	}
	return false
}

// add inserts tok into the staging store under parent.
func (b *builder) add(tok *types.Token, parent int) int {
	tok.Parent = parent
	tok.File = b.file
	if !b.opts.StoreDocumentation {
		tok.Doc = ""
	}
	idx := b.store.Insert(tok)
	b.lastToken = idx
	return idx
}

func (b *builder) unnamedName(kind types.TokenKind) string {
	b.unnamed++
	k := kind.String()
	return fmt.Sprintf("%s%s%d_%d", types.UnnamedPrefix, strings.ToUpper(k[:1])+k[1:], b.file, b.unnamed)
}

// parseScope reads declarations until the closing brace of the current
// scope or EOF. It returns the line of the closing brace and whether one
// was found.
func (b *builder) parseScope(sc scope) (int, bool) {
	b.depth++
	defer func() { b.depth-- }()
	if b.depth > maxNesting {
		b.log.Log(debug.ComponentParser, "nesting limit reached at line %d", b.tk.Line())
		ok := b.tk.SkipBlock("{")
		return b.tk.Line(), ok
	}

	for {
		lx := b.next()
		switch {
		case lx.Kind == tokenizer.EOF:
			return lx.Line, false
		case lx.Is("}"):
			return lx.Line, true
		case lx.Kind == tokenizer.Preprocessor:
			b.directive(lx)
		case lx.Is(";"):
		case lx.Is("{"):
			if sc.local() {
				b.parseScope(sc)
			} else {
				b.tk.SkipBlock("{")
			}
		case lx.Is("[") && b.peek().Is("["):
			b.next()
			b.tk.SkipBlock("[")
			b.accept("]")
		case lx.Kind == tokenizer.Keyword:
			b.keyword(lx, &sc)
		case lx.Kind == tokenizer.Identifier:
			if sc.kind != scopeNamespace && b.peek().Is(":") {
				// label, or a Qt-style access section such as "signals:"
				b.next()
				continue
			}
			b.declaration(lx, sc, declOptions{})
		case lx.Is("~") || lx.Is("::"):
			b.declaration(lx, sc, declOptions{})
		default:
			if sc.local() {
				b.skipStatement()
			}
		}
	}
}

// skipStatement discards the rest of an expression statement.
func (b *builder) skipStatement() {
	b.tk.SkipToOneOf(";")
}

func (b *builder) keyword(lx tokenizer.Lexeme, sc *scope) {
	switch lx.Text {
	case "namespace":
		b.namespace(lx, *sc, false)
	case "inline":
		if b.peek().Is("namespace") {
			b.namespace(b.next(), *sc, true)
			return
		}
		b.declaration(lx, *sc, declOptions{})
	case "class", "struct", "union":
		b.aggregate(lx, *sc, declOptions{})
	case "enum":
		b.enum(lx, *sc, declOptions{})
	case "typedef":
		b.typedef(lx, *sc)
	case "using":
		b.using(lx, *sc, nil)
	case "template":
		b.template(lx, *sc)
	case "public", "protected", "private":
		if b.accept(":") {
			sc.access = types.ParseAccessKind(lx.Text)
			return
		}
		// "public slots:"
		if b.peek().Kind == tokenizer.Identifier {
			b.next()
			if b.accept(":") {
				sc.access = types.ParseAccessKind(lx.Text)
			}
		}
	case "extern":
		if b.peek().Kind == tokenizer.String {
			b.next()
			if b.accept("{") {
				b.parseScope(*sc)
				return
			}
		}
		b.declaration(lx, *sc, declOptions{})
	case "friend":
		if stop, ok := b.tk.SkipToOneOf(";", "{"); ok && stop.Is("{") {
			b.tk.SkipBlock("{")
		}
	case "static_assert", "asm", "__asm__", "goto", "break", "continue", "return",
		"throw", "delete", "co_return", "co_yield", "co_await":
		b.skipStatement()
	case "if", "while", "switch", "catch":
		b.accept("constexpr")
		if b.accept("(") {
			b.tk.SkipBlock("(")
		}
	case "for":
		b.forLoop(*sc)
	case "do", "else", "try":
	case "case", "default":
		if sc.local() {
			b.tk.SkipToOneOf(":")
			return
		}
		b.skipStatement()
	case "operator", "const", "volatile", "virtual", "static", "explicit", "constexpr", "consteval",
		"constinit", "mutable", "register", "thread_local", "typename", "decltype", "auto",
		"void", "bool", "char", "char8_t", "char16_t", "char32_t", "wchar_t", "short", "int",
		"long", "signed", "unsigned", "float", "double":
		b.declaration(lx, *sc, declOptions{})
	default:
		if sc.local() {
			b.skipStatement()
		}
	}
}

// forLoop records the variables declared by a for-init or range-for clause.
func (b *builder) forLoop(sc scope) {
	if !b.accept("(") {
		return
	}
	first := b.next()
	if first.Is(";") || first.Kind == tokenizer.EOF {
		b.tk.SkipBlock("(")
		return
	}
	if first.Kind == tokenizer.Identifier || first.Kind == tokenizer.Keyword || first.Is("::") {
		b.declaration(first, sc, declOptions{forInit: true})
	}
	b.tk.SkipBlock("(")
}

func (b *builder) directive(lx tokenizer.Lexeme) {
	d := lx.Directive
	if d == nil {
		return
	}
	switch d.Name {
	case "include":
		if d.Path == "" {
			return
		}
		inc := Include{Path: d.Path, Angled: d.Angled, Line: d.Line}
		b.includes = append(b.includes, inc)
		if b.onInclude != nil {
			b.onInclude(inc)
		}
	case "define":
		if !b.opts.WantPreprocessor {
			return
		}
		tok := types.NewToken(d.Macro, types.KindMacro)
		tok.Line = d.Line
		tok.Args = d.Params
		tok.AliasOf = d.Body
		tok.Doc = lx.Doc
		b.add(tok, types.GlobalScope)
	}
}
