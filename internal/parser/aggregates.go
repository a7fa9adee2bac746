package parser

import (
	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/tokenizer"
	"github.com/standardbeagle/cccomplete/internal/types"
)

func aggregateKind(kw string) types.TokenKind {
	switch kw {
	case "struct":
		return types.KindStruct
	case "union":
		return types.KindUnion
	case "enum":
		return types.KindEnum
	default:
		return types.KindClass
	}
}

// namespace handles "namespace A::B {", "namespace X = Y;" and anonymous or
// inline namespaces, whose members are placed in the enclosing scope.
func (b *builder) namespace(kw tokenizer.Lexeme, sc scope, inline bool) {
	var names []tokenizer.Lexeme
	for {
		lx := b.next()
		if lx.Kind == tokenizer.Identifier {
			names = append(names, lx)
			if b.accept("::") {
				b.accept("inline")
				continue
			}
			break
		}
		if lx.Is("[") && b.peek().Is("[") {
			b.next()
			b.tk.SkipBlock("[")
			b.accept("]")
			continue
		}
		b.tk.Unget(lx)
		break
	}

	if len(names) == 1 && b.accept("=") {
		parts, stop := b.readParts(nil)
		if i := lastName(parts); i >= 0 {
			tok := types.NewToken(names[0].Text, types.KindTypedef)
			tok.Line = names[0].Line
			tok.Doc = kw.Doc
			tok.AliasOf = parts[i].text
			tok.BaseType = parts[i].text
			tok.IsLocal = sc.local()
			b.add(tok, sc.parent)
		}
		b.endStatement(stop)
		return
	}
	if !b.accept("{") {
		b.skipStatement()
		return
	}
	if len(names) == 0 || inline {
		b.parseScope(sc)
		return
	}

	parent := sc.parent
	for i, n := range names {
		if existing := b.store.FindFirstChild(parent, n.Text, types.KindNamespace); existing >= 0 {
			parent = existing
			continue
		}
		tok := types.NewToken(n.Text, types.KindNamespace)
		tok.Line = n.Line
		if i == 0 {
			tok.Doc = kw.Doc
		}
		parent = b.add(tok, parent)
	}
	b.parseScope(scope{parent: parent, kind: scopeNamespace, access: types.AccessPublic})
}

// aggregateHead reads the names between "class"/"struct"/"union"/"enum" and
// the lexeme that ends the head, skipping attributes and export macros.
func (b *builder) aggregateHead() ([]declPart, tokenizer.Lexeme) {
	var names []declPart
	for {
		lx := b.next()
		switch {
		case lx.Kind == tokenizer.Identifier && isAttributeWord(lx.Text):
			if b.accept("(") {
				b.tk.SkipBlock("(")
			}
		case lx.Is("alignas"):
			if b.accept("(") {
				b.tk.SkipBlock("(")
			}
		case lx.Is("[") && b.peek().Is("["):
			b.next()
			b.tk.SkipBlock("[")
			b.accept("]")
		case lx.Is("final"):
		case lx.Kind == tokenizer.Identifier || lx.Is("::"):
			names = append(names, b.qualifiedName(lx))
		default:
			return names, lx
		}
	}
}

// aggregate handles class, struct and union specifiers.
func (b *builder) aggregate(kw tokenizer.Lexeme, sc scope, o declOptions) {
	kind := aggregateKind(kw.Text)
	doc := o.doc
	if doc == "" {
		doc = kw.Doc
	}
	names, stop := b.aggregateHead()

	if !stop.Is("{") && !stop.Is(":") {
		b.elaborated(kw, names, stop, sc, o, doc)
		return
	}

	var name declPart
	if len(names) > 0 {
		// earlier identifiers are export macros
		name = names[len(names)-1]
	}

	defaultAccess := types.AccessPrivate
	if kind != types.KindClass {
		defaultAccess = types.AccessPublic
	}
	var ancestors []types.Ancestor
	if stop.Is(":") {
		var base []tokenizer.Lexeme
		for {
			lx := b.next()
			if lx.Kind == tokenizer.EOF || lx.Is("{") || lx.Is(";") {
				stop = lx
				break
			}
			base = append(base, lx)
		}
		ancestors = parseAncestors(base, defaultAccess)
		if !stop.Is("{") {
			b.log.Log(debug.ComponentParser, "base list without body at line %d", kw.Line)
			return
		}
	}

	tok := types.NewToken(name.last(), kind)
	tok.Line = kw.Line
	if name.text != "" {
		tok.Line = name.line
		tok.Qualifier = name.qualifier()
	} else {
		tok.Name = b.unnamedName(kind)
		tok.IsUnnamed = true
	}
	tok.Doc = doc
	tok.Access = sc.access
	tok.IsLocal = sc.local()
	tok.Ancestors = ancestors
	tok.AncestorsString = ancestorsString(ancestors)
	tok.ImplFile = b.file
	tok.ImplLine = tok.Line
	tok.ImplLineStart = stop.Line
	o.apply(tok)
	if o.tmpl == nil && name.tmpl != "" {
		// explicit specialization
		tok.TemplateArgument = name.tmpl
	}
	idx := b.add(tok, sc.parent)

	end, _ := b.parseScope(scope{parent: idx, kind: scopeClass, access: defaultAccess, className: tok.Name})
	tok.ImplLineEnd = end
	b.lastToken = idx
	b.trailingDeclarators(idx, tok, sc, o)
}

// elaborated handles a class key used as a type specifier rather than as a
// definition: forward declarations and "struct stat buf;".
func (b *builder) elaborated(kw tokenizer.Lexeme, names []declPart, stop tokenizer.Lexeme, sc scope, o declOptions, doc string) {
	if len(names) == 0 {
		b.endStatement(stop)
		return
	}
	if len(names) == 1 && stop.Is(";") && !o.typedef {
		tok := types.NewToken(names[0].last(), aggregateKind(kw.Text))
		tok.Line = names[0].line
		tok.Doc = doc
		tok.Access = sc.access
		tok.Qualifier = names[0].qualifier()
		tok.IsForward = true
		tok.IsLocal = sc.local()
		o.apply(tok)
		b.add(tok, sc.parent)
		return
	}
	parts := make([]declPart, 0, len(names)+1)
	parts = append(parts, declPart{kind: partKeyword, text: kw.Text, line: kw.Line, doc: doc})
	parts = append(parts, names...)
	if stop.Is("*") || stop.Is("&") || stop.Is("&&") || stop.Kind == tokenizer.Identifier {
		b.tk.Unget(stop)
		parts, stop = b.readParts(parts)
	}
	o.doc = doc
	b.finishDeclaration(parts, stop, sc, o)
}

// trailingDeclarators handles what follows the closing brace of a class or
// enum body: variables of the type, or typedef names.
func (b *builder) trailingDeclarators(idx int, tok *types.Token, sc scope, o declOptions) {
	if b.accept(";") {
		return
	}
	typePart := declPart{kind: partName, text: tok.Name, line: tok.Line}
	if !o.typedef {
		parts, stop := b.readParts([]declPart{typePart})
		if lastName(parts) == 0 {
			b.endStatement(stop)
			return
		}
		b.finishDeclaration(parts, stop, sc, declOptions{})
		return
	}

	for first := true; ; first = false {
		parts, stop := b.readParts(nil)
		if i := lastName(parts); i >= 0 {
			n := parts[i]
			ptrs := parts[:i]
			if first && tok.IsUnnamed && len(ptrs) == 0 {
				// typedef struct { ... } Name;
				b.store.Rename(idx, n.last())
				tok.IsUnnamed = false
				typePart.text = tok.Name
			} else {
				td := types.NewToken(n.last(), types.KindTypedef)
				td.Line = n.line
				td.Access = sc.access
				td.IsLocal = sc.local()
				td.AliasOf = typeText(append([]declPart{typePart}, ptrs...))
				td.BaseType = typePart.text
				if first {
					td.Doc = o.doc
				}
				b.add(td, sc.parent)
			}
		}
		if !stop.Is(",") {
			b.endStatement(stop)
			return
		}
	}
}

// enum handles enum and "enum class" specifiers.
func (b *builder) enum(kw tokenizer.Lexeme, sc scope, o declOptions) {
	doc := o.doc
	if doc == "" {
		doc = kw.Doc
	}
	if !b.accept("class") {
		b.accept("struct")
	}
	names, stop := b.aggregateHead()
	if stop.Is(":") {
		// underlying type
		for {
			stop = b.next()
			if stop.Kind == tokenizer.EOF || stop.Is("{") || stop.Is(";") {
				break
			}
		}
	}
	if !stop.Is("{") {
		b.elaborated(kw, names, stop, sc, o, doc)
		return
	}

	tok := types.NewToken("", types.KindEnum)
	tok.Line = kw.Line
	if len(names) > 0 {
		name := names[len(names)-1]
		tok.Name = name.last()
		tok.Line = name.line
		tok.Qualifier = name.qualifier()
	} else {
		tok.Name = b.unnamedName(types.KindEnum)
		tok.IsUnnamed = true
	}
	tok.Doc = doc
	tok.Access = sc.access
	tok.IsLocal = sc.local()
	tok.ImplFile = b.file
	tok.ImplLine = tok.Line
	tok.ImplLineStart = stop.Line
	idx := b.add(tok, sc.parent)

	tok.ImplLineEnd = b.enumerators(idx)
	b.lastToken = idx
	b.trailingDeclarators(idx, tok, sc, o)
}

// enumerators reads an enum body whose '{' was consumed and returns the line
// of the closing brace.
func (b *builder) enumerators(parent int) int {
	for {
		lx := b.next()
		switch {
		case lx.Kind == tokenizer.EOF || lx.Is("}"):
			return lx.Line
		case lx.Kind == tokenizer.Preprocessor:
			b.directive(lx)
		case lx.Kind == tokenizer.Identifier:
			tok := types.NewToken(lx.Text, types.KindEnumerator)
			tok.Line = lx.Line
			tok.Doc = lx.Doc
			tok.Access = types.AccessPublic
			b.add(tok, parent)
			if b.accept("[") {
				// [[deprecated]]
				b.tk.SkipBlock("[")
			}
			if b.accept("=") {
				stop, ok := b.tk.SkipToOneOf(",", "}")
				if !ok {
					return stop.Line
				}
				if stop.Is("}") {
					return stop.Line
				}
			}
		}
	}
}

// typedef handles every form of typedef declaration.
func (b *builder) typedef(kw tokenizer.Lexeme, sc scope) {
	o := declOptions{typedef: true, doc: kw.Doc}
	lx := b.next()
	switch {
	case lx.Is("struct") || lx.Is("class") || lx.Is("union"):
		b.aggregate(lx, sc, o)
	case lx.Is("enum"):
		b.enum(lx, sc, o)
	default:
		b.tk.Unget(lx)
		parts, stop := b.readParts(nil)
		b.finishDeclaration(parts, stop, sc, o)
	}
}

// using handles using-directives, alias declarations and using-declarations.
func (b *builder) using(kw tokenizer.Lexeme, sc scope, tmpl *templateInfo) {
	if b.accept("namespace") {
		parts, stop := b.readParts(nil)
		if i := lastName(parts); i >= 0 {
			b.store.AddUsingNamespace(b.file, parts[i].text)
		}
		b.endStatement(stop)
		return
	}

	lx := b.next()
	if lx.Kind != tokenizer.Identifier || !b.peek().Is("=") {
		// using Base::member;
		b.tk.Unget(lx)
		b.skipStatement()
		return
	}
	b.next()

	kind := types.KindTypedef
	if tmpl != nil {
		kind = types.KindTemplateAlias
	}
	doc := kw.Doc
	if tmpl != nil && doc == "" {
		doc = tmpl.doc
	}
	tok := types.NewToken(lx.Text, kind)
	tok.Line = lx.Line
	tok.Doc = doc
	tok.Access = sc.access
	tok.IsLocal = sc.local()
	parts, stop := b.readParts(nil)
	tok.AliasOf = typeText(parts)
	tok.BaseType, _ = baseTypeOf(parts)
	if stop.Is("(") {
		// using Fn = void(int);
		args, _ := b.tk.ReadParenGroupLexemes()
		tok.Args = "(" + tokenizer.JoinLexemes(args) + ")"
		tok.AliasOf += tok.Args
		stop = b.next()
	}
	if tmpl != nil {
		tok.TemplateArgument = tmpl.text
		tok.TemplateParams = append([]string(nil), tmpl.params...)
	}
	b.add(tok, sc.parent)
	b.endStatement(stop)
}

// template handles "template<...>" followed by the templated declaration.
func (b *builder) template(kw tokenizer.Lexeme, sc scope) {
	if !b.accept("<") {
		// explicit instantiation
		b.skipStatement()
		return
	}
	text, ok := b.tk.ReadAngleGroup()
	if !ok {
		return
	}
	tmpl := &templateInfo{text: text, params: templateParams(text), doc: kw.Doc}
	o := declOptions{tmpl: tmpl, doc: kw.Doc}

	lx := b.next()
	switch {
	case lx.Is("class") || lx.Is("struct") || lx.Is("union"):
		b.aggregate(lx, sc, o)
	case lx.Is("using"):
		b.using(lx, sc, tmpl)
	case lx.Is("template"):
		lx.Doc = kw.Doc
		b.template(lx, sc)
	case lx.Is("friend"):
		if stop, ok := b.tk.SkipToOneOf(";", "{"); ok && stop.Is("{") {
			b.tk.SkipBlock("{")
		}
	case lx.Is("concept"):
		b.skipStatement()
	case lx.Kind == tokenizer.Keyword || lx.Kind == tokenizer.Identifier || lx.Is("::") || lx.Is("~"):
		b.declaration(lx, sc, o)
	default:
		b.endStatement(lx)
	}
}
