package parser

import (
	"strings"

	"github.com/standardbeagle/cccomplete/internal/tokenizer"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// templateInfo is a pending "template<...>" header.
type templateInfo struct {
	text   string
	params []string
	doc    string
}

type declOptions struct {
	tmpl    *templateInfo
	typedef bool
	forInit bool
	doc     string
}

func (o declOptions) apply(tok *types.Token) {
	if o.tmpl == nil {
		return
	}
	tok.TemplateArgument = o.tmpl.text
	tok.TemplateParams = append([]string(nil), o.tmpl.params...)
}

// declaration parses a declaration or expression statement starting at first.
func (b *builder) declaration(first tokenizer.Lexeme, sc scope, o declOptions) {
	b.tk.Unget(first)
	parts, stop := b.readParts(nil)
	b.finishDeclaration(parts, stop, sc, o)
}

// readParts reads declaration specifiers and a declarator name, appending to
// parts, up to the first lexeme that cannot be part of them.
func (b *builder) readParts(parts []declPart) ([]declPart, tokenizer.Lexeme) {
	for {
		lx := b.next()
		switch {
		case lx.Kind == tokenizer.Preprocessor:
			b.directive(lx)
		case lx.Kind == tokenizer.Identifier && isAttributeWord(lx.Text):
			if b.accept("(") {
				b.tk.SkipBlock("(")
			}
		case lx.Kind == tokenizer.Identifier || lx.Is("::") || lx.Is("~"):
			if lx.Is("~") && b.peek().Kind != tokenizer.Identifier {
				return parts, lx
			}
			parts = append(parts, b.qualifiedName(lx))
		case lx.Is("operator"):
			parts = append(parts, declPart{kind: partOperator, text: b.operatorName(), line: lx.Line, doc: lx.Doc})
		case lx.Is("decltype") || lx.Is("typeof") || lx.Is("__typeof__"):
			p := declPart{kind: partName, text: lx.Text, line: lx.Line, doc: lx.Doc}
			if b.accept("(") {
				p.text += b.tk.ReadParenGroup()
			}
			parts = append(parts, p)
		case lx.Is("alignas"):
			if b.accept("(") {
				b.tk.SkipBlock("(")
			}
		case lx.Is("template"):
			// "typename A::template B<T>"
		case lx.Kind == tokenizer.Keyword && (isSpecifier(lx.Text) || isBuiltinType(lx.Text) ||
			lx.Text == "const" || lx.Text == "volatile"):
			parts = append(parts, declPart{kind: partKeyword, text: lx.Text, line: lx.Line, doc: lx.Doc})
		case lx.Is("*") || lx.Is("&") || lx.Is("&&") || lx.Is("..."):
			parts = append(parts, declPart{kind: partPointer, text: lx.Text, line: lx.Line, doc: lx.Doc})
		case lx.Is("[") && b.peek().Is("["):
			b.next()
			b.tk.SkipBlock("[")
			b.accept("]")
		default:
			return parts, lx
		}
	}
}

// qualifiedName reads "A::B<T>::c" starting at first. Template arguments of
// inner components are dropped; those of the last component are kept in tmpl.
func (b *builder) qualifiedName(first tokenizer.Lexeme) declPart {
	p := declPart{kind: partName, line: first.Line, doc: first.Doc}
	var sb strings.Builder
	lx := first
	if lx.Is("::") {
		sb.WriteString("::")
		lx = b.next()
	}
	for {
		switch {
		case lx.Kind == tokenizer.Identifier:
			sb.WriteString(lx.Text)
		case lx.Is("~") && b.peek().Kind == tokenizer.Identifier:
			sb.WriteString("~" + b.next().Text)
		case lx.Is("operator"):
			sb.WriteString(b.operatorName())
			p.kind = partOperator
			p.text = sb.String()
			return p
		case lx.Is("template"):
			lx = b.next()
			continue
		default:
			b.tk.Unget(lx)
			p.text = strings.TrimSuffix(sb.String(), "::")
			return p
		}
		p.line = lx.Line
		p.tmpl = ""
		if b.peek().Is("<") {
			b.next()
			p.tmpl, _ = b.tk.ReadAngleGroup()
		}
		if !b.peek().Is("::") {
			p.text = sb.String()
			return p
		}
		b.next()
		sb.WriteString("::")
		lx = b.next()
	}
}

// operatorName reads the symbol after an already consumed "operator".
func (b *builder) operatorName() string {
	lx := b.next()
	switch {
	case lx.Is("("):
		b.accept(")")
		return "operator()"
	case lx.Is("["):
		b.accept("]")
		return "operator[]"
	case lx.Is("new") || lx.Is("delete"):
		name := "operator " + lx.Text
		if b.accept("[") {
			b.accept("]")
			name += "[]"
		}
		return name
	case lx.Kind == tokenizer.Operator:
		return "operator" + lx.Text
	case lx.Kind == tokenizer.String:
		// user-defined literal
		suffix := b.next()
		return "operator\"\" " + suffix.Text
	}
	// conversion operator
	conv := []tokenizer.Lexeme{lx}
	for {
		nx := b.peek()
		if nx.Is("(") || nx.Is(";") || nx.Is("{") || nx.Kind == tokenizer.EOF {
			break
		}
		conv = append(conv, b.next())
	}
	return "operator " + tokenizer.JoinLexemes(conv)
}

func lastName(parts []declPart) int {
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i].kind == partName || parts[i].kind == partOperator {
			return i
		}
	}
	return -1
}

// hasType reports whether parts name a type beyond storage specifiers.
func hasType(parts []declPart) bool {
	for _, p := range parts {
		if p.kind != partKeyword || !isSpecifier(p.text) {
			return true
		}
	}
	return false
}

// endStatement consumes whatever is left of a statement after stop.
func (b *builder) endStatement(stop tokenizer.Lexeme) {
	switch {
	case stop.Kind == tokenizer.EOF || stop.Is(";"):
	case stop.Is("}") || stop.Is(")") || stop.Is("]"):
		b.tk.Unget(stop)
	case stop.Is("{"):
		b.tk.SkipBlock("{")
		b.accept(";")
	case stop.Is("(") || stop.Is("["):
		b.tk.SkipBlock(stop.Text)
		b.skipStatement()
	default:
		b.skipStatement()
	}
}

// finishDeclaration decides what the parts read so far declare.
func (b *builder) finishDeclaration(parts []declPart, stop tokenizer.Lexeme, sc scope, o declOptions) {
	if o.doc == "" && len(parts) > 0 {
		o.doc = parts[0].doc
	}
	nameIdx := lastName(parts)

	if stop.Is("(") {
		if p := b.peek(); (p.Is("*") || p.Is("&")) && (hasType(parts) || o.typedef) {
			if b.functionPointer(parts, sc, o) {
				return
			}
			b.endStatement(stop)
			return
		}
		if nameIdx < 0 {
			b.endStatement(stop)
			return
		}
		name, typeParts := parts[nameIdx], parts[:nameIdx]
		switch {
		case o.typedef:
			b.functionTypedef(name, typeParts, sc, o)
		case sc.local() && o.forInit:
			b.endStatement(stop)
		case sc.local():
			if !hasType(typeParts) {
				// call expression
				b.endStatement(stop)
				return
			}
			// "Type name(args);" declares a local object
			b.tk.SkipBlock("(")
			b.variables(typeParts, name, b.next(), sc, o)
		case !hasType(typeParts) && name.kind != partOperator && !b.isStructor(name, sc):
			// macro invocation such as DECLARE_THING(x) or TEST(a, b) { ... }
			b.tk.SkipBlock("(")
			if b.accept("{") {
				b.tk.SkipBlock("{")
			}
			b.accept(";")
		default:
			b.function(name, typeParts, sc, o)
		}
		return
	}

	switch {
	case stop.Is(";") || stop.Is(",") || stop.Is("=") || stop.Is("[") || stop.Is("{") || stop.Is(":"):
		if nameIdx < 0 || !hasType(parts[:nameIdx]) || parts[nameIdx].kind == partOperator {
			if o.forInit && (stop.Is(";") || stop.Is(":")) {
				return
			}
			b.endStatement(stop)
			return
		}
		b.variables(parts[:nameIdx], parts[nameIdx], stop, sc, o)
	default:
		if o.forInit {
			if stop.Is(")") {
				b.tk.Unget(stop)
			}
			return
		}
		b.endStatement(stop)
	}
}

// isStructor reports whether name, written without a return type, is a
// constructor or destructor of the scope it is declared in or qualified by.
func (b *builder) isStructor(name declPart, sc scope) bool {
	last := name.last()
	if strings.HasPrefix(last, "~") {
		return true
	}
	if q := name.qualifier(); q != "" {
		if i := strings.LastIndex(q, "::"); i >= 0 {
			q = q[i+2:]
		}
		return q == last
	}
	return sc.kind == scopeClass && last == sc.className
}

// variables creates one token per declarator of a variable or typedef
// declaration. stop is the lexeme that ended the first declarator.
func (b *builder) variables(typeParts []declPart, name declPart, stop tokenizer.Lexeme, sc scope, o declOptions) {
	// declarator pointers do not carry over to the next declarator
	core := typeParts
	for len(core) > 0 && core[len(core)-1].kind == partPointer {
		core = core[:len(core)-1]
	}
	for first := true; ; first = false {
		tok := b.variableToken(typeParts, name, sc, o)
		if first {
			tok.Doc = o.doc
		}
		b.add(tok, sc.parent)

	suffixes:
		for {
			switch {
			case stop.Is("["):
				b.tk.SkipBlock("[")
			case stop.Is("="):
				if tok.BaseType == "auto" {
					b.inferAuto(tok)
				}
				extra := []string{",", ";"}
				if o.forInit {
					extra = append(extra, ":")
				}
				s, ok := b.tk.SkipToOneOf(extra...)
				if !ok {
					return
				}
				stop = s
				continue
			case stop.Is("{"):
				b.tk.SkipBlock("{")
			case stop.Is("("):
				b.tk.SkipBlock("(")
			case stop.Is(":"):
				if o.forInit {
					return
				}
				s, ok := b.tk.SkipToOneOf(",", ";")
				if !ok {
					return
				}
				stop = s
				continue
			default:
				break suffixes
			}
			stop = b.next()
		}

		if !stop.Is(",") {
			if o.forInit && stop.Is(";") {
				return
			}
			b.endStatement(stop)
			return
		}
		var parts []declPart
		parts, stop = b.readParts(nil)
		idx := lastName(parts)
		if idx < 0 {
			b.endStatement(stop)
			return
		}
		typeParts = append(append([]declPart(nil), core...), parts[:idx]...)
		name = parts[idx]
		o.doc = ""
	}
}

func (b *builder) variableToken(typeParts []declPart, name declPart, sc scope, o declOptions) *types.Token {
	kind := types.KindVariable
	if o.typedef {
		kind = types.KindTypedef
	}
	tok := types.NewToken(name.last(), kind)
	tok.Line = name.line
	tok.Access = sc.access
	tok.Qualifier = name.qualifier()
	tok.Type = typeText(typeParts)
	base, args := baseTypeOf(typeParts)
	tok.BaseType = base
	tok.IsConst = hasKeyword(typeParts, "const")
	tok.IsStatic = hasKeyword(typeParts, "static")
	tok.IsLocal = sc.local()
	if o.typedef {
		tok.AliasOf = tok.Type
		o.apply(tok)
	} else {
		tok.TemplateArgument = args
	}
	return tok
}

// inferAuto takes the type of "auto x = T(...)", "auto x = new T" and
// "auto x = std::make_shared<T>(...)" initializers.
func (b *builder) inferAuto(tok *types.Token) {
	isNew := b.accept("new")
	lx := b.peek()
	if lx.Kind != tokenizer.Identifier && !lx.Is("::") {
		return
	}
	p := b.qualifiedName(b.next())
	switch last := p.last(); {
	case (last == "make_shared" || last == "make_unique") && p.tmpl != "":
		tok.BaseType = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(p.tmpl, "<"), ">"))
	case isNew || b.peek().Is("(") || b.peek().Is("{"):
		tok.BaseType = strings.TrimPrefix(p.text, "::")
		tok.TemplateArgument = p.tmpl
	}
}

// functionPointer handles "ret (*name)(args)" declarators. The '(' before
// the '*' was consumed. It reports false, with the cursor restored, when the
// group is not followed by a parameter list.
func (b *builder) functionPointer(typeParts []declPart, sc scope, o declOptions) bool {
	saved := b.tk.Save()
	inner, _ := b.tk.ReadParenGroupLexemes()
	var name tokenizer.Lexeme
	for i := len(inner) - 1; i >= 0; i-- {
		if inner[i].Kind == tokenizer.Identifier {
			name = inner[i]
			break
		}
	}
	if name.Text == "" || !b.accept("(") {
		b.tk.Restore(saved)
		return false
	}
	args, _ := b.tk.ReadParenGroupLexemes()

	kind := types.KindVariable
	if o.typedef {
		kind = types.KindTypedef
	}
	tok := types.NewToken(name.Text, kind)
	tok.Line = name.Line
	tok.Access = sc.access
	tok.Doc = o.doc
	tok.IsLocal = sc.local()
	ret := typeText(typeParts)
	tok.Type = ret + "(*)(" + tokenizer.JoinLexemes(args) + ")"
	tok.BaseType, _ = baseTypeOf(typeParts)
	tok.Args = "(" + tokenizer.JoinLexemes(args) + ")"
	tok.BaseArgs = normalizeArgs(args)
	if o.typedef {
		tok.AliasOf = tok.Type
	}
	b.add(tok, sc.parent)

	stop := b.next()
	if stop.Is("=") {
		stop, _ = b.tk.SkipToOneOf(";")
	}
	b.endStatement(stop)
	return true
}

// functionTypedef handles "typedef ret name(args);".
func (b *builder) functionTypedef(name declPart, typeParts []declPart, sc scope, o declOptions) {
	args, _ := b.tk.ReadParenGroupLexemes()
	tok := types.NewToken(name.last(), types.KindTypedef)
	tok.Line = name.line
	tok.Access = sc.access
	tok.Doc = o.doc
	tok.Type = typeText(typeParts)
	tok.BaseType, _ = baseTypeOf(typeParts)
	tok.Args = "(" + tokenizer.JoinLexemes(args) + ")"
	tok.BaseArgs = normalizeArgs(args)
	tok.AliasOf = tok.Type + tok.Args
	b.add(tok, sc.parent)
	b.endStatement(b.next())
}

// function parses the rest of a function declaration or definition after
// the '(' that opens its parameter list.
func (b *builder) function(name declPart, typeParts []declPart, sc scope, o declOptions) {
	args, _ := b.tk.ReadParenGroupLexemes()

	kind := types.KindFunction
	switch {
	case strings.HasPrefix(name.last(), "~"):
		kind = types.KindDestructor
	case !hasType(typeParts) && b.isStructor(name, sc):
		kind = types.KindConstructor
	}
	tok := types.NewToken(name.last(), kind)
	tok.Line = name.line
	tok.Access = sc.access
	tok.Doc = o.doc
	tok.Qualifier = name.qualifier()
	tok.IsOperator = name.kind == partOperator
	tok.Args = "(" + tokenizer.JoinLexemes(args) + ")"
	tok.BaseArgs = normalizeArgs(args)
	tok.Type = typeText(typeParts)
	tok.BaseType, _ = baseTypeOf(typeParts)
	tok.IsStatic = hasKeyword(typeParts, "static")
	tok.IsVirtual = hasKeyword(typeParts, "virtual")
	o.apply(tok)

	for {
		lx := b.next()
		switch {
		case lx.Is("const"):
			tok.IsConst = true
		case lx.Is("volatile") || lx.Is("override") || lx.Is("final") || lx.Is("&") ||
			lx.Is("&&") || lx.Is("mutable") || lx.Is("try"):
		case lx.Is("noexcept") || lx.Is("throw"):
			if b.accept("(") {
				b.tk.SkipBlock("(")
			}
		case lx.Is("->"):
			rt, stop := b.readParts(nil)
			tok.Type = typeText(rt)
			tok.BaseType, _ = baseTypeOf(rt)
			b.tk.Unget(stop)
		case lx.Is("requires"):
			stop, ok := b.tk.SkipToOneOf("{", ";")
			if ok {
				b.tk.Unget(stop)
			}
		case lx.Is("[") && b.peek().Is("["):
			b.next()
			b.tk.SkipBlock("[")
			b.accept("]")
		case lx.Kind == tokenizer.Identifier:
			if isAttributeWord(lx.Text) && b.accept("(") {
				b.tk.SkipBlock("(")
			}
		case lx.Is("="):
			// "= 0", "= default", "= delete"
			v := b.next()
			if v.Text == "0" {
				tok.IsVirtual = true
			}
			b.add(tok, sc.parent)
			if !v.Is(";") {
				b.endStatement(b.next())
			}
			return
		case lx.Is(":"):
			if !b.skipInitializers() {
				b.add(tok, sc.parent)
				return
			}
			b.functionBody(tok, lx, args, sc)
			return
		case lx.Is("{"):
			b.functionBody(tok, lx, args, sc)
			return
		case lx.Is("("):
			b.tk.SkipBlock("(")
		case lx.Is(";"):
			b.add(tok, sc.parent)
			return
		default:
			b.add(tok, sc.parent)
			b.endStatement(lx)
			return
		}
	}
}

// skipInitializers skips a constructor member initializer list and consumes
// the '{' opening the body. It reports false when no body follows.
func (b *builder) skipInitializers() bool {
	for {
		lx := b.next()
		switch {
		case lx.Kind == tokenizer.EOF:
			return false
		case lx.Is("{"):
			return true
		case lx.Is(";") || lx.Is("}"):
			b.tk.Unget(lx)
			return false
		case lx.Kind == tokenizer.Identifier || lx.Is("::"):
			b.qualifiedName(lx)
			switch {
			case b.accept("("):
				b.tk.SkipBlock("(")
			case b.accept("{"):
				b.tk.SkipBlock("{")
			}
		}
	}
}

// functionBody records a definition whose '{' was consumed and parses or
// skips the body.
func (b *builder) functionBody(tok *types.Token, brace tokenizer.Lexeme, args []tokenizer.Lexeme, sc scope) {
	tok.ImplFile = b.file
	tok.ImplLine = tok.Line
	tok.ImplLineStart = brace.Line
	tok.IsLocal = sc.local()
	idx := b.add(tok, sc.parent)

	if b.opts.SkipBlockBodies {
		b.tk.SkipBlock("{")
		tok.ImplLineEnd = b.tk.Line()
	} else {
		for _, p := range parseParams(args) {
			if p.name == "" {
				continue
			}
			v := types.NewToken(p.name, types.KindVariable)
			v.Line = p.line
			v.Type = tokenizer.JoinLexemes(p.typ)
			v.BaseType, v.TemplateArgument = paramBaseType(p.typ)
			v.IsLocal = true
			v.IsConst = len(p.typ) > 0 && p.typ[0].Is("const")
			b.add(v, idx)
		}
		end, _ := b.parseScope(scope{parent: idx, kind: scopeBody, access: types.AccessUndefined})
		tok.ImplLineEnd = end
	}
	// handlers of a function-try-block
	for b.accept("catch") {
		if b.accept("(") {
			b.tk.SkipBlock("(")
		}
		if b.accept("{") {
			b.tk.SkipBlock("{")
		}
	}
	b.lastToken = idx
}
