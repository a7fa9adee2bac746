package resolver

import (
	"strings"

	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// maxAliasDepth bounds typedef chains and nested type lookups.
const maxAliasDepth = 16

var typeQualifiers = []string{
	"const", "volatile", "struct", "class", "union", "enum", "typename",
	"mutable", "static", "inline", "constexpr", "extern", "register",
}

var builtinTypes = map[string]bool{
	"void": true, "bool": true, "char": true, "wchar_t": true, "char8_t": true,
	"char16_t": true, "char32_t": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true, "auto": true,
	"nullptr_t": true,
}

func isBuiltin(base string) bool {
	return base == "" || builtinTypes[base] || strings.HasPrefix(base, "decltype")
}

// actualType maps a token to the tokens of its type.
func (st *state) actualType(idx, depth int) types.TokenIdxSet {
	out := types.NewTokenIdxSet()
	tok := st.s.Get(idx)
	if tok == nil || depth > maxAliasDepth {
		return out
	}
	switch {
	case tok.Kind == types.KindConstructor:
		out.Add(tok.Parent)
		return out
	case tok.IsAlias():
		return st.chaseAlias(idx, "", depth)
	case tok.IsContainer():
		out.Add(st.definitionOf(idx))
		return out
	case tok.Kind == types.KindEnumerator:
		out.Add(tok.Parent)
		return out
	case tok.Kind == types.KindMacro:
		return out
	}

	base, args := tok.BaseType, ""
	if tok.Kind == types.KindVariable {
		args = tok.TemplateArgument
	} else {
		_, args = splitType(tok.Type)
	}
	if base == "" || strings.Contains(base, "<") {
		text := base
		if text == "" {
			text = tok.Type
		}
		b, a := splitType(text)
		base = b
		if a != "" {
			args = a
		}
	}
	if sub, ok := st.tmap[base]; ok {
		b, a := splitType(sub)
		base = b
		if a != "" {
			args = a
		}
	} else if st.isTemplateParam(tok, base) {
		return out
	}
	if isBuiltin(base) {
		return out
	}
	if args != "" {
		args = substituteParams(args, st.tmap)
	}
	found := st.lookupType(base, tok.Parent, depth+1)
	return st.expandAliasesWith(found, args, depth+1)
}

// isTemplateParam reports whether name is a template parameter of tok or
// of one of its enclosing scopes.
func (st *state) isTemplateParam(tok *types.Token, name string) bool {
	for t, hops := tok, 0; t != nil && hops <= st.s.Cap(); hops++ {
		for _, p := range t.TemplateParams {
			if p == name {
				return true
			}
		}
		t = st.s.Get(t.Parent)
	}
	return false
}

// lookupType resolves a possibly qualified type name as seen from the scope
// from: the scope and each enclosing scope in turn, nested types of their
// base classes, then the namespaces of using-directives. The first scope
// with a hit wins.
func (st *state) lookupType(name string, from, depth int) types.TokenIdxSet {
	if depth > maxAliasDepth {
		return types.NewTokenIdxSet()
	}
	name = strings.TrimSpace(name)
	rooted := strings.HasPrefix(name, "::")
	parts := splitScope(name)
	if len(parts) == 0 || isBuiltin(parts[0]) {
		return types.NewTokenIdxSet()
	}
	if len(parts) == 1 {
		if sub, ok := st.tmap[parts[0]]; ok && sub != parts[0] {
			base, _ := splitType(sub)
			return st.lookupType(base, from, depth+1)
		}
	}
	if rooted {
		return st.preferDefinitions(st.walk(types.GlobalScope, parts, types.KindAnyContainer, depth))
	}

	origins := []int{from}
	if from != types.GlobalScope {
		origins = append(origins, st.s.Ancestors(from)...)
		origins = append(origins, types.GlobalScope)
	}
	for _, origin := range origins {
		if found := st.walk(origin, parts, types.KindAnyContainer, depth); found.Len() > 0 {
			return st.preferDefinitions(found)
		}
		if st.isAggregate(origin) {
			for _, b := range st.allBases(origin) {
				if found := st.walk(b, parts, types.KindAnyContainer, depth); found.Len() > 0 {
					return st.preferDefinitions(found)
				}
			}
		}
	}
	for _, ns := range st.usings {
		if found := st.walk(ns, parts, types.KindAnyContainer, depth); found.Len() > 0 {
			return st.preferDefinitions(found)
		}
	}
	return types.NewTokenIdxSet()
}

// walk follows parts down from start, chasing aliases between steps.
func (st *state) walk(start int, parts []string, mask types.TokenKind, depth int) types.TokenIdxSet {
	cur := types.NewTokenIdxSet(start)
	for i, part := range parts {
		name, args := splitTemplate(part)
		next := types.NewTokenIdxSet()
		for c := range cur {
			next.Union(st.s.FindChildren(c, name, mask))
		}
		if next.Len() == 0 {
			return next
		}
		if i == len(parts)-1 {
			return next
		}
		cur = st.expandAliasesWith(next, args, depth+1)
	}
	return cur
}

// expandAliasesWith replaces aliases in set by what they name and records
// the template arguments of class templates in the query's template map.
func (st *state) expandAliasesWith(set types.TokenIdxSet, args string, depth int) types.TokenIdxSet {
	out := types.NewTokenIdxSet()
	for _, idx := range set.Sorted() {
		tok := st.s.Get(idx)
		if tok.IsAlias() {
			out.Union(st.chaseAlias(idx, args, depth+1))
			continue
		}
		def := st.definitionOf(idx)
		if args != "" {
			ResolveTemplateMap(st.s, def, args, st.tmap)
		}
		out.Add(def)
	}
	return out
}

func (st *state) expandAliases(set types.TokenIdxSet) types.TokenIdxSet {
	return st.expandAliasesWith(set, "", 0)
}

// chaseAlias follows a typedef chain to the tokens it finally names. Cycles
// and self-referencing typedefs end the chase.
func (st *state) chaseAlias(idx int, args string, depth int) types.TokenIdxSet {
	out := types.NewTokenIdxSet()
	visited := make(map[int]bool)
	cur, curArgs := idx, args
	for ; depth <= maxAliasDepth; depth++ {
		tok := st.s.Get(cur)
		if tok == nil {
			return out
		}
		if !tok.IsAlias() {
			def := st.definitionOf(cur)
			if curArgs != "" {
				ResolveTemplateMap(st.s, def, curArgs, st.tmap)
			}
			out.Add(def)
			return out
		}
		if visited[cur] {
			return out
		}
		visited[cur] = true

		base, nextArgs := AddTemplateAlias(st.s, cur, curArgs, st.tmap)
		if isBuiltin(base) {
			return out
		}
		found := st.lookupType(base, tok.Parent, depth+1)
		for v := range visited {
			found.Remove(v)
		}
		if found.Len() == 0 {
			// typedef struct Node Node;
			for i := range st.s.FindByName(lastScopePart(base)) {
				if !visited[i] && st.s.Get(i).Kind.Matches(types.KindAnyAggregate|types.KindEnum) {
					found.Add(i)
				}
			}
		}
		switch found.Len() {
		case 0:
			return out
		case 1:
			cur, curArgs = found.Sorted()[0], nextArgs
		default:
			for _, f := range found.Sorted() {
				out.Union(st.chaseAlias(f, nextArgs, depth+1))
			}
			return out
		}
	}
	return out
}

// definitionOf maps a forward declaration to a defined aggregate of the
// same qualified name when one exists.
func (st *state) definitionOf(idx int) int {
	tok := st.s.Get(idx)
	if tok == nil || !tok.IsForward || tok.Children.Len() > 0 {
		return idx
	}
	qualified := st.s.QualifiedName(idx)
	fallback := -1
	for _, i := range st.s.FindByName(tok.Name).Sorted() {
		cand := st.s.Get(i)
		if cand.IsForward || !cand.Kind.Matches(types.KindAnyAggregate|types.KindEnum) {
			continue
		}
		if st.s.QualifiedName(i) == qualified {
			return i
		}
		if fallback < 0 {
			fallback = i
		}
	}
	if fallback >= 0 {
		return fallback
	}
	return idx
}

func (st *state) preferDefinitions(set types.TokenIdxSet) types.TokenIdxSet {
	out := types.NewTokenIdxSet()
	for idx := range set {
		out.Add(st.definitionOf(idx))
	}
	return out
}

// resolveOperator maps each class in set that declares the member operator
// for op to the operator's return type. Other tokens pass through.
func (st *state) resolveOperator(set types.TokenIdxSet, op OperatorKind) types.TokenIdxSet {
	name := ""
	switch op {
	case OperatorSquare:
		name = "operator[]"
	case OperatorParen:
		name = "operator()"
	case OperatorArrow:
		name = "operator->"
	default:
		return set
	}
	out := types.NewTokenIdxSet()
	for _, idx := range set.Sorted() {
		if !st.isAggregate(idx) {
			out.Add(idx)
			continue
		}
		ops := st.s.FindChildren(idx, name, types.KindFunction)
		if ops.Len() == 0 {
			for _, b := range st.allBases(idx) {
				if ops = st.s.FindChildren(b, name, types.KindFunction); ops.Len() > 0 {
					break
				}
			}
		}
		if ops.Len() == 0 {
			out.Add(idx)
			continue
		}
		for o := range ops {
			out.Union(st.actualType(o, 0))
		}
	}
	return out
}

// ResolveTemplateMap records in m the actual arguments of a class or alias
// template keyed by its formal parameter names. Arguments naming a formal
// already in m are substituted first.
func ResolveTemplateMap(s *tree.Store, idx int, actualArgs string, m map[string]string) {
	tok := s.Get(idx)
	if tok == nil || len(tok.TemplateParams) == 0 {
		return
	}
	args := splitTemplateArgs(actualArgs)
	for i, p := range tok.TemplateParams {
		if i >= len(args) {
			break
		}
		a := substituteParams(args[i], m)
		if a == p {
			continue
		}
		m[p] = a
	}
}

// AddTemplateAlias expands the alias idx with actualArgs and returns the
// base type and template arguments it names. Template parameters known in
// m are substituted into the aliased text.
func AddTemplateAlias(s *tree.Store, idx int, actualArgs string, m map[string]string) (string, string) {
	tok := s.Get(idx)
	if tok == nil {
		return "", ""
	}
	if actualArgs != "" {
		ResolveTemplateMap(s, idx, actualArgs, m)
	}
	target := tok.AliasOf
	if target == "" {
		target = tok.BaseType
	}
	if len(m) > 0 {
		target = substituteParams(target, m)
	}
	return splitType(target)
}

// splitType strips qualifiers, pointers and references from a type and
// splits off its top-level template argument list.
func splitType(text string) (string, string) {
	t := strings.TrimSpace(text)
	for stripped := true; stripped; {
		stripped = false
		for _, q := range typeQualifiers {
			if strings.HasPrefix(t, q+" ") {
				t = strings.TrimSpace(t[len(q):])
				stripped = true
			}
		}
	}
	i := 0
	for i < len(t) && (isIdentChar(t[i]) || t[i] == ':') {
		i++
	}
	base := t[:i]
	rest := strings.TrimLeft(t[i:], " ")
	if !strings.HasPrefix(rest, "<") {
		return strings.TrimRight(base, ":"), ""
	}
	end := matchAngle(rest)
	if end < 0 {
		return strings.TrimRight(base, ":"), ""
	}
	args := rest[:end+1]
	if after := rest[end+1:]; strings.HasPrefix(after, "::") {
		// Outer<Args>::Inner keeps its arguments on the qualifying part.
		inner, innerArgs := splitType(after[2:])
		if inner != "" {
			return base + args + "::" + inner, innerArgs
		}
	}
	return strings.TrimRight(base, ":"), args
}

// matchAngle returns the index of the '>' closing the '<' at s[0], or -1.
func matchAngle(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitScope splits a qualified name on top-level "::", keeping template
// arguments attached to their part.
func splitScope(name string) []string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "::")
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ':':
			if depth == 0 && i+1 < len(name) && name[i+1] == ':' {
				parts = append(parts, strings.TrimSpace(name[start:i]))
				start = i + 2
				i++
			}
		}
	}
	if last := strings.TrimSpace(name[start:]); last != "" {
		parts = append(parts, last)
	}
	return parts
}

func lastScopePart(name string) string {
	parts := splitScope(name)
	if len(parts) == 0 {
		return ""
	}
	n, _ := splitTemplate(parts[len(parts)-1])
	return n
}

// splitTemplate splits "Name<Args>" into "Name" and "<Args>".
func splitTemplate(part string) (string, string) {
	if i := strings.IndexByte(part, '<'); i >= 0 {
		return strings.TrimSpace(part[:i]), part[i:]
	}
	return part, ""
}

// splitTemplateArgs splits "<A, B<C, D>>" into its top-level arguments.
func splitTemplateArgs(args string) []string {
	a := strings.TrimSpace(args)
	if strings.HasPrefix(a, "<") {
		a = strings.TrimSuffix(a[1:], ">")
	}
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(a); i++ {
		switch a[i] {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			depth--
		case ',':
			if depth == 0 {
				if p := strings.TrimSpace(a[start:i]); p != "" {
					out = append(out, p)
				}
				start = i + 1
			}
		}
	}
	if p := strings.TrimSpace(a[start:]); p != "" {
		out = append(out, p)
	}
	return out
}

// substituteParams replaces whole identifiers of text found in m.
func substituteParams(text string, m map[string]string) string {
	if len(m) == 0 || text == "" {
		return text
	}
	var sb strings.Builder
	for i := 0; i < len(text); {
		if !isIdentStart(text[i]) {
			sb.WriteByte(text[i])
			i++
			continue
		}
		j := i
		for j < len(text) && isIdentChar(text[j]) {
			j++
		}
		word := text[i:j]
		qualified := i >= 2 && text[i-2:i] == "::"
		if sub, ok := m[word]; ok && !qualified {
			sb.WriteString(sub)
		} else {
			sb.WriteString(word)
		}
		i = j
	}
	return sb.String()
}

func isPointerType(typ string) bool {
	return strings.Contains(typ, "*") || strings.Contains(typ, "[")
}

func isFunctionPointer(tok *types.Token) bool {
	return strings.Contains(tok.Type, "(*)") || tok.Args != ""
}
