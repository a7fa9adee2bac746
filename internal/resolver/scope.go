package resolver

import (
	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// state carries what one query learns about the tree while it runs.
type state struct {
	s    *tree.Store
	file types.FileIdx
	line int

	initial types.TokenIdxSet
	// context holds the aggregates the query is written inside; their
	// private members are visible.
	context types.TokenIdxSet
	usings  []int
	tmap    map[string]string
	bases   map[int][]int
}

func newState(s *tree.Store, caret Caret, scope types.TokenIdxSet) *state {
	st := &state{
		s:       s,
		file:    types.NoFile,
		line:    caret.Line,
		context: types.NewTokenIdxSet(),
		tmap:    make(map[string]string),
		bases:   make(map[int][]int),
	}
	if caret.File != "" {
		if f, ok := s.LookupFile(caret.File); ok {
			st.file = f
		}
	}
	st.usings = st.usedNamespaces()

	if scope != nil {
		st.initial = scope.Clone()
	} else {
		st.initial = st.caretScope()
	}
	for idx := range st.initial {
		st.addContext(idx)
	}
	return st
}

// caretScope is the global scope, the innermost function or class around
// the caret with its parents, and the namespaces named by using-directives.
func (st *state) caretScope() types.TokenIdxSet {
	scope := types.NewTokenIdxSet(types.GlobalScope)
	if st.file == types.NoFile || st.line <= 0 {
		for _, ns := range st.usings {
			scope.Add(ns)
		}
		return scope
	}
	inner := currentFunction(st.s, st.file, st.line)
	if inner < 0 {
		inner = enclosingAggregate(st.s, st.file, st.line)
	}
	if inner >= 0 {
		scope.Add(inner)
		for _, p := range st.s.Ancestors(inner) {
			scope.Add(p)
		}
	}
	for _, ns := range st.usings {
		scope.Add(ns)
	}
	return scope
}

func (st *state) addContext(idx int) {
	if tok := st.s.Get(idx); tok != nil && tok.Kind.Matches(types.KindAnyAggregate) {
		st.context.Add(idx)
	}
	for _, p := range st.s.Ancestors(idx) {
		if st.s.Get(p).Kind.Matches(types.KindAnyAggregate) {
			st.context.Add(p)
		}
	}
}

// usedNamespaces resolves the file's using-directives from the global scope.
func (st *state) usedNamespaces() []int {
	if st.file == types.NoFile {
		return nil
	}
	var out []int
	for _, name := range st.s.UsedNamespaces(st.file) {
		found := st.walk(types.GlobalScope, splitScope(name), types.KindNamespace, 0)
		out = append(out, found.Sorted()...)
	}
	return out
}

// currentFunction returns the innermost function whose body in file f
// spans line, or -1.
func currentFunction(s *tree.Store, f types.FileIdx, line int) int {
	return innermostBody(s, f, line, types.KindAnyFunction)
}

func enclosingAggregate(s *tree.Store, f types.FileIdx, line int) int {
	return innermostBody(s, f, line, types.KindAnyAggregate)
}

func innermostBody(s *tree.Store, f types.FileIdx, line int, mask types.TokenKind) int {
	best, bestStart := -1, -1
	for idx := range s.FileTokens(f) {
		tok := s.Get(idx)
		if tok == nil || !tok.Kind.Matches(mask) || tok.ImplFile != f {
			continue
		}
		if tok.ImplLineStart <= 0 || tok.ImplLineEnd < tok.ImplLineStart {
			continue
		}
		if line < tok.ImplLineStart || line > tok.ImplLineEnd {
			continue
		}
		if tok.ImplLineStart > bestStart || (tok.ImplLineStart == bestStart && idx > best) {
			best, bestStart = idx, tok.ImplLineStart
		}
	}
	return best
}

// visible applies member access: private members need their owner in the
// query context, protected ones also admit classes derived from the owner.
func (st *state) visible(tok *types.Token, owner int) bool {
	switch tok.Access {
	case types.AccessPrivate:
		return st.context.Has(owner)
	case types.AccessProtected:
		if st.context.Has(owner) {
			return true
		}
		for c := range st.context {
			for _, a := range st.allBases(c) {
				if a == owner {
					return true
				}
			}
		}
		return false
	}
	return true
}

// declaredBeforeCaret hides locals of the caret's file declared below it.
func (st *state) declaredBeforeCaret(tok *types.Token) bool {
	if !tok.IsLocal || st.file == types.NoFile || st.line <= 0 || tok.File != st.file {
		return true
	}
	return tok.Line <= st.line
}
