package resolver

import (
	"strings"

	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// generate collects the members of every scope token matching text.
func (st *state) generate(scope types.TokenIdxSet, text string, opts MatchOptions) types.TokenIdxSet {
	out := types.NewTokenIdxSet()
	for _, parent := range scope.Sorted() {
		owners := []int{parent}
		if opts.UseInheritance && st.isAggregate(parent) {
			owners = append(owners, st.allBases(parent)...)
		}
		for _, owner := range owners {
			if !opts.IsPrefix && opts.CaseSensitive && text != "" {
				st.collectByName(owner, text, opts, out)
			} else {
				st.collectChildren(owner, text, opts, out)
			}
		}
	}
	return out
}

// collectByName serves exact case-sensitive lookups from the name index.
func (st *state) collectByName(owner int, text string, opts MatchOptions, out types.TokenIdxSet) {
	for idx := range st.s.FindByName(text) {
		tok := st.s.Get(idx)
		if !memberOf(st.s, tok, owner) {
			continue
		}
		if st.accept(tok, owner, opts) {
			out.Add(idx)
		}
	}
}

// collectChildren walks the children of owner, looking through anonymous
// aggregates and enums into the members they inject.
func (st *state) collectChildren(owner int, text string, opts MatchOptions, out types.TokenIdxSet) {
	ownerTok := st.s.Get(owner)
	inEnum := ownerTok != nil && ownerTok.Kind == types.KindEnum
	candidates := types.NewTokenIdxSet()
	for idx := range st.s.Children(owner) {
		tok := st.s.Get(idx)
		switch {
		case tok.IsUnnamed && tok.Kind.Matches(types.KindAnyAggregate):
			if st.visible(tok, owner) {
				AddChildrenOfUnnamed(st.s, idx, candidates)
			}
			continue
		case tok.Kind == types.KindEnum && !inEnum:
			AddChildrenOfEnum(st.s, idx, candidates, st.context.Has(owner))
		}
		candidates.Add(idx)
	}
	for idx := range candidates {
		tok := st.s.Get(idx)
		if tok.IsUnnamed || !nameMatches(tok.Name, text, opts) {
			continue
		}
		if st.accept(tok, owner, opts) {
			out.Add(idx)
		}
	}
}

func (st *state) accept(tok *types.Token, owner int, opts MatchOptions) bool {
	if !tok.Kind.Matches(opts.mask()) || !st.visible(tok, owner) || !st.declaredBeforeCaret(tok) {
		return false
	}
	if tok.Kind == types.KindEnumerator && tok.Parent != owner {
		if enum := st.s.Get(tok.Parent); enum != nil && !st.visible(enum, owner) {
			return false
		}
	}
	return true
}

func nameMatches(name, text string, opts MatchOptions) bool {
	switch {
	case opts.IsPrefix && opts.CaseSensitive:
		return strings.HasPrefix(name, text)
	case opts.IsPrefix:
		return strings.HasPrefix(strings.ToLower(name), strings.ToLower(text))
	case opts.CaseSensitive:
		return name == text
	default:
		return strings.EqualFold(name, text)
	}
}

// memberOf reports whether tok is a member of owner, directly or through
// anonymous aggregates and enums nested in owner.
func memberOf(s *tree.Store, tok *types.Token, owner int) bool {
	for p, hops := tok.Parent, 0; hops <= s.Cap(); hops++ {
		if p == owner {
			return true
		}
		pt := s.Get(p)
		if pt == nil {
			return false
		}
		if !(pt.IsUnnamed && pt.Kind.Matches(types.KindAnyAggregate)) && pt.Kind != types.KindEnum {
			return false
		}
		p = pt.Parent
	}
	return false
}

// AddChildrenOfUnnamed adds the members of the anonymous aggregate idx to
// out, descending into nested anonymous aggregates and enums.
func AddChildrenOfUnnamed(s *tree.Store, idx int, out types.TokenIdxSet) {
	stack := []int{idx}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for child := range s.Children(cur) {
			tok := s.Get(child)
			switch {
			case tok.IsUnnamed && tok.Kind.Matches(types.KindAnyAggregate):
				stack = append(stack, child)
				continue
			case tok.Kind == types.KindEnum:
				AddChildrenOfEnum(s, child, out, true)
			}
			out.Add(child)
		}
	}
}

// AddChildrenOfEnum adds the enumerators of enum idx to out. A private enum
// contributes nothing unless allowPrivate is set.
func AddChildrenOfEnum(s *tree.Store, idx int, out types.TokenIdxSet, allowPrivate bool) {
	tok := s.Get(idx)
	if tok == nil || tok.Kind != types.KindEnum {
		return
	}
	if tok.Access == types.AccessPrivate && !allowPrivate {
		return
	}
	for child := range s.Children(idx) {
		if s.Get(child).Kind == types.KindEnumerator {
			out.Add(child)
		}
	}
}

// BelongsToParentOrItsAncestors reports whether idx is a member of parent
// or, unless it is private, of one of parent's base classes.
func BelongsToParentOrItsAncestors(s *tree.Store, idx, parent int) bool {
	tok := s.Get(idx)
	if tok == nil {
		return false
	}
	if memberOf(s, tok, parent) {
		return true
	}
	if tok.Access == types.AccessPrivate {
		return false
	}
	st := newState(s, Caret{}, types.NewTokenIdxSet())
	for _, base := range st.allBases(parent) {
		if memberOf(s, tok, base) {
			return true
		}
	}
	return false
}

func (st *state) isAggregate(idx int) bool {
	tok := st.s.Get(idx)
	return tok != nil && tok.Kind.Matches(types.KindAnyAggregate)
}

// allBases returns every base class of idx, nearest first, each once.
func (st *state) allBases(idx int) []int {
	var out []int
	seen := map[int]bool{idx: true}
	queue := []int{idx}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, b := range st.directBases(cur) {
			if seen[b] {
				continue
			}
			seen[b] = true
			out = append(out, b)
			queue = append(queue, b)
		}
	}
	return out
}

func (st *state) directBases(idx int) []int {
	if bases, ok := st.bases[idx]; ok {
		return bases
	}
	st.bases[idx] = nil
	tok := st.s.Get(idx)
	if tok == nil || len(tok.Ancestors) == 0 {
		return nil
	}
	var out []int
	for _, a := range tok.Ancestors {
		base, args := splitType(a.Name)
		if base == "" {
			continue
		}
		found := st.lookupType(base, tok.Parent, 0)
		found.Remove(idx)
		for _, f := range st.expandAliasesWith(found, args, 0).Sorted() {
			if f != idx && st.isAggregate(f) {
				out = append(out, f)
			}
		}
	}
	st.bases[idx] = out
	return out
}
