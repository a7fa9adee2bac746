package tree

import (
	"strings"

	"github.com/standardbeagle/cccomplete/internal/types"
)

// MergeUnits lists the staging tokens that are committed one per batch: every
// top-level declaration, descending through namespaces so that a file wrapped
// in one namespace still commits declaration by declaration. Empty
// namespaces are units of their own.
func (s *Store) MergeUnits() []int {
	var units []int
	stack := reverse(s.sortedChildren(types.GlobalScope))
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		tok := s.tokens[idx]
		if tok.Kind == types.KindNamespace && tok.Children.Len() > 0 {
			stack = append(stack, reverse(s.sortedChildren(idx))...)
			continue
		}
		units = append(units, idx)
	}
	return units
}

func (s *Store) sortedChildren(parent int) []int {
	return s.Children(parent).Sorted()
}

func reverse(in []int) []int {
	for i, j := 0, len(in)-1; i < j; i, j = i+1, j-1 {
		in[i], in[j] = in[j], in[i]
	}
	return in
}

type mergeItem struct {
	src  int
	dest int // destination parent
}

// Merge copies the subtree of staging token srcIdx from src into s under the
// namespaces enclosing it in src, reusing namespaces, upgrading forward
// declarations and pairing out-of-line definitions with their declarations.
// It returns the number of tokens inserted.
func (s *Store) Merge(src *Store, srcIdx int) int {
	if src.Get(srcIdx) == nil {
		return 0
	}

	// recreate the enclosing namespace chain, outermost first
	dest := types.GlobalScope
	chain := src.Ancestors(srcIdx)
	for i := len(chain) - 1; i >= 0; i-- {
		ns := src.tokens[chain[i]]
		dest = s.mergeNamespace(dest, ns)
	}

	inserted := 0
	work := []mergeItem{{src: srcIdx, dest: dest}}
	for len(work) > 0 {
		item := work[len(work)-1]
		work = work[:len(work)-1]
		st := src.tokens[item.src]

		parent := item.dest
		if st.Qualifier != "" {
			parent = s.resolveQualifier(parent, st.Qualifier)
		}

		target, isNew := s.mergeOne(parent, st)
		if isNew {
			inserted++
		}
		for _, c := range reverse(src.sortedChildren(item.src)) {
			work = append(work, mergeItem{src: c, dest: target})
		}
	}
	return inserted
}

func (s *Store) mergeNamespace(parent int, ns *types.Token) int {
	if existing := s.FindFirstChild(parent, ns.Name, types.KindNamespace); existing >= 0 {
		tok := s.tokens[existing]
		if tok.Doc == "" {
			tok.Doc = ns.Doc
		}
		s.RegisterFile(existing, ns.File)
		return existing
	}
	tok := ns.Clone()
	tok.Parent = parent
	return s.Insert(tok)
}

// mergeOne places one staging token under parent and returns the destination
// token that its children attach to.
func (s *Store) mergeOne(parent int, st *types.Token) (int, bool) {
	switch {
	case st.Kind == types.KindNamespace:
		return s.mergeNamespace(parent, st), false

	case st.Kind.Matches(types.KindAnyAggregate | types.KindEnum):
		existing := s.FindFirstChild(parent, st.Name, types.KindAnyAggregate|types.KindEnum)
		if existing >= 0 && !st.IsUnnamed {
			tok := s.tokens[existing]
			switch {
			case st.IsForward:
				s.RegisterFile(existing, st.File)
				return existing, false
			case tok.IsForward:
				upgradeForward(tok, st)
				s.RegisterFile(existing, st.File)
				return existing, false
			}
		}

	case st.Kind.Matches(types.KindAnyFunction):
		if decl := s.findDeclaration(parent, st); decl >= 0 {
			tok := s.tokens[decl]
			if st.HasImplementation() && (tok.ImplFile == types.NoFile || tok.ImplFile == st.ImplFile) {
				if tok.Doc == "" {
					tok.Doc = st.Doc
				}
				s.SetImplementation(decl, st.ImplFile, st.ImplLine, st.ImplLineStart, st.ImplLineEnd)
				s.adoptDeclaration(decl, st)
				return decl, false
			}
			if !st.HasImplementation() {
				s.adoptDeclaration(decl, st)
				return decl, false
			}
		}

	case st.Kind == types.KindVariable && st.Qualifier != "":
		// out-of-line definition of a static data member
		if decl := s.FindFirstChild(parent, st.Name, types.KindVariable); decl >= 0 {
			s.SetImplementation(decl, st.File, st.Line, 0, 0)
			return decl, false
		}
	}

	tok := st.Clone()
	tok.Parent = parent
	return s.Insert(tok), true
}

// findDeclaration looks for a function under parent with the same name, kind
// and normalized argument list as st.
func (s *Store) findDeclaration(parent int, st *types.Token) int {
	best := -1
	for idx := range s.FindChildren(parent, st.Name, types.KindAnyFunction) {
		tok := s.tokens[idx]
		if tok.Kind != st.Kind || tok.BaseArgs != st.BaseArgs || tok.IsConst != st.IsConst || tok.IsLocal {
			continue
		}
		if best < 0 || idx < best {
			best = idx
		}
	}
	return best
}

// adoptDeclaration makes a pure declaration the owner of a token that so far
// was only known from its definition, and registers the declaring file.
func (s *Store) adoptDeclaration(idx int, st *types.Token) {
	tok := s.tokens[idx]
	if st.Qualifier == "" && !st.HasImplementation() && tok.File == tok.ImplFile {
		tok.File = st.File
		tok.Line = st.Line
		if st.Args != "" {
			tok.Args = st.Args
		}
		if st.Access != types.AccessUndefined {
			tok.Access = st.Access
		}
		tok.IsVirtual = tok.IsVirtual || st.IsVirtual
		tok.IsStatic = tok.IsStatic || st.IsStatic
	}
	if tok.Doc == "" {
		tok.Doc = st.Doc
	}
	s.RegisterFile(idx, st.File)
}

func upgradeForward(tok, def *types.Token) {
	tok.Kind = def.Kind
	tok.File = def.File
	tok.Line = def.Line
	tok.ImplLineStart = def.ImplLineStart
	tok.ImplLineEnd = def.ImplLineEnd
	tok.AncestorsString = def.AncestorsString
	tok.Ancestors = append([]types.Ancestor(nil), def.Ancestors...)
	tok.TemplateArgument = def.TemplateArgument
	tok.TemplateParams = append([]string(nil), def.TemplateParams...)
	if def.Doc != "" {
		tok.Doc = def.Doc
	}
	if def.Access != types.AccessUndefined {
		tok.Access = def.Access
	}
	tok.IsForward = false
}

// resolveQualifier finds the scope named by an out-of-line qualifier such as
// "A::B", searching from parent outwards to the global scope. When nothing
// matches, parent is returned.
func (s *Store) resolveQualifier(parent int, qualifier string) int {
	parts := strings.Split(qualifier, "::")
	starts := append([]int{parent}, s.Ancestors(parent)...)
	if parent != types.GlobalScope {
		starts = append(starts, types.GlobalScope)
	}
	if parts[0] == "" {
		// "::A::f" is rooted at the global scope
		parts = parts[1:]
		starts = []int{types.GlobalScope}
	}
	for _, start := range starts {
		if scope, ok := s.walkQualifier(start, parts); ok {
			return scope
		}
	}
	return parent
}

func (s *Store) walkQualifier(start int, parts []string) (int, bool) {
	scope := start
	for _, part := range parts {
		if i := strings.IndexByte(part, '<'); i >= 0 {
			part = part[:i]
		}
		next := s.FindFirstChild(scope, part, types.KindNamespace|types.KindAnyAggregate|types.KindEnum)
		if next < 0 {
			return 0, false
		}
		scope = next
	}
	return scope, true
}
