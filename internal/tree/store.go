// Package tree holds the token tree: an arena of token slots with name, file
// and scope indices. Store is unsynchronized; Tree wraps one Store behind a
// lock and is the only way parsers and resolvers reach shared state.
package tree

import (
	"sort"

	"github.com/standardbeagle/cccomplete/internal/types"
)

// Store owns tokens by slot index. A nil slot is free and sits on the free list.
//
// Every file registered on a token is also registered on all of the token's
// ancestors, so a scope lives as long as any file contributes to it.
type Store struct {
	tokens  []*types.Token
	free    []int
	count   int
	names   map[string]types.TokenIdxSet
	files   map[types.FileIdx]types.TokenIdxSet
	globals types.TokenIdxSet

	paths   []string
	pathIdx map[string]types.FileIdx
	usings  map[types.FileIdx][]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		names:   make(map[string]types.TokenIdxSet),
		files:   make(map[types.FileIdx]types.TokenIdxSet),
		globals: types.NewTokenIdxSet(),
		pathIdx: make(map[string]types.FileIdx),
		usings:  make(map[types.FileIdx][]string),
	}
}

// Len is the number of live tokens.
func (s *Store) Len() int {
	return s.count
}

// Cap is the number of slots, live or free.
func (s *Store) Cap() int {
	return len(s.tokens)
}

// Get returns the token at idx, or nil for a free or out-of-range slot.
func (s *Store) Get(idx int) *types.Token {
	if idx < 0 || idx >= len(s.tokens) {
		return nil
	}
	return s.tokens[idx]
}

// Insert adds tok, attaching it to tok.Parent (global when the parent is not
// live), and returns its index. tok must not have children.
func (s *Store) Insert(tok *types.Token) int {
	var idx int
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
		s.tokens[idx] = tok
	} else {
		idx = len(s.tokens)
		s.tokens = append(s.tokens, tok)
	}
	s.count++
	tok.Index = idx
	if tok.Children == nil {
		tok.Children = types.NewTokenIdxSet()
	}
	if tok.Files == nil {
		tok.Files = make(map[types.FileIdx]struct{})
	}

	if parent := s.Get(tok.Parent); parent != nil && tok.Parent != idx {
		parent.Children.Add(idx)
	} else {
		tok.Parent = types.GlobalScope
		s.globals.Add(idx)
	}
	s.nameSet(tok.Name).Add(idx)

	files := make([]types.FileIdx, 0, len(tok.Files)+2)
	for f := range tok.Files {
		files = append(files, f)
	}
	files = append(files, tok.File, tok.ImplFile)
	for _, f := range files {
		if f != types.NoFile {
			s.RegisterFile(idx, f)
		}
	}
	return idx
}

func (s *Store) nameSet(name string) types.TokenIdxSet {
	set, ok := s.names[name]
	if !ok {
		set = types.NewTokenIdxSet()
		s.names[name] = set
	}
	return set
}

// Remove deletes the token at idx together with its whole subtree.
func (s *Store) Remove(idx int) {
	if s.Get(idx) == nil {
		return
	}
	var order []int
	stack := []int{idx}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		tok := s.Get(i)
		if tok == nil {
			continue
		}
		order = append(order, i)
		for c := range tok.Children {
			stack = append(stack, c)
		}
	}
	for _, i := range order {
		s.unlink(i)
	}
}

func (s *Store) unlink(idx int) {
	tok := s.tokens[idx]
	if parent := s.Get(tok.Parent); parent != nil {
		parent.Children.Remove(idx)
	} else {
		s.globals.Remove(idx)
	}
	if set, ok := s.names[tok.Name]; ok {
		set.Remove(idx)
		if set.Len() == 0 {
			delete(s.names, tok.Name)
		}
	}
	for f := range tok.Files {
		if set, ok := s.files[f]; ok {
			set.Remove(idx)
			if set.Len() == 0 {
				delete(s.files, f)
			}
		}
	}
	s.tokens[idx] = nil
	s.free = append(s.free, idx)
	s.count--
}

// Rename changes the name of the token at idx, keeping the name index current.
func (s *Store) Rename(idx int, name string) {
	tok := s.Get(idx)
	if tok == nil || tok.Name == name {
		return
	}
	if set, ok := s.names[tok.Name]; ok {
		set.Remove(idx)
		if set.Len() == 0 {
			delete(s.names, tok.Name)
		}
	}
	tok.Name = name
	s.nameSet(name).Add(idx)
}

// RegisterFile records that file contributes to the token at idx and to every
// enclosing scope.
func (s *Store) RegisterFile(idx int, file types.FileIdx) {
	steps := 0
	for tok := s.Get(idx); tok != nil && steps <= len(s.tokens); tok = s.Get(tok.Parent) {
		steps++
		if _, ok := tok.Files[file]; ok && tok.Index != idx {
			return
		}
		tok.Files[file] = struct{}{}
		set, ok := s.files[file]
		if !ok {
			set = types.NewTokenIdxSet()
			s.files[file] = set
		}
		set.Add(tok.Index)
	}
}

// UnregisterFile drops file from the token at idx only.
func (s *Store) UnregisterFile(idx int, file types.FileIdx) {
	tok := s.Get(idx)
	if tok == nil {
		return
	}
	delete(tok.Files, file)
	if set, ok := s.files[file]; ok {
		set.Remove(idx)
		if set.Len() == 0 {
			delete(s.files, file)
		}
	}
}

// SetImplementation records the definition location of the token at idx.
func (s *Store) SetImplementation(idx int, file types.FileIdx, line, start, end int) {
	tok := s.Get(idx)
	if tok == nil {
		return
	}
	tok.ImplFile = file
	tok.ImplLine = line
	tok.ImplLineStart = start
	tok.ImplLineEnd = end
	if file != types.NoFile {
		s.RegisterFile(idx, file)
	}
}

// ClearImplementation forgets the definition location of the token at idx.
func (s *Store) ClearImplementation(idx int) {
	tok := s.Get(idx)
	if tok == nil {
		return
	}
	tok.ImplFile = types.NoFile
	tok.ImplLine = 0
	if tok.Kind.Matches(types.KindAnyFunction) {
		tok.ImplLineStart = 0
		tok.ImplLineEnd = 0
	}
}

// Children returns the direct children of parent; GlobalScope yields the
// top-level tokens. The returned set must not be modified.
func (s *Store) Children(parent int) types.TokenIdxSet {
	if parent == types.GlobalScope {
		return s.globals
	}
	if tok := s.Get(parent); tok != nil {
		return tok.Children
	}
	return nil
}

// FindChildren returns the children of parent named name whose kind is in mask.
func (s *Store) FindChildren(parent int, name string, mask types.TokenKind) types.TokenIdxSet {
	out := types.NewTokenIdxSet()
	candidates := s.names[name]
	children := s.Children(parent)
	// iterate the smaller set
	if len(children) < len(candidates) {
		for idx := range children {
			if tok := s.tokens[idx]; tok.Name == name && tok.Kind.Matches(mask) {
				out.Add(idx)
			}
		}
		return out
	}
	for idx := range candidates {
		if tok := s.tokens[idx]; tok.Parent == parent && tok.Kind.Matches(mask) {
			out.Add(idx)
		}
	}
	return out
}

// FindFirstChild returns the lowest-index child matching name and mask, or -1.
func (s *Store) FindFirstChild(parent int, name string, mask types.TokenKind) int {
	found := s.FindChildren(parent, name, mask)
	if found.Len() == 0 {
		return -1
	}
	return found.Sorted()[0]
}

// FindByName returns every token called name. The set must not be modified.
func (s *Store) FindByName(name string) types.TokenIdxSet {
	return s.names[name]
}

// Names calls fn for every distinct token name.
func (s *Store) Names(fn func(name string, set types.TokenIdxSet)) {
	for name, set := range s.names {
		fn(name, set)
	}
}

// FileIndex returns the index of path, allocating one on first use.
func (s *Store) FileIndex(path string) types.FileIdx {
	if f, ok := s.pathIdx[path]; ok {
		return f
	}
	f := types.FileIdx(len(s.paths))
	s.paths = append(s.paths, path)
	s.pathIdx[path] = f
	return f
}

// LookupFile returns the index of a known path.
func (s *Store) LookupFile(path string) (types.FileIdx, bool) {
	f, ok := s.pathIdx[path]
	return f, ok
}

// FilePath returns the path of f, or "" when unknown.
func (s *Store) FilePath(f types.FileIdx) string {
	if f < 0 || int(f) >= len(s.paths) {
		return ""
	}
	return s.paths[f]
}

// Files lists every file that currently contributes tokens.
func (s *Store) Files() []types.FileIdx {
	out := make([]types.FileIdx, 0, len(s.files))
	for f := range s.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FileTokens returns the tokens registered under f. The set must not be modified.
func (s *Store) FileTokens(f types.FileIdx) types.TokenIdxSet {
	return s.files[f]
}

// AddUsingNamespace records a using-directive of file f.
func (s *Store) AddUsingNamespace(f types.FileIdx, ns string) {
	for _, existing := range s.usings[f] {
		if existing == ns {
			return
		}
	}
	s.usings[f] = append(s.usings[f], ns)
}

// UsedNamespaces returns the using-directives of file f in source order.
func (s *Store) UsedNamespaces(f types.FileIdx) []string {
	return s.usings[f]
}

// SetUsedNamespaces replaces the using-directives of file f.
func (s *Store) SetUsedNamespaces(f types.FileIdx, ns []string) {
	if len(ns) == 0 {
		delete(s.usings, f)
		return
	}
	s.usings[f] = append([]string(nil), ns...)
}

// Ancestors returns the parent chain of idx, innermost first.
func (s *Store) Ancestors(idx int) []int {
	var out []int
	seen := 0
	for tok := s.Get(idx); tok != nil && tok.Parent != types.GlobalScope; tok = s.Get(tok.Parent) {
		out = append(out, tok.Parent)
		if seen++; seen > len(s.tokens) {
			break
		}
	}
	return out
}

// QualifiedName joins the names of idx and its ancestors with "::".
func (s *Store) QualifiedName(idx int) string {
	tok := s.Get(idx)
	if tok == nil {
		return ""
	}
	name := tok.Name
	for _, a := range s.Ancestors(idx) {
		name = s.tokens[a].Name + "::" + name
	}
	return name
}
