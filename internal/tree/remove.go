package tree

import (
	"github.com/standardbeagle/cccomplete/internal/types"
)

// RemoveFile withdraws everything file f contributed. A token disappears,
// with its subtree, once no file is registered on it. A surviving token that
// f owned passes to another contributor: a paired declaration becomes its
// definition, and a class defined in f becomes a forward declaration.
// Definitions located in f are cleared from their declarations.
// It returns the number of tokens removed.
func (s *Store) RemoveFile(f types.FileIdx) int {
	before := s.count
	for _, idx := range s.FileTokens(f).Sorted() {
		tok := s.Get(idx)
		if tok == nil {
			continue // removed with an ancestor
		}
		if tok.ImplFile == f {
			s.ClearImplementation(idx)
		}
		s.UnregisterFile(idx, f)
		if len(tok.Files) == 0 {
			s.Remove(idx)
			continue
		}
		if tok.File == f {
			s.reassignOwner(tok)
		}
	}
	delete(s.usings, f)
	return before - s.count
}

func (s *Store) reassignOwner(tok *types.Token) {
	if tok.ImplFile != types.NoFile {
		if _, ok := tok.Files[tok.ImplFile]; ok {
			tok.File = tok.ImplFile
			tok.Line = tok.ImplLine
			return
		}
	}
	owner := types.NoFile
	for f := range tok.Files {
		if owner == types.NoFile || f < owner {
			owner = f
		}
	}
	tok.File = owner
	if tok.Kind.Matches(types.KindAnyAggregate|types.KindEnum) && !tok.IsForward {
		tok.IsForward = true
		tok.ImplLineStart = 0
		tok.ImplLineEnd = 0
	}
}

// Clear drops every token while keeping the file path table.
func (s *Store) Clear() {
	s.tokens = nil
	s.free = nil
	s.count = 0
	s.names = make(map[string]types.TokenIdxSet)
	s.files = make(map[types.FileIdx]types.TokenIdxSet)
	s.globals = types.NewTokenIdxSet()
	s.usings = make(map[types.FileIdx][]string)
}
