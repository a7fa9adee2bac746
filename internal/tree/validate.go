package tree

import (
	"fmt"

	"github.com/standardbeagle/cccomplete/internal/types"
)

// Validate checks that no index refers to a free slot and that the scope,
// name and file indices agree with the token slots.
func (s *Store) Validate() error {
	live := 0
	for idx, tok := range s.tokens {
		if tok == nil {
			continue
		}
		live++
		if tok.Index != idx {
			return fmt.Errorf("token %q in slot %d claims index %d", tok.Name, idx, tok.Index)
		}
		if tok.Parent == types.GlobalScope {
			if !s.globals.Has(idx) {
				return fmt.Errorf("top-level token %d (%s) missing from global scope", idx, tok.Name)
			}
		} else {
			parent := s.Get(tok.Parent)
			if parent == nil {
				return fmt.Errorf("token %d (%s) has dangling parent %d", idx, tok.Name, tok.Parent)
			}
			if !parent.Children.Has(idx) {
				return fmt.Errorf("token %d (%s) missing from children of parent %d", idx, tok.Name, tok.Parent)
			}
		}
		for c := range tok.Children {
			child := s.Get(c)
			if child == nil {
				return fmt.Errorf("token %d (%s) has dangling child %d", idx, tok.Name, c)
			}
			if child.Parent != idx {
				return fmt.Errorf("child %d of token %d has parent %d", c, idx, child.Parent)
			}
		}
		if !s.names[tok.Name].Has(idx) {
			return fmt.Errorf("token %d (%s) missing from name index", idx, tok.Name)
		}
		for f := range tok.Files {
			if !s.files[f].Has(idx) {
				return fmt.Errorf("token %d (%s) missing from index of file %d", idx, tok.Name, f)
			}
			if parent := s.Get(tok.Parent); parent != nil {
				if _, ok := parent.Files[f]; !ok {
					return fmt.Errorf("file %d registered on token %d but not on its parent %d", f, idx, tok.Parent)
				}
			}
		}
	}
	if live != s.count {
		return fmt.Errorf("live token count %d does not match %d", live, s.count)
	}
	for idx := range s.globals {
		if tok := s.Get(idx); tok == nil || tok.Parent != types.GlobalScope {
			return fmt.Errorf("global scope lists invalid token %d", idx)
		}
	}
	for name, set := range s.names {
		for idx := range set {
			if tok := s.Get(idx); tok == nil || tok.Name != name {
				return fmt.Errorf("name index %q lists invalid token %d", name, idx)
			}
		}
	}
	for f, set := range s.files {
		for idx := range set {
			tok := s.Get(idx)
			if tok == nil {
				return fmt.Errorf("index of file %d lists dangling token %d", f, idx)
			}
			if _, ok := tok.Files[f]; !ok {
				return fmt.Errorf("index of file %d lists token %d which is not registered", f, idx)
			}
		}
	}
	reachable := 0
	stack := s.globals.Sorted()
	for len(stack) > 0 && reachable <= live {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reachable++
		for c := range s.tokens[idx].Children {
			stack = append(stack, c)
		}
	}
	if reachable != live {
		return fmt.Errorf("%d of %d tokens reachable from the global scope", reachable, live)
	}
	for _, idx := range s.free {
		if s.Get(idx) != nil {
			return fmt.Errorf("free list holds live slot %d", idx)
		}
	}
	return nil
}
