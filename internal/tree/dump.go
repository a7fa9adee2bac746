package tree

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/standardbeagle/cccomplete/internal/types"
)

// Dump writes the tree as "kind name [declLine,implLine]" lines indented two
// spaces per nesting level. Siblings are ordered by file, line and name.
func (s *Store) Dump(w io.Writer) error {
	type frame struct {
		idx   int
		depth int
	}
	var stack []frame
	push := func(parent, depth int) {
		kids := s.OrderedChildren(parent)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{idx: kids[i], depth: depth})
		}
	}
	push(types.GlobalScope, 0)
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		tok := s.tokens[fr.idx]
		if _, err := fmt.Fprintf(w, "%s%s %s [%d,%d]\n",
			strings.Repeat("  ", fr.depth), tok.Kind, tok.DisplayName(), tok.Line, tok.ImplLine); err != nil {
			return err
		}
		push(fr.idx, fr.depth+1)
	}
	return nil
}

// DumpString returns Dump output as a string.
func (s *Store) DumpString() string {
	var b strings.Builder
	_ = s.Dump(&b)
	return b.String()
}

// OrderedChildren returns the children of parent ordered by file, line and name.
func (s *Store) OrderedChildren(parent int) []int {
	kids := s.Children(parent).Sorted()
	sort.SliceStable(kids, func(i, j int) bool {
		a, b := s.tokens[kids[i]], s.tokens[kids[j]]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Name < b.Name
	})
	return kids
}
