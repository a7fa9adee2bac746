package display

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// TreeFormatter draws a token tree as an outline of nested scopes.
type TreeFormatter struct {
	options FormatterOptions
}

// FormatterOptions controls tree formatting
type FormatterOptions struct {
	ShowLines  bool // Append [file:line] and the implementation location
	ShowLocals bool // Include variables declared in function bodies
	MaxDepth   int  // Maximum depth to display, 0 = unlimited
	Root       int  // Scope to start from, types.GlobalScope for everything
}

// NewTreeFormatter creates a new tree formatter
func NewTreeFormatter(options FormatterOptions) *TreeFormatter {
	return &TreeFormatter{options: options}
}

// Format renders the outline. The caller holds the tree read lock.
func (tf *TreeFormatter) Format(s *tree.Store) string {
	if s == nil || s.Len() == 0 {
		return "Token tree is empty\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Token tree: %d tokens in %d files\n", s.Len(), len(s.Files())))

	kids := tf.children(s, tf.options.Root)
	for i, idx := range kids {
		tf.formatNode(&sb, s, idx, "", i == len(kids)-1, 1)
	}
	return sb.String()
}

func (tf *TreeFormatter) children(s *tree.Store, parent int) []int {
	kids := s.OrderedChildren(parent)
	if tf.options.ShowLocals {
		return kids
	}
	out := kids[:0]
	for _, idx := range kids {
		if tok := s.Get(idx); tok != nil && !tok.IsLocal {
			out = append(out, idx)
		}
	}
	return out
}

// formatNode recursively formats a token and its children
func (tf *TreeFormatter) formatNode(sb *strings.Builder, s *tree.Store, idx int, prefix string, isLast bool, depth int) {
	tok := s.Get(idx)
	if tok == nil {
		return
	}
	if tf.options.MaxDepth > 0 && depth > tf.options.MaxDepth {
		return
	}

	branch := "├─ "
	if isLast {
		branch = "└─ "
	}
	sb.WriteString(prefix)
	sb.WriteString(branch)
	sb.WriteString(tf.label(s, tok))
	sb.WriteString("\n")

	childPrefix := prefix + "│  "
	if isLast {
		childPrefix = prefix + "   "
	}
	kids := tf.children(s, idx)
	for i, child := range kids {
		tf.formatNode(sb, s, child, childPrefix, i == len(kids)-1, depth+1)
	}
}

func (tf *TreeFormatter) label(s *tree.Store, tok *types.Token) string {
	var sb strings.Builder
	sb.WriteString(tok.Kind.String())
	sb.WriteString(" ")
	if tok.IsUnnamed {
		sb.WriteString("<unnamed>")
	} else {
		sb.WriteString(tok.DisplayName())
	}
	if tok.Kind.Matches(types.KindAnyFunction) {
		sb.WriteString(tok.Args)
	}
	if tf.options.ShowLines && tok.File != types.NoFile {
		sb.WriteString(fmt.Sprintf(" [%s:%d", filepath.Base(s.FilePath(tok.File)), tok.Line))
		if tok.HasImplementation() {
			sb.WriteString(fmt.Sprintf(" -> %s:%d", filepath.Base(s.FilePath(tok.ImplFile)), tok.ImplLine))
		}
		sb.WriteString("]")
	}
	return sb.String()
}
