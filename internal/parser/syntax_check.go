package parser

import (
	"fmt"
	"sort"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
)

// Diagnostic is one syntax problem reported by the tree-sitter C++ grammar.
type Diagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

// maxDiagnostics caps the report for badly broken files.
const maxDiagnostics = 100

var (
	cppLanguage     *tree_sitter.Language
	cppLanguageOnce sync.Once

	// tree-sitter parsers are not safe for concurrent use; each check takes
	// one from the pool.
	syntaxParsers = sync.Pool{
		New: func() any {
			p := tree_sitter.NewParser()
			if err := p.SetLanguage(language()); err != nil {
				p.Close()
				return nil
			}
			return p
		},
	}
)

func language() *tree_sitter.Language {
	cppLanguageOnce.Do(func() {
		cppLanguage = tree_sitter.NewLanguage(tree_sitter_cpp.Language())
	})
	return cppLanguage
}

// CheckSyntax parses source with the tree-sitter C++ grammar and lists its
// ERROR and MISSING nodes. The completion parser itself is tolerant and never
// reports these; the check is an independent second opinion for tooling.
func CheckSyntax(source []byte) ([]Diagnostic, error) {
	p, _ := syntaxParsers.Get().(*tree_sitter.Parser)
	if p == nil {
		return nil, fmt.Errorf("tree-sitter C++ grammar unavailable")
	}
	defer syntaxParsers.Put(p)

	tree := p.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter parse failed")
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil, nil
	}

	var diags []Diagnostic
	stack := []*tree_sitter.Node{root}
	for len(stack) > 0 && len(diags) < maxDiagnostics {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		pos := n.StartPosition()
		switch {
		case n.IsMissing():
			diags = append(diags, Diagnostic{
				Line:    int(pos.Row) + 1,
				Column:  int(pos.Column) + 1,
				Message: fmt.Sprintf("missing %s", n.Kind()),
			})
			continue
		case n.IsError():
			diags = append(diags, Diagnostic{
				Line:    int(pos.Row) + 1,
				Column:  int(pos.Column) + 1,
				Message: "syntax error",
			})
			continue
		case !n.HasError():
			continue
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(uint(i)); c != nil {
				stack = append(stack, c)
			}
		}
	}
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Line != diags[j].Line {
			return diags[i].Line < diags[j].Line
		}
		return diags[i].Column < diags[j].Column
	})
	return diags, nil
}
