package indexing

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/standardbeagle/cccomplete/internal/display"
	"github.com/standardbeagle/cccomplete/internal/metrics"
	"github.com/standardbeagle/cccomplete/internal/resolver"
	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// Location is where a symbol is declared and, when known, implemented.
type Location struct {
	Index     int    `json:"index" yaml:"index"`
	Name      string `json:"name" yaml:"name"`
	Kind      string `json:"kind" yaml:"kind"`
	File      string `json:"file" yaml:"file"`
	Line      int    `json:"line" yaml:"line"`
	ImplFile  string `json:"impl_file,omitempty" yaml:"impl_file,omitempty"`
	ImplLine  int    `json:"impl_line,omitempty" yaml:"impl_line,omitempty"`
	Signature string `json:"signature" yaml:"signature"`
}

// Match is one token of an expression result with its documentation.
type Match struct {
	Index int    `json:"index" yaml:"index"`
	Name  string `json:"name" yaml:"name"`
	Kind  string `json:"kind" yaml:"kind"`
	Doc   string `json:"doc,omitempty" yaml:"doc,omitempty"`
}

// Dump formats.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatOutline = "outline"
)

func (m *Manager) caret(c resolver.Caret) resolver.Caret {
	if c.File != "" {
		c.File = m.normalize(c.File)
	}
	return c
}

// Complete returns the ranked completions for line, the text of the current
// line up to the caret. Matching follows the completion settings of the
// config; the list is cut at Completion.MaxResults.
func (m *Manager) Complete(line string, caret resolver.Caret) ([]resolver.Candidate, error) {
	start := time.Now()
	out, err := m.resolver.ResolveRanked(resolver.Request{
		Expr:           resolver.ExpressionAtCaret(line),
		Caret:          m.caret(caret),
		IsPrefix:       true,
		CaseSensitive:  m.cfg.Completion.CaseSensitive,
		UseInheritance: m.cfg.Completion.UseInheritance,
	})
	if err != nil {
		return nil, err
	}
	if limit := m.cfg.Completion.MaxResults; limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	m.metrics.RecordQuery("complete", len(out), time.Since(start))
	return out, nil
}

// FindDeclaration returns the declarations the complete expression expr
// names, ordered by file and line.
func (m *Manager) FindDeclaration(expr string, caret resolver.Caret) ([]Location, error) {
	start := time.Now()
	var out []Location
	err := m.resolver.ResolveView(resolver.Request{
		Expr:           strings.TrimSpace(expr),
		Caret:          m.caret(caret),
		CaseSensitive:  true,
		UseInheritance: true,
	}, func(s *tree.Store, res *resolver.Resolution) {
		for _, idx := range res.Matches.Sorted() {
			tok := s.Get(idx)
			if tok == nil {
				continue
			}
			loc := Location{
				Index:     idx,
				Name:      s.QualifiedName(idx),
				Kind:      tok.Kind.String(),
				File:      s.FilePath(tok.File),
				Line:      tok.Line,
				Signature: resolver.PrettyPrint(s, idx),
			}
			if tok.ImplFile != types.NoFile {
				loc.ImplFile = s.FilePath(tok.ImplFile)
				loc.ImplLine = tok.ImplLine
			}
			out = append(out, loc)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	m.metrics.RecordQuery("declaration", len(out), time.Since(start))
	return out, nil
}

// CallTips returns the signatures of the call the caret is in; line is the
// text up to the caret.
func (m *Manager) CallTips(line string, caret resolver.Caret) ([]resolver.CallTip, error) {
	start := time.Now()
	tips, err := m.resolver.CallTips(resolver.Request{
		Expr:           line,
		Caret:          m.caret(caret),
		UseInheritance: m.cfg.Completion.UseInheritance,
	})
	if err != nil {
		return nil, err
	}
	m.metrics.RecordQuery("calltip", len(tips), time.Since(start))
	return tips, nil
}

// TestExpression evaluates expr as a case-sensitive prefix query and returns
// every match with its documentation, sorted by name. It backs the
// regression protocol.
func (m *Manager) TestExpression(expr string, caret resolver.Caret) ([]Match, error) {
	start := time.Now()
	var out []Match
	err := m.resolver.ResolveView(resolver.Request{
		Expr:           expr,
		Caret:          m.caret(caret),
		IsPrefix:       true,
		CaseSensitive:  true,
		UseInheritance: true,
	}, func(s *tree.Store, res *resolver.Resolution) {
		for _, idx := range res.Matches.Sorted() {
			if tok := s.Get(idx); tok != nil {
				out = append(out, Match{Index: idx, Name: tok.Name, Kind: tok.Kind.String(), Doc: tok.Doc})
			}
		}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	m.metrics.RecordQuery("test", len(out), time.Since(start))
	return out, nil
}

// Records lists every token of the tree in index order.
func (m *Manager) Records() []tree.Record {
	var out []tree.Record
	_ = m.tree.View(func(s *tree.Store) error {
		out = s.Records()
		return nil
	})
	return out
}

// Stats summarizes the tree.
func (m *Manager) Stats() *metrics.TreeStats {
	var out *metrics.TreeStats
	_ = m.tree.View(func(s *tree.Store) error {
		out = metrics.ComputeTreeStats(s)
		return nil
	})
	return out
}

// Dump writes the tree to w: FormatText is the indented
// "kind name [declLine,implLine]" listing, FormatJSON and FormatYAML list the
// token records, FormatOutline draws the scopes with their locations.
func (m *Manager) Dump(w io.Writer, format string) error {
	switch format {
	case FormatOutline:
		return m.Outline(w, display.FormatterOptions{ShowLines: true, Root: types.GlobalScope})
	case "", FormatText:
		return m.tree.View(func(s *tree.Store) error {
			return s.Dump(w)
		})
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m.Records())
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m.Records()); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown dump format %q", format)
	}
}

// Outline writes the scope outline drawn by display.TreeFormatter.
func (m *Manager) Outline(w io.Writer, opts display.FormatterOptions) error {
	var out string
	_ = m.tree.View(func(s *tree.Store) error {
		out = display.NewTreeFormatter(opts).Format(s)
		return nil
	})
	_, err := io.WriteString(w, out)
	return err
}
