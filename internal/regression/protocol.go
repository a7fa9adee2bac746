// Package regression runs the plain-text completion tests embedded in source
// files. A test file is ordinary C/C++ followed by a block of lines
//
//	expression//expected1,expected2///<doc
//
// each optionally prefixed with "//" so the file stays valid source. Every
// expected name must be among the prefix matches of expression; "*" accepts
// any non-empty result. The optional doc tail checks the documentation of
// the matched tokens: "*" requires a non-empty doc, "-" an empty one, and any
// other text must be contained in it.
package regression

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/cccomplete/internal/indexing"
)

const (
	// Wildcard accepts any non-empty result or any non-empty doc.
	Wildcard = "*"
	// NoDoc requires an empty doc.
	NoDoc = "-"
)

// Case is one test line.
type Case struct {
	Line     int      `json:"line" yaml:"line"`
	Expr     string   `json:"expr" yaml:"expr"`
	Expected []string `json:"expected" yaml:"expected"`
	Doc      string   `json:"doc,omitempty" yaml:"doc,omitempty"`
	HasDoc   bool     `json:"has_doc,omitempty" yaml:"has_doc,omitempty"`
}

func (c Case) String() string {
	s := c.Expr + "//" + strings.Join(c.Expected, ",")
	if c.HasDoc {
		s += "///<" + c.Doc
	}
	return s
}

// ParseCases extracts the trailing test block of src. The block ends the
// file; blank lines inside it are skipped and the first line that is not a
// test line closes it.
func ParseCases(src string) []Case {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	var cases []Case
	for i := len(lines) - 1; i >= 0; i-- {
		text := strings.TrimSpace(lines[i])
		if text == "" {
			continue
		}
		c, ok := parseLine(text)
		if !ok {
			break
		}
		c.Line = i + 1
		cases = append(cases, c)
	}
	// restore file order
	for l, r := 0, len(cases)-1; l < r; l, r = l+1, r-1 {
		cases[l], cases[r] = cases[r], cases[l]
	}
	return cases
}

func parseLine(text string) (Case, bool) {
	text = strings.TrimPrefix(text, "//")
	sep := strings.Index(text, "//")
	if sep < 0 {
		return Case{}, false
	}
	c := Case{Expr: strings.TrimSpace(text[:sep])}
	rest := text[sep+2:]
	if strings.HasPrefix(rest, "/") {
		// no expected names, only the doc tail
		c.HasDoc = true
		c.Doc = strings.TrimSpace(strings.TrimPrefix(rest[1:], "<"))
		rest = ""
	} else if doc := strings.Index(rest, "///"); doc >= 0 {
		c.HasDoc = true
		c.Doc = strings.TrimSpace(strings.TrimPrefix(rest[doc+3:], "<"))
		rest = rest[:doc]
	}
	for _, name := range strings.Split(rest, ",") {
		if name = strings.TrimSpace(name); name != "" {
			c.Expected = append(c.Expected, name)
		}
	}
	if c.Expr == "" && len(c.Expected) == 0 {
		return Case{}, false
	}
	return c, true
}

// Check compares the matches of the case's expression with its
// expectations. It returns an empty string on success and the reason of the
// failure otherwise.
func (c Case) Check(matches []indexing.Match) string {
	byName := make(map[string][]indexing.Match, len(matches))
	for _, mt := range matches {
		byName[mt.Name] = append(byName[mt.Name], mt)
	}

	var checked []indexing.Match
	for _, want := range c.Expected {
		if want == Wildcard {
			if len(matches) == 0 {
				return "expected any result, got none"
			}
			checked = append(checked, matches...)
			continue
		}
		got, ok := byName[want]
		if !ok {
			return fmt.Sprintf("%q not found in %s", want, nameList(matches))
		}
		checked = append(checked, got...)
	}
	if !c.HasDoc {
		return ""
	}
	if len(checked) == 0 {
		checked = matches
	}
	for _, mt := range checked {
		if docMatches(mt.Doc, c.Doc) {
			return ""
		}
	}
	switch c.Doc {
	case Wildcard:
		return "expected a documented match"
	case NoDoc:
		return "expected an undocumented match"
	default:
		return fmt.Sprintf("no match documented with %q", c.Doc)
	}
}

func docMatches(doc, want string) bool {
	switch want {
	case Wildcard:
		return doc != ""
	case NoDoc:
		return doc == ""
	default:
		return strings.Contains(doc, want)
	}
}

func nameList(matches []indexing.Match) string {
	if len(matches) == 0 {
		return "an empty result"
	}
	names := make([]string, 0, len(matches))
	for _, mt := range matches {
		names = append(names, mt.Name)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
