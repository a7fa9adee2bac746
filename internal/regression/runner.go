package regression

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/errors"
	"github.com/standardbeagle/cccomplete/internal/indexing"
	"github.com/standardbeagle/cccomplete/internal/resolver"
)

// Result is the outcome of one case.
type Result struct {
	Case    Case     `json:"case" yaml:"case"`
	Got     []string `json:"got" yaml:"got"`
	Failure string   `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// Passed reports whether the case held.
func (r Result) Passed() bool { return r.Failure == "" }

// Report collects the results of one test file.
type Report struct {
	File    string   `json:"file" yaml:"file"`
	Results []Result `json:"results" yaml:"results"`
}

// Failed returns the number of failed cases.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed() {
			n++
		}
	}
	return n
}

// Run parses path with m, waits for the files it includes and evaluates the
// test block of path with the caret on each test line.
func Run(ctx context.Context, m *indexing.Manager, path string) (*Report, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewFileError("read", path, err)
	}
	res, err := m.ParseBuffer(ctx, path, string(src))
	if err != nil {
		return nil, err
	}
	if err := m.WaitIdle(ctx); err != nil {
		return nil, err
	}

	report := &Report{File: res.Path}
	for _, c := range ParseCases(string(src)) {
		matches, err := m.TestExpression(c.Expr, resolver.Caret{File: res.Path, Line: c.Line})
		if err != nil {
			return nil, err
		}
		r := Result{Case: c, Failure: c.Check(matches)}
		for _, mt := range matches {
			r.Got = append(r.Got, mt.Name)
		}
		report.Results = append(report.Results, r)
		if !r.Passed() {
			m.Logger().Log(debug.ComponentManager, "%s:%d: %s: %s", res.Path, c.Line, c, r.Failure)
		}
	}
	return report, nil
}

// RunDir runs every file in dir whose name matches pattern, in name order.
// All files share m, so later files see the tokens of earlier ones.
func RunDir(ctx context.Context, m *indexing.Manager, dir, pattern string) ([]*Report, error) {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	var reports []*Report
	for _, f := range files {
		r, err := Run(ctx, m, f)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// WriteText prints one line per failed case, or per case when verbose, and
// a summary.
func WriteText(w io.Writer, reports []*Report, verbose bool) error {
	total, failed := 0, 0
	for _, rep := range reports {
		for _, res := range rep.Results {
			total++
			status := "PASS"
			if !res.Passed() {
				failed++
				status = "FAIL"
			} else if !verbose {
				continue
			}
			line := fmt.Sprintf("%s %s:%d %s", status, rep.File, res.Case.Line, res.Case)
			if !res.Passed() {
				line += ": " + res.Failure
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "%d files, %d cases, %d failed\n", len(reports), total, failed)
	return err
}
