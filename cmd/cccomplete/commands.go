package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/cccomplete/internal/display"
	"github.com/standardbeagle/cccomplete/internal/indexing"
	"github.com/standardbeagle/cccomplete/internal/parser"
	"github.com/standardbeagle/cccomplete/internal/regression"
	"github.com/standardbeagle/cccomplete/internal/resolver"
	"github.com/standardbeagle/cccomplete/internal/types"
	"github.com/standardbeagle/cccomplete/pkg/pathutil"
)

func parseCommand(c *cli.Context) error {
	m, err := openManager(c, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.ParseProject(c.Context, c.Args().Slice()); err != nil {
		return err
	}
	if c.Bool("stats") {
		_, err := fmt.Fprint(c.App.Writer, m.Stats().FormatAsText())
		return err
	}
	if c.String("format") == indexing.FormatOutline {
		return m.Outline(c.App.Writer, display.FormatterOptions{
			ShowLines:  true,
			ShowLocals: c.Bool("locals"),
			MaxDepth:   c.Int("max-depth"),
			Root:       types.GlobalScope,
		})
	}
	return m.Dump(c.App.Writer, c.String("format"))
}

// caretFromFlags returns the caret of --file/--line-number.
func caretFromFlags(c *cli.Context) resolver.Caret {
	return resolver.Caret{File: c.String("file"), Line: c.Int("line-number")}
}

func textArg(c *cli.Context, what string) (string, error) {
	if c.NArg() == 0 {
		return "", fmt.Errorf("%s is required", what)
	}
	return strings.Join(c.Args().Slice(), " "), nil
}

func completeCommand(c *cli.Context) error {
	text, err := textArg(c, "text before the caret")
	if err != nil {
		return err
	}
	m, err := openManager(c, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.ParseProject(c.Context, nil); err != nil {
		return err
	}
	cands, err := m.Complete(text, caretFromFlags(c))
	if err != nil {
		return err
	}
	if limit := c.Int("max"); limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}

	if c.Bool("json") {
		if cands == nil {
			cands = []resolver.Candidate{}
		}
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(cands)
	}
	for _, cand := range cands {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", cand.Name, cand.KindName, cand.Signature)
	}
	return nil
}

func calltipCommand(c *cli.Context) error {
	text, err := textArg(c, "text before the caret")
	if err != nil {
		return err
	}
	m, err := openManager(c, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.ParseProject(c.Context, nil); err != nil {
		return err
	}
	tips, err := m.CallTips(text, caretFromFlags(c))
	if err != nil {
		return err
	}
	for _, tip := range tips {
		fmt.Fprintln(c.App.Writer, markHighlight(tip))
	}
	return nil
}

// markHighlight brackets the current argument of a call tip.
func markHighlight(tip resolver.CallTip) string {
	if tip.Highlight() == "" {
		return tip.Signature
	}
	sig := tip.Signature
	return sig[:tip.HighlightStart] + "[" + sig[tip.HighlightStart:tip.HighlightEnd] + "]" + sig[tip.HighlightEnd:]
}

func declCommand(c *cli.Context) error {
	expr, err := textArg(c, "expression")
	if err != nil {
		return err
	}
	m, err := openManager(c, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.ParseProject(c.Context, nil); err != nil {
		return err
	}
	locs, err := m.FindDeclaration(expr, caretFromFlags(c))
	if err != nil {
		return err
	}
	root := m.Config().Project.Root
	for i := range locs {
		locs[i].File = pathutil.ToRelative(locs[i].File, root)
		if locs[i].ImplFile != "" {
			locs[i].ImplFile = pathutil.ToRelative(locs[i].ImplFile, root)
		}
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(locs)
	}
	if len(locs) == 0 {
		fmt.Fprintf(c.App.Writer, "no declaration found for %q\n", expr)
		return nil
	}
	for _, l := range locs {
		fmt.Fprintf(c.App.Writer, "%s:%d: %s %s\n", l.File, l.Line, l.Kind, l.Signature)
		if l.ImplFile != "" {
			fmt.Fprintf(c.App.Writer, "%s:%d: implementation\n", l.ImplFile, l.ImplLine)
		}
	}
	return nil
}

func testCommand(c *cli.Context) error {
	m, err := openManager(c, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	targets := c.Args().Slice()
	if len(targets) == 0 {
		targets = []string{m.Config().Project.Root}
	}

	var reports []*regression.Report
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return err
		}
		if info.IsDir() {
			reps, err := regression.RunDir(c.Context, m, target, c.String("pattern"))
			reports = append(reports, reps...)
			if err != nil {
				return err
			}
			continue
		}
		rep, err := regression.Run(c.Context, m, target)
		if err != nil {
			return err
		}
		reports = append(reports, rep)
	}

	if err := regression.WriteText(c.App.Writer, reports, c.Bool("verbose")); err != nil {
		return err
	}
	for _, rep := range reports {
		if rep.Failed() > 0 {
			return errFailures
		}
	}
	return nil
}

func checkCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}
	found := 0
	for _, path := range c.Args().Slice() {
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		diags, err := parser.CheckSyntax(src)
		if err != nil {
			return err
		}
		for _, d := range diags {
			fmt.Fprintf(c.App.Writer, "%s:%s\n", path, d)
		}
		found += len(diags)
	}
	if found > 0 {
		fmt.Fprintf(errWriter(c), "%d syntax errors\n", found)
		return errFailures
	}
	return nil
}
