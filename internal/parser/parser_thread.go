package parser

import (
	"context"
	stderrors "errors"
	"os"
	"strings"
	"time"

	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/errors"
	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
)

// Include is one #include directive found while parsing.
type Include struct {
	Path   string
	Angled bool
	Line   int
}

// Result summarizes one parse.
type Result struct {
	Path string
	File types.FileIdx

	// Staged is the number of tokens the file produced; Inserted counts
	// those that became new tree tokens rather than merging into existing ones.
	Staged   int
	Inserted int
	Removed  int
	Batches  int

	Includes []Include
	Aborted  bool
	// Unchanged is set by schedulers that skipped the parse because the
	// content matched the previous one.
	Unchanged bool
	Duration  time.Duration
}

// ParserThread parses one file or buffer into a shared tree. It is a plain
// job: the caller decides which goroutine runs Parse.
type ParserThread struct {
	tree   *tree.Tree
	path   string
	source string
	opts   Options
	log    *debug.Logger

	// OnInclude, when set, is called for every #include as it is parsed,
	// without the tree lock held.
	OnInclude func(Include)
}

// NewParserThread prepares a parse of path. source is only used when
// opts.UseBuffer is set.
func NewParserThread(t *tree.Tree, path, source string, opts Options, log *debug.Logger) *ParserThread {
	if log == nil {
		log = debug.Discard()
	}
	return &ParserThread{tree: t, path: path, source: source, opts: opts, log: log}
}

// Parse builds the file's declarations in a private staging store and then
// commits them to the shared tree, one top-level declaration per lock epoch.
// The first epoch also removes whatever the file contributed before, so
// readers never observe a half-replaced file. Cancelling ctx stops the
// commit between epochs and leaves a valid partial tree.
func (p *ParserThread) Parse(ctx context.Context) (*Result, error) {
	if p.tree == nil {
		return nil, errors.ErrNilTree
	}
	start := time.Now()
	src := p.source
	if !p.opts.UseBuffer {
		data, err := os.ReadFile(p.path)
		if err != nil {
			return nil, errors.NewFileError("read", p.path, err)
		}
		src = string(data)
	}
	if err := ctx.Err(); err != nil {
		return &Result{Path: p.path, Aborted: true}, err
	}

	// text after a NUL byte is not source code
	var degenerate error
	if i := strings.IndexByte(src, 0); i >= 0 {
		line := strings.Count(src[:i], "\n") + 1
		degenerate = errors.NewParseError(p.path, line, "\\0", stderrors.New("binary content"))
		src = src[:i]
	}

	file := p.tree.FileIndex(p.path)
	b := newBuilder(src, file, p.opts, p.log)
	b.onInclude = p.OnInclude
	b.run()

	res := &Result{
		Path:     p.path,
		File:     file,
		Staged:   b.store.Len(),
		Includes: b.includes,
	}
	err := p.commit(ctx, b.store, res)
	res.Duration = time.Since(start)
	p.log.Log(debug.ComponentParser, "parsed %s: %d staged, %d inserted, %d removed in %d batches (%v)",
		p.path, res.Staged, res.Inserted, res.Removed, res.Batches, res.Duration)
	if err != nil {
		return res, err
	}
	if degenerate != nil {
		return res, degenerate
	}
	return res, nil
}

func (p *ParserThread) commit(ctx context.Context, staging *tree.Store, res *Result) error {
	units := staging.MergeUnits()
	usings := staging.UsedNamespaces(res.File)

	_ = p.tree.Update(func(s *tree.Store) error {
		res.Removed = s.RemoveFile(res.File)
		s.SetUsedNamespaces(res.File, usings)
		if len(units) > 0 {
			res.Inserted += s.Merge(staging, units[0])
		}
		return nil
	})
	res.Batches++

	for _, unit := range units[min(1, len(units)):] {
		if err := ctx.Err(); err != nil {
			res.Aborted = true
			p.log.Log(debug.ComponentParser, "commit of %s aborted after %d batches", p.path, res.Batches)
			return err
		}
		_ = p.tree.Update(func(s *tree.Store) error {
			res.Inserted += s.Merge(staging, unit)
			return nil
		})
		res.Batches++
	}
	return nil
}

// Stage parses source into a fresh store without touching any shared tree.
// The returned store uses file as the index of every token.
func Stage(source string, file types.FileIdx, opts Options, log *debug.Logger) (*tree.Store, []Include) {
	if log == nil {
		log = debug.Discard()
	}
	b := newBuilder(source, file, opts, log)
	b.run()
	return b.store, b.includes
}
