package indexing

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/errors"
	"github.com/standardbeagle/cccomplete/pkg/pathutil"
)

// ParseProject parses paths, or every source file under the project root
// when paths is empty, and waits for all of them. Directories in paths are
// scanned like the root. With caching enabled a stored snapshot is loaded
// first, so unchanged files are skipped, and a new one is saved afterwards.
func (m *Manager) ParseProject(ctx context.Context, paths []string) error {
	start := time.Now()
	if len(paths) == 0 {
		paths = []string{m.cfg.Project.Root}
	}
	files, err := m.DiscoverFiles(ctx, paths...)
	if err != nil {
		return err
	}

	if m.cfg.Cache.Enabled && m.tree.Len() == 0 {
		if ok, err := m.LoadSnapshot(ctx); err != nil {
			m.log.Log(debug.ComponentManager, "snapshot not loaded: %v", err)
		} else if ok {
			m.log.Log(debug.ComponentManager, "snapshot loaded, %d tokens", m.tree.Len())
		}
	}

	chans := make([]chan jobResult, len(files))
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.ErrManagerClose
	}
	for i, f := range files {
		chans[i] = make(chan jobResult, 1)
		m.submitLocked(&job{path: f, waiters: []chan jobResult{chans[i]}})
	}
	m.mu.Unlock()

	var errs []error
	skipped := 0
	for _, ch := range chans {
		res, err := wait(ctx, ch)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			errs = append(errs, err)
		}
		if res != nil && res.Unchanged {
			skipped++
		}
	}
	// wait for the includes the files pulled in
	if err := m.WaitIdle(ctx); err != nil {
		return err
	}
	m.log.Log(debug.ComponentManager, "project parsed: %d files (%d unchanged), %d tokens in %v",
		len(files), skipped, m.tree.Len(), time.Since(start))

	if m.cfg.Cache.Enabled {
		if _, err := m.SaveSnapshot(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.NewMultiError(errs).ErrorOrNil()
}

// DiscoverFiles expands roots into the sorted list of source files they
// contain. Files given directly are kept when they match the source
// extensions; directories are walked concurrently, skipping excluded paths.
func (m *Manager) DiscoverFiles(ctx context.Context, roots ...string) ([]string, error) {
	results := make([][]string, len(roots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers())
	for i, root := range roots {
		root = m.normalize(root)
		g.Go(func() error {
			info, err := os.Stat(root)
			if err != nil {
				return errors.NewFileError("stat", root, err)
			}
			if !info.IsDir() {
				if m.isSourceFile(root) {
					results[i] = []string{root}
				}
				return nil
			}
			found, err := m.walk(gctx, root)
			results[i] = found
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, found := range results {
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Manager) walk(ctx context.Context, root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped, the walk continues
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && m.isExcluded(path, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				return nil
			}
		}
		if m.isSourceFile(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil && !stderrors.Is(err, fs.SkipAll) {
		return nil, err
	}
	return out, nil
}

// isExcluded matches path, relative to the project root, against the
// exclude globs. For directories a trailing "/**" of a pattern is dropped so
// "**/build/**" excludes the build directory itself.
func (m *Manager) isExcluded(path string, isDir bool) bool {
	rel := pathutil.ToSlashRelative(path, m.cfg.Project.Root)
	base := filepath.Base(path)
	for _, pattern := range m.cfg.Index.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		if isDir {
			dirPattern := strings.TrimSuffix(pattern, "/**")
			if matched, _ := doublestar.Match(dirPattern, rel); matched {
				return true
			}
			if matched, _ := doublestar.Match(dirPattern, base); matched {
				return true
			}
		}
	}
	return false
}

// isSourceFile reports whether path matches one of the source extension
// globs and is not excluded.
func (m *Manager) isSourceFile(path string) bool {
	if m.isExcluded(path, false) {
		return false
	}
	rel := pathutil.ToSlashRelative(path, m.cfg.Project.Root)
	for _, pattern := range m.cfg.Parser.Extensions {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}
