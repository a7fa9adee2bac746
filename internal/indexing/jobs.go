package indexing

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/errors"
	"github.com/standardbeagle/cccomplete/internal/metrics"
	"github.com/standardbeagle/cccomplete/internal/parser"
	"github.com/standardbeagle/cccomplete/internal/tree"
	"github.com/standardbeagle/cccomplete/internal/types"
	"github.com/standardbeagle/cccomplete/pkg/pathutil"
)

type jobKind uint8

const (
	jobParse jobKind = iota
	jobRemove
)

// job is one pending request for a path. Requests for a path that is already
// pending merge into the existing job; the latest content wins.
type job struct {
	path    string
	kind    jobKind
	source  *string // editor buffer; nil reads the file
	include bool    // queued by following an #include
	waiters []chan jobResult
}

type jobResult struct {
	res *parser.Result
	err error
}

func (m *Manager) normalize(path string) string {
	return pathutil.ToAbsolute(path, m.cfg.Project.Root)
}

// Enqueue queues the files at paths for parsing from disk and returns
// without waiting.
func (m *Manager) Enqueue(paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.ErrManagerClose
	}
	for _, p := range paths {
		m.submitLocked(&job{path: m.normalize(p)})
	}
	return nil
}

// ParseFile parses path from disk and waits for the result. A file whose
// content did not change since its last parse is not parsed again.
func (m *Manager) ParseFile(ctx context.Context, path string) (*parser.Result, error) {
	return m.run(ctx, &job{path: m.normalize(path)})
}

// ParseBuffer parses text as the content of path, e.g. an unsaved editor
// buffer, and waits for the result.
func (m *Manager) ParseBuffer(ctx context.Context, path, text string) (*parser.Result, error) {
	return m.run(ctx, &job{path: m.normalize(path), source: &text})
}

// RemoveFile removes every token path contributed and returns how many were
// removed.
func (m *Manager) RemoveFile(ctx context.Context, path string) (int, error) {
	res, err := m.run(ctx, &job{path: m.normalize(path), kind: jobRemove})
	if res == nil {
		return 0, err
	}
	return res.Removed, err
}

func (m *Manager) run(ctx context.Context, j *job) (*parser.Result, error) {
	ch := make(chan jobResult, 1)
	j.waiters = []chan jobResult{ch}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.ErrManagerClose
	}
	m.submitLocked(j)
	m.mu.Unlock()
	return wait(ctx, ch)
}

func wait(ctx context.Context, ch <-chan jobResult) (*parser.Result, error) {
	select {
	case r := <-ch:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) submitLocked(j *job) {
	if old, ok := m.pending[j.path]; ok {
		// an include never overrides an explicit request
		if !j.include {
			old.kind, old.source, old.include = j.kind, j.source, false
		}
		old.waiters = append(old.waiters, j.waiters...)
	} else {
		m.pending[j.path] = j
		m.order = append(m.order, j.path)
	}
	m.metrics.SetQueueDepth(len(m.order))
	if !m.running && m.paused == 0 {
		m.startDrainLocked()
	}
}

func (m *Manager) broadcastLocked() {
	close(m.stateCh)
	m.stateCh = make(chan struct{})
}

// startDrainLocked starts the single goroutine that empties the queue. It
// waits for the previous drain first, so two drains never run batches at
// the same time.
func (m *Manager) startDrainLocked() {
	prev := m.drainDone
	ctx, cancel := context.WithCancel(m.ctx)
	done := make(chan struct{})
	m.gen++
	m.running, m.cancelBuild, m.drainDone = true, cancel, done
	m.active++
	m.broadcastLocked()

	m.wg.Add(1)
	go m.drain(ctx, cancel, m.gen, prev, done)
}

func (m *Manager) drain(ctx context.Context, cancel context.CancelFunc, gen uint64, prev, done chan struct{}) {
	defer m.wg.Done()
	defer func() {
		cancel()
		close(done)
		m.mu.Lock()
		m.active--
		m.broadcastLocked()
		m.mu.Unlock()
	}()
	if prev != nil {
		<-prev
	}
	for {
		batch := m.takeBatch(gen)
		if batch == nil {
			return
		}
		m.runBatch(ctx, batch)
	}
}

// takeBatch removes every pending job. It returns nil, ending the drain,
// when the queue is empty, the drain was superseded by an abort or the
// manager is paused.
func (m *Manager) takeBatch(gen uint64) []*job {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return nil
	}
	if len(m.order) == 0 || m.paused > 0 {
		m.running = false
		m.broadcastLocked()
		return nil
	}
	batch := make([]*job, 0, len(m.order))
	for _, p := range m.order {
		batch = append(batch, m.pending[p])
	}
	m.pending = make(map[string]*job)
	m.order = nil
	m.metrics.SetQueueDepth(0)
	return batch
}

// runBatch parses the batch with at most cfg.Workers() jobs in flight. The
// files of one batch are distinct, so workers never touch the same file.
func (m *Manager) runBatch(ctx context.Context, batch []*job) {
	m.log.Log(debug.ComponentManager, "batch of %d jobs", len(batch))
	var g errgroup.Group
	for i, j := range batch {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			for _, rest := range batch[i:] {
				m.finish(rest, abortedResult(rest.path))
			}
			break
		}
		g.Go(func() error {
			defer m.sem.Release(1)
			m.finish(j, m.safeRunJob(ctx, j))
			return nil
		})
	}
	_ = g.Wait()
	m.metrics.SetTreeTokens(m.tree.Len())
}

func abortedResult(path string) jobResult {
	return jobResult{res: &parser.Result{Path: path, Aborted: true}, err: errors.ErrAborted}
}

func (m *Manager) finish(j *job, r jobResult) {
	if r.res != nil && r.res.Aborted {
		m.metrics.RecordParse(metrics.ResultAborted, 0, 0)
	}
	if r.err != nil && len(j.waiters) == 0 && r.err != errors.ErrAborted {
		m.log.Log(debug.ComponentManager, "%s: %v", j.path, r.err)
	}
	for _, ch := range j.waiters {
		ch <- r
	}
}

// safeRunJob turns a panic while parsing j into a job error so the drain
// and the other waiters survive it.
func (m *Manager) safeRunJob(ctx context.Context, j *job) (r jobResult) {
	defer func() {
		if p := recover(); p != nil {
			m.log.Log(debug.ComponentManager, "panic parsing %s: %v", j.path, p)
			m.metrics.RecordParse(metrics.ResultFailed, 0, 0)
			m.mu.Lock()
			delete(m.fingerprints, j.path)
			m.mu.Unlock()
			r = jobResult{err: errors.NewParseError(j.path, 0, "", fmt.Errorf("parser panic: %v", p))}
		}
	}()
	return m.runJob(ctx, j)
}

func (m *Manager) runJob(ctx context.Context, j *job) jobResult {
	if ctx.Err() != nil {
		return abortedResult(j.path)
	}
	if j.kind == jobRemove {
		return m.removeJob(j)
	}

	src := ""
	if j.source != nil {
		src = *j.source
	} else {
		data, err := m.validator.ReadSource(j.path)
		if err != nil {
			m.metrics.RecordParse(metrics.ResultFailed, 0, 0)
			return jobResult{err: errors.NewFileError("read", j.path, err)}
		}
		src = string(data)
	}

	fp := xxhash.Sum64String(src)
	m.mu.Lock()
	old, seen := m.fingerprints[j.path]
	m.mu.Unlock()
	if seen && old == fp {
		if f, ok := m.tree.LookupFile(j.path); ok {
			m.metrics.RecordParse(metrics.ResultSkipped, 0, 0)
			m.log.Log(debug.ComponentManager, "%s unchanged", j.path)
			return jobResult{res: &parser.Result{Path: j.path, File: f, Unchanged: true}}
		}
	}

	opts := m.opts
	opts.UseBuffer = true
	res, err := parser.NewParserThread(m.tree, j.path, src, opts, m.log).Parse(ctx)
	if res == nil {
		m.metrics.RecordParse(metrics.ResultFailed, 0, 0)
		return jobResult{err: err}
	}
	if res.Aborted {
		if res.Batches > 0 {
			// the tree now holds part of src, which matches neither fingerprint
			m.mu.Lock()
			delete(m.fingerprints, j.path)
			m.mu.Unlock()
		}
		return jobResult{res: res, err: errors.ErrAborted}
	}

	m.mu.Lock()
	m.fingerprints[j.path] = fp
	m.mu.Unlock()
	m.metrics.RecordParse(metrics.ResultParsed, res.Inserted, res.Duration)

	if opts.FollowIncludes {
		m.followIncludes(j.path, res.Includes)
	}
	return jobResult{res: res, err: err}
}

func (m *Manager) removeJob(j *job) jobResult {
	res := &parser.Result{Path: j.path, File: types.NoFile}
	if f, ok := m.tree.LookupFile(j.path); ok {
		res.File = f
		_ = m.tree.Update(func(s *tree.Store) error {
			res.Removed = s.RemoveFile(f)
			return nil
		})
	}
	m.mu.Lock()
	delete(m.fingerprints, j.path)
	m.mu.Unlock()
	m.metrics.RecordParse(metrics.ResultRemoved, 0, 0)
	m.log.Log(debug.ComponentManager, "removed %s (%d tokens)", j.path, res.Removed)
	return jobResult{res: res}
}

// followIncludes queues the resolved targets of includes that were never
// parsed. Files already in the tree are refreshed by their own events.
func (m *Manager) followIncludes(from string, incs []parser.Include) {
	for _, inc := range incs {
		target, ok := m.ResolveInclude(from, inc.Path, inc.Angled)
		if !ok {
			continue
		}
		m.mu.Lock()
		_, seen := m.fingerprints[target]
		_, queued := m.pending[target]
		if !seen && !queued && !m.closed {
			m.submitLocked(&job{path: target, include: true})
		}
		m.mu.Unlock()
	}
}

// AbortBuildingTree cancels the running build and drops every pending job.
// It returns once the workers stopped at a batch boundary, leaving the tree
// valid but possibly incomplete. Waiters of dropped jobs get ErrAborted.
func (m *Manager) AbortBuildingTree() {
	m.mu.Lock()
	cancel, done := m.cancelBuild, m.drainDone
	dropped := m.pending
	m.pending = make(map[string]*job)
	m.order = nil
	m.gen++
	m.running = false
	m.metrics.SetQueueDepth(0)
	m.broadcastLocked()
	m.mu.Unlock()

	for _, j := range dropped {
		m.finish(j, abortedResult(j.path))
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	m.log.Log(debug.ComponentManager, "build aborted, %d pending jobs dropped", len(dropped))
}

// WaitIdle blocks until the queue is empty and no drain is running.
func (m *Manager) WaitIdle(ctx context.Context) error {
	for {
		m.mu.Lock()
		idle := m.active == 0 && len(m.order) == 0
		ch := m.stateCh
		m.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending returns the number of queued paths.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// pause lets the running batch finish and holds further batches until
// resume. Requests queue up meanwhile.
func (m *Manager) pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused++
	for m.active > 0 {
		ch := m.stateCh
		m.mu.Unlock()
		<-ch
		m.mu.Lock()
	}
}

func (m *Manager) resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused--
	if m.paused == 0 && !m.running && len(m.order) > 0 && !m.closed {
		m.startDrainLocked()
	}
}
