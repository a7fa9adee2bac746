package indexing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/errors"
)

// WatchStats describes the activity of the file watcher.
type WatchStats struct {
	Directories     int
	EventsProcessed int64
	ErrorCount      int64
	LastEventTime   time.Time
	IsActive        bool
}

// fileWatcher forwards file system events under the project root to the
// manager's debounced event handlers.
type fileWatcher struct {
	m       *Manager
	watcher *fsnotify.Watcher
	events  *eventDebouncer
	cancel  context.CancelFunc
	done    chan struct{}

	statsMu         sync.Mutex
	dirs            int
	eventsProcessed int64
	errorCount      int64
	lastEventTime   time.Time
	active          bool
}

// Watch starts watching the project root. Changes go through a debouncer
// of their own, using Index.WatchDebounceMs, into the parse queue. The
// watcher stops when ctx is done or the manager is closed.
func (m *Manager) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewIndexingError("watch", err)
	}
	wctx, cancel := context.WithCancel(ctx)
	w := &fileWatcher{
		m:       m,
		watcher: fsw,
		events:  newEventDebouncer(m, m.cfg.Index.WatchDebounceMs),
		cancel:  cancel,
		done:    make(chan struct{}),
		active:  true,
	}

	m.mu.Lock()
	if m.closed || m.watcher != nil {
		closed := m.closed
		m.mu.Unlock()
		cancel()
		_ = fsw.Close()
		if closed {
			return errors.ErrManagerClose
		}
		return errors.NewIndexingError("watch", fmt.Errorf("already watching %s", m.cfg.Project.Root))
	}
	m.watcher = w
	m.mu.Unlock()

	root := m.cfg.Project.Root
	if err := w.addWatches(root); err != nil {
		m.mu.Lock()
		m.watcher = nil
		m.mu.Unlock()
		cancel()
		_ = fsw.Close()
		return errors.NewIndexingError("watch", err).WithFile(root)
	}
	m.log.Log(debug.ComponentWatcher, "watching %s (%d directories)", root, w.Stats().Directories)

	m.wg.Add(1)
	go w.processEvents(wctx)
	return nil
}

// WatchStats returns the statistics of the running watcher; IsActive is
// false when none runs.
func (m *Manager) WatchStats() WatchStats {
	m.mu.Lock()
	w := m.watcher
	m.mu.Unlock()
	if w == nil {
		return WatchStats{}
	}
	return w.Stats()
}

// StopWatching stops the running watcher, if any.
func (m *Manager) StopWatching() error {
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.stop()
}

func (w *fileWatcher) stop() error {
	w.cancel()
	<-w.done
	return nil
}

// addWatches watches every directory below root that is not excluded.
// Symlinked directories are followed once.
func (w *fileWatcher) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[realPath] {
			return filepath.SkipDir
		}
		visited[realPath] = true
		if path != root && w.m.isExcluded(path, true) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.m.log.Log(debug.ComponentWatcher, "cannot watch %s: %v", path, err)
			return nil
		}
		w.statsMu.Lock()
		w.dirs++
		w.statsMu.Unlock()
		return nil
	})
}

func (w *fileWatcher) processEvents(ctx context.Context) {
	defer w.m.wg.Done()
	defer close(w.done)
	defer func() {
		_ = w.watcher.Close()
		w.events.shutdown()
		w.statsMu.Lock()
		w.active = false
		w.statsMu.Unlock()
		w.m.mu.Lock()
		if w.m.watcher == w {
			w.m.watcher = nil
		}
		w.m.mu.Unlock()
		w.m.log.Log(debug.ComponentWatcher, "watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.m.log.Log(debug.ComponentWatcher, "watch error: %v", err)
			w.record(0, 1)
		}
	}
}

func (w *fileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	w.m.log.Log(debug.ComponentWatcher, "%v %s", event.Op, path)

	info, err := os.Stat(path)
	if err != nil {
		// gone: a removal or the old name of a rename
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.m.isSourceFile(path) {
			w.events.add(path, EventRemoved)
			w.record(1, 0)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !w.m.isExcluded(path, true) {
			if err := w.addWatches(path); err != nil {
				w.m.log.Log(debug.ComponentWatcher, "cannot watch new directory %s: %v", path, err)
				return
			}
			// files created before the watch was added
			if files, err := w.m.walk(context.Background(), path); err == nil {
				for _, f := range files {
					w.events.add(f, EventCreated)
				}
			}
		}
		return
	}

	if !w.m.isSourceFile(path) {
		return
	}
	switch {
	case event.Op&fsnotify.Create != 0:
		w.events.add(path, EventCreated)
	case event.Op&(fsnotify.Write|fsnotify.Rename) != 0:
		w.events.add(path, EventChanged)
	default:
		return
	}
	w.record(1, 0)
}

func (w *fileWatcher) record(events, errs int64) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.eventsProcessed += events
	w.errorCount += errs
	w.lastEventTime = time.Now()
}

// Stats returns a copy of the watcher statistics.
func (w *fileWatcher) Stats() WatchStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return WatchStats{
		Directories:     w.dirs,
		EventsProcessed: w.eventsProcessed,
		ErrorCount:      w.errorCount,
		LastEventTime:   w.lastEventTime,
		IsActive:        w.active,
	}
}
