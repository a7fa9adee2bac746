package indexing

import (
	"sync"
	"time"

	"github.com/standardbeagle/cccomplete/internal/debug"
)

// EventKind is the kind of a file event waiting in the debouncer.
type EventKind int

const (
	EventChanged EventKind = iota
	EventCreated
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "added"
	case EventRemoved:
		return "removed"
	default:
		return "saved"
	}
}

// eventDebouncer collects file events and turns them into queued jobs once
// no new event arrived for the debounce period. Only the latest event per
// path survives.
type eventDebouncer struct {
	m        *Manager
	debounce time.Duration

	mu       sync.Mutex
	events   map[string]EventKind
	timer    *time.Timer
	stopped  bool
	flushing sync.WaitGroup
	onFlush  func(count int)
}

func newEventDebouncer(m *Manager, debounceMs int) *eventDebouncer {
	if debounceMs <= 0 {
		debounceMs = 50
	}
	return &eventDebouncer{
		m:        m,
		debounce: time.Duration(debounceMs) * time.Millisecond,
		events:   make(map[string]EventKind),
	}
}

func (d *eventDebouncer) add(path string, kind EventKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.events[path] = kind
	d.m.metrics.RecordEvent(kind.String())
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.flush)
}

func (d *eventDebouncer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

// flush queues the collected events: removals first, then changes, then
// new files.
func (d *eventDebouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.events) == 0 {
		d.mu.Unlock()
		return
	}
	d.flushing.Add(1)
	defer d.flushing.Done()
	events := d.events
	d.events = make(map[string]EventKind)
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	onFlush := d.onFlush
	d.mu.Unlock()

	var removes, changes, creates []string
	for path, kind := range events {
		switch kind {
		case EventRemoved:
			removes = append(removes, path)
		case EventCreated:
			creates = append(creates, path)
		default:
			changes = append(changes, path)
		}
	}
	d.m.log.Log(debug.ComponentManager, "flushing %d events (%d removed, %d saved, %d added)",
		len(events), len(removes), len(changes), len(creates))

	m := d.m
	m.mu.Lock()
	if !m.closed {
		for _, p := range removes {
			m.submitLocked(&job{path: p, kind: jobRemove})
		}
		for _, p := range changes {
			m.submitLocked(&job{path: p})
		}
		for _, p := range creates {
			m.submitLocked(&job{path: p})
		}
	}
	m.mu.Unlock()

	if onFlush != nil {
		onFlush(len(events))
	}
}

// shutdown drops pending events and waits for a running flush.
func (d *eventDebouncer) shutdown() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.events = make(map[string]EventKind)
	d.mu.Unlock()
	d.flushing.Wait()
}

// OnFileSaved schedules a reparse of path after the debounce period.
func (m *Manager) OnFileSaved(path string) {
	m.events.add(m.normalize(path), EventChanged)
}

// OnFileAdded schedules the parse of a new project file.
func (m *Manager) OnFileAdded(path string) {
	m.events.add(m.normalize(path), EventCreated)
}

// OnFileRemoved schedules the removal of path's tokens.
func (m *Manager) OnFileRemoved(path string) {
	m.events.add(m.normalize(path), EventRemoved)
}

// OnEditorActivated queues path at once when the tree has never seen it,
// so the first completion in a freshly opened file finds its symbols.
// Known files are left to their save events.
func (m *Manager) OnEditorActivated(path string) {
	path = m.normalize(path)
	if _, ok := m.tree.LookupFile(path); ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, queued := m.pending[path]; !queued {
		m.metrics.RecordEvent("activated")
		m.submitLocked(&job{path: path})
	}
}

// FlushEvents queues the debounced events now instead of waiting for the
// timer.
func (m *Manager) FlushEvents() {
	m.events.flush()
}

// PendingEvents returns the number of events waiting in the debouncer.
func (m *Manager) PendingEvents() int {
	return m.events.pending()
}

// SetOnFlush registers fn to run after each flush of debounced events with
// the number of events flushed.
func (m *Manager) SetOnFlush(fn func(count int)) {
	m.events.mu.Lock()
	m.events.onFlush = fn
	m.events.mu.Unlock()
}
