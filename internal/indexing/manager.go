// Package indexing owns the token tree of one project: it schedules parser
// threads, turns editor and file system events into reparse requests and
// answers completion queries against the tree.
package indexing

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/standardbeagle/cccomplete/internal/cache"
	"github.com/standardbeagle/cccomplete/internal/config"
	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/errors"
	"github.com/standardbeagle/cccomplete/internal/metrics"
	"github.com/standardbeagle/cccomplete/internal/parser"
	"github.com/standardbeagle/cccomplete/internal/resolver"
	"github.com/standardbeagle/cccomplete/internal/security"
	"github.com/standardbeagle/cccomplete/internal/tree"
)

// Manager is one parser session. Every exported method is safe for
// concurrent use.
type Manager struct {
	cfg      *config.Config
	tree     *tree.Tree
	resolver *resolver.Resolver
	log      *debug.Logger
	metrics  *metrics.Collectors
	session  string

	opts        parser.Options
	includeDirs []string
	validator   *security.SourceValidator
	sem         *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards the queue and the drain state below.
	mu           sync.Mutex
	pending      map[string]*job
	order        []string
	running      bool // a drain is accepting batches
	active       int  // drain goroutines still alive
	paused       int
	gen          uint64
	cancelBuild  context.CancelFunc
	drainDone    chan struct{}
	stateCh      chan struct{} // closed and replaced on every drain state change
	fingerprints map[string]uint64
	closed       bool

	events   *eventDebouncer
	watcher  *fileWatcher
	store    *cache.Store
	ownStore bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the debug logger shared by the manager, its parser
// threads and its resolver.
func WithLogger(log *debug.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithRegistry registers the manager's collectors on reg instead of a
// private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		m.metrics = metrics.NewCollectors(reg)
	}
}

// WithSnapshotStore uses an already opened snapshot store. The manager does
// not close it.
func WithSnapshotStore(s *cache.Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithMaxFileSize overrides the size limit of files read from disk.
// 0 removes the limit.
func WithMaxFileSize(n int64) Option {
	return func(m *Manager) {
		m.validator = security.NewSourceValidator(n)
	}
}

// WithParserOptions overrides the parse options derived from the config.
func WithParserOptions(opts parser.Options) Option {
	return func(m *Manager) {
		m.opts = opts
	}
}

// NewManager creates a session for cfg. A nil cfg uses the defaults for the
// current directory.
func NewManager(cfg *config.Config, opts ...Option) *Manager {
	if cfg == nil {
		cfg = config.Default("")
	}
	m := &Manager{
		cfg:          cfg,
		log:          debug.Discard(),
		session:      uuid.NewString(),
		opts:         parser.OptionsFromConfig(cfg),
		includeDirs:  cfg.ResolvedIncludeDirs(),
		validator:    security.NewSourceValidator(security.DefaultMaxFileSize),
		sem:          semaphore.NewWeighted(int64(cfg.Workers())),
		pending:      make(map[string]*job),
		stateCh:      make(chan struct{}),
		fingerprints: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.NewCollectors(nil)
	}
	m.log.SetSession(m.session[:8])
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.tree = tree.New(m.log)
	m.resolver = resolver.New(m.tree, m.log)
	m.events = newEventDebouncer(m, cfg.Performance.DebounceMs)

	m.log.Log(debug.ComponentManager, "session %s for %s (%d workers)", m.session, cfg.Project.Root, cfg.Workers())
	return m
}

// Tree returns the shared token tree.
func (m *Manager) Tree() *tree.Tree { return m.tree }

// Resolver returns the resolver bound to the tree.
func (m *Manager) Resolver() *resolver.Resolver { return m.resolver }

// Config returns the session configuration.
func (m *Manager) Config() *config.Config { return m.cfg }

// Logger returns the session logger.
func (m *Manager) Logger() *debug.Logger { return m.log }

// Registry returns the registry holding the session's metrics.
func (m *Manager) Registry() *prometheus.Registry { return m.metrics.Registry }

// Session returns the session identifier.
func (m *Manager) Session() string { return m.session }

// Close aborts any running build, stops the watcher and pending event
// timers, and waits for every goroutine the manager started.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	var errs []error
	if w != nil {
		if err := w.stop(); err != nil {
			errs = append(errs, err)
		}
	}
	m.events.shutdown()
	m.AbortBuildingTree()
	m.cancel()
	m.wg.Wait()

	if m.store != nil && m.ownStore {
		if err := m.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.log.Log(debug.ComponentManager, "session %s closed", m.session)
	return errors.NewMultiError(errs).ErrorOrNil()
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
