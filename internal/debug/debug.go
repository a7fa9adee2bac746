package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/cccomplete/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// Component tags used across the engine.
const (
	ComponentTokenizer = "TOKENIZER"
	ComponentParser    = "PARSER"
	ComponentTree      = "TREE"
	ComponentResolver  = "AI"
	ComponentManager   = "MANAGER"
	ComponentWatcher   = "WATCH"
	ComponentMCP       = "MCP"
)

// Logger is the debug trace sink of one parser session. Every manager owns
// its own Logger and hands it to the tokenizer, parser threads and the
// resolver, so independent sessions never share trace state.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	file    *os.File
	enabled bool
	quiet   bool // suppresses all output, used when stdio carries a protocol
	session string
}

// NewLogger creates a logger writing to w. A nil writer disables output.
func NewLogger(w io.Writer, enabled bool) *Logger {
	return &Logger{out: w, enabled: enabled || buildEnabled()}
}

// Discard returns a logger that never writes.
func Discard() *Logger {
	return &Logger{}
}

// FromEnv creates a logger enabled by the DEBUG environment variable.
func FromEnv(w io.Writer) *Logger {
	v := os.Getenv("DEBUG")
	return NewLogger(w, v == "1" || v == "true")
}

func buildEnabled() bool {
	return EnableDebug == "true"
}

// SetSession tags every line with a session identifier.
func (l *Logger) SetSession(id string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = id
}

// SetQuiet suppresses all output (MCP mode keeps stdio clean).
func (l *Logger) SetQuiet(quiet bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quiet = quiet
}

// SetOutput replaces the writer. Pass nil to disable output entirely.
func (l *Logger) SetOutput(w io.Writer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// Enable turns tracing on or off at runtime.
func (l *Logger) Enable(on bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = on
}

// OpenFile redirects output to a timestamped file under dir (os.TempDir when empty).
// Returns the path of the log file. Call Close when done.
func (l *Logger) OpenFile(dir string) (string, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "cccomplete-debug-logs")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(dir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.file = file
	l.out = file
	l.enabled = true
	return logPath, nil
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.out = nil
		return err
	}
	return nil
}

// Enabled reports whether Log calls produce output.
func (l *Logger) Enabled() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled && !l.quiet && l.out != nil
}

// Log writes one component-tagged line.
func (l *Logger) Log(component, format string, args ...interface{}) {
	if !l.Enabled() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.session != "" {
		fmt.Fprintf(l.out, "[DEBUG:%s:%s] %s\n", component, l.session, msg)
		return
	}
	fmt.Fprintf(l.out, "[DEBUG:%s] %s\n", component, msg)
}

// Printf logs without a component tag.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.Log("GENERAL", format, args...)
}

// Catastrophic records an error that indicates a broken invariant. It is
// written even when tracing is disabled, unless the logger is quiet.
func (l *Logger) Catastrophic(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.quiet || l.out == nil {
		return
	}
	fmt.Fprintf(l.out, "[CATASTROPHIC] %s\n", fmt.Sprintf(format, args...))
}
