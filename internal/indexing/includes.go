package indexing

import (
	"os"
	"path/filepath"

	"github.com/standardbeagle/cccomplete/internal/debug"
)

// ResolveInclude locates the file named by an #include in from. A quoted
// include is looked up next to from first; both forms then search the
// configured include directories in order.
func (m *Manager) ResolveInclude(from, name string, angled bool) (string, bool) {
	if name == "" {
		return "", false
	}
	if filepath.IsAbs(name) {
		return existingFile(filepath.Clean(name))
	}

	dirs := make([]string, 0, len(m.includeDirs)+1)
	if !angled {
		dirs = append(dirs, filepath.Dir(from))
	}
	dirs = append(dirs, m.includeDirs...)

	for _, dir := range dirs {
		if p, ok := existingFile(filepath.Join(dir, name)); ok {
			m.log.Log(debug.ComponentManager, "include %q from %s -> %s", name, from, p)
			return p, true
		}
	}
	m.log.Log(debug.ComponentManager, "include %q from %s not found", name, from)
	return "", false
}

func existingFile(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}
