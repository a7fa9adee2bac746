// Package pathutil converts between the absolute paths used as file identity
// inside the token tree and the relative paths shown to users.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/project/src/main.cc", "/home/user/project") → "src/main.cc"
//   - ToRelative("/usr/include/stdio.h", "/home/user/project") → "/usr/include/stdio.h" (outside root)
//   - ToRelative("src/main.cc", "/home/user/project") → "src/main.cc" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}
	// outside the root the absolute path is clearer
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}
	return relPath
}

// ToAbsolute anchors a relative path at rootDir and cleans it. Absolute
// paths are only cleaned. An empty rootDir leaves relative paths relative.
func ToAbsolute(path, rootDir string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) || rootDir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(rootDir, path)
}

// ToSlashRelative returns the forward-slash form of path relative to
// rootDir, the form glob patterns are matched against.
func ToSlashRelative(path, rootDir string) string {
	return filepath.ToSlash(ToRelative(path, rootDir))
}
