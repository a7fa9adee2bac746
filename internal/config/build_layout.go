// Build layout detection for C/C++ projects
// Reads compile_commands.json and common build-system directory names to find
// include directories and generated output trees.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// BuildLayoutDetector finds include directories and build output directories
type BuildLayoutDetector struct {
	projectRoot string
}

// NewBuildLayoutDetector creates a new build layout detector
func NewBuildLayoutDetector(projectRoot string) *BuildLayoutDetector {
	return &BuildLayoutDetector{projectRoot: projectRoot}
}

// compileCommand is one entry of a clang compilation database
type compileCommand struct {
	Directory string   `json:"directory"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
	File      string   `json:"file"`
}

// DetectIncludeDirs returns include directories in search order: -I flags from
// compile_commands.json (project root or build/), then a conventional include/ dir.
func (d *BuildLayoutDetector) DetectIncludeDirs() []string {
	var dirs []string
	for _, candidate := range []string{
		filepath.Join(d.projectRoot, "compile_commands.json"),
		filepath.Join(d.projectRoot, "build", "compile_commands.json"),
	} {
		dirs = append(dirs, d.includeDirsFromDatabase(candidate)...)
	}

	if info, err := os.Stat(filepath.Join(d.projectRoot, "include")); err == nil && info.IsDir() {
		dirs = append(dirs, filepath.Join(d.projectRoot, "include"))
	}
	return DeduplicatePatterns(dirs)
}

func (d *BuildLayoutDetector) includeDirsFromDatabase(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var commands []compileCommand
	if json.Unmarshal(data, &commands) != nil {
		return nil
	}

	var dirs []string
	for _, cmd := range commands {
		args := cmd.Arguments
		if len(args) == 0 {
			args = strings.Fields(cmd.Command)
		}
		for i := 0; i < len(args); i++ {
			var dir string
			switch {
			case args[i] == "-I" || args[i] == "-isystem" || args[i] == "-iquote":
				if i+1 < len(args) {
					i++
					dir = args[i]
				}
			case strings.HasPrefix(args[i], "-I"):
				dir = strings.TrimPrefix(args[i], "-I")
			}
			if dir == "" {
				continue
			}
			dir = strings.Trim(dir, "\"'")
			if !filepath.IsAbs(dir) {
				base := cmd.Directory
				if base == "" {
					base = d.projectRoot
				}
				dir = filepath.Join(base, dir)
			}
			dirs = append(dirs, filepath.Clean(dir))
		}
	}
	return dirs
}

// DetectOutputDirectories returns exclude globs for build trees found under the project root
func (d *BuildLayoutDetector) DetectOutputDirectories() []string {
	entries, err := os.ReadDir(d.projectRoot)
	if err != nil {
		return nil
	}

	var patterns []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case name == "build" || name == "builddir" || name == "out":
			patterns = append(patterns, name+"/**")
		case strings.HasPrefix(name, "cmake-build-"): // CLion
			patterns = append(patterns, name+"/**")
		case strings.HasPrefix(name, "bazel-"):
			patterns = append(patterns, name+"/**")
		default:
			// Any directory holding a CMakeCache.txt is a CMake binary dir
			if _, err := os.Stat(filepath.Join(d.projectRoot, name, "CMakeCache.txt")); err == nil {
				patterns = append(patterns, name+"/**")
			}
		}
	}
	return patterns
}
