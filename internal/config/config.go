package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Config file names searched in the project root, in priority order.
const (
	KDLFileName  = ".cccomplete.kdl"
	TOMLFileName = ".cccomplete.toml"
)

type Config struct {
	Version     int
	Project     Project
	Parser      Parser
	Completion  Completion
	Index       Index
	Performance Performance
	Cache       Cache
	Debug       bool
}

type Project struct {
	Root string
	Name string
}

type Parser struct {
	IncludeDirs        []string          // searched in order after the including file's directory
	Macros             map[string]string // initial object-like macro table
	SkipBlockBodies    bool              // do not collect locals from function bodies
	WantPreprocessor   bool              // collect #define macros and expand object-like ones
	StoreDocumentation bool
	FollowIncludes     bool     // queue resolved #include targets for parsing
	Extensions         []string // glob patterns of files treated as C/C++ sources
}

type Completion struct {
	CaseSensitive  bool
	UseInheritance bool
	MaxResults     int // 0 = unlimited
}

type Index struct {
	WatchMode       bool     // Enable file system watching for automatic reparsing
	WatchDebounceMs int      // Debounce time for file change events
	Exclude         []string // doublestar globs relative to the project root
}

type Performance struct {
	ParallelFileWorkers int // 0 = auto-detect (NumCPU-1)
	DebounceMs          int // Debounce time for editor events
}

type Cache struct {
	Enabled bool
	Dir     string // badger directory, relative paths resolve against Project.Root
}

// DefaultExtensions lists the source and header patterns parsed by default.
var DefaultExtensions = []string{
	"**/*.c", "**/*.cc", "**/*.cpp", "**/*.cxx", "**/*.c++",
	"**/*.h", "**/*.hh", "**/*.hpp", "**/*.hxx", "**/*.inl", "**/*.tcc",
}

// Default returns the configuration used when no config file exists.
func Default(root string) *Config {
	if root == "" {
		// Use current working directory as absolute path for consistency
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		root = cwd
	}
	return &Config{
		Version: 1,
		Project: Project{
			Root: root,
			Name: filepath.Base(root),
		},
		Parser: Parser{
			IncludeDirs:        []string{},
			Macros:             map[string]string{},
			SkipBlockBodies:    false,
			WantPreprocessor:   true,
			StoreDocumentation: true,
			FollowIncludes:     true,
			Extensions:         append([]string(nil), DefaultExtensions...),
		},
		Completion: Completion{
			CaseSensitive:  false,
			UseInheritance: true,
			MaxResults:     0,
		},
		Index: Index{
			WatchMode:       false,
			WatchDebounceMs: 300,
			Exclude: []string{
				"**/.git/**",
				"**/.*/**",
				"**/node_modules/**",
				"**/third_party/**",
			},
		},
		Performance: Performance{
			ParallelFileWorkers: 0,
			DebounceMs:          100,
		},
		Cache: Cache{
			Enabled: false,
			Dir:     ".cccomplete-cache",
		},
	}
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot loads the project config from rootDir (or path when rootDir is
// empty), layering it over ~/.cccomplete.kdl when that exists.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if path != "" {
		searchDir = path
	}
	if rootDir != "" {
		searchDir = rootDir
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != searchDir {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	projectConfig, err := LoadKDL(searchDir)
	if err != nil {
		return nil, err
	}
	if projectConfig == nil {
		projectConfig, err = LoadTOML(searchDir)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case baseConfig != nil && projectConfig != nil:
		return mergeConfigs(baseConfig, projectConfig), nil
	case projectConfig != nil:
		return projectConfig, nil
	case baseConfig != nil:
		baseConfig.Project.Root = absOr(searchDir)
		baseConfig.Project.Name = filepath.Base(baseConfig.Project.Root)
		return baseConfig, nil
	}

	cfg := Default(absOr(searchDir))
	cfg.Parser.IncludeDirs = append(cfg.Parser.IncludeDirs, NewBuildLayoutDetector(cfg.Project.Root).DetectIncludeDirs()...)
	cfg.Index.Exclude = DeduplicatePatterns(append(cfg.Index.Exclude, NewBuildLayoutDetector(cfg.Project.Root).DetectOutputDirectories()...))
	return cfg, nil
}

// mergeConfigs merges a base config with a project config.
// Project config takes precedence, but base exclusions and include dirs are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	merged.Index.Exclude = DeduplicatePatterns(append(append([]string{}, base.Index.Exclude...), project.Index.Exclude...))

	// Project include dirs are searched before global ones
	merged.Parser.IncludeDirs = DeduplicatePatterns(append(append([]string{}, project.Parser.IncludeDirs...), base.Parser.IncludeDirs...))

	if len(base.Parser.Macros) > 0 {
		macros := make(map[string]string, len(base.Parser.Macros)+len(project.Parser.Macros))
		for k, v := range base.Parser.Macros {
			macros[k] = v
		}
		for k, v := range project.Parser.Macros {
			macros[k] = v
		}
		merged.Parser.Macros = macros
	}

	return &merged
}

// DeduplicatePatterns removes duplicates while keeping first-seen order.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Workers returns the effective parse worker count.
func (c *Config) Workers() int {
	if c.Performance.ParallelFileWorkers > 0 {
		return c.Performance.ParallelFileWorkers
	}
	return max(1, runtime.NumCPU()-1)
}

// CacheDir returns the absolute badger directory.
func (c *Config) CacheDir() string {
	if filepath.IsAbs(c.Cache.Dir) {
		return c.Cache.Dir
	}
	return filepath.Join(c.Project.Root, c.Cache.Dir)
}

// ResolvedIncludeDirs returns include dirs with relative entries anchored at the project root.
func (c *Config) ResolvedIncludeDirs() []string {
	out := make([]string, 0, len(c.Parser.IncludeDirs))
	for _, d := range c.Parser.IncludeDirs {
		if !filepath.IsAbs(d) {
			d = filepath.Join(c.Project.Root, d)
		}
		out = append(out, filepath.Clean(d))
	}
	return out
}

func absOr(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
