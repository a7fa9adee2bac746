package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// tomlConfig mirrors Config for .cccomplete.toml. Pointer fields distinguish
// "unset" from zero values so defaults survive partial files.
type tomlConfig struct {
	Project struct {
		Root string `toml:"root"`
		Name string `toml:"name"`
	} `toml:"project"`
	Parser struct {
		IncludeDirs        []string          `toml:"include_dirs"`
		Macros             map[string]string `toml:"macros"`
		SkipBlockBodies    *bool             `toml:"skip_block_bodies"`
		WantPreprocessor   *bool             `toml:"want_preprocessor"`
		StoreDocumentation *bool             `toml:"store_documentation"`
		FollowIncludes     *bool             `toml:"follow_includes"`
		Extensions         []string          `toml:"extensions"`
	} `toml:"parser"`
	Completion struct {
		CaseSensitive  *bool `toml:"case_sensitive"`
		UseInheritance *bool `toml:"use_inheritance"`
		MaxResults     *int  `toml:"max_results"`
	} `toml:"completion"`
	Index struct {
		WatchMode       *bool    `toml:"watch_mode"`
		WatchDebounceMs *int     `toml:"watch_debounce_ms"`
		Exclude         []string `toml:"exclude"`
	} `toml:"index"`
	Performance struct {
		ParallelFileWorkers *int `toml:"parallel_file_workers"`
		DebounceMs          *int `toml:"debounce_ms"`
	} `toml:"performance"`
	Cache struct {
		Enabled *bool  `toml:"enabled"`
		Dir     string `toml:"dir"`
	} `toml:"cache"`
	Debug bool `toml:"debug"`
}

// LoadTOML loads .cccomplete.toml from projectRoot. A missing file yields (nil, nil).
func LoadTOML(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, TOMLFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", TOMLFileName, err)
	}
	cfg, err := parseTOML(content)
	if err != nil {
		return nil, err
	}
	anchorRoot(cfg, projectRoot)
	return cfg, nil
}

func parseTOML(content []byte) (*Config, error) {
	var tc tomlConfig
	if err := toml.Unmarshal(content, &tc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg := Default("")
	cfg.Project.Root = tc.Project.Root
	cfg.Project.Name = tc.Project.Name

	cfg.Parser.IncludeDirs = append(cfg.Parser.IncludeDirs, tc.Parser.IncludeDirs...)
	for k, v := range tc.Parser.Macros {
		cfg.Parser.Macros[k] = v
	}
	setBool(&cfg.Parser.SkipBlockBodies, tc.Parser.SkipBlockBodies)
	setBool(&cfg.Parser.WantPreprocessor, tc.Parser.WantPreprocessor)
	setBool(&cfg.Parser.StoreDocumentation, tc.Parser.StoreDocumentation)
	setBool(&cfg.Parser.FollowIncludes, tc.Parser.FollowIncludes)
	if len(tc.Parser.Extensions) > 0 {
		cfg.Parser.Extensions = tc.Parser.Extensions
	}

	setBool(&cfg.Completion.CaseSensitive, tc.Completion.CaseSensitive)
	setBool(&cfg.Completion.UseInheritance, tc.Completion.UseInheritance)
	setInt(&cfg.Completion.MaxResults, tc.Completion.MaxResults)

	setBool(&cfg.Index.WatchMode, tc.Index.WatchMode)
	setInt(&cfg.Index.WatchDebounceMs, tc.Index.WatchDebounceMs)
	cfg.Index.Exclude = DeduplicatePatterns(append(cfg.Index.Exclude, tc.Index.Exclude...))

	setInt(&cfg.Performance.ParallelFileWorkers, tc.Performance.ParallelFileWorkers)
	setInt(&cfg.Performance.DebounceMs, tc.Performance.DebounceMs)

	setBool(&cfg.Cache.Enabled, tc.Cache.Enabled)
	if tc.Cache.Dir != "" {
		cfg.Cache.Dir = tc.Cache.Dir
	}
	cfg.Debug = tc.Debug
	return cfg, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
