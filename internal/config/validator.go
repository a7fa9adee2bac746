package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"

	cerrors "github.com/standardbeagle/cccomplete/internal/errors"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return cerrors.NewConfigError("project", cfg.Project.Root, err)
	}

	if err := v.validateParserConfig(&cfg.Parser); err != nil {
		return cerrors.NewConfigError("parser", "", err)
	}

	if err := v.validateCompletionConfig(&cfg.Completion); err != nil {
		return cerrors.NewConfigError("completion", "", err)
	}

	if err := v.validateIndexConfig(&cfg.Index); err != nil {
		return cerrors.NewConfigError("index", "", err)
	}

	if err := v.validatePerformanceConfig(&cfg.Performance); err != nil {
		return cerrors.NewConfigError("performance", "", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateParserConfig(parser *Parser) error {
	for _, pattern := range parser.Extensions {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid extension pattern %q", pattern)
		}
	}
	for name := range parser.Macros {
		if name == "" {
			return errors.New("macro name cannot be empty")
		}
	}
	return nil
}

func (v *Validator) validateCompletionConfig(completion *Completion) error {
	if completion.MaxResults < 0 {
		return fmt.Errorf("MaxResults cannot be negative, got %d", completion.MaxResults)
	}
	return nil
}

func (v *Validator) validateIndexConfig(index *Index) error {
	if index.WatchDebounceMs < 0 {
		return fmt.Errorf("WatchDebounceMs cannot be negative, got %d", index.WatchDebounceMs)
	}
	for _, pattern := range index.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return nil
}

func (v *Validator) validatePerformanceConfig(perf *Performance) error {
	// ParallelFileWorkers: 0 means auto-detect (will be set by smart defaults)
	if perf.ParallelFileWorkers < 0 {
		return fmt.Errorf("ParallelFileWorkers cannot be negative, got %d", perf.ParallelFileWorkers)
	}
	if perf.DebounceMs < 0 {
		return fmt.Errorf("DebounceMs cannot be negative, got %d", perf.DebounceMs)
	}
	return nil
}

// setSmartDefaults applies smart defaults based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	// Leave one core free for the editor
	if cfg.Performance.ParallelFileWorkers == 0 {
		cfg.Performance.ParallelFileWorkers = max(1, runtime.NumCPU()-1)
	}

	if len(cfg.Parser.Extensions) == 0 {
		cfg.Parser.Extensions = append([]string(nil), DefaultExtensions...)
	}

	if cfg.Parser.Macros == nil {
		cfg.Parser.Macros = map[string]string{}
	}

	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}

	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = ".cccomplete-cache"
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
