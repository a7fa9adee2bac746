package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/standardbeagle/cccomplete/internal/errors"
)

func TestValidator_Defaults(t *testing.T) {
	cfg := Default("/src/project")
	cfg.Performance.ParallelFileWorkers = 0
	cfg.Parser.Extensions = nil
	cfg.Parser.Macros = nil

	require.NoError(t, ValidateConfig(cfg))
	assert.GreaterOrEqual(t, cfg.Performance.ParallelFileWorkers, 1)
	assert.Equal(t, DefaultExtensions, cfg.Parser.Extensions)
	assert.NotNil(t, cfg.Parser.Macros)
	assert.Equal(t, "project", cfg.Project.Name)
}

func TestValidator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty root", func(c *Config) { c.Project.Root = "" }, "project"},
		{"bad extension glob", func(c *Config) { c.Parser.Extensions = []string{"[*.cc"} }, "parser"},
		{"negative max results", func(c *Config) { c.Completion.MaxResults = -1 }, "completion"},
		{"bad exclude", func(c *Config) { c.Index.Exclude = []string{"{a,b"} }, "index"},
		{"negative workers", func(c *Config) { c.Performance.ParallelFileWorkers = -2 }, "performance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/src/project")
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)

			var cfgErr *cerrors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
