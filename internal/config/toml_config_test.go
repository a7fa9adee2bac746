package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTOML_PartialKeepsDefaults(t *testing.T) {
	cfg, err := parseTOML([]byte(`
[parser]
include_dirs = ["inc"]
skip_block_bodies = true

[parser.macros]
API = ""

[completion]
max_results = 10
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"inc"}, cfg.Parser.IncludeDirs)
	assert.True(t, cfg.Parser.SkipBlockBodies)
	assert.True(t, cfg.Parser.WantPreprocessor, "unset keys keep defaults")
	assert.Contains(t, cfg.Parser.Macros, "API")
	assert.Equal(t, 10, cfg.Completion.MaxResults)
	assert.True(t, cfg.Completion.UseInheritance)
}

func TestParseTOML_Invalid(t *testing.T) {
	_, err := parseTOML([]byte(`[parser`))
	assert.Error(t, err)
}

func TestLoadWithRoot_TOMLFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TOMLFileName), []byte("[project]\nname = \"tomlproj\"\n"), 0o644))

	cfg, err := LoadTOML(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "tomlproj", cfg.Project.Name)
	assert.Equal(t, dir, cfg.Project.Root)
}

func TestMergeConfigs(t *testing.T) {
	base := Default("/home")
	base.Parser.IncludeDirs = []string{"/usr/local/include"}
	base.Parser.Macros = map[string]string{"A": "1", "B": "2"}
	base.Index.Exclude = []string{"**/gen/**"}

	project := Default("/proj")
	project.Parser.IncludeDirs = []string{"include"}
	project.Parser.Macros = map[string]string{"B": "3"}

	merged := mergeConfigs(base, project)
	assert.Equal(t, "/proj", merged.Project.Root)
	assert.Equal(t, []string{"include", "/usr/local/include"}, merged.Parser.IncludeDirs)
	assert.Equal(t, map[string]string{"A": "1", "B": "3"}, merged.Parser.Macros)
	assert.Contains(t, merged.Index.Exclude, "**/gen/**")
	assert.Contains(t, merged.Index.Exclude, "**/.git/**")
}
