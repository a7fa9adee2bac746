package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLayoutDetector_IncludeDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "include"), 0o755))
	db := `[
  {"directory": "` + root + `", "command": "c++ -Isrc -I /opt/x/include -DFOO -c a.cc", "file": "a.cc"},
  {"directory": "` + root + `", "arguments": ["c++", "-isystem", "vendor", "-c", "b.cc"], "file": "b.cc"}
]`
	require.NoError(t, os.WriteFile(filepath.Join(root, "compile_commands.json"), []byte(db), 0o644))

	dirs := NewBuildLayoutDetector(root).DetectIncludeDirs()
	assert.Equal(t, []string{
		filepath.Join(root, "src"),
		"/opt/x/include",
		filepath.Join(root, "vendor"),
		filepath.Join(root, "include"),
	}, dirs)
}

func TestBuildLayoutDetector_OutputDirectories(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"build", "cmake-build-debug", "src", "bin2"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin2", "CMakeCache.txt"), nil, 0o644))

	patterns := NewBuildLayoutDetector(root).DetectOutputDirectories()
	assert.ElementsMatch(t, []string{"build/**", "cmake-build-debug/**", "bin2/**"}, patterns)
}
