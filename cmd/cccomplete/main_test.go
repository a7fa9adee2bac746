package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cccomplete/internal/config"
	"github.com/standardbeagle/cccomplete/internal/indexing"
)

const widgetSource = `class Widget {
public:
    void draw(int x, int y);
    int width;
};
void Widget::draw(int x, int y) {}
Widget w;
`

func setupTestProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// runCLI runs the app in-process and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"cccomplete"}, args...))
	return stdout.String(), err
}

func TestParseCommand(t *testing.T) {
	root := setupTestProject(t, map[string]string{"widget.cc": widgetSource})

	out, err := runCLI(t, "--root", root, "parse")
	require.NoError(t, err)
	assert.Contains(t, out, "class Widget [1,1]")

	out, err = runCLI(t, "--root", root, "parse", "--format", "json")
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	assert.NotEmpty(t, records)

	out, err = runCLI(t, "--root", root, "parse", "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Files:        1")

	_, err = runCLI(t, "--root", root, "parse", "--format", "xml")
	assert.Error(t, err)
}

func TestCompleteCommand(t *testing.T) {
	root := setupTestProject(t, map[string]string{"widget.cc": widgetSource})

	out, err := runCLI(t, "--root", root, "complete", "w.wi")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "width\t"), out)

	out, err = runCLI(t, "--root", root, "complete", "--max", "1", "w.")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))

	out, err = runCLI(t, "--root", root, "complete", "--json", "w.zz")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	_, err = runCLI(t, "--root", root, "complete")
	assert.Error(t, err)
}

func TestCalltipCommand(t *testing.T) {
	root := setupTestProject(t, map[string]string{"widget.cc": widgetSource})

	out, err := runCLI(t, "--root", root, "calltip", "w.draw(1, ")
	require.NoError(t, err)
	assert.Contains(t, out, "[int y]")
}

func TestDeclCommand(t *testing.T) {
	root := setupTestProject(t, map[string]string{"widget.cc": widgetSource})

	out, err := runCLI(t, "--root", root, "decl", "Widget::draw")
	require.NoError(t, err)
	assert.Contains(t, out, "widget.cc:3: ")
	assert.Contains(t, out, "widget.cc:6: implementation")

	out, err = runCLI(t, "--root", root, "decl", "Widget::nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "no declaration found")
}

func TestTestCommand(t *testing.T) {
	root := setupTestProject(t, map[string]string{
		"pass.cc": "struct P { int x; };\nP p;\n// p.//x\n",
	})

	out, err := runCLI(t, "--root", root, "test", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS ")
	assert.Contains(t, out, " 0 failed")

	failing := filepath.Join(root, "fail.cc")
	require.NoError(t, os.WriteFile(failing, []byte("struct Q { int y; };\nQ q;\n// q.//x\n"), 0o644))
	out, err = runCLI(t, "--root", root, "test", failing)
	assert.True(t, errors.Is(err, errFailures), "%v", err)
	assert.Contains(t, out, "FAIL ")
}

func TestCheckCommand(t *testing.T) {
	root := setupTestProject(t, map[string]string{
		"broken.cc": "int main() {\n  int x = ;\n  return 0;\n}\n",
		"clean.cc":  "int fine;\n",
	})

	out, err := runCLI(t, "check", filepath.Join(root, "broken.cc"))
	assert.True(t, errors.Is(err, errFailures), "%v", err)
	assert.Contains(t, out, "broken.cc:")

	out, err = runCLI(t, "check", filepath.Join(root, "clean.cc"))
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = runCLI(t, "check")
	assert.Error(t, err)
}

func TestIncludeDirFlag(t *testing.T) {
	root := setupTestProject(t, map[string]string{
		"main.cc": "#include \"gadget.h\"\nGadget g;\n",
	})
	incDir := setupTestProject(t, map[string]string{
		"gadget.h": "class Gadget {\npublic:\n    int knob;\n};\n",
	})

	out, err := runCLI(t, "--root", root, "complete", "g.kn")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = runCLI(t, "--root", root, "--include-dir", incDir, "complete", "g.kn")
	require.NoError(t, err)
	assert.Contains(t, out, "knob\t")
}

func TestConfigFlag(t *testing.T) {
	root := setupTestProject(t, map[string]string{
		"widget.cc":        widgetSource,
		".cccomplete.toml": "[completion]\nmax_results = 1\n",
	})

	out, err := runCLI(t, "--config", filepath.Join(root, ".cccomplete.toml"), "complete", "w.")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))

	_, err = runCLI(t, "--config", filepath.Join(root, "missing.toml"), "parse")
	assert.Error(t, err)
}

func TestMetricsServer(t *testing.T) {
	cfg := config.Default(t.TempDir())
	m := indexing.NewManager(cfg)
	t.Cleanup(func() { _ = m.Close() })
	_, err := m.ParseBuffer(context.Background(), "widget.cc", widgetSource)
	require.NoError(t, err)

	ts := httptest.NewServer(metricsServer("", m.Registry()).Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "cccomplete_parser_files_total")
}
