// Package testutil provides isolated environments for adapter and
// pipeline tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/braindump-sh/braindump/internal/registry"
)

// TestEnv provides access to isolated test directories.
type TestEnv struct {
	Home       string
	ProjectDir string
	Platform   registry.Platform
	t          *testing.T
}

// SetupTestEnv creates an isolated environment with a mocked HOME.
// t.TempDir() handles cleanup and t.Setenv() restores the environment.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpHome := t.TempDir()
	tmpProject := t.TempDir()
	t.Setenv("HOME", tmpHome)

	return &TestEnv{
		Home:       tmpHome,
		ProjectDir: tmpProject,
		Platform: registry.Platform{
			OS:   "linux",
			Home: tmpHome,
		},
		t: t,
	}
}

// CreateFile writes content at path, creating parents. Relative paths
// resolve against the mocked home directory.
func (e *TestEnv) CreateFile(path, content string) string {
	e.t.Helper()

	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(e.Home, path)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		e.t.Fatalf("mkdir %s: %v", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		e.t.Fatalf("write %s: %v", full, err)
	}
	return full
}

// CreateProjectFile writes content relative to the test project.
func (e *TestEnv) CreateProjectFile(relPath, content string) string {
	e.t.Helper()
	return e.CreateFile(filepath.Join(e.ProjectDir, relPath), content)
}

// CreateJSONL joins lines with newlines and writes them at path.
func (e *TestEnv) CreateJSONL(path string, lines ...string) string {
	e.t.Helper()
	return e.CreateFile(path, strings.Join(lines, "\n")+"\n")
}

// FileExists reports whether path exists, resolving relative paths
// against the mocked home.
func (e *TestEnv) FileExists(path string) bool {
	e.t.Helper()
	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(e.Home, path)
	}
	_, err := os.Stat(full)
	return err == nil
}
