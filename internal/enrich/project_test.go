package enrich

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/braindump-sh/braindump/internal/testutil"
)

func TestProjectNameFromPackageJSON(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	env.CreateProjectFile("package.json", `{"name": "orders-api"}`)

	p := Project(env.ProjectDir, nil)
	if p.Name != "orders-api" {
		t.Errorf("name = %q, want orders-api", p.Name)
	}
}

func TestProjectNameFallsBackToBasename(t *testing.T) {
	env := testutil.SetupTestEnv(t)

	p := Project(env.ProjectDir, nil)
	if p.Name != filepath.Base(env.ProjectDir) {
		t.Errorf("name = %q, want basename", p.Name)
	}
}

func TestProjectEmptyPath(t *testing.T) {
	p := Project("", nil)
	if p.Name != "" || p.Tree != "" || p.GitBranch != "" {
		t.Errorf("empty path should contribute nothing: %+v", p)
	}
}

func TestTreeExcludesHeavyDirectories(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	env.CreateProjectFile(filepath.Join("src", "index.ts"), "export {}")
	env.CreateProjectFile(filepath.Join("node_modules", "lodash", "index.js"), "x")
	env.CreateProjectFile(filepath.Join(".git", "HEAD"), "ref: refs/heads/main")

	p := Project(env.ProjectDir, nil)
	if !strings.Contains(p.Tree, "src/") {
		t.Errorf("tree missing src/:\n%s", p.Tree)
	}
	if strings.Contains(p.Tree, "node_modules") {
		t.Errorf("tree includes node_modules:\n%s", p.Tree)
	}
	if strings.Contains(p.Tree, ".git") {
		t.Errorf("tree includes .git:\n%s", p.Tree)
	}
}

func TestTreeDepthAndLineCap(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	env.CreateProjectFile(filepath.Join("a", "b", "c", "deep.txt"), "x")
	for i := 0; i < 60; i++ {
		env.CreateProjectFile(filepath.Join("many", string(rune('a'+i%26))+"file"+string(rune('0'+i%10))+".txt"), "x")
	}

	p := Project(env.ProjectDir, nil)
	if strings.Contains(p.Tree, "deep.txt") {
		t.Errorf("tree descended past depth 2:\n%s", p.Tree)
	}
	if n := len(strings.Split(p.Tree, "\n")); n > 40 {
		t.Errorf("tree = %d lines, want <= 40", n)
	}
}

func TestMemoryFiles(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	env.CreateProjectFile("CLAUDE.md", "Always run the linter before committing.")

	p := Project(env.ProjectDir, nil)
	if !strings.Contains(p.MemoryFiles, "Always run the linter") {
		t.Errorf("memory files = %q", p.MemoryFiles)
	}

	p = Project(env.ProjectDir, []string{"AGENTS.md"})
	if p.MemoryFiles != "" {
		t.Errorf("memory files = %q, want empty for absent AGENTS.md", p.MemoryFiles)
	}
}
