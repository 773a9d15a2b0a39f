// Package enrich collects repository context for a captured session:
// project name, git state, a shallow directory skeleton, and agent memory
// files. Every source is optional; failures contribute nothing.
package enrich

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/braindump-sh/braindump/internal/session"
)

const (
	treeMaxDepth   = 2
	treeMaxLines   = 40
	memoryMaxChars = 2000
	gitLogCount    = "10"
)

var treeExclusions = map[string]bool{
	"node_modules": true,
	".git":         true,
	".next":        true,
	"dist":         true,
	"__pycache__":  true,
	".venv":        true,
}

// Project gathers context for projectPath. memoryFiles are the source
// agent's project-relative memory file names; when empty the Claude Code
// defaults apply.
func Project(projectPath string, memoryFiles []string) session.Project {
	p := session.Project{Path: projectPath, Name: projectName(projectPath)}
	if projectPath == "" {
		return p
	}

	p.GitBranch = gitOutput(projectPath, "rev-parse", "--abbrev-ref", "HEAD")
	p.GitStatus = gitOutput(projectPath, "status", "--short")
	if log := gitOutput(projectPath, "log", "--oneline", "-n", gitLogCount); log != "" {
		p.GitLog = strings.Split(log, "\n")
	}

	p.Tree = buildTree(projectPath)

	if len(memoryFiles) == 0 {
		memoryFiles = []string{"CLAUDE.md", ".claude/CLAUDE.md"}
	}
	p.MemoryFiles = readMemoryFiles(projectPath, memoryFiles)

	return p
}

// projectName prefers the package.json name, falling back to the
// directory basename.
func projectName(projectPath string) string {
	if projectPath == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(projectPath, "package.json"))
	if err == nil {
		var pkg struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(data, &pkg) == nil && pkg.Name != "" {
			return pkg.Name
		}
	}
	return filepath.Base(projectPath)
}

func gitOutput(dir string, args ...string) string {
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// buildTree renders the directory skeleton to depth 2, directories before
// files, both alphabetized, capped at treeMaxLines lines.
func buildTree(root string) string {
	var lines []string
	walk(root, 0, "", &lines)
	if len(lines) > treeMaxLines {
		lines = lines[:treeMaxLines]
	}
	return strings.Join(lines, "\n")
}

func walk(dir string, depth int, indent string, lines *[]string) {
	if depth >= treeMaxDepth || len(*lines) >= treeMaxLines {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var dirs, files []string
	for _, e := range entries {
		name := e.Name()
		if treeExclusions[name] {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, name)
		} else {
			files = append(files, name)
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)
	for _, d := range dirs {
		if len(*lines) >= treeMaxLines {
			return
		}
		*lines = append(*lines, indent+d+"/")
		walk(filepath.Join(dir, d), depth+1, indent+"  ", lines)
	}
	for _, f := range files {
		if len(*lines) >= treeMaxLines {
			return
		}
		*lines = append(*lines, indent+f)
	}
}

func readMemoryFiles(root string, names []string) string {
	var parts []string
	for i, name := range names {
		if i >= 2 {
			break
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text != "" {
			parts = append(parts, text)
		}
	}
	joined := strings.Join(parts, "\n\n")
	if len(joined) > memoryMaxChars {
		joined = joined[:memoryMaxChars]
	}
	return joined
}
