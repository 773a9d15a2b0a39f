// Package launch starts the target agent with the resume prompt.
package launch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/braindump-sh/braindump/internal/registry"
)

// inlineLimit is the largest prompt passed directly as an argument.
// Bigger prompts are written to a reference file instead.
const inlineLimit = 50 * 1024

// referenceFileName is written into the project directory when the
// prompt is too large to inline.
const referenceFileName = ".braindump-handoff.md"

// binaries maps each agent to its executable name.
var binaries = map[registry.Agent]string{
	registry.ClaudeCode: "claude",
	registry.Cursor:     "cursor",
	registry.Codex:      "codex",
	registry.Copilot:    "copilot",
	registry.Gemini:     "gemini",
	registry.OpenCode:   "opencode",
	registry.Droid:      "droid",
}

// Run replaces the current process with the target agent, handing it the
// resume prompt. Prompts above the inline limit are written to a
// reference file in projectPath and the agent is pointed at it.
func Run(target registry.Agent, prompt, projectPath string) error {
	bin, ok := binaries[target]
	if !ok {
		return fmt.Errorf("no launcher for target %q", target)
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", bin)
	}

	arg := prompt
	if len(prompt) > inlineLimit {
		ref := filepath.Join(projectPath, referenceFileName)
		if err := os.WriteFile(ref, []byte(prompt), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", ref, err)
		}
		arg = fmt.Sprintf("Read %s and continue the session it describes.", ref)
	}

	os.Stdout.Sync()
	return syscall.Exec(path, []string{bin, arg}, os.Environ())
}
