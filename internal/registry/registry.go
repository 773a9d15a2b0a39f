// Package registry holds static metadata about every supported agent:
// display names, per-platform storage roots, context windows, and the
// usable token budget reserved for a handoff prompt.
package registry

import (
	"os"
	"path/filepath"
	"runtime"
)

// Agent identifies one of the supported coding agents.
type Agent string

const (
	ClaudeCode Agent = "claude-code"
	Cursor     Agent = "cursor"
	Codex      Agent = "codex"
	Copilot    Agent = "copilot"
	Gemini     Agent = "gemini"
	OpenCode   Agent = "opencode"
	Droid      Agent = "droid"
)

// All returns every known agent in registry order.
func All() []Agent {
	return []Agent{ClaudeCode, Cursor, Codex, Copilot, Gemini, OpenCode, Droid}
}

// Valid reports whether s names a known agent.
func Valid(s string) bool {
	for _, a := range All() {
		if string(a) == s {
			return true
		}
	}
	return false
}

// Platform describes the filesystem environment storage paths resolve
// against. It is a pure function of the OS name and environment, resolved
// once per adapter instance so tests can override via the environment.
type Platform struct {
	OS           string // "linux", "darwin", "windows"
	Home         string
	AppData      string // Windows %APPDATA%
	LocalAppData string // Windows %LOCALAPPDATA%
}

// DetectPlatform resolves the current platform from the process environment.
func DetectPlatform() Platform {
	home, _ := os.UserHomeDir()
	return Platform{
		OS:           runtime.GOOS,
		Home:         home,
		AppData:      os.Getenv("APPDATA"),
		LocalAppData: os.Getenv("LOCALAPPDATA"),
	}
}

// Entry describes one agent's registry metadata.
type Entry struct {
	Agent         Agent
	DisplayName   string
	ContextWindow int
	// UsableTokens is the conservative share of the context window a
	// handoff prompt may occupy when this agent is the target.
	UsableTokens int
	// MemoryFiles are project-relative files the agent treats as
	// persistent instructions, read during enrichment.
	MemoryFiles []string

	unixRoot    func(Platform) string
	darwinRoot  func(Platform) string
	windowsRoot func(Platform) string
}

// StorageRoot resolves the agent's session storage root for p.
func (e Entry) StorageRoot(p Platform) string {
	switch p.OS {
	case "windows":
		if e.windowsRoot != nil {
			return e.windowsRoot(p)
		}
	case "darwin":
		if e.darwinRoot != nil {
			return e.darwinRoot(p)
		}
	}
	return e.unixRoot(p)
}

// FileBudget is the generic token budget used when the handoff target is
// "file" or "clipboard" rather than a registered agent.
const FileBudget = 19000

func home(rel ...string) func(Platform) string {
	return func(p Platform) string {
		return filepath.Join(append([]string{p.Home}, rel...)...)
	}
}

var entries = map[Agent]Entry{
	ClaudeCode: {
		Agent:         ClaudeCode,
		DisplayName:   "Claude Code",
		ContextWindow: 200000,
		UsableTokens:  30000,
		MemoryFiles:   []string{"CLAUDE.md", ".claude/CLAUDE.md"},
		unixRoot:      home(".claude", "projects"),
	},
	Cursor: {
		Agent:         Cursor,
		DisplayName:   "Cursor",
		ContextWindow: 128000,
		UsableTokens:  20000,
		MemoryFiles:   []string{".cursorrules", ".cursor/rules"},
		unixRoot:      home(".config", "Cursor", "User", "workspaceStorage"),
		darwinRoot:    home("Library", "Application Support", "Cursor", "User", "workspaceStorage"),
		windowsRoot: func(p Platform) string {
			return filepath.Join(p.AppData, "Cursor", "User", "workspaceStorage")
		},
	},
	Codex: {
		Agent:         Codex,
		DisplayName:   "Codex CLI",
		ContextWindow: 272000,
		UsableTokens:  40000,
		MemoryFiles:   []string{"AGENTS.md"},
		unixRoot:      home(".codex", "sessions"),
	},
	Copilot: {
		Agent:         Copilot,
		DisplayName:   "Copilot CLI",
		ContextWindow: 128000,
		UsableTokens:  20000,
		MemoryFiles:   []string{".github/copilot-instructions.md"},
		unixRoot:      home(".copilot", "session-state"),
	},
	Gemini: {
		Agent:         Gemini,
		DisplayName:   "Gemini CLI",
		ContextWindow: 1048576,
		UsableTokens:  100000,
		MemoryFiles:   []string{"GEMINI.md"},
		unixRoot:      home(".gemini", "tmp"),
	},
	OpenCode: {
		Agent:         OpenCode,
		DisplayName:   "OpenCode",
		ContextWindow: 200000,
		UsableTokens:  30000,
		MemoryFiles:   []string{"AGENTS.md"},
		unixRoot:      home(".local", "share", "opencode"),
		windowsRoot: func(p Platform) string {
			return filepath.Join(p.LocalAppData, "opencode")
		},
	},
	Droid: {
		Agent:         Droid,
		DisplayName:   "Droid",
		ContextWindow: 200000,
		UsableTokens:  30000,
		MemoryFiles:   []string{"AGENTS.md"},
		unixRoot:      home(".factory", "sessions"),
	},
}

// Lookup returns the registry entry for a. The second result is false for
// unknown agents.
func Lookup(a Agent) (Entry, bool) {
	e, ok := entries[a]
	return e, ok
}

// MustLookup returns the registry entry for a known agent.
func MustLookup(a Agent) Entry {
	e, ok := entries[a]
	if !ok {
		panic("registry: unknown agent " + string(a))
	}
	return e
}

// BudgetFor returns the usable token budget for a handoff target. Targets
// "file" and "clipboard" (and anything else unregistered) get FileBudget.
func BudgetFor(target string) int {
	if e, ok := entries[Agent(target)]; ok {
		return e.UsableTokens
	}
	return FileBudget
}
