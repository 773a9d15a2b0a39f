// Package adapters reads the on-disk session storage of each supported
// agent and normalizes it into the canonical session record. One adapter
// per agent; shared parsing primitives live alongside rather than in a
// base type, and adapters compose them.
package adapters

import (
	"errors"
	"fmt"
	"sort"

	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
)

var (
	// ErrNotDetected reports that no adapter found usable storage.
	ErrNotDetected = errors.New("adapters: no agent storage detected")
	// ErrNoSessions reports an empty (possibly filtered) session list.
	ErrNoSessions = errors.New("adapters: no sessions found")
	// ErrSessionNotFound reports an unknown session identifier.
	ErrSessionNotFound = errors.New("adapters: session not found")
	// ErrParseFailure reports a primary artifact that could not be read
	// or decoded at all. Individual malformed records are skipped, not
	// fatal.
	ErrParseFailure = errors.New("adapters: parse failure")
)

// Adapter is the capability set every agent integration exposes.
type Adapter interface {
	// Agent returns the identifier this adapter serves.
	Agent() registry.Agent
	// Detect reports whether the agent's storage root exists and holds
	// at least one recognizable session artifact.
	Detect() bool
	// ListSessions returns discoverable sessions, newest first,
	// optionally filtered to those recorded against projectPath.
	ListSessions(projectPath string) ([]session.Info, error)
	// Capture reads one full session into the canonical record.
	Capture(sessionID string) (*session.Captured, error)
}

// CaptureLatest lists a's sessions and captures the most recent one.
func CaptureLatest(a Adapter, projectPath string) (*session.Captured, error) {
	infos, err := a.ListSessions(projectPath)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoSessions, a.Agent())
	}
	return a.Capture(infos[0].ID)
}

// NewAll constructs every adapter against one resolved platform.
func NewAll(p registry.Platform) map[registry.Agent]Adapter {
	return map[registry.Agent]Adapter{
		registry.ClaudeCode: NewClaudeCode(p),
		registry.Cursor:     NewCursor(p),
		registry.Codex:      NewCodex(p),
		registry.Copilot:    NewCopilot(p),
		registry.Gemini:     NewGemini(p),
		registry.OpenCode:   NewOpenCode(p),
		registry.Droid:      NewDroid(p),
	}
}

// DetectAll returns the agents whose storage is present, in registry
// order.
func DetectAll(all map[registry.Agent]Adapter) []registry.Agent {
	var found []registry.Agent
	for _, id := range registry.All() {
		if a, ok := all[id]; ok && a.Detect() {
			found = append(found, id)
		}
	}
	return found
}

// sortInfos orders sessions by last-active-at descending, ties broken by
// started-at descending; sessions without timestamps sort last.
func sortInfos(infos []session.Info) {
	sort.SliceStable(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		switch {
		case a.LastActiveAt != nil && b.LastActiveAt != nil && !a.LastActiveAt.Equal(*b.LastActiveAt):
			return a.LastActiveAt.After(*b.LastActiveAt)
		case a.LastActiveAt != nil && b.LastActiveAt == nil:
			return true
		case a.LastActiveAt == nil && b.LastActiveAt != nil:
			return false
		}
		switch {
		case a.StartedAt != nil && b.StartedAt != nil:
			return a.StartedAt.After(*b.StartedAt)
		case a.StartedAt != nil:
			return true
		default:
			return false
		}
	})
}

// filterByProject keeps sessions whose recorded working directory is
// path-equal to projectPath. An empty filter keeps everything.
func filterByProject(infos []session.Info, projectPath string) []session.Info {
	if projectPath == "" {
		return infos
	}
	out := infos[:0]
	for _, info := range infos {
		if pathsEqual(info.ProjectPath, projectPath) {
			out = append(out, info)
		}
	}
	return out
}
