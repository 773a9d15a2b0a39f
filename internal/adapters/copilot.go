package adapters

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
)

// CopilotAdapter reads Copilot CLI session state: one directory per
// session under ~/.copilot/session-state containing workspace.yaml
// metadata and an events.jsonl stream.
type CopilotAdapter struct {
	root string
}

// NewCopilot builds the adapter against a resolved platform.
func NewCopilot(p registry.Platform) *CopilotAdapter {
	return &CopilotAdapter{root: registry.MustLookup(registry.Copilot).StorageRoot(p)}
}

func (a *CopilotAdapter) Agent() registry.Agent { return registry.Copilot }

func (a *CopilotAdapter) Detect() bool {
	dirs, err := os.ReadDir(a.root)
	if err != nil {
		return false
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(a.root, d.Name(), "workspace.yaml")); err == nil {
			return true
		}
	}
	return false
}

// copilotWorkspace is the workspace.yaml metadata file.
type copilotWorkspace struct {
	SessionID string `yaml:"session_id"`
	Workspace string `yaml:"workspace"`
	CWD       string `yaml:"cwd"`
	CreatedAt string `yaml:"created_at"`
	UpdatedAt string `yaml:"updated_at"`
	Summary   string `yaml:"summary"`
}

// copilotEvent is one events.jsonl entry.
type copilotEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Content      string `json:"content"`
		CWD          string `json:"cwd"`
		ToolRequests []struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		} `json:"toolRequests"`
	} `json:"data"`
}

func (a *CopilotAdapter) ListSessions(projectPath string) ([]session.Info, error) {
	dirs, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, a.root, err)
	}

	var infos []session.Info
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		ws, err := a.readWorkspace(d.Name())
		if err != nil {
			continue
		}
		info := session.Info{
			ID:           d.Name(),
			ProjectPath:  firstNonEmpty(ws.CWD, ws.Workspace),
			StartedAt:    ParseTimestamp(ws.CreatedAt),
			LastActiveAt: ParseTimestamp(ws.UpdatedAt),
			Preview:      truncateText(ws.Summary, 200),
		}
		if ws.SessionID != "" {
			info.ID = ws.SessionID
		}
		info.MessageCount = a.countMessages(d.Name())
		if info.LastActiveAt == nil {
			if stat, err := os.Stat(filepath.Join(a.root, d.Name(), "events.jsonl")); err == nil {
				mod := stat.ModTime().UTC()
				info.LastActiveAt = &mod
			}
		}
		infos = append(infos, info)
	}

	infos = filterByProject(infos, projectPath)
	sortInfos(infos)
	return infos, nil
}

func (a *CopilotAdapter) readWorkspace(dir string) (*copilotWorkspace, error) {
	data, err := os.ReadFile(filepath.Join(a.root, dir, "workspace.yaml"))
	if err != nil {
		return nil, err
	}
	var ws copilotWorkspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (a *CopilotAdapter) countMessages(dir string) int {
	f, err := os.Open(filepath.Join(a.root, dir, "events.jsonl"))
	if err != nil {
		return 0
	}
	defer f.Close()

	count := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), scannerBuffer)
	for sc.Scan() {
		var ev copilotEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			continue
		}
		if ev.Type == "user.message" || ev.Type == "assistant.message" {
			count++
		}
	}
	return count
}

func (a *CopilotAdapter) Capture(sessionID string) (*session.Captured, error) {
	dir, ws, err := a.findSession(sessionID)
	if err != nil {
		return nil, err
	}

	eventsPath := filepath.Join(a.root, dir, "events.jsonl")
	f, err := os.Open(eventsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, eventsPath, err)
	}
	defer f.Close()

	rec := newRecorder(registry.Copilot, sessionID)
	rec.setProjectPath(firstNonEmpty(ws.CWD, ws.Workspace))
	rec.setStartedAt(ParseTimestamp(ws.CreatedAt))

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), scannerBuffer)
	for sc.Scan() {
		var ev copilotEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			rec.skipMalformed()
			continue
		}
		ts := ParseTimestamp(ev.Timestamp)

		switch ev.Type {
		case "session.start":
			rec.setProjectPath(ev.Data.CWD)
			rec.setStartedAt(ts)
		case "user.message":
			rec.addMessage("user", ev.Data.Content, ts)
		case "assistant.message":
			if ev.Data.Content != "" {
				rec.addMessage("assistant", ev.Data.Content, ts)
			}
			for _, req := range ev.Data.ToolRequests {
				args, _ := ParseJSONObject(req.Arguments)
				rec.addToolUse(req.Name, args, ts)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, eventsPath, err)
	}

	return rec.finish()
}

// findSession resolves sessionID to its directory: the directory name
// itself or the session_id recorded in workspace.yaml.
func (a *CopilotAdapter) findSession(sessionID string) (string, *copilotWorkspace, error) {
	if ws, err := a.readWorkspace(sessionID); err == nil {
		return sessionID, ws, nil
	}
	dirs, err := os.ReadDir(a.root)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		ws, err := a.readWorkspace(d.Name())
		if err != nil {
			continue
		}
		if ws.SessionID == sessionID {
			return d.Name(), ws, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
