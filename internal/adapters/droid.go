package adapters

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
)

// DroidAdapter reads Factory Droid sessions: line-delimited JSON at
// ~/.factory/sessions/<workspaceSlug>/<uuid>.jsonl with a companion
// <uuid>.settings.json. The external session identifier is the composite
// "<slug>:<uuid>".
type DroidAdapter struct {
	root string
}

// NewDroid builds the adapter against a resolved platform.
func NewDroid(p registry.Platform) *DroidAdapter {
	return &DroidAdapter{root: registry.MustLookup(registry.Droid).StorageRoot(p)}
}

func (a *DroidAdapter) Agent() registry.Agent { return registry.Droid }

func (a *DroidAdapter) Detect() bool {
	slugs, err := os.ReadDir(a.root)
	if err != nil {
		return false
	}
	for _, slug := range slugs {
		if !slug.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(a.root, slug.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if !f.IsDir() && strings.HasSuffix(f.Name(), ".jsonl") {
				return true
			}
		}
	}
	return false
}

// droidEvent is one session event line.
type droidEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	ID        string `json:"id"`
	CWD       string `json:"cwd"`
	Message   struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	Todos string `json:"todos"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// droidSettings is the optional settings companion; its absence degrades
// to defaults.
type droidSettings struct {
	CWD   string `json:"cwd"`
	Title string `json:"title"`
}

// todoLineRe matches free-text numbered todo lines: "1. [status] text".
var todoLineRe = regexp.MustCompile(`^\s*\d+\.\s*\[([^\]]+)\]\s*(.+)$`)

func (a *DroidAdapter) ListSessions(projectPath string) ([]session.Info, error) {
	slugs, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, a.root, err)
	}

	var infos []session.Info
	for _, slug := range slugs {
		if !slug.IsDir() {
			continue
		}
		dir := filepath.Join(a.root, slug.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".jsonl") {
				continue
			}
			uuid := strings.TrimSuffix(f.Name(), ".jsonl")
			path := filepath.Join(dir, f.Name())
			info, ok := a.summarize(path, slug.Name(), uuid)
			if ok {
				infos = append(infos, info)
			}
		}
	}

	infos = filterByProject(infos, projectPath)
	sortInfos(infos)
	return infos, nil
}

func (a *DroidAdapter) summarize(path, slug, uuid string) (session.Info, bool) {
	f, err := os.Open(path)
	if err != nil {
		return session.Info{}, false
	}
	defer f.Close()

	info := session.Info{ID: slug + ":" + uuid}
	var count int
	var lastTS *time.Time

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), scannerBuffer)
	for sc.Scan() {
		var ev droidEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "session_start":
			info.ProjectPath = ev.CWD
			info.StartedAt = ParseTimestamp(ev.Timestamp)
		case "message":
			count++
			if ts := ParseTimestamp(ev.Timestamp); ts != nil {
				lastTS = ts
			}
			if info.Preview == "" && NormalizeRole(ev.Message.Role) == "user" {
				if text, _ := StringOrBlocks(ev.Message.Content); text != "" {
					info.Preview = truncateText(text, 200)
				}
			}
		}
	}
	if count == 0 && info.StartedAt == nil {
		return session.Info{}, false
	}

	if info.ProjectPath == "" {
		if settings := a.readSettings(slug, uuid); settings != nil {
			info.ProjectPath = settings.CWD
		}
	}
	info.MessageCount = count
	info.LastActiveAt = lastTS
	if info.LastActiveAt == nil {
		if stat, err := os.Stat(path); err == nil {
			mod := stat.ModTime().UTC()
			info.LastActiveAt = &mod
		}
	}
	return info, true
}

func (a *DroidAdapter) Capture(sessionID string) (*session.Captured, error) {
	slug, uuid, ok := splitDroidID(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	path := filepath.Join(a.root, slug, uuid+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, path, err)
	}
	defer f.Close()

	rec := newRecorder(registry.Droid, sessionID)
	if settings := a.readSettings(slug, uuid); settings != nil {
		rec.setProjectPath(settings.CWD)
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), scannerBuffer)
	for sc.Scan() {
		var ev droidEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			rec.skipMalformed()
			continue
		}
		ts := ParseTimestamp(ev.Timestamp)

		switch ev.Type {
		case "session_start":
			rec.setProjectPath(ev.CWD)
			rec.setStartedAt(ts)
		case "message":
			a.captureMessage(rec, ev, ts)
		case "todo_state":
			rec.resetTodos()
			for _, line := range strings.Split(ev.Todos, "\n") {
				if m := todoLineRe.FindStringSubmatch(line); m != nil {
					rec.addTodo(m[1], m[2])
				}
			}
		case "compaction_state":
			// summarization checkpoints carry no conversation content
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, path, err)
	}

	return rec.finish()
}

func (a *DroidAdapter) captureMessage(rec *recorder, ev droidEvent, ts *time.Time) {
	role := NormalizeRole(ev.Message.Role)
	text, blocks := StringOrBlocks(ev.Message.Content)
	if text != "" {
		rec.addMessage(role, text, ts)
	}
	var parts []string
	for _, b := range blocks {
		switch FirstString(b, "type") {
		case "text":
			if t := FirstString(b, "text"); t != "" {
				parts = append(parts, t)
			}
		case "thinking":
			rec.addThought(FirstString(b, "thinking", "text"))
		case "tool_use":
			name := FirstString(b, "name")
			args, _ := b["input"].(map[string]any)
			rec.addToolUse(name, args, ts)
		case "tool_result":
			rec.addToolResult("", blockResultText(b), ts)
		}
	}
	if len(parts) > 0 {
		rec.addMessage(role, strings.Join(parts, "\n"), ts)
	}
	rec.addUsage(ev.Usage.InputTokens, ev.Usage.OutputTokens, 0)
}

func (a *DroidAdapter) readSettings(slug, uuid string) *droidSettings {
	data, err := os.ReadFile(filepath.Join(a.root, slug, uuid+".settings.json"))
	if err != nil {
		return nil
	}
	var s droidSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	return &s
}

func splitDroidID(sessionID string) (slug, uuid string, ok bool) {
	idx := strings.LastIndex(sessionID, ":")
	if idx <= 0 || idx == len(sessionID)-1 {
		return "", "", false
	}
	return sessionID[:idx], sessionID[idx+1:], true
}
