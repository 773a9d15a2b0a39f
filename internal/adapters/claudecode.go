package adapters

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
)

// scannerBuffer sizes bufio scanners for JSONL lines carrying large tool
// outputs.
const scannerBuffer = 10 * 1024 * 1024

// ClaudeCodeAdapter reads Claude Code sessions: one directory per
// project under ~/.claude/projects, one <sessionId>.jsonl per session
// whose lines carry typed content blocks.
type ClaudeCodeAdapter struct {
	root string
}

// NewClaudeCode builds the adapter against a resolved platform.
func NewClaudeCode(p registry.Platform) *ClaudeCodeAdapter {
	return &ClaudeCodeAdapter{root: registry.MustLookup(registry.ClaudeCode).StorageRoot(p)}
}

func (a *ClaudeCodeAdapter) Agent() registry.Agent { return registry.ClaudeCode }

func (a *ClaudeCodeAdapter) Detect() bool {
	projects, err := os.ReadDir(a.root)
	if err != nil {
		return false
	}
	for _, proj := range projects {
		if !proj.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(a.root, proj.Name()))
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

// claudeLine is the subset of a Claude Code JSONL record the adapter
// consumes.
type claudeLine struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	CWD       string `json:"cwd"`
	Timestamp string `json:"timestamp"`
	Message   struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
		Usage   struct {
			InputTokens         int `json:"input_tokens"`
			OutputTokens        int `json:"output_tokens"`
			CacheCreationTokens int `json:"cache_creation_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

func (a *ClaudeCodeAdapter) ListSessions(projectPath string) ([]session.Info, error) {
	projects, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, a.root, err)
	}

	var infos []session.Info
	for _, proj := range projects {
		if !proj.IsDir() {
			continue
		}
		dir := filepath.Join(a.root, proj.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".jsonl") {
				continue
			}
			path := filepath.Join(dir, f.Name())
			info, ok := a.summarize(path, strings.TrimSuffix(f.Name(), ".jsonl"))
			if ok {
				infos = append(infos, info)
			}
		}
	}

	infos = filterByProject(infos, projectPath)
	sortInfos(infos)
	return infos, nil
}

// summarize reads enough of one session file to build its listing entry.
func (a *ClaudeCodeAdapter) summarize(path, fallbackID string) (session.Info, bool) {
	f, err := os.Open(path)
	if err != nil {
		return session.Info{}, false
	}
	defer f.Close()

	info := session.Info{ID: fallbackID}
	var count int
	var lastTS *time.Time

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), scannerBuffer)
	for sc.Scan() {
		var line claudeLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			continue
		}
		if line.SessionID != "" && info.ID == fallbackID {
			info.ID = line.SessionID
		}
		if line.CWD != "" && info.ProjectPath == "" {
			info.ProjectPath = line.CWD
		}
		if line.Type != "user" && line.Type != "assistant" {
			continue
		}
		count++
		if ts := ParseTimestamp(line.Timestamp); ts != nil {
			if info.StartedAt == nil {
				info.StartedAt = ts
			}
			lastTS = ts
		}
		if info.Preview == "" && line.Type == "user" {
			if text, _ := StringOrBlocks(line.Message.Content); text != "" && !isSyntheticUserText(text) {
				info.Preview = truncateText(text, 200)
			}
		}
	}
	if count == 0 {
		return session.Info{}, false
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

func (a *ClaudeCodeAdapter) Capture(sessionID string) (*session.Captured, error) {
	path, err := a.sessionPath(sessionID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, path, err)
	}
	defer f.Close()

	rec := newRecorder(registry.ClaudeCode, sessionID)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), scannerBuffer)

	for sc.Scan() {
		var line claudeLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			rec.skipMalformed()
			continue
		}
		rec.setProjectPath(line.CWD)
		ts := ParseTimestamp(line.Timestamp)

		switch line.Type {
		case "user":
			a.captureUser(rec, line, ts)
		case "assistant":
			a.captureAssistant(rec, line, ts)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, path, err)
	}

	return rec.finish()
}

func (a *ClaudeCodeAdapter) captureUser(rec *recorder, line claudeLine, ts *time.Time) {
	text, blocks := StringOrBlocks(line.Message.Content)
	if text != "" {
		if !isSyntheticUserText(text) {
			rec.addMessage("user", text, ts)
		}
		return
	}
	var parts []string
	for _, b := range blocks {
		switch FirstString(b, "type") {
		case "text":
			if t := FirstString(b, "text"); t != "" && !isSyntheticUserText(t) {
				parts = append(parts, t)
			}
		case "tool_result":
			rec.addToolResult("", blockResultText(b), ts)
		}
	}
	if len(parts) > 0 {
		rec.addMessage("user", strings.Join(parts, "\n"), ts)
	}
}

func (a *ClaudeCodeAdapter) captureAssistant(rec *recorder, line claudeLine, ts *time.Time) {
	_, blocks := StringOrBlocks(line.Message.Content)
	var texts []string
	for _, b := range blocks {
		switch FirstString(b, "type") {
		case "text":
			if t := FirstString(b, "text"); t != "" {
				texts = append(texts, t)
			}
		case "thinking":
			rec.addThought(FirstString(b, "thinking", "text"))
		case "tool_use":
			name := FirstString(b, "name")
			args, _ := b["input"].(map[string]any)
			rec.addToolUse(name, args, ts)
		}
	}
	if len(texts) > 0 {
		rec.addMessage("assistant", strings.Join(texts, "\n"), ts)
	}
	usage := line.Message.Usage
	rec.addUsage(usage.InputTokens, usage.OutputTokens, usage.CacheCreationTokens)
}

// sessionPath locates the JSONL file for sessionID across project
// directories.
func (a *ClaudeCodeAdapter) sessionPath(sessionID string) (string, error) {
	projects, err := os.ReadDir(a.root)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	for _, proj := range projects {
		if !proj.IsDir() {
			continue
		}
		candidate := filepath.Join(a.root, proj.Name(), sessionID+".jsonl")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
}

// blockResultText extracts readable text from a tool_result block whose
// content may be a string or nested text blocks.
func blockResultText(b map[string]any) string {
	switch content := b["content"].(type) {
	case string:
		return content
	case []any:
		var parts []string
		for _, item := range content {
			if obj, ok := item.(map[string]any); ok {
				if t := FirstString(obj, "text"); t != "" {
					parts = append(parts, t)
				}
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// isSyntheticUserText filters command wrappers and system reminders that
// appear as user records but carry no conversational content.
func isSyntheticUserText(text string) bool {
	return strings.HasPrefix(text, "<local-command-") ||
		strings.HasPrefix(text, "<command-name>") ||
		strings.Contains(text, "<system-reminder>")
}
