package adapters

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
)

// CodexAdapter reads Codex CLI rollout files: line-delimited JSON under
// ~/.codex/sessions, nested in date directories, with a session_meta
// record followed by response items.
type CodexAdapter struct {
	root string
}

// NewCodex builds the adapter against a resolved platform.
func NewCodex(p registry.Platform) *CodexAdapter {
	return &CodexAdapter{root: registry.MustLookup(registry.Codex).StorageRoot(p)}
}

func (a *CodexAdapter) Agent() registry.Agent { return registry.Codex }

func (a *CodexAdapter) Detect() bool {
	found := false
	a.walkSessionFiles(func(string) bool {
		found = true
		return false
	})
	return found
}

// walkSessionFiles visits every .jsonl under the root; the callback
// returns false to stop early.
func (a *CodexAdapter) walkSessionFiles(visit func(path string) bool) {
	filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".jsonl") {
			if !visit(path) {
				return filepath.SkipAll
			}
		}
		return nil
	})
}

// codexLine is the subset of a rollout record the adapter consumes.
type codexLine struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Payload   struct {
		Type      string `json:"type"`
		ID        string `json:"id"`
		CWD       string `json:"cwd"`
		Timestamp string `json:"timestamp"`
		Role      string `json:"role"`
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
		Output    string `json:"output"`
		Content   []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Info struct {
			TotalTokenUsage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"total_token_usage"`
		} `json:"info"`
	} `json:"payload"`
}

func (a *CodexAdapter) ListSessions(projectPath string) ([]session.Info, error) {
	if _, err := os.Stat(a.root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, a.root, err)
	}

	var infos []session.Info
	a.walkSessionFiles(func(path string) bool {
		if info, ok := a.summarize(path); ok {
			infos = append(infos, info)
		}
		return true
	})

	infos = filterByProject(infos, projectPath)
	sortInfos(infos)
	return infos, nil
}

func (a *CodexAdapter) summarize(path string) (session.Info, bool) {
	f, err := os.Open(path)
	if err != nil {
		return session.Info{}, false
	}
	defer f.Close()

	var info session.Info
	var count int
	var lastTS *time.Time

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), scannerBuffer)
	for sc.Scan() {
		var line codexLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			continue
		}
		switch {
		case line.Type == "session_meta":
			info.ID = line.Payload.ID
			info.ProjectPath = line.Payload.CWD
			info.StartedAt = ParseTimestamp(line.Payload.Timestamp)
		case line.Type == "response_item" && line.Payload.Type == "message":
			count++
			if ts := ParseTimestamp(line.Timestamp); ts != nil {
				lastTS = ts
			}
			if info.Preview == "" && NormalizeRole(line.Payload.Role) == "user" {
				for _, c := range line.Payload.Content {
					if (c.Type == "input_text" || c.Type == "text") && !isCodexSystemText(c.Text) {
						info.Preview = truncateText(c.Text, 200)
						break
					}
				}
			}
		}
	}
	if info.ID == "" {
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

func (a *CodexAdapter) Capture(sessionID string) (*session.Captured, error) {
	var path string
	a.walkSessionFiles(func(candidate string) bool {
		if id, ok := a.sessionIDOf(candidate); ok && id == sessionID {
			path = candidate
			return false
		}
		return true
	})
	if path == "" {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, path, err)
	}
	defer f.Close()

	rec := newRecorder(registry.Codex, sessionID)
	var lastTool string

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), scannerBuffer)
	for sc.Scan() {
		var line codexLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			rec.skipMalformed()
			continue
		}
		ts := ParseTimestamp(line.Timestamp)

		switch {
		case line.Type == "session_meta":
			rec.setProjectPath(line.Payload.CWD)
			rec.setStartedAt(ParseTimestamp(line.Payload.Timestamp))
		case line.Type == "event_msg" && line.Payload.Type == "token_count":
			usage := line.Payload.Info.TotalTokenUsage
			rec.addUsage(usage.InputTokens, usage.OutputTokens, 0)
		case line.Type != "response_item":
			// ignore other event kinds
		default:
			switch line.Payload.Type {
			case "message":
				role := NormalizeRole(line.Payload.Role)
				var parts []string
				for _, c := range line.Payload.Content {
					if c.Text == "" {
						continue
					}
					if role == "user" && isCodexSystemText(c.Text) {
						continue
					}
					parts = append(parts, c.Text)
				}
				if len(parts) > 0 {
					rec.addMessage(role, strings.Join(parts, "\n"), ts)
				}
			case "reasoning":
				for _, c := range line.Payload.Content {
					rec.addThought(c.Text)
				}
			case "function_call":
				args, _ := ParseJSONObject([]byte(line.Payload.Arguments))
				rec.addToolUse(line.Payload.Name, args, ts)
				lastTool = line.Payload.Name
			case "function_call_output":
				rec.addToolResult(lastTool, line.Payload.Output, ts)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, path, err)
	}

	return rec.finish()
}

// sessionIDOf reads only the session_meta record of a rollout file.
func (a *CodexAdapter) sessionIDOf(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), scannerBuffer)
	for i := 0; i < 5 && sc.Scan(); i++ {
		var line codexLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			continue
		}
		if line.Type == "session_meta" && line.Payload.ID != "" {
			return line.Payload.ID, true
		}
	}
	return "", false
}

func isCodexSystemText(text string) bool {
	return strings.Contains(text, "<environment_context>") ||
		strings.Contains(text, "<user_instructions>")
}
