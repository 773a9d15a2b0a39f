package adapters

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
)

// GeminiAdapter reads Gemini CLI chats: one JSON document per session at
// ~/.gemini/tmp/<projectHash>/chats/session-*.json.
type GeminiAdapter struct {
	root string
}

// NewGemini builds the adapter against a resolved platform.
func NewGemini(p registry.Platform) *GeminiAdapter {
	return &GeminiAdapter{root: registry.MustLookup(registry.Gemini).StorageRoot(p)}
}

func (a *GeminiAdapter) Agent() registry.Agent { return registry.Gemini }

func (a *GeminiAdapter) Detect() bool {
	found := false
	a.walkChatFiles(func(string) bool {
		found = true
		return false
	})
	return found
}

func (a *GeminiAdapter) walkChatFiles(visit func(path string) bool) {
	hashes, err := os.ReadDir(a.root)
	if err != nil {
		return
	}
	for _, h := range hashes {
		if !h.IsDir() {
			continue
		}
		chats, err := os.ReadDir(filepath.Join(a.root, h.Name(), "chats"))
		if err != nil {
			continue
		}
		for _, c := range chats {
			name := c.Name()
			if c.IsDir() || !strings.HasPrefix(name, "session-") || !strings.HasSuffix(name, ".json") {
				continue
			}
			if !visit(filepath.Join(a.root, h.Name(), "chats", name)) {
				return
			}
		}
	}
}

// geminiChat is the single-document session format.
type geminiChat struct {
	SessionID   string `json:"sessionId"`
	ProjectPath string `json:"projectPath"`
	StartTime   string `json:"startTime"`
	LastUpdated string `json:"lastUpdated"`
	Messages    []struct {
		Role      string `json:"role"`
		Type      string `json:"type"`
		Content   string `json:"content"`
		Timestamp string `json:"timestamp"`
		Parts     []struct {
			Text string `json:"text"`
		} `json:"parts"`
		Thoughts []struct {
			Subject     string `json:"subject"`
			Description string `json:"description"`
		} `json:"thoughts"`
		ToolCalls []struct {
			Name          string          `json:"name"`
			Args          json.RawMessage `json:"args"`
			ResultDisplay struct {
				FileName string `json:"fileName"`
				FileDiff string `json:"fileDiff"`
				DiffStat struct {
					ModelAddedLines   int `json:"model_added_lines"`
					ModelRemovedLines int `json:"model_removed_lines"`
				} `json:"diffStat"`
			} `json:"resultDisplay"`
		} `json:"toolCalls"`
		Tokens struct {
			Input  int `json:"input"`
			Output int `json:"output"`
		} `json:"tokens"`
	} `json:"messages"`
}

func (a *GeminiAdapter) ListSessions(projectPath string) ([]session.Info, error) {
	if _, err := os.Stat(a.root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, a.root, err)
	}

	var infos []session.Info
	a.walkChatFiles(func(path string) bool {
		chat, err := a.readChat(path)
		if err != nil {
			return true
		}
		info := session.Info{
			ID:           a.chatID(chat, path),
			ProjectPath:  chat.ProjectPath,
			StartedAt:    ParseTimestamp(chat.StartTime),
			LastActiveAt: ParseTimestamp(chat.LastUpdated),
			MessageCount: len(chat.Messages),
		}
		for _, m := range chat.Messages {
			if NormalizeRole(geminiRole(m.Role, m.Type)) == "user" {
				if text := geminiText(m.Content, m.Parts); text != "" {
					info.Preview = truncateText(text, 200)
					break
				}
			}
		}
		if info.LastActiveAt == nil {
			if stat, err := os.Stat(path); err == nil {
				mod := stat.ModTime().UTC()
				info.LastActiveAt = &mod
			}
		}
		infos = append(infos, info)
		return true
	})

	infos = filterByProject(infos, projectPath)
	sortInfos(infos)
	return infos, nil
}

func (a *GeminiAdapter) Capture(sessionID string) (*session.Captured, error) {
	var chat *geminiChat
	a.walkChatFiles(func(candidate string) bool {
		c, err := a.readChat(candidate)
		if err != nil {
			return true
		}
		if a.chatID(c, candidate) == sessionID {
			chat = c
			return false
		}
		return true
	})
	if chat == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	rec := newRecorder(registry.Gemini, sessionID)
	rec.setProjectPath(chat.ProjectPath)
	rec.setStartedAt(ParseTimestamp(chat.StartTime))

	for _, m := range chat.Messages {
		ts := ParseTimestamp(m.Timestamp)
		role := NormalizeRole(geminiRole(m.Role, m.Type))

		if text := geminiText(m.Content, m.Parts); text != "" {
			rec.addMessage(role, text, ts)
		}
		for _, th := range m.Thoughts {
			rec.addThought(strings.TrimSpace(th.Subject + ": " + th.Description))
		}
		for _, tc := range m.ToolCalls {
			args, _ := ParseJSONObject(tc.Args)
			rec.addToolUse(tc.Name, args, ts)

			display := tc.ResultDisplay
			stat := display.DiffStat
			if stat.ModelAddedLines != 0 || stat.ModelRemovedLines != 0 {
				diff := fmt.Sprintf("+%d -%d", stat.ModelAddedLines, stat.ModelRemovedLines)
				target := display.FileName
				if target == "" {
					target = pathFromArgs(args)
				}
				if target != "" {
					rec.upsertFileChange(target, changeTypeFor(tc.Name), diff)
				}
			}
		}
		rec.addUsage(m.Tokens.Input, m.Tokens.Output, 0)
	}

	return rec.finish()
}

func (a *GeminiAdapter) readChat(path string) (*geminiChat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var chat geminiChat
	if err := json.Unmarshal(data, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// chatID prefers the recorded session id, falling back to the filename
// stem.
func (a *GeminiAdapter) chatID(chat *geminiChat, path string) string {
	if chat.SessionID != "" {
		return chat.SessionID
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(strings.TrimPrefix(base, "session-"), ".json")
}

// geminiRole picks whichever of role/type the document carries; the
// normalizer maps "model" onto assistant.
func geminiRole(role, typ string) string {
	if role != "" {
		return role
	}
	if typ == "gemini" {
		return "model"
	}
	return typ
}

func geminiText(content string, parts []struct {
	Text string `json:"text"`
}) string {
	if content != "" {
		return content
	}
	var texts []string
	for _, p := range parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
