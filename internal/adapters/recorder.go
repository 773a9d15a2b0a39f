package adapters

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/braindump-sh/braindump/internal/analyze"
	"github.com/braindump-sh/braindump/internal/enrich"
	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
	"github.com/braindump-sh/braindump/internal/tokens"
)

const (
	inProgressLimit = 200
	sampleLimit     = 3
	sampleChars     = 120
	toolMsgChars    = 500
)

// recorder implements the capture protocol shared by every adapter: it
// accumulates normalized messages, tool activity, file changes, and token
// usage while the adapter streams its primary artifact, then assembles
// and validates the canonical record.
type recorder struct {
	agent       registry.Agent
	sessionID   string
	projectPath string

	messages  []session.Message
	startedAt *time.Time

	changeOrder []string
	changes     map[string]session.FileChange

	toolOrder []string
	tools     map[string]*session.ToolActivity

	thoughts      []string
	usageTokens   int
	lastAssistant string
	skipped       int

	todoCompleted  []string
	todoRemaining  []string
	todoInProgress string
}

func newRecorder(agent registry.Agent, sessionID string) *recorder {
	return &recorder{
		agent:     agent,
		sessionID: sessionID,
		changes:   make(map[string]session.FileChange),
		tools:     make(map[string]*session.ToolActivity),
	}
}

func (r *recorder) setProjectPath(path string) {
	if r.projectPath == "" && path != "" {
		r.projectPath = path
	}
}

func (r *recorder) setStartedAt(ts *time.Time) {
	if r.startedAt == nil && ts != nil {
		r.startedAt = ts
	}
}

// skipMalformed counts a record the adapter could not decode. Malformed
// records are skipped silently at default verbosity.
func (r *recorder) skipMalformed() {
	r.skipped++
}

// addMessage appends one normalized message, tracking the first event
// timestamp and the last assistant text.
func (r *recorder) addMessage(role, content string, ts *time.Time) {
	norm := session.Role(NormalizeRole(role))
	r.setStartedAt(ts)
	if norm == session.RoleAssistant && strings.TrimSpace(content) != "" {
		r.lastAssistant = content
	}
	r.messages = append(r.messages, session.Message{
		Role:      norm,
		Content:   content,
		Timestamp: ts,
	})
}

// addThought records thinking-block text passed to the analyzer's
// decision heuristic without entering the message stream.
func (r *recorder) addThought(text string) {
	if strings.TrimSpace(text) != "" {
		r.thoughts = append(r.thoughts, text)
	}
}

// addToolUse appends a tool message carrying the serialized arguments,
// records a tool-activity sample, and upserts a file change when the
// arguments name a path.
func (r *recorder) addToolUse(name string, args map[string]any, ts *time.Time) {
	r.setStartedAt(ts)
	serialized := compactArgs(args, toolMsgChars)
	r.messages = append(r.messages, session.Message{
		Role:      session.RoleTool,
		Content:   serialized,
		ToolName:  name,
		Timestamp: ts,
	})
	r.recordToolSample(name, serialized)
	if path := pathFromArgs(args); path != "" {
		r.upsertFileChange(path, changeTypeFor(name), "")
	}
}

// addToolResult appends the tool-result message that follows a tool use.
func (r *recorder) addToolResult(toolName, content string, ts *time.Time) {
	r.messages = append(r.messages, session.Message{
		Role:      session.RoleTool,
		Content:   truncateText(content, toolMsgChars),
		ToolName:  toolName,
		Timestamp: ts,
	})
}

func (r *recorder) recordToolSample(name, sample string) {
	class := ToolClass(name)
	act, ok := r.tools[class]
	if !ok {
		act = &session.ToolActivity{Name: class}
		r.tools[class] = act
		r.toolOrder = append(r.toolOrder, class)
	}
	act.Count++
	if len(act.Samples) < sampleLimit && sample != "" {
		act.Samples = append(act.Samples, truncateText(name+" "+sample, sampleChars))
	}
}

// upsertFileChange keys changes by path, last write wins.
func (r *recorder) upsertFileChange(path, changeType, diff string) {
	fc, exists := r.changes[path]
	if !exists {
		r.changeOrder = append(r.changeOrder, path)
		fc = session.FileChange{Path: path, Language: languageFor(path)}
	}
	fc.Type = session.ChangeType(changeType)
	if diff != "" {
		fc.Diff = diff
	}
	r.changes[path] = fc
}

// resetTodos clears todo state so a later snapshot replaces an earlier
// one wholesale.
func (r *recorder) resetTodos() {
	r.todoCompleted = nil
	r.todoRemaining = nil
	r.todoInProgress = ""
}

// addTodo folds one structured todo item into the task block. Statuses
// completed/done count as finished; in_progress items join the remaining
// list and the first one becomes the in-progress description.
func (r *recorder) addTodo(status, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "done":
		r.todoCompleted = append(r.todoCompleted, text)
	case "in_progress", "in-progress":
		if r.todoInProgress == "" {
			r.todoInProgress = text
		}
		r.todoRemaining = append(r.todoRemaining, text)
	case "pending":
		r.todoRemaining = append(r.todoRemaining, text)
	}
}

// addUsage accumulates token usage from a per-message or global usage
// block (input + output + optional cache creation).
func (r *recorder) addUsage(input, output, cacheCreation int) {
	r.usageTokens += input + output + cacheCreation
}

// finish assembles the canonical record: enrichment, analysis, dedup,
// and schema validation.
func (r *recorder) finish() (*session.Captured, error) {
	projectPath := r.projectPath
	if projectPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			projectPath = cwd
		}
	}

	var memoryFiles []string
	if entry, ok := registry.Lookup(r.agent); ok {
		memoryFiles = entry.MemoryFiles
	}
	project := enrich.Project(projectPath, memoryFiles)

	result := analyze.Analyze(r.messages, r.thoughts)

	estimated := r.usageTokens
	if estimated == 0 {
		for _, m := range r.messages {
			estimated += tokens.Estimate(m.Content)
		}
	}

	changes := make([]session.FileChange, 0, len(r.changeOrder))
	for _, path := range r.changeOrder {
		changes = append(changes, r.changes[path])
	}

	activity := make([]session.ToolActivity, 0, len(r.toolOrder))
	for _, class := range r.toolOrder {
		activity = append(activity, *r.tools[class])
	}

	task := session.Task{
		Description: result.Description,
		Completed:   dedupStrings(append(result.Completed, r.todoCompleted...)),
		Remaining:   dedupStrings(r.todoRemaining),
		Blockers:    dedupStrings(result.Blockers),
	}
	switch {
	case r.todoInProgress != "":
		task.InProgress = truncateText(r.todoInProgress, inProgressLimit)
	case r.lastAssistant != "":
		task.InProgress = truncateText(r.lastAssistant, inProgressLimit)
	}

	captured := &session.Captured{
		Version:          session.SchemaVersion,
		Source:           string(r.agent),
		CapturedAt:       time.Now().UTC(),
		SessionID:        r.sessionID,
		SessionStartedAt: r.startedAt,
		Project:          project,
		Conversation: session.Conversation{
			MessageCount:    len(r.messages),
			EstimatedTokens: estimated,
			Messages:        r.messages,
		},
		FileChanges:  changes,
		Decisions:    dedupStrings(result.Decisions),
		Blockers:     dedupStrings(result.Blockers),
		Task:         task,
		ToolActivity: activity,
	}

	if err := session.Validate(captured); err != nil {
		return nil, fmt.Errorf("capture %s/%s: %w", r.agent, r.sessionID, err)
	}
	return captured, nil
}

// dedupStrings removes duplicates by trimmed text, preserving first
// occurrence order and discarding blanks.
func dedupStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
