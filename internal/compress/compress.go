// Package compress folds a captured session into prioritized content
// layers and packs them under a token budget.
package compress

import (
	"fmt"
	"sort"
	"strings"

	"github.com/braindump-sh/braindump/internal/session"
	"github.com/braindump-sh/braindump/internal/tokens"
)

// Layer names, in priority order.
const (
	LayerTaskState       = "TASK STATE"
	LayerActiveFiles     = "ACTIVE FILES"
	LayerDecisions       = "DECISIONS & BLOCKERS"
	LayerProjectContext  = "PROJECT CONTEXT"
	LayerToolActivity    = "TOOL ACTIVITY"
	LayerSessionOverview = "SESSION OVERVIEW"
	LayerRecentMessages  = "RECENT MESSAGES"
	LayerFullHistory     = "FULL HISTORY"
)

// alwaysIncludedBelow marks the priority boundary under which layers are
// emitted regardless of budget.
const alwaysIncludedBelow = 3.5

// recentMessageWindow is how many trailing messages the recent layer
// carries; older messages move to the full-history layer.
const recentMessageWindow = 20

// Layer is one prioritized slice of session context. Lower priority
// packs first.
type Layer struct {
	Name     string
	Priority float64
	Content  string
	Tokens   int
}

// Result is the outcome of packing layers under a budget.
type Result struct {
	Included    []Layer
	Dropped     []string
	TotalTokens int
	Budget      int
}

// IncludedNames lists the packed layer names in emission order.
func (r Result) IncludedNames() []string {
	names := make([]string, len(r.Included))
	for i, l := range r.Included {
		names[i] = l.Name
	}
	return names
}

// Compress builds all layers for s and packs them under budget tokens.
func Compress(s *session.Captured, budget int) Result {
	return Pack(BuildLayers(s), budget)
}

// BuildLayers renders every layer for s, priority ascending. Layers are
// always built even when empty so packing stays deterministic.
func BuildLayers(s *session.Captured) []Layer {
	recent, older := splitMessages(s.Conversation.Messages)
	layers := []Layer{
		newLayer(LayerTaskState, 1, renderTaskState(s)),
		newLayer(LayerActiveFiles, 2, renderActiveFiles(s.FileChanges)),
		newLayer(LayerDecisions, 3, renderDecisions(s)),
		newLayer(LayerProjectContext, 4, renderProject(s.Project)),
		newLayer(LayerToolActivity, 4.5, renderToolActivity(s.ToolActivity)),
		newLayer(LayerSessionOverview, 5, renderOverview(s)),
		newLayer(LayerRecentMessages, 6, renderMessages(recent, 500)),
		newLayer(LayerFullHistory, 7, renderMessages(older, 200)),
	}
	return layers
}

// Pack sorts layers by priority and fits them to the budget. Priorities
// up to the always-included boundary are emitted unconditionally; beyond
// it, a layer that would overflow is dropped along with every
// lower-priority layer.
func Pack(layers []Layer, budget int) Result {
	sorted := make([]Layer, len(layers))
	copy(sorted, layers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	res := Result{Budget: budget}
	overflowed := false
	for _, l := range sorted {
		if l.Priority < alwaysIncludedBelow {
			res.Included = append(res.Included, l)
			res.TotalTokens += l.Tokens
			continue
		}
		if overflowed || res.TotalTokens+l.Tokens > budget {
			overflowed = true
			res.Dropped = append(res.Dropped, l.Name)
			continue
		}
		res.Included = append(res.Included, l)
		res.TotalTokens += l.Tokens
	}
	return res
}

func newLayer(name string, priority float64, content string) Layer {
	return Layer{Name: name, Priority: priority, Content: content, Tokens: tokens.Estimate(content)}
}

func splitMessages(msgs []session.Message) (recent, older []session.Message) {
	if len(msgs) <= recentMessageWindow {
		return msgs, nil
	}
	cut := len(msgs) - recentMessageWindow
	return msgs[cut:], msgs[:cut]
}

func renderTaskState(s *session.Captured) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Task: %s\n", s.Task.Description))
	if s.Task.InProgress != "" {
		sb.WriteString(fmt.Sprintf("\nIn progress: %s\n", s.Task.InProgress))
	}
	writeList(&sb, "Completed", s.Task.Completed)
	writeList(&sb, "Remaining", s.Task.Remaining)
	writeList(&sb, "Blockers", s.Task.Blockers)
	return strings.TrimRight(sb.String(), "\n")
}

func renderActiveFiles(changes []session.FileChange) string {
	if len(changes) == 0 {
		return "No file changes recorded."
	}
	var sb strings.Builder
	for _, c := range changes {
		sb.WriteString(fmt.Sprintf("- %s (%s", c.Path, c.Type))
		if c.Diff != "" {
			sb.WriteString(", " + c.Diff)
		}
		sb.WriteString(")")
		if c.Language != "" {
			sb.WriteString(" [" + c.Language + "]")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderDecisions(s *session.Captured) string {
	var sb strings.Builder
	writeList(&sb, "Decisions", s.Decisions)
	writeList(&sb, "Blockers", s.Blockers)
	if sb.Len() == 0 {
		return "No decisions or blockers recorded."
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderProject(p session.Project) string {
	var sb strings.Builder
	if p.Name != "" {
		sb.WriteString(fmt.Sprintf("Project: %s\n", p.Name))
	}
	if p.Path != "" {
		sb.WriteString(fmt.Sprintf("Path: %s\n", p.Path))
	}
	if p.GitBranch != "" {
		sb.WriteString(fmt.Sprintf("Branch: %s\n", p.GitBranch))
	}
	if p.GitStatus != "" {
		sb.WriteString(fmt.Sprintf("\nGit status:\n%s\n", p.GitStatus))
	}
	if len(p.GitLog) > 0 {
		sb.WriteString("\nRecent commits:\n")
		for _, line := range p.GitLog {
			sb.WriteString("- " + line + "\n")
		}
	}
	if p.Tree != "" {
		sb.WriteString(fmt.Sprintf("\nStructure:\n%s\n", p.Tree))
	}
	if p.MemoryFiles != "" {
		sb.WriteString(fmt.Sprintf("\nMemory files:\n%s\n", p.MemoryFiles))
	}
	if sb.Len() == 0 {
		return "No project context available."
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderToolActivity(activity []session.ToolActivity) string {
	if len(activity) == 0 {
		return "No tool activity recorded."
	}
	var sb strings.Builder
	for _, a := range activity {
		sb.WriteString(fmt.Sprintf("- %s x%d\n", a.Name, a.Count))
		for _, sample := range a.Samples {
			sb.WriteString("  - " + sample + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderOverview(s *session.Captured) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Source: %s\n", s.Source))
	sb.WriteString(fmt.Sprintf("Session: %s\n", s.SessionID))
	if s.SessionStartedAt != nil {
		sb.WriteString(fmt.Sprintf("Started: %s\n", s.SessionStartedAt.Format("2006-01-02 15:04 MST")))
	}
	sb.WriteString(fmt.Sprintf("Messages: %d\n", s.Conversation.MessageCount))
	sb.WriteString(fmt.Sprintf("Estimated tokens: %d", s.Conversation.EstimatedTokens))
	return sb.String()
}

func renderMessages(msgs []session.Message, limit int) string {
	if len(msgs) == 0 {
		return "None."
	}
	var sb strings.Builder
	for _, m := range msgs {
		content := m.Content
		if len(content) > limit {
			content = content[:limit] + "..."
		}
		label := string(m.Role)
		if m.ToolName != "" {
			label += ":" + m.ToolName
		}
		sb.WriteString(fmt.Sprintf("[%s] %s\n", label, content))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n" + heading + ":\n")
	for _, item := range items {
		sb.WriteString("- " + item + "\n")
	}
}
