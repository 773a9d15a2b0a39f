package compress

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/braindump-sh/braindump/internal/session"
)

func sampleSession() *session.Captured {
	now := time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)
	msgs := make([]session.Message, 0, 30)
	for i := 0; i < 30; i++ {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		msgs = append(msgs, session.Message{
			Role:    role,
			Content: fmt.Sprintf("message %d with enough text to register some tokens", i),
		})
	}
	return &session.Captured{
		Version:    session.SchemaVersion,
		Source:     "claude-code",
		CapturedAt: now,
		SessionID:  "sess-compress",
		Project: session.Project{
			Name:      "orders",
			Path:      "/home/dev/orders",
			GitBranch: "main",
			Tree:      "cmd/\ninternal/\ngo.mod",
		},
		Conversation: session.Conversation{
			MessageCount:    len(msgs),
			EstimatedTokens: 5000,
			Messages:        msgs,
		},
		FileChanges: []session.FileChange{
			{Path: "internal/api/server.go", Type: session.ChangeModified, Language: "go"},
		},
		Decisions: []string{"Use pgx instead of database/sql"},
		Blockers:  []string{"Staging credentials expired"},
		Task: session.Task{
			Description: "Add pagination to the orders endpoint",
			InProgress:  "Wiring the cursor parameter through the repository",
			Completed:   []string{"Added limit parameter"},
			Remaining:   []string{"Wire cursor parameter", "Update API docs"},
		},
		ToolActivity: []session.ToolActivity{
			{Name: "Edit", Count: 4, Samples: []string{"Edit {\"file_path\":\"internal/api/server.go\"}"}},
		},
	}
}

func layerNames(res Result) []string { return res.IncludedNames() }

func TestBuildLayersCoversAll(t *testing.T) {
	layers := BuildLayers(sampleSession())
	if len(layers) != 8 {
		t.Fatalf("layers = %d, want 8", len(layers))
	}
	want := []string{
		LayerTaskState, LayerActiveFiles, LayerDecisions, LayerProjectContext,
		LayerToolActivity, LayerSessionOverview, LayerRecentMessages, LayerFullHistory,
	}
	for i, l := range layers {
		if l.Name != want[i] {
			t.Errorf("layer %d = %q, want %q", i, l.Name, want[i])
		}
		if l.Tokens <= 0 {
			t.Errorf("layer %q has no token estimate", l.Name)
		}
	}
}

func TestPackZeroBudgetKeepsCriticalLayers(t *testing.T) {
	res := Compress(sampleSession(), 0)
	want := []string{LayerTaskState, LayerActiveFiles, LayerDecisions}
	got := layerNames(res)
	if len(got) != len(want) {
		t.Fatalf("included = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("included[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(res.Dropped) != 5 {
		t.Errorf("dropped = %v, want the 5 optional layers", res.Dropped)
	}
}

func TestPackLargeBudgetKeepsEverything(t *testing.T) {
	res := Compress(sampleSession(), 1<<20)
	if len(res.Included) != 8 {
		t.Errorf("included = %v", layerNames(res))
	}
	if len(res.Dropped) != 0 {
		t.Errorf("dropped = %v, want none", res.Dropped)
	}
}

func TestPackDropIsMonotonic(t *testing.T) {
	s := sampleSession()
	prev := map[string]bool{}
	for i, budget := range []int{200, 600, 2000, 1 << 20} {
		res := Compress(s, budget)
		got := map[string]bool{}
		for _, name := range layerNames(res) {
			got[name] = true
		}
		if i > 0 {
			for name := range prev {
				if !got[name] {
					t.Errorf("budget %d lost layer %q kept at a smaller budget", budget, name)
				}
			}
		}
		prev = got
	}
}

func TestPackDropsSuffixAfterOverflow(t *testing.T) {
	layers := []Layer{
		{Name: "A", Priority: 1, Tokens: 10},
		{Name: "B", Priority: 4, Tokens: 10},
		{Name: "C", Priority: 5, Tokens: 1000},
		{Name: "D", Priority: 6, Tokens: 1},
	}
	res := Pack(layers, 25)
	got := layerNames(res)
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("included = %v, want [A B]", got)
	}
	// D fits the remaining budget but packs after the first overflow.
	if len(res.Dropped) != 2 || res.Dropped[0] != "C" || res.Dropped[1] != "D" {
		t.Errorf("dropped = %v, want [C D]", res.Dropped)
	}
}

func TestSplitMessagesWindow(t *testing.T) {
	s := sampleSession()
	recent, older := splitMessages(s.Conversation.Messages)
	if len(recent) != recentMessageWindow {
		t.Errorf("recent = %d, want %d", len(recent), recentMessageWindow)
	}
	if len(older) != 10 {
		t.Errorf("older = %d, want 10", len(older))
	}
	if !strings.Contains(recent[len(recent)-1].Content, "message 29") {
		t.Errorf("recent window should end at the last message, got %q", recent[len(recent)-1].Content)
	}

	few := s.Conversation.Messages[:5]
	recent, older = splitMessages(few)
	if len(recent) != 5 || older != nil {
		t.Errorf("short history split = %d/%d, want 5/0", len(recent), len(older))
	}
}

func TestRenderTaskState(t *testing.T) {
	content := renderTaskState(sampleSession())
	for _, want := range []string{
		"Task: Add pagination to the orders endpoint",
		"In progress: Wiring the cursor parameter",
		"Completed:",
		"- Added limit parameter",
		"Remaining:",
		"- Wire cursor parameter",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("task state missing %q:\n%s", want, content)
		}
	}
}

func TestRenderActiveFilesEmpty(t *testing.T) {
	if got := renderActiveFiles(nil); got != "No file changes recorded." {
		t.Errorf("empty render = %q", got)
	}
	got := renderActiveFiles([]session.FileChange{
		{Path: "a.go", Type: session.ChangeCreated, Language: "go", Diff: "+5 -0"},
	})
	if !strings.Contains(got, "a.go (created, +5 -0) [go]") {
		t.Errorf("render = %q", got)
	}
}
