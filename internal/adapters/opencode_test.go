package adapters

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/braindump-sh/braindump/internal/session"
	"github.com/braindump-sh/braindump/internal/testutil"
)

func writeOpencodeTree(env *testutil.TestEnv) {
	base := filepath.Join(".local", "share", "opencode", "storage")
	env.CreateFile(filepath.Join(base, "session", "ses_01.json"), fmt.Sprintf(`{
  "id": "ses_01",
  "projectID": "prj_01",
  "directory": %q,
  "title": "Wire up the queue consumer",
  "time": {"created": 1754300000000, "updated": 1754300600000}
}`, env.ProjectDir))
	env.CreateFile(filepath.Join(base, "message", "ses_01", "msg_01.json"), `{
  "id": "msg_01", "sessionID": "ses_01", "role": "user",
  "time": {"created": 1754300000000}
}`)
	env.CreateFile(filepath.Join(base, "message", "ses_01", "msg_02.json"), `{
  "id": "msg_02", "sessionID": "ses_01", "role": "assistant",
  "time": {"created": 1754300100000},
  "tokens": {"input": 600, "output": 90}
}`)
	env.CreateFile(filepath.Join(base, "part", "ses_01", "msg_01", "prt_01.json"), `{
  "id": "prt_01", "messageID": "msg_01", "sessionID": "ses_01",
  "type": "text", "text": "Wire up the queue consumer for order events"
}`)
	env.CreateFile(filepath.Join(base, "part", "ses_01", "msg_02", "prt_02.json"), `{
  "id": "prt_02", "messageID": "msg_02", "sessionID": "ses_01",
  "type": "text", "text": "Consumer registered, handling order.created."
}`)
	env.CreateFile(filepath.Join(base, "part", "ses_01", "msg_02", "prt_03.json"), `{
  "id": "prt_03", "messageID": "msg_02", "sessionID": "ses_01",
  "type": "tool-invocation", "tool": "write",
  "state": {"input": {"file_path": "consumer/orders.go"}, "output": "wrote 40 lines"}
}`)
}

func TestOpenCodeTreeFallbackOnCorruptDB(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	env.CreateFile(filepath.Join(".local", "share", "opencode", "opencode.db"),
		"this is not a sqlite database")
	writeOpencodeTree(env)

	a := NewOpenCode(env.Platform)
	if !a.Detect() {
		t.Fatal("Detect() = false")
	}

	captured, err := a.Capture("ses_01")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	var assistantText string
	for _, m := range captured.Conversation.Messages {
		if m.Role == session.RoleAssistant {
			assistantText = m.Content
		}
	}
	if assistantText != "Consumer registered, handling order.created." {
		t.Errorf("assistant text = %q", assistantText)
	}
	if captured.Conversation.EstimatedTokens != 690 {
		t.Errorf("estimatedTokens = %d, want 690", captured.Conversation.EstimatedTokens)
	}
	if len(captured.FileChanges) != 1 || captured.FileChanges[0].Path != "consumer/orders.go" {
		t.Errorf("fileChanges = %+v", captured.FileChanges)
	}
	if captured.Project.Path != env.ProjectDir {
		t.Errorf("project path = %q", captured.Project.Path)
	}
}

func TestOpenCodeTreeListSessions(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	writeOpencodeTree(env)

	a := NewOpenCode(env.Platform)
	infos, err := a.ListSessions("")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("sessions = %d, want 1", len(infos))
	}
	info := infos[0]
	if info.ID != "ses_01" {
		t.Errorf("id = %q", info.ID)
	}
	if info.MessageCount != 2 {
		t.Errorf("messageCount = %d, want 2", info.MessageCount)
	}
	if info.Preview != "Wire up the queue consumer" {
		t.Errorf("preview = %q", info.Preview)
	}
	if info.StartedAt == nil || info.LastActiveAt == nil {
		t.Fatal("missing timestamps")
	}
}

func TestOpenCodeUnknownSession(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	writeOpencodeTree(env)

	a := NewOpenCode(env.Platform)
	if _, err := a.Capture("ses_99"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}
