package adapters

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
	"github.com/braindump-sh/braindump/internal/testutil"
)

const expressTask = "Set up an Express REST API with a /health endpoint"

func writeClaudeSession(env *testutil.TestEnv, sessionID string) string {
	proj := env.ProjectDir
	lines := []string{
		fmt.Sprintf(`{"type":"user","sessionId":%q,"cwd":%q,"timestamp":"2026-08-01T10:00:00Z","message":{"role":"user","content":%q}}`,
			sessionID, proj, expressTask),
		fmt.Sprintf(`{"type":"assistant","sessionId":%q,"cwd":%q,"timestamp":"2026-08-01T10:00:10Z","message":{"role":"assistant","content":[{"type":"text","text":"I'll scaffold the server first."},{"type":"tool_use","name":"Write","input":{"file_path":"src/index.ts","content":"import express from 'express'"}}],"usage":{"input_tokens":1000,"output_tokens":200}}}`,
			sessionID, proj),
		`{this line is not valid json`,
		fmt.Sprintf(`{"type":"user","sessionId":%q,"timestamp":"2026-08-01T10:00:20Z","message":{"role":"user","content":[{"type":"tool_result","content":"File created successfully"}]}}`,
			sessionID),
		fmt.Sprintf(`{"type":"assistant","sessionId":%q,"timestamp":"2026-08-01T10:00:30Z","message":{"role":"assistant","content":[{"type":"text","text":"Now adding the users route."},{"type":"tool_use","name":"Write","input":{"file_path":"src/routes/users.ts"}}],"usage":{"input_tokens":1000,"output_tokens":200}}}`,
			sessionID),
		fmt.Sprintf(`{"type":"user","sessionId":%q,"timestamp":"2026-08-01T10:00:40Z","message":{"role":"user","content":[{"type":"tool_result","content":"File created successfully"}]}}`,
			sessionID),
		fmt.Sprintf(`{"type":"assistant","sessionId":%q,"timestamp":"2026-08-01T10:00:50Z","message":{"role":"assistant","content":[{"type":"text","text":"Installing dependencies and starting the server."},{"type":"tool_use","name":"Bash","input":{"command":"npm install"}},{"type":"tool_use","name":"Bash","input":{"command":"npm start"}}]}}`,
			sessionID),
	}
	return env.CreateJSONL(
		filepath.Join(".claude", "projects", "-tmp-express-api", sessionID+".jsonl"),
		lines...)
}

func TestClaudeCodeCapture(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	writeClaudeSession(env, "sess-express")

	a := NewClaudeCode(env.Platform)
	if !a.Detect() {
		t.Fatal("Detect() = false with session file present")
	}

	captured, err := a.Capture("sess-express")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if captured.Version != session.SchemaVersion {
		t.Errorf("version = %q, want %q", captured.Version, session.SchemaVersion)
	}
	if captured.Source != string(registry.ClaudeCode) {
		t.Errorf("source = %q", captured.Source)
	}
	if captured.Conversation.MessageCount != 10 {
		t.Errorf("messageCount = %d, want 10", captured.Conversation.MessageCount)
	}
	if captured.Conversation.EstimatedTokens != 2400 {
		t.Errorf("estimatedTokens = %d, want 2400", captured.Conversation.EstimatedTokens)
	}
	if captured.Task.Description != expressTask {
		t.Errorf("task description = %q", captured.Task.Description)
	}
	if captured.Project.Path != env.ProjectDir {
		t.Errorf("project path = %q, want %q", captured.Project.Path, env.ProjectDir)
	}

	if len(captured.FileChanges) != 2 {
		t.Fatalf("fileChanges = %d, want 2", len(captured.FileChanges))
	}
	wantChanges := map[string]bool{"src/index.ts": true, "src/routes/users.ts": true}
	for _, fc := range captured.FileChanges {
		if !wantChanges[fc.Path] {
			t.Errorf("unexpected change path %q", fc.Path)
		}
		if fc.Type != session.ChangeCreated {
			t.Errorf("change %s type = %q, want created", fc.Path, fc.Type)
		}
		if fc.Language != "ts" {
			t.Errorf("change %s language = %q, want ts", fc.Path, fc.Language)
		}
	}

	classes := map[string]int{}
	for _, act := range captured.ToolActivity {
		classes[act.Name] = act.Count
	}
	if classes["Edit"] != 2 {
		t.Errorf("Edit count = %d, want 2", classes["Edit"])
	}
	if classes["Bash"] != 2 {
		t.Errorf("Bash count = %d, want 2", classes["Bash"])
	}
}

func TestClaudeCodeListSessions(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	writeClaudeSession(env, "sess-express")

	a := NewClaudeCode(env.Platform)
	infos, err := a.ListSessions("")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("sessions = %d, want 1", len(infos))
	}
	info := infos[0]
	if info.ID != "sess-express" {
		t.Errorf("id = %q", info.ID)
	}
	if info.MessageCount != 6 {
		t.Errorf("messageCount = %d, want 6", info.MessageCount)
	}
	if info.ProjectPath != env.ProjectDir {
		t.Errorf("projectPath = %q", info.ProjectPath)
	}
	if info.Preview != expressTask {
		t.Errorf("preview = %q", info.Preview)
	}
	if info.LastActiveAt == nil || info.StartedAt == nil {
		t.Fatal("missing timestamps")
	}
	if !info.LastActiveAt.After(*info.StartedAt) {
		t.Error("lastActiveAt should follow startedAt")
	}
}

func TestClaudeCodeListFiltersByProject(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	writeClaudeSession(env, "sess-express")

	a := NewClaudeCode(env.Platform)
	infos, err := a.ListSessions(env.ProjectDir)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("filtered sessions = %d, want 1", len(infos))
	}

	infos, err = a.ListSessions(filepath.Join(env.Home, "elsewhere"))
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("mismatched filter kept %d sessions", len(infos))
	}
}

func TestClaudeCodeSessionNotFound(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	writeClaudeSession(env, "sess-express")

	a := NewClaudeCode(env.Platform)
	_, err := a.Capture("no-such-session")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v, want ErrSessionNotFound", err)
	}
}
