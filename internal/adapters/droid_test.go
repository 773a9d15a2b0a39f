package adapters

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/braindump-sh/braindump/internal/testutil"
)

func writeDroidSession(env *testutil.TestEnv, slug, uuid string) {
	proj := env.ProjectDir
	todos := "1. [in_progress] Fix auth bug\\n2. [pending] Add tests\\n3. [completed] Setup project"
	lines := []string{
		fmt.Sprintf(`{"type":"session_start","timestamp":"2026-08-02T09:00:00Z","cwd":%q}`, proj),
		`{"type":"message","timestamp":"2026-08-02T09:00:05Z","message":{"role":"user","content":"The login endpoint returns 500 for valid credentials"}}`,
		`{"type":"message","timestamp":"2026-08-02T09:00:30Z","message":{"role":"assistant","content":[{"type":"text","text":"The session middleware rejects tokens signed with the rotated key."},{"type":"tool_use","name":"Edit","input":{"file_path":"src/auth/middleware.go"}}]},"usage":{"input_tokens":500,"output_tokens":80}}`,
		fmt.Sprintf(`{"type":"todo_state","timestamp":"2026-08-02T09:01:00Z","todos":"%s"}`, todos),
	}
	env.CreateJSONL(filepath.Join(".factory", "sessions", slug, uuid+".jsonl"), lines...)
	env.CreateFile(
		filepath.Join(".factory", "sessions", slug, uuid+".settings.json"),
		fmt.Sprintf(`{"cwd":%q,"title":"auth fix"}`, proj))
}

func TestDroidCaptureTodoState(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	writeDroidSession(env, "myproj", "abc-123")

	a := NewDroid(env.Platform)
	if !a.Detect() {
		t.Fatal("Detect() = false with session file present")
	}

	captured, err := a.Capture("myproj:abc-123")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if captured.Task.InProgress != "Fix auth bug" {
		t.Errorf("inProgress = %q, want %q", captured.Task.InProgress, "Fix auth bug")
	}
	wantRemaining := map[string]bool{"Fix auth bug": false, "Add tests": false}
	for _, r := range captured.Task.Remaining {
		if _, ok := wantRemaining[r]; ok {
			wantRemaining[r] = true
		}
	}
	for item, found := range wantRemaining {
		if !found {
			t.Errorf("remaining missing %q", item)
		}
	}
	var completedSetup bool
	for _, c := range captured.Task.Completed {
		if c == "Setup project" {
			completedSetup = true
		}
	}
	if !completedSetup {
		t.Errorf("completed = %v, want to include %q", captured.Task.Completed, "Setup project")
	}

	if captured.Project.Path != env.ProjectDir {
		t.Errorf("project path = %q", captured.Project.Path)
	}
	if captured.Conversation.EstimatedTokens != 580 {
		t.Errorf("estimatedTokens = %d, want 580", captured.Conversation.EstimatedTokens)
	}
	if len(captured.FileChanges) != 1 || captured.FileChanges[0].Path != "src/auth/middleware.go" {
		t.Errorf("fileChanges = %+v", captured.FileChanges)
	}
}

func TestDroidCompositeID(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	writeDroidSession(env, "myproj", "abc-123")

	a := NewDroid(env.Platform)
	infos, err := a.ListSessions("")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("sessions = %d, want 1", len(infos))
	}
	if infos[0].ID != "myproj:abc-123" {
		t.Errorf("id = %q, want composite slug:uuid", infos[0].ID)
	}

	for _, bad := range []string{"abc-123", "myproj:", ":abc-123"} {
		if _, err := a.Capture(bad); err == nil {
			t.Errorf("Capture(%q) succeeded, want error", bad)
		}
	}
}
