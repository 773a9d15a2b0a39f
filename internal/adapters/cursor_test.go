package adapters

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/braindump-sh/braindump/internal/testutil"
)

func createSQLite(t *testing.T, path string, statements ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer db.Close()
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

func writeCursorStores(t *testing.T, env *testutil.TestEnv) {
	wsDir := filepath.Join(env.Home, ".config", "Cursor", "User", "workspaceStorage", "hash01")
	index := `{"allComposers":[{"composerId":"cmp-1","name":"Fix pagination bug","createdAt":1754300000000,"lastUpdatedAt":1754300500000}]}`
	createSQLite(t, filepath.Join(wsDir, "state.vscdb"),
		`CREATE TABLE ItemTable (key TEXT PRIMARY KEY, value BLOB)`,
		fmt.Sprintf(`INSERT INTO ItemTable (key, value) VALUES ('composer.composerData', '%s')`, index),
	)
	env.CreateFile(filepath.Join(wsDir, "workspace.json"),
		fmt.Sprintf(`{"folder": "file://%s"}`, env.ProjectDir))

	blob := `{"composerId":"cmp-1","conversation":[` +
		`{"type":1,"text":"The orders list repeats page one","timingInfo":{"clientStartTime":1754300000000}},` +
		`{"type":2,"text":"The offset is never advanced; fixing the query.","timingInfo":{"clientStartTime":1754300100000},` +
		`"toolFormerData":{"name":"edit_file","rawArgs":"{\"target_file\":\"store/orders.sql\"}","result":"ok"}}]}`
	createSQLite(t,
		filepath.Join(env.Home, ".config", "Cursor", "User", "globalStorage", "state.vscdb"),
		`CREATE TABLE cursorDiskKV (key TEXT PRIMARY KEY, value BLOB)`,
		fmt.Sprintf(`INSERT INTO cursorDiskKV (key, value) VALUES ('composerData:cmp-1', '%s')`, blob),
	)
}

func TestCursorCapture(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	writeCursorStores(t, env)

	a := NewCursor(env.Platform)
	if !a.Detect() {
		t.Fatal("Detect() = false with workspace database present")
	}

	captured, err := a.Capture("cmp-1")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if captured.Conversation.MessageCount != 4 {
		t.Errorf("messageCount = %d, want 4 (user, assistant, tool use, tool result)",
			captured.Conversation.MessageCount)
	}
	if captured.Project.Path != env.ProjectDir {
		t.Errorf("project path = %q, want workspace folder", captured.Project.Path)
	}
	if len(captured.FileChanges) != 1 || captured.FileChanges[0].Path != "store/orders.sql" {
		t.Errorf("fileChanges = %+v", captured.FileChanges)
	}
	if captured.Task.Description != "The orders list repeats page one" {
		t.Errorf("description = %q", captured.Task.Description)
	}
}

func TestCursorListSessions(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	writeCursorStores(t, env)

	a := NewCursor(env.Platform)
	infos, err := a.ListSessions("")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("sessions = %d, want 1", len(infos))
	}
	info := infos[0]
	if info.ID != "cmp-1" {
		t.Errorf("id = %q", info.ID)
	}
	if info.Preview != "Fix pagination bug" {
		t.Errorf("preview = %q", info.Preview)
	}
	if info.MessageCount != 2 {
		t.Errorf("messageCount = %d, want 2 conversation bubbles", info.MessageCount)
	}
	if info.ProjectPath != env.ProjectDir {
		t.Errorf("projectPath = %q", info.ProjectPath)
	}
}

func TestCursorUnknownComposer(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	writeCursorStores(t, env)

	a := NewCursor(env.Platform)
	if _, err := a.Capture("cmp-missing"); err == nil {
		t.Fatal("expected error for unknown composer")
	}
}
