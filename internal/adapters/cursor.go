package adapters

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
)

// CursorAdapter reads Cursor composer sessions. Listing metadata lives in
// per-workspace databases (workspaceStorage/<hash>/state.vscdb, ItemTable
// key "composer.composerData"); full conversations live in the sibling
// global database (globalStorage/state.vscdb, cursorDiskKV keys
// "composerData:<composerId>").
type CursorAdapter struct {
	root     string
	globalDB string
}

// NewCursor builds the adapter against a resolved platform.
func NewCursor(p registry.Platform) *CursorAdapter {
	root := registry.MustLookup(registry.Cursor).StorageRoot(p)
	return &CursorAdapter{
		root:     root,
		globalDB: filepath.Join(filepath.Dir(root), "globalStorage", "state.vscdb"),
	}
}

func (a *CursorAdapter) Agent() registry.Agent { return registry.Cursor }

func (a *CursorAdapter) Detect() bool {
	dirs, err := os.ReadDir(a.root)
	if err != nil {
		return false
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(a.root, d.Name(), "state.vscdb")); err == nil {
			return true
		}
	}
	return false
}

// cursorComposer is one entry of the workspace composer index.
type cursorComposer struct {
	ComposerID    string  `json:"composerId"`
	Name          string  `json:"name"`
	CreatedAt     float64 `json:"createdAt"`
	LastUpdatedAt float64 `json:"lastUpdatedAt"`
}

// cursorComposerData is the conversation blob stored in the global
// database.
type cursorComposerData struct {
	ComposerID   string `json:"composerId"`
	Conversation []struct {
		Type       int    `json:"type"`
		Text       string `json:"text"`
		TimingInfo struct {
			ClientStartTime float64 `json:"clientStartTime"`
		} `json:"timingInfo"`
		ToolFormerData struct {
			Name    string `json:"name"`
			RawArgs string `json:"rawArgs"`
			Result  string `json:"result"`
		} `json:"toolFormerData"`
	} `json:"conversation"`
}

const (
	cursorUserBubble      = 1
	cursorAssistantBubble = 2
)

func (a *CursorAdapter) ListSessions(projectPath string) ([]session.Info, error) {
	dirs, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, a.root, err)
	}

	global := a.openGlobal()
	if global != nil {
		defer global.Close()
	}

	var infos []session.Info
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		composers, err := a.readComposers(d.Name())
		if err != nil {
			continue
		}
		project := a.workspaceFolder(d.Name())
		for _, c := range composers {
			info := session.Info{
				ID:           c.ComposerID,
				ProjectPath:  project,
				StartedAt:    ParseUnixMillis(c.CreatedAt),
				LastActiveAt: ParseUnixMillis(c.LastUpdatedAt),
				Preview:      truncateText(c.Name, 200),
			}
			if global != nil {
				if data, err := readComposerData(global, c.ComposerID); err == nil {
					info.MessageCount = len(data.Conversation)
					if info.Preview == "" {
						for _, b := range data.Conversation {
							if b.Type == cursorUserBubble && b.Text != "" {
								info.Preview = truncateText(b.Text, 200)
								break
							}
						}
					}
				}
			}
			infos = append(infos, info)
		}
	}

	infos = filterByProject(infos, projectPath)
	sortInfos(infos)
	return infos, nil
}

func (a *CursorAdapter) Capture(sessionID string) (*session.Captured, error) {
	global := a.openGlobal()
	if global == nil {
		return nil, fmt.Errorf("%w: %s", ErrParseFailure, a.globalDB)
	}
	defer global.Close()

	data, err := readComposerData(global, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, a.globalDB, err)
	}

	rec := newRecorder(registry.Cursor, sessionID)
	if project := a.projectOf(sessionID); project != "" {
		rec.setProjectPath(project)
	}

	for _, b := range data.Conversation {
		ts := ParseUnixMillis(b.TimingInfo.ClientStartTime)
		switch b.Type {
		case cursorUserBubble:
			if b.Text != "" {
				rec.addMessage("user", b.Text, ts)
			}
		case cursorAssistantBubble:
			if b.Text != "" {
				rec.addMessage("assistant", b.Text, ts)
			}
		}
		if tool := b.ToolFormerData; tool.Name != "" {
			args, _ := ParseJSONObject([]byte(tool.RawArgs))
			rec.addToolUse(tool.Name, args, ts)
			if tool.Result != "" {
				rec.addToolResult(tool.Name, tool.Result, ts)
			}
		}
	}

	return rec.finish()
}

// openGlobal opens the global database read-only; nil when it does not
// exist or cannot be opened.
func (a *CursorAdapter) openGlobal() *sql.DB {
	if _, err := os.Stat(a.globalDB); err != nil {
		return nil
	}
	db, err := sql.Open("sqlite3", "file:"+a.globalDB+"?mode=ro")
	if err != nil {
		return nil
	}
	return db
}

// readComposers loads the composer index from one workspace database.
func (a *CursorAdapter) readComposers(dir string) ([]cursorComposer, error) {
	path := filepath.Join(a.root, dir, "state.vscdb")
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var value []byte
	row := db.QueryRow(`SELECT value FROM ItemTable WHERE key = 'composer.composerData'`)
	if err := row.Scan(&value); err != nil {
		return nil, err
	}
	var index struct {
		AllComposers []cursorComposer `json:"allComposers"`
	}
	if err := json.Unmarshal(value, &index); err != nil {
		return nil, err
	}
	return index.AllComposers, nil
}

func readComposerData(db *sql.DB, composerID string) (*cursorComposerData, error) {
	var value []byte
	row := db.QueryRow(`SELECT value FROM cursorDiskKV WHERE key = ?`, "composerData:"+composerID)
	if err := row.Scan(&value); err != nil {
		return nil, err
	}
	var data cursorComposerData
	if err := json.Unmarshal(value, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// workspaceFolder reads the workspace.json folder URI next to the
// workspace database.
func (a *CursorAdapter) workspaceFolder(dir string) string {
	data, err := os.ReadFile(filepath.Join(a.root, dir, "workspace.json"))
	if err != nil {
		return ""
	}
	var ws struct {
		Folder string `json:"folder"`
	}
	if err := json.Unmarshal(data, &ws); err != nil {
		return ""
	}
	return strings.TrimPrefix(ws.Folder, "file://")
}

// projectOf scans workspace indexes for the composer's owning workspace.
func (a *CursorAdapter) projectOf(composerID string) string {
	dirs, err := os.ReadDir(a.root)
	if err != nil {
		return ""
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		composers, err := a.readComposers(d.Name())
		if err != nil {
			continue
		}
		for _, c := range composers {
			if c.ComposerID == composerID {
				return a.workspaceFolder(d.Name())
			}
		}
	}
	return ""
}
