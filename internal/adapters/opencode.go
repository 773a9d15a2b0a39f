package adapters

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
)

// OpenCodeAdapter reads OpenCode sessions from ~/.local/share/opencode.
// The primary store is opencode.db (tables session, project, message,
// part with JSON data columns); when the database cannot be opened or
// yields no sessions, the storage/ directory tree with equivalent JSON
// documents is consulted instead.
type OpenCodeAdapter struct {
	root string
}

// NewOpenCode builds the adapter against a resolved platform.
func NewOpenCode(p registry.Platform) *OpenCodeAdapter {
	return &OpenCodeAdapter{root: registry.MustLookup(registry.OpenCode).StorageRoot(p)}
}

func (a *OpenCodeAdapter) Agent() registry.Agent { return registry.OpenCode }

func (a *OpenCodeAdapter) Detect() bool {
	if _, err := os.Stat(filepath.Join(a.root, "opencode.db")); err == nil {
		return true
	}
	found := false
	walkJSONFiles(filepath.Join(a.root, "storage", "session"), func(string) bool {
		found = true
		return false
	})
	return found
}

// opencodeSession is the decoded session document, identical between the
// database data column and the storage tree.
type opencodeSession struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectID"`
	Directory string `json:"directory"`
	Title     string `json:"title"`
	Time      struct {
		Created float64 `json:"created"`
		Updated float64 `json:"updated"`
	} `json:"time"`
}

type opencodeMessage struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID"`
	Role      string `json:"role"`
	Time      struct {
		Created float64 `json:"created"`
	} `json:"time"`
	Tokens struct {
		Input  float64 `json:"input"`
		Output float64 `json:"output"`
	} `json:"tokens"`
}

type opencodePart struct {
	ID        string `json:"id"`
	MessageID string `json:"messageID"`
	SessionID string `json:"sessionID"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	Tool      string `json:"tool"`
	State     struct {
		Input  map[string]any `json:"input"`
		Output string         `json:"output"`
	} `json:"state"`
}

// opencodeStore abstracts over the database and directory-tree backends.
type opencodeStore interface {
	sessions() ([]opencodeSession, error)
	messages(sessionID string) ([]opencodeMessage, error)
	parts(sessionID, messageID string) ([]opencodePart, error)
	projectDir(projectID string) string
	close()
}

// openStore tries the database first; open failure or an empty session
// set falls through to the directory tree.
func (a *OpenCodeAdapter) openStore() (opencodeStore, []opencodeSession, error) {
	dbPath := filepath.Join(a.root, "opencode.db")
	if _, err := os.Stat(dbPath); err == nil {
		if db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro"); err == nil {
			store := &opencodeDBStore{db: db}
			sessions, err := store.sessions()
			if err == nil && len(sessions) > 0 {
				return store, sessions, nil
			}
			store.close()
		}
	}

	store := &opencodeTreeStore{root: filepath.Join(a.root, "storage")}
	sessions, err := store.sessions()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, a.root, err)
	}
	return store, sessions, nil
}

func (a *OpenCodeAdapter) ListSessions(projectPath string) ([]session.Info, error) {
	store, sessions, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.close()

	var infos []session.Info
	for _, s := range sessions {
		info := session.Info{
			ID:           s.ID,
			ProjectPath:  a.resolveDir(store, s),
			StartedAt:    ParseUnixMillis(s.Time.Created),
			LastActiveAt: ParseUnixMillis(s.Time.Updated),
			Preview:      truncateText(s.Title, 200),
		}
		if msgs, err := store.messages(s.ID); err == nil {
			info.MessageCount = len(msgs)
		}
		infos = append(infos, info)
	}

	infos = filterByProject(infos, projectPath)
	sortInfos(infos)
	return infos, nil
}

func (a *OpenCodeAdapter) Capture(sessionID string) (*session.Captured, error) {
	store, sessions, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.close()

	var target *opencodeSession
	for i := range sessions {
		if sessions[i].ID == sessionID {
			target = &sessions[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	rec := newRecorder(registry.OpenCode, sessionID)
	rec.setProjectPath(a.resolveDir(store, *target))
	rec.setStartedAt(ParseUnixMillis(target.Time.Created))

	msgs, err := store.messages(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, sessionID, err)
	}
	sortOpencodeMessages(msgs)

	for _, m := range msgs {
		ts := ParseUnixMillis(m.Time.Created)
		role := NormalizeRole(m.Role)

		parts, err := store.parts(sessionID, m.ID)
		if err != nil {
			rec.skipMalformed()
			continue
		}
		var texts []string
		for _, p := range parts {
			switch p.Type {
			case "text":
				if p.Text != "" {
					texts = append(texts, p.Text)
				}
			case "reasoning":
				rec.addThought(p.Text)
			case "tool-invocation":
				rec.addToolUse(p.Tool, p.State.Input, ts)
				if p.State.Output != "" {
					rec.addToolResult(p.Tool, p.State.Output, ts)
				}
			}
		}
		if len(texts) > 0 {
			rec.addMessage(role, strings.Join(texts, "\n"), ts)
		}
		rec.addUsage(int(m.Tokens.Input), int(m.Tokens.Output), 0)
	}

	return rec.finish()
}

// resolveDir prefers the session's own directory, then the owning
// project's worktree.
func (a *OpenCodeAdapter) resolveDir(store opencodeStore, s opencodeSession) string {
	if s.Directory != "" {
		return s.Directory
	}
	return store.projectDir(s.ProjectID)
}

// sortOpencodeMessages orders by creation time, then by identifier for
// records without timestamps.
func sortOpencodeMessages(msgs []opencodeMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Time.Created != msgs[j].Time.Created {
			return msgs[i].Time.Created < msgs[j].Time.Created
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// opencodeDBStore reads the relational store.
type opencodeDBStore struct {
	db *sql.DB
}

func (s *opencodeDBStore) sessions() ([]opencodeSession, error) {
	rows, err := s.db.Query(`SELECT data FROM session`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []opencodeSession
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var sess opencodeSession
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *opencodeDBStore) messages(sessionID string) ([]opencodeMessage, error) {
	rows, err := s.db.Query(`SELECT data FROM message WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []opencodeMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var m opencodeMessage
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *opencodeDBStore) parts(sessionID, messageID string) ([]opencodePart, error) {
	rows, err := s.db.Query(`SELECT data FROM part WHERE session_id = ? AND message_id = ?`, sessionID, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []opencodePart
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p opencodePart
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

func (s *opencodeDBStore) projectDir(projectID string) string {
	if projectID == "" {
		return ""
	}
	var data []byte
	row := s.db.QueryRow(`SELECT data FROM project WHERE id = ?`, projectID)
	if err := row.Scan(&data); err != nil {
		return ""
	}
	var proj struct {
		Worktree string `json:"worktree"`
	}
	if err := json.Unmarshal(data, &proj); err != nil {
		return ""
	}
	return proj.Worktree
}

func (s *opencodeDBStore) close() { s.db.Close() }

// opencodeTreeStore reads the storage/ directory tree: session documents
// anywhere under storage/session, messages under
// storage/message/<sessionID>, parts under
// storage/part/<sessionID>/<messageID>.
type opencodeTreeStore struct {
	root string
}

func (s *opencodeTreeStore) sessions() ([]opencodeSession, error) {
	dir := filepath.Join(s.root, "session")
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	var sessions []opencodeSession
	walkJSONFiles(dir, func(path string) bool {
		var sess opencodeSession
		if readJSONFile(path, &sess) && sess.ID != "" {
			sessions = append(sessions, sess)
		}
		return true
	})
	return sessions, nil
}

func (s *opencodeTreeStore) messages(sessionID string) ([]opencodeMessage, error) {
	var msgs []opencodeMessage
	walkJSONFiles(filepath.Join(s.root, "message", sessionID), func(path string) bool {
		var m opencodeMessage
		if readJSONFile(path, &m) {
			msgs = append(msgs, m)
		}
		return true
	})
	return msgs, nil
}

func (s *opencodeTreeStore) parts(sessionID, messageID string) ([]opencodePart, error) {
	var parts []opencodePart
	walkJSONFiles(filepath.Join(s.root, "part", sessionID, messageID), func(path string) bool {
		var p opencodePart
		if readJSONFile(path, &p) {
			parts = append(parts, p)
		}
		return true
	})
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].ID < parts[j].ID })
	return parts, nil
}

func (s *opencodeTreeStore) projectDir(projectID string) string {
	if projectID == "" {
		return ""
	}
	var worktree string
	walkJSONFiles(filepath.Join(s.root, "project"), func(path string) bool {
		var proj struct {
			ID       string `json:"id"`
			Worktree string `json:"worktree"`
		}
		if readJSONFile(path, &proj) && proj.ID == projectID {
			worktree = proj.Worktree
			return false
		}
		return true
	})
	return worktree
}

func (s *opencodeTreeStore) close() {}

// walkJSONFiles visits every .json file under dir in lexical order; the
// callback returns false to stop early.
func walkJSONFiles(dir string, visit func(path string) bool) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			if !visit(path) {
				return filepath.SkipAll
			}
		}
		return nil
	})
}

func readJSONFile(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}
