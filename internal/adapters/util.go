package adapters

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"
)

// NormalizeRole maps a source role string onto the closed canonical set.
// Unrecognized roles become assistant as the safe default.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "human":
		return "user"
	case "assistant", "model":
		return "assistant"
	case "system":
		return "system"
	case "tool":
		return "tool"
	default:
		return "assistant"
	}
}

// timestampLayouts are tried in order when normalizing source timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp normalizes a source timestamp string. Returns nil when
// the value is empty or unrecognized.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ParseUnixMillis converts an epoch-milliseconds value to a timestamp.
// Values small enough to be epoch seconds are treated as seconds.
func ParseUnixMillis(v float64) *time.Time {
	if v <= 0 {
		return nil
	}
	ms := int64(v)
	if ms < 1e12 {
		ms *= 1000
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

// pathsEqual compares two filesystem paths after normalizing separators
// to forward slashes, resolving to absolute form, and folding case.
func pathsEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return normalizePath(a) == normalizePath(b)
}

func normalizePath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	p = filepath.ToSlash(filepath.Clean(p))
	return strings.ToLower(strings.TrimSuffix(p, "/"))
}

// FirstString returns the first non-empty string found under any of the
// given keys in a dynamic JSON object.
func FirstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// ToNumber coerces a dynamic JSON value to float64.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ParseJSONObject decodes raw into a dynamic object, tolerating failure.
func ParseJSONObject(raw []byte) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// StringOrBlocks handles content that is either a plain JSON string or an
// array of typed blocks; for the array form each element is returned as a
// dynamic object.
func StringOrBlocks(raw json.RawMessage) (string, []map[string]any) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var blocks []map[string]any
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return "", blocks
	}
	return "", nil
}

// ToolClass maps a source tool name onto the canonical tool classes
// {Edit, Read, Bash, MCP, Tool}.
func ToolClass(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "mcp__") || strings.HasPrefix(lower, "mcp_"):
		return "MCP"
	case strings.Contains(lower, "edit") || strings.Contains(lower, "write") ||
		strings.Contains(lower, "create") || strings.Contains(lower, "patch"):
		return "Edit"
	case strings.Contains(lower, "read") || strings.Contains(lower, "view") ||
		strings.Contains(lower, "open") || strings.Contains(lower, "cat"):
		return "Read"
	case strings.Contains(lower, "bash") || strings.Contains(lower, "shell") ||
		strings.Contains(lower, "exec") || strings.Contains(lower, "terminal") ||
		strings.Contains(lower, "run"):
		return "Bash"
	default:
		return "Tool"
	}
}

// changeTypeFor derives a file-change type from the tool name: created
// for create/write tools, deleted for delete/remove tools, modified
// otherwise.
func changeTypeFor(toolName string) string {
	lower := strings.ToLower(toolName)
	switch {
	case strings.Contains(lower, "create") || strings.Contains(lower, "write"):
		return "created"
	case strings.Contains(lower, "delete") || strings.Contains(lower, "remove"):
		return "deleted"
	default:
		return "modified"
	}
}

// pathFromArgs pulls a file path out of tool arguments, trying the
// argument names the agents actually use.
func pathFromArgs(args map[string]any) string {
	return FirstString(args,
		"file_path", "filePath", "path", "target_file", "file", "notebook_path")
}

// languageFor returns the language tag inferred from a filename
// extension, or "" when the extension is unknown.
func languageFor(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if languageExts[ext] {
		return ext
	}
	return ""
}

var languageExts = map[string]bool{
	"go": true, "ts": true, "tsx": true, "js": true, "jsx": true,
	"py": true, "rs": true, "rb": true, "java": true, "kt": true,
	"c": true, "h": true, "cpp": true, "cs": true, "swift": true,
	"md": true, "json": true, "yaml": true, "yml": true, "toml": true,
	"sh": true, "sql": true, "html": true, "css": true, "vue": true,
}

// compactArgs renders tool arguments as a short single-line JSON string
// for tool messages and activity samples.
func compactArgs(args map[string]any, limit int) string {
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	s := strings.ReplaceAll(string(data), "\n", " ")
	if len(s) > limit {
		s = s[:limit-3] + "..."
	}
	return s
}

// truncateText clamps s to limit runes, collapsing newlines so the result
// stays presentable in summaries.
func truncateText(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
