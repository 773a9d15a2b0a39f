// Package analyze extracts task state from a normalized message stream
// using lexical heuristics. It never fails; absent signals yield empty
// lists.
package analyze

import (
	"strings"

	"github.com/braindump-sh/braindump/internal/session"
)

// Result holds everything the analyzer could extract.
type Result struct {
	Description string
	Completed   []string
	Decisions   []string
	Blockers    []string
}

const descriptionLimit = 300

var decisionMarkers = []string{
	"decided to",
	"decision:",
	"will use",
	"going with",
	"chose to",
	"approach:",
	"instead of",
}

var blockerMarkers = []string{
	"blocked by",
	"blocked on",
	"waiting on",
	"waiting for",
	"cannot",
	"can't",
	"unable to",
	"fails with",
	"failing with",
	"rate limit",
	"rate-limited",
}

var completedMarkers = []string{
	"done",
	"completed",
	"finished",
	"implemented",
	"created the",
	"wrote the",
	"added the",
	"fixed the",
}

// Analyze runs the heuristics over the ordered message list. Thoughts are
// thinking-block texts adapters pass through separately; they only feed
// the decision heuristic.
func Analyze(messages []session.Message, thoughts []string) Result {
	var r Result

	for _, m := range messages {
		if m.Role == session.RoleUser {
			r.Description = truncate(strings.TrimSpace(m.Content), descriptionLimit)
			break
		}
	}
	if r.Description == "" {
		r.Description = "Unknown task"
	}

	decisions := newDedup()
	blockers := newDedup()
	completed := newDedup()

	for _, m := range messages {
		if m.Role != session.RoleUser && m.Role != session.RoleAssistant {
			continue
		}
		for _, sent := range sentences(m.Content) {
			lower := strings.ToLower(sent)
			if matchesAny(lower, decisionMarkers) {
				decisions.add(sent)
			}
			if matchesAny(lower, blockerMarkers) {
				blockers.add(sent)
			}
			if m.Role == session.RoleAssistant && matchesAny(lower, completedMarkers) {
				completed.add(sent)
			}
		}
	}

	for _, t := range thoughts {
		for _, sent := range sentences(t) {
			if matchesAny(strings.ToLower(sent), decisionMarkers) {
				decisions.add(sent)
			}
		}
	}

	r.Decisions = decisions.items
	r.Blockers = blockers.items
	r.Completed = completed.items
	return r
}

func matchesAny(lower string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// sentences splits text on sentence terminators and newlines, trimming
// and discarding blanks and fragments too short to carry meaning.
func sentences(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		s := strings.TrimSpace(cur.String())
		cur.Reset()
		if len(s) >= 12 {
			out = append(out, truncate(s, 200))
		}
	}
	for _, r := range text {
		switch r {
		case '.', '!', '?', '\n':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

// dedup is an order-preserving set over trimmed strings.
type dedup struct {
	seen  map[string]bool
	items []string
}

func newDedup() *dedup {
	return &dedup{seen: make(map[string]bool)}
}

func (d *dedup) add(s string) {
	s = strings.TrimSpace(s)
	if s == "" || d.seen[s] {
		return
	}
	d.seen[s] = true
	d.items = append(d.items, s)
}
