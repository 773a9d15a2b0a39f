package analyze

import (
	"strings"
	"testing"

	"github.com/braindump-sh/braindump/internal/session"
)

func msg(role session.Role, content string) session.Message {
	return session.Message{Role: role, Content: content}
}

func TestDescriptionFromFirstUserMessage(t *testing.T) {
	r := Analyze([]session.Message{
		msg(session.RoleAssistant, "How can I help?"),
		msg(session.RoleUser, "Port the importer to the v2 API"),
		msg(session.RoleUser, "also add logging"),
	}, nil)
	if r.Description != "Port the importer to the v2 API" {
		t.Errorf("description = %q", r.Description)
	}
}

func TestDescriptionFallback(t *testing.T) {
	r := Analyze([]session.Message{
		msg(session.RoleAssistant, "Resuming where we left off."),
	}, nil)
	if r.Description != "Unknown task" {
		t.Errorf("description = %q, want Unknown task", r.Description)
	}
}

func TestDescriptionTruncated(t *testing.T) {
	long := strings.Repeat("migrate the billing tables ", 20)
	r := Analyze([]session.Message{msg(session.RoleUser, long)}, nil)
	if len([]rune(r.Description)) > 300 {
		t.Errorf("description = %d runes, want <= 300", len([]rune(r.Description)))
	}
	if !strings.HasSuffix(r.Description, "...") {
		t.Errorf("truncated description should end with ellipsis: %q", r.Description)
	}
}

func TestDecisionAndBlockerExtraction(t *testing.T) {
	r := Analyze([]session.Message{
		msg(session.RoleUser, "Speed up the nightly export job"),
		msg(session.RoleAssistant, "Decided to batch the inserts in groups of 500. The export is blocked by the missing index on created_at."),
	}, nil)
	if len(r.Decisions) != 1 || !strings.Contains(r.Decisions[0], "batch the inserts") {
		t.Errorf("decisions = %v", r.Decisions)
	}
	if len(r.Blockers) != 1 || !strings.Contains(r.Blockers[0], "missing index") {
		t.Errorf("blockers = %v", r.Blockers)
	}
}

func TestCompletedOnlyFromAssistant(t *testing.T) {
	r := Analyze([]session.Message{
		msg(session.RoleUser, "I already implemented the retry wrapper myself"),
		msg(session.RoleAssistant, "Implemented the retry wrapper around the client."),
	}, nil)
	if len(r.Completed) != 1 || !strings.Contains(r.Completed[0], "around the client") {
		t.Errorf("completed = %v, want only the assistant sentence", r.Completed)
	}
}

func TestThoughtsFeedDecisionsOnly(t *testing.T) {
	r := Analyze(
		[]session.Message{msg(session.RoleUser, "Tighten the cache invalidation")},
		[]string{"Going with a write-through cache here. This part cannot land before the schema change."},
	)
	if len(r.Decisions) != 1 {
		t.Errorf("decisions = %v, want the thought decision", r.Decisions)
	}
	if len(r.Blockers) != 0 {
		t.Errorf("blockers = %v, thoughts should not feed blockers", r.Blockers)
	}
}

func TestToolMessagesIgnored(t *testing.T) {
	r := Analyze([]session.Message{
		msg(session.RoleUser, "Clean up the worker shutdown"),
		msg(session.RoleTool, `{"command":"rm -rf build"} cannot proceed, decided to retry`),
	}, nil)
	if len(r.Decisions) != 0 || len(r.Blockers) != 0 {
		t.Errorf("tool content leaked into heuristics: %v %v", r.Decisions, r.Blockers)
	}
}

func TestSentenceSplitting(t *testing.T) {
	got := sentences("Short. This sentence is long enough to keep! tiny\nAnother kept sentence here?")
	want := []string{
		"This sentence is long enough to keep",
		"Another kept sentence here",
	}
	if len(got) != len(want) {
		t.Fatalf("sentences = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDedupAcrossMessages(t *testing.T) {
	r := Analyze([]session.Message{
		msg(session.RoleUser, "Harden the deploy script"),
		msg(session.RoleAssistant, "Decided to pin the base image version."),
		msg(session.RoleAssistant, "Decided to pin the base image version."),
	}, nil)
	if len(r.Decisions) != 1 {
		t.Errorf("decisions = %v, want deduplicated", r.Decisions)
	}
}
