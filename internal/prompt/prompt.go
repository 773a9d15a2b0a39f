// Package prompt renders packed session layers into a resume document
// for a target agent.
package prompt

import (
	"fmt"
	"strings"

	"github.com/braindump-sh/braindump/internal/compress"
	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
)

// referenceThreshold is the usable-token budget above which a target is
// better served by opening the written document than by pasting it.
const referenceThreshold = 50000

// footers holds per-target closing instructions. Targets without an
// entry get the generic footer.
var footers = map[string]string{
	string(registry.ClaudeCode): "Continue this session in Claude Code. Review the task state above, then pick up the in-progress work.",
	string(registry.Cursor):     "Continue this session in Cursor. Open the files listed above and resume the in-progress work.",
	string(registry.Codex):      "Continue this session in Codex. Review the task state above, then pick up the in-progress work.",
	string(registry.Copilot):    "Continue this session in Copilot CLI. Review the task state above, then pick up the in-progress work.",
	string(registry.Gemini):     "Continue this session in Gemini CLI. Review the task state above, then pick up the in-progress work.",
	string(registry.OpenCode):   "Continue this session in OpenCode. Review the task state above, then pick up the in-progress work.",
	string(registry.Droid):      "Continue this session in Droid. Review the task state above, then pick up the in-progress work.",
}

const genericFooter = "This document describes an interrupted coding session. Review the task state above and continue the work."

// Assemble renders the resume document: a title banner naming the source
// session, each included layer under a second-level heading, and a
// target-keyed footer.
func Assemble(s *session.Captured, packed compress.Result, target string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Session Handoff: %s (%s)\n\n", s.SessionID, s.Source))

	for _, layer := range packed.Included {
		sb.WriteString(fmt.Sprintf("## %s\n\n", layer.Name))
		sb.WriteString(layer.Content)
		sb.WriteString("\n\n")
	}

	sb.WriteString("---\n\n")
	sb.WriteString(footerFor(target))
	sb.WriteString("\n")
	return sb.String()
}

// WantsReference reports whether the target's budget is large enough
// that a reference prompt beats inlining the full document.
func WantsReference(target string) bool {
	return registry.BudgetFor(target) > referenceThreshold
}

// Reference renders the short prompt that points the consumer at the
// written resume document instead of inlining it.
func Reference(s *session.Captured, path, target string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Session Handoff: %s (%s)\n\n", s.SessionID, s.Source))
	sb.WriteString(fmt.Sprintf("The full session context has been written to %s.\n", path))
	sb.WriteString("Read that file first, then continue the work it describes.\n\n")
	sb.WriteString("---\n\n")
	sb.WriteString(footerFor(target))
	sb.WriteString("\n")
	return sb.String()
}

func footerFor(target string) string {
	if f, ok := footers[target]; ok {
		return f
	}
	return genericFooter
}
