// Package cli wires the braindump command surface.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/braindump-sh/braindump/internal/adapters"
	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
)

// Exit codes.
const (
	exitOK      = 0
	exitDetect  = 1
	exitList    = 2
	exitCapture = 3
)

var (
	verbose bool
	rootCmd *cobra.Command
)

// exitError carries the process exit code alongside the cause.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func fail(code int, err error) error {
	return &exitError{code: code, err: err}
}

func failf(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "braindump",
		Short: "Capture and hand off in-progress coding agent sessions",
		Long: `braindump reads the on-disk session storage of coding agents
(Claude Code, Cursor, Codex, Copilot, Gemini, OpenCode, Droid), normalizes
the conversation into a canonical record, and produces a compressed resume
document another agent can pick up from.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// Execute runs the root command and returns the process exit code.
func Execute(version string) int {
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(handoffCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(infoCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return exitDetect
	}
	return exitOK
}

// newAdapters builds the adapter set for the current platform.
func newAdapters() map[registry.Agent]adapters.Adapter {
	return adapters.NewAll(registry.DetectPlatform())
}

// resolveSource validates a --source value.
func resolveSource(all map[registry.Agent]adapters.Adapter, source string) (adapters.Adapter, error) {
	if !registry.Valid(source) {
		return nil, failf(exitDetect, "unknown source %q (valid: %v)", source, registry.All())
	}
	return all[registry.Agent(source)], nil
}

// captureSession resolves source/session/project selection to one
// captured record.
func captureSession(all map[registry.Agent]adapters.Adapter, source, sessionID, projectPath string) (*session.Captured, error) {
	if source != "" {
		a, err := resolveSource(all, source)
		if err != nil {
			return nil, err
		}
		if sessionID != "" {
			captured, err := a.Capture(sessionID)
			if err != nil {
				return nil, fail(exitCapture, err)
			}
			return captured, nil
		}
		captured, err := adapters.CaptureLatest(a, projectPath)
		if err != nil {
			return nil, fail(exitCapture, err)
		}
		return captured, nil
	}

	detected := adapters.DetectAll(all)
	if len(detected) == 0 {
		return nil, fail(exitDetect, fmt.Errorf("%w: no agent session storage found; run an agent session first", adapters.ErrNotDetected))
	}

	if sessionID != "" {
		for _, id := range detected {
			if captured, err := all[id].Capture(sessionID); err == nil {
				return captured, nil
			}
		}
		return nil, failf(exitCapture, "session %s not found in any detected agent", sessionID)
	}

	// Pick the most recently active session across agents.
	var best *session.Info
	var bestAgent adapters.Adapter
	for _, id := range detected {
		infos, err := all[id].ListSessions(projectPath)
		if err != nil || len(infos) == 0 {
			continue
		}
		top := infos[0]
		if best == nil || laterThan(top.LastActiveAt, best.LastActiveAt) {
			best = &top
			bestAgent = all[id]
		}
	}
	if best == nil {
		return nil, fail(exitCapture, fmt.Errorf("%w across detected agents", adapters.ErrNoSessions))
	}
	captured, err := bestAgent.Capture(best.ID)
	if err != nil {
		return nil, fail(exitCapture, err)
	}
	return captured, nil
}

// laterThan compares optional timestamps; a missing value never wins.
func laterThan(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}
