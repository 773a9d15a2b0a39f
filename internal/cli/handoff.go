package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/braindump-sh/braindump/internal/clip"
	"github.com/braindump-sh/braindump/internal/compress"
	"github.com/braindump-sh/braindump/internal/config"
	"github.com/braindump-sh/braindump/internal/launch"
	"github.com/braindump-sh/braindump/internal/prompt"
	"github.com/braindump-sh/braindump/internal/registry"
)

var handoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Build a resume document and hand the session to another agent",
	RunE:  runHandoff,
}

func init() {
	handoffCmd.Flags().String("source", "", "Agent to capture from")
	handoffCmd.Flags().String("target", "", "Agent the handoff is for (default: config)")
	handoffCmd.Flags().String("session", "", "Session identifier (default: most recent)")
	handoffCmd.Flags().String("project", "", "Limit to sessions in this project path")
	handoffCmd.Flags().Int("tokens", 0, "Override the target token budget")
	handoffCmd.Flags().Bool("dry-run", false, "Show the layer plan without writing anything")
	handoffCmd.Flags().Bool("no-clipboard", false, "Skip copying the prompt to the clipboard")
	handoffCmd.Flags().Bool("launch", false, "Launch the target agent with the resume prompt")
	handoffCmd.Flags().StringP("output", "o", "", "Resume document path (default: <project>/.handoff/RESUME.md)")
}

func runHandoff(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	target, _ := cmd.Flags().GetString("target")
	sessionID, _ := cmd.Flags().GetString("session")
	project, _ := cmd.Flags().GetString("project")
	tokenOverride, _ := cmd.Flags().GetInt("tokens")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noClipboard, _ := cmd.Flags().GetBool("no-clipboard")
	doLaunch, _ := cmd.Flags().GetBool("launch")
	output, _ := cmd.Flags().GetString("output")

	cfg, _ := config.Load()
	if target == "" {
		target = cfg.DefaultTarget
	}
	if tokenOverride == 0 && cfg.Handoff.Tokens > 0 {
		tokenOverride = cfg.Handoff.Tokens
	}

	captured, err := captureSession(newAdapters(), source, sessionID, project)
	if err != nil {
		return err
	}

	budget := tokenOverride
	if budget <= 0 {
		budget = registry.BudgetFor(target)
	}
	packed := compress.Compress(captured, budget)

	if dryRun {
		fmt.Printf("Handoff plan for %s session %s -> %s (budget %d tokens)\n\n",
			captured.Source, captured.SessionID, target, budget)
		for _, l := range packed.Included {
			fmt.Printf("  include  %-22s %6d tokens\n", l.Name, l.Tokens)
		}
		for _, name := range packed.Dropped {
			fmt.Printf("  drop     %s\n", name)
		}
		fmt.Printf("\n  total %d / %d tokens\n", packed.TotalTokens, budget)
		return nil
	}

	doc := prompt.Assemble(captured, packed, target)

	outPath := output
	if outPath == "" {
		outDir := captured.Project.Path
		if outDir == "" {
			outDir, _ = os.Getwd()
		}
		outPath = filepath.Join(outDir, ".handoff", "RESUME.md")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fail(exitCapture, err)
	}
	if err := os.WriteFile(outPath, []byte(doc), 0644); err != nil {
		return fail(exitCapture, err)
	}

	// Large-context targets work better opening the document than
	// pasting it.
	handed := doc
	if prompt.WantsReference(target) {
		handed = prompt.Reference(captured, outPath, target)
	}

	writeReceipt(filepath.Dir(outPath), handoffReceipt{
		ID:        uuid.NewString(),
		Source:    captured.Source,
		SessionID: captured.SessionID,
		Target:    target,
		Tokens:    packed.TotalTokens,
		Budget:    budget,
		Document:  outPath,
		CreatedAt: time.Now().UTC(),
	})

	fmt.Printf("Resume document written to %s (%d tokens, %d layers",
		outPath, packed.TotalTokens, len(packed.Included))
	if len(packed.Dropped) > 0 {
		fmt.Printf(", dropped %s", strings.Join(packed.Dropped, ", "))
	}
	fmt.Println(")")

	if !noClipboard && cfg.Handoff.Clipboard {
		if err := clip.Copy(handed); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		} else {
			fmt.Println("Prompt copied to clipboard.")
		}
	}

	if doLaunch {
		id := registry.Agent(target)
		if !registry.Valid(string(id)) {
			return failf(exitDetect, "cannot launch unknown target %q", target)
		}
		if err := launch.Run(id, handed, captured.Project.Path); err != nil {
			return fail(exitCapture, err)
		}
	}
	return nil
}

// handoffReceipt records one completed handoff next to the resume
// document.
type handoffReceipt struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	SessionID string    `json:"sessionId"`
	Target    string    `json:"target"`
	Tokens    int       `json:"tokens"`
	Budget    int       `json:"budget"`
	Document  string    `json:"document"`
	CreatedAt time.Time `json:"createdAt"`
}

// writeReceipt is best effort; a handoff is not failed over bookkeeping.
func writeReceipt(dir string, r handoffReceipt) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(dir, "handoff.json"), data, 0644)
}
