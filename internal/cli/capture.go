package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture a session into a canonical record",
	RunE:  runCapture,
}

func init() {
	captureCmd.Flags().String("source", "", "Agent to capture from")
	captureCmd.Flags().String("session", "", "Session identifier (default: most recent)")
	captureCmd.Flags().String("project", "", "Limit to sessions in this project path")
}

func runCapture(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	sessionID, _ := cmd.Flags().GetString("session")
	project, _ := cmd.Flags().GetString("project")

	captured, err := captureSession(newAdapters(), source, sessionID, project)
	if err != nil {
		return err
	}

	outDir := captured.Project.Path
	if outDir == "" {
		outDir, _ = os.Getwd()
	}
	outPath := filepath.Join(outDir, ".handoff", "session.json")
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fail(exitCapture, err)
	}
	data, err := json.MarshalIndent(captured, "", "  ")
	if err != nil {
		return fail(exitCapture, err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fail(exitCapture, err)
	}

	fmt.Printf("Captured %s session %s\n", captured.Source, captured.SessionID)
	fmt.Printf("  Messages: %d (~%d tokens)\n", captured.Conversation.MessageCount, captured.Conversation.EstimatedTokens)
	fmt.Printf("  Task: %s\n", captured.Task.Description)
	if len(captured.FileChanges) > 0 {
		fmt.Printf("  Files touched: %d\n", len(captured.FileChanges))
	}
	fmt.Printf("  Written to %s\n", outPath)
	return nil
}
