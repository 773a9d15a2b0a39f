package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Print a previously written resume document",
	RunE:  runResume,
}

func init() {
	resumeCmd.Flags().String("file", "", "Resume document path (default: .handoff/RESUME.md)")
}

func runResume(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fail(exitCapture, err)
		}
		path = filepath.Join(cwd, ".handoff", "RESUME.md")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return failf(exitCapture, "no resume document at %s; run `braindump handoff` first", path)
		}
		return fail(exitCapture, err)
	}
	fmt.Print(string(data))
	return nil
}
