package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/braindump-sh/braindump/internal/adapters"
	"github.com/braindump-sh/braindump/internal/registry"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect which coding agents have session storage on this machine",
	RunE:  runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	all := newAdapters()
	found := adapters.DetectAll(all)
	if len(found) == 0 {
		return failf(exitDetect, "no agent session storage found; run a session in a supported agent first")
	}

	platform := registry.DetectPlatform()
	fmt.Printf("Detected agents (%d):\n\n", len(found))
	for _, id := range found {
		entry := registry.MustLookup(id)
		fmt.Printf("  %-12s %s\n", id, entry.StorageRoot(platform))
	}
	return nil
}
