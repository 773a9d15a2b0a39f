package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/braindump-sh/braindump/internal/config"
	"github.com/braindump-sh/braindump/internal/registry"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show supported agents, storage roots, and budgets",
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().Bool("write-config", false, "Write the default global config file and exit")
}

func runInfo(cmd *cobra.Command, args []string) error {
	if write, _ := cmd.Flags().GetBool("write-config"); write {
		path := config.GlobalConfigPath()
		if err := config.WriteDefault(path); err != nil {
			return fail(exitDetect, err)
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	}

	platform := registry.DetectPlatform()
	all := newAdapters()
	cfg, _ := config.Load()

	fmt.Printf("braindump %s (%s/%s)\n\n", rootCmd.Version, runtime.GOOS, runtime.GOARCH)
	fmt.Printf("Config: %s, %s\n", config.GlobalConfigPath(), config.ProjectConfigPath())
	fmt.Printf("Default handoff target: %s\n\n", cfg.DefaultTarget)

	fmt.Println("Agents:")
	for _, id := range registry.All() {
		entry := registry.MustLookup(id)
		status := "not found"
		if a, ok := all[id]; ok && a.Detect() {
			status = "detected"
		}
		fmt.Printf("  %-12s %-10s context %7d  budget %6d  %s\n",
			id, status, entry.ContextWindow, entry.UsableTokens, entry.StorageRoot(platform))
	}
	return nil
}
