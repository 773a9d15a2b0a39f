package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/braindump-sh/braindump/internal/adapters"
	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discoverable sessions across agents",
	RunE:  runList,
}

func init() {
	listCmd.Flags().String("source", "", "Limit to one agent")
	listCmd.Flags().String("project", "", "Limit to sessions in this project path")
	listCmd.Flags().Bool("json", false, "Emit a JSON array")
	listCmd.Flags().Bool("jsonl", false, "Emit one JSON object per line")
}

// listedSession is one listing row, tagged with its owning agent.
type listedSession struct {
	Agent registry.Agent `json:"agent"`
	session.Info
}

func runList(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	project, _ := cmd.Flags().GetString("project")
	asJSON, _ := cmd.Flags().GetBool("json")
	asJSONL, _ := cmd.Flags().GetBool("jsonl")

	all := newAdapters()
	var agents []registry.Agent
	if source != "" {
		if _, err := resolveSource(all, source); err != nil {
			return err
		}
		agents = []registry.Agent{registry.Agent(source)}
	} else {
		agents = adapters.DetectAll(all)
		if len(agents) == 0 {
			return failf(exitDetect, "no agent session storage found")
		}
	}

	var rows []listedSession
	for _, id := range agents {
		infos, err := all[id].ListSessions(project)
		if err != nil {
			if source != "" {
				return fail(exitList, err)
			}
			continue
		}
		for _, info := range infos {
			rows = append(rows, listedSession{Agent: id, Info: info})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return laterThan(rows[i].LastActiveAt, rows[j].LastActiveAt)
	})

	switch {
	case asJSONL:
		enc := json.NewEncoder(os.Stdout)
		for _, r := range rows {
			if err := enc.Encode(r); err != nil {
				return fail(exitList, err)
			}
		}
	case asJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return fail(exitList, err)
		}
	default:
		if len(rows) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}
		fmt.Printf("Sessions (%d):\n\n", len(rows))
		for _, r := range rows {
			fmt.Printf("  %-12s %-40s %4d msgs  %-19s %s\n",
				r.Agent, r.ID, r.MessageCount, formatTime(r.LastActiveAt), r.Preview)
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
