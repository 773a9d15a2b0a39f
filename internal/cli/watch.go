package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/braindump-sh/braindump/internal/config"
	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch agent storage for session activity",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().String("agents", "", "Comma-separated agent list (default: all detected)")
	watchCmd.Flags().Int("interval", 0, "Polling interval in seconds")
	watchCmd.Flags().String("project", "", "Limit to sessions in this project path")
	watchCmd.Flags().String("listen", "", "Serve watcher state over HTTP on this address")
}

func runWatch(cmd *cobra.Command, args []string) error {
	agentsCSV, _ := cmd.Flags().GetString("agents")
	intervalSec, _ := cmd.Flags().GetInt("interval")
	project, _ := cmd.Flags().GetString("project")
	listen, _ := cmd.Flags().GetString("listen")

	cfg, _ := config.Load()
	if intervalSec <= 0 {
		intervalSec = cfg.Watch.IntervalSeconds
	}
	if agentsCSV == "" && len(cfg.Watch.Agents) > 0 {
		agentsCSV = strings.Join(cfg.Watch.Agents, ",")
	}

	var agents []registry.Agent
	if agentsCSV != "" {
		for _, name := range strings.Split(agentsCSV, ",") {
			id := registry.Agent(strings.TrimSpace(name))
			if !registry.Valid(string(id)) {
				return failf(exitDetect, "unknown agent %q in --agents", name)
			}
			agents = append(agents, id)
		}
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	w := watch.New(newAdapters())
	err := w.Start(watch.Options{
		Agents:      agents,
		Interval:    time.Duration(intervalSec) * time.Second,
		ProjectPath: project,
		Logger:      logger,
		OnEvent: func(ev watch.Event) {
			switch ev.Type {
			case watch.EventNewSession:
				logger.Info("new session", "agent", ev.Agent, "session", ev.SessionID)
			case watch.EventSessionUpdate:
				logger.Info("session update", "agent", ev.Agent, "session", ev.SessionID, "change", ev.Details)
			case watch.EventRateLimit:
				logger.Warn("possible rate limit", "agent", ev.Agent, "session", ev.SessionID, "details", ev.Details)
			}
		},
	})
	if err != nil {
		return fail(exitDetect, err)
	}
	defer w.Stop()

	if listen != "" {
		server := watch.NewServer(w)
		go func() {
			if err := server.Run(listen); err != nil {
				logger.Error("status server stopped", "error", err)
			}
		}()
		fmt.Printf("Watching; state served on http://%s/state (Ctrl-C to stop)\n", listen)
	} else {
		fmt.Println("Watching for session activity (Ctrl-C to stop)")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\nStopping watcher.")
	return nil
}
