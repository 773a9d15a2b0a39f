// Package watch polls agent storage for session activity and emits
// change events.
package watch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/braindump-sh/braindump/internal/adapters"
	"github.com/braindump-sh/braindump/internal/registry"
)

// ErrAlreadyRunning reports a second start without an intervening stop.
var ErrAlreadyRunning = errors.New("watcher already running")

// DefaultInterval is the polling period when options leave it unset.
const DefaultInterval = 30 * time.Second

// stallTicks is how many consecutive unchanged observations of a session
// suggest the agent is stalled, likely on a rate limit.
const stallTicks = 2

// EventType classifies a watcher event.
type EventType string

const (
	EventNewSession    EventType = "new-session"
	EventSessionUpdate EventType = "session-update"
	EventRateLimit     EventType = "rate-limit"
)

// Event is one observed session change.
type Event struct {
	Type      EventType      `json:"type"`
	Agent     registry.Agent `json:"agent"`
	SessionID string         `json:"sessionId"`
	Timestamp time.Time      `json:"timestamp"`
	Details   string         `json:"details,omitempty"`
}

// SessionState is the exported view of one tracked session.
type SessionState struct {
	Agent         registry.Agent `json:"agent"`
	SessionID     string         `json:"sessionId"`
	MessageCount  int            `json:"messageCount"`
	LastCheckedAt time.Time      `json:"lastCheckedAt"`
	LastChangedAt *time.Time     `json:"lastChangedAt,omitempty"`
}

// State is a point-in-time view of the watcher.
type State struct {
	InstanceID     string                  `json:"instanceId"`
	Timestamp      time.Time               `json:"timestamp"`
	Agents         []registry.Agent        `json:"agents"`
	ActiveSessions map[string]SessionState `json:"activeSessions"`
	Running        bool                    `json:"running"`
}

// Options configures a watcher run.
type Options struct {
	// Agents to poll; defaults to every adapter whose Detect returns
	// true.
	Agents []registry.Agent
	// Interval between ticks; defaults to DefaultInterval.
	Interval time.Duration
	// ProjectPath filters sessions to one project when non-empty.
	ProjectPath string
	// OnEvent receives each emitted event; may be nil.
	OnEvent func(Event)
	// Logger receives per-agent tick failures; defaults to the package
	// default logger.
	Logger *log.Logger
}

type sessionKey struct {
	agent registry.Agent
	id    string
}

// entry is the internal per-session tracking record.
type entry struct {
	messageCount   int
	lastCheckedAt  time.Time
	lastChangedAt  *time.Time
	unchangedTicks int
	stallReported  bool
}

// Watcher polls the configured agents on a fixed interval. One watcher
// may be active per process.
type Watcher struct {
	id   string
	all  map[registry.Agent]adapters.Adapter
	opts Options

	mu      sync.Mutex
	running bool
	prev    map[sessionKey]*entry
	stop    chan struct{}
	done    chan struct{}
}

var (
	activeMu sync.Mutex
	active   *Watcher
)

// New builds a watcher over the given adapter set.
func New(all map[registry.Agent]adapters.Adapter) *Watcher {
	return &Watcher{id: uuid.NewString(), all: all, prev: make(map[sessionKey]*entry)}
}

// Start begins polling. It fails with ErrAlreadyRunning when another
// watcher in this process is active.
func (w *Watcher) Start(opts Options) error {
	activeMu.Lock()
	if active != nil {
		activeMu.Unlock()
		return ErrAlreadyRunning
	}
	active = w
	activeMu.Unlock()

	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if len(opts.Agents) == 0 {
		opts.Agents = adapters.DetectAll(w.all)
	}

	w.mu.Lock()
	w.opts = opts
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.run()
	return nil
}

// run drives ticks until stopped. The first tick fires immediately so a
// fresh watcher reports existing sessions without waiting one interval.
func (w *Watcher) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	w.tick()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

// Stop cancels polling. The tick in progress completes before Stop
// returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	done := w.done
	w.mu.Unlock()

	<-done

	activeMu.Lock()
	if active == w {
		active = nil
	}
	activeMu.Unlock()
}

// Running reports whether the watcher is polling.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// GetState returns the current tracked-session view.
func (w *Watcher) GetState() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

// TakeSnapshot scans the watched agents once and returns the resulting
// state. Safe to call whether or not the watcher is running.
func (w *Watcher) TakeSnapshot() State {
	w.tick()
	return w.GetState()
}

func (w *Watcher) stateLocked() State {
	st := State{
		InstanceID:     w.id,
		Timestamp:      time.Now().UTC(),
		Agents:         w.opts.Agents,
		ActiveSessions: make(map[string]SessionState, len(w.prev)),
		Running:        w.running,
	}
	for k, e := range w.prev {
		st.ActiveSessions[string(k.agent)+":"+k.id] = SessionState{
			Agent:         k.agent,
			SessionID:     k.id,
			MessageCount:  e.messageCount,
			LastCheckedAt: e.lastCheckedAt,
			LastChangedAt: e.lastChangedAt,
		}
	}
	return st
}

// tick scans every watched agent serially and diffs against the
// previous snapshot.
func (w *Watcher) tick() {
	w.mu.Lock()
	opts := w.opts
	w.mu.Unlock()
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	now := time.Now().UTC()
	current := make(map[sessionKey]*entry)
	var events []Event

	agents := opts.Agents
	if len(agents) == 0 {
		agents = adapters.DetectAll(w.all)
	}
	for _, id := range agents {
		adapter, ok := w.all[id]
		if !ok {
			continue
		}
		infos, err := adapter.ListSessions(opts.ProjectPath)
		if err != nil {
			opts.Logger.Warn("session scan failed", "agent", id, "error", err)
			continue
		}
		for _, info := range infos {
			k := sessionKey{agent: id, id: info.ID}
			e := &entry{messageCount: info.MessageCount, lastCheckedAt: now}
			current[k] = e

			w.mu.Lock()
			prev, seen := w.prev[k]
			w.mu.Unlock()

			switch {
			case !seen:
				e.lastChangedAt = &now
				events = append(events, Event{Type: EventNewSession, Agent: id, SessionID: info.ID, Timestamp: now})
			case info.MessageCount > prev.messageCount:
				e.lastChangedAt = &now
				events = append(events, Event{Type: EventSessionUpdate, Agent: id, SessionID: info.ID, Timestamp: now,
					Details: fmt.Sprintf("%d -> %d messages", prev.messageCount, info.MessageCount)})
			default:
				e.lastChangedAt = prev.lastChangedAt
				e.unchangedTicks = prev.unchangedTicks + 1
				e.stallReported = prev.stallReported
				if e.unchangedTicks >= stallTicks && !e.stallReported {
					e.stallReported = true
					events = append(events, Event{Type: EventRateLimit, Agent: id, SessionID: info.ID, Timestamp: now,
						Details: "no new messages across consecutive checks; the agent may be rate-limited"})
				}
			}
		}
	}

	w.mu.Lock()
	w.prev = current
	w.mu.Unlock()

	if opts.OnEvent != nil {
		for _, ev := range events {
			opts.OnEvent(ev)
		}
	}
}
