package watch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/braindump-sh/braindump/internal/registry"
	"github.com/braindump-sh/braindump/internal/session"
)

func TestServerState(t *testing.T) {
	fake := &fakeAdapter{agent: registry.ClaudeCode}
	sink := &eventSink{}
	w := newTestWatcher(fake, sink)
	fake.set(session.Info{ID: "s1", MessageCount: 2})
	w.tick()

	srv := NewServer(w)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	ss, ok := st.ActiveSessions["claude-code:s1"]
	if !ok {
		t.Fatalf("session missing: %+v", st.ActiveSessions)
	}
	if ss.MessageCount != 2 {
		t.Errorf("messageCount = %d, want 2", ss.MessageCount)
	}
}

func TestServerHealthz(t *testing.T) {
	fake := &fakeAdapter{agent: registry.ClaudeCode}
	w := newTestWatcher(fake, &eventSink{})

	srv := NewServer(w)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status  string `json:"status"`
		Running bool   `json:"running"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
	if body.Running {
		t.Error("running = true for a watcher that was never started")
	}
}
