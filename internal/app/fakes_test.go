package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/clawbridge/internal/config"
	"github.com/user/clawbridge/internal/db"
	"github.com/user/clawbridge/internal/session"
)

type fakeTerminal struct {
	id string

	mu       sync.Mutex
	sent     []string
	disposed bool
	sendErr  error
}

func (t *fakeTerminal) ID() string { return t.id }
func (t *fakeTerminal) Show(bool)  {}
func (t *fakeTerminal) SendText(s string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, s)
	return nil
}

func (t *fakeTerminal) Dispose() error {
	t.mu.Lock()
	t.disposed = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTerminal) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

func (t *fakeTerminal) isDisposed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disposed
}

type fakeHost struct {
	mu        sync.Mutex
	specs     []session.LaunchSpec
	terminals []*fakeTerminal
	failWith  error
}

func (h *fakeHost) CreateTerminal(_ context.Context, spec session.LaunchSpec) (session.Terminal, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failWith != nil {
		return nil, h.failWith
	}
	t := &fakeTerminal{id: fmt.Sprintf("term-%d", len(h.terminals)+1)}
	h.specs = append(h.specs, spec)
	h.terminals = append(h.terminals, t)
	return t, nil
}

func (h *fakeHost) Output(id string, n int) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.terminals {
		if t.id == id {
			lines := t.lines()
			if len(lines) > n {
				lines = lines[len(lines)-n:]
			}
			return lines, nil
		}
	}
	return nil, errors.New("not found")
}

func (h *fakeHost) created() []*fakeTerminal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*fakeTerminal(nil), h.terminals...)
}

type reply struct {
	stdout string
	err    error
}

type fakeRunner struct {
	mu      sync.Mutex
	replies map[string]reply
	block   chan struct{}
	calls   int
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls++
	r, ok := f.replies[args[0]]
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if !ok {
		return nil, nil, errors.New("unexpected query " + strings.Join(args, " "))
	}
	return []byte(r.stdout), nil, r.err
}

func testConfig() *config.Config {
	return &config.Config{
		Port:             8766,
		AutoConnectDelay: time.Second,
		CLI:              "openclaw",
		Package:          "openclaw",
		PackageManager:   "npm",
		CompatShell:      "wsl.exe",
		CompatDistro:     "Ubuntu",
		Roles: map[string]config.RoleConfig{
			"primary":   {Label: "Claw", Icon: "hubot", Compat: true},
			"secondary": {Label: "Claw TUI", Icon: "terminal"},
		},
	}
}

type recorder struct {
	mu            sync.Mutex
	notifications []Notification
	progress      []Progress
	sessions      [][]session.Info
}

func (r *recorder) attach(a *App) {
	a.OnNotify(func(n Notification) {
		r.mu.Lock()
		r.notifications = append(r.notifications, n)
		r.mu.Unlock()
	})
	a.OnProgress(func(p Progress) {
		r.mu.Lock()
		r.progress = append(r.progress, p)
		r.mu.Unlock()
	})
	a.OnSessions(func(list []session.Info) {
		r.mu.Lock()
		r.sessions = append(r.sessions, list)
		r.mu.Unlock()
	})
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notifications {
		out = append(out, n.Level+": "+n.Text)
	}
	return out
}

func newTestApp(t *testing.T, cfg *config.Config, host session.Host, opts ...Option) (*App, *recorder) {
	t.Helper()
	a := New(cfg, host, append([]Option{WithPlatform(session.Platform{OS: "linux"})}, opts...)...)
	rec := &recorder{}
	rec.attach(a)
	if err := a.Activate(context.Background()); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	t.Cleanup(a.Deactivate)
	return a, rec
}

func openHistory(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// drain waits for every task queued on the loop so far.
func drain(t *testing.T, a *App) {
	t.Helper()
	if err := a.loop.Do(func() error { return nil }); err != nil {
		t.Fatalf("loop: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
