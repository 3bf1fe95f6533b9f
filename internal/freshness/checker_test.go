package freshness

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/clawbridge/internal/command"
)

type reply struct {
	stdout string
	stderr string
	err    error
}

type fakeRunner struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []string
	block   chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	r, ok := f.replies[args[0]]
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if !ok {
		return nil, nil, errors.New("unexpected query " + args[0])
	}
	return []byte(r.stdout), []byte(r.stderr), r.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

const listed = `{"version":"","name":"lib","dependencies":{"openclaw":{"version":"2026.1.5","overridden":false}}}`

func TestCheckOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		replies map[string]reply
		want    Result
	}{
		{
			name: "update available",
			replies: map[string]reply{
				"ls":   {stdout: listed},
				"view": {stdout: "2026.2.0\n"},
			},
			want: Result{Outcome: UpdateAvailable, Installed: "2026.1.5", Latest: "2026.2.0"},
		},
		{
			name: "up to date",
			replies: map[string]reply{
				"ls":   {stdout: listed},
				"view": {stdout: "\x1b[33m2026.1.5\x1b[39m\n"},
			},
			want: Result{Outcome: UpToDate, Installed: "2026.1.5", Latest: "2026.1.5"},
		},
		{
			name: "installed newer than published",
			replies: map[string]reply{
				"ls":   {stdout: listed},
				"view": {stdout: "2026.1.5-beta.1"},
			},
			want: Result{Outcome: UpToDate, Installed: "2026.1.5", Latest: "2026.1.5-beta.1"},
		},
		{
			name: "missing entry with warnings and non-zero exit",
			replies: map[string]reply{
				"ls": {
					stdout: `{"name":"lib","dependencies":{}}`,
					stderr: "npm WARN config global `--global`, `--local` are deprecated",
					err:    errors.New("exit status 1"),
				},
				"view": {stdout: "2026.2.0\n"},
			},
			want: Result{Outcome: NotInstalled, Latest: "2026.2.0"},
		},
		{
			name: "no dependencies key at all",
			replies: map[string]reply{
				"ls":   {stdout: `{}`},
				"view": {stdout: "2026.2.0"},
			},
			want: Result{Outcome: NotInstalled, Latest: "2026.2.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(&fakeRunner{replies: tt.replies}, "npm", "openclaw")
			got := c.Check(context.Background())
			if got.Outcome != tt.want.Outcome || got.Installed != tt.want.Installed || got.Latest != tt.want.Latest {
				t.Fatalf("Check() = %+v, want %+v", got, tt.want)
			}
			if got.Package != "openclaw" || got.CheckedAt.IsZero() {
				t.Fatalf("result not stamped: %+v", got)
			}
		})
	}
}

func TestCheckFailsWhenViewFails(t *testing.T) {
	listings := map[string]reply{
		"installed":     {stdout: listed},
		"not installed": {stdout: `{"dependencies":{}}`},
	}
	for name, ls := range listings {
		t.Run(name, func(t *testing.T) {
			runner := &fakeRunner{replies: map[string]reply{
				"ls":   ls,
				"view": {stderr: "npm ERR! code E404", err: errors.New("exit status 1")},
			}}
			c := NewChecker(runner, "npm", "openclaw")
			got := c.Check(context.Background())
			if got.Outcome != CheckFailed {
				t.Fatalf("Check() = %+v, want CheckFailed", got)
			}
			if !strings.Contains(got.Reason, "E404") {
				t.Fatalf("reason should carry stderr, got %q", got.Reason)
			}
			if _, ok := c.Offer(got); ok {
				t.Fatalf("failed check must not offer an install")
			}
		})
	}
}

func TestCheckFailsOnEmptyView(t *testing.T) {
	runner := &fakeRunner{replies: map[string]reply{
		"ls":   {stdout: listed},
		"view": {stdout: "   \n"},
	}}
	got := NewChecker(runner, "npm", "openclaw").Check(context.Background())
	if got.Outcome != CheckFailed {
		t.Fatalf("Check() = %+v, want CheckFailed", got)
	}
}

func TestCheckFailsWhenListingUnusable(t *testing.T) {
	tests := []reply{
		{err: errors.New("exec: \"npm\": executable file not found in $PATH")},
		{stdout: "npm ERR! something", err: errors.New("exit status 1")},
	}
	for _, r := range tests {
		runner := &fakeRunner{replies: map[string]reply{"ls": r}}
		got := NewChecker(runner, "npm", "openclaw").Check(context.Background())
		if got.Outcome != CheckFailed {
			t.Fatalf("Check() = %+v, want CheckFailed", got)
		}
		if runner.callCount() != 1 {
			t.Fatalf("view must not run after a failed listing, calls=%d", runner.callCount())
		}
	}
}

type recordingProgress struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingProgress) Begin(queued bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if queued {
		p.events = append(p.events, "queued")
		return
	}
	p.events = append(p.events, "begin")
}

func (p *recordingProgress) End() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "end")
}

func (p *recordingProgress) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func TestConcurrentChecksAreSerialized(t *testing.T) {
	runner := &fakeRunner{
		replies: map[string]reply{"ls": {stdout: listed}, "view": {stdout: "2026.1.5"}},
		block:   make(chan struct{}),
	}
	progress := &recordingProgress{}
	c := NewChecker(runner, "npm", "openclaw", WithProgress(progress))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Check(context.Background())
	}()
	waitFor(t, func() bool { return runner.callCount() == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if got := c.Check(ctx); got.Outcome != UpToDate {
			t.Errorf("queued check = %+v, cancellation must be ignored", got)
		}
	}()
	waitFor(t, func() bool {
		ev := progress.snapshot()
		return len(ev) == 2 && ev[1] == "queued"
	})
	if runner.callCount() != 1 {
		t.Fatalf("second check started while first was running")
	}

	close(runner.block)
	wg.Wait()

	ev := progress.snapshot()
	want := []string{"begin", "queued", "end", "begin", "end"}
	if strings.Join(ev, ",") != strings.Join(want, ",") {
		t.Fatalf("progress events = %v, want %v", ev, want)
	}
}

func TestOffer(t *testing.T) {
	c := NewChecker(&fakeRunner{}, "", "openclaw")
	inst, ok := c.Offer(Result{Outcome: NotInstalled})
	if !ok || inst.Update || inst.Line("") != "npm install -g openclaw@latest" {
		t.Fatalf("Offer(NotInstalled) = %+v, %v", inst, ok)
	}
	upd, ok := c.Offer(Result{Outcome: UpdateAvailable})
	if !ok || !upd.Update {
		t.Fatalf("Offer(UpdateAvailable) = %+v, %v", upd, ok)
	}
	if _, ok := c.Offer(Result{Outcome: UpToDate}); ok {
		t.Fatal("no offer expected when up to date")
	}
	if _, ok := c.Offer(Result{Outcome: CheckFailed}); ok {
		t.Fatal("no offer expected when the check failed")
	}
	var _ command.Command = upd
}

func TestResultMessage(t *testing.T) {
	r := Result{Outcome: UpdateAvailable, Package: "openclaw", Installed: "1.0.0", Latest: "1.1.0"}
	if got := r.Message(); got != "openclaw 1.1.0 is available (installed 1.0.0)" {
		t.Fatalf("Message() = %q", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
