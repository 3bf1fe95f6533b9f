package session

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var linux = Platform{OS: "linux"}

func newTestDispatcher(host *fakeHost) *Dispatcher {
	return NewDispatcher(NewRegistry(), host, DefaultProfile())
}

func TestDispatchCreatesSessionOnce(t *testing.T) {
	host := &fakeHost{}
	d := newTestDispatcher(host)
	ctx := context.Background()

	if err := d.Dispatch(ctx, Primary, "openclaw status", linux); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if err := d.Dispatch(ctx, Primary, "openclaw dashboard", linux); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}

	if len(host.created) != 1 {
		t.Fatalf("expected 1 terminal created, got %d", len(host.created))
	}
	term := host.created[0]
	if diff := cmp.Diff([]string{"openclaw status", "openclaw dashboard"}, term.sent); diff != "" {
		t.Fatalf("sent lines mismatch (-want +got):\n%s", diff)
	}
	for _, preserve := range term.shows {
		if !preserve {
			t.Fatal("Show must preserve editor focus")
		}
	}
}

func TestDispatchRolesAreIndependent(t *testing.T) {
	host := &fakeHost{}
	d := newTestDispatcher(host)
	ctx := context.Background()

	if err := d.Dispatch(ctx, Primary, "openclaw status", linux); err != nil {
		t.Fatal(err)
	}
	if err := d.Dispatch(ctx, Secondary, "openclaw tui", linux); err != nil {
		t.Fatal(err)
	}
	if len(host.created) != 2 {
		t.Fatalf("expected 2 terminals, got %d", len(host.created))
	}
	if d.Registry().Len() != 2 {
		t.Fatalf("expected 2 live sessions, got %d", d.Registry().Len())
	}
	if host.created[1].spec.Name != "Claw TUI" {
		t.Fatalf("secondary label = %q", host.created[1].spec.Name)
	}
}

func TestCloseThenDispatchCreatesFreshSession(t *testing.T) {
	host := &fakeHost{}
	d := newTestDispatcher(host)
	ctx := context.Background()

	if err := d.Dispatch(ctx, Primary, "openclaw status", linux); err != nil {
		t.Fatal(err)
	}
	first := host.last()

	role, ok := d.HandleClosed(first)
	if !ok || role != Primary {
		t.Fatalf("HandleClosed = %q, %v; want primary, true", role, ok)
	}
	if err := d.Dispatch(ctx, Primary, "openclaw status", linux); err != nil {
		t.Fatal(err)
	}
	if len(host.created) != 2 {
		t.Fatalf("expected a fresh terminal, got %d created", len(host.created))
	}
	if len(first.sent) != 1 {
		t.Fatalf("stale terminal received %d lines, want 1", len(first.sent))
	}
}

func TestHandleClosedIsIdempotent(t *testing.T) {
	host := &fakeHost{}
	d := newTestDispatcher(host)
	if err := d.Dispatch(context.Background(), Primary, "openclaw status", linux); err != nil {
		t.Fatal(err)
	}
	term := host.last()

	if _, ok := d.HandleClosed(term); !ok {
		t.Fatal("first close should clear the role")
	}
	if _, ok := d.HandleClosed(term); ok {
		t.Fatal("duplicate close should be a no-op")
	}
	if _, ok := d.HandleClosed(&fakeTerminal{id: "unrelated"}); ok {
		t.Fatal("unknown terminal should be a no-op")
	}
}

func TestLateCloseOfReplacedTerminalKeepsNewSession(t *testing.T) {
	host := &fakeHost{}
	d := newTestDispatcher(host)
	ctx := context.Background()

	if err := d.Dispatch(ctx, Primary, "a", linux); err != nil {
		t.Fatal(err)
	}
	stale := host.last()
	stale.failSend = true

	if err := d.Dispatch(ctx, Primary, "b", linux); err != nil {
		t.Fatalf("dispatch over stale session: %v", err)
	}
	fresh := host.last()
	if fresh == stale {
		t.Fatal("expected a new terminal after send failure")
	}
	if stale.disposed == 0 {
		t.Fatal("stale terminal should be disposed")
	}

	if _, ok := d.HandleClosed(stale); ok {
		t.Fatal("late close of replaced terminal must not clear the new session")
	}
	sess, ok := d.Registry().Get(Primary)
	if !ok || sess.Terminal != fresh {
		t.Fatal("primary should still be bound to the fresh terminal")
	}
}

func TestDispatchCreationFailureLeavesRoleAbsent(t *testing.T) {
	host := &fakeHost{failErr: errors.New("invalid shell path")}
	d := newTestDispatcher(host)

	err := d.Dispatch(context.Background(), Primary, "openclaw status", linux)
	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("expected DispatchError, got %v", err)
	}
	if de.Role != Primary || de.Reason != "invalid shell path" {
		t.Fatalf("unexpected error payload: %+v", de)
	}
	if _, ok := d.Registry().Get(Primary); ok {
		t.Fatal("failed creation must not register a session")
	}
}

func TestDispatchSendFailureOnFreshTerminalLeavesRoleAbsent(t *testing.T) {
	host := &failingSendHost{}
	d := NewDispatcher(NewRegistry(), host, DefaultProfile())

	err := d.Dispatch(context.Background(), Secondary, "npm install -g openclaw@latest", linux)
	if !IsDispatchError(err) {
		t.Fatalf("expected DispatchError, got %v", err)
	}
	if d.Registry().Len() != 0 {
		t.Fatal("registry should be empty")
	}
	if host.term.disposed != 1 {
		t.Fatalf("terminal disposed %d times, want 1", host.term.disposed)
	}
}

type failingSendHost struct {
	term *fakeTerminal
}

func (h *failingSendHost) CreateTerminal(_ context.Context, spec LaunchSpec) (Terminal, error) {
	h.term = &fakeTerminal{id: "broken", spec: spec, failSend: true}
	return h.term, nil
}

func TestDispatchRejectsBadText(t *testing.T) {
	d := newTestDispatcher(&fakeHost{})
	ctx := context.Background()

	if err := d.Dispatch(ctx, Primary, "   ", linux); !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
	if err := d.Dispatch(ctx, Primary, "echo a\necho b", linux); !errors.Is(err, ErrMultiLine) {
		t.Fatalf("expected ErrMultiLine, got %v", err)
	}
	if err := d.Dispatch(ctx, Role("tertiary"), "x", linux); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestPlatformDecidedAtCreation(t *testing.T) {
	host := &fakeHost{}
	d := newTestDispatcher(host)
	ctx := context.Background()
	windows := Platform{OS: "windows"}

	if err := d.Dispatch(ctx, Primary, "openclaw status", windows); err != nil {
		t.Fatal(err)
	}
	spec := host.last().spec
	if spec.ShellPath != "wsl.exe" {
		t.Fatalf("windows primary shell = %q, want wsl.exe", spec.ShellPath)
	}
	if diff := cmp.Diff([]string{"-d", "Ubuntu"}, spec.ShellArgs); diff != "" {
		t.Fatalf("shell args mismatch (-want +got):\n%s", diff)
	}

	// A later dispatch reporting another platform reuses the live session.
	if err := d.Dispatch(ctx, Primary, "openclaw dashboard", linux); err != nil {
		t.Fatal(err)
	}
	if len(host.created) != 1 {
		t.Fatalf("platform change must not recreate the session, created %d", len(host.created))
	}
	sess, _ := d.Registry().Get(Primary)
	if sess.Launch.ShellPath != "wsl.exe" || sess.Platform.OS != "windows" {
		t.Fatalf("live session launch changed: %+v", sess.Launch)
	}
}

func TestDisposeAll(t *testing.T) {
	host := &fakeHost{}
	d := newTestDispatcher(host)
	ctx := context.Background()
	_ = d.Dispatch(ctx, Primary, "a", linux)
	_ = d.Dispatch(ctx, Secondary, "b", linux)

	d.DisposeAll()
	if d.Registry().Len() != 0 {
		t.Fatal("expected empty registry after DisposeAll")
	}
	for _, term := range host.created {
		if term.disposed != 1 {
			t.Fatalf("terminal %s disposed %d times", term.id, term.disposed)
		}
	}
	d.DisposeAll()
}
