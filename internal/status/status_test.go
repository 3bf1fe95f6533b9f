package status

import "testing"

func TestIndicatorTransitions(t *testing.T) {
	ind := New("Claw")
	if got := ind.Snapshot(); got.State != StateIdle || got.Text != "Claw" || got.Icon != "hubot" {
		t.Fatalf("initial snapshot = %+v", got)
	}

	var seen []State
	ind.Subscribe(func(s Snapshot) { seen = append(seen, s.State) })

	ind.SetConnecting()
	if got := ind.Snapshot(); got.Text != "Connecting..." || got.Tooltip != "Connection in progress" {
		t.Fatalf("connecting snapshot = %+v", got)
	}
	ind.SetConnected()
	if got := ind.Snapshot(); got.Tooltip != "Connected to Claw" {
		t.Fatalf("connected snapshot = %+v", got)
	}
	ind.Restore(ind.Render(StateError, "boom"))
	if got := ind.Snapshot(); got.Tooltip != "boom" {
		t.Fatalf("error snapshot = %+v", got)
	}
	ind.SetIdle()
	if got := ind.Snapshot(); got.Tooltip != "Click to show Claw menu" {
		t.Fatalf("idle snapshot = %+v", got)
	}

	want := []State{StateConnecting, StateConnected, StateError, StateIdle}
	if len(seen) != len(want) {
		t.Fatalf("listener saw %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("listener saw %v, want %v", seen, want)
		}
	}
}

func TestSetCheckingQueued(t *testing.T) {
	ind := New("")
	ind.SetChecking(true)
	got := ind.Snapshot()
	if got.State != StateChecking || got.Tooltip != "Waiting for the running update check" {
		t.Fatalf("queued snapshot = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt should be stamped")
	}
}

func TestRestoreAndSubscribe(t *testing.T) {
	ind := New("Claw")
	var seen []State
	ind.Subscribe(func(s Snapshot) { seen = append(seen, s.State) })

	ind.SetConnected()
	before := ind.Snapshot()
	ind.SetChecking(false)
	ind.Restore(before)

	if got := ind.Snapshot(); got.State != StateConnected || got.Tooltip != "Connected to Claw" {
		t.Errorf("restored snapshot = %+v", got)
	}
	want := []State{StateConnected, StateChecking, StateConnected}
	if len(seen) != len(want) {
		t.Fatalf("listener saw %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("listener saw %v, want %v", seen, want)
		}
	}
}

func TestRenderDoesNotShow(t *testing.T) {
	ind := New("Claw")
	var calls int
	ind.Subscribe(func(Snapshot) { calls++ })

	got := ind.Render(StateError, "spawn failed")
	if got.State != StateError || got.Icon != "error" || got.Tooltip != "spawn failed" {
		t.Fatalf("Render(error) = %+v", got)
	}
	if s := ind.Render(State("bogus"), ""); s.State != StateIdle {
		t.Fatalf("unknown state rendered as %+v, want idle", s)
	}
	if calls != 0 || ind.Snapshot().State != StateIdle {
		t.Fatalf("Render changed the indicator: calls=%d snapshot=%+v", calls, ind.Snapshot())
	}
}
