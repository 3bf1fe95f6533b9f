// Package status holds the single process-wide status indicator.
package status

import (
	"sync"
	"time"
)

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateChecking   State = "checking"
	StateError      State = "error"
)

// Snapshot is what a status surface renders.
type Snapshot struct {
	State     State     `json:"state"`
	Icon      string    `json:"icon"`
	Text      string    `json:"text"`
	Tooltip   string    `json:"tooltip"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Indicator is mutated from the event loop and read from anywhere.
type Indicator struct {
	label string

	mu        sync.RWMutex
	current   Snapshot
	listeners []func(Snapshot)
}

// New returns an idle indicator. label is the product name shown next to
// the icon.
func New(label string) *Indicator {
	if label == "" {
		label = "Claw"
	}
	ind := &Indicator{label: label}
	ind.current = ind.idle()
	return ind
}

func (i *Indicator) idle() Snapshot {
	return i.Render(StateIdle, "")
}

// Render builds the snapshot for state without showing it. detail is the
// tooltip of the error state and is ignored otherwise. Checking is rendered
// by SetChecking.
func (i *Indicator) Render(state State, detail string) Snapshot {
	switch state {
	case StateConnecting:
		return Snapshot{
			State:   StateConnecting,
			Icon:    "sync~spin",
			Text:    "Connecting...",
			Tooltip: "Connection in progress",
		}
	case StateConnected:
		return Snapshot{
			State:   StateConnected,
			Icon:    "check",
			Text:    i.label,
			Tooltip: "Connected to " + i.label,
		}
	case StateError:
		return Snapshot{
			State:   StateError,
			Icon:    "error",
			Text:    i.label,
			Tooltip: detail,
		}
	default:
		return Snapshot{
			State:   StateIdle,
			Icon:    "hubot",
			Text:    i.label,
			Tooltip: "Click to show " + i.label + " menu",
		}
	}
}

func (i *Indicator) SetIdle() {
	i.set(i.idle())
}

func (i *Indicator) SetConnecting() {
	i.set(i.Render(StateConnecting, ""))
}

func (i *Indicator) SetConnected() {
	i.set(i.Render(StateConnected, ""))
}

// SetChecking shows a non-cancelable progress state. queued marks a check
// waiting behind one already running.
func (i *Indicator) SetChecking(queued bool) {
	tooltip := "Checking " + i.label + " package version"
	if queued {
		tooltip = "Waiting for the running update check"
	}
	i.set(Snapshot{
		State:   StateChecking,
		Icon:    "sync~spin",
		Text:    "Checking for updates...",
		Tooltip: tooltip,
	})
}

// Restore puts back a snapshot taken earlier, e.g. once a check ends.
func (i *Indicator) Restore(s Snapshot) {
	i.set(s)
}

func (i *Indicator) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.current
}

// Subscribe registers fn for every change. fn runs on the goroutine that
// made the change and must not block.
func (i *Indicator) Subscribe(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	i.mu.Lock()
	i.listeners = append(i.listeners, fn)
	i.mu.Unlock()
}

func (i *Indicator) set(s Snapshot) {
	s.UpdatedAt = time.Now().UTC()

	i.mu.Lock()
	i.current = s
	listeners := make([]func(Snapshot), len(i.listeners))
	copy(listeners, i.listeners)
	i.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}
