//go:build !darwin && !windows

package ui

import (
	"context"
	"errors"
	"log/slog"

	"github.com/user/clawbridge/internal/menu"
	"github.com/user/clawbridge/internal/status"
)

// Tray is the headless stand-in used where no system tray is available.
// Status changes and notifications go to the log.
type Tray struct {
	opts Options
}

func New(opts Options) *Tray {
	if opts.Label == "" {
		opts.Label = "Claw"
	}
	return &Tray{opts: opts}
}

func (t *Tray) Run(ctx context.Context) {
	slog.Info("system tray not available, running headless",
		"pairing_page", pairingURL(t.opts.BaseURL, "", ""))
	<-ctx.Done()
}

func (t *Tray) UpdateStatus(s status.Snapshot) {
	slog.Info("status", "line", statusTitle(s), "tooltip", s.Tooltip)
}

func (t *Tray) Notify(level, text string, actions []string) {
	if level == "error" {
		slog.Error("notification", "text", text)
		return
	}
	slog.Info("notification", "text", text, "actions", actions)
}

func Prompter(label string) menu.Prompter {
	return headlessPrompter{}
}

type headlessPrompter struct{}

func (headlessPrompter) Choose(context.Context, string, []string) (string, bool, error) {
	return "", false, errors.New("no tray available")
}

func (headlessPrompter) Input(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("no tray available")
}

func (headlessPrompter) Message(_ context.Context, text string) error {
	slog.Info("notification", "text", text)
	return nil
}
