//go:build darwin || windows

package ui

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/getlantern/systray"
	"github.com/sqweek/dialog"

	"github.com/user/clawbridge/internal/command"
	"github.com/user/clawbridge/internal/menu"
	"github.com/user/clawbridge/internal/status"
)

//go:embed assets/icon.png
var iconData []byte

type Tray struct {
	opts Options

	mu         sync.Mutex
	statusItem *systray.MenuItem
	last       status.Snapshot

	checking atomic.Bool
	quitOnce sync.Once
}

func New(opts Options) *Tray {
	if opts.Label == "" {
		opts.Label = "Claw"
	}
	return &Tray{opts: opts}
}

// Run shows the tray and blocks until Quit is picked or ctx is done. It must
// be called from the main goroutine.
func (t *Tray) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(func() { t.onReady(ctx) }, t.onExit)
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetIcon(iconData)
	if runtime.GOOS == "windows" {
		systray.SetTitle(t.opts.Label)
	}
	systray.SetTooltip("Click to show " + t.opts.Label + " menu")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem(statusTitle(t.last), t.last.Tooltip)
	t.statusItem.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	for _, n := range menu.Tree().Children {
		t.addNode(ctx, nil, n)
	}
	systray.AddSeparator()

	pairingItem := systray.AddMenuItem("Open Pairing Page", "Approve a channel pairing code in the browser")
	quitItem := systray.AddMenuItem("Quit", "Stop clawbridge")

	go func() {
		for {
			select {
			case <-pairingItem.ClickedCh:
				t.openPairing(ctx, "")
			case <-quitItem.ClickedCh:
				slog.Info("quit requested from tray")
				t.quit()
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	slog.Info("system tray ready")
}

func (t *Tray) addNode(ctx context.Context, parent *systray.MenuItem, n menu.Node) {
	var item *systray.MenuItem
	if parent == nil {
		item = systray.AddMenuItem(n.Label, n.Prompt)
	} else {
		item = parent.AddSubMenuItem(n.Label, n.Prompt)
	}
	if !n.IsLeaf() {
		for _, c := range n.Children {
			t.addNode(ctx, item, c)
		}
		return
	}

	sel := n.Leaf
	go func() {
		for {
			select {
			case <-item.ClickedCh:
				go t.execute(ctx, sel)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (t *Tray) execute(ctx context.Context, sel menu.Selection) {
	switch s := sel.(type) {
	case menu.PairPrompt:
		t.openPairing(ctx, s.App)
		return
	case menu.CheckUpdates:
		t.checking.Store(true)
		defer t.checking.Store(false)
	}
	if t.opts.Controller == nil {
		return
	}
	if err := t.opts.Controller.Execute(ctx, sel); err != nil && !errors.Is(err, menu.ErrDismissed) {
		slog.Warn("tray action failed", "error", err)
	}
}

func (t *Tray) openPairing(ctx context.Context, app command.App) {
	if err := openBrowser(ctx, pairingURL(t.opts.BaseURL, t.opts.Token, app)); err != nil {
		slog.Warn("failed to open pairing page", "error", err)
	}
}

// UpdateStatus mirrors the indicator on the status item.
func (t *Tray) UpdateStatus(s status.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = s
	if t.statusItem == nil {
		return
	}
	t.statusItem.SetTitle(statusTitle(s))
	t.statusItem.SetTooltip(s.Tooltip)
	systray.SetTooltip(s.Tooltip)
}

// Notify shows a modal message. Offers raised by a check the tray started
// are left to the menu controller.
func (t *Tray) Notify(level, text string, actions []string) {
	if len(actions) > 0 && t.checking.Load() {
		return
	}
	go func() {
		msg := dialog.Message("%s", text).Title(t.opts.Label)
		if level == "error" {
			msg.Error()
			return
		}
		msg.Info()
	}()
}

// Prompter returns the dialog-backed prompter used by the tray controller.
func Prompter(label string) menu.Prompter {
	return dialogPrompter{title: label}
}

type dialogPrompter struct {
	title string
}

func (p dialogPrompter) Choose(ctx context.Context, title string, options []string) (string, bool, error) {
	if len(options) != 1 {
		return "", false, errors.New("tray prompts offer a single action")
	}
	if !dialog.Message("%s\n\n%s?", title, options[0]).Title(p.title).YesNo() {
		return "", false, nil
	}
	return options[0], true, nil
}

func (p dialogPrompter) Input(ctx context.Context, title, placeholder string) (string, bool, error) {
	return "", false, errors.New("text input is handled by the pairing page")
}

func (p dialogPrompter) Message(ctx context.Context, text string) error {
	dialog.Message("%s", text).Title(p.title).Info()
	return nil
}

func (t *Tray) quit() {
	t.quitOnce.Do(func() {
		if t.opts.OnQuit != nil {
			t.opts.OnQuit()
		}
		systray.Quit()
	})
}

func (t *Tray) onExit() {
	slog.Info("system tray exiting")
}
