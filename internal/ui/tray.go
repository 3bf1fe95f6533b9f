// Package ui is the system tray surface of the daemon: a status item that
// follows the indicator, the action menu, and modal notifications.
package ui

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"github.com/user/clawbridge/internal/command"
	"github.com/user/clawbridge/internal/menu"
	"github.com/user/clawbridge/internal/status"
)

// Options configures a Tray.
type Options struct {
	Label   string
	BaseURL string
	Token   string
	// Controller executes the selections made in the tray menu.
	Controller *menu.Controller
	// OnQuit runs once when the user picks Quit.
	OnQuit func()
}

// statusTitle renders a snapshot as one line for the tray status item.
func statusTitle(s status.Snapshot) string {
	var glyph string
	switch s.State {
	case status.StateConnecting, status.StateChecking:
		glyph = "◌"
	case status.StateConnected:
		glyph = "●"
	case status.StateError:
		glyph = "✕"
	default:
		glyph = "○"
	}
	return glyph + " " + s.Text
}

// pairingURL is the embedded pairing page, preselecting app when set.
func pairingURL(base, token string, app command.App) string {
	q := url.Values{}
	if token != "" {
		q.Set("token", token)
	}
	if app != "" {
		q.Set("app", string(app))
	}
	u := strings.TrimRight(base, "/") + "/"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func browserCommand(goos, target string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{target}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}, nil
	case "linux", "freebsd", "openbsd":
		return "xdg-open", []string{target}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

func openBrowser(ctx context.Context, target string) error {
	name, args, err := browserCommand(runtime.GOOS, target)
	if err != nil {
		return err
	}
	return exec.CommandContext(context.WithoutCancel(ctx), name, args...).Start()
}
