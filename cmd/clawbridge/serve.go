package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/clawbridge/internal/api"
	"github.com/user/clawbridge/internal/app"
	"github.com/user/clawbridge/internal/command"
	"github.com/user/clawbridge/internal/config"
	"github.com/user/clawbridge/internal/db"
	"github.com/user/clawbridge/internal/hub"
	"github.com/user/clawbridge/internal/menu"
	"github.com/user/clawbridge/internal/pty"
	"github.com/user/clawbridge/internal/server"
	"github.com/user/clawbridge/internal/session"
	"github.com/user/clawbridge/internal/status"
	"github.com/user/clawbridge/internal/ui"
)

var noTray bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon: terminals, tray, websocket hub and REST API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noTray, "no-tray", false, "Run without the system tray")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	h := hub.New(cfg.Token)

	var a *app.App
	host := pty.NewHost(
		pty.OnClose(func(t session.Terminal) { a.HandleClosed(t) }),
		pty.OnOutput(h.BroadcastOutput),
		pty.OnShow(h.BroadcastShow),
	)
	defer host.Close()

	a = app.New(cfg, host, app.WithHistory(database))
	defer a.Deactivate()

	tray := ui.New(ui.Options{
		Label:      cfg.PrimaryLabel(),
		BaseURL:    cfg.BaseURL(),
		Token:      cfg.Token,
		Controller: menu.NewController(ui.Prompter(cfg.PrimaryLabel()), a),
		OnQuit:     stop,
	})
	wire(ctx, a, h, host, tray)

	srv, err := server.New(cfg.Addr(), h, api.NewRouter(a, cfg.Token))
	if err != nil {
		return err
	}

	if err := a.Activate(ctx); err != nil {
		return err
	}

	fmt.Printf("\nclawbridge running at %s/?token=%s\n\n", cfg.BaseURL(), cfg.Token)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error {
		return config.Watch(gctx, cfg.Path, func(next *config.Config) {
			slog.Info("config reloaded", "path", next.Path)
			a.ApplyConfig(next)
		})
	})

	if noTray {
		<-gctx.Done()
	} else {
		tray.Run(gctx)
	}
	stop()
	return g.Wait()
}

type statusTray interface {
	UpdateStatus(status.Snapshot)
	Notify(level, text string, actions []string)
}

// wire connects the app's listeners to the hub and tray, and the hub's
// client messages back to the app and the terminal host.
func wire(ctx context.Context, a *app.App, h *hub.Hub, host *pty.Host, tray statusTray) {
	a.Indicator().Subscribe(func(s status.Snapshot) {
		h.BroadcastStatus(statusMessage(s))
		tray.UpdateStatus(s)
	})
	tray.UpdateStatus(a.Status())
	h.BroadcastStatus(statusMessage(a.Status()))

	a.OnNotify(func(n app.Notification) {
		h.Notify(n.Level, n.Text, n.Actions...)
		tray.Notify(n.Level, n.Text, n.Actions)
	})
	a.OnSessions(func(list []session.Info) {
		h.BroadcastSessions(hubSessions(list))
	})
	a.OnProgress(func(p app.Progress) {
		h.BroadcastProgress(hub.ProgressMessage{Task: p.Task, State: p.State, Title: p.Title, Queued: p.Queued})
	})

	h.SetOnPairing(func(appName, code string) error {
		return a.Pair(ctx, appName, code)
	})
	h.SetOnRun(func(name string, args []string) error {
		c, err := command.Parse(name, args...)
		if err != nil {
			return err
		}
		return a.Run(ctx, c)
	})
	h.SetOnTerminalInput(func(terminalID, keys string) {
		if err := host.SendInput(terminalID, keys); err != nil {
			slog.Warn("terminal input dropped", "terminal", terminalID, "error", err)
		}
	})
	h.SetOnTerminalResize(func(terminalID string, cols, rows int) {
		if err := host.Resize(terminalID, cols, rows); err != nil {
			slog.Warn("terminal resize failed", "terminal", terminalID, "error", err)
		}
	})
}

func statusMessage(s status.Snapshot) hub.StatusMessage {
	return hub.StatusMessage{State: string(s.State), Icon: s.Icon, Text: s.Text, Tooltip: s.Tooltip}
}

func hubSessions(list []session.Info) []hub.SessionInfo {
	out := make([]hub.SessionInfo, 0, len(list))
	for _, info := range list {
		out = append(out, hub.SessionInfo{Role: string(info.Role), TerminalID: info.TerminalID, Label: info.Label})
	}
	return out
}
