// Package app is the process-wide context: it owns the event loop, the
// session registry and the status indicator, and is the boundary where
// asynchronous failures become user notifications.
//
// Lifecycle: New, then Activate once; Deactivate disposes every session and
// stops the loop. Registry and dispatcher state is only touched from loop
// tasks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/user/clawbridge/internal/command"
	"github.com/user/clawbridge/internal/config"
	"github.com/user/clawbridge/internal/db"
	"github.com/user/clawbridge/internal/freshness"
	"github.com/user/clawbridge/internal/loop"
	"github.com/user/clawbridge/internal/session"
	"github.com/user/clawbridge/internal/status"
)

var (
	ErrNothingToInstall = errors.New("nothing to install")
	ErrNoSession        = errors.New("no live session for role")
	ErrNoHistory        = errors.New("history is not enabled")
)

const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notification is one user-visible message.
type Notification struct {
	Level   string   `json:"level"`
	Text    string   `json:"text"`
	Actions []string `json:"actions,omitempty"`
}

// Progress reports a long-running task. State is "begin" or "end".
type Progress struct {
	Task   string `json:"task"`
	State  string `json:"state"`
	Title  string `json:"title,omitempty"`
	Queued bool   `json:"queued,omitempty"`
}

// OutputSource is implemented by hosts that capture terminal output.
type OutputSource interface {
	Output(id string, lines int) ([]string, error)
}

type App struct {
	loop       *loop.Loop
	host       session.Host
	dispatcher *session.Dispatcher
	indicator  *status.Indicator
	checker    *freshness.Checker
	history    *db.DB
	platform   session.Platform

	// loop-owned
	cfg          *config.Config
	autoTimer    *time.Timer
	active       bool
	checking     int
	checkWaiting int
	preCheck     status.Snapshot
	deactivate   sync.Once

	mu          sync.RWMutex
	notifyFns   []func(Notification)
	sessionFns  []func([]session.Info)
	progressFns []func(Progress)
}

type Option func(*App)

// WithRunner sets how package manager queries are executed.
func WithRunner(r freshness.Runner) Option {
	return func(a *App) {
		a.checker = freshness.NewChecker(r, a.cfg.PackageManager, a.cfg.Package, freshness.WithProgress(checkProgress{a}))
	}
}

// WithHistory records dispatches and checks in database.
func WithHistory(database *db.DB) Option {
	return func(a *App) { a.history = database }
}

// WithPlatform overrides the detected platform.
func WithPlatform(p session.Platform) Option {
	return func(a *App) { a.platform = p }
}

func New(cfg *config.Config, host session.Host, opts ...Option) *App {
	a := &App{
		loop:      loop.New(0),
		host:      host,
		indicator: status.New(cfg.PrimaryLabel()),
		platform:  session.CurrentPlatform(),
		cfg:       cfg,
	}
	a.dispatcher = session.NewDispatcher(session.NewRegistry(), host, cfg.Profile())
	WithRunner(freshness.ExecRunner{})(a)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *App) Indicator() *status.Indicator { return a.indicator }

func (a *App) Checker() *freshness.Checker { return a.checker }

// Activate starts the app. With auto_connect set, a status command is
// dispatched once after auto_connect_delay.
func (a *App) Activate(ctx context.Context) error {
	return a.loop.Do(func() error {
		if a.active {
			return nil
		}
		a.active = true
		slog.Info("activated", "platform", a.platform.OS, "auto_connect", a.cfg.AutoConnect)

		if a.cfg.AutoConnect {
			a.autoTimer = time.AfterFunc(a.cfg.AutoConnectDelay, func() {
				if err := a.Run(context.WithoutCancel(ctx), command.Status{}); err != nil {
					slog.Warn("auto connect failed", "error", err)
				}
			})
		}
		return nil
	})
}

// Deactivate disposes every live session and stops the loop. It is safe to
// call more than once and while a freshness check is still running.
func (a *App) Deactivate() {
	a.deactivate.Do(func() {
		err := a.loop.Do(func() error {
			if a.autoTimer != nil {
				a.autoTimer.Stop()
			}
			a.active = false
			a.dispatcher.DisposeAll()
			return nil
		})
		if err != nil {
			slog.Warn("deactivate", "error", err)
		}
		a.loop.Stop()
		slog.Info("deactivated")
	})
}

// ApplyConfig swaps in a reloaded config. Launch settings apply to sessions
// created afterwards and auto_connect to the next activation.
func (a *App) ApplyConfig(cfg *config.Config) {
	_ = a.loop.Submit(func() {
		a.cfg = cfg
		a.dispatcher.SetProfile(cfg.Profile())
	})
}

// Run dispatches cmd to its role's session. Any failure is also reported as
// an error notification.
func (a *App) Run(ctx context.Context, cmd command.Command) error {
	if cmd == nil {
		return errors.New("no command")
	}
	if inst, ok := cmd.(command.Install); ok {
		if inst.Manager == "" {
			inst.Manager = a.checker.Manager()
		}
		if inst.Package == "" {
			inst.Package = a.checker.Package()
		}
		cmd = inst
	}
	return a.loop.Do(func() error {
		return a.run(ctx, cmd)
	})
}

func (a *App) run(ctx context.Context, cmd command.Command) error {
	line := cmd.Line(a.cfg.CLI)
	_, isStatus := cmd.(command.Status)
	if isStatus {
		a.setState(status.StateConnecting)
	}

	err := a.dispatcher.Dispatch(ctx, cmd.Role(), line, a.platform)
	a.record(ctx, cmd.Role(), line, err)
	a.publishSessions()

	if err != nil {
		slog.Error("dispatch failed", "role", cmd.Role(), "line", line, "error", err)
		a.setState(status.StateIdle)
		a.notify(Notification{Level: LevelError, Text: fmt.Sprintf("Failed to execute %s: %s", line, reason(err))})
		return err
	}

	slog.Info("dispatched", "role", cmd.Role(), "command", cmd.Name())
	if isStatus {
		a.setState(status.StateConnected)
		a.notify(Notification{Level: LevelInfo, Text: a.cfg.PrimaryLabel() + " Status Command Sent"})
	}
	return nil
}

// setState runs on the loop. While a check owns the indicator the change is
// applied to the snapshot the check restores when it ends.
func (a *App) setState(state status.State) {
	snap := a.indicator.Render(state, "")
	if a.checking > 0 {
		a.preCheck = snap
		return
	}
	a.indicator.Restore(snap)
}

func reason(err error) string {
	var de *session.DispatchError
	if errors.As(err, &de) {
		return de.Reason
	}
	return err.Error()
}

// Pair dispatches the pairing approval for app and code.
func (a *App) Pair(ctx context.Context, app, code string) error {
	cmd, err := command.NewPair(app, code)
	if err != nil {
		return err
	}
	return a.Run(ctx, cmd)
}

// HandleClosed is the host's close notification. It may be called from any
// goroutine, any number of times.
func (a *App) HandleClosed(t session.Terminal) {
	err := a.loop.Submit(func() {
		role, ok := a.dispatcher.HandleClosed(t)
		if !ok {
			return
		}
		if role == session.Primary {
			a.setState(status.StateIdle)
		}
		a.publishSessions()
	})
	if err != nil && !errors.Is(err, loop.ErrStopped) {
		slog.Warn("close notification dropped", "terminal", t.ID(), "error", err)
	}
}

// Sessions lists live sessions.
func (a *App) Sessions() ([]session.Info, error) {
	var out []session.Info
	err := a.loop.Do(func() error {
		out = a.dispatcher.Registry().List()
		return nil
	})
	return out, err
}

func (a *App) Status() status.Snapshot {
	return a.indicator.Snapshot()
}

// Output returns the last lines printed by the session bound to role.
func (a *App) Output(role session.Role, lines int) ([]string, error) {
	src, ok := a.host.(OutputSource)
	if !ok {
		return nil, errors.New("terminal output is not captured")
	}
	var id string
	err := a.loop.Do(func() error {
		sess, ok := a.dispatcher.Registry().Get(role)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoSession, role)
		}
		id = sess.Terminal.ID()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return src.Output(id, lines)
}

func (a *App) record(ctx context.Context, role session.Role, line string, err error) {
	if a.history == nil {
		return
	}
	d := &db.Dispatch{Role: string(role), Line: line, Outcome: db.OutcomeSent}
	if err != nil {
		d.Outcome = db.OutcomeFailed
		d.Error = reason(err)
	} else if sess, ok := a.dispatcher.Registry().Get(role); ok {
		d.TerminalID = sess.Terminal.ID()
	}
	if err := a.history.Dispatches.Create(ctx, d); err != nil {
		slog.Warn("failed to record dispatch", "error", err)
	}
}

func (a *App) History(ctx context.Context, filter db.DispatchFilter) ([]*db.Dispatch, error) {
	if a.history == nil {
		return nil, ErrNoHistory
	}
	return a.history.Dispatches.List(ctx, filter)
}

func (a *App) LastCheck(ctx context.Context) (*db.FreshnessCheck, error) {
	if a.history == nil {
		return nil, ErrNoHistory
	}
	return a.history.Checks.Latest(ctx, a.checker.Package())
}

func (a *App) OnNotify(fn func(Notification)) {
	a.mu.Lock()
	a.notifyFns = append(a.notifyFns, fn)
	a.mu.Unlock()
}

func (a *App) OnSessions(fn func([]session.Info)) {
	a.mu.Lock()
	a.sessionFns = append(a.sessionFns, fn)
	a.mu.Unlock()
}

func (a *App) OnProgress(fn func(Progress)) {
	a.mu.Lock()
	a.progressFns = append(a.progressFns, fn)
	a.mu.Unlock()
}

func (a *App) notify(n Notification) {
	a.mu.RLock()
	fns := slices.Clone(a.notifyFns)
	a.mu.RUnlock()
	for _, fn := range fns {
		fn(n)
	}
}

// publishSessions runs on the loop.
func (a *App) publishSessions() {
	list := a.dispatcher.Registry().List()
	a.mu.RLock()
	fns := slices.Clone(a.sessionFns)
	a.mu.RUnlock()
	for _, fn := range fns {
		fn(list)
	}
}

func (a *App) progress(p Progress) {
	a.mu.RLock()
	fns := slices.Clone(a.progressFns)
	a.mu.RUnlock()
	for _, fn := range fns {
		fn(p)
	}
}
