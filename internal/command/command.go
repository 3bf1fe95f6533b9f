// Package command models the logical commands clawbridge can send to the
// wrapped CLI as a closed set of variants.
package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/kballard/go-shellquote"

	"github.com/user/clawbridge/internal/session"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidApp     = errors.New("invalid pairing app")
	ErrInvalidCode    = errors.New("invalid pairing code")
	ErrInvalidAction  = errors.New("invalid gateway action")
)

// Command is one of Status, Dashboard, Onboard, Gateway, Pair, TUI or
// Install. The unexported method keeps the set closed.
type Command interface {
	// Name is the stable identifier used in logs, history and the API.
	Name() string
	// Role is the session the command is dispatched to.
	Role() session.Role
	// Line renders the shell line, using cli as the executable name.
	Line(cli string) string

	command()
}

type Status struct{}

type Dashboard struct{}

type Onboard struct{}

// TUI opens the CLI's own terminal interface in the secondary session.
type TUI struct{}

type GatewayAction string

const (
	GatewayRun     GatewayAction = "run"
	GatewayStatus  GatewayAction = "status"
	GatewayStart   GatewayAction = "start"
	GatewayStop    GatewayAction = "stop"
	GatewayRestart GatewayAction = "restart"
)

var GatewayActions = []GatewayAction{GatewayRun, GatewayStatus, GatewayStart, GatewayStop, GatewayRestart}

type Gateway struct {
	Action GatewayAction
}

// Pair approves a pending pairing request for a messaging app.
type Pair struct {
	App  App
	Code string
}

// Install installs or updates the CLI package through the package manager.
type Install struct {
	Manager string
	Package string
	Update  bool
}

func (Status) Name() string    { return "status" }
func (Dashboard) Name() string { return "dashboard" }
func (Onboard) Name() string   { return "onboard" }
func (TUI) Name() string       { return "tui" }
func (g Gateway) Name() string { return "gateway " + string(g.action()) }
func (Pair) Name() string      { return "pairing" }
func (i Install) Name() string {
	if i.Update {
		return "update"
	}
	return "install"
}

func (Status) Role() session.Role    { return session.Primary }
func (Dashboard) Role() session.Role { return session.Primary }
func (Onboard) Role() session.Role   { return session.Primary }
func (Gateway) Role() session.Role   { return session.Primary }
func (Pair) Role() session.Role      { return session.Primary }
func (TUI) Role() session.Role       { return session.Secondary }
func (Install) Role() session.Role   { return session.Secondary }

func (Status) Line(cli string) string    { return join(cli, "status") }
func (Dashboard) Line(cli string) string { return join(cli, "dashboard") }
func (Onboard) Line(cli string) string   { return join(cli, "onboard") }
func (TUI) Line(cli string) string       { return join(cli, "tui") }

func (g Gateway) Line(cli string) string {
	if g.action() == GatewayRun {
		return join(cli, "gateway")
	}
	return join(cli, "gateway", string(g.action()))
}

func (p Pair) Line(cli string) string {
	return join(cli, "pairing", "approve", string(p.App), p.Code)
}

// Line ignores cli: the package manager is the executable here.
func (i Install) Line(string) string {
	manager := i.Manager
	if manager == "" {
		manager = "npm"
	}
	return shellquote.Join(manager, "install", "-g", i.Package+"@latest")
}

func (Status) command()    {}
func (Dashboard) command() {}
func (Onboard) command()   {}
func (TUI) command()       {}
func (Gateway) command()   {}
func (Pair) command()      {}
func (Install) command()   {}

func (g Gateway) action() GatewayAction {
	if g.Action == "" {
		return GatewayRun
	}
	return g.Action
}

func join(cli string, args ...string) string {
	if strings.TrimSpace(cli) == "" {
		cli = "openclaw"
	}
	return shellquote.Join(append([]string{cli}, args...)...)
}

// ParseGatewayAction accepts one of GatewayActions, case-insensitively.
func ParseGatewayAction(s string) (GatewayAction, error) {
	a := GatewayAction(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range GatewayActions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// NewPair validates app and code.
func NewPair(app, code string) (Pair, error) {
	a, err := ParseApp(app)
	if err != nil {
		return Pair{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Pair{}, fmt.Errorf("%w: code is empty", ErrInvalidCode)
	}
	for _, r := range code {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return Pair{}, fmt.Errorf("%w: %q contains whitespace", ErrInvalidCode, code)
		}
	}
	return Pair{App: a, Code: code}, nil
}

// Parse builds a command from its name and arguments, the form used by the
// CLI and the API:
//
//	status | dashboard | onboard | tui
//	gateway [run|status|start|stop|restart]
//	pairing <app> <code>
//	install | update
func Parse(name string, args ...string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "status":
		return Status{}, nil
	case "dashboard":
		return Dashboard{}, nil
	case "onboard":
		return Onboard{}, nil
	case "tui", "terminal":
		return TUI{}, nil
	case "gateway":
		if len(args) == 0 {
			return Gateway{Action: GatewayRun}, nil
		}
		action, err := ParseGatewayAction(args[0])
		if err != nil {
			return nil, err
		}
		return Gateway{Action: action}, nil
	case "pairing", "pair":
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: pairing needs <app> <code>", ErrInvalidCode)
		}
		return NewPair(args[0], args[1])
	case "install":
		return Install{}, nil
	case "update":
		return Install{Update: true}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}
