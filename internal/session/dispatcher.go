package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrEmptyCommand = errors.New("command text is empty")
	ErrMultiLine    = errors.New("command text must be a single line")
)

// DispatchError reports that a session could not be created or reached.
type DispatchError struct {
	Role   Role
	Reason string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s session failed: %s", e.Role, e.Reason)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// IsDispatchError reports whether err carries a *DispatchError.
func IsDispatchError(err error) bool {
	var de *DispatchError
	return errors.As(err, &de)
}

// Dispatcher routes command lines to role sessions, creating them lazily.
// Like Registry it runs on the event loop only.
type Dispatcher struct {
	registry *Registry
	host     Host
	profile  Profile
	now      func() time.Time
}

func NewDispatcher(reg *Registry, host Host, profile Profile) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		host:     host,
		profile:  profile,
		now:      time.Now,
	}
}

func (d *Dispatcher) Registry() *Registry { return d.registry }

// SetProfile replaces the launch profile. Live sessions keep the launch spec
// they were created with.
func (d *Dispatcher) SetProfile(p Profile) {
	d.profile = p
}

// Dispatch hands text to the session for role, creating it first when the
// role is absent. It returns as soon as the line is written; it never waits
// for the command to finish.
func (d *Dispatcher) Dispatch(ctx context.Context, role Role, text string, platform Platform) error {
	if !role.Valid() {
		return fmt.Errorf("unknown session role %q", role)
	}
	line := strings.TrimSpace(text)
	if line == "" {
		return ErrEmptyCommand
	}
	if strings.ContainsAny(line, "\r\n") {
		return ErrMultiLine
	}

	if sess, ok := d.registry.Get(role); ok {
		sess.Terminal.Show(true)
		err := sess.Terminal.SendText(line)
		if err == nil {
			return nil
		}
		// The process died but its close notification has not arrived yet.
		slog.Warn("stale session, recreating", "role", role, "terminal", sess.Terminal.ID(), "error", err)
		d.registry.Clear(role)
		_ = sess.Terminal.Dispose()
	}

	sess, err := d.create(ctx, role, platform)
	if err != nil {
		return err
	}
	sess.Terminal.Show(true)
	if err := sess.Terminal.SendText(line); err != nil {
		_ = sess.Terminal.Dispose()
		return &DispatchError{Role: role, Reason: err.Error(), Err: err}
	}
	if err := d.registry.Put(role, sess); err != nil {
		_ = sess.Terminal.Dispose()
		return &DispatchError{Role: role, Reason: err.Error(), Err: err}
	}
	slog.Info("session created", "role", role, "terminal", sess.Terminal.ID(), "shell", sess.Launch.ShellPath)
	return nil
}

func (d *Dispatcher) create(ctx context.Context, role Role, platform Platform) (*Session, error) {
	spec := d.profile.LaunchFor(role, platform)
	term, err := d.host.CreateTerminal(ctx, spec)
	if err != nil {
		return nil, &DispatchError{Role: role, Reason: err.Error(), Err: err}
	}
	if term == nil {
		return nil, &DispatchError{Role: role, Reason: "host returned no terminal"}
	}
	return &Session{
		Role:      role,
		Label:     spec.Name,
		Icon:      spec.Icon,
		Launch:    spec,
		Platform:  platform,
		Terminal:  term,
		CreatedAt: d.now(),
	}, nil
}

// HandleClosed processes a host close notification. It clears the role bound
// to t, if any, and reports which role that was. Repeated or unknown
// notifications are no-ops.
func (d *Dispatcher) HandleClosed(t Terminal) (Role, bool) {
	role, ok := d.registry.RoleOf(t)
	if !ok {
		return "", false
	}
	d.registry.Clear(role)
	slog.Info("session closed", "role", role, "terminal", t.ID())
	return role, true
}

// DisposeAll terminates every live session unconditionally.
func (d *Dispatcher) DisposeAll() {
	for _, role := range Roles {
		sess, ok := d.registry.Clear(role)
		if !ok {
			continue
		}
		if err := sess.Terminal.Dispose(); err != nil {
			slog.Warn("failed to dispose session", "role", role, "error", err)
		}
	}
}
