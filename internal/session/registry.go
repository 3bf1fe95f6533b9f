package session

import (
	"errors"
	"fmt"
	"time"
)

var ErrRoleOccupied = errors.New("role already has a live session")

// Session is the registry's record of a live terminal bound to a role.
type Session struct {
	Role      Role
	Label     string
	Icon      string
	Launch    LaunchSpec
	Platform  Platform
	Terminal  Terminal
	CreatedAt time.Time
}

// Info is a read-only view of a Session.
type Info struct {
	Role       Role       `json:"role"`
	Label      string     `json:"label"`
	Icon       string     `json:"icon"`
	TerminalID string     `json:"terminal_id"`
	Launch     LaunchSpec `json:"launch"`
	Platform   string     `json:"platform"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (s *Session) Info() Info {
	return Info{
		Role:       s.Role,
		Label:      s.Label,
		Icon:       s.Icon,
		TerminalID: s.Terminal.ID(),
		Launch:     s.Launch,
		Platform:   s.Platform.OS,
		CreatedAt:  s.CreatedAt,
	}
}

// Registry holds at most one live session per role.
//
// Registry is not safe for concurrent use. It belongs to the event loop and
// every call must be made from there.
type Registry struct {
	sessions map[Role]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[Role]*Session)}
}

func (r *Registry) Get(role Role) (*Session, bool) {
	s, ok := r.sessions[role]
	return s, ok
}

// Put binds s to role. A role that already holds a different session must be
// cleared first.
func (r *Registry) Put(role Role, s *Session) error {
	if s == nil || s.Terminal == nil {
		return fmt.Errorf("session for role %s has no terminal", role)
	}
	if existing, ok := r.sessions[role]; ok && existing != s {
		return fmt.Errorf("%w: %s", ErrRoleOccupied, role)
	}
	s.Role = role
	r.sessions[role] = s
	return nil
}

// Clear returns role to the absent state. Clearing an absent role is a no-op.
func (r *Registry) Clear(role Role) (*Session, bool) {
	s, ok := r.sessions[role]
	if ok {
		delete(r.sessions, role)
	}
	return s, ok
}

// RoleOf finds the role currently bound to t.
func (r *Registry) RoleOf(t Terminal) (Role, bool) {
	if t == nil {
		return "", false
	}
	for role, s := range r.sessions {
		if s.Terminal.ID() == t.ID() {
			return role, true
		}
	}
	return "", false
}

// List returns live sessions in role order.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.sessions))
	for _, role := range Roles {
		if s, ok := r.sessions[role]; ok {
			out = append(out, s.Info())
		}
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.sessions)
}
