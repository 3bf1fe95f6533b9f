package session

import (
	"fmt"
	"runtime"
	"strings"
)

// Role is the logical purpose of a session.
type Role string

const (
	Primary   Role = "primary"
	Secondary Role = "secondary"
)

// Roles lists every role in a stable order.
var Roles = []Role{Primary, Secondary}

func (r Role) Valid() bool {
	return r == Primary || r == Secondary
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown session role %q", s)
	}
	return r, nil
}

// Platform identifies the OS family a session is launched on. OS uses
// runtime.GOOS values.
type Platform struct {
	OS string
}

func CurrentPlatform() Platform {
	return Platform{OS: runtime.GOOS}
}

func (p Platform) IsWindows() bool {
	return strings.EqualFold(p.OS, "windows")
}
