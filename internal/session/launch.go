package session

// Shell is an executable plus fixed arguments.
type Shell struct {
	Path string   `json:"path" yaml:"path"`
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// RoleConfig holds per-role presentation and launch settings. Compat asks
// for indirection through the compatibility shell on Windows.
type RoleConfig struct {
	Label  string
	Icon   string
	Compat bool
}

// Profile is everything the dispatcher needs to turn a role into a
// LaunchSpec.
type Profile struct {
	Roles       map[Role]RoleConfig
	CompatShell Shell
	NativeShell Shell
}

// DefaultProfile mirrors the shipped configuration.
func DefaultProfile() Profile {
	return Profile{
		Roles: map[Role]RoleConfig{
			Primary:   {Label: "Claw", Icon: "hubot", Compat: true},
			Secondary: {Label: "Claw TUI", Icon: "terminal", Compat: false},
		},
		CompatShell: Shell{Path: "wsl.exe", Args: []string{"-d", "Ubuntu"}},
	}
}

// LaunchFor picks the launch spec for role on platform. The compatibility
// shell is used only when the platform is Windows and the role asks for it.
func (p Profile) LaunchFor(role Role, platform Platform) LaunchSpec {
	rc, ok := p.Roles[role]
	if !ok {
		rc = RoleConfig{Label: string(role)}
	}
	spec := LaunchSpec{Name: rc.Label, Icon: rc.Icon}

	shell := p.NativeShell
	if platform.IsWindows() && rc.Compat && p.CompatShell.Path != "" {
		shell = p.CompatShell
	}
	if shell.Path != "" {
		spec.ShellPath = shell.Path
		spec.ShellArgs = append([]string(nil), shell.Args...)
	}
	return spec
}
