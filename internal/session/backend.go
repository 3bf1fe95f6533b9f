package session

import "context"

// LaunchSpec describes how a terminal should be started.
// An empty ShellPath means the host's native shell.
type LaunchSpec struct {
	Name      string   `json:"name"`
	Icon      string   `json:"icon"`
	ShellPath string   `json:"shell_path,omitempty"`
	ShellArgs []string `json:"shell_args,omitempty"`
}

// Terminal is one live interactive process owned by the host.
type Terminal interface {
	// ID is stable for the lifetime of the terminal.
	ID() string

	// Show brings the terminal forward. With preserveFocus the caller keeps
	// input focus.
	Show(preserveFocus bool)

	// SendText writes text followed by a line terminator to the terminal
	// input. It returns once the bytes are handed off.
	SendText(text string) error

	// Dispose terminates the process. Safe to call more than once.
	Dispose() error
}

// Host creates terminals. Implementations report process exit separately,
// through whatever close-notification channel they expose.
type Host interface {
	CreateTerminal(ctx context.Context, spec LaunchSpec) (Terminal, error)
}
