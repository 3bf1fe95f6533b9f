package hub

// Server to client message types.
const (
	TypeStatus         = "status"
	TypeSessions       = "sessions"
	TypeTerminalOutput = "terminal_output"
	TypeTerminalShow   = "terminal_show"
	TypeNotification   = "notification"
	TypeProgress       = "progress"
	TypePairingResult  = "pairing_result"
	TypeError          = "error"
)

// Client to server message types.
const (
	TypePairingSubmit  = "pairing_submit"
	TypeTerminalInput  = "terminal_input"
	TypeTerminalResize = "terminal_resize"
	TypeRun            = "run"
	TypeSubscribe      = "subscribe"
)

type StatusMessage struct {
	Type    string `json:"type"`
	State   string `json:"state"`
	Icon    string `json:"icon"`
	Text    string `json:"text"`
	Tooltip string `json:"tooltip,omitempty"`
}

type SessionInfo struct {
	Role       string `json:"role"`
	TerminalID string `json:"terminal_id"`
	Label      string `json:"label"`
}

type SessionsMessage struct {
	Type string        `json:"type"`
	List []SessionInfo `json:"list"`
}

type OutputMessage struct {
	Type       string `json:"type"`
	TerminalID string `json:"terminal_id"`
	Text       string `json:"text"`
	Ts         int64  `json:"ts"`
}

type ShowMessage struct {
	Type          string `json:"type"`
	TerminalID    string `json:"terminal_id"`
	Name          string `json:"name"`
	PreserveFocus bool   `json:"preserve_focus"`
}

type NotificationMessage struct {
	Type    string   `json:"type"`
	Level   string   `json:"level"`
	Text    string   `json:"text"`
	Actions []string `json:"actions,omitempty"`
}

type ProgressMessage struct {
	Type   string `json:"type"`
	Task   string `json:"task"`
	State  string `json:"state"`
	Title  string `json:"title,omitempty"`
	Queued bool   `json:"queued,omitempty"`
}

type PairingResultMessage struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ClientMessage struct {
	Type       string   `json:"type"`
	TerminalID string   `json:"terminal_id,omitempty"`
	Keys       string   `json:"keys,omitempty"`
	Cols       int      `json:"cols,omitempty"`
	Rows       int      `json:"rows,omitempty"`
	App        string   `json:"app,omitempty"`
	Code       string   `json:"code,omitempty"`
	Command    string   `json:"command,omitempty"`
	Args       []string `json:"args,omitempty"`
}

type hubBroadcast struct {
	data       []byte
	terminalID string
}
