package command

import (
	"fmt"
	"strings"
)

// App is a messaging app that can be paired with the CLI's gateway.
type App string

const (
	Telegram App = "telegram"
	WhatsApp App = "whatsapp"
	Signal   App = "signal"
	Discord  App = "discord"
	Slack    App = "slack"
	Feishu   App = "feishu"
	Line     App = "line"
	IMessage App = "imessage"
)

// Apps lists every pairable app in menu order.
var Apps = []App{Telegram, WhatsApp, Signal, Discord, Slack, Feishu, Line, IMessage}

var appLabels = map[App]string{
	Telegram: "Telegram",
	WhatsApp: "WhatsApp",
	Signal:   "Signal",
	Discord:  "Discord",
	Slack:    "Slack",
	Feishu:   "Feishu",
	Line:     "LINE",
	IMessage: "iMessage",
}

func (a App) Label() string {
	if l, ok := appLabels[a]; ok {
		return l
	}
	return string(a)
}

// ParseApp matches an app by id or label, case-insensitively.
func ParseApp(s string) (App, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range Apps {
		if s == string(a) || s == strings.ToLower(a.Label()) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidApp, s)
}
