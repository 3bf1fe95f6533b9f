package session

import (
	"context"
	"errors"
	"fmt"
)

type fakeTerminal struct {
	id       string
	spec     LaunchSpec
	sent     []string
	shows    []bool
	disposed int
	failSend bool
}

func (t *fakeTerminal) ID() string { return t.id }

func (t *fakeTerminal) Show(preserveFocus bool) { t.shows = append(t.shows, preserveFocus) }

func (t *fakeTerminal) SendText(text string) error {
	if t.failSend {
		return errors.New("pty: session is closed")
	}
	t.sent = append(t.sent, text)
	return nil
}

func (t *fakeTerminal) Dispose() error {
	t.disposed++
	return nil
}

type fakeHost struct {
	created []*fakeTerminal
	failErr error
}

func (h *fakeHost) CreateTerminal(_ context.Context, spec LaunchSpec) (Terminal, error) {
	if h.failErr != nil {
		return nil, h.failErr
	}
	t := &fakeTerminal{id: fmt.Sprintf("t-%d", len(h.created)+1), spec: spec}
	h.created = append(h.created, t)
	return t, nil
}

func (h *fakeHost) last() *fakeTerminal {
	if len(h.created) == 0 {
		return nil
	}
	return h.created[len(h.created)-1]
}
