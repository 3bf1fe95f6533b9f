package pty

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/user/clawbridge/internal/session"
	"github.com/user/clawbridge/internal/termtext"
)

const (
	captureBufferSize = 256 * 1024
	// retainExited is how many exited terminals keep their captured output.
	retainExited = 4
)

// Host runs terminals as local PTY processes. It satisfies session.Host and
// reports exits through OnClose.
type Host struct {
	manager *Manager
	workDir string

	mu      sync.RWMutex
	buffers map[string]*ringBuf
	exited  []string

	onClose  func(session.Terminal)
	onOutput func(id, data string)
	onShow   func(id, name string, preserveFocus bool)
}

type HostOption func(*Host)

// OnClose is called once per terminal when its process exits, from the
// terminal's own goroutine.
func OnClose(fn func(session.Terminal)) HostOption {
	return func(h *Host) { h.onClose = fn }
}

// OnOutput receives raw terminal output.
func OnOutput(fn func(id, data string)) HostOption {
	return func(h *Host) { h.onOutput = fn }
}

// OnShow is called whenever a terminal is brought forward.
func OnShow(fn func(id, name string, preserveFocus bool)) HostOption {
	return func(h *Host) { h.onShow = fn }
}

func WithWorkDir(dir string) HostOption {
	return func(h *Host) { h.workDir = dir }
}

func NewHost(opts ...HostOption) *Host {
	h := &Host{
		manager: NewManager(),
		buffers: make(map[string]*ringBuf),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateTerminal spawns the spec's shell, or the native shell when the spec
// leaves it empty.
func (h *Host) CreateTerminal(ctx context.Context, spec session.LaunchSpec) (session.Terminal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	argv := launchArgv(spec)
	id := uuid.NewString()
	env := append(os.Environ(), "TERM=xterm-256color")

	sess, err := h.manager.Create(id, spec.Name, argv, h.workDir, env)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	rb := newRingBuf(captureBufferSize)
	h.mu.Lock()
	h.buffers[id] = rb
	h.mu.Unlock()

	term := &terminal{host: h, sess: sess, name: spec.Name}
	go h.pump(term, rb)

	slog.Info("terminal started", "id", id, "name", spec.Name, "argv", argv)
	return term, nil
}

func (h *Host) pump(term *terminal, rb *ringBuf) {
	for evt := range term.sess.Events() {
		switch evt.Type {
		case EventOutput:
			rb.Write([]byte(evt.Data))
			if h.onOutput != nil {
				h.onOutput(evt.ID, evt.Data)
			}
		case EventClosed:
			h.manager.Remove(evt.ID)
			h.retire(evt.ID)
			slog.Info("terminal exited", "id", evt.ID, "name", term.name)
			if h.onClose != nil {
				h.onClose(term)
			}
		}
	}
}

// retire keeps the output of an exited terminal, dropping the oldest exited
// buffers beyond retainExited.
func (h *Host) retire(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.buffers[id]; !ok || slices.Contains(h.exited, id) {
		return
	}
	h.exited = append(h.exited, id)
	for len(h.exited) > retainExited {
		delete(h.buffers, h.exited[0])
		h.exited = h.exited[1:]
	}
}

// Output returns the last n plain-text lines a terminal printed. Output of
// the most recently exited terminals stays available until Forget or until
// newer exits evict it.
func (h *Host) Output(id string, n int) ([]string, error) {
	h.mu.RLock()
	rb, ok := h.buffers[id]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("pty: session %q not found", id)
	}
	return termtext.TailLines(string(rb.Bytes()), n), nil
}

// Forget drops the captured output of id.
func (h *Host) Forget(id string) {
	h.mu.Lock()
	delete(h.buffers, id)
	h.exited = slices.DeleteFunc(h.exited, func(e string) bool { return e == id })
	h.mu.Unlock()
}

// SendInput writes raw keystrokes to a live terminal.
func (h *Host) SendInput(id, data string) error {
	sess, err := h.manager.Get(id)
	if err != nil {
		return err
	}
	_, err = sess.Write([]byte(data))
	return err
}

func (h *Host) Resize(id string, cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("pty: invalid size %dx%d", cols, rows)
	}
	sess, err := h.manager.Get(id)
	if err != nil {
		return err
	}
	return sess.Resize(uint16(cols), uint16(rows))
}

func (h *Host) List() []SessionInfo {
	return h.manager.List()
}

// Close terminates every terminal.
func (h *Host) Close() {
	h.manager.Close()
}

type terminal struct {
	host *Host
	sess *Session
	name string
}

func (t *terminal) ID() string { return t.sess.ID() }

func (t *terminal) Show(preserveFocus bool) {
	if t.host.onShow != nil {
		t.host.onShow(t.sess.ID(), t.name, preserveFocus)
	}
}

func (t *terminal) SendText(text string) error {
	_, err := t.sess.Write([]byte(text + "\r"))
	return err
}

func (t *terminal) Dispose() error {
	return t.host.manager.Destroy(t.sess.ID())
}

func launchArgv(spec session.LaunchSpec) []string {
	if spec.ShellPath != "" {
		return append([]string{spec.ShellPath}, spec.ShellArgs...)
	}
	return []string{defaultShell()}
}

func defaultShell() string {
	if runtime.GOOS == "windows" {
		return "powershell.exe"
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}
