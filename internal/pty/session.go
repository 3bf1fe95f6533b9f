package pty

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	creackpty "github.com/creack/pty"
)

var ErrClosed = errors.New("pty: session is closed")

const (
	defaultCols = 120
	defaultRows = 30
)

// Session wraps a child process running inside a PTY.
type Session struct {
	id        string
	name      string
	argv      []string
	createdAt time.Time

	cmd  *exec.Cmd
	ptmx *os.File

	events chan Event
	reads  sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// newSession spawns argv inside a new PTY of defaultCols x defaultRows.
func newSession(id, name string, argv []string, workDir string, env []string) (*Session, error) {
	if len(argv) == 0 {
		return nil, errors.New("pty: argv must not be empty")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workDir
	if len(env) > 0 {
		cmd.Env = env
	}

	ptmx, err := creackpty.StartWithSize(cmd, &creackpty.Winsize{
		Cols: defaultCols,
		Rows: defaultRows,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:        id,
		name:      name,
		argv:      append([]string(nil), argv...),
		createdAt: time.Now(),
		cmd:       cmd,
		ptmx:      ptmx,
		events:    make(chan Event, 1024),
	}

	s.reads.Add(1)
	go s.readPump()
	go s.waitExit()

	return s, nil
}

// readPump forwards PTY output until the fd is closed or errors.
func (s *Session) readPump() {
	defer s.reads.Done()
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.events <- Event{
				Type: EventOutput,
				ID:   s.id,
				Data: string(buf[:n]),
			}
		}
		if err != nil {
			return
		}
	}
}

// waitExit waits for the child to exit and the reader to drain, then emits
// exactly one EventClosed and closes the events channel.
func (s *Session) waitExit() {
	_ = s.cmd.Wait()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	// The slave side is gone; unblock the reader if it is still waiting.
	_ = s.ptmx.Close()
	s.reads.Wait()

	s.events <- Event{
		Type: EventClosed,
		ID:   s.id,
	}
	close(s.events)
}

func (s *Session) ID() string { return s.id }

func (s *Session) Name() string { return s.name }

// Events returns the read-only channel of session events.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Write sends data to the child's terminal input.
func (s *Session) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	return s.ptmx.Write(data)
}

// Resize changes the PTY window size.
func (s *Session) Resize(cols, rows uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return creackpty.Setsize(s.ptmx, &creackpty.Winsize{
		Cols: cols,
		Rows: rows,
	})
}

// Close sends SIGTERM to the child and closes the PTY. Safe to call more
// than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(syscall.SIGTERM)
		}

		err = s.ptmx.Close()
		if errors.Is(err, os.ErrClosed) {
			err = nil
		}
	})
	return err
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:        s.id,
		Name:      s.name,
		Argv:      append([]string(nil), s.argv...),
		Active:    !s.IsClosed(),
		CreatedAt: s.createdAt,
	}
}
