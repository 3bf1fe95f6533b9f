package pty

import (
	"fmt"
	"sort"
	"sync"
)

// Manager tracks all PTY sessions spawned by a Host.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// Create spawns a PTY session registered under id.
func (m *Manager) Create(id, name string, argv []string, workDir string, env []string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("pty: session %q already exists", id)
	}

	sess, err := newSession(id, name, argv, workDir, env)
	if err != nil {
		return nil, err
	}

	m.sessions[id] = sess
	return sess, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("pty: session %q not found", id)
	}
	return sess, nil
}

// Remove forgets id without touching the process.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Destroy removes the session and closes it. Unknown ids are ignored.
func (m *Manager) Destroy(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return sess.Close()
}

// List returns metadata for every tracked session, oldest first.
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, sess := range m.sessions {
		infos = append(infos, sess.info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Close terminates and removes all sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		_ = sess.Close()
	}
}
