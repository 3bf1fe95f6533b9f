// Package loop runs submitted tasks one at a time on a single goroutine.
//
// Tasks are fire-and-forget: there is no cancellation token, a submitted
// task always runs unless the loop has already stopped.
package loop

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrStopped = errors.New("event loop stopped")

type Loop struct {
	tasks chan func()
	done  chan struct{}

	mu      sync.RWMutex
	stopped bool
	once    sync.Once
}

func New(queue int) *Loop {
	if queue <= 0 {
		queue = 256
	}
	l := &Loop{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for fn := range l.tasks {
		l.exec(fn)
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event loop task panicked", "panic", r)
		}
	}()
	fn()
}

// Submit queues fn. It reports ErrStopped once Stop has been called.
func (l *Loop) Submit(fn func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return ErrStopped
	}
	l.tasks <- fn
	return nil
}

// Do runs fn on the loop and waits for its result. Calling Do from inside a
// loop task deadlocks.
func (l *Loop) Do(fn func() error) error {
	result := make(chan error, 1)
	err := l.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("event loop task panicked: %v", r)
			}
		}()
		result <- fn()
	})
	if err != nil {
		return err
	}
	return <-result
}

// Stop rejects new tasks, drains queued ones and waits for the loop to exit.
func (l *Loop) Stop() {
	l.once.Do(func() {
		l.mu.Lock()
		l.stopped = true
		close(l.tasks)
		l.mu.Unlock()
	})
	<-l.done
}
