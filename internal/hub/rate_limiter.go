package hub

import (
	"strings"
	"sync"
	"time"
)

// RateLimiter coalesces terminal output per terminal and flushes each batch
// once per interval.
type RateLimiter struct {
	mu       sync.Mutex
	pending  map[string]*pendingOutput
	interval time.Duration
	onFlush  func(terminalID string, msg OutputMessage)
}

type pendingOutput struct {
	texts []string
	ts    int64
	timer *time.Timer
}

func NewRateLimiter(interval time.Duration, onFlush func(string, OutputMessage)) *RateLimiter {
	return &RateLimiter{
		pending:  make(map[string]*pendingOutput),
		interval: interval,
		onFlush:  onFlush,
	}
}

func (r *RateLimiter) Add(msg OutputMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := msg.TerminalID
	p, exists := r.pending[id]
	if !exists {
		p = &pendingOutput{}
		r.pending[id] = p
	}

	p.texts = append(p.texts, msg.Text)
	if msg.Ts > p.ts {
		p.ts = msg.Ts
	}

	if p.timer == nil {
		p.timer = time.AfterFunc(r.interval, func() {
			r.flush(id)
		})
	}
}

func (r *RateLimiter) flush(id string) {
	r.mu.Lock()
	p, exists := r.pending[id]
	if !exists {
		r.mu.Unlock()
		return
	}
	delete(r.pending, id)
	if p.timer != nil {
		p.timer.Stop()
	}
	r.mu.Unlock()

	if r.onFlush != nil && len(p.texts) > 0 {
		r.onFlush(id, OutputMessage{
			Type:       TypeTerminalOutput,
			TerminalID: id,
			Text:       strings.Join(p.texts, ""),
			Ts:         p.ts,
		})
	}
}

func (r *RateLimiter) FlushAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.flush(id)
	}
}
