package pty

import "sync"

// ringBuf is a fixed-size circular byte buffer.
type ringBuf struct {
	mu   sync.Mutex
	data []byte
	pos  int
	full bool
}

func newRingBuf(capacity int) *ringBuf {
	return &ringBuf{data: make([]byte, capacity)}
}

// Write appends p, overwriting the oldest bytes when full.
func (r *ringBuf) Write(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(p) >= len(r.data) {
		copy(r.data, p[len(p)-len(r.data):])
		r.pos = 0
		r.full = true
		return
	}
	n := copy(r.data[r.pos:], p)
	if n < len(p) {
		copy(r.data, p[n:])
		r.full = true
	}
	next := r.pos + len(p)
	if next >= len(r.data) {
		r.full = true
	}
	r.pos = next % len(r.data)
}

// Bytes returns the buffered data in chronological order.
func (r *ringBuf) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]byte(nil), r.data[:r.pos]...)
	}
	out := make([]byte, 0, len(r.data))
	out = append(out, r.data[r.pos:]...)
	return append(out, r.data[:r.pos]...)
}
