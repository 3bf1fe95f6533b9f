package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Dispatch is one command line handed to a terminal role.
type Dispatch struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Line       string    `json:"line"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	TerminalID string    `json:"terminal_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FreshnessCheck is the persisted result of one package freshness check.
type FreshnessCheck struct {
	ID        string    `json:"id"`
	Package   string    `json:"package"`
	Outcome   string    `json:"outcome"`
	Installed string    `json:"installed,omitempty"`
	Latest    string    `json:"latest,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type DispatchFilter struct {
	Role    string
	Outcome string
	Limit   int
}

// Fixed-width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func NewID() string {
	return uuid.NewString()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		ts = nowUTC()
	}
	return ts.UTC().Format(timestampLayout)
}

func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(timestampLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return ts, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
