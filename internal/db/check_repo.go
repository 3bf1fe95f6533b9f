package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type CheckRepo struct {
	db *sql.DB
}

func NewCheckRepo(db *sql.DB) *CheckRepo {
	return &CheckRepo{db: db}
}

func (r *CheckRepo) Create(ctx context.Context, c *FreshnessCheck) error {
	if c == nil {
		return fmt.Errorf("freshness check is required")
	}
	if c.Package == "" {
		return fmt.Errorf("freshness check package is required")
	}
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.CheckedAt.IsZero() {
		c.CheckedAt = nowUTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO freshness_checks (id, package, outcome, installed, latest, reason, checked_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		c.ID,
		c.Package,
		c.Outcome,
		c.Installed,
		c.Latest,
		c.Reason,
		formatTimestamp(c.CheckedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create freshness check: %w", err)
	}
	return nil
}

// Latest returns the most recent check for pkg, or nil when there is none.
func (r *CheckRepo) Latest(ctx context.Context, pkg string) (*FreshnessCheck, error) {
	var c FreshnessCheck
	var checkedAtRaw string
	err := r.db.QueryRowContext(ctx, `
SELECT id, package, outcome, installed, latest, reason, checked_at
FROM freshness_checks
WHERE package = ?
ORDER BY checked_at DESC
LIMIT 1
`, pkg).Scan(&c.ID, &c.Package, &c.Outcome, &c.Installed, &c.Latest, &c.Reason, &checkedAtRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest freshness check for %q: %w", pkg, err)
	}
	c.CheckedAt, err = parseTimestamp(checkedAtRaw)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
