package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type DispatchRepo struct {
	db *sql.DB
}

func NewDispatchRepo(db *sql.DB) *DispatchRepo {
	return &DispatchRepo{db: db}
}

func (r *DispatchRepo) Create(ctx context.Context, d *Dispatch) error {
	if d == nil {
		return fmt.Errorf("dispatch is required")
	}
	if strings.TrimSpace(d.Role) == "" {
		return fmt.Errorf("dispatch role is required")
	}
	if d.ID == "" {
		d.ID = NewID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = nowUTC()
	}
	if d.Outcome == "" {
		d.Outcome = OutcomeSent
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO dispatches (id, role, line, outcome, error, terminal_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		d.ID,
		d.Role,
		d.Line,
		d.Outcome,
		d.Error,
		d.TerminalID,
		formatTimestamp(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create dispatch: %w", err)
	}
	return nil
}

// List returns dispatches newest first.
func (r *DispatchRepo) List(ctx context.Context, filter DispatchFilter) ([]*Dispatch, error) {
	query := `
SELECT id, role, line, outcome, error, terminal_id, created_at
FROM dispatches`
	var where []string
	var args []any
	if filter.Role != "" {
		where = append(where, "role = ?")
		args = append(args, filter.Role)
	}
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, filter.Outcome)
	}
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY created_at DESC\nLIMIT ?"
	args = append(args, clampLimit(filter.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatches: %w", err)
	}
	defer rows.Close()

	var out []*Dispatch
	for rows.Next() {
		var d Dispatch
		var createdAtRaw string
		if err := rows.Scan(&d.ID, &d.Role, &d.Line, &d.Outcome, &d.Error, &d.TerminalID, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("failed to scan dispatch: %w", err)
		}
		ts, err := parseTimestamp(createdAtRaw)
		if err != nil {
			return nil, err
		}
		d.CreatedAt = ts
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while iterating dispatches: %w", err)
	}
	return out, nil
}

// Prune keeps only the newest keep rows.
func (r *DispatchRepo) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := r.db.ExecContext(ctx, `
DELETE FROM dispatches
WHERE id NOT IN (SELECT id FROM dispatches ORDER BY created_at DESC LIMIT ?)
`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune dispatches: %w", err)
	}
	return res.RowsAffected()
}
