package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateUser inserts a user with an already-hashed credential. Hashing
// itself belongs to the excluded authentication collaborator.
func (q *Queries) CreateUser(ctx context.Context, uid, passwordHash string) error {
	if _, err := q.db.ExecContext(ctx,
		"INSERT INTO users (uid, password) VALUES (?, ?)", uid, passwordHash,
	); err != nil {
		return fmt.Errorf("create user %s: %w", uid, err)
	}
	return nil
}

// UserExists reports whether the user is known.
func (q *Queries) UserExists(ctx context.Context, uid string) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE uid = ?", uid,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("user exists %s: %w", uid, err)
	}
	return true, nil
}

// SetTeam assigns a user to a team, replacing any previous assignment.
func (q *Queries) SetTeam(ctx context.Context, uid, tid string) error {
	if _, err := q.db.ExecContext(ctx, `
INSERT INTO teams (uid, tid) VALUES (?, ?)
ON CONFLICT (uid) DO UPDATE SET tid = excluded.tid
`, uid, tid); err != nil {
		return fmt.Errorf("set team %s: %w", uid, err)
	}
	return nil
}

// TeamOf returns the user's team id, or "" if the user has none.
func (q *Queries) TeamOf(ctx context.Context, uid string) (string, error) {
	var tid string
	err := q.db.QueryRowContext(ctx,
		"SELECT tid FROM teams WHERE uid = ?", uid,
	).Scan(&tid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("team of %s: %w", uid, err)
	}
	return tid, nil
}
