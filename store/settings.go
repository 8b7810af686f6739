package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SetSetting stores a process configuration value, replacing any previous one.
func (q *Queries) SetSetting(ctx context.Context, key, value string) error {
	if _, err := q.db.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value
`, key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Settings returns a snapshot of all process configuration values. Callers
// receive a copy; later edits require a fresh read.
func (q *Queries) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// SetData stores a per-challenge key/value pair.
func (q *Queries) SetData(ctx context.Context, cid, key, value string) error {
	if _, err := q.db.ExecContext(ctx, `
INSERT INTO data (cid, key, value) VALUES (?, ?, ?)
ON CONFLICT (cid, key) DO UPDATE SET value = excluded.value
`, cid, key, value); err != nil {
		return fmt.Errorf("set data %s/%s: %w", cid, key, err)
	}
	return nil
}

// GetData reads a per-challenge value. ErrNotFound if the key is unset.
func (q *Queries) GetData(ctx context.Context, cid, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx,
		"SELECT value FROM data WHERE cid = ? AND key = ?", cid, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get data %s/%s: %w", cid, key, err)
	}
	return value, nil
}
