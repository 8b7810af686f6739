package store

import (
	"context"
	"fmt"
	"time"
)

// Event types written by the core. Every submission attempt, successful or
// not, produces exactly one of these.
const (
	EventFlagCreate   = "flag-create"
	EventFlagInactive = "flag-inactive"
	EventFlagSubmit   = "flag-submit"
	EventErrUnknown   = "flag-err-unknown"
	EventErrInactive  = "flag-err-inactive"
	EventErrSolved    = "flag-err-solved"
	EventErrUsed      = "flag-err-used"
)

// Event is one append-only audit record. Events are never updated or deleted.
type Event struct {
	Time time.Time
	IP   string
	Type string
	Data string
	CID  string
	UID  string
}

// AppendEvent writes an audit record. Empty Data/CID/UID are stored as NULL.
func (q *Queries) AppendEvent(ctx context.Context, e Event) error {
	at := e.Time
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := q.db.ExecContext(ctx,
		"INSERT INTO events (time, ip, type, data, cid, uid) VALUES (?, ?, ?, ?, ?, ?)",
		at.Unix(), e.IP, e.Type, nullable(e.Data), nullable(e.CID), nullable(e.UID),
	); err != nil {
		return fmt.Errorf("append event %s: %w", e.Type, err)
	}
	return nil
}

// Events returns the most recent audit records, newest first. This is the
// read-only audit surface for the administrative collaborator.
func (q *Queries) Events(ctx context.Context, limit int) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT time, ip, type, IFNULL(data, ''), IFNULL(cid, ''), IFNULL(uid, '')
FROM events
ORDER BY time DESC, rowid DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e  Event
			at int64
		)
		if err := rows.Scan(&at, &e.IP, &e.Type, &e.Data, &e.CID, &e.UID); err != nil {
			return nil, err
		}
		e.Time = time.Unix(at, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
