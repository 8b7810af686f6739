package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned for lookups of rows that do not exist.
var ErrNotFound = errors.New("not found")

// Window is a challenge's activity interval. A challenge is active iff the
// current time falls within [Start, Stop], inclusive.
type Window struct {
	Start time.Time
	Stop  time.Time
}

// Contains reports whether t falls within the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.Stop)
}

// Challenge is a configured challenge record.
type Challenge struct {
	CID  string
	Team bool
	Window
}

// PutChallenge creates or updates a challenge record and drops any cached
// window for it, so administrative edits are visible on the next read.
func (s *Store) PutChallenge(ctx context.Context, c Challenge) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO challenges (cid, team, t_start, t_stop) VALUES (?, ?, ?, ?)
ON CONFLICT (cid) DO UPDATE SET team = excluded.team, t_start = excluded.t_start, t_stop = excluded.t_stop
`, c.CID, c.Team, c.Start.Unix(), c.Stop.Unix())
	if err != nil {
		return fmt.Errorf("put challenge %s: %w", c.CID, err)
	}
	s.windows.Remove(c.CID)
	return nil
}

// ChallengeWindow returns a challenge's activity window, served from the
// invalidated-on-edit cache when possible.
func (s *Store) ChallengeWindow(ctx context.Context, cid string) (Window, error) {
	if w, ok := s.windows.Get(cid); ok {
		return w, nil
	}
	w, err := s.Queries.ChallengeWindow(ctx, cid)
	if err != nil {
		return Window{}, err
	}
	s.windows.Add(cid, w)
	return w, nil
}

// ChallengeActive reports whether the challenge is active at the given time.
func (s *Store) ChallengeActive(ctx context.Context, cid string, now time.Time) (bool, error) {
	w, err := s.ChallengeWindow(ctx, cid)
	if err != nil {
		return false, err
	}
	return w.Contains(now), nil
}

// ChallengeWindow reads the activity window straight from the database.
func (q *Queries) ChallengeWindow(ctx context.Context, cid string) (Window, error) {
	var start, stop int64
	err := q.db.QueryRowContext(ctx,
		"SELECT t_start, t_stop FROM challenges WHERE cid = ?", cid,
	).Scan(&start, &stop)
	if errors.Is(err, sql.ErrNoRows) {
		return Window{}, fmt.Errorf("challenge %s: %w", cid, ErrNotFound)
	}
	if err != nil {
		return Window{}, fmt.Errorf("challenge window %s: %w", cid, err)
	}
	return Window{Start: time.Unix(start, 0), Stop: time.Unix(stop, 0)}, nil
}

// ChallengeTeam reports whether the challenge is team-scored.
func (q *Queries) ChallengeTeam(ctx context.Context, cid string) (bool, error) {
	var team bool
	err := q.db.QueryRowContext(ctx,
		"SELECT team FROM challenges WHERE cid = ?", cid,
	).Scan(&team)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("challenge %s: %w", cid, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("challenge team %s: %w", cid, err)
	}
	return team, nil
}

// Challenges returns the cids of all configured challenges.
func (q *Queries) Challenges(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT cid FROM challenges ORDER BY cid")
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var cids []string
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, err
		}
		cids = append(cids, cid)
	}
	return cids, rows.Err()
}

// HasSolved reports whether the user, or any teammate for a team-scored
// challenge, holds a recorded submission among the challenge's flags.
func (q *Queries) HasSolved(ctx context.Context, uid, cid string) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM challenges
JOIN flags ON flags.cid = challenges.cid
JOIN submissions ON (
    flags.fid = submissions.fid
    AND (
        submissions.uid = ?1 OR
        challenges.team = 1 AND submissions.uid IN (
            SELECT uid FROM teams WHERE tid = (SELECT tid FROM teams WHERE uid = ?1)
        )
    )
)
WHERE challenges.cid = ?2
`, uid, cid).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("has solved %s/%s: %w", uid, cid, err)
	}
	return count > 0, nil
}

// ListingRow is one challenge as seen by a viewing user, before the
// per-instance capability evaluation in the listing assembler.
type ListingRow struct {
	CID    string
	Window Window
	Team   bool
	// SolvedAt is the viewer's (or their team's) most recent solve time,
	// zero if unsolved.
	SolvedAt time.Time
	// Solves is the global solve count for the challenge.
	Solves int
}

// ListingRows returns all challenges whose window has started, each joined
// with the viewer's solve state and the global solve counter.
func (q *Queries) ListingRows(ctx context.Context, uid string, now time.Time) ([]ListingRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT
    challenges.cid,
    challenges.t_start,
    challenges.t_stop,
    challenges.team,
    IFNULL(solved.at, 0),
    IFNULL(counts.solves, 0)
FROM challenges
LEFT JOIN (
    SELECT flags.cid AS cid, MAX(submissions.timestamp) AS at
    FROM submissions
    JOIN flags ON flags.fid = submissions.fid
    JOIN challenges ON challenges.cid = flags.cid
    WHERE (
        submissions.uid = ?1 OR
        challenges.team = 1 AND submissions.uid IN (
            SELECT uid FROM teams WHERE tid = (SELECT tid FROM teams WHERE uid = ?1)
        )
    )
    GROUP BY flags.cid
) AS solved ON solved.cid = challenges.cid
LEFT JOIN (
    SELECT flags.cid AS cid, COUNT(*) AS solves
    FROM submissions
    JOIN flags ON flags.fid = submissions.fid
    GROUP BY flags.cid
) AS counts ON counts.cid = challenges.cid
WHERE challenges.t_start < ?2
ORDER BY challenges.cid
`, uid, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("listing rows: %w", err)
	}
	defer rows.Close()

	var out []ListingRow
	for rows.Next() {
		var (
			row         ListingRow
			start, stop int64
			solvedAt    int64
		)
		if err := rows.Scan(&row.CID, &start, &stop, &row.Team, &solvedAt, &row.Solves); err != nil {
			return nil, err
		}
		row.Window = Window{Start: time.Unix(start, 0), Stop: time.Unix(stop, 0)}
		if solvedAt > 0 {
			row.SolvedAt = time.Unix(solvedAt, 0)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
