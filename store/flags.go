package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertFlag stores a flag keyed by its token. Calling again with the same
// token replaces the owning challenge and submission cap; flags are not
// append-only.
func (q *Queries) UpsertFlag(ctx context.Context, fid, cid string, maxSubmissions int) error {
	if _, err := q.db.ExecContext(ctx, `
INSERT INTO flags (fid, cid, max_submissions) VALUES (?, ?, ?)
ON CONFLICT (fid) DO UPDATE SET cid = excluded.cid, max_submissions = excluded.max_submissions
`, fid, cid, maxSubmissions); err != nil {
		return fmt.Errorf("upsert flag for %s: %w", cid, err)
	}
	return nil
}

// ResolveFlag looks up a flag matching any of the given token candidates and
// returns the token as stored plus its owning cid. ErrNotFound if none match.
func (q *Queries) ResolveFlag(ctx context.Context, candidates ...string) (fid, cid string, err error) {
	switch len(candidates) {
	case 1:
		err = q.db.QueryRowContext(ctx, `
SELECT flags.fid, flags.cid FROM flags
JOIN challenges ON challenges.cid = flags.cid
WHERE flags.fid = ?
`, candidates[0]).Scan(&fid, &cid)
	case 2:
		err = q.db.QueryRowContext(ctx, `
SELECT flags.fid, flags.cid FROM flags
JOIN challenges ON challenges.cid = flags.cid
WHERE flags.fid = ? OR flags.fid = ?
`, candidates[0], candidates[1]).Scan(&fid, &cid)
	default:
		return "", "", errors.New("resolve flag: one or two candidates required")
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve flag: %w", err)
	}
	return fid, cid, nil
}

// FlagExhausted reports whether the flag's submission count has reached its cap.
func (q *Queries) FlagExhausted(ctx context.Context, fid string) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx, `
SELECT 1 FROM flags
WHERE fid = ?
AND (SELECT COUNT(*) FROM submissions WHERE submissions.fid = flags.fid) >= max_submissions
`, fid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("flag exhausted %s: %w", fid, err)
	}
	return true, nil
}

// InsertSubmission records a redemption. The (uid, fid) primary key is the
// final backstop against double-counting under concurrent submissions.
func (q *Queries) InsertSubmission(ctx context.Context, uid, fid string, at time.Time) error {
	if _, err := q.db.ExecContext(ctx,
		"INSERT INTO submissions (uid, fid, timestamp) VALUES (?, ?, ?)",
		uid, fid, at.Unix(),
	); err != nil {
		return err
	}
	return nil
}

// SubmissionCount returns the number of recorded submissions for a flag.
func (q *Queries) SubmissionCount(ctx context.Context, fid string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM submissions WHERE fid = ?", fid,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("submission count %s: %w", fid, err)
	}
	return n, nil
}
