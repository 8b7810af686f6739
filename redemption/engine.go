package redemption

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/ctfkit/ctfkit/logging"
	"github.com/ctfkit/ctfkit/store"
)

// Typed rejections surfaced to callers. Input errors and state conflicts
// are fully absorbed here: no mutation survives them, and each is logged as
// an audit event before returning.
var (
	ErrUnknownUser       = errors.New("unknown user")
	ErrUnknownFlag       = errors.New("unknown flag")
	ErrChallengeInactive = errors.New("challenge is not active")
	ErrAlreadySolved     = errors.New("challenge already solved")
	ErrFlagExhausted     = errors.New("flag already used too often")
)

var submissionsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ctfkit",
	Subsystem: "redemption",
	Name:      "submissions_total",
	Help:      "Number of flag submissions by outcome",
}, []string{"outcome"})

// Engine validates and records flag submissions as atomic transactions
// against the shared store.
type Engine struct {
	store *store.Store
}

// NewEngine returns an Engine bound to the shared store.
func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s}
}

// CreateFlag upserts a flag for the challenge. An empty token means a fresh
// generated one. The token is the identity key: calling again with the same
// token replaces the cap and owner, it does not error. This low-level path
// performs no activity check and no audit logging; callers choose.
func (e *Engine) CreateFlag(ctx context.Context, cid string, maxSubmissions int, token string) (string, error) {
	if token == "" {
		token = NewToken()
	}
	if err := e.store.UpsertFlag(ctx, token, cid, maxSubmissions); err != nil {
		return "", err
	}
	return token, nil
}

// rejection is a typed refusal plus the audit event describing it. The
// event is written after the enclosing transaction rolls back, so failed
// attempts stay auditable while their checks leave no other trace.
type rejection struct {
	cause error
	event store.Event
}

func (r *rejection) Error() string { return r.cause.Error() }

func (r *rejection) Unwrap() error { return r.cause }

// Submit runs the submission state machine for raw submitted text inside
// one transaction, so the check-then-act sequence is race-free against
// concurrent submissions. On success it returns the owning cid. force is
// the administrative escape hatch bypassing the activity-window and cap
// checks only.
//
// Two truly simultaneous submissions of the same single-use flag can race
// the checks, but the storage primary key on (uid, fid) admits only one
// insert; the loser observes ErrAlreadySolved, never a silent duplicate.
func (e *Engine) Submit(ctx context.Context, raw, uid, ip string, force bool) (string, error) {
	logger := logging.FromContext(ctx).Named("redemption").With(
		zap.String("uid", uid),
		zap.String("ip", ip),
	)

	var cid string
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		cid, err = e.submit(ctx, q, raw, uid, ip, force)
		return err
	})
	if err != nil {
		var rej *rejection
		if errors.As(err, &rej) {
			if logErr := e.store.AppendEvent(ctx, rej.event); logErr != nil {
				logger.Error("failed to log rejection event", zap.Error(logErr))
			}
			submissionsMetric.WithLabelValues(outcome(rej.cause)).Inc()
			logger.Debug("submission rejected", zap.Error(rej.cause))
			return "", rej.cause
		}
		submissionsMetric.WithLabelValues("error").Inc()
		return "", err
	}
	submissionsMetric.WithLabelValues("accepted").Inc()
	logger.Info("flag redeemed", zap.String("cid", cid))
	return cid, nil
}

func (e *Engine) submit(ctx context.Context, q *store.Queries, raw, uid, ip string, force bool) (string, error) {
	raw = strings.TrimSpace(raw)

	reject := func(cause error, eventType, cid, eventUID string) error {
		return &rejection{
			cause: cause,
			event: store.Event{IP: ip, Type: eventType, Data: raw, CID: cid, UID: eventUID},
		}
	}

	exists, err := q.UserExists(ctx, uid)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", reject(ErrUnknownUser, store.EventErrUnknown, "", "")
	}

	fid, cid, err := q.ResolveFlag(ctx, raw, Normalize(raw))
	if errors.Is(err, store.ErrNotFound) {
		return "", reject(ErrUnknownFlag, store.EventErrUnknown, "", uid)
	}
	if err != nil {
		return "", err
	}

	window, err := q.ChallengeWindow(ctx, cid)
	if err != nil {
		return "", err
	}
	if !window.Contains(time.Now()) && !force {
		return "", reject(ErrChallengeInactive, store.EventErrInactive, cid, uid)
	}

	solved, err := q.HasSolved(ctx, uid, cid)
	if err != nil {
		return "", err
	}
	if solved {
		return "", reject(ErrAlreadySolved, store.EventErrSolved, cid, uid)
	}

	exhausted, err := q.FlagExhausted(ctx, fid)
	if err != nil {
		return "", err
	}
	if exhausted && !force {
		return "", reject(ErrFlagExhausted, store.EventErrUsed, cid, uid)
	}

	if err := q.AppendEvent(ctx, store.Event{
		IP:   ip,
		Type: store.EventFlagSubmit,
		Data: fid,
		CID:  cid,
		UID:  uid,
	}); err != nil {
		return "", fmt.Errorf("logging %s: %w", store.EventFlagSubmit, err)
	}
	if err := q.InsertSubmission(ctx, uid, fid, time.Now()); err != nil {
		if store.IsConstraintError(err) {
			// A racing duplicate of the same (uid, fid) lost to the
			// primary key. State conflict, not a crash.
			return "", reject(ErrAlreadySolved, store.EventErrSolved, cid, uid)
		}
		return "", fmt.Errorf("recording submission: %w", err)
	}
	return cid, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrUnknownUser):
		return "unknown-user"
	case errors.Is(err, ErrUnknownFlag):
		return "unknown-flag"
	case errors.Is(err, ErrChallengeInactive):
		return "inactive"
	case errors.Is(err, ErrAlreadySolved):
		return "already-solved"
	case errors.Is(err, ErrFlagExhausted):
		return "exhausted"
	default:
		return "error"
	}
}
