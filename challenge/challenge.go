// Package challenge defines the challenge capability contract, the static
// kind registry, and the lifecycle manager driving concurrent startup and
// shutdown of all configured challenge instances.
package challenge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ctfkit/ctfkit/redemption"
	"github.com/ctfkit/ctfkit/store"
)

// ErrNotSupported is returned by HandleRequest for challenges without an
// interactive surface.
var ErrNotSupported = errors.New("challenge has no request handler")

// Response is a trusted markup or data fragment returned to the external
// request router, consumed verbatim.
type Response struct {
	Status int
	Body   string
}

// Challenge is the capability contract every challenge kind satisfies.
// Individual capability evaluations may fail; callers isolate each failure
// to that instance and capability.
type Challenge interface {
	// Title must not block; it is read on every listing.
	Title() string
	// Description is evaluated per viewing user and may return unsafe HTML.
	Description(ctx context.Context, user string, solved bool) (string, error)
	// Start brings up any per-challenge side process. Default no-op.
	Start(ctx context.Context) error
	// Stop tears down whatever Start brought up. Default no-op.
	Stop(ctx context.Context) error
	// Visible gates whether an unsolved challenge appears in a user's
	// listing. Default true.
	Visible(ctx context.Context, user string) (bool, error)
	// HandleRequest is the sole generic extension point for interactive
	// challenges. Default rejects with ErrNotSupported.
	HandleRequest(ctx context.Context, user string, req *http.Request) (*Response, error)
	// Tags is an optional list of labels.
	Tags() []string
}

// Env carries the shared collaborators a challenge instance may use. It is
// threaded explicitly into every constructor instead of living in process
// globals.
type Env struct {
	Store    *store.Store
	Flags    *redemption.Engine
	Log      *zap.Logger
	Settings map[string]string
}

// Logger returns the environment logger, never nil.
func (e *Env) Logger() *zap.Logger {
	if e == nil || e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// Base provides the default behavior for optional capabilities plus the
// utility surface challenges build on. Concrete kinds embed it and must
// implement Title and Description themselves.
type Base struct {
	cid string
	env *Env
}

// NewBase returns a Base bound to the full configured cid.
func NewBase(cid string, env *Env) Base {
	return Base{cid: cid, env: env}
}

// ID returns the full configured challenge identifier.
func (b *Base) ID() string { return b.cid }

// Args returns the raw argument string from the cid, e.g. "foo bar" for
// "Kind(foo bar)".
func (b *Base) Args() string { return ArgsOf(b.cid) }

// Env returns the shared environment the instance was constructed with.
func (b *Base) Env() *Env { return b.env }

func (b *Base) Start(ctx context.Context) error { return nil }

func (b *Base) Stop(ctx context.Context) error { return nil }

func (b *Base) Visible(ctx context.Context, user string) (bool, error) { return true, nil }

func (b *Base) HandleRequest(ctx context.Context, user string, req *http.Request) (*Response, error) {
	return nil, ErrNotSupported
}

func (b *Base) Tags() []string { return nil }

// Active reports whether the current time is within the challenge's stored
// activity window. The read is served from the store's invalidated-on-edit
// cache, so administrative window edits are observed without restarting.
func (b *Base) Active(ctx context.Context) (bool, error) {
	return b.env.Store.ChallengeActive(ctx, b.cid, time.Now())
}

// Logger returns a logger namespaced under the challenge id.
func (b *Base) Logger() *zap.Logger {
	return b.env.Logger().Named(b.cid)
}

// LogEvent appends an audit event attributed to this challenge.
func (b *Base) LogEvent(ctx context.Context, ip, eventType, data, uid string) error {
	return b.env.Store.AppendEvent(ctx, store.Event{
		IP:   ip,
		Type: eventType,
		Data: data,
		CID:  b.cid,
		UID:  uid,
	})
}

type mintOptions struct {
	maxSubmissions int
	token          string
	stage          int
	uid            string
}

// MintOption configures MintFlag.
type MintOption func(*mintOptions)

// WithMaxSubmissions sets the flag's submission cap. Default 1.
func WithMaxSubmissions(n int) MintOption {
	return func(o *mintOptions) { o.maxSubmissions = n }
}

// WithToken supplies an explicit token instead of a generated one.
func WithToken(token string) MintOption {
	return func(o *mintOptions) { o.token = token }
}

// WithStage mints the flag into the given stage's namespace. Default 1.
func WithStage(stage int) MintOption {
	return func(o *mintOptions) { o.stage = stage }
}

// WithUser attributes the minting events to a user.
func WithUser(uid string) MintOption {
	return func(o *mintOptions) { o.uid = uid }
}

// MintFlag creates a flag redeemable for this challenge and logs its
// creation. If the challenge is currently inactive no flag is minted; a
// non-redeemable sentinel token is returned and a flag-inactive event
// recorded instead.
//
// Challenges that mint flags automatically at startup should use
// Engine.CreateFlag directly to skip the audit events.
func (b *Base) MintFlag(ctx context.Context, ip string, opts ...MintOption) (string, error) {
	o := mintOptions{maxSubmissions: 1, stage: 1}
	for _, opt := range opts {
		opt(&o)
	}

	active, err := b.Active(ctx)
	if err != nil {
		return "", err
	}
	if !active {
		if err := b.LogEvent(ctx, ip, store.EventFlagInactive, "", o.uid); err != nil {
			b.Logger().Warn("failed to log flag-inactive event", zap.Error(err))
		}
		return redemption.SentinelInactive, nil
	}

	token, err := b.env.Flags.CreateFlag(ctx, Staged(b.cid, o.stage), o.maxSubmissions, o.token)
	if err != nil {
		return "", err
	}
	if err := b.LogEvent(ctx, ip, store.EventFlagCreate, token, o.uid); err != nil {
		b.Logger().Warn("failed to log flag-create event", zap.Error(err))
	}
	return token, nil
}
