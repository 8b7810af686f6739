package challenge_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ctfkit/ctfkit/challenge"
	"github.com/ctfkit/ctfkit/redemption"
	"github.com/ctfkit/ctfkit/store"
)

const testIP = "203.0.113.9"

var canonicalToken = regexp.MustCompile(`^__flag__\{[0-9a-f]{32}\}$`)

func TestBaseActive(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	cfg := h.add(t, "Script(live)", &scriptConfig{visible: true})
	h.newSet(t)

	active, err := cfg.inst.Active(ctx)
	req.NoError(err)
	req.True(active)

	// Window edits are observed without a restart.
	now := time.Now()
	req.NoError(h.store.PutChallenge(ctx, store.Challenge{
		CID:    "Script(live)",
		Window: store.Window{Start: now.Add(-2 * time.Hour), Stop: now.Add(-time.Hour)},
	}))
	active, err = cfg.inst.Active(ctx)
	req.NoError(err)
	req.False(active)
}

func TestMintFlag(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	cfg := h.add(t, "Script(mint)", &scriptConfig{visible: true})
	h.newSet(t)
	req.NoError(h.store.CreateUser(ctx, "alice", "hash"))

	token, err := cfg.inst.MintFlag(ctx, testIP, challenge.WithUser("alice"))
	req.NoError(err)
	req.Regexp(canonicalToken, token)

	_, cid, err := h.store.ResolveFlag(ctx, token)
	req.NoError(err)
	req.Equal("Script(mint)", cid)

	events, err := h.store.Events(ctx, 1)
	req.NoError(err)
	req.Equal(store.EventFlagCreate, events[0].Type)
	req.Equal(token, events[0].Data)
	req.Equal("alice", events[0].UID)
	req.Equal("Script(mint)", events[0].CID)
}

func TestMintFlagInactiveChallenge(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	now := time.Now()
	req.NoError(h.store.PutChallenge(ctx, store.Challenge{
		CID:    "Script(over)",
		Window: store.Window{Start: now.Add(-2 * time.Hour), Stop: now.Add(-time.Hour)},
	}))
	cfg := &scriptConfig{visible: true}
	h.scripts["Script(over)"] = cfg
	h.newSet(t)

	token, err := cfg.inst.MintFlag(ctx, testIP)
	req.NoError(err)
	req.Equal(redemption.SentinelInactive, token)

	// No real flag is minted; the refusal is audited instead.
	_, _, err = h.store.ResolveFlag(ctx, token)
	req.ErrorIs(err, store.ErrNotFound)

	events, err := h.store.Events(ctx, 1)
	req.NoError(err)
	req.Equal(store.EventFlagInactive, events[0].Type)
}

func TestMintFlagStageNamespace(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	cfg := h.add(t, "Script(multi)", &scriptConfig{visible: true})
	h.newSet(t)

	// The stage namespace is its own configured challenge row; added after
	// the set resolves so only the base cid gets an instance.
	now := time.Now()
	req.NoError(h.store.PutChallenge(ctx, store.Challenge{
		CID:    "Stage(Script(multi))",
		Window: store.Window{Start: now.Add(-time.Hour), Stop: now.Add(time.Hour)},
	}))

	token, err := cfg.inst.MintFlag(ctx, testIP, challenge.WithStage(2))
	req.NoError(err)

	_, cid, err := h.store.ResolveFlag(ctx, token)
	req.NoError(err)
	req.Equal("Stage(Script(multi))", cid)
}

func TestMintFlagExplicitTokenAndCap(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	cfg := h.add(t, "Script(custom)", &scriptConfig{visible: true})
	h.newSet(t)

	token, err := cfg.inst.MintFlag(ctx, testIP,
		challenge.WithToken("__flag__{special}"),
		challenge.WithMaxSubmissions(5),
	)
	req.NoError(err)
	req.Equal("__flag__{special}", token)
}
