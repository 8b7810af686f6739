package challenge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctfkit/ctfkit/challenge"
)

type titled struct {
	challenge.Base
}

func (c *titled) Title() string { return "titled" }

func (c *titled) Description(ctx context.Context, user string, solved bool) (string, error) {
	return "desc", nil
}

func newTitled(cid string, env *challenge.Env) challenge.Challenge {
	return &titled{Base: challenge.NewBase(cid, env)}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()
	reg := challenge.NewRegistry()
	reg.Register("Titled", newTitled)

	for _, cid := range []string{"Titled", "Titled(foo)", "Titled(a b c)"} {
		ctor, err := reg.Resolve(cid)
		require.NoError(t, err, cid)
		require.NotNil(t, ctor)
	}

	_, err := reg.Resolve("Nope(foo)")
	require.ErrorIs(t, err, challenge.ErrUnknownKind)
}

func TestRegistryDuplicateKindPanics(t *testing.T) {
	t.Parallel()
	reg := challenge.NewRegistry()
	reg.Register("Titled", newTitled)
	require.Panics(t, func() {
		reg.Register("Titled", newTitled)
	})
}

func TestRegistryInstantiatePassesFullCID(t *testing.T) {
	t.Parallel()
	reg := challenge.NewRegistry()
	reg.Register("Titled", newTitled)

	ch, err := reg.Instantiate("Titled(foo bar)", nil)
	require.NoError(t, err)

	inst, ok := ch.(*titled)
	require.True(t, ok)
	require.Equal(t, "Titled(foo bar)", inst.ID())
	require.Equal(t, "foo bar", inst.Args())
}

func TestRegistryKinds(t *testing.T) {
	t.Parallel()
	reg := challenge.NewRegistry()
	reg.Register("B", newTitled)
	reg.Register("A", newTitled)
	require.Equal(t, []string{"A", "B"}, reg.Kinds())
}
