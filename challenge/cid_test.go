package challenge_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctfkit/ctfkit/challenge"
)

func TestKindOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		cid  string
		want string
	}{
		{"Form", "Form"},
		{"Form(foo bar)", "Form"},
		{"Stage(Form)", "Stage"},
		{"Stage(Stage(Form(x)))", "Stage"},
		{"", ""},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.cid, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, challenge.KindOf(tc.cid))
			// Resolution is deterministic.
			require.Equal(t, challenge.KindOf(tc.cid), challenge.KindOf(tc.cid))
		})
	}
}

func TestArgsOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		cid  string
		want string
	}{
		{"Form", ""},
		{"Form()", ""},
		{"Form(foo bar)", "foo bar"},
		{"Form(a(b))", "a(b)"},
		{"Stage(Form(x))", "Form(x)"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.cid, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, challenge.ArgsOf(tc.cid))
		})
	}
}

func TestStaged(t *testing.T) {
	t.Parallel()
	require.Equal(t, "Form(x)", challenge.Staged("Form(x)", 1))
	require.Equal(t, "Stage(Form(x))", challenge.Staged("Form(x)", 2))
	require.Equal(t, "Stage(Stage(Form(x)))", challenge.Staged("Form(x)", 3))
}
