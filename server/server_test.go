package server_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	_ "github.com/ctfkit/ctfkit/builtin"
	"github.com/ctfkit/ctfkit/logging"
	"github.com/ctfkit/ctfkit/server"
	"github.com/ctfkit/ctfkit/store"
)

func TestServerStartStop(t *testing.T) {
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	cfg := server.Config{Database: filepath.Join(t.TempDir(), "ctf.db")}

	// Seed one challenge of a kind the builtin package registers.
	st, err := store.Open(cfg.Database)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, st.PutChallenge(ctx, store.Challenge{
		CID:    "Form(smoke)",
		Window: store.Window{Start: now.Add(-time.Hour), Stop: now.Add(time.Hour)},
	}))
	require.NoError(t, st.Close())

	srv, err := server.New(ctx, cfg)
	require.NoError(t, err)
	defer srv.Close()
	require.Equal(t, []string{"Form(smoke)"}, srv.Challenges().CIDs())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- srv.Start(runCtx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerFailsOnUnknownKind(t *testing.T) {
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	cfg := server.Config{Database: filepath.Join(t.TempDir(), "ctf.db")}

	st, err := store.Open(cfg.Database)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, st.PutChallenge(ctx, store.Challenge{
		CID:    "NoSuchKind(x)",
		Window: store.Window{Start: now.Add(-time.Hour), Stop: now.Add(time.Hour)},
	}))
	require.NoError(t, st.Close())

	_, err = server.New(ctx, cfg)
	require.Error(t, err)
	require.ErrorContains(t, err, "NoSuchKind")
}
