package builtin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ctfkit/ctfkit/challenge"
	"github.com/ctfkit/ctfkit/redemption"
	"github.com/ctfkit/ctfkit/store"
)

const formCID = "Form(demo)"

func newForm(t *testing.T) (challenge.Challenge, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ctf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	now := time.Now()
	require.NoError(t, s.PutChallenge(context.Background(), store.Challenge{
		CID:    formCID,
		Window: store.Window{Start: now.Add(-time.Hour), Stop: now.Add(time.Hour)},
	}))
	require.NoError(t, s.CreateUser(context.Background(), "alice", "hash"))

	env := &challenge.Env{
		Store: s,
		Flags: redemption.NewEngine(s),
		Log:   zaptest.NewLogger(t),
	}
	ch, err := challenge.DefaultRegistry().Instantiate(formCID, env)
	require.NoError(t, err)
	return ch, s
}

func postJSON(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/challenge/"+formCID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestFormRegistered(t *testing.T) {
	t.Parallel()
	_, err := challenge.DefaultRegistry().Resolve("Form")
	require.NoError(t, err)
}

func TestFormRightAnswerMintsRedeemableFlag(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ch, s := newForm(t)
	ctx := context.Background()

	resp, err := ch.HandleRequest(ctx, "alice", postJSON(`{"ip": "127.0.0.1"}`))
	req.NoError(err)
	req.Equal(http.StatusOK, resp.Status)

	var payload struct {
		Message string `json:"message"`
	}
	req.NoError(json.Unmarshal([]byte(resp.Body), &payload))
	req.Contains(payload.Message, "__flag__{")

	// The minted flag redeems against the same challenge.
	engine := redemption.NewEngine(s)
	cid, err := engine.Submit(ctx, payload.Message, "alice", "198.51.100.7", false)
	req.NoError(err)
	req.Equal(formCID, cid)
}

func TestFormWrongAnswerCountsAttempts(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ch, s := newForm(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resp, err := ch.HandleRequest(ctx, "alice", postJSON(`{"ip": "10.0.0.1"}`))
		req.NoError(err)
		req.Equal(http.StatusBadRequest, resp.Status)
		req.Equal("There are better ones.", resp.Body)
	}

	count, err := s.GetData(ctx, formCID, "wrong_attempts")
	req.NoError(err)
	req.Equal("3", count)
}

func TestFormRejectsNonPost(t *testing.T) {
	t.Parallel()
	ch, _ := newForm(t)

	httpReq := httptest.NewRequest(http.MethodGet, "/challenge/"+formCID, nil)
	resp, err := ch.HandleRequest(context.Background(), "alice", httpReq)
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.Status)
}

func TestFormRejectsMalformedBody(t *testing.T) {
	t.Parallel()
	ch, _ := newForm(t)

	resp, err := ch.HandleRequest(context.Background(), "alice", postJSON(`not json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.Status)
	require.Equal(t, "Invalid JSON.", resp.Body)
}
