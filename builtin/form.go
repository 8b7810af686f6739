// Package builtin contains challenge kinds shipped with the core. Linking
// this package registers them.
package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ctfkit/ctfkit/challenge"
	"github.com/ctfkit/ctfkit/store"
)

func init() {
	challenge.Register("Form", NewForm)
}

// Form is a minimal interactive challenge: a form that mints a flag for the
// right answer. It doubles as the reference for writing request-handling
// challenge kinds.
type Form struct {
	challenge.Base
}

// NewForm constructs a Form instance for the given cid.
func NewForm(cid string, env *challenge.Env) challenge.Challenge {
	return &Form{Base: challenge.NewBase(cid, env)}
}

func (f *Form) Title() string { return "The Fabulous Form" }

func (f *Form) Tags() []string { return []string{"intro"} }

func (f *Form) Description(ctx context.Context, user string, solved bool) (string, error) {
	return `
<h6>What's your favorite IP address?</h6>
<form>
    <input name="ip" type="text" placeholder="0.0.0.0"/>
    <button>Submit</button>
    <div class="response"></div>
</form>
`, nil
}

func (f *Form) HandleRequest(ctx context.Context, user string, req *http.Request) (*challenge.Response, error) {
	if req.Method != http.MethodPost {
		return &challenge.Response{Status: http.StatusMethodNotAllowed, Body: "POST only."}, nil
	}

	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return &challenge.Response{Status: http.StatusBadRequest, Body: "Invalid JSON."}, nil
	}

	if body.IP != "127.0.0.1" {
		if err := f.countAttempt(ctx); err != nil {
			return nil, err
		}
		return &challenge.Response{Status: http.StatusBadRequest, Body: "There are better ones."}, nil
	}

	token, err := f.MintFlag(ctx, challenge.ClientIP(req), challenge.WithUser(user))
	if err != nil {
		return nil, err
	}
	msg, err := json.Marshal(map[string]string{"message": token})
	if err != nil {
		return nil, err
	}
	return &challenge.Response{Status: http.StatusOK, Body: string(msg)}, nil
}

// countAttempt keeps a running tally of wrong answers in the challenge's
// key/value store.
func (f *Form) countAttempt(ctx context.Context) error {
	attempts := 0
	value, err := f.Env().Store.GetData(ctx, f.ID(), "wrong_attempts")
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("reading attempt count: %w", err)
	default:
		attempts, _ = strconv.Atoi(value)
	}
	return f.Env().Store.SetData(ctx, f.ID(), "wrong_attempts", strconv.Itoa(attempts+1))
}
