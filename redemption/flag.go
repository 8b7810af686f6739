// Package redemption implements flag issuance and the transactional
// submission state machine enforcing the competition fairness invariants.
package redemption

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

// SentinelInactive is the non-redeemable token returned when a challenge
// tries to mint a flag outside its activity window.
const SentinelInactive = "__flag__{challenge inactive}"

var hexRunRe = regexp.MustCompile(`[0-9a-f]{32}`)

// NewToken generates a fresh flag token: 128 bits of randomness rendered as
// lowercase hex in the canonical wrapped form.
func NewToken() string {
	payload := make([]byte, 16)
	if _, err := rand.Read(payload); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return "__flag__{" + hex.EncodeToString(payload) + "}"
}

// Normalize fixes up slightly misformatted flag input from manual entry:
// whitespace is stripped, case lowered, and any 32-hex-character run is
// rewritten into the canonical wrapped form. Input without such a run
// passes through unmodified.
func Normalize(raw string) string {
	filtered := strings.ToLower(strings.ReplaceAll(raw, " ", ""))
	if match := hexRunRe.FindString(filtered); match != "" {
		return "__flag__{" + match + "}"
	}
	return raw
}
