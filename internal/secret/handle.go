// Package secret wraps values bound to a `secret`-flagged parameter
// (spec.md §3) so they cannot be accidentally echoed: the tokenizer's
// hidden-argument form `$<...>` (spec.md §4.1) and any leaf output
// declared secret both resolve to a Handle instead of a plain string.
package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const mask = "***"

// Handle wraps a secret value. Every formatting path (String, Format,
// MarshalJSON) renders the display ID, never the raw value; callers
// that genuinely need the raw value (a leaf's run method) call Reveal.
type Handle struct {
	value     string
	displayID string
}

// New wraps value, minting a fresh random display ID.
func New(value string) *Handle {
	var id [8]byte
	if _, err := rand.Read(id[:]); err != nil {
		panic(fmt.Sprintf("secret: failed to mint display id: %v", err))
	}
	return &Handle{value: value, displayID: "sec:" + encodeBase58(id)}
}

// Reveal returns the wrapped value. The only sanctioned callers are a
// leaf's own run method and the session's logging/scrub setup, which
// registers the raw value with the scrubber before anything is written
// to a client or log sink.
func (h *Handle) Reveal() string { return h.value }

// ID returns the opaque display token shown in place of the value.
func (h *Handle) ID() string { return h.displayID }

// Mask returns the value with n leading/trailing characters visible
// and the middle replaced by "***"; used for `MASKed` diagnostics
// rather than the fully-opaque ID.
func (h *Handle) Mask(n int) string {
	if len(h.value) <= n*2 {
		return mask
	}
	return h.value[:n] + mask + h.value[len(h.value)-n:]
}

func (h *Handle) Len() int { return len(h.value) }

// Equal compares two handles in constant time, without ever branching
// on the unmasked value's content.
func (h *Handle) Equal(other *Handle) bool {
	if h.Len() != other.Len() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(h.value), []byte(other.value)) == 1
}

// Fingerprint computes a keyed BLAKE2b digest of the value, used by
// internal/scrub to recognize the raw value inside arbitrary output
// without ever storing the value itself alongside the placeholder.
func (h *Handle) Fingerprint(key []byte) string {
	hash, err := blake2b.New256(key)
	if err != nil {
		panic(fmt.Sprintf("secret: blake2b init failed: %v", err))
	}
	hash.Write([]byte(h.value))
	return fmt.Sprintf("%x", hash.Sum(nil))
}

func (h *Handle) String() string { return h.displayID }

func (h *Handle) Format(f fmt.State, verb rune) {
	_, _ = fmt.Fprint(f, h.displayID)
}

func (h *Handle) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.displayID + `"`), nil
}

func (h *Handle) MarshalText() ([]byte, error) {
	return []byte(h.displayID), nil
}
