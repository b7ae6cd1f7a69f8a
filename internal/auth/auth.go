// Package auth implements the challenge/response authentication hooks
// spec.md §1 calls out: "No built-in authentication transport
// (challenge/response hooks are defined; credential storage is
// external)". The core only ever sees a Challenger; credential
// material lives in internal/config's Credentials, loaded by the
// surrounding tooling and handed in at construction time.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Challenger issues a nonce for a principal and verifies a response
// against it. A session's ENTER-hook (run before READy) calls this;
// the core has no knowledge of how the secret is stored or derived.
type Challenger interface {
	// Challenge returns a fresh nonce for principal to sign.
	Challenge(principal string) (nonce string, err error)
	// Verify checks response against the nonce previously issued for
	// principal.
	Verify(principal, nonce, response string) (ok bool, err error)
}

// HMACChallenger is the reference Challenger: an HMAC-SHA256 challenge
// over a per-principal shared secret, supplied by a SecretLookup the
// caller wires to whatever credential store it uses (spec.md's
// external collaborator).
type HMACChallenger struct {
	SecretLookup func(principal string) (secret []byte, ok bool)
}

// Challenge mints a random 16-byte nonce, hex-encoded.
func (c *HMACChallenger) Challenge(principal string) (string, error) {
	if _, ok := c.SecretLookup(principal); !ok {
		return "", fmt.Errorf("auth: unknown principal %q", principal)
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Verify recomputes HMAC-SHA256(secret, nonce) and compares it to
// response in constant time.
func (c *HMACChallenger) Verify(principal, nonce, response string) (bool, error) {
	secret, ok := c.SecretLookup(principal)
	if !ok {
		return false, fmt.Errorf("auth: unknown principal %q", principal)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(nonce))
	want := hex.EncodeToString(mac.Sum(nil))

	got, err := hex.DecodeString(response)
	if err != nil {
		return false, nil
	}
	wantBytes, _ := hex.DecodeString(want)
	return subtle.ConstantTimeCompare(got, wantBytes) == 1, nil
}
