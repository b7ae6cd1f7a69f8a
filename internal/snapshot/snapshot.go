// Package snapshot implements deterministic CBOR encoding of one
// dispatch result, for the `--output-format cbor` recording mode
// spec.md §6 lists alongside `--output`. Adapted from the teacher's
// canonical-plan hashing pattern
// (opal-lang-opal/core/planfmt/canonical.go): build a canonical,
// field-ordered struct, encode it with cbor.CanonicalEncOptions for
// byte-for-byte stability, and make that encoding hashable so repeated
// runs against the same command stream produce identical recordings.
package snapshot

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/scpid/scpid/internal/reply"
)

// Version is the canonical snapshot format version, bumped on any
// incompatible field change.
const Version uint8 = 1

// Reply is the canonical, serialization-stable form of one reply line
// (spec.md §4.7): either a successful OK/NEXT with its ordered values,
// or an ERRor with its qualified id and attributes.
type Reply struct {
	Version uint8
	Kind    string // "OK", "NEXT", "ERR"
	Index   string
	Values  []Value  `cbor:",omitempty"`
	ErrID   string   `cbor:",omitempty"`
	ErrAttrs []Attr  `cbor:",omitempty"`
}

// Value mirrors reply.Value in canonical field order.
type Value struct {
	Name string
	Text string
}

// Attr is one ERRor attribute, name-sorted for determinism.
type Attr struct {
	Name  string
	Value string
}

// FromOK builds a canonical Reply for a successful OK line.
func FromOK(index string, values []reply.Value) *Reply {
	vs := make([]Value, len(values))
	for i, v := range values {
		vs[i] = Value{Name: v.Name, Text: v.Text}
	}
	return &Reply{Version: Version, Kind: "OK", Index: index, Values: vs}
}

// FromErr builds a canonical Reply for an ERRor line, sorting
// attributes by name so two runs that built the same qualified error
// from a map produce identical bytes.
func FromErr(index, qualifiedID string, attrs map[string]string) *Reply {
	names := make([]string, 0, len(attrs))
	for n := range attrs {
		names = append(names, n)
	}
	sort.Strings(names)
	as := make([]Attr, 0, len(names))
	for _, n := range names {
		as = append(as, Attr{Name: n, Value: attrs[n]})
	}
	return &Reply{Version: Version, Kind: "ERR", Index: index, ErrID: qualifiedID, ErrAttrs: as}
}

// MarshalBinary produces the deterministic CBOR encoding of r.
func (r *Reply) MarshalBinary() ([]byte, error) {
	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("snapshot: building CBOR encoder: %w", err)
	}
	type replyAlias Reply
	data, err := encMode.Marshal((*replyAlias)(r))
	if err != nil {
		return nil, fmt.Errorf("snapshot: encoding reply: %w", err)
	}
	return data, nil
}

// Hash returns the SHA-256 digest of r's canonical encoding, usable to
// compare two recordings for byte-identical replay without storing
// either in full.
func (r *Reply) Hash() ([32]byte, error) {
	data, err := r.MarshalBinary()
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}
