// Package actionhash computes deterministic fingerprints of native contract
// actions, used as keys into a per-block signature map. The fingerprint is
// a content digest, not a cryptographic signature: stability across
// processes and schema versions matters more than collision resistance
// against an adversary.
package actionhash

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/telosevm/shipcore/types"
)

// Mode selects the fingerprint encoding. It is fixed per deployment: mixing
// modes between producer and consumer of a signature map produces silent
// misses, never a decode error.
type Mode int

const (
	// Release hashes the concatenated account, name, authorization and
	// data bytes of the action and emits lowercase hex. This is the default for production deployments.
	Release Mode = iota

	// Debug emits a human-readable dotted string, trading fingerprint
	// length for operator-visible diagnostics.
	Debug
)

// Hasher computes fingerprints in a single fixed Mode.
type Hasher struct {
	mode Mode
}

// New returns a Hasher fixed to mode for the lifetime of the process.
func New(mode Mode) *Hasher {
	return &Hasher{mode: mode}
}

// Fingerprint returns the deterministic fingerprint of act under the
// Hasher's mode.
func (h *Hasher) Fingerprint(act types.Action) string {
	if h.mode == Debug {
		return debugFingerprint(act)
	}
	return releaseFingerprint(act)
}

// debugFingerprint produces account.name.actor1.permission1...hex(sha1(data)).
func debugFingerprint(act types.Action) string {
	var b strings.Builder
	b.WriteString(act.Account)
	b.WriteByte('.')
	b.WriteString(act.Name)
	for _, auth := range act.Authorization {
		b.WriteByte('.')
		b.WriteString(auth.Actor)
		b.WriteByte('.')
		b.WriteString(auth.Permission)
	}
	b.WriteByte('.')
	sum := sha1.Sum(act.Data)
	b.WriteString(hex.EncodeToString(sum[:]))
	return b.String()
}

// releaseFingerprint hashes the concatenation of
// account || name || actor_i || permission_i || ... || data in order, and
// emits lowercase hex.
func releaseFingerprint(act types.Action) string {
	h := sha1.New()
	h.Write([]byte(act.Account))
	h.Write([]byte(act.Name))
	for _, auth := range act.Authorization {
		h.Write([]byte(auth.Actor))
		h.Write([]byte(auth.Permission))
	}
	h.Write(act.Data)
	return hex.EncodeToString(h.Sum(nil))
}
