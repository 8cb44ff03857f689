package frost

import (
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// NoncePair is the secret Round-1 output: a hiding nonce and a binding
// nonce. Single-use; Zeroize must be called on every exit path once the
// corresponding Round-2 share has been emitted (or the ceremony aborts).
type NoncePair struct {
	Hiding  secp256k1.ModNScalar
	Binding secp256k1.ModNScalar
}

// NonceCommitment is the public Round-1 broadcast: the two points derived
// from a NoncePair.
type NonceCommitment struct {
	Hiding  *secp256k1.PublicKey
	Binding *secp256k1.PublicKey
}

// GenerateNoncePair draws a fresh hiding/binding nonce pair and its public
// commitment. Must be called exactly once per signer per session.
func GenerateNoncePair(rand io.Reader) (NoncePair, NonceCommitment, error) {
	hiding, err := randomScalar(rand)
	if err != nil {
		return NoncePair{}, NonceCommitment{}, err
	}
	binding, err := randomScalar(rand)
	if err != nil {
		return NoncePair{}, NonceCommitment{}, err
	}

	pair := NoncePair{Hiding: hiding, Binding: binding}
	commitment := NonceCommitment{
		Hiding:  basePointMult(&pair.Hiding),
		Binding: basePointMult(&pair.Binding),
	}
	return pair, commitment, nil
}

// Zeroize overwrites both nonce scalars with zero. Called on every exit from
// CollectingShares per the nonce-hygiene invariant: after a ceremony
// terminates, no signer's nonce buffer may compare non-zero.
func (n *NoncePair) Zeroize() {
	n.Hiding.Zero()
	n.Binding.Zero()
}

// IsZero reports whether both nonce scalars are zero, used by tests to
// assert nonce hygiene after a ceremony ends.
func (n *NoncePair) IsZero() bool {
	return n.Hiding.IsZero() && n.Binding.IsZero()
}
