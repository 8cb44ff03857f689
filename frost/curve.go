package frost

import (
	"crypto/sha256"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// basePointMult returns k*G.
func basePointMult(k *secp256k1.ModNScalar) *secp256k1.PublicKey {
	var result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(k, &result)
	result.ToAffine()
	return secp256k1.NewPublicKey(&result.X, &result.Y)
}

// scalarMult returns k*P.
func scalarMult(k *secp256k1.ModNScalar, p *secp256k1.PublicKey) *secp256k1.PublicKey {
	var jp, result secp256k1.JacobianPoint
	p.AsJacobian(&jp)
	secp256k1.ScalarMultNonConst(k, &jp, &result)
	result.ToAffine()
	return secp256k1.NewPublicKey(&result.X, &result.Y)
}

// addPoints returns a+b.
func addPoints(a, b *secp256k1.PublicKey) *secp256k1.PublicKey {
	var ja, jb, sum secp256k1.JacobianPoint
	a.AsJacobian(&ja)
	b.AsJacobian(&jb)
	secp256k1.AddNonConst(&ja, &jb, &sum)
	sum.ToAffine()
	return secp256k1.NewPublicKey(&sum.X, &sum.Y)
}

// negatePoint returns -P (same x, negated y).
func negatePoint(p *secp256k1.PublicKey) *secp256k1.PublicKey {
	var jp secp256k1.JacobianPoint
	p.AsJacobian(&jp)
	negY := new(secp256k1.FieldVal).Set(&jp.Y).Negate(1).Normalize()
	return secp256k1.NewPublicKey(&jp.X, negY)
}

// negateScalar returns -s mod n without mutating s.
func negateScalar(s *secp256k1.ModNScalar) secp256k1.ModNScalar {
	var out secp256k1.ModNScalar
	out.Set(s)
	out.Negate()
	return out
}

// isOddY reports whether p's y-coordinate is odd, the parity BIP-340/341
// repeatedly normalize away.
func isOddY(p *secp256k1.PublicKey) bool {
	var jp secp256k1.JacobianPoint
	p.AsJacobian(&jp)
	return jp.Y.IsOdd()
}

// randomScalar draws a uniformly random, non-zero scalar mod n from rand.
func randomScalar(rand io.Reader) (secp256k1.ModNScalar, error) {
	var buf [32]byte
	for {
		if _, err := io.ReadFull(rand, buf[:]); err != nil {
			return secp256k1.ModNScalar{}, err
		}
		var s secp256k1.ModNScalar
		overflow := s.SetBytes(&buf)
		if overflow == 0 && !s.IsZero() {
			return s, nil
		}
	}
}

// taggedHash implements the BIP-340 tagged hash construction:
// SHA256(SHA256(tag) || SHA256(tag) || msg...).
func taggedHash(tag string, msgs ...[]byte) [32]byte {
	tagHash := sha256.Sum256([]byte(tag))
	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])
	for _, m := range msgs {
		h.Write(m)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// scalarFromTaggedHash reduces a tagged hash into a scalar mod n. Used for
// Fiat-Shamir challenges and binding factors, where a small, ciphersuite-
// defined bias from the reduction is acceptable.
func scalarFromTaggedHash(tag string, msgs ...[]byte) secp256k1.ModNScalar {
	digest := taggedHash(tag, msgs...)
	var s secp256k1.ModNScalar
	s.SetByteSlice(digest[:])
	return s
}

// xOnlyBytes serializes p's x-coordinate only, the encoding BIP-340/341 use
// for public keys and nonces.
func xOnlyBytes(p *secp256k1.PublicKey) [32]byte {
	var jp secp256k1.JacobianPoint
	p.AsJacobian(&jp)
	return *jp.X.Bytes()
}

// XOnly exposes a public key's x-coordinate only, the encoding every
// caller outside this package needs to build scriptPubKeys and addresses.
func XOnly(p *secp256k1.PublicKey) [32]byte {
	return xOnlyBytes(p)
}

// TapTweak computes t = H_TapTweak(P) for an empty merkle root, per BIP-341.
func TapTweak(internalKeyX [32]byte) secp256k1.ModNScalar {
	return scalarFromTaggedHash("TapTweak", internalKeyX[:])
}

// EvenY returns p if its y is even, or -p otherwise, plus whether a
// negation was applied. Every Taproot internal/output key must have even y.
func EvenY(p *secp256k1.PublicKey) (*secp256k1.PublicKey, bool) {
	if isOddY(p) {
		return negatePoint(p), true
	}
	return p, false
}
