package frost

import (
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// GroupMaterial is the output of trusted-dealer key generation: the group
// verifying key, every participant's verifying share, and every
// participant's secret signing share. Only the dealer ever holds all three
// together; once distributed, a signer keeps just its own signing share.
type GroupMaterial struct {
	GroupPublicKey  *secp256k1.PublicKey
	VerifyingShares map[ParticipantID]*secp256k1.PublicKey
	SigningShares   map[ParticipantID]*secp256k1.ModNScalar
}

// Dealer runs trusted-dealer Shamir secret sharing over secp256k1: it draws
// a random degree-(threshold-1) polynomial whose constant term is the group
// private scalar, then evaluates it at each participant's identifier to
// produce that participant's share. DKG is explicitly out of scope; this is
// the "trusted dealer subroutine" the surrounding spec assumes exists.
func Dealer(threshold, total int, rand io.Reader) (*GroupMaterial, error) {
	if threshold < 1 || total < 1 || threshold > total || total > 255 {
		return nil, fmt.Errorf("dealer: threshold=%d total=%d out of range", threshold, total)
	}

	coeffs := make([]secp256k1.ModNScalar, threshold)
	for i := range coeffs {
		s, err := randomScalar(rand)
		if err != nil {
			return nil, fmt.Errorf("dealer: draw coefficient %d: %w", i, err)
		}
		coeffs[i] = s
	}

	// Taproot requires an even-Y group key. Negating every coefficient
	// negates the whole polynomial (and so every share) in lockstep,
	// keeping Shamir reconstruction consistent with the flipped key.
	if isOddY(basePointMult(&coeffs[0])) {
		for i := range coeffs {
			coeffs[i] = negateScalar(&coeffs[i])
		}
	}

	groupPublicKey := basePointMult(&coeffs[0])

	shares := make(map[ParticipantID]*secp256k1.ModNScalar, total)
	verifying := make(map[ParticipantID]*secp256k1.PublicKey, total)
	for i := 1; i <= total; i++ {
		id := ParticipantID(i)
		x := id.Scalar()
		share := evaluatePolynomial(coeffs, &x)
		shares[id] = &share
		verifying[id] = basePointMult(&share)
	}

	return &GroupMaterial{
		GroupPublicKey:  groupPublicKey,
		VerifyingShares: verifying,
		SigningShares:   shares,
	}, nil
}

// evaluatePolynomial evaluates coeffs (low-degree term first) at x using
// Horner's method, all arithmetic mod the secp256k1 group order.
func evaluatePolynomial(coeffs []secp256k1.ModNScalar, x *secp256k1.ModNScalar) secp256k1.ModNScalar {
	var acc secp256k1.ModNScalar
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc.Mul(x)
		acc.Add(&coeffs[i])
	}
	return acc
}

// LagrangeCoefficient computes lambda_i = prod_{j in ids, j != i} j/(j-i),
// the weight that turns participant i's share into its contribution to the
// secret at x=0. Any t distinct participant ids produce the secret; any
// t-1 do not, since t-1 points do not determine a degree-(t-1) polynomial.
// Fails if ids contains the same participant id more than once.
func LagrangeCoefficient(id ParticipantID, ids []ParticipantID) (secp256k1.ModNScalar, error) {
	var num, den secp256k1.ModNScalar
	num.SetInt(1)
	den.SetInt(1)

	xi := id.Scalar()

	seen := make(map[ParticipantID]bool, len(ids))
	for _, other := range ids {
		if seen[other] {
			return secp256k1.ModNScalar{}, fmt.Errorf("lagrange: duplicate participant id %d", other)
		}
		seen[other] = true
		if other == id {
			continue
		}
		xj := other.Scalar()

		num.Mul(&xj)

		diff := xj
		diff.Add(negatePtr(&xi))
		if diff.IsZero() {
			return secp256k1.ModNScalar{}, fmt.Errorf("lagrange: duplicate participant id %d", other)
		}
		den.Mul(&diff)
	}

	den.InverseNonConst()
	num.Mul(&den)
	return num, nil
}

// negatePtr returns a pointer to a freshly negated copy of s, a small
// helper to keep LagrangeCoefficient's subtraction readable.
func negatePtr(s *secp256k1.ModNScalar) *secp256k1.ModNScalar {
	out := negateScalar(s)
	return &out
}
