package frost

import (
	"encoding/binary"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// SigningPackage is the public, per-session description of what is being
// signed and by whom: the t chosen (participant id, commitment) pairs,
// sorted by id, plus the 32-byte message. Built by each signer,
// independently and identically, once it holds t Round-1 commitments; the
// coordinator does not build one.
type SigningPackage struct {
	Message     [32]byte
	SortedIDs   []ParticipantID
	Commitments map[ParticipantID]NonceCommitment
}

// NewSigningPackage sorts the supplied commitment set by participant id and
// freezes it alongside the message, matching the spec's requirement that
// the signing package be built deterministically from the t commitments
// present at the Round-1/Round-2 transition.
func NewSigningPackage(message [32]byte, commitments map[ParticipantID]NonceCommitment) *SigningPackage {
	ids := make([]ParticipantID, 0, len(commitments))
	for id := range commitments {
		ids = append(ids, id)
	}
	return &SigningPackage{
		Message:     message,
		SortedIDs:   SortParticipantIDs(ids),
		Commitments: commitments,
	}
}

// encodeCommitmentList serializes the signing package's commitment set in
// sorted-id order, the canonical bytes every binding-factor derivation and
// challenge hashes over.
func (sp *SigningPackage) encodeCommitmentList() []byte {
	out := make([]byte, 0, len(sp.SortedIDs)*(2+32+32))
	for _, id := range sp.SortedIDs {
		c := sp.Commitments[id]
		var idBytes [2]byte
		binary.BigEndian.PutUint16(idBytes[:], uint16(id))
		out = append(out, idBytes[:]...)
		hx := xOnlyBytes(c.Hiding)
		bx := xOnlyBytes(c.Binding)
		out = append(out, hx[:]...)
		out = append(out, bx[:]...)
	}
	return out
}

// bindingFactor computes rho_i = H("FROST/rho", id || message || commitment_list),
// binding participant i's nonce to the full set of Round-1 commitments and
// the message, preventing a Wagner's-algorithm-style forgery across
// sessions that reuse nonces against different commitment sets.
func (sp *SigningPackage) bindingFactor(id ParticipantID) secp256k1.ModNScalar {
	var idBytes [2]byte
	binary.BigEndian.PutUint16(idBytes[:], uint16(id))
	return scalarFromTaggedHash("FROST/rho", idBytes[:], sp.Message[:], sp.encodeCommitmentList())
}

// groupCommitment computes R = sum_i (D_i + rho_i * E_i) and its even-Y
// adjustment, returning the adjusted point and whether it was negated.
func (sp *SigningPackage) groupCommitment() (*secp256k1.PublicKey, bool) {
	var sum *secp256k1.PublicKey
	for _, id := range sp.SortedIDs {
		c := sp.Commitments[id]
		rho := sp.bindingFactor(id)
		term := addPoints(c.Hiding, scalarMult(&rho, c.Binding))
		if sum == nil {
			sum = term
		} else {
			sum = addPoints(sum, term)
		}
	}
	return EvenY(sum)
}

// TweakedKey bundles the BIP-341 key-path tweak derived from a group public
// key: the even-Y output key Q, the tweak scalar t, and whether Q itself
// required negation to reach even y. Computed once per key package and
// reused by every signer and by the coordinator's aggregation step.
type TweakedKey struct {
	Internal  *secp256k1.PublicKey // P, already even-Y by Dealer's construction
	Output    *secp256k1.PublicKey // Q = P + t*G, forced even-Y
	Tweak     secp256k1.ModNScalar
	NegateKey bool // true if Q = -(P + t*G) was required to reach even-Y
}

// ComputeTweak derives Q = P + H_TapTweak(P)*G for an empty merkle root.
func ComputeTweak(groupPublicKey *secp256k1.PublicKey) TweakedKey {
	px := xOnlyBytes(groupPublicKey)
	t := TapTweak(px)
	tG := basePointMult(&t)
	q := addPoints(groupPublicKey, tG)
	qEven, negated := EvenY(q)
	return TweakedKey{
		Internal:  groupPublicKey,
		Output:    qEven,
		Tweak:     t,
		NegateKey: negated,
	}
}

// challenge computes the BIP-340 Fiat-Shamir challenge e = H(R || Q || m).
func challenge(r, q *secp256k1.PublicKey, message [32]byte) secp256k1.ModNScalar {
	rx := xOnlyBytes(r)
	qx := xOnlyBytes(q)
	return scalarFromTaggedHash("BIP0340/challenge", rx[:], qx[:], message[:])
}

// SignatureShare is one participant's Round-2 contribution: a scalar,
// verifiable in isolation against that participant's verifying share.
type SignatureShare struct {
	ID    ParticipantID
	Value secp256k1.ModNScalar
}

// SignShare computes participant id's Round-2 signature share for the
// given signing package, nonce pair, signing share, and key tweak.
func SignShare(id ParticipantID, signingShare *secp256k1.ModNScalar, nonces *NoncePair, sp *SigningPackage, tweak TweakedKey) (SignatureShare, error) {
	if _, ok := sp.Commitments[id]; !ok {
		return SignatureShare{}, fmt.Errorf("frost: participant %d not present in signing package", id)
	}

	r, negR := sp.groupCommitment()
	c := challenge(r, tweak.Output, sp.Message)

	lambda, err := LagrangeCoefficient(id, sp.SortedIDs)
	if err != nil {
		return SignatureShare{}, err
	}

	rho := sp.bindingFactor(id)

	var nonceContribution secp256k1.ModNScalar
	nonceContribution.Set(&rho)
	nonceContribution.Mul(&nonces.Binding)
	nonceContribution.Add(&nonces.Hiding)
	if negR {
		nonceContribution = negateScalar(&nonceContribution)
	}

	var keyContribution secp256k1.ModNScalar
	keyContribution.Set(&lambda)
	keyContribution.Mul(&c)
	keyContribution.Mul(signingShare)
	if tweak.NegateKey {
		keyContribution = negateScalar(&keyContribution)
	}

	var z secp256k1.ModNScalar
	z.Set(&nonceContribution)
	z.Add(&keyContribution)

	return SignatureShare{ID: id, Value: z}, nil
}

// VerifyShare checks one signature share against the participant's
// verifying share in isolation, without needing the other t-1 shares. The
// spec permits but does not mandate this; this implementation performs it
// so a misbehaving participant is named immediately in Round 2 rather than
// only discovered by the aggregate check in the witness finalizer.
func VerifyShare(share SignatureShare, verifyingShare *secp256k1.PublicKey, sp *SigningPackage, tweak TweakedKey) (bool, error) {
	commitment, ok := sp.Commitments[share.ID]
	if !ok {
		return false, fmt.Errorf("frost: participant %d not present in signing package", share.ID)
	}

	r, negR := sp.groupCommitment()
	c := challenge(r, tweak.Output, sp.Message)

	lambda, err := LagrangeCoefficient(share.ID, sp.SortedIDs)
	if err != nil {
		return false, err
	}

	rho := sp.bindingFactor(share.ID)
	expectedNonce := addPoints(commitment.Hiding, scalarMult(&rho, commitment.Binding))
	if negR {
		expectedNonce = negatePoint(expectedNonce)
	}

	var coeff secp256k1.ModNScalar
	coeff.Set(&lambda)
	coeff.Mul(&c)
	if tweak.NegateKey {
		coeff = negateScalar(&coeff)
	}
	expectedKeyTerm := scalarMult(&coeff, verifyingShare)

	expected := addPoints(expectedNonce, expectedKeyTerm)
	actual := basePointMult(&share.Value)

	return actual.IsEqual(expected), nil
}

// Signature is a 64-byte BIP-340 Schnorr signature: the even-Y nonce
// commitment's x-coordinate, followed by the aggregated response scalar.
type Signature struct {
	R [32]byte
	S secp256k1.ModNScalar
}

// Bytes returns the consensus 64-byte encoding used in a Taproot witness.
func (sig Signature) Bytes() [64]byte {
	var out [64]byte
	copy(out[:32], sig.R[:])
	sBytes := sig.S.Bytes()
	copy(out[32:], sBytes[:])
	return out
}

// Aggregate combines t signature shares into the final 64-byte Schnorr
// signature, adding the key-path tweak contribution exactly once. All t
// signers, given the same nonces, produce byte-identical output since the
// computation is purely a function of the signing package and the shares.
func Aggregate(shares []SignatureShare, sp *SigningPackage, tweak TweakedKey) (Signature, error) {
	if len(shares) != len(sp.SortedIDs) {
		return Signature{}, fmt.Errorf("frost: expected %d shares, got %d", len(sp.SortedIDs), len(shares))
	}

	r, _ := sp.groupCommitment()
	c := challenge(r, tweak.Output, sp.Message)

	var sum secp256k1.ModNScalar
	for _, share := range shares {
		sum.Add(&share.Value)
	}

	var tweakTerm secp256k1.ModNScalar
	tweakTerm.Set(&tweak.Tweak)
	tweakTerm.Mul(&c)
	if tweak.NegateKey {
		tweakTerm = negateScalar(&tweakTerm)
	}
	sum.Add(&tweakTerm)

	return Signature{R: xOnlyBytes(r), S: sum}, nil
}
