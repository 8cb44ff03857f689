package frost

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"
)

// verifySchnorr checks sig against pubKey and message using the real
// btcec/v2 schnorr verifier, the same BIP-340 implementation the rest of
// the module relies on to validate a finalized Taproot witness.
func verifySchnorr(t *testing.T, pubKey *secp256k1.PublicKey, message [32]byte, sig Signature) error {
	t.Helper()
	raw := sig.Bytes()
	parsed, err := schnorr.ParseSignature(raw[:])
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}
	if !parsed.Verify(message[:], pubKey) {
		return fmt.Errorf("signature failed BIP-340 verification")
	}
	return nil
}

func sign(t *testing.T, threshold, total int, ids []ParticipantID, material *GroupMaterial, message [32]byte) Signature {
	t.Helper()

	tweak := ComputeTweak(material.GroupPublicKey)

	commitments := make(map[ParticipantID]NonceCommitment, len(ids))
	nonces := make(map[ParticipantID]NoncePair, len(ids))
	for _, id := range ids {
		pair, commitment, err := GenerateNoncePair(rand.Reader)
		require.NoError(t, err)
		nonces[id] = pair
		commitments[id] = commitment
	}

	sp := NewSigningPackage(message, commitments)
	require.Len(t, sp.SortedIDs, threshold)

	shares := make([]SignatureShare, 0, len(ids))
	for _, id := range ids {
		n := nonces[id]
		share, err := SignShare(id, material.SigningShares[id], &n, sp, tweak)
		require.NoError(t, err)

		ok, err := VerifyShare(share, material.VerifyingShares[id], sp, tweak)
		require.NoError(t, err)
		require.True(t, ok, "participant %d produced a share that failed self-verification", id)

		shares = append(shares, share)
	}

	sig, err := Aggregate(shares, sp, tweak)
	require.NoError(t, err)
	return sig
}

// TestCorrectness exercises a handful of (t, n) shapes, asserting the
// aggregated signature satisfies the BIP-340 verification equation against
// the tweaked output key for every shape.
func TestCorrectness(t *testing.T) {
	shapes := []struct{ threshold, total int }{
		{2, 3}, {3, 5}, {1, 1}, {4, 4}, {3, 8},
	}

	for _, shape := range shapes {
		material, err := Dealer(shape.threshold, shape.total, rand.Reader)
		require.NoError(t, err)
		require.False(t, isOddY(material.GroupPublicKey), "dealer must produce an even-y group key")

		ids := make([]ParticipantID, shape.threshold)
		for i := range ids {
			ids[i] = ParticipantID(i + 1)
		}

		var message [32]byte
		copy(message[:], "correctness-across-shapes-test-")

		sig := sign(t, shape.threshold, shape.total, ids, material, message)

		tweak := ComputeTweak(material.GroupPublicKey)
		require.NoError(t, verifySchnorr(t, tweak.Output, message, sig))
	}
}

// TestThresholdStrictness confirms that fewer than t shares cannot be
// aggregated: Aggregate rejects two shares against a signing package
// built for three participants.
func TestThresholdStrictness(t *testing.T) {
	material, err := Dealer(3, 5, rand.Reader)
	require.NoError(t, err)

	tweak := ComputeTweak(material.GroupPublicKey)
	ids := []ParticipantID{1, 2} // one short of threshold

	commitments := make(map[ParticipantID]NonceCommitment)
	nonces := make(map[ParticipantID]NoncePair)
	for _, id := range ids {
		pair, commitment, err := GenerateNoncePair(rand.Reader)
		require.NoError(t, err)
		nonces[id] = pair
		commitments[id] = commitment
	}

	var message [32]byte
	copy(message[:], "threshold-strictness-test------")
	sp := NewSigningPackage(message, commitments)

	shares := make([]SignatureShare, 0, len(ids))
	for _, id := range ids {
		n := nonces[id]
		share, err := SignShare(id, material.SigningShares[id], &n, sp, tweak)
		require.NoError(t, err)
		shares = append(shares, share)
	}

	// Aggregating against a signing package built for 3 participants.
	sp3 := &SigningPackage{Message: message, SortedIDs: SortParticipantIDs([]ParticipantID{1, 2, 3}), Commitments: commitments}
	_, err = Aggregate(shares, sp3, tweak)
	require.Error(t, err, "aggregating a short share list must fail")
}

// TestNonceHygiene confirms Zeroize clears both scalars and IsZero reports
// it, matching the requirement that no signer's nonce buffer may compare
// non-zero once a ceremony has ended.
func TestNonceHygiene(t *testing.T) {
	pair, _, err := GenerateNoncePair(rand.Reader)
	require.NoError(t, err)
	require.False(t, pair.IsZero())

	pair.Zeroize()
	require.True(t, pair.IsZero())
}

// TestLagrangeCoefficientRejectsDuplicates confirms a duplicate id in the
// set is rejected rather than silently producing a wrong coefficient.
func TestLagrangeCoefficientRejectsDuplicates(t *testing.T) {
	_, err := LagrangeCoefficient(1, []ParticipantID{1, 1, 2})
	require.Error(t, err)
}

// TestSignShareRejectsAbsentParticipant confirms SignShare refuses to
// compute a share for a participant the signing package doesn't include.
func TestSignShareRejectsAbsentParticipant(t *testing.T) {
	material, err := Dealer(2, 3, rand.Reader)
	require.NoError(t, err)
	tweak := ComputeTweak(material.GroupPublicKey)

	_, commitment, err := GenerateNoncePair(rand.Reader)
	require.NoError(t, err)
	pair, _, err := GenerateNoncePair(rand.Reader)
	require.NoError(t, err)

	var message [32]byte
	sp := NewSigningPackage(message, map[ParticipantID]NonceCommitment{2: commitment})

	_, err = SignShare(1, material.SigningShares[1], &pair, sp, tweak)
	require.Error(t, err)
}

// TestTamperedShareFailsVerification confirms a corrupted share is caught
// by per-share verification before it ever reaches aggregation.
func TestTamperedShareFailsVerification(t *testing.T) {
	material, err := Dealer(2, 3, rand.Reader)
	require.NoError(t, err)
	tweak := ComputeTweak(material.GroupPublicKey)

	ids := []ParticipantID{1, 2}
	commitments := make(map[ParticipantID]NonceCommitment)
	nonces := make(map[ParticipantID]NoncePair)
	for _, id := range ids {
		pair, commitment, err := GenerateNoncePair(rand.Reader)
		require.NoError(t, err)
		nonces[id] = pair
		commitments[id] = commitment
	}

	var message [32]byte
	copy(message[:], "tampered-share-test-------------")
	sp := NewSigningPackage(message, commitments)

	n := nonces[1]
	share, err := SignShare(1, material.SigningShares[1], &n, sp, tweak)
	require.NoError(t, err)

	share.Value.Add(&share.Value) // corrupt: double it

	ok, err := VerifyShare(share, material.VerifyingShares[1], sp, tweak)
	require.NoError(t, err)
	require.False(t, ok)
}
