package frost

import (
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ParticipantID identifies a key-share holder within one public key
// package. Valid ids are 1..255; 0 is reserved and never assigned.
type ParticipantID uint16

// Scalar converts the identifier into its ModNScalar representation, used
// as the polynomial's evaluation point in Shamir sharing and as an input to
// Lagrange coefficient computation.
func (id ParticipantID) Scalar() secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	s.SetInt(uint32(id))
	return s
}

// SortParticipantIDs returns ids in ascending order, matching the
// requirement that a signing package's commitment set is built
// deterministically sorted by participant id.
func SortParticipantIDs(ids []ParticipantID) []ParticipantID {
	out := make([]ParticipantID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
