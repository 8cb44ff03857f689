// Package keys holds the trusted-dealer key material model: generation,
// in-memory representation, and the serializable key-file shape.
package keys

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/andreasbros/frost-btc-state-machine/errs"
	"github.com/andreasbros/frost-btc-state-machine/frost"
)

// PublicKeyPackage is the group-wide, shareable half of the key material:
// the group verifying key plus every participant's verifying share.
// Immutable after generation.
type PublicKeyPackage struct {
	Threshold       int
	Total           int
	GroupPublicKey  *secp256k1.PublicKey
	VerifyingShares map[frost.ParticipantID]*secp256k1.PublicKey
}

// Package is one participant's complete view: its own secret signing
// share plus the shared public key package. Never contains any other
// participant's secret.
type Package struct {
	ParticipantID frost.ParticipantID
	SigningShare  *secp256k1.ModNScalar
	Public        *PublicKeyPackage
}

// Generate runs trusted-dealer key generation and returns the public key
// package plus every participant's individual key package. Fails with
// ErrInvalidParameters if the threshold/party-count constraints are
// violated.
func Generate(threshold, total int, source io.Reader) (*PublicKeyPackage, map[frost.ParticipantID]*Package, error) {
	if source == nil {
		source = rand.Reader
	}
	if threshold < 1 || total < 1 || threshold > total || total > 255 {
		return nil, nil, errs.Wrapf(errs.ErrInvalidParameters, "threshold=%d total=%d", threshold, total)
	}

	material, err := frost.Dealer(threshold, total, source)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}

	public := &PublicKeyPackage{
		Threshold:       threshold,
		Total:           total,
		GroupPublicKey:  material.GroupPublicKey,
		VerifyingShares: material.VerifyingShares,
	}

	packages := make(map[frost.ParticipantID]*Package, total)
	for id, share := range material.SigningShares {
		packages[id] = &Package{
			ParticipantID: id,
			SigningShare:  share,
			Public:        public,
		}
	}

	return public, packages, nil
}

// consistencyCheck verifies that share, at participant id, really produces
// the verifying share the public key package claims for that id. Run on
// every deserialization so a corrupted or mismatched key file is caught
// before it ever reaches a ceremony.
func consistencyCheck(id frost.ParticipantID, share *secp256k1.ModNScalar, public *PublicKeyPackage) error {
	verifying, ok := public.VerifyingShares[id]
	if !ok {
		return errs.Wrapf(errs.ErrCorrupt, "no verifying share for participant %d", id)
	}

	var jp secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(share, &jp)
	jp.ToAffine()
	derived := secp256k1.NewPublicKey(&jp.X, &jp.Y)

	if !derived.IsEqual(verifying) {
		return errs.Wrapf(errs.ErrCorrupt, "signing share for participant %d does not match its verifying share", id)
	}
	return nil
}

// VerifyConsistency re-checks every loaded participant package against the
// shared public key package, surfacing ErrCorrupt on the first mismatch.
func VerifyConsistency(packages map[frost.ParticipantID]*Package) error {
	for id, pkg := range packages {
		if pkg.Public.Total != len(pkg.Public.VerifyingShares) {
			return errs.Wrapf(errs.ErrCorrupt, "party count %d does not match %d verifying shares", pkg.Public.Total, len(pkg.Public.VerifyingShares))
		}
		if err := consistencyCheck(id, pkg.SigningShare, pkg.Public); err != nil {
			return err
		}
	}
	return nil
}

// GroupAddress derives the BIP-341 key-path output key (Q) for this public
// key package's group verifying key.
func (p *PublicKeyPackage) GroupAddress() *secp256k1.PublicKey {
	return frost.ComputeTweak(p.GroupPublicKey).Output
}

func (p *PublicKeyPackage) String() string {
	return fmt.Sprintf("PublicKeyPackage{t=%d,n=%d,group=%x}", p.Threshold, p.Total, p.GroupPublicKey.SerializeCompressed())
}
