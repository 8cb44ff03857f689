package signer

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/andreasbros/frost-btc-state-machine/errs"
	"github.com/andreasbros/frost-btc-state-machine/frost"
)

// encodeCommitment serializes a Round-1 nonce commitment as two compressed
// points: hiding then binding.
func encodeCommitment(c frost.NonceCommitment) []byte {
	out := make([]byte, 0, 66)
	out = append(out, c.Hiding.SerializeCompressed()...)
	out = append(out, c.Binding.SerializeCompressed()...)
	return out
}

func decodeCommitment(payload []byte) (frost.NonceCommitment, error) {
	if len(payload) != 66 {
		return frost.NonceCommitment{}, errs.Wrap(errs.ErrProtocol, "malformed nonce commitment payload")
	}
	hiding, err := secp256k1.ParsePubKey(payload[:33])
	if err != nil {
		return frost.NonceCommitment{}, errs.Wrap(errs.ErrProtocol, "hiding point: "+err.Error())
	}
	binding, err := secp256k1.ParsePubKey(payload[33:])
	if err != nil {
		return frost.NonceCommitment{}, errs.Wrap(errs.ErrProtocol, "binding point: "+err.Error())
	}
	return frost.NonceCommitment{Hiding: hiding, Binding: binding}, nil
}

// encodeShare serializes a Round-2 signature share as its raw scalar.
func encodeShare(share frost.SignatureShare) []byte {
	b := share.Value.Bytes()
	return b[:]
}

func decodeShare(id frost.ParticipantID, payload []byte) (frost.SignatureShare, error) {
	if len(payload) != 32 {
		return frost.SignatureShare{}, errs.Wrap(errs.ErrProtocol, "malformed signature share payload")
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(payload); overflow {
		return frost.SignatureShare{}, errs.Wrap(errs.ErrProtocol, "signature share overflows curve order")
	}
	return frost.SignatureShare{ID: id, Value: s}, nil
}
