package taproot

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/andreasbros/frost-btc-state-machine/errs"
	"github.com/andreasbros/frost-btc-state-machine/frost"
)

// Finalize assembles the witness for tx's single input from sig (no
// annex, no control block — this is a key-path spend), verifies the
// signature against the tweaked group key and the computed sighash as a
// defense against programmer error, and returns the consensus-serialized
// transaction bytes.
func Finalize(tx *wire.MsgTx, sig frost.Signature, groupPublicKey *secp256k1.PublicKey, prevOutput PrevOutput) ([]byte, error) {
	if len(tx.TxIn) != 1 {
		return nil, errs.Wrap(errs.ErrInvalidParameters, "finalize expects exactly one input")
	}

	sigBytes := sig.Bytes()
	tx.TxIn[0].Witness = wire.TxWitness{sigBytes[:]}

	sighash, err := ComputeSighash(tx, prevOutput)
	if err != nil {
		return nil, err
	}

	tweak := frost.ComputeTweak(groupPublicKey)
	parsed, err := schnorr.ParseSignature(sigBytes[:])
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidSignature, err.Error())
	}
	if !parsed.Verify(sighash[:], tweak.Output) {
		return nil, errs.Wrap(errs.ErrInvalidSignature, "aggregated signature failed verification against the tweaked group key")
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}
	return buf.Bytes(), nil
}
