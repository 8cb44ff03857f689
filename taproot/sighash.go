// Package taproot builds the unsigned key-path spend transaction, computes
// its BIP-341 signature hash, and finalizes it once the aggregated
// signature is available.
package taproot

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/andreasbros/frost-btc-state-machine/errs"
)

// DustLimit is the minimum P2TR output value this module will produce; a
// change amount below it is folded into the fee rather than spent.
const DustLimit = 546

// spendSequence is used on the single input: enables absolute locktime and,
// being below 0xFFFFFFFE, signals BIP-125 replace-by-fee opt-in.
const spendSequence = 0xFFFFFFFD

// PrevOutput is the output being spent: its scriptPubKey and value, as
// returned by a UTXO lookup.
type PrevOutput struct {
	ScriptPubKey []byte
	Value        int64
}

// SpendPlan is everything needed to build one key-path spend transaction
// from a single UTXO.
type SpendPlan struct {
	Outpoint          wire.OutPoint
	PrevOutput        PrevOutput
	DestinationScript []byte
	SendAmount        int64
	Fee               int64
	GroupPublicKey    *secp256k1.PublicKey
}

// BuildUnsignedTransaction constructs the version-2, single-input,
// single-or-double-output unsigned spend transaction described by plan.
// The change output, back to the group's own P2TR address, is omitted
// when it would be dust.
func BuildUnsignedTransaction(plan SpendPlan) (*wire.MsgTx, error) {
	if plan.SendAmount <= 0 {
		return nil, errs.Wrap(errs.ErrInvalidParameters, "send amount must be positive")
	}
	if plan.Fee < 0 {
		return nil, errs.Wrap(errs.ErrInvalidParameters, "fee must not be negative")
	}
	if plan.SendAmount+plan.Fee > plan.PrevOutput.Value {
		return nil, errs.Wrapf(errs.ErrInvalidParameters, "amount (%d) + fee (%d) exceeds utxo value (%d)", plan.SendAmount, plan.Fee, plan.PrevOutput.Value)
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: plan.Outpoint,
		Sequence:         spendSequence,
	})
	tx.AddTxOut(&wire.TxOut{Value: plan.SendAmount, PkScript: plan.DestinationScript})

	change := plan.PrevOutput.Value - plan.SendAmount - plan.Fee
	if change >= DustLimit {
		changeScript, err := ScriptPubKey(plan.GroupPublicKey)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(&wire.TxOut{Value: change, PkScript: changeScript})
	}

	tx.LockTime = 0
	return tx, nil
}

// ComputeSighash computes the BIP-341 key-path signature hash for input 0
// of tx, spending prevOutput with SIGHASH_DEFAULT.
func ComputeSighash(tx *wire.MsgTx, prevOutput PrevOutput) ([32]byte, error) {
	fetcher := txscript.NewCannedPrevOutputFetcher(prevOutput.ScriptPubKey, prevOutput.Value)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	hash, err := txscript.CalcTaprootSignatureHash(sigHashes, txscript.SigHashDefault, tx, 0, fetcher)
	if err != nil {
		return [32]byte{}, errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}

	var out [32]byte
	copy(out[:], hash)
	return out, nil
}
