package taproot

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/andreasbros/frost-btc-state-machine/errs"
	"github.com/andreasbros/frost-btc-state-machine/frost"
)

// NetworkParams resolves one of the four network names the CLI surface
// accepts into the corresponding chain parameters.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, errs.Wrapf(errs.ErrInvalidParameters, "unknown network %q", name)
	}
}

// ScriptPubKey builds the `OP_1 <32-byte x-only Q>` output script for the
// key-path spend of groupPublicKey, where Q is the BIP-341 tweaked output
// key.
func ScriptPubKey(groupPublicKey *secp256k1.PublicKey) ([]byte, error) {
	tweak := frost.ComputeTweak(groupPublicKey)
	xonly := frost.XOnly(tweak.Output)

	script, err := txscript.NewScriptBuilder().AddOp(txscript.OP_1).AddData(xonly[:]).Script()
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}
	return script, nil
}

// Address derives the bech32m P2TR address for groupPublicKey on params.
func Address(groupPublicKey *secp256k1.PublicKey, params *chaincfg.Params) (string, error) {
	tweak := frost.ComputeTweak(groupPublicKey)
	xonly := frost.XOnly(tweak.Output)

	addr, err := btcutil.NewAddressTaproot(xonly[:], params)
	if err != nil {
		return "", errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}
	return addr.EncodeAddress(), nil
}
