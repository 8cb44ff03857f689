package taproot

import (
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/andreasbros/frost-btc-state-machine/errs"
	"github.com/andreasbros/frost-btc-state-machine/frost"
)

func samplePlan(t *testing.T, prevValue, sendAmount, fee int64) (SpendPlan, *frost.GroupMaterial) {
	t.Helper()
	material, err := frost.Dealer(2, 3, rand.Reader)
	require.NoError(t, err)

	destScript, err := ScriptPubKey(material.GroupPublicKey)
	require.NoError(t, err)

	return SpendPlan{
		Outpoint:          wire.OutPoint{Hash: chainhash.Hash{1, 2, 3}, Index: 0},
		PrevOutput:        PrevOutput{ScriptPubKey: destScript, Value: prevValue},
		DestinationScript: destScript,
		SendAmount:        sendAmount,
		Fee:               fee,
		GroupPublicKey:    material.GroupPublicKey,
	}, material
}

// TestDustOmission confirms that when prev_value - send - fee < 546, the
// built transaction has exactly one output (the change output is omitted
// rather than created below the dust threshold).
func TestDustOmission(t *testing.T) {
	plan, _ := samplePlan(t, 100_000, 99_600, 300) // change = 100
	tx, err := BuildUnsignedTransaction(plan)
	require.NoError(t, err)
	require.Len(t, tx.TxOut, 1)
}

func TestChangeOutputIncludedAboveDust(t *testing.T) {
	plan, _ := samplePlan(t, 100_000, 50_000, 300)
	tx, err := BuildUnsignedTransaction(plan)
	require.NoError(t, err)
	require.Len(t, tx.TxOut, 2)
	require.Equal(t, int64(100_000-50_000-300), tx.TxOut[1].Value)
}

func TestBuildRejectsInsufficientValue(t *testing.T) {
	plan, _ := samplePlan(t, 1000, 900, 200) // 900+200 > 1000
	_, err := BuildUnsignedTransaction(plan)
	require.ErrorIs(t, err, errs.ErrInvalidParameters)
}

func TestTransactionStructure(t *testing.T) {
	plan, _ := samplePlan(t, 100_000, 50_000, 300)
	tx, err := BuildUnsignedTransaction(plan)
	require.NoError(t, err)

	require.Equal(t, int32(2), tx.Version)
	require.Len(t, tx.TxIn, 1)
	require.Equal(t, uint32(0xFFFFFFFD), tx.TxIn[0].Sequence)
	require.Equal(t, uint32(0), tx.LockTime)
}

func TestAddressAndScriptPubKeyAgree(t *testing.T) {
	material, err := frost.Dealer(2, 3, rand.Reader)
	require.NoError(t, err)

	params, err := NetworkParams("regtest")
	require.NoError(t, err)

	addr, err := Address(material.GroupPublicKey, params)
	require.NoError(t, err)
	require.NotEmpty(t, addr)

	script, err := ScriptPubKey(material.GroupPublicKey)
	require.NoError(t, err)
	decoded, err := btcutil.DecodeAddress(addr, params)
	require.NoError(t, err)
	addrScript, err := txscript.PayToAddrScript(decoded)
	require.NoError(t, err)
	require.Equal(t, script, addrScript)

	_, err = NetworkParams("not-a-real-network")
	require.ErrorIs(t, err, errs.ErrInvalidParameters)
}
