// Package rpc defines the node RPC contract the pipeline consumes and a
// concrete implementation against a Bitcoin Core-compatible node.
package rpc

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/andreasbros/frost-btc-state-machine/taproot"
)

// Outpoint identifies one previous output: a transaction id and index.
type Outpoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NodeClient is the contract for fetching previous output data and
// broadcasting a finished transaction. errors.Is against errs.ErrNotFound,
// errs.ErrTransport, and errs.ErrRejected to distinguish failure modes.
type NodeClient interface {
	GetUTXO(outpoint Outpoint) (taproot.PrevOutput, error)
	BroadcastRawTransaction(raw []byte) (chainhash.Hash, error)
}
