package rpc

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"

	"github.com/andreasbros/frost-btc-state-machine/errs"
	"github.com/andreasbros/frost-btc-state-machine/taproot"
)

// BtcdClient is the concrete NodeClient backed by a Bitcoin Core-compatible
// JSON-RPC node via the btcd rpcclient library.
type BtcdClient struct {
	rpc *rpcclient.Client
}

// Config is the minimal connection detail the CLI surface collects.
type Config struct {
	Host string
	User string
	Pass string
}

// Dial opens an HTTP JSON-RPC connection to the configured node. No
// websocket notifications are used; every call is a plain request/response.
func Dial(cfg Config) (*BtcdClient, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrTransport, err.Error())
	}
	return &BtcdClient{rpc: client}, nil
}

// Shutdown closes the underlying RPC connection.
func (c *BtcdClient) Shutdown() {
	c.rpc.Shutdown()
}

// GetUTXO fetches the raw previous transaction and extracts the requested
// output. Retried once on a Transport failure, per the error-handling
// design's read-retry policy; a genuinely missing output is ErrNotFound
// and is not retried. Whether the output has already been spent is not
// checked: a spent output is returned like an unspent one.
func (c *BtcdClient) GetUTXO(outpoint Outpoint) (taproot.PrevOutput, error) {
	out, err := c.getUTXOOnce(outpoint)
	if err == nil || !isTransportErr(err) {
		return out, err
	}
	return c.getUTXOOnce(outpoint)
}

func (c *BtcdClient) getUTXOOnce(outpoint Outpoint) (taproot.PrevOutput, error) {
	tx, err := c.rpc.GetRawTransaction(&outpoint.Hash)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo {
			return taproot.PrevOutput{}, errs.Wrapf(errs.ErrNotFound, "txid %s: %v", outpoint.Hash, err)
		}
		return taproot.PrevOutput{}, errs.Wrap(errs.ErrTransport, err.Error())
	}

	msgTx := tx.MsgTx()
	if int(outpoint.Index) >= len(msgTx.TxOut) {
		return taproot.PrevOutput{}, errs.Wrapf(errs.ErrNotFound, "vout %d out of range for txid %s", outpoint.Index, outpoint.Hash)
	}

	txOut := msgTx.TxOut[outpoint.Index]
	return taproot.PrevOutput{
		ScriptPubKey: append([]byte(nil), txOut.PkScript...),
		Value:        txOut.Value,
	}, nil
}

// BroadcastRawTransaction submits a fully signed, consensus-serialized
// transaction for relay. Never retried internally; the caller decides.
func (c *BtcdClient) BroadcastRawTransaction(raw []byte) (chainhash.Hash, error) {
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return chainhash.Hash{}, errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}

	hash, err := c.rpc.SendRawTransaction(tx, false)
	if err != nil {
		if isRejection(err) {
			return chainhash.Hash{}, errs.NewRejected(err.Error())
		}
		return chainhash.Hash{}, errs.Wrap(errs.ErrTransport, err.Error())
	}
	return *hash, nil
}

// isTransportErr reports whether err is the kind of failure a retry might
// resolve (connection/timeout), as opposed to a definitive not-found.
func isTransportErr(err error) bool {
	return err != nil && errors.Is(err, errs.ErrTransport)
}

// isRejection distinguishes a node-level policy rejection (bad fee, already
// spent, non-standard) from a transport-level failure: btcd's JSON-RPC
// client surfaces policy rejections as *btcjson.RPCError.
func isRejection(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr)
}
