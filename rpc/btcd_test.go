package rpc

import (
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/stretchr/testify/require"

	"github.com/andreasbros/frost-btc-state-machine/errs"
)

func TestIsTransportErr(t *testing.T) {
	require.True(t, isTransportErr(errs.Wrap(errs.ErrTransport, "dial failed")))
	require.False(t, isTransportErr(errs.Wrap(errs.ErrNotFound, "no such vout")))
	require.False(t, isTransportErr(nil))
}

func TestIsRejection(t *testing.T) {
	require.True(t, isRejection(&btcjson.RPCError{Code: btcjson.ErrRPCVerifyRejected, Message: "bad-txns-in-belowout"}))
	require.False(t, isRejection(errs.ErrTransport))
}

func TestDialBuildsClientWithoutConnecting(t *testing.T) {
	client, err := Dial(Config{Host: "127.0.0.1:18443", User: "u", Pass: "p"})
	require.NoError(t, err)
	require.NotNil(t, client)
	client.Shutdown()
}
