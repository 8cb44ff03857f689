// Command frostguard is the CLI surface: keygen, group-address, and spend.
// It owns flag parsing and top-level logging setup only; every decision
// (validation, ceremony orchestration, transaction construction) lives in
// the library packages it wires together.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/golang/glog"

	"github.com/andreasbros/frost-btc-state-machine/ceremony"
	"github.com/andreasbros/frost-btc-state-machine/frost"
	"github.com/andreasbros/frost-btc-state-machine/keys"
	"github.com/andreasbros/frost-btc-state-machine/rpc"
	"github.com/andreasbros/frost-btc-state-machine/taproot"
	"github.com/andreasbros/frost-btc-state-machine/transport"
)

const (
	exitOK       = 0
	exitUsage    = 1
	exitCeremony = 2
	exitNetwork  = 3
)

func main() {
	flag.Set("alsologtostderr", "true")
	flag.Set("v", "1")

	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	var code int
	switch os.Args[1] {
	case "keygen":
		code = runKeygen(os.Args[2:])
	case "group-address":
		code = runGroupAddress(os.Args[2:])
	case "spend":
		code = runSpend(os.Args[2:])
	default:
		usage()
		code = exitUsage
	}

	glog.Flush()
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: frostguard <keygen|group-address|spend> [flags]")
}

func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	threshold := fs.Int("threshold", 0, "signing threshold t")
	parties := fs.Int("parties", 0, "total participants n")
	output := fs.String("output", "", "path to write the key file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *output == "" {
		glog.Errorf("keygen: --output is required")
		return exitUsage
	}

	public, packages, err := keys.Generate(*threshold, *parties, rand.Reader)
	if err != nil {
		glog.Errorf("keygen: %v", err)
		return exitUsage
	}
	if err := keys.Save(*output, packages); err != nil {
		glog.Errorf("keygen: writing key file: %v", err)
		return exitUsage
	}

	glog.Infof("keygen: wrote %d-of-%d key file to %s", *threshold, *parties, *output)
	fmt.Printf("group_public_key=%x\n", public.GroupPublicKey.SerializeCompressed())
	return exitOK
}

func runGroupAddress(args []string) int {
	fs := flag.NewFlagSet("group-address", flag.ContinueOnError)
	keyPath := fs.String("keys", "", "path to the key file")
	network := fs.String("network", "", "mainnet|testnet|signet|regtest")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *keyPath == "" || *network == "" {
		glog.Errorf("group-address: --keys and --network are required")
		return exitUsage
	}

	packages, err := keys.Load(*keyPath)
	if err != nil {
		glog.Errorf("group-address: %v", err)
		return exitUsage
	}
	public := anyPublic(packages)

	params, err := taproot.NetworkParams(*network)
	if err != nil {
		glog.Errorf("group-address: %v", err)
		return exitUsage
	}

	addr, err := taproot.Address(public.GroupPublicKey, params)
	if err != nil {
		glog.Errorf("group-address: %v", err)
		return exitUsage
	}

	fmt.Println(addr)
	return exitOK
}

func runSpend(args []string) int {
	fs := flag.NewFlagSet("spend", flag.ContinueOnError)
	keyPath := fs.String("keys", "", "path to the key file")
	network := fs.String("network", "", "mainnet|testnet|signet|regtest")
	utxo := fs.String("utxo", "", "<txid>:<vout> of the output being spent")
	to := fs.String("to", "", "destination address")
	amount := fs.Int64("amount", 0, "amount to send, in satoshis")
	fee := fs.Int64("fee", 0, "fixed fee, in satoshis")
	roundTimeout := fs.Duration("round-timeout", ceremony.DefaultRoundTimeout, "per-round ceremony deadline")
	rpcHost := fs.String("rpc-host", "", "node RPC host:port")
	rpcUser := fs.String("rpc-user", "", "node RPC username")
	rpcPass := fs.String("rpc-pass", "", "node RPC password")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *keyPath == "" || *network == "" || *utxo == "" || *to == "" || *amount <= 0 {
		glog.Errorf("spend: --keys, --network, --utxo, --to, and --amount are required")
		return exitUsage
	}
	if *rpcHost == "" || *rpcUser == "" || *rpcPass == "" {
		glog.Errorf("spend: --rpc-host, --rpc-user, and --rpc-pass are required")
		return exitUsage
	}

	outpoint, err := parseOutpoint(*utxo)
	if err != nil {
		glog.Errorf("spend: %v", err)
		return exitUsage
	}

	packages, err := keys.Load(*keyPath)
	if err != nil {
		glog.Errorf("spend: loading key file: %v", err)
		return exitUsage
	}
	public := anyPublic(packages)

	params, err := taproot.NetworkParams(*network)
	if err != nil {
		glog.Errorf("spend: %v", err)
		return exitUsage
	}

	destAddr, err := btcutil.DecodeAddress(*to, params)
	if err != nil {
		glog.Errorf("spend: parsing destination address: %v", err)
		return exitUsage
	}
	destScript, err := txscript.PayToAddrScript(destAddr)
	if err != nil {
		glog.Errorf("spend: building destination script: %v", err)
		return exitUsage
	}

	node, err := rpc.Dial(rpc.Config{Host: *rpcHost, User: *rpcUser, Pass: *rpcPass})
	if err != nil {
		glog.Errorf("spend: connecting to node: %v", err)
		return exitNetwork
	}
	defer node.Shutdown()

	prevOutput, err := node.GetUTXO(outpoint)
	if err != nil {
		glog.Errorf("spend: fetching utxo: %v", err)
		return exitNetwork
	}

	plan := taproot.SpendPlan{
		Outpoint:          wire.OutPoint{Hash: outpoint.Hash, Index: outpoint.Index},
		PrevOutput:        prevOutput,
		DestinationScript: destScript,
		SendAmount:        *amount,
		Fee:               *fee,
		GroupPublicKey:    public.GroupPublicKey,
	}

	tx, err := taproot.BuildUnsignedTransaction(plan)
	if err != nil {
		glog.Errorf("spend: building transaction: %v", err)
		return exitUsage
	}

	sighash, err := taproot.ComputeSighash(tx, prevOutput)
	if err != nil {
		glog.Errorf("spend: computing sighash: %v", err)
		return exitUsage
	}

	ids := make([]frost.ParticipantID, 0, len(packages))
	for id := range packages {
		ids = append(ids, id)
	}
	chosen := frost.SortParticipantIDs(ids)[:public.Threshold]

	coordinator, err := ceremony.New(public, packages)
	if err != nil {
		glog.Errorf("spend: %v", err)
		return exitUsage
	}
	tr := transport.NewInMemoryTransport(chosen)

	glog.Infof("spend: running %d-of-%d ceremony over %d participants", public.Threshold, public.Total, len(chosen))
	sig, err := coordinator.Sign(context.Background(), tr, chosen, sighash, *roundTimeout)
	if err != nil {
		glog.Errorf("spend: ceremony failed: %v", err)
		return exitCeremony
	}

	raw, err := taproot.Finalize(tx, sig, public.GroupPublicKey, prevOutput)
	if err != nil {
		glog.Errorf("spend: finalizing witness: %v", err)
		return exitCeremony
	}

	txid, err := node.BroadcastRawTransaction(raw)
	if err != nil {
		glog.Errorf("spend: broadcasting transaction: %v", err)
		return exitNetwork
	}

	fmt.Println(txid.String())
	return exitOK
}

// anyPublic returns the shared public key package carried by every loaded
// participant package; they are all the same object by construction.
func anyPublic(packages map[frost.ParticipantID]*keys.Package) *keys.PublicKeyPackage {
	for _, pkg := range packages {
		return pkg.Public
	}
	return nil
}

func parseOutpoint(s string) (rpc.Outpoint, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return rpc.Outpoint{}, fmt.Errorf("utxo must be \"<txid>:<vout>\", got %q", s)
	}
	hash, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return rpc.Outpoint{}, fmt.Errorf("invalid txid: %w", err)
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return rpc.Outpoint{}, fmt.Errorf("invalid vout: %w", err)
	}
	return rpc.Outpoint{Hash: *hash, Index: uint32(vout)}, nil
}
