package remote

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// anchorRegistryABI describes the registry contract: one write that anchors
// a digest for a DID and two views reading it back.
const anchorRegistryABI = `[
  {"constant":false,"inputs":[{"name":"hash","type":"bytes32"},{"name":"did","type":"string"}],"name":"storeAnchor","outputs":[],"payable":false,"stateMutability":"nonpayable","type":"function"},
  {"constant":true,"inputs":[{"name":"hash","type":"bytes32"}],"name":"verifyAnchor","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[{"name":"did","type":"string"}],"name":"getAnchorsByDID","outputs":[{"name":"","type":"bytes32[]"}],"payable":false,"stateMutability":"view","type":"function"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"hash","type":"bytes32"},{"indexed":false,"name":"did","type":"string"}],"name":"AnchorStored","type":"event"}
]`

// Config carries what the client needs to reach the anchor contract.
type Config struct {
	// Endpoint is the JSON-RPC URL of an Ethereum node.
	Endpoint string
	// ContractAddress is the deployed anchor registry, hex encoded.
	ContractAddress string
	// PrivateKey is the hex key of the account paying the anchor
	// transactions.
	PrivateKey string
}

// EthereumLedger anchors digests in a registry contract on an Ethereum
// network.
type EthereumLedger struct {
	client    *ethclient.Client
	contract  *bind.BoundContract
	opts      *bind.TransactOpts
	address   common.Address
	sendMutex sync.Mutex
}

// NewEthereumLedger builds the contract binding. Dialing an HTTP endpoint
// does not touch the network yet, the first probe happens in Connect.
func NewEthereumLedger(cfg Config) (*EthereumLedger, error) {
	if cfg.Endpoint == "" {
		return nil, xerrors.New("missing ethereum endpoint")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, xerrors.Errorf("invalid contract address %q",
			cfg.ContractAddress)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, xerrors.Errorf("parsing private key: %v", err)
	}
	client, err := ethclient.Dial(cfg.Endpoint)
	if err != nil {
		return nil, xerrors.Errorf("dialing %s: %v", cfg.Endpoint, err)
	}
	parsed, err := abi.JSON(strings.NewReader(anchorRegistryABI))
	if err != nil {
		return nil, xerrors.Errorf("parsing registry ABI: %v", err)
	}
	address := common.HexToAddress(cfg.ContractAddress)
	return &EthereumLedger{
		client:   client,
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		opts:     bind.NewKeyedTransactor(key),
		address:  address,
	}, nil
}

// Connect checks that the node answers and logs which network it is on.
func (e *EthereumLedger) Connect(ctx context.Context) error {
	id, err := e.client.NetworkID(ctx)
	if err != nil {
		return xerrors.Errorf("ethereum node not reachable: %v: %w",
			err, ErrUnavailable)
	}
	head, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return xerrors.Errorf("cannot read chain head: %v: %w",
			err, ErrUnavailable)
	}
	log.Lvlf2("connected to ethereum network %s at block %s, registry %s",
		id, head.Number, e.address.Hex())
	return nil
}

// Store sends an anchor transaction and waits under the caller's deadline
// until it is mined.
func (e *EthereumLedger) Store(ctx context.Context, contentHash, did string) (*StoreResult, error) {
	hash, err := hashToBytes32(contentHash)
	if err != nil {
		return nil, err
	}

	// The keyed transactor derives its nonce from the pending state, so
	// sends must not interleave.
	e.sendMutex.Lock()
	opts := *e.opts
	opts.Context = ctx
	tx, err := e.contract.Transact(&opts, "storeAnchor", hash, did)
	e.sendMutex.Unlock()
	if err != nil {
		return nil, xerrors.Errorf("sending anchor transaction: %v: %w",
			err, ErrUnavailable)
	}

	receipt, err := bind.WaitMined(ctx, e.client, tx)
	if err != nil {
		return nil, xerrors.Errorf("waiting for anchor transaction %s: %v: %w",
			tx.Hash().Hex(), err, ErrUnavailable)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, xerrors.Errorf("anchor transaction %s reverted: %w",
			tx.Hash().Hex(), ErrUnavailable)
	}

	res := &StoreResult{TxID: tx.Hash().Hex()}
	if len(receipt.Logs) > 0 {
		res.BlockNumber = int64(receipt.Logs[0].BlockNumber)
	} else if head, err := e.client.HeaderByNumber(ctx, nil); err == nil {
		res.BlockNumber = head.Number.Int64()
	}
	log.Lvlf2("anchored %s on ethereum in tx %s (block %d)",
		contentHash, res.TxID, res.BlockNumber)
	return res, nil
}

// Verify checks the registry for the content hash.
func (e *EthereumLedger) Verify(ctx context.Context, contentHash string) (bool, error) {
	hash, err := hashToBytes32(contentHash)
	if err != nil {
		return false, err
	}
	var anchored bool
	copts := &bind.CallOpts{Context: ctx}
	if err := e.contract.Call(copts, &anchored, "verifyAnchor", hash); err != nil {
		return false, xerrors.Errorf("verifyAnchor call: %v: %w",
			err, ErrUnavailable)
	}
	return anchored, nil
}

// QueryByDID lists the digests the registry holds for a DID.
func (e *EthereumLedger) QueryByDID(ctx context.Context, did string) ([]string, error) {
	var raw [][32]byte
	copts := &bind.CallOpts{Context: ctx}
	if err := e.contract.Call(copts, &raw, "getAnchorsByDID", did); err != nil {
		return nil, xerrors.Errorf("getAnchorsByDID call: %v: %w",
			err, ErrUnavailable)
	}
	hashes := make([]string, len(raw))
	for i, h := range raw {
		hashes[i] = hex.EncodeToString(h[:])
	}
	return hashes, nil
}

// Close tears the RPC connection down.
func (e *EthereumLedger) Close() {
	e.client.Close()
}

func hashToBytes32(contentHash string) ([32]byte, error) {
	var out [32]byte
	buf, err := hex.DecodeString(contentHash)
	if err != nil || len(buf) != len(out) {
		return out, xerrors.Errorf("content hash %q is not a 256 bit hex digest",
			contentHash)
	}
	copy(out[:], buf)
	return out, nil
}
