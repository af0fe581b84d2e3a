package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Backend is the subset of node functionality used for contract reads,
// event queries and transaction submission. *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

var _ Backend = (*ethclient.Client)(nil)

// Wallet is an EIP-1193 style request provider paired with a node backend
// over the same transport.
type Wallet interface {
	// Request performs a raw JSON-RPC call. result may be nil.
	Request(ctx context.Context, result any, method string, params ...any) error

	// Backend returns the node client for typed calls.
	Backend() Backend

	// Close releases the underlying transport.
	Close()
}

// Dial connects to a wallet or node endpoint.
func Dial(ctx context.Context, url string) (Wallet, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: no endpoint configured", ErrWalletUnavailable)
	}

	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %w", ErrWalletUnavailable, url, err)
	}

	return &rpcWallet{
		client:  client,
		backend: ethclient.NewClient(client),
	}, nil
}

type rpcWallet struct {
	client  *rpc.Client
	backend *ethclient.Client
}

var _ Wallet = (*rpcWallet)(nil)

// Request implements Wallet.
func (w *rpcWallet) Request(ctx context.Context, result any, method string, params ...any) error {
	return w.client.CallContext(ctx, result, method, params...)
}

// Backend implements Wallet.
func (w *rpcWallet) Backend() Backend {
	return w.backend
}

// Close implements Wallet.
func (w *rpcWallet) Close() {
	w.client.Close()
}
