package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethpandaops/testledger/pkg/jsonrpc"
)

type reply struct {
	result any
	err    error
}

type call struct {
	method string
	params []any
}

// fakeWallet replays scripted replies per method, in order. The last reply
// for a method repeats once the queue is drained.
type fakeWallet struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   []call
	backend Backend
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{replies: make(map[string][]reply)}
}

func (w *fakeWallet) on(method string, result any, err error) *fakeWallet {
	w.replies[method] = append(w.replies[method], reply{result: result, err: err})

	return w
}

func (w *fakeWallet) Request(_ context.Context, result any, method string, params ...any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls = append(w.calls, call{method: method, params: params})

	queue, ok := w.replies[method]
	if !ok || len(queue) == 0 {
		return &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: fmt.Sprintf("method %s not found", method)}
	}

	r := queue[0]
	if len(queue) > 1 {
		w.replies[method] = queue[1:]
	}

	if r.err != nil {
		return r.err
	}

	if result == nil || r.result == nil {
		return nil
	}

	raw, err := json.Marshal(r.result)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, result)
}

func (w *fakeWallet) Backend() Backend { return w.backend }

func (w *fakeWallet) Close() {}

func (w *fakeWallet) methods() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.calls))
	for _, c := range w.calls {
		out = append(out, c.method)
	}

	return out
}

type fakeBackend struct {
	chainID  *big.Int
	nonce    uint64
	gasPrice *big.Int
	gas      uint64
	sent     []*types.Transaction
}

var _ Backend = (*fakeBackend)(nil)

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) { return b.chainID, nil }

func (b *fakeBackend) BlockNumber(context.Context) (uint64, error) { return 1, nil }

func (b *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

func (b *fakeBackend) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (b *fakeBackend) HeaderByHash(context.Context, common.Hash) (*types.Header, error) {
	return &types.Header{}, nil
}

func (b *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return b.gasPrice, nil }

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.gas, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.sent = append(b.sent, tx)

	return nil
}
