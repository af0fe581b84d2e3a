package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethpandaops/testledger/pkg/chain"
)

type storedRecord struct {
	name      string
	testType  string
	passed    bool
	timestamp int64
	data      string
	submitter common.Address
}

// fakeNode serves TestDataManager calls from memory by decoding the
// calldata against the ABI.
type fakeNode struct {
	mu sync.Mutex

	abi      abi.ABI
	records  []storedRecord
	logs     []types.Log
	headers  map[common.Hash]*types.Header
	empty    bool
	callErr  error
	receipt  *types.Receipt
	notFound int
	polls    int
}

var _ chain.Backend = (*fakeNode)(nil)

func (n *fakeNode) ChainID(context.Context) (*big.Int, error) { return big.NewInt(31337), nil }

func (n *fakeNode) BlockNumber(context.Context) (uint64, error) { return 10, nil }

func (n *fakeNode) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if n.callErr != nil {
		return nil, n.callErr
	}

	if n.empty {
		return []byte{}, nil
	}

	method, err := n.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case MethodCount:
		return method.Outputs.Pack(big.NewInt(int64(len(n.records))))
	case MethodGet:
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}

		idx := args[0].(*big.Int).Int64()
		if idx >= int64(len(n.records)) {
			return nil, errors.New("execution reverted: index out of bounds")
		}

		r := n.records[idx]

		return method.Outputs.Pack(r.name, r.testType, r.passed, big.NewInt(r.timestamp), r.data, r.submitter)
	default:
		return nil, fmt.Errorf("unexpected call %s", method.Name)
	}
}

func (n *fakeNode) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return n.logs, nil
}

func (n *fakeNode) HeaderByHash(_ context.Context, hash common.Hash) (*types.Header, error) {
	h, ok := n.headers[hash]
	if !ok {
		return nil, ethereum.NotFound
	}

	return h, nil
}

func (n *fakeNode) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.polls++
	if n.polls <= n.notFound {
		return nil, ethereum.NotFound
	}

	return n.receipt, nil
}

func (n *fakeNode) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 0, nil }

func (n *fakeNode) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (n *fakeNode) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 21000, nil }

func (n *fakeNode) SendTransaction(context.Context, *types.Transaction) error { return nil }

func (n *fakeNode) eventLog(id int64, submitter common.Address, name string, passed bool, block common.Hash) types.Log {
	event := n.abi.Events[EventDataAdded]

	data, err := event.Inputs.NonIndexed().Pack(name, passed)
	if err != nil {
		panic(err)
	}

	return types.Log{
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(big.NewInt(id)),
			common.BytesToHash(submitter.Bytes()),
		},
		Data:        data,
		BlockHash:   block,
		BlockNumber: uint64(id + 1),
		TxHash:      common.BigToHash(big.NewInt(1000 + id)),
	}
}

type recordingSigner struct {
	address common.Address
	to      common.Address
	data    []byte
	err     error
}

func (s *recordingSigner) Address() common.Address { return s.address }

func (s *recordingSigner) SendTransaction(_ context.Context, to common.Address, data []byte) (common.Hash, error) {
	if s.err != nil {
		return common.Hash{}, s.err
	}

	s.to = to
	s.data = data

	return common.HexToHash("0xabc"), nil
}
