package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethpandaops/testledger/pkg/chain"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoCode is returned when a read returns no data, which usually
	// means nothing is deployed at the configured address.
	ErrNoCode = errors.New("no contract code at address")

	// ErrReadOnly is returned when a write is attempted without a signer.
	ErrReadOnly = errors.New("binding has no signer")

	// ErrReverted is returned when a mined transaction failed.
	ErrReverted = errors.New("transaction reverted")
)

// RawRecord is a getTestData result. Timestamp is left as the raw decoded
// value.
type RawRecord struct {
	Name      string
	Type      string
	Passed    bool
	Timestamp any
	Data      string
	Submitter common.Address
}

// RawEvent is a decoded TestDataAdded log. ID is left as the raw decoded value.
type RawEvent struct {
	ID          any
	Submitter   common.Address
	Name        string
	Passed      bool
	TxHash      common.Hash
	BlockHash   common.Hash
	BlockNumber uint64
}

// Receipt summarizes a mined transaction.
type Receipt struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
	Status      uint64      `json:"status"`
}

// PendingTx is a submitted, not yet confirmed transaction.
type PendingTx interface {
	Hash() common.Hash

	// Wait blocks until the transaction is mined or ctx is done.
	Wait(ctx context.Context) (*Receipt, error)
}

// Binding is a typed handle to a deployed TestDataManager contract.
type Binding interface {
	Address() common.Address
	TestDataCount(ctx context.Context) (any, error)
	TestData(ctx context.Context, index int64) (*RawRecord, error)
	AddTestData(ctx context.Context, name, testType string, passed bool, data string) (PendingTx, error)

	// TestDataAddedEvents returns every TestDataAdded log from genesis.
	TestDataAddedEvents(ctx context.Context) ([]RawEvent, error)

	// BlockTime returns the raw timestamp of the block with the given hash.
	BlockTime(ctx context.Context, blockHash common.Hash) (any, error)
}

type binding struct {
	log          logrus.FieldLogger
	address      common.Address
	abi          abi.ABI
	backend      chain.Backend
	signer       chain.Signer
	pollInterval time.Duration
}

var _ Binding = (*binding)(nil)

func (b *binding) Address() common.Address {
	return b.address
}

func (b *binding) call(ctx context.Context, method string, args ...any) ([]any, error) {
	input, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}

	output, err := b.backend.CallContract(ctx, ethereum.CallMsg{To: &b.address, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}

	if len(output) == 0 {
		return nil, fmt.Errorf("calling %s at %s: %w", method, b.address.Hex(), ErrNoCode)
	}

	values, err := b.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", method, err)
	}

	return values, nil
}

// TestDataCount implements Binding.
func (b *binding) TestDataCount(ctx context.Context) (any, error) {
	values, err := b.call(ctx, MethodCount)
	if err != nil {
		return nil, err
	}

	if len(values) != 1 {
		return nil, fmt.Errorf("%s returned %d values", MethodCount, len(values))
	}

	return values[0], nil
}

// TestData implements Binding.
func (b *binding) TestData(ctx context.Context, index int64) (*RawRecord, error) {
	values, err := b.call(ctx, MethodGet, big.NewInt(index))
	if err != nil {
		return nil, err
	}

	record, err := decodeRecord(values)
	if err != nil {
		return nil, fmt.Errorf("decoding record %d: %w", index, err)
	}

	return record, nil
}

// decodeRecord accepts both flat outputs and a single tuple output.
func decodeRecord(values []any) (*RawRecord, error) {
	if len(values) == 1 {
		return decodeTuple(values[0])
	}

	if len(values) != 6 {
		return nil, fmt.Errorf("expected 6 values, got %d", len(values))
	}

	var (
		rec RawRecord
		ok  bool
	)

	if rec.Name, ok = values[0].(string); !ok {
		return nil, fmt.Errorf("testName has type %T", values[0])
	}

	if rec.Type, ok = values[1].(string); !ok {
		return nil, fmt.Errorf("testType has type %T", values[1])
	}

	if rec.Passed, ok = values[2].(bool); !ok {
		return nil, fmt.Errorf("passed has type %T", values[2])
	}

	rec.Timestamp = values[3]

	if rec.Data, ok = values[4].(string); !ok {
		return nil, fmt.Errorf("data has type %T", values[4])
	}

	if rec.Submitter, ok = values[5].(common.Address); !ok {
		return nil, fmt.Errorf("submitter has type %T", values[5])
	}

	return &rec, nil
}

func decodeTuple(v any) (*RawRecord, error) {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected tuple, got %T", v)
	}

	field := func(name string) (reflect.Value, error) {
		f := rv.FieldByName(name)
		if !f.IsValid() {
			return reflect.Value{}, fmt.Errorf("tuple has no field %s", name)
		}

		return f, nil
	}

	values := make([]any, 0, 6)

	for _, name := range []string{"TestName", "TestType", "Passed", "Timestamp", "Data", "Submitter"} {
		f, err := field(name)
		if err != nil {
			return nil, err
		}

		values = append(values, f.Interface())
	}

	return decodeRecord(values)
}

// AddTestData implements Binding.
func (b *binding) AddTestData(
	ctx context.Context, name, testType string, passed bool, data string,
) (PendingTx, error) {
	if b.signer == nil {
		return nil, ErrReadOnly
	}

	input, err := b.abi.Pack(MethodAdd, name, testType, passed, data)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", MethodAdd, err)
	}

	hash, err := b.signer.SendTransaction(ctx, b.address, input)
	if err != nil {
		return nil, err
	}

	b.log.WithField("tx", hash.Hex()).Info("Submitted addTestData transaction")

	return &pendingTx{
		hash:     hash,
		backend:  b.backend,
		interval: b.pollInterval,
	}, nil
}

// TestDataAddedEvents implements Binding.
func (b *binding) TestDataAddedEvents(ctx context.Context) ([]RawEvent, error) {
	event := b.abi.Events[EventDataAdded]

	logs, err := b.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		Addresses: []common.Address{b.address},
		Topics:    [][]common.Hash{{event.ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s logs: %w", EventDataAdded, err)
	}

	var indexed abi.Arguments

	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	events := make([]RawEvent, 0, len(logs))

	for _, lg := range logs {
		if lg.Removed {
			continue
		}

		ev, err := b.decodeEvent(lg, indexed)
		if err != nil {
			return nil, fmt.Errorf("decoding log %s/%d: %w", lg.TxHash.Hex(), lg.Index, err)
		}

		events = append(events, ev)
	}

	return events, nil
}

func (b *binding) decodeEvent(lg types.Log, indexed abi.Arguments) (RawEvent, error) {
	fields := make(map[string]any, 4)

	if len(lg.Topics) == 0 {
		return RawEvent{}, errors.New("log has no topics")
	}

	if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
		return RawEvent{}, fmt.Errorf("parsing topics: %w", err)
	}

	if err := b.abi.UnpackIntoMap(fields, EventDataAdded, lg.Data); err != nil {
		return RawEvent{}, fmt.Errorf("unpacking data: %w", err)
	}

	ev := RawEvent{
		ID:          fields["id"],
		TxHash:      lg.TxHash,
		BlockHash:   lg.BlockHash,
		BlockNumber: lg.BlockNumber,
	}

	ev.Submitter, _ = fields["submitter"].(common.Address)
	ev.Name, _ = fields["testName"].(string)
	ev.Passed, _ = fields["passed"].(bool)

	return ev, nil
}

// BlockTime implements Binding.
func (b *binding) BlockTime(ctx context.Context, blockHash common.Hash) (any, error) {
	header, err := b.backend.HeaderByHash(ctx, blockHash)
	if err != nil {
		return nil, fmt.Errorf("getting block %s: %w", blockHash.Hex(), err)
	}

	return header.Time, nil
}

type pendingTx struct {
	hash     common.Hash
	backend  chain.Backend
	interval time.Duration
}

var _ PendingTx = (*pendingTx)(nil)

func (p *pendingTx) Hash() common.Hash {
	return p.hash
}

// Wait implements PendingTx by polling for the receipt.
func (p *pendingTx) Wait(ctx context.Context) (*Receipt, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		receipt, err := p.backend.TransactionReceipt(ctx, p.hash)

		switch {
		case err == nil && receipt != nil:
			out := &Receipt{
				TxHash:  p.hash,
				GasUsed: receipt.GasUsed,
				Status:  receipt.Status,
			}

			if receipt.BlockNumber != nil {
				out.BlockNumber = receipt.BlockNumber.Uint64()
			}

			if receipt.Status == types.ReceiptStatusFailed {
				return out, fmt.Errorf("%w: %s", ErrReverted, p.hash.Hex())
			}

			return out, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("getting receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
