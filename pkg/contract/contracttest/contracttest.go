// Package contracttest provides an in-memory contract.Binding for tests.
package contracttest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethpandaops/testledger/pkg/contract"
)

// Submission is a recorded AddTestData call.
type Submission struct {
	Name   string
	Type   string
	Passed bool
	Data   string
}

// Binding is a configurable contract.Binding backed by slices and maps.
// Records are appended by AddTestData, so reads observe earlier writes.
type Binding struct {
	mu sync.Mutex

	Addr common.Address

	// Count overrides the record count. Defaults to big.NewInt(len(Records)).
	Count    any
	CountErr error

	Records    []*contract.RawRecord
	RecordErrs map[int64]error

	Events     []contract.RawEvent
	EventsErr  error
	BlockTimes map[common.Hash]any
	BlockErrs  map[common.Hash]error

	// AddFunc overrides AddTestData when set.
	AddFunc func(ctx context.Context, s Submission) (contract.PendingTx, error)

	Submissions []Submission
}

var _ contract.Binding = (*Binding)(nil)

// Address implements contract.Binding.
func (b *Binding) Address() common.Address {
	return b.Addr
}

// TestDataCount implements contract.Binding.
func (b *Binding) TestDataCount(context.Context) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.CountErr != nil {
		return nil, b.CountErr
	}

	if b.Count != nil {
		return b.Count, nil
	}

	return big.NewInt(int64(len(b.Records))), nil
}

// TestData implements contract.Binding.
func (b *Binding) TestData(_ context.Context, index int64) (*contract.RawRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err, ok := b.RecordErrs[index]; ok {
		return nil, err
	}

	if index < 0 || index >= int64(len(b.Records)) {
		return nil, fmt.Errorf("execution reverted: index %d out of bounds", index)
	}

	rec := *b.Records[index]

	return &rec, nil
}

// AddTestData implements contract.Binding.
func (b *Binding) AddTestData(
	ctx context.Context, name, testType string, passed bool, data string,
) (contract.PendingTx, error) {
	s := Submission{Name: name, Type: testType, Passed: passed, Data: data}

	if b.AddFunc != nil {
		return b.AddFunc(ctx, s)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.Submissions = append(b.Submissions, s)
	b.Records = append(b.Records, &contract.RawRecord{
		Name:      name,
		Type:      testType,
		Passed:    passed,
		Timestamp: big.NewInt(1_700_000_000),
		Data:      data,
	})

	block := uint64(len(b.Records))

	return &PendingTx{
		TxHash: common.BigToHash(new(big.Int).SetUint64(block)),
		Receipt: &contract.Receipt{
			TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
			BlockNumber: block,
			GasUsed:     21_000,
			Status:      1,
		},
	}, nil
}

// TestDataAddedEvents implements contract.Binding.
func (b *Binding) TestDataAddedEvents(context.Context) ([]contract.RawEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.EventsErr != nil {
		return nil, b.EventsErr
	}

	return append([]contract.RawEvent(nil), b.Events...), nil
}

// BlockTime implements contract.Binding.
func (b *Binding) BlockTime(_ context.Context, blockHash common.Hash) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err, ok := b.BlockErrs[blockHash]; ok {
		return nil, err
	}

	ts, ok := b.BlockTimes[blockHash]
	if !ok {
		return nil, fmt.Errorf("block %s not found", blockHash.Hex())
	}

	return ts, nil
}

// PendingTx is a contract.PendingTx with a canned outcome. When WaitFunc is
// nil, Wait returns Receipt and Err.
type PendingTx struct {
	TxHash   common.Hash
	Receipt  *contract.Receipt
	Err      error
	WaitFunc func(ctx context.Context) (*contract.Receipt, error)
}

var _ contract.PendingTx = (*PendingTx)(nil)

// Hash implements contract.PendingTx.
func (p *PendingTx) Hash() common.Hash {
	return p.TxHash
}

// Wait implements contract.PendingTx.
func (p *PendingTx) Wait(ctx context.Context) (*contract.Receipt, error) {
	if p.WaitFunc != nil {
		return p.WaitFunc(ctx)
	}

	return p.Receipt, p.Err
}
