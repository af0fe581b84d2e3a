package contract

import (
	"context"
	"errors"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contractAddr = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"

var submitter = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func newTestResolver(t *testing.T) Resolver {
	t.Helper()

	r, err := NewResolver(testLogger(), ResolverOptions{
		Addresses: map[uint64]string{
			1:     "",
			31337: contractAddr,
		},
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	return r
}

func newTestNode(t *testing.T) *fakeNode {
	t.Helper()

	parsed, err := DefaultABI()
	require.NoError(t, err)

	return &fakeNode{abi: parsed, headers: map[common.Hash]*types.Header{}}
}

func TestResolver_Resolve(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name    string
		chainID uint64
		wantErr bool
	}{
		{name: "deployed", chainID: 31337},
		{name: "empty address", chainID: 1, wantErr: true},
		{name: "unknown chain", chainID: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := r.Resolve(tt.chainID, newTestNode(t), nil)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, common.HexToAddress(contractAddr), b.Address())

				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedNetwork)

			var unsupported *UnsupportedNetworkError
			require.True(t, errors.As(err, &unsupported))
			assert.Equal(t, tt.chainID, unsupported.ChainID)
		})
	}
}

func TestNewResolver_InvalidAddress(t *testing.T) {
	_, err := NewResolver(testLogger(), ResolverOptions{
		Addresses: map[uint64]string{31337: "not-an-address"},
	})
	require.Error(t, err)
}

func TestBinding_Reads(t *testing.T) {
	node := newTestNode(t)
	node.records = []storedRecord{
		{name: "Login", testType: "ui", passed: true, timestamp: 100, data: `{"a":1}`, submitter: submitter},
		{name: "Payments", testType: "api", passed: false, timestamp: 300, data: `{"b":2}`, submitter: submitter},
	}

	b, err := newTestResolver(t).Resolve(31337, node, nil)
	require.NoError(t, err)

	count, err := b.TestDataCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2), count)

	rec, err := b.TestData(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Payments", rec.Name)
	assert.Equal(t, "api", rec.Type)
	assert.False(t, rec.Passed)
	assert.Equal(t, big.NewInt(300), rec.Timestamp)
	assert.Equal(t, `{"b":2}`, rec.Data)
	assert.Equal(t, submitter, rec.Submitter)

	_, err = b.TestData(context.Background(), 5)
	require.Error(t, err)
}

func TestBinding_NoCode(t *testing.T) {
	node := newTestNode(t)
	node.empty = true

	b, err := newTestResolver(t).Resolve(31337, node, nil)
	require.NoError(t, err)

	_, err = b.TestDataCount(context.Background())
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestDecodeRecord_Tuple(t *testing.T) {
	tuple := struct {
		TestName  string
		TestType  string
		Passed    bool
		Timestamp *big.Int
		Data      string
		Submitter common.Address
	}{
		TestName:  "Tuple",
		TestType:  "security",
		Passed:    true,
		Timestamp: big.NewInt(42),
		Data:      "{}",
		Submitter: submitter,
	}

	rec, err := decodeRecord([]any{tuple})
	require.NoError(t, err)
	assert.Equal(t, "Tuple", rec.Name)
	assert.Equal(t, "security", rec.Type)
	assert.True(t, rec.Passed)
	assert.Equal(t, big.NewInt(42), rec.Timestamp)
	assert.Equal(t, submitter, rec.Submitter)

	_, err = decodeRecord([]any{struct{ Other string }{}})
	assert.Error(t, err)

	_, err = decodeRecord([]any{1, 2})
	assert.Error(t, err)
}

func TestBinding_Events(t *testing.T) {
	node := newTestNode(t)
	blockA := common.HexToHash("0xa")
	blockB := common.HexToHash("0xb")
	node.headers[blockA] = &types.Header{Time: 1_700_000_000}
	node.headers[blockB] = &types.Header{Time: 1_700_000_100}

	removed := node.eventLog(9, submitter, "gone", true, blockA)
	removed.Removed = true

	node.logs = []types.Log{
		node.eventLog(0, submitter, "first", true, blockA),
		node.eventLog(1, submitter, "second", false, blockB),
		removed,
	}

	b, err := newTestResolver(t).Resolve(31337, node, nil)
	require.NoError(t, err)

	events, err := b.TestDataAddedEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, big.NewInt(1), events[1].ID)
	assert.Equal(t, submitter, events[1].Submitter)
	assert.Equal(t, "second", events[1].Name)
	assert.False(t, events[1].Passed)
	assert.Equal(t, blockB, events[1].BlockHash)
	assert.Equal(t, uint64(2), events[1].BlockNumber)

	ts, err := b.BlockTime(context.Background(), blockB)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_100), ts)

	_, err = b.BlockTime(context.Background(), common.HexToHash("0xc"))
	assert.Error(t, err)
}

func TestBinding_AddTestData(t *testing.T) {
	t.Run("read only", func(t *testing.T) {
		b, err := newTestResolver(t).Resolve(31337, newTestNode(t), nil)
		require.NoError(t, err)

		_, err = b.AddTestData(context.Background(), "n", "ui", true, "{}")
		assert.ErrorIs(t, err, ErrReadOnly)
	})

	t.Run("mined after polling", func(t *testing.T) {
		node := newTestNode(t)
		node.notFound = 2
		node.receipt = &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(12),
			GasUsed:     51_000,
		}

		signer := &recordingSigner{address: submitter}

		b, err := newTestResolver(t).Resolve(31337, node, signer)
		require.NoError(t, err)

		tx, err := b.AddTestData(context.Background(), "Login", "ui", true, `{"x":1}`)
		require.NoError(t, err)
		assert.Equal(t, common.HexToHash("0xabc"), tx.Hash())
		assert.Equal(t, common.HexToAddress(contractAddr), signer.to)

		method := node.abi.Methods[MethodAdd]
		assert.Equal(t, method.ID, signer.data[:4])

		args, err := method.Inputs.Unpack(signer.data[4:])
		require.NoError(t, err)
		assert.Equal(t, []any{"Login", "ui", true, `{"x":1}`}, args)

		receipt, err := tx.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(12), receipt.BlockNumber)
		assert.Equal(t, uint64(51_000), receipt.GasUsed)
		assert.Equal(t, 3, node.polls)
	})

	t.Run("reverted", func(t *testing.T) {
		node := newTestNode(t)
		node.receipt = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(3)}

		b, err := newTestResolver(t).Resolve(31337, node, &recordingSigner{})
		require.NoError(t, err)

		tx, err := b.AddTestData(context.Background(), "n", "ui", false, "{}")
		require.NoError(t, err)

		_, err = tx.Wait(context.Background())
		assert.ErrorIs(t, err, ErrReverted)
	})

	t.Run("wait honours context", func(t *testing.T) {
		node := newTestNode(t)
		node.notFound = 1 << 30

		b, err := newTestResolver(t).Resolve(31337, node, &recordingSigner{})
		require.NoError(t, err)

		tx, err := b.AddTestData(context.Background(), "n", "ui", false, "{}")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err = tx.Wait(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestLoadABI(t *testing.T) {
	dir := t.TempDir()

	raw, err := os.ReadFile("abi/TestDataManager.json")
	require.NoError(t, err)

	artifact := []byte(`{"contractName":"TestDataManager","abi":` + string(raw) + `,"bytecode":"0x"}`)

	rawPath := filepath.Join(dir, "raw.json")
	artifactPath := filepath.Join(dir, "artifact.json")
	emptyPath := filepath.Join(dir, "empty.json")
	partialPath := filepath.Join(dir, "partial.json")

	require.NoError(t, os.WriteFile(rawPath, raw, 0o644))
	require.NoError(t, os.WriteFile(artifactPath, artifact, 0o644))
	require.NoError(t, os.WriteFile(emptyPath, []byte(`{"contractName":"x"}`), 0o644))
	require.NoError(t, os.WriteFile(partialPath, []byte(`[{"type":"function","name":"getTestDataCount","inputs":[],"outputs":[]}]`), 0o644))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "embedded", path: ""},
		{name: "raw abi", path: rawPath},
		{name: "hardhat artifact", path: artifactPath},
		{name: "artifact without abi", path: emptyPath, wantErr: true},
		{name: "missing members", path: partialPath, wantErr: true},
		{name: "missing file", path: filepath.Join(dir, "nope.json"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := LoadABI(tt.path)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Contains(t, parsed.Methods, MethodGet)
			assert.Contains(t, parsed.Events, EventDataAdded)
		})
	}
}
