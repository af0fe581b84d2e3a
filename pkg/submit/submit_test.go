package submit

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethpandaops/testledger/pkg/chain"
	"github.com/ethpandaops/testledger/pkg/contract"
	"github.com/ethpandaops/testledger/pkg/contract/contracttest"
	"github.com/ethpandaops/testledger/pkg/ipfs"
	"github.com/ethpandaops/testledger/pkg/jsonrpc"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 5, 14, 7, 9, 123_000_000, time.UTC)

type fakePinner struct {
	desc  ipfs.FileDescriptor
	err   error
	calls int
	onPin func()
}

func (p *fakePinner) Name() string { return "fake" }

func (p *fakePinner) Pin(_ context.Context, file ipfs.File) (ipfs.FileDescriptor, error) {
	p.calls++

	if p.onPin != nil {
		p.onPin()
	}

	if p.err != nil {
		return ipfs.FileDescriptor{}, p.err
	}

	desc := p.desc
	desc.Name = file.Name
	desc.Size = file.Size

	return desc, nil
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(bytes.NewBuffer(nil))

	return log
}

func validMeta() Metadata {
	return Metadata{
		Name:          "Login Authentication Test",
		Type:          "ui",
		Result:        ResultPass,
		ExecutionTime: "1500",
	}
}

func uploadedDraft(t *testing.T) *Draft {
	t.Helper()

	d := NewDraft()
	d.Attach(ipfs.File{Name: "report.json", Size: 12, Body: bytes.NewReader([]byte(`{"ok":true}` + "\n"))})

	_, err := d.Upload(context.Background(), &fakePinner{desc: ipfs.FileDescriptor{
		CID: "QmTest",
		URL: "https://ipfs.io/ipfs/QmTest",
	}})
	require.NoError(t, err)

	return d
}

func newTestPipeline(binding contract.Binding) *Pipeline {
	p := NewPipeline(testLogger(), binding, time.Minute)
	p.now = func() time.Time { return fixedNow }

	return p
}

func TestBuildEnvelope(t *testing.T) {
	meta := Metadata{
		Name:          "Checkout <Flow> & Co",
		Type:          "e2e",
		Result:        ResultFail,
		ExecutionTime: "2300",
	}
	desc := ipfs.FileDescriptor{CID: "QmAbc", Name: "out.log", Size: 42, URL: "https://ipfs.io/ipfs/QmAbc"}

	got, err := BuildEnvelope(meta, &desc, fixedNow.In(time.FixedZone("CET", 3600)))
	require.NoError(t, err)

	want := `{"testName":"Checkout <Flow> & Co","testType":"e2e","testResult":"fail","executionTime":"2300",` +
		`"ipfsFile":{"cid":"QmAbc","name":"out.log","size":42,"url":"https://ipfs.io/ipfs/QmAbc"},` +
		`"timestamp":"2024-03-05T14:07:09.123Z"}`
	assert.Equal(t, want, got)

	meta.TestData = "extra notes"
	got, err = BuildEnvelope(meta, &desc, fixedNow)
	require.NoError(t, err)
	assert.Contains(t, got, `"executionTime":"2300","testData":"extra notes","ipfsFile"`)

	got, err = BuildEnvelope(meta, nil, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, `{"testName":"Checkout <Flow> & Co","testType":"e2e","testResult":"fail",`+
		`"executionTime":"2300","testData":"extra notes","timestamp":"2024-03-05T14:07:09.123Z"}`, got)
}

func TestParseEnvelope(t *testing.T) {
	t.Run("built envelope", func(t *testing.T) {
		desc := ipfs.FileDescriptor{CID: "QmAbc", Name: "out.log", Size: 42, URL: "https://ipfs.io/ipfs/QmAbc"}

		raw, err := BuildEnvelope(validMeta(), &desc, fixedNow)
		require.NoError(t, err)

		env, err := ParseEnvelope(raw)
		require.NoError(t, err)

		assert.Equal(t, "Login Authentication Test", env.TestName)
		assert.Equal(t, "1500", env.ExecutionTime)
		require.NotNil(t, env.IPFSFile)
		assert.Equal(t, desc, *env.IPFSFile)
		assert.Equal(t, "2024-03-05T14:07:09.123Z", env.Timestamp)
		assert.Empty(t, env.Extra)
	})

	t.Run("numeric fields and unknown keys", func(t *testing.T) {
		env, err := ParseEnvelope(`{"testName":"x","executionTime":1500,"data":"Test 1 data"}`)
		require.NoError(t, err)

		assert.Equal(t, "1500", env.ExecutionTime)
		assert.Nil(t, env.IPFSFile)
		assert.Equal(t, "Test 1 data", env.Extra["data"])
	})

	t.Run("descriptor without cid is dropped", func(t *testing.T) {
		env, err := ParseEnvelope(`{"ipfsFile":{"name":"a.txt"}}`)
		require.NoError(t, err)
		assert.Nil(t, env.IPFSFile)
	})

	for _, raw := range []string{"", "plain text", "[1,2]", "null", `"str"`} {
		t.Run("malformed "+raw, func(t *testing.T) {
			_, err := ParseEnvelope(raw)
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestMetadata_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(m *Metadata)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Metadata) {}},
		{name: "short name", mutate: func(m *Metadata) { m.Name = "ab" }, errSubstr: "at least 3 characters"},
		{name: "missing type", mutate: func(m *Metadata) { m.Type = "" }, errSubstr: "test type is required"},
		{name: "missing result", mutate: func(m *Metadata) { m.Result = "" }, errSubstr: "test result is required"},
		{name: "missing time", mutate: func(m *Metadata) { m.ExecutionTime = "" }, errSubstr: "execution time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMeta()
			tt.mutate(&m)

			err := m.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, ErrInvalidMetadata)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestDraft(t *testing.T) {
	t.Run("upload without file", func(t *testing.T) {
		_, err := NewDraft().Upload(context.Background(), &fakePinner{})
		assert.ErrorIs(t, err, ErrNoFile)
	})

	t.Run("attach clears previous upload", func(t *testing.T) {
		d := uploadedDraft(t)

		_, ok := d.Descriptor()
		require.True(t, ok)

		d.Attach(ipfs.File{Name: "other.txt", Body: bytes.NewReader(nil)})

		_, ok = d.Descriptor()
		assert.False(t, ok)

		f, ok := d.File()
		require.True(t, ok)
		assert.Equal(t, "other.txt", f.Name)
	})

	t.Run("remove clears both", func(t *testing.T) {
		d := uploadedDraft(t)
		d.Remove()

		_, hasFile := d.File()
		_, hasDesc := d.Descriptor()
		assert.False(t, hasFile)
		assert.False(t, hasDesc)
	})

	t.Run("pin failure keeps file", func(t *testing.T) {
		d := NewDraft()
		d.Attach(ipfs.File{Name: "a.txt", Body: bytes.NewReader(nil)})

		_, err := d.Upload(context.Background(), &fakePinner{err: ipfs.ErrUploadFailed})
		require.ErrorIs(t, err, ipfs.ErrUploadFailed)

		_, ok := d.File()
		assert.True(t, ok)
	})

	t.Run("attachment replaced during upload", func(t *testing.T) {
		d := NewDraft()
		d.Attach(ipfs.File{Name: "a.txt", Body: bytes.NewReader(nil)})

		pinner := &fakePinner{
			desc: ipfs.FileDescriptor{CID: "QmA"},
			onPin: func() {
				d.Attach(ipfs.File{Name: "b.txt", Body: bytes.NewReader(nil)})
			},
		}

		_, err := d.Upload(context.Background(), pinner)
		require.ErrorIs(t, err, ErrDraftChanged)

		_, ok := d.Descriptor()
		assert.False(t, ok)
	})
}

func TestPipeline_Preconditions(t *testing.T) {
	t.Run("no contract", func(t *testing.T) {
		_, err := newTestPipeline(nil).Submit(context.Background(), validMeta(), uploadedDraft(t))
		assert.ErrorIs(t, err, ErrNoContract)
	})

	t.Run("invalid metadata", func(t *testing.T) {
		binding := &contracttest.Binding{}
		meta := validMeta()
		meta.Name = "x"

		_, err := newTestPipeline(binding).Submit(context.Background(), meta, uploadedDraft(t))
		require.ErrorIs(t, err, ErrInvalidMetadata)
		assert.Empty(t, binding.Submissions)
	})

	t.Run("no file", func(t *testing.T) {
		binding := &contracttest.Binding{}

		_, err := newTestPipeline(binding).Submit(context.Background(), validMeta(), NewDraft())
		require.ErrorIs(t, err, ErrNoFile)
		assert.Empty(t, binding.Submissions)

		_, err = newTestPipeline(binding).Submit(context.Background(), validMeta(), nil)
		require.ErrorIs(t, err, ErrNoFile)
	})

	t.Run("file not uploaded", func(t *testing.T) {
		binding := &contracttest.Binding{}
		d := NewDraft()
		d.Attach(ipfs.File{Name: "a.txt", Body: bytes.NewReader(nil)})

		_, err := newTestPipeline(binding).Submit(context.Background(), validMeta(), d)
		require.ErrorIs(t, err, ErrUploadIncomplete)
		assert.Empty(t, binding.Submissions)
	})
}

func TestPipeline_Success(t *testing.T) {
	binding := &contracttest.Binding{}
	draft := uploadedDraft(t)

	res, err := newTestPipeline(binding).Submit(context.Background(), validMeta(), draft)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.BlockNumber)
	assert.Equal(t, uint64(21_000), res.GasUsed)

	require.Len(t, binding.Submissions, 1)
	sub := binding.Submissions[0]
	assert.Equal(t, "Login Authentication Test", sub.Name)
	assert.Equal(t, "ui", sub.Type)
	assert.True(t, sub.Passed)

	// The stored payload decodes back to the submitted values.
	env, err := ParseEnvelope(sub.Data)
	require.NoError(t, err)
	assert.Equal(t, "pass", env.TestResult)
	require.NotNil(t, env.IPFSFile)
	assert.Equal(t, "QmTest", env.IPFSFile.CID)
	assert.Equal(t, "report.json", env.IPFSFile.Name)

	_, hasFile := draft.File()
	assert.False(t, hasFile)
}

func TestPipeline_ConfirmationTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	txHash := common.HexToHash("0xabc")
	binding := &contracttest.Binding{
		AddFunc: func(context.Context, contracttest.Submission) (contract.PendingTx, error) {
			return &contracttest.PendingTx{
				TxHash: txHash,
				WaitFunc: func(context.Context) (*contract.Receipt, error) {
					<-release

					return &contract.Receipt{TxHash: txHash}, nil
				},
			}, nil
		},
	}

	fire := make(chan time.Time, 1)

	var requested time.Duration

	p := NewPipeline(testLogger(), binding, 0)
	p.now = func() time.Time { return fixedNow }
	p.after = func(d time.Duration) <-chan time.Time {
		requested = d
		fire <- fixedNow

		return fire
	}

	draft := uploadedDraft(t)

	res, err := p.Submit(context.Background(), validMeta(), draft)
	require.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Equal(t, 60*time.Second, requested)
	require.NotNil(t, res)
	assert.Equal(t, txHash, res.TxHash)

	// The draft survives so the user can retry.
	_, ok := draft.Descriptor()
	assert.True(t, ok)
	assert.Equal(t, "Transaction is taking too long to confirm. It might still complete in the background.",
		UserMessage(err))
}

func TestPipeline_Classification(t *testing.T) {
	tests := []struct {
		name    string
		sendErr error
		waitErr error
		want    error
		message string
	}{
		{
			name:    "wallet rejection",
			sendErr: &jsonrpc.Error{Code: jsonrpc.CodeUserRejected, Message: "User denied transaction signature"},
			want:    chain.ErrUserRejected,
			message: "Transaction was rejected in your wallet.",
		},
		{
			name:    "rejection text",
			sendErr: errors.New("user rejected the request"),
			want:    chain.ErrUserRejected,
			message: "Transaction was rejected in your wallet.",
		},
		{
			name:    "insufficient funds",
			sendErr: errors.New("insufficient funds for gas * price + value"),
			want:    ErrInsufficientFunds,
			message: "Insufficient funds to complete the transaction.",
		},
		{
			name:    "node timeout",
			sendErr: errors.New("request timeout"),
			want:    ErrConfirmationTimeout,
		},
		{
			name:    "reverted",
			waitErr: contract.ErrReverted,
			want:    ErrSubmissionFailed,
			message: "Failed to store test data on the blockchain.",
		},
		{
			name:    "other send failure",
			sendErr: errors.New("nonce too low"),
			want:    ErrSubmissionFailed,
			message: "Failed to store test data on the blockchain.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binding := &contracttest.Binding{
				AddFunc: func(context.Context, contracttest.Submission) (contract.PendingTx, error) {
					if tt.sendErr != nil {
						return nil, tt.sendErr
					}

					return &contracttest.PendingTx{Err: tt.waitErr}, nil
				},
			}

			draft := uploadedDraft(t)

			_, err := newTestPipeline(binding).Submit(context.Background(), validMeta(), draft)
			require.ErrorIs(t, err, tt.want)

			if tt.message != "" {
				assert.Equal(t, tt.message, UserMessage(err))
			}

			_, ok := draft.Descriptor()
			assert.True(t, ok)
		})
	}
}

func TestPipeline_ContextCancelled(t *testing.T) {
	binding := &contracttest.Binding{
		AddFunc: func(context.Context, contracttest.Submission) (contract.PendingTx, error) {
			return &contracttest.PendingTx{
				WaitFunc: func(ctx context.Context) (*contract.Receipt, error) {
					<-ctx.Done()

					return nil, ctx.Err()
				},
			}, nil
		},
	}

	p := newTestPipeline(binding)
	p.after = func(time.Duration) <-chan time.Time { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for range 50 {
		res, err := p.Submit(ctx, validMeta(), uploadedDraft(t))
		require.ErrorIs(t, err, ErrSubmissionFailed)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, res)
		assert.Equal(t, "Failed to store test data on the blockchain.", UserMessage(err))
	}
}
