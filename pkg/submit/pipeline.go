// Package submit turns a test result and its attached file into an
// on-chain record.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethpandaops/testledger/pkg/chain"
	"github.com/ethpandaops/testledger/pkg/config"
	"github.com/ethpandaops/testledger/pkg/contract"
	"github.com/sirupsen/logrus"
)

// Result describes a confirmed submission.
type Result struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
}

// Pipeline validates, encodes and writes submissions.
type Pipeline struct {
	log     logrus.FieldLogger
	binding contract.Binding
	timeout time.Duration

	after func(time.Duration) <-chan time.Time
	now   func() time.Time
}

// NewPipeline creates a pipeline writing through binding. A nil binding is
// allowed; Submit then fails with ErrNoContract.
func NewPipeline(log logrus.FieldLogger, binding contract.Binding, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = config.DefaultConfirmationTimeout
	}

	return &Pipeline{
		log:     log.WithField("component", "submit"),
		binding: binding,
		timeout: timeout,
		after:   time.After,
		now:     time.Now,
	}
}

// WithClock sets the clock used for envelope timestamps.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now

	return p
}

// Submit stores meta and the draft's uploaded file on chain and waits for
// the receipt. If confirmation takes longer than the pipeline timeout the
// returned error wraps ErrConfirmationTimeout and the result carries the
// transaction hash; the transaction may still be mined. On success the
// draft is cleared.
func (p *Pipeline) Submit(ctx context.Context, meta Metadata, draft *Draft) (*Result, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	if p.binding == nil {
		return nil, ErrNoContract
	}

	if draft == nil {
		return nil, ErrNoFile
	}

	if _, ok := draft.File(); !ok {
		return nil, ErrNoFile
	}

	desc, ok := draft.Descriptor()
	if !ok {
		return nil, ErrUploadIncomplete
	}

	payload, err := BuildEnvelope(meta, &desc, p.now())
	if err != nil {
		return nil, err
	}

	log := p.log.WithFields(logrus.Fields{
		"name": meta.Name,
		"type": meta.Type,
		"cid":  desc.CID,
	})

	tx, err := p.binding.AddTestData(ctx, meta.Name, meta.Type, meta.Passed(), payload)
	if err != nil {
		log.WithError(err).Error("Failed to send submission")

		return nil, classify(err)
	}

	log = log.WithField("tx", tx.Hash().Hex())
	log.Info("Submission sent, waiting for confirmation")

	type outcome struct {
		receipt *contract.Receipt
		err     error
	}

	// Buffered so the waiter can finish after a timeout without blocking.
	done := make(chan outcome, 1)

	go func() {
		receipt, err := tx.Wait(ctx)
		done <- outcome{receipt: receipt, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			log.WithError(o.err).Error("Submission failed")

			return nil, classify(o.err)
		}

		draft.Remove()

		log.WithFields(logrus.Fields{
			"block":    o.receipt.BlockNumber,
			"gas_used": o.receipt.GasUsed,
		}).Info("Submission confirmed")

		return &Result{
			TxHash:      o.receipt.TxHash,
			BlockNumber: o.receipt.BlockNumber,
			GasUsed:     o.receipt.GasUsed,
		}, nil
	case <-p.after(p.timeout):
		log.WithField("timeout", p.timeout).Warn("Confirmation timed out, transaction may still be mined")

		return &Result{TxHash: tx.Hash()}, fmt.Errorf(
			"%w after %s", ErrConfirmationTimeout, p.timeout,
		)
	case <-ctx.Done():
		log.WithError(ctx.Err()).Warn("Submission abandoned before confirmation")

		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, ctx.Err())
	}
}

// UserMessage returns a short message suitable for display.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfirmationTimeout):
		return "Transaction is taking too long to confirm. It might still complete in the background."
	case errors.Is(err, chain.ErrUserRejected):
		return "Transaction was rejected in your wallet."
	case errors.Is(err, ErrInsufficientFunds):
		return "Insufficient funds to complete the transaction."
	case errors.Is(err, ErrNoContract):
		return "Contract not initialized. Please connect your wallet."
	case errors.Is(err, ErrNoFile), errors.Is(err, ErrUploadIncomplete):
		return "Please upload a file before submitting."
	case errors.Is(err, ErrInvalidMetadata):
		return err.Error()
	default:
		return "Failed to store test data on the blockchain."
	}
}
