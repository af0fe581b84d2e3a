package dashboard

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethpandaops/testledger/pkg/records"
	"github.com/ethpandaops/testledger/pkg/submit"
)

// SampleRecords are the records written by Seed.
var SampleRecords = []submit.Metadata{
	{
		Name:          "Login Authentication Test",
		Type:          records.CategoryUI,
		Result:        submit.ResultPass,
		ExecutionTime: "1250",
		TestData:      "Test executed successfully. User login validated with correct credentials. Response time: 1.25s",
	},
	{
		Name:          "Payment API Integration Test",
		Type:          records.CategoryAPI,
		Result:        submit.ResultFail,
		ExecutionTime: "3200",
		TestData: "Test failed. Payment API returned error code 500. Expected response: 200 OK. " +
			"Actual response: 500 Internal Server Error.",
	},
	{
		Name:          "User Registration Flow",
		Type:          records.CategoryIntegration,
		Result:        submit.ResultPass,
		ExecutionTime: "2100",
		TestData: "Test passed. User registration completed successfully. Email verification sent. " +
			"Database record created.",
	},
}

// SeedResult is one seeded record.
type SeedResult struct {
	Name        string      `json:"name"`
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
}

// Seed writes SampleRecords one at a time, waiting for each receipt. It
// stops at the first failure and returns what was written so far.
func (s *service) Seed(ctx context.Context) ([]SeedResult, error) {
	sess, err := s.readers()
	if err != nil {
		return nil, err
	}

	out := make([]SeedResult, 0, len(SampleRecords))

	for _, meta := range SampleRecords {
		payload, err := submit.BuildEnvelope(meta, nil, s.now())
		if err != nil {
			return out, err
		}

		s.log.WithField("name", meta.Name).Info("Adding sample record")

		tx, err := sess.binding.AddTestData(ctx, meta.Name, meta.Type, meta.Passed(), payload)
		if err != nil {
			return out, fmt.Errorf("adding %q: %w", meta.Name, err)
		}

		receipt, err := tx.Wait(ctx)
		if err != nil {
			return out, fmt.Errorf("waiting for %q: %w", meta.Name, err)
		}

		out = append(out, SeedResult{
			Name:        meta.Name,
			TxHash:      receipt.TxHash,
			BlockNumber: receipt.BlockNumber,
		})
	}

	return out, nil
}
