package records

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/ethpandaops/testledger/pkg/contract"
	"github.com/ethpandaops/testledger/pkg/numeric"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// AuditEvent is a TestDataAdded log joined with its block time.
type AuditEvent struct {
	// Ordinal is the position in this fetch's query result. It is not
	// stable across fetches.
	Ordinal     int    `json:"ordinal"`
	RecordID    int64  `json:"record_id"`
	Name        string `json:"name"`
	Actor       string `json:"actor"`
	Passed      bool   `json:"passed"`
	Timestamp   int64  `json:"timestamp"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

// AuditLog lists TestDataAdded events.
type AuditLog interface {
	// ListAuditEvents fetches every event, newest first.
	ListAuditEvents(ctx context.Context) ([]AuditEvent, error)
}

// NewAuditLog creates an audit log reader over binding.
func NewAuditLog(log logrus.FieldLogger, binding contract.Binding) AuditLog {
	return &auditLog{
		log:     log.WithField("component", "audit"),
		binding: binding,
	}
}

type auditLog struct {
	log     logrus.FieldLogger
	binding contract.Binding
}

var _ AuditLog = (*auditLog)(nil)

// ListAuditEvents implements AuditLog.
func (a *auditLog) ListAuditEvents(ctx context.Context) ([]AuditEvent, error) {
	raw, err := a.binding.TestDataAddedEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: audit: %w", ErrFetchFailed, err)
	}

	out := make([]AuditEvent, len(raw))
	g, gctx := errgroup.WithContext(ctx)

	for i, ev := range raw {
		g.Go(func() error {
			blockTime, err := a.binding.BlockTime(gctx, ev.BlockHash)
			if err != nil {
				return fmt.Errorf("event %d block time: %w", i, err)
			}

			seconds, err := numeric.Normalize(blockTime)
			if err != nil {
				return fmt.Errorf("event %d block time: %w", i, err)
			}

			id, err := numeric.Normalize(ev.ID)
			if err != nil {
				return fmt.Errorf("event %d id: %w", i, err)
			}

			out[i] = AuditEvent{
				Ordinal:     i,
				RecordID:    id,
				Name:        ev.Name,
				Actor:       ev.Submitter.Hex(),
				Passed:      ev.Passed,
				Timestamp:   seconds * 1000,
				TxHash:      ev.TxHash.Hex(),
				BlockNumber: ev.BlockNumber,
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.log.WithError(err).Error("Failed to fetch audit events")

		return nil, fmt.Errorf("%w: audit: %w", ErrFetchFailed, err)
	}

	slices.SortStableFunc(out, func(x, y AuditEvent) int {
		return cmp.Compare(y.Timestamp, x.Timestamp)
	})

	a.log.WithField("count", len(out)).Debug("Audit events fetched")

	return out, nil
}
