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

// Reader lists test records.
type Reader interface {
	// ListAll fetches every record, newest first.
	ListAll(ctx context.Context) ([]Record, error)

	// Get fetches a single record by id.
	Get(ctx context.Context, id int64) (*Record, error)
}

// NewReader creates a record reader over binding.
func NewReader(log logrus.FieldLogger, binding contract.Binding) Reader {
	return &reader{
		log:     log.WithField("component", "records"),
		binding: binding,
	}
}

type reader struct {
	log     logrus.FieldLogger
	binding contract.Binding
}

var _ Reader = (*reader)(nil)

func (r *reader) count(ctx context.Context) (int64, error) {
	raw, err := r.binding.TestDataCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading record count: %w", err)
	}

	count, err := numeric.Normalize(raw)
	if err != nil {
		return 0, fmt.Errorf("normalizing record count: %w", err)
	}

	if count < 0 {
		return 0, fmt.Errorf("negative record count %d", count)
	}

	return count, nil
}

// ListAll implements Reader.
func (r *reader) ListAll(ctx context.Context) ([]Record, error) {
	count, err := r.count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	r.log.WithField("count", count).Debug("Fetching records")

	out := make([]Record, count)
	g, gctx := errgroup.WithContext(ctx)

	for i := range count {
		g.Go(func() error {
			rec, err := r.fetch(gctx, i)
			if err != nil {
				return err
			}

			out[i] = *rec

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.log.WithError(err).Error("Failed to fetch records")

		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	slices.SortStableFunc(out, func(a, b Record) int {
		return cmp.Compare(b.Timestamp, a.Timestamp)
	})

	r.log.WithField("count", len(out)).Debug("Records fetched")

	return out, nil
}

// Get implements Reader.
func (r *reader) Get(ctx context.Context, id int64) (*Record, error) {
	count, err := r.count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	if id < 0 || id >= count {
		return nil, fmt.Errorf("%w: id %d (count %d)", ErrNotFound, id, count)
	}

	rec, err := r.fetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	return rec, nil
}

func (r *reader) fetch(ctx context.Context, id int64) (*Record, error) {
	raw, err := r.binding.TestData(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching record %d: %w", id, err)
	}

	seconds, err := numeric.Normalize(raw.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("record %d timestamp: %w", id, err)
	}

	return &Record{
		ID:        id,
		Name:      raw.Name,
		Category:  raw.Type,
		Passed:    raw.Passed,
		Timestamp: seconds * 1000,
		Data:      raw.Data,
		Submitter: raw.Submitter.Hex(),
	}, nil
}
