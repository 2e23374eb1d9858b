package dsk

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Sweep builds one MinimumCardinalityDataset per threshold from src
// concurrently. The results are in the same order as thresholds. src must be
// safe for concurrent reads. If any construction fails, or ctx is cancelled
// before all constructions start, Sweep returns an error and no datasets.
func Sweep(ctx context.Context, src Dataset, thresholds []int, opts ...MinCardOption) ([]*MinimumCardinalityDataset, error) {
	ret := make([]*MinimumCardinalityDataset, len(thresholds))
	eg, ctx := errgroup.WithContext(ctx)
	for i, min := range thresholds {
		i, min := i, min
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := NewMinimumCardinalityDataset(src, min, opts...)
			if err != nil {
				return errors.Wrapf(err, "min cardinality %d", min)
			}
			ret[i] = d
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}
