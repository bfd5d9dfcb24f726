package push

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// batchOutcome is the settled result of one gateway call. Each goroutine owns
// exactly one outcome; nothing is merged until every batch has settled.
type batchOutcome[In any, Out any] struct {
	index  int
	batch  In
	result Out
	err    error
}

// fanOut runs fn for every batch with at most limit calls in flight.
// A failing batch never cancels the others: errors are kept on the outcome.
func fanOut[In any, Out any](ctx context.Context, batches []In, limit int, fn func(context.Context, In) (Out, error)) []batchOutcome[In, Out] {
	outcomes := make([]batchOutcome[In, Out], len(batches))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			result, err := fn(ctx, batch)
			outcomes[i] = batchOutcome[In, Out]{index: i, batch: batch, result: result, err: err}
			return nil
		})
	}
	g.Wait()
	return outcomes
}
