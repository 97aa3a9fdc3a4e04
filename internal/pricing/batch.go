package pricing

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one request in a batch.
type Outcome struct {
	Result Result
	Err    error
}

// ValueBatch values every request on at most workers goroutines
// (workers <= 0 means GOMAXPROCS) and returns one Outcome per request, in
// input order.
//
// Requests are independent: an error in one never stops the others. If ctx
// is cancelled, requests that have not started yet report ctx.Err().
func ValueBatch(ctx context.Context, reqs []Request, workers int) []Outcome {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]Outcome, len(reqs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			out[i].Result, out[i].Err = Value(reqs[i])
			return nil
		})
	}
	_ = g.Wait() // workers never fail the group

	return out
}
