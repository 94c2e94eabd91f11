// Package worker runs independent per-sample jobs on a bounded pool of goroutines.
package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool bounds how many jobs run at once.
type Pool struct {
	Workers int
	// OnDone is called once per finished job. Calls may come from any worker
	// goroutine, but never concurrently.
	OnDone func()
}

// Map runs fn for every item and returns the results index-aligned with items,
// so callers see the same output no matter how jobs were scheduled. The first
// error cancels the remaining jobs and is returned.
func Map[T, R any](ctx context.Context, p Pool, items []T, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	out := make([]R, len(items))
	done := make(chan struct{}, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	// Progress is reported from a single goroutine so OnDone needs no locking.
	reported := make(chan struct{})
	go func() {
		defer close(reported)
		for range done {
			if p.OnDone != nil {
				p.OnDone()
			}
		}
	}()

	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, i, item)
			if err != nil {
				return err
			}
			out[i] = r
			done <- struct{}{}
			return nil
		})
	}

	err := g.Wait()
	close(done)
	<-reported
	if err != nil {
		return nil, err
	}
	// Jobs skipped after a cancellation leave zero values behind.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
