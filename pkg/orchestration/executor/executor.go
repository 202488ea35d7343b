// Package executor runs the per-client step of a round either one client
// after another or as a bounded fork-join.
package executor

import (
	"context"

	"github.com/absmach/fedprox/pkg/orchestration"
	"golang.org/x/sync/errgroup"
)

type sequential struct{}

func NewSequential() orchestration.ClientExecutor {
	return sequential{}
}

func (sequential) Run(ctx context.Context, n int, fn func(ctx context.Context, client int) error) error {
	for i := range n {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}

	return nil
}

type parallel struct {
	limit int
}

// NewParallel runs at most limit clients at once. A limit below 2 falls back
// to sequential execution.
func NewParallel(limit int) orchestration.ClientExecutor {
	if limit < 2 {
		return sequential{}
	}

	return parallel{limit: limit}
}

func (p parallel) Run(ctx context.Context, n int, fn func(ctx context.Context, client int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			return fn(gctx, i)
		})
	}

	return g.Wait()
}
