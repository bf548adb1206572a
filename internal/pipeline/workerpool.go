package pipeline

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/nsagency/pkg/metrics"
)

// Observer is notified after every task completes, successful or not.
type Observer func(completed, total int)

// runBounded executes n tasks with at most width in flight and waits for
// all of them. Each task writes only its own result slot, so results come
// back in index order regardless of completion order. A failing task does
// not cancel its siblings; the first error observed is returned once every
// task has drained.
func runBounded[R any](ctx context.Context, pool string, n, width int, task func(ctx context.Context, i int) (R, error), observe Observer) ([]R, error) {
	results := make([]R, n)
	if n == 0 {
		return results, nil
	}
	if width <= 0 {
		width = 1
	}

	gauge := metrics.ActiveWorkers.WithLabelValues(pool)
	var completed atomic.Int64

	var g errgroup.Group
	g.SetLimit(width)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			gauge.Inc()
			defer gauge.Dec()

			r, err := task(ctx, i)
			if err == nil {
				results[i] = r
			}
			if observe != nil {
				observe(int(completed.Add(1)), n)
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
