// Package scatter runs independent sub-operations concurrently and reports
// every outcome. A failing item never cancels its siblings; callers look at
// the whole Report and decide what a partial failure means for them.
package scatter

import (
	"context"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit bounds concurrent items when the caller passes limit <= 0.
const DefaultLimit = 8

// Failure is one item that returned an error.
type Failure struct {
	Index int
	Err   error
}

// Report is the result of a Gather call. Failed is ordered by index.
type Report struct {
	Total  int
	Failed []Failure
}

// OK reports whether every item succeeded.
func (r *Report) OK() bool {
	return len(r.Failed) == 0
}

// Err combines the failures into one error, nil when all succeeded.
// errors.Is and errors.As see through the combination.
func (r *Report) Err() error {
	var err error
	for _, f := range r.Failed {
		err = multierr.Append(err, f.Err)
	}
	return err
}

// Gather calls fn for indexes 0..n-1 with at most limit calls in flight and
// waits for all of them. Items not yet started when ctx is done fail with
// ctx.Err() instead of running.
func Gather(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error) *Report {
	if limit <= 0 {
		limit = DefaultLimit
	}

	errs := make([]error, n)
	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Total: n}
	for i, err := range errs {
		if err != nil {
			report.Failed = append(report.Failed, Failure{Index: i, Err: err})
		}
	}
	return report
}
