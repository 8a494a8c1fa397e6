package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/seantiz/groundstate/internal/model"
	"github.com/seantiz/groundstate/internal/result"
	"github.com/seantiz/groundstate/internal/runconfig"
)

// Job is one configuration and its input payload.
type Job struct {
	Config  runconfig.Configuration
	Payload any
}

// BatchResult is the outcome of one Job. Err holds the run's own failure;
// it does not stop the other jobs.
type BatchResult struct {
	Run    *model.Run
	Record result.Record
	Err    error
}

// RunBatch executes independent jobs concurrently, at most limit at a time
// (unbounded when limit < 1). Results are returned in job order. The
// returned error is non-nil only when a run could not be recorded; jobs not
// yet started are then skipped.
func (e *Engine) RunBatch(ctx context.Context, jobs []Job, limit int) ([]BatchResult, error) {
	results := make([]BatchResult, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			run, rec, err := e.Execute(ctx, job.Config, job.Payload)
			results[i] = BatchResult{Run: run, Record: rec, Err: err}
			if run == nil && err != nil {
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}
