package shrink

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/book-expert/pdf-tools/internal/progress"
)

// Job is one file of a batch.
type Job struct {
	InputPath  string
	OutputPath string
}

// Result is the outcome of one Job. Exactly one of Report and Err is set.
type Result struct {
	Job    Job
	Report *Report
	Err    error
}

type indexedJob struct {
	job   Job
	index int
}

type indexedResult struct {
	result Result
	index  int
}

// ShrinkAll shrinks every job with a pool of workers (runtime.NumCPU() when
// workers is not positive). A failed job does not stop the others. Results are
// returned in job order. observer receives one update per finished job on the
// calling goroutine.
func (engine *Engine) ShrinkAll(
	ctx context.Context,
	jobs []Job,
	settings Settings,
	workers int,
	observer progress.Observer,
) []Result {
	observer = progress.OrDiscard(observer)

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	workers = min(workers, max(len(jobs), 1))

	queue := make(chan indexedJob, len(jobs))
	done := make(chan indexedResult, len(jobs))

	var waitGroup sync.WaitGroup

	// Start a pool of worker goroutines.
	for range workers {
		waitGroup.Add(1)

		go engine.batchWorker(ctx, &waitGroup, settings, queue, done)
	}

	for index, job := range jobs {
		queue <- indexedJob{job: job, index: index}
	}

	close(queue)

	go func() {
		waitGroup.Wait()
		close(done)
	}()

	results := make([]Result, len(jobs))
	finished := 0

	for item := range done {
		results[item.index] = item.result
		finished++
		observer.Progress(finished, len(jobs))
	}

	return results
}

// batchWorker pulls jobs until the queue is closed and empty.
func (engine *Engine) batchWorker(
	ctx context.Context,
	waitGroup *sync.WaitGroup,
	settings Settings,
	queue <-chan indexedJob,
	done chan<- indexedResult,
) {
	defer waitGroup.Done()

	for item := range queue {
		result := Result{Job: item.job}

		if ctxErr := ctx.Err(); ctxErr != nil {
			result.Err = ctxErr
			done <- indexedResult{result: result, index: item.index}

			continue
		}

		engine.log.Info("Starting processing for: %s", filepath.Base(item.job.InputPath))

		report, shrinkErr := engine.Shrink(
			ctx,
			item.job.InputPath,
			item.job.OutputPath,
			settings,
			progress.Discard,
		)
		if shrinkErr != nil {
			engine.log.Error(
				"Failed to process %s: %v",
				filepath.Base(item.job.InputPath),
				shrinkErr,
			)

			result.Err = shrinkErr
		} else {
			result.Report = report
		}

		done <- indexedResult{result: result, index: item.index}
	}
}
