package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
)

// ParallelConfig holds configuration for processing a batch of scans. Sheets
// are independent; parallelism is one worker per image with no shared state.
type ParallelConfig struct {
	MaxWorkers       int              // number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback // optional progress reporting
	ContinueOnError  bool             // one sheet's failure never aborts siblings
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		MaxWorkers:      runtime.NumCPU(),
		ContinueOnError: true,
	}
}

// sheetJob is one queued image.
type sheetJob struct {
	index int
	image image.Image
}

// sheetResult is one worker's outcome.
type sheetResult struct {
	index  int
	result *Result
	err    error
}

// ProcessImages processes scans in order, sequentially.
func (p *Pipeline) ProcessImages(ctx context.Context, images []image.Image) ([]*Result, []error) {
	results := make([]*Result, len(images))
	errs := make([]error, len(images))
	for i, img := range images {
		results[i], errs[i] = p.ProcessContext(ctx, img)
	}
	return results, errs
}

// ProcessImagesParallel processes scans with a worker pool, returning
// per-image results and errors in input order. A fatal error on one image is
// recorded in its slot and does not disturb the others.
func (p *Pipeline) ProcessImagesParallel(ctx context.Context, images []image.Image, cfg ParallelConfig) ([]*Result, []error, error) {
	if len(images) == 0 {
		return nil, nil, errors.New("no images provided")
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	if cfg.MaxWorkers == 1 || len(images) == 1 {
		results, errs := p.ProcessImages(ctx, images)
		return results, errs, ctx.Err()
	}

	if cfg.ProgressCallback != nil {
		cfg.ProgressCallback.OnStart(len(images))
		defer cfg.ProgressCallback.OnComplete()
	}

	jobs := make(chan sheetJob, len(images))
	results := make(chan sheetResult, len(images))

	var wg sync.WaitGroup
	for range cfg.MaxWorkers {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, img := range images {
			select {
			case jobs <- sheetJob{index: i, image: img}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*Result, len(images))
	errs := make([]error, len(images))
	done := 0
	for r := range results {
		ordered[r.index] = r.result
		errs[r.index] = r.err
		done++
		if cfg.ProgressCallback != nil {
			cfg.ProgressCallback.OnProgress(done, len(images))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if !cfg.ContinueOnError {
		for i, err := range errs {
			if err != nil {
				return ordered, errs, fmt.Errorf("sheet %d: %w", i, err)
			}
		}
	}
	return ordered, errs, nil
}

// worker drains the job channel until it closes or the context ends.
func (p *Pipeline) worker(ctx context.Context, jobs <-chan sheetJob, results chan<- sheetResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res, err := p.ProcessContext(ctx, job.image)
			select {
			case results <- sheetResult{index: job.index, result: res, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
