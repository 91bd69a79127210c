package batch

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/omr/internal/annotate"
	"github.com/MeKo-Tech/omr/internal/pipeline"
	"github.com/MeKo-Tech/omr/internal/utils"
)

// FileResult is one sheet's outcome within a batch.
type FileResult struct {
	Path          string           `json:"path"`
	Result        *pipeline.Result `json:"result,omitempty"`
	Error         string           `json:"error,omitempty"`
	AnnotatedPath string           `json:"annotated_path,omitempty"`
	DurationNs    int64            `json:"duration_ns"`

	err error
}

// Err returns the underlying processing error, if any.
func (f *FileResult) Err() error { return f.err }

// Result aggregates a whole batch run.
type Result struct {
	Files      []FileResult `json:"files"`
	Processed  int          `json:"processed"`
	Failed     int          `json:"failed"`
	DurationNs int64        `json:"duration_ns"`
}

// ProcessBatch reads every discovered sheet with a worker pool. Each worker
// loads, processes and saves its own files; one sheet's fatal error is
// recorded in its slot and never aborts siblings.
func ProcessBatch(ctx context.Context, pl *pipeline.Pipeline, paths []string,
	cfg Config, progress pipeline.ProgressCallback,
) (*Result, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no sheets to process")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	if progress != nil {
		progress.OnStart(len(paths))
		defer progress.OnComplete()
	}

	start := time.Now()
	res := &Result{Files: make([]FileResult, len(paths))}

	jobs := make(chan int, len(paths))
	var done int
	var doneMu sync.Mutex

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					return
				}
				res.Files[idx] = processFile(ctx, pl, paths[idx], cfg)
				doneMu.Lock()
				done++
				current := done
				doneMu.Unlock()
				if progress != nil {
					progress.OnProgress(current, len(paths))
				}
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range res.Files {
		if res.Files[i].err != nil {
			res.Failed++
		} else {
			res.Processed++
		}
	}
	res.DurationNs = time.Since(start).Nanoseconds()

	if !cfg.ContinueOnError && res.Failed > 0 {
		for i := range res.Files {
			if res.Files[i].err != nil {
				return res, fmt.Errorf("%s: %w", res.Files[i].Path, res.Files[i].err)
			}
		}
	}
	return res, nil
}

// processFile handles a single sheet end to end.
func processFile(ctx context.Context, pl *pipeline.Pipeline, path string, cfg Config) FileResult {
	start := time.Now()
	fr := FileResult{Path: path}

	img, _, err := utils.LoadImage(path)
	if err != nil {
		fr.err = err
		fr.Error = err.Error()
		fr.DurationNs = time.Since(start).Nanoseconds()
		return fr
	}

	result, err := pl.ProcessContext(ctx, img)
	if err != nil {
		fr.err = err
		fr.Error = err.Error()
		fr.DurationNs = time.Since(start).Nanoseconds()
		return fr
	}
	fr.Result = result

	if cfg.OutputDir != "" && result.Annotated != nil {
		out := filepath.Join(cfg.OutputDir, AnnotatedName(path, result))
		var toSave image.Image = result.Annotated
		if cfg.SaveThumbnails {
			toSave = annotate.Thumbnail(result.Annotated, pl.Config().Annotate)
		}
		if err := utils.SaveImage(toSave, out); err == nil {
			fr.AnnotatedPath = out
		} else {
			slog.Warn("failed to save annotated sheet", "path", out, "error", err)
		}
	}

	fr.DurationNs = time.Since(start).Nanoseconds()
	return fr
}

// AnnotatedName derives the annotated output filename: the extracted student
// ID when present, otherwise the source basename.
func AnnotatedName(path string, res *pipeline.Result) string {
	if id := res.TrimmedID(); id != "" {
		return id + ".jpg"
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_annotated.jpg"
}
