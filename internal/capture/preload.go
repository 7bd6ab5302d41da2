package capture

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"runtime"
	"sync"

	"scanstream/internal/prepare"
)

type loadJob struct {
	index int
	path  string
}

type loadResult struct {
	index int
	img   image.Image
	err   error
}

// loadFrames decodes paths on a worker per CPU and returns the images in
// the order given.
func loadFrames(ctx context.Context, paths []string) ([]image.Image, error) {
	jobs := make(chan loadJob)
	results := make(chan loadResult)

	workers := min(runtime.NumCPU(), len(paths))
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobs {
				img, err := prepare.LoadFile(job.path)
				if err != nil {
					err = fmt.Errorf("%s: %w", filepath.Base(job.path), err)
				}
				results <- loadResult{index: job.index, img: img, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, path := range paths {
			select {
			case jobs <- loadJob{index: i, path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	frames := make([]image.Image, len(paths))
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		frames[res.index] = res.img
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}
