// Package bulkwriter fans a large write out across bounded concurrent
// workers, each applying its own chunked sequential write against the
// request store, following the teacher's worker-pool concurrency idiom
// (pkg/queue in the original tree) applied to batch data writes instead of
// session processing.
package bulkwriter

import (
	"context"
	"sync"

	"github.com/sudokn/gptbatch/pkg/batcherr"
)

// Writer fans shardCount independent write functions out across
// maxConcurrency goroutines, collecting every error rather than failing
// fast, mirroring the request store's chunked bulk writes: every shard is
// attempted regardless of earlier failures.
type Writer struct {
	maxConcurrency int
}

// New returns a Writer bounding concurrent shard writes to maxConcurrency.
func New(maxConcurrency int) *Writer {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Writer{maxConcurrency: maxConcurrency}
}

// WriteFunc performs one shard's write.
type WriteFunc func(ctx context.Context) error

// Run executes every fn in shards concurrently, bounded by w.maxConcurrency,
// and returns a *batcherr.BulkWriteError aggregating any failures once all
// shards have been attempted.
func (w *Writer) Run(ctx context.Context, shards []WriteFunc) error {
	if len(shards) == 0 {
		return nil
	}

	sem := make(chan struct{}, w.maxConcurrency)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, fn := range shards {
		fn := fn
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if err := fn(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if len(errs) > 0 {
		return &batcherr.BulkWriteError{FailedChunks: len(errs), TotalChunks: len(shards), Errs: errs}
	}
	return nil
}
