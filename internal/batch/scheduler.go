// Package batch runs a deep analysis pass over a set of files with bounded
// concurrency. Files are processed in consecutive chunks; a chunk must drain
// completely before the next one starts, so peak resource usage stays
// proportional to the configured concurrency regardless of batch size.
package batch

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/docpricer/internal/analysis"
	"github.com/local/docpricer/internal/metrics"
)

// Runner analyzes one file. The worker pool satisfies it.
type Runner interface {
	Analyze(ctx context.Context, phase analysis.Phase, file analysis.File) (*analysis.DocumentAnalysis, error)
}

// Result is one file's outcome inside a batch, indexed by its position in the
// submitted slice.
type Result struct {
	FileIndex int
	FileName  string
	Analysis  *analysis.DocumentAnalysis
	Err       error
}

// ProgressFunc receives one callback per completed file. Callbacks are
// serialized and Completed is monotonic.
type ProgressFunc func(p analysis.BatchProgress)

// Scheduler chunks batches and fans each chunk out over the runner.
type Scheduler struct {
	runner      Runner
	concurrency int
}

// New builds a Scheduler. concurrency <= 0 defaults to 1 (fully sequential).
func New(runner Runner, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scheduler{runner: runner, concurrency: concurrency}
}

// Run deep-analyzes all files and returns per-file results in submission
// order. A per-file failure is recorded in its Result and never aborts the
// batch. Cancellation stops new chunks from starting and suppresses further
// progress callbacks; files already in flight are drained, not abandoned.
func (s *Scheduler) Run(ctx context.Context, files []analysis.File, progress ProgressFunc) []Result {
	results := make([]Result, len(files))
	if len(files) == 0 {
		return results
	}

	var mu sync.Mutex
	completed := 0

	report := func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if progress == nil || ctx.Err() != nil {
			return
		}
		progress(analysis.BatchProgress{
			FileIndex: r.FileIndex,
			FileName:  r.FileName,
			Analysis:  r.Analysis,
			Err:       r.Err,
			Completed: completed,
			Total:     len(files),
		})
	}

	log.Info().Int("files", len(files)).Int("concurrency", s.concurrency).Msg("batch started")

	for start := 0; start < len(files); start += s.concurrency {
		if ctx.Err() != nil {
			for i := start; i < len(files); i++ {
				results[i] = Result{FileIndex: i, FileName: files[i].Name, Err: ctx.Err()}
			}
			break
		}

		end := start + s.concurrency
		if end > len(files) {
			end = len(files)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				metrics.BatchFileStarted()
				defer metrics.BatchFileFinished()

				doc, err := s.runner.Analyze(ctx, analysis.PhaseDeep, files[i])
				if err != nil {
					log.Warn().Err(err).Str("file", files[i].Name).Msg("batch file failed")
				}
				results[i] = Result{FileIndex: i, FileName: files[i].Name, Analysis: doc, Err: err}
				report(results[i])
			}(i)
		}
		wg.Wait()
	}

	log.Info().Int("files", len(files)).Msg("batch finished")
	return results
}
