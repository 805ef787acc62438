package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/docpricer/internal/analysis"
)

type countingRunner struct {
	mu       sync.Mutex
	inFlight int32
	maxSeen  int32
	delay    time.Duration
	failName string
}

func (r *countingRunner) Analyze(ctx context.Context, phase analysis.Phase, f analysis.File) (*analysis.DocumentAnalysis, error) {
	cur := atomic.AddInt32(&r.inFlight, 1)
	defer atomic.AddInt32(&r.inFlight, -1)
	r.mu.Lock()
	if cur > r.maxSeen {
		r.maxSeen = cur
	}
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if f.Name == r.failName {
		return nil, errors.New("unreadable document")
	}
	return &analysis.DocumentAnalysis{FileName: f.Name, Phase: phase, TotalPages: 1}, nil
}

func namedFiles(names ...string) []analysis.File {
	files := make([]analysis.File, len(names))
	for i, n := range names {
		files[i] = analysis.File{Name: n}
	}
	return files
}

func TestRunBoundsConcurrency(t *testing.T) {
	runner := &countingRunner{delay: 10 * time.Millisecond}
	s := New(runner, 3)

	results := s.Run(context.Background(), namedFiles("a", "b", "c", "d", "e", "f", "g"), nil)

	require.Len(t, results, 7)
	for i, r := range results {
		assert.Equal(t, i, r.FileIndex)
		require.NoError(t, r.Err)
		assert.NotNil(t, r.Analysis)
	}
	assert.LessOrEqual(t, runner.maxSeen, int32(3))
}

func TestRunProgressMonotonic(t *testing.T) {
	runner := &countingRunner{delay: 2 * time.Millisecond}
	s := New(runner, 2)

	var seen []int
	s.Run(context.Background(), namedFiles("a", "b", "c", "d", "e"), func(p analysis.BatchProgress) {
		seen = append(seen, p.Completed)
		assert.Equal(t, 5, p.Total)
	})

	require.Len(t, seen, 5)
	for i, c := range seen {
		assert.Equal(t, i+1, c, "completed count must increase by one per callback")
	}
}

func TestRunPerFileFailureDoesNotAbort(t *testing.T) {
	runner := &countingRunner{failName: "bad"}
	s := New(runner, 2)

	results := s.Run(context.Background(), namedFiles("ok1", "bad", "ok2"), nil)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Analysis)
	assert.NoError(t, results[2].Err)
}

func TestRunCancellationStopsNewChunks(t *testing.T) {
	runner := &countingRunner{delay: 20 * time.Millisecond}
	s := New(runner, 1)

	ctx, cancel := context.WithCancel(context.Background())
	var callbacks int32
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	results := s.Run(ctx, namedFiles("a", "b", "c", "d"), func(p analysis.BatchProgress) {
		atomic.AddInt32(&callbacks, 1)
	})

	var cancelled int
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			cancelled++
		}
	}
	assert.Greater(t, cancelled, 0, "later files must carry the cancellation error")
	assert.Less(t, int(atomic.LoadInt32(&callbacks)), 4, "callbacks stop after cancellation")
}

func TestRunEmptyBatch(t *testing.T) {
	s := New(&countingRunner{}, 3)
	assert.Empty(t, s.Run(context.Background(), nil, nil))
}
