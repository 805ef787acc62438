// Package pool dispatches analysis requests across a fixed set of workers.
// Each worker owns its request channel and processes one document at a time;
// when no pool can be built the dispatcher degrades to running the analysis
// inline on the caller's goroutine.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/docpricer/internal/analysis"
	"github.com/local/docpricer/internal/metrics"
)

// Analyzer is the unit of work the pool runs. Both passes satisfy it.
type Analyzer interface {
	Fast(ctx context.Context, file analysis.File) (*analysis.DocumentAnalysis, error)
	Deep(ctx context.Context, file analysis.File) (*analysis.DocumentAnalysis, error)
}

// Request is one analysis job handed to a worker.
type Request struct {
	ID    string
	Phase analysis.Phase
	File  analysis.File
	ctx   context.Context
	reply chan Response
}

// Response pairs a result with the request it answers.
type Response struct {
	ID       string
	Analysis *analysis.DocumentAnalysis
	Err      error
}

// Pool routes requests round-robin across workers and correlates responses
// back to callers by request ID.
type Pool struct {
	analyzer Analyzer
	workers  []chan *Request
	timeout  time.Duration

	mu      sync.Mutex
	next    int
	pending map[string]chan Response
	closed  bool

	wg sync.WaitGroup
}

// New builds and starts a pool of size workers. size <= 0 yields a pool that
// runs every request inline.
func New(analyzer Analyzer, size int, timeout time.Duration) *Pool {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	p := &Pool{
		analyzer: analyzer,
		timeout:  timeout,
		pending:  make(map[string]chan Response),
	}
	if size <= 0 {
		log.Warn().Int("size", size).Msg("worker pool disabled, requests run inline")
		return p
	}
	p.workers = make([]chan *Request, size)
	for i := range p.workers {
		p.workers[i] = make(chan *Request, 1)
		p.wg.Add(1)
		go p.run(i, p.workers[i])
	}
	log.Info().Int("workers", size).Dur("timeout", timeout).Msg("worker pool started")
	return p
}

// Analyze runs one request through the pool and blocks until its response
// arrives, the request times out, or ctx is done. Pool exhaustion and
// shutdown are invisible to the caller: the work runs inline instead.
func (p *Pool) Analyze(ctx context.Context, phase analysis.Phase, file analysis.File) (*analysis.DocumentAnalysis, error) {
	req := &Request{
		ID:    uuid.NewString(),
		Phase: phase,
		File:  file,
		ctx:   ctx,
		reply: make(chan Response, 1),
	}

	if !p.assign(req) {
		metrics.RecordDispatch("inline")
		log.Debug().Str("request_id", req.ID).Str("file", file.Name).Msg("no worker available, running inline")
		return p.invoke(ctx, phase, file)
	}

	metrics.RecordDispatch("pool")
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case resp := <-req.reply:
		return resp.Analysis, resp.Err
	case <-timer.C:
		p.forget(req.ID)
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		p.forget(req.ID)
		return nil, ctx.Err()
	}
}

// assign picks the next worker round-robin and hands it the request without
// blocking. The send happens under the mutex so Shutdown can never close a
// channel mid-send. It reports false when the pool cannot take the work: the
// chosen worker's buffer is full, the pool is closed, or there is no pool.
func (p *Pool) assign(req *Request) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || len(p.workers) == 0 {
		return false
	}
	worker := p.workers[p.next]
	p.next = (p.next + 1) % len(p.workers)
	select {
	case worker <- req:
		p.pending[req.ID] = req.reply
		return true
	default:
		return false
	}
}

// deliver hands a response to the waiting caller exactly once. A response for
// an unknown or already-abandoned request is dropped with a debug log.
func (p *Pool) deliver(resp Response) {
	p.mu.Lock()
	reply, ok := p.pending[resp.ID]
	if ok {
		delete(p.pending, resp.ID)
	}
	p.mu.Unlock()
	if !ok {
		log.Debug().Str("request_id", resp.ID).Msg("dropping response for abandoned request")
		return
	}
	reply <- resp
}

func (p *Pool) forget(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *Pool) run(id int, requests <-chan *Request) {
	defer p.wg.Done()
	log.Debug().Int("worker", id).Msg("analysis worker started")
	for req := range requests {
		result, err := p.invoke(req.ctx, req.Phase, req.File)
		p.deliver(Response{ID: req.ID, Analysis: result, Err: err})
	}
	log.Debug().Int("worker", id).Msg("analysis worker stopped")
}

func (p *Pool) invoke(ctx context.Context, phase analysis.Phase, file analysis.File) (*analysis.DocumentAnalysis, error) {
	if phase == analysis.PhaseDeep {
		return p.analyzer.Deep(ctx, file)
	}
	return p.analyzer.Fast(ctx, file)
}

// Shutdown stops all workers and waits for in-flight requests to finish.
// Requests arriving afterwards run inline.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	workers := p.workers
	p.mu.Unlock()

	for _, w := range workers {
		close(w)
	}
	p.wg.Wait()
	log.Info().Msg("worker pool stopped")
}
