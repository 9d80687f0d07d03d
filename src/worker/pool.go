package worker

import (
	"context"
	"runtime"
	"sync"

	"screen-grab/src/logutil"
	"screen-grab/src/region"
)

// Job is one completed selection waiting to be captured and delivered.
type Job struct {
	Corners region.Corners
	// CopyToClipboard requests a clipboard copy on top of the configured
	// delivery.
	CopyToClipboard bool
}

// ProcessFunc captures and delivers one selection. It returns the path the
// capture was written to, or "" when it was not written to disk.
type ProcessFunc func(ctx context.Context, job Job) (string, error)

// ResultCallback is invoked on job completion (from a worker goroutine).
// The event loop should pass a closure that posts back into the event loop safely.
type ResultCallback func(path string, err error)

// Pool is a fixed-size capture worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	process ProcessFunc
	jobs    chan job
	wg      sync.WaitGroup
}

type job struct {
	ctx context.Context
	Job
	cb ResultCallback
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int, process ProcessFunc) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{process: process, jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	log := logutil.WithComponent("worker")
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for j := range p.jobs {
				bounds := j.Corners.Bounds()
				log.Debug().Int("worker", id).Stringer("region", bounds).Msg("job started")
				path, err := p.run(j)
				log.Debug().Int("worker", id).Str("path", path).Err(err).Msg("job finished")
				j.cb(path, err)
			}
		}(i)
	}
}

// run honours the job deadline even when process ignores its context.
func (p *Pool) run(j job) (string, error) {
	if err := j.ctx.Err(); err != nil {
		return "", err
	}
	resCh := make(chan struct {
		path string
		err  error
	}, 1)
	go func() {
		path, err := p.process(j.ctx, j.Job)
		resCh <- struct {
			path string
			err  error
		}{path, err}
	}()
	select {
	case r := <-resCh:
		return r.path, r.err
	case <-j.ctx.Done():
		return "", j.ctx.Err()
	}
}

// Submit enqueues a job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, j Job, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, Job: j, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
