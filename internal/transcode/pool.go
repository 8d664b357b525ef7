package transcode

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/semaphore"

	"github.com/eleven-am/govod/internal/domain"
)

var ErrPoolStopped = errors.New("pool stopped")

type ProcessFunc func(ctx context.Context, job domain.Job) (*domain.IngestResult, error)

type task struct {
	job    domain.Job
	result chan domain.JobResult
}

// Pool runs whole-asset jobs on a fixed number of workers. At most size+queue
// jobs are admitted at once; Submit blocks beyond that.
type Pool struct {
	size    int
	process ProcessFunc
	logger  hclog.Logger

	admit *semaphore.Weighted
	jobs  chan task

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(size, queue int, process ProcessFunc, logger hclog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if queue < 0 {
		queue = 0
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	capacity := size + queue
	return &Pool{
		size:    size,
		process: process,
		logger:  logger.Named("pool"),
		admit:   semaphore.NewWeighted(int64(capacity)),
		jobs:    make(chan task, capacity),
	}
}

func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return fmt.Errorf("pool already started")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.mu.Unlock()

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(p.ctx)
	}
	go p.watch()

	p.logger.Debug("pool started", "workers", p.size)
	return nil
}

// Stop cancels running jobs and waits until every admitted job has received
// its result.
func (p *Pool) Stop() {
	p.mu.RLock()
	cancel, done := p.cancel, p.done
	p.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// watch shuts the pool down once its context ends, whether through Stop or
// the caller's context. Jobs still queued fail with ErrPoolStopped wrapped in
// a CancelledError.
func (p *Pool) watch() {
	defer close(p.done)
	<-p.ctx.Done()

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.wg.Wait()

	for {
		select {
		case t := <-p.jobs:
			p.finish(t, nil, stoppedError(t))
		default:
			p.logger.Debug("pool stopped")
			return
		}
	}
}

// Submit queues req and returns its job ID and a channel that receives exactly
// one result.
func (p *Pool) Submit(ctx context.Context, req domain.IngestRequest) (string, <-chan domain.JobResult, error) {
	if err := p.admit.Acquire(ctx, 1); err != nil {
		return "", nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.cancel == nil {
		p.admit.Release(1)
		return "", nil, fmt.Errorf("pool not started")
	}
	if p.stopped || p.ctx.Err() != nil {
		p.admit.Release(1)
		return "", nil, ErrPoolStopped
	}

	t := task{
		job:    domain.Job{ID: uuid.NewString(), Request: req},
		result: make(chan domain.JobResult, 1),
	}

	select {
	case p.jobs <- t:
		return t.job.ID, t.result, nil
	case <-ctx.Done():
		p.admit.Release(1)
		return "", nil, ctx.Err()
	case <-p.ctx.Done():
		p.admit.Release(1)
		return "", nil, ErrPoolStopped
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.jobs:
			if ctx.Err() != nil {
				p.finish(t, nil, stoppedError(t))
				return
			}
			p.processJob(ctx, t)
		}
	}
}

func (p *Pool) processJob(ctx context.Context, t task) {
	log := p.logger.With("job_id", t.job.ID, "source", t.job.Request.SourcePath)
	log.Info("job started")

	result, err := p.process(ctx, t.job)
	if err != nil {
		log.Error("job failed", "error", err)
	} else {
		log.Info("job finished")
	}
	p.finish(t, result, err)
}

func stoppedError(t task) error {
	return &domain.CancelledError{Command: "job " + t.job.ID, Cause: ErrPoolStopped}
}

func (p *Pool) finish(t task, result *domain.IngestResult, err error) {
	t.result <- domain.JobResult{JobID: t.job.ID, Result: result, Err: err}
	close(t.result)
	p.admit.Release(1)
}
