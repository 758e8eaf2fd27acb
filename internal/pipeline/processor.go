package pipeline

import (
	"context"
	"log"

	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/store"
)

// Job identifies one session awaiting processing.
type Job struct {
	SessionID string
}

// Processor fans Jobs out to a fixed pool of workers. The pool size doubles
// as the admission limit on concurrent pipeline runs.
type Processor struct {
	runner  *Runner
	queue   chan Job
	workers int
}

// NewProcessor builds a Processor with queue capacity tied to worker count.
func NewProcessor(runner *Runner, workers int) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		runner:  runner,
		queue:   make(chan Job, workers*4),
		workers: workers,
	}
}

// Start launches the worker goroutines. Workers exit when ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
}

// Submit queues a job without blocking the caller. When the queue is full the
// job is dropped and the session marked failed so polling reflects reality.
func (p *Processor) Submit(ctx context.Context, job Job) {
	select {
	case p.queue <- job:
	default:
		log.Printf("pipeline: queue full, dropping job for %s", job.SessionID)
		p.runner.Store.Update(ctx, job.SessionID, store.StatusPatch(model.StatusFailed, 0))
	}
}

func (p *Processor) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			// Run owns its error boundary; a failed session is recorded in
			// the store and the worker moves on.
			_ = p.runner.Run(ctx, job.SessionID)
		}
	}
}
