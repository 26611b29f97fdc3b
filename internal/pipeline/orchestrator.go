package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/config"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("orchestrator is stopped")
)

const maxSweepInterval = 5 * time.Minute

// Orchestrator runs proposal generation jobs on a worker pool. Synchronous
// renders bypass the queue through Generator but share its render cap.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	gen   *Generator
	log   *slog.Logger
	cfg   config.Config

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, gen *Generator, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		gen:   gen,
		log:   log,
		cfg:   cfg,
	}
}

// Start launches the workers and the expired-job sweeper.
func (o *Orchestrator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := range o.cfg.WorkerCount {
		o.wg.Add(1)
		go o.runWorker(runCtx, i)
	}
	o.wg.Add(1)
	go o.sweep(runCtx)
}

func (o *Orchestrator) runWorker(ctx context.Context, n int) {
	defer o.wg.Done()
	w := NewWorker(o.gen, o.log.With("worker", n))
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-o.queue:
			if !ok {
				return
			}
			w.Process(ctx, job)
		}
	}
}

// sweep evicts jobs not updated within the TTL.
func (o *Orchestrator) sweep(ctx context.Context) {
	defer o.wg.Done()
	interval := min(o.cfg.JobTTL/2, maxSweepInterval)
	if interval <= 0 {
		interval = maxSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := o.jobs.Cleanup(); n > 0 {
				o.log.Debug("evicted expired jobs", "count", n)
			}
		}
	}
}

// Stop cancels running jobs and waits for the workers. It is safe to call
// more than once.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit validates the job's proposal and queues it. A job that does not
// fit in the queue is stored as failed so its ID can still be polled.
func (o *Orchestrator) Submit(job *Job) error {
	if p := job.Proposal(); p != nil {
		if err := p.Validate(); err != nil {
			return err
		}
		job.SetTotalStages(o.gen.Stages(len(p.Ordered())))
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		return ErrStopped
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID, or nil.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns the number of jobs waiting for a worker.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Generator returns the generator for synchronous renders.
func (o *Orchestrator) Generator() *Generator {
	return o.gen
}
