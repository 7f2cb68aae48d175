package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// OrchestratorConfig sizes the async ingest machinery.
type OrchestratorConfig struct {
	// Workers is the number of concurrent run executors (default 2).
	Workers int
	// QueueSize bounds the job queue; Submit fails once it is full
	// (default 32).
	QueueSize int
	// JobTTL is how long finished jobs stay pollable (default 1h).
	JobTTL time.Duration
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 32
	}
	if c.JobTTL <= 0 {
		c.JobTTL = time.Hour
	}
	return c
}

// Orchestrator runs queued ingest jobs through a Runner.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	runner  Runner
	log     Logger
	workers int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator wires an orchestrator around runner. The runner is
// copied per job so each job gets its own stage callback.
func NewOrchestrator(runner *Runner, cfg OrchestratorConfig, log Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.QueueSize),
		runner:  *runner,
		log:     log,
		workers: cfg.Workers,
	}
}

// Start launches the worker goroutines and the job-store cleaner.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, job)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down: no new jobs start, running jobs are canceled.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a job. It fails fast when the queue is full so the API can
// return 503 instead of blocking the upload handler.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		err := fmt.Errorf("job queue is full (%d)", cap(o.queue))
		job.Fail(Result{}, err)
		return err
	}
}

// GetJob returns a job by ID, or nil.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns the current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

func (o *Orchestrator) process(ctx context.Context, job *Job) {
	r := o.runner
	r.OnStage = func(stage string) {
		job.SetStatus(JobStatus(stage))
	}

	var (
		res Result
		err error
	)
	if data := job.Data(); data != nil {
		res, err = r.RunBuffer(ctx, job.Source, data)
	} else {
		res, err = r.Run(ctx, job.Source)
	}
	if err != nil {
		job.Fail(res, err)
		if o.log != nil {
			o.log.Printf("job %s: %v", job.ID, err)
		}
		return
	}
	job.SetResult(res)
}
