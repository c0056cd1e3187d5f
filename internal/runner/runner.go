// ============================================================================
// Batch Runner - Fan-Out / Drain / Shutdown
// ============================================================================
//
// Package: internal/runner
// File: runner.go
// Purpose: Given a set of Job Records, run one Job Manager goroutine per
// job concurrently, collecting each job's final Description as it
// completes, and shutting down cleanly if asked to stop early.
//
// Grounded on the teacher's Controller: a single stopCh broadcasts shutdown
// to every in-flight goroutine, a sync.WaitGroup tracks them, and Stop()
// closes stopCh, then waits for the WaitGroup — signal first, drain second.
// The Runner owns no other resources: Stop does not close the Rate Gate or
// the Remote API client.
//
// ============================================================================

package runner

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mhconradt/aio-aws/internal/batchjob"
)

// JobRunner drives a single Job Record to completion. jobmanager.Manager
// satisfies this.
type JobRunner interface {
	Run(ctx context.Context, job *batchjob.Job) (batchjob.Description, error)
}

// Result pairs a Job with the outcome of running it.
type Result struct {
	Job  *batchjob.Job
	Desc batchjob.Description
	Err  error
}

// Runner fans a list of Job Records out across one goroutine per job,
// draining results as each completes.
type Runner struct {
	manager JobRunner
	log     *slog.Logger

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New returns a Runner driven by manager.
func New(manager JobRunner) *Runner {
	return &Runner{
		manager: manager,
		log:     slog.Default(),
		stopCh:  make(chan struct{}),
	}
}

// Run starts one goroutine per job and returns a channel that receives one
// Result per job as it completes. The channel is closed once every job has
// reported a result. Run does not block; callers drain the returned channel.
func (r *Runner) Run(ctx context.Context, jobs []*batchjob.Job) <-chan Result {
	results := make(chan Result, len(jobs))

	for _, job := range jobs {
		r.wg.Add(1)
		go func(job *batchjob.Job) {
			defer r.wg.Done()

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case <-r.stopCh:
					cancel()
				case <-runCtx.Done():
				}
			}()

			desc, err := r.manager.Run(runCtx, job)
			if err != nil {
				r.log.Error("job run failed", "job_name", job.JobName, "error", err)
			}
			results <- Result{Job: job, Desc: desc, Err: err}
		}(job)
	}

	go func() {
		r.wg.Wait()
		close(results)
	}()

	return results
}

// Stop signals every in-flight job goroutine to cancel its context and
// blocks until they have all exited.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()
}
