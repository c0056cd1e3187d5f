// ============================================================================
// Job Waiter - Per-Job Polling Loop
// ============================================================================
//
// Package: internal/waiter
// File: waiter.go
// Purpose: Poll describe_jobs for one job_id until it reaches a terminal
// status, pacing each poll with a jittered sleep so a large fleet of
// in-flight jobs doesn't hammer the Remote API Adapter.
//
// Grounded on the original engine's job-waiter loop: describe, check for a
// terminal status, sleep, repeat; and on the teacher's worker.go
// context-timeout execution loop for the per-call Done()/timeout handling.
//
// Describe-miss tolerance:
//   AWS Batch's DescribeJobs occasionally returns zero results for a job_id
//   that was just submitted (eventual consistency on the service side).
//   The waiter tolerates up to MaxMisses consecutive empty responses before
//   giving up. Consistent with the original implementation, a miss does NOT
//   pace with a sleep before the next poll — only a status response does.
//   This means a waiter stuck in a describe-miss streak polls as fast as the
//   Remote API Adapter will let it, which is deliberately preserved rather
//   than fixed: changing it would alter recovery timing in ways downstream
//   code has not been audited against.
//
// ============================================================================

package waiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mhconradt/aio-aws/internal/batchjob"
)

// ErrMaxMissesExceeded is returned when describe_jobs keeps returning no
// result for the job_id being waited on.
var ErrMaxMissesExceeded = errors.New("waiter: describe_jobs returned no result too many times")

// Describer is the subset of the Remote API Adapter the Waiter needs.
type Describer interface {
	DescribeJobs(ctx context.Context, jobIDs []string) ([]batchjob.Description, error)
}

// Config paces the poll loop. StartPause governs the warm-up pacing used
// while a job is still SUBMITTED/PENDING/RUNNABLE (nothing the engine does
// can speed that up, so it paces looser); MinPause/MaxPause govern every
// other non-terminal status.
type Config struct {
	StartPause time.Duration
	MinPause   time.Duration
	MaxPause   time.Duration
	MinJitter  time.Duration
	MaxJitter  time.Duration
	MaxMisses  int
}

// warmupStatuses are the statuses a job passes through before it starts
// running, where polling faster than the queue itself moves buys nothing.
var warmupStatuses = map[batchjob.Status]bool{
	batchjob.StatusSubmitted: true,
	batchjob.StatusPending:   true,
	batchjob.StatusRunnable:  true,
}

// Waiter polls one job_id to a terminal status.
type Waiter struct {
	client Describer
	cfg    Config
	log    *slog.Logger
}

// New returns a Waiter for client, paced per cfg.
func New(client Describer, cfg Config) *Waiter {
	if cfg.MaxMisses <= 0 {
		cfg.MaxMisses = 10
	}
	if cfg.StartPause <= 0 {
		cfg.StartPause = cfg.MinPause
	}
	return &Waiter{client: client, cfg: cfg, log: slog.Default()}
}

// pace returns the sleep duration before the next poll, given the
// just-observed status: warm-up statuses pace over U(start_pause,
// 2*start_pause), everything else non-terminal paces over
// U(min_pause, max_pause) plus a U(min_jitter, max_jitter) jitter term.
func (w *Waiter) pace(status batchjob.Status) time.Duration {
	if warmupStatuses[status] {
		return jitteredBetween(w.cfg.StartPause, 2*w.cfg.StartPause)
	}
	base := jitteredBetween(w.cfg.MinPause, w.cfg.MaxPause)
	jitter := jitteredBetween(w.cfg.MinJitter, w.cfg.MaxJitter)
	return base + jitter
}

func jitteredBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

// Wait polls job_id until describe_jobs reports a terminal status, ctx is
// cancelled, or the describe-miss ceiling is exceeded. It returns the final
// Description.
func (w *Waiter) Wait(ctx context.Context, jobID string) (batchjob.Description, error) {
	misses := 0
	for {
		descs, err := w.client.DescribeJobs(ctx, []string{jobID})
		if err != nil {
			return batchjob.Description{}, fmt.Errorf("waiter: describe %s: %w", jobID, err)
		}

		if len(descs) == 0 {
			misses++
			w.log.Warn("describe_jobs returned no result", "job_id", jobID, "miss", misses)
			if misses > w.cfg.MaxMisses {
				return batchjob.Description{}, fmt.Errorf("waiter: %s: %w", jobID, ErrMaxMissesExceeded)
			}
			// Intentionally no sleep here: a miss retries immediately.
			select {
			case <-ctx.Done():
				return batchjob.Description{}, ctx.Err()
			default:
				continue
			}
		}
		misses = 0

		desc := descs[0]
		w.log.Info("job status", "job_id", jobID, "status", string(desc.Status))
		if desc.Status.IsTerminal() {
			return desc, nil
		}

		select {
		case <-ctx.Done():
			return batchjob.Description{}, ctx.Err()
		case <-time.After(w.pace(desc.Status)):
		}
	}
}
