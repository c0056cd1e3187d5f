// ============================================================================
// Job Manager - Submit, Wait, Selectively Retry
// ============================================================================
//
// Package: internal/jobmanager
// File: manager.go
// Purpose: Drives a single Job Record from its current state through to a
// terminal AWS Batch status: submit if it has no job_id (or adopt the
// existing job_id if it already has one from a prior process), wait for a
// terminal status, and on a spot-instance reclaim failure, reset and
// resubmit up to max_tries. Every transition is persisted to the State
// Store immediately, so a crash mid-flight loses at most the in-flight
// poll, not the job's history.
//
// Grounded on the original engine's job-manager loop:
//
//	while job.num_tries < job.max_tries:
//	    if not job.job_id: submit
//	    wait for terminal status
//	    if SUCCEEDED: return
//	    if FAILED and reason matches spot-reclaim: reset, retry
//	    else: return (job stays FAILED)
//
// and on the teacher's jobmanager package for its error-sentinel and
// doc-comment style, even though the state machine it implements there
// (pending/inflight/completed/dead queueing) is entirely different from
// the submit-or-recover/selective-retry logic here.
//
// ============================================================================

package jobmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/mhconradt/aio-aws/internal/batchjob"
	"github.com/mhconradt/aio-aws/internal/store"
	"github.com/mhconradt/aio-aws/internal/waiter"
)

// ErrJobFailed is returned when a Job reaches a terminal FAILED status that
// is not a spot-instance reclaim, or exhausts its retry budget.
var ErrJobFailed = errors.New("jobmanager: job failed")

// spotReclaimPattern matches the statusReason AWS Batch reports when a spot
// instance backing a job is reclaimed mid-run.
var spotReclaimPattern = regexp.MustCompile(`Host EC2.*terminated`)

// Submitter is the subset of the Remote API Adapter the Manager needs to
// submit jobs.
type Submitter interface {
	SubmitJob(ctx context.Context, params batchjob.SubmitParams) (batchjob.Submission, error)
}

// Waiter is the subset of the Job Waiter the Manager needs.
type Waiter interface {
	Wait(ctx context.Context, jobID string) (batchjob.Description, error)
}

// Manager drives one Job Record to completion.
type Manager struct {
	submitter Submitter
	waiter    Waiter
	store     store.Store
	log       *slog.Logger
}

// New returns a Manager.
func New(submitter Submitter, waiter Waiter, st store.Store) *Manager {
	return &Manager{submitter: submitter, waiter: waiter, store: st, log: slog.Default()}
}

// Run drives job to a terminal status, submitting, waiting, and selectively
// retrying spot-reclaim failures, up to job.MaxTries attempts. It returns
// the job's final Description and ErrJobFailed if the job did not reach
// SUCCEEDED.
func (m *Manager) Run(ctx context.Context, job *batchjob.Job) (batchjob.Description, error) {
	describeMisses := 0
	for job.NumTries < job.MaxTries {
		if job.JobID == "" {
			sub, err := m.submitter.SubmitJob(ctx, job.SubmitParams())
			if err != nil {
				return batchjob.Description{}, fmt.Errorf("jobmanager: submit %s: %w", job.JobName, err)
			}
			job.RecordSubmission(sub)
			m.log.Info("job submitted", "job_name", job.JobName, "job_id", job.JobID, "attempt", job.NumTries)
		} else {
			m.log.Info("adopting existing job_id", "job_name", job.JobName, "job_id", job.JobID)
		}

		if err := m.persist(ctx, job); err != nil {
			return batchjob.Description{}, err
		}

		desc, err := m.waiter.Wait(ctx, job.JobID)
		if err != nil {
			if errors.Is(err, waiter.ErrMaxMissesExceeded) {
				describeMisses++
				m.log.Warn("waiter gave up after repeated describe misses, retrying",
					"job_name", job.JobName, "job_id", job.JobID, "attempt", describeMisses)
				if describeMisses >= job.MaxTries {
					return batchjob.Description{}, fmt.Errorf("jobmanager: %s: describe kept missing: %w", job.JobName, ErrJobFailed)
				}
				continue
			}
			return batchjob.Description{}, fmt.Errorf("jobmanager: wait %s: %w", job.JobName, err)
		}
		job.RecordDescription(desc)
		if err := m.persist(ctx, job); err != nil {
			return batchjob.Description{}, err
		}

		switch desc.Status {
		case batchjob.StatusSucceeded:
			m.log.Info("job succeeded", "job_name", job.JobName, "job_id", job.JobID)
			return desc, nil

		case batchjob.StatusFailed:
			if spotReclaimPattern.MatchString(desc.StatusReason) {
				m.log.Warn("spot instance reclaimed, retrying", "job_name", job.JobName, "job_id", job.JobID, "reason", desc.StatusReason)
				job.Reset()
				if err := m.persist(ctx, job); err != nil {
					return batchjob.Description{}, err
				}
				continue
			}
			m.log.Error("job failed", "job_name", job.JobName, "job_id", job.JobID, "reason", desc.StatusReason)
			return desc, fmt.Errorf("jobmanager: %s: %w", job.JobName, ErrJobFailed)

		default:
			// Wait only returns on a terminal status; anything else is a
			// contract violation by the Waiter implementation.
			return desc, fmt.Errorf("jobmanager: %s: non-terminal status %s from waiter", job.JobName, desc.Status)
		}
	}
	m.log.Error("job exhausted retries", "job_name", job.JobName, "max_tries", job.MaxTries)
	return batchjob.Description{}, fmt.Errorf("jobmanager: %s: %w", job.JobName, ErrJobFailed)
}

func (m *Manager) persist(ctx context.Context, job *batchjob.Job) error {
	if m.store == nil || job.JobID == "" {
		return nil
	}
	if err := m.store.Save(ctx, job); err != nil {
		return fmt.Errorf("jobmanager: persist %s: %w", job.JobName, err)
	}
	return nil
}
