// Package store defines the State Store capability contract: whatever holds
// the durable record of Job Records between engine restarts, keyed by
// job_id with a secondary lookup by job_name.
package store

import (
	"context"
	"errors"

	"github.com/mhconradt/aio-aws/internal/batchjob"
)

// ErrMissingID is returned by operations that require job_id when the Job
// passed in has none set.
var ErrMissingID = errors.New("store: job has no job_id")

// ErrNotFound is returned by find operations that locate nothing.
var ErrNotFound = errors.New("store: job not found")

// Store is the durability contract every backend (embedded file, Redis)
// satisfies. Implementations must be safe for concurrent use.
type Store interface {
	// Save upserts a job by job_id. Returns ErrMissingID if job.JobID is empty.
	Save(ctx context.Context, job *batchjob.Job) error

	// FindByJobID returns the row for the given job_id, or ErrNotFound.
	FindByJobID(ctx context.Context, jobID string) (*batchjob.Job, error)

	// FindByJobName returns every row recorded under the given job_name,
	// across all of its submission attempts.
	FindByJobName(ctx context.Context, jobName string) ([]*batchjob.Job, error)

	// FindLatestByJobName returns the single most-recently-created row for
	// job_name. A row without createdAt counts as created at 0; ties go to
	// the last tied row in the backend's scan order, which is not insertion
	// order.
	FindLatestByJobName(ctx context.Context, jobName string) (*batchjob.Job, error)

	// RemoveByJobID deletes the row for job_id. Not an error if absent.
	RemoveByJobID(ctx context.Context, jobID string) error

	// RemoveByJobName deletes every row recorded under job_name.
	RemoveByJobName(ctx context.Context, jobName string) error

	// FindByJobStatus returns every row whose status is one of statuses.
	FindByJobStatus(ctx context.Context, statuses ...batchjob.Status) ([]*batchjob.Job, error)

	// All returns every row in the store.
	All(ctx context.Context) ([]*batchjob.Job, error)
}

// JobsToRun filters jobs down to those the store says still need to run:
// for each input, the State Store is consulted by job_name; if the latest
// stored row under that name is SUCCEEDED, the input is dropped, otherwise
// it is included. This makes the filter store-authoritative: an input the
// caller still thinks is pending or failed is dropped anyway if the store
// already recorded a later successful attempt under the same job_name.
func JobsToRun(ctx context.Context, jobs []*batchjob.Job, st Store) ([]*batchjob.Job, error) {
	var toRun []*batchjob.Job
	for _, j := range jobs {
		latest, err := st.FindLatestByJobName(ctx, j.JobName)
		if errors.Is(err, ErrNotFound) {
			toRun = append(toRun, j)
			continue
		}
		if err != nil {
			return nil, err
		}
		if latest.Status == batchjob.StatusSucceeded {
			continue
		}
		toRun = append(toRun, j)
	}
	return toRun, nil
}
