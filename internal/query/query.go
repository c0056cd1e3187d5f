// Package query provides the status-query helpers the original engine
// exposes over a job set: filter by status, find completed jobs, find
// running jobs, each with a store-backed variant (authoritative, reads
// persisted status) and a no-store variant (trusts only the in-memory
// Job.Status on the slice handed in).
package query

import (
	"context"
	"fmt"
	"iter"

	"github.com/mhconradt/aio-aws/internal/batchjob"
	"github.com/mhconradt/aio-aws/internal/store"
)

// FindByStatus returns every job in jobs whose status is one of statuses.
// When st is non-nil, a job that carries a job_id has its status read from
// the store row under that job_id; a missing row is returned as an error.
// The store is not consulted by job_name: a job without a job_id, and every
// job when st is nil, is matched on the in-memory Job.Status field.
func FindByStatus(ctx context.Context, jobs []*batchjob.Job, st store.Store, statuses ...batchjob.Status) ([]*batchjob.Job, error) {
	want := make(map[batchjob.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	var out []*batchjob.Job
	for _, j := range jobs {
		status := j.Status
		if st != nil && j.JobID != "" {
			row, err := st.FindByJobID(ctx, j.JobID)
			if err != nil {
				return nil, fmt.Errorf("query: find by status: %w", err)
			}
			status = row.Status
		}
		if want[status] {
			out = append(out, j)
		}
	}
	return out, nil
}

// FindComplete returns every job in jobs whose status is terminal.
func FindComplete(ctx context.Context, jobs []*batchjob.Job, st store.Store) ([]*batchjob.Job, error) {
	return FindByStatus(ctx, jobs, st, batchjob.CompleteStatuses...)
}

// FindRunning returns every job in jobs whose status is non-terminal.
func FindRunning(ctx context.Context, jobs []*batchjob.Job, st store.Store) ([]*batchjob.Job, error) {
	return FindByStatus(ctx, jobs, st, batchjob.RunningStatuses...)
}

// StreamByStatus is the lazy/streaming counterpart to FindByStatus: it
// yields matching jobs one at a time instead of building a slice up front,
// for callers scanning a large job set where most elements are expected not
// to match.
func StreamByStatus(ctx context.Context, jobs []*batchjob.Job, st store.Store, statuses ...batchjob.Status) iter.Seq2[*batchjob.Job, error] {
	want := make(map[batchjob.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	return func(yield func(*batchjob.Job, error) bool) {
		for _, j := range jobs {
			status := j.Status
			if st != nil && j.JobID != "" {
				row, err := st.FindByJobID(ctx, j.JobID)
				if err != nil {
					yield(nil, fmt.Errorf("query: stream by status: %w", err))
					return
				}
				status = row.Status
			}
			if want[status] {
				if !yield(j, nil) {
					return
				}
			}
		}
	}
}

// StreamComplete streams every job in jobs whose status is terminal.
func StreamComplete(ctx context.Context, jobs []*batchjob.Job, st store.Store) iter.Seq2[*batchjob.Job, error] {
	return StreamByStatus(ctx, jobs, st, batchjob.CompleteStatuses...)
}

// StreamRunning streams every job in jobs whose status is non-terminal.
func StreamRunning(ctx context.Context, jobs []*batchjob.Job, st store.Store) iter.Seq2[*batchjob.Job, error] {
	return StreamByStatus(ctx, jobs, st, batchjob.RunningStatuses...)
}
