// Package integration exercises the engine's crash-recovery path across
// package boundaries: a Job Record that already has a job_id and a
// non-terminal row in the State Store (simulating a process that died
// mid-poll) must be adopted rather than resubmitted, then driven to
// completion with the store reflecting the final status.
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhconradt/aio-aws/internal/batchjob"
	"github.com/mhconradt/aio-aws/internal/jobmanager"
	"github.com/mhconradt/aio-aws/internal/store"
	"github.com/mhconradt/aio-aws/internal/store/filestore"
)

// fakeSubmitter fails the test if SubmitJob is ever called: a recovered
// job must adopt its existing job_id, never resubmit.
type fakeSubmitter struct {
	t *testing.T
}

func (f *fakeSubmitter) SubmitJob(ctx context.Context, params batchjob.SubmitParams) (batchjob.Submission, error) {
	f.t.Fatalf("SubmitJob called for %s: recovered jobs must not resubmit", params.JobName)
	return batchjob.Submission{}, nil
}

// fakeWaiter returns a canned terminal description for the job_id it
// already knows about, simulating the in-flight job finishing on the
// first poll after recovery.
type fakeWaiter struct {
	jobID string
	desc  batchjob.Description
}

func (f *fakeWaiter) Wait(ctx context.Context, jobID string) (batchjob.Description, error) {
	if jobID != f.jobID {
		return batchjob.Description{}, assertNever{jobID, f.jobID}
	}
	return f.desc, nil
}

type assertNever struct{ got, want string }

func (a assertNever) Error() string {
	return "waiter asked for unexpected job_id: got " + a.got + " want " + a.want
}

// TestRecoverAdoptsExistingJobID simulates scenario S2: the process
// crashed after submitting a job but before it reached a terminal status.
// On restart, the Job Record is hydrated from the State Store with its
// job_id intact and a non-terminal status. The Job Manager must adopt
// that job_id and drive it to completion without resubmitting.
func TestRecoverAdoptsExistingJobID(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "jobs.json")
	st := filestore.New(dbPath)

	// Simulate the pre-crash state: a job was submitted and is RUNNING,
	// then the process died before the next poll.
	crashed := batchjob.New("nightly-etl", "queue", "definition")
	crashed.RecordSubmission(batchjob.Submission{JobName: "nightly-etl", JobID: "job-abc"})
	crashed.RecordDescription(batchjob.Description{
		JobID:  "job-abc",
		Status: batchjob.StatusRunning,
	})
	require.NoError(t, st.Save(ctx, crashed))

	// Restart: hydrate every row the store knows about and filter to the
	// ones that still need driving.
	all, err := st.All(ctx)
	require.NoError(t, err)
	toRun, err := store.JobsToRun(ctx, all, st)
	require.NoError(t, err)
	require.Len(t, toRun, 1)

	recovered := toRun[0]
	assert.Equal(t, "job-abc", recovered.JobID, "recovered job must keep its job_id")
	assert.Equal(t, batchjob.StatusRunning, recovered.Status)

	waiter := &fakeWaiter{
		jobID: "job-abc",
		desc: batchjob.Description{
			JobID:     "job-abc",
			Status:    batchjob.StatusSucceeded,
			CreatedAt: 1000,
			StartedAt: 1200,
			StoppedAt: 2200,
		},
	}
	mgr := jobmanager.New(&fakeSubmitter{t: t}, waiter, st)

	desc, err := mgr.Run(ctx, recovered)
	require.NoError(t, err)
	assert.Equal(t, batchjob.StatusSucceeded, desc.Status)
	assert.Equal(t, 1, recovered.NumTries, "adopting an existing job_id must not count as a new attempt")

	row, err := st.FindByJobID(ctx, "job-abc")
	require.NoError(t, err)
	assert.Equal(t, batchjob.StatusSucceeded, row.Status)
}

// TestJobsToRunSkipsCompletedJobs covers the complement of scenario S2:
// a job whose stored row already reached a terminal status before the
// crash must not be handed back for re-driving.
func TestJobsToRunSkipsCompletedJobs(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "jobs.json")
	st := filestore.New(dbPath)

	done := batchjob.New("already-done", "queue", "definition")
	done.RecordSubmission(batchjob.Submission{JobName: "already-done", JobID: "job-xyz"})
	done.RecordDescription(batchjob.Description{JobID: "job-xyz", Status: batchjob.StatusSucceeded})
	require.NoError(t, st.Save(ctx, done))

	all, err := st.All(ctx)
	require.NoError(t, err)
	toRun, err := store.JobsToRun(ctx, all, st)
	require.NoError(t, err)
	assert.Empty(t, toRun)
}

// TestJobsToRunIncludesNeverSubmittedJobs covers scenario S1: a job with
// no job_id at all, and no row under its job_name in the store, is
// included for submission.
func TestJobsToRunIncludesNeverSubmittedJobs(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "jobs.json")
	st := filestore.New(dbPath)

	fresh := batchjob.New("brand-new", "queue", "definition")

	toRun, err := store.JobsToRun(ctx, []*batchjob.Job{fresh}, st)
	require.NoError(t, err)
	require.Len(t, toRun, 1)
	assert.Equal(t, "brand-new", toRun[0].JobName)
}

// TestJobsToRunDropsFreshInputAlreadySucceededUnderName covers scenario S5:
// a fresh Job Record with no job_id of its own (e.g. rebuilt from a JSON
// job file on a second `batchctl run` invocation) is dropped anyway, because
// the State Store already holds a SUCCEEDED row under the same job_name
// from a prior run. This is the store-authoritative dedup spec.md §4.1
// requires of jobs_to_run: it consults by job_name, not by whether the
// input happens to carry a job_id.
func TestJobsToRunDropsFreshInputAlreadySucceededUnderName(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "jobs.json")
	st := filestore.New(dbPath)

	priorRun := batchjob.New("t-0005", "queue", "definition")
	priorRun.RecordSubmission(batchjob.Submission{JobName: "t-0005", JobID: "job-5a"})
	priorRun.RecordDescription(batchjob.Description{JobID: "job-5a", Status: batchjob.StatusSucceeded})
	require.NoError(t, st.Save(ctx, priorRun))

	// A second invocation rebuilds the same logical job from scratch: no
	// job_id, just the same job_name.
	secondRunInput := batchjob.New("t-0005", "queue", "definition")
	require.Empty(t, secondRunInput.JobID)

	toRun, err := store.JobsToRun(ctx, []*batchjob.Job{secondRunInput}, st)
	require.NoError(t, err)
	assert.Empty(t, toRun, "a job already SUCCEEDED under its job_name must not be resubmitted")

	// A duplicate of the same dropped input must not be re-added either
	// (testable property 6: stability under duplicates).
	duplicate := batchjob.New("t-0005", "queue", "definition")
	toRun, err = store.JobsToRun(ctx, []*batchjob.Job{secondRunInput, duplicate}, st)
	require.NoError(t, err)
	assert.Empty(t, toRun)
}
