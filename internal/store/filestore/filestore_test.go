package filestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhconradt/aio-aws/internal/batchjob"
	"github.com/mhconradt/aio-aws/internal/store"
)

func newTestJob(t *testing.T, jobID, jobName string) *batchjob.Job {
	t.Helper()
	j := batchjob.New(jobName, "queue", "def")
	j.JobID = jobID
	j.Status = batchjob.StatusRunning
	return j
}

func TestSaveAndFindByJobID(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "jobs.json"))

	job := newTestJob(t, "job-1", "demo")
	require.NoError(t, s.Save(ctx, job))

	got, err := s.FindByJobID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.JobName)
	assert.Equal(t, batchjob.StatusRunning, got.Status)
}

func TestFindByJobIDMissing(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "jobs.json"))
	_, err := s.FindByJobID(context.Background(), "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSaveRequiresJobID(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "jobs.json"))
	job := batchjob.New("demo", "queue", "def")
	err := s.Save(context.Background(), job)
	assert.True(t, errors.Is(err, store.ErrMissingID))
}

func TestFindByJobNameAcrossAttempts(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "jobs.json"))

	j1 := newTestJob(t, "job-1", "demo")
	j2 := newTestJob(t, "job-2", "demo")
	require.NoError(t, s.Save(ctx, j1))
	require.NoError(t, s.Save(ctx, j2))

	rows, err := s.FindByJobName(ctx, "demo")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFindLatestByJobNamePicksGreatestCreated(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "jobs.json"))

	older := newTestJob(t, "job-1", "demo")
	older.JobDescription = &batchjob.Description{JobID: "job-1", CreatedAt: 100}
	newer := newTestJob(t, "job-2", "demo")
	newer.JobDescription = &batchjob.Description{JobID: "job-2", CreatedAt: 200}

	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))

	latest, err := s.FindLatestByJobName(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "job-2", latest.JobID)
}

func TestRemoveByJobID(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "jobs.json"))

	job := newTestJob(t, "job-1", "demo")
	require.NoError(t, s.Save(ctx, job))
	require.NoError(t, s.RemoveByJobID(ctx, "job-1"))

	_, err := s.FindByJobID(ctx, "job-1")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestFindByJobStatus(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "jobs.json"))

	running := newTestJob(t, "job-1", "a")
	running.Status = batchjob.StatusRunning
	done := newTestJob(t, "job-2", "b")
	done.Status = batchjob.StatusSucceeded

	require.NoError(t, s.Save(ctx, running))
	require.NoError(t, s.Save(ctx, done))

	rows, err := s.FindByJobStatus(ctx, batchjob.StatusSucceeded)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "job-2", rows[0].JobID)
}

func TestPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.json")

	s1 := New(path)
	require.NoError(t, s1.Save(ctx, newTestJob(t, "job-1", "demo")))

	s2 := New(path)
	got, err := s2.FindByJobID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.JobName)
}

func TestJobsToRunFiltersTerminalRows(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "jobs.json"))

	done := newTestJob(t, "job-1", "done-job")
	done.Status = batchjob.StatusSucceeded
	require.NoError(t, s.Save(ctx, done))

	pending := newTestJob(t, "job-2", "pending-job")
	pending.Status = batchjob.StatusRunning
	require.NoError(t, s.Save(ctx, pending))

	fresh := batchjob.New("fresh-job", "queue", "def")

	toRun, err := store.JobsToRun(ctx, []*batchjob.Job{done, pending, fresh}, s)
	require.NoError(t, err)

	var names []string
	for _, j := range toRun {
		names = append(names, j.JobName)
	}
	assert.ElementsMatch(t, []string{"pending-job", "fresh-job"}, names)
}
