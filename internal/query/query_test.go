package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhconradt/aio-aws/internal/batchjob"
	"github.com/mhconradt/aio-aws/internal/store/filestore"
)

func TestFindByStatusNoStore(t *testing.T) {
	running := batchjob.New("a", "q", "d")
	running.Status = batchjob.StatusRunning
	done := batchjob.New("b", "q", "d")
	done.Status = batchjob.StatusSucceeded

	out, err := FindByStatus(context.Background(), []*batchjob.Job{running, done}, nil, batchjob.StatusSucceeded)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].JobName)
}

func TestFindCompleteAndRunningNoStore(t *testing.T) {
	running := batchjob.New("a", "q", "d")
	running.Status = batchjob.StatusRunning
	done := batchjob.New("b", "q", "d")
	done.Status = batchjob.StatusFailed

	jobs := []*batchjob.Job{running, done}

	complete, err := FindComplete(context.Background(), jobs, nil)
	require.NoError(t, err)
	assert.Len(t, complete, 1)

	runningOut, err := FindRunning(context.Background(), jobs, nil)
	require.NoError(t, err)
	assert.Len(t, runningOut, 1)
}

func TestFindByStatusStoreBacked(t *testing.T) {
	ctx := context.Background()
	st := filestore.New(filepath.Join(t.TempDir(), "jobs.json"))

	job := batchjob.New("a", "q", "d")
	job.JobID = "job-1"
	job.Status = batchjob.StatusRunning
	require.NoError(t, st.Save(ctx, job))

	// Mutate the stored row behind the in-memory job's back.
	job.Status = batchjob.StatusSucceeded
	require.NoError(t, st.Save(ctx, job))

	inMemory := batchjob.New("a", "q", "d")
	inMemory.JobID = "job-1"
	inMemory.Status = batchjob.StatusRunning // stale in-memory view

	out, err := FindByStatus(ctx, []*batchjob.Job{inMemory}, st, batchjob.StatusSucceeded)
	require.NoError(t, err)
	assert.Len(t, out, 1, "store-backed lookup should see the persisted status, not the stale in-memory one")
}

func TestStreamByStatusYieldsMatches(t *testing.T) {
	running := batchjob.New("a", "q", "d")
	running.Status = batchjob.StatusRunning
	done := batchjob.New("b", "q", "d")
	done.Status = batchjob.StatusSucceeded

	var names []string
	for j, err := range StreamComplete(context.Background(), []*batchjob.Job{running, done}, nil) {
		require.NoError(t, err)
		names = append(names, j.JobName)
	}
	assert.Equal(t, []string{"b"}, names)
}

func TestStreamByStatusStopsEarly(t *testing.T) {
	a := batchjob.New("a", "q", "d")
	a.Status = batchjob.StatusSucceeded
	b := batchjob.New("b", "q", "d")
	b.Status = batchjob.StatusSucceeded

	count := 0
	for range StreamComplete(context.Background(), []*batchjob.Job{a, b}, nil) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}
