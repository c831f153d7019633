package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/renliu0x/askdoc/internal/model"
	appErr "github.com/renliu0x/askdoc/internal/pkg/errors"
	"github.com/renliu0x/askdoc/internal/pkg/timeutil"
	"github.com/renliu0x/askdoc/internal/repo"
)

func TestJobRepoLifecycle(t *testing.T) {
	conn, cleanup := openTestDB(t)
	defer cleanup()

	jobs := repo.NewJobRepo(conn)
	ctx := context.Background()
	now := timeutil.NowUnix()

	job := &model.Job{
		ID:          "job-1",
		Type:        model.JobTypeIndexDocument,
		Payload:     `{"document_id":"doc-1"}`,
		Status:      model.JobStatusQueued,
		MaxAttempts: 3,
		AvailableAt: now,
		Ctime:       now,
		Mtime:       now,
	}
	require.NoError(t, jobs.Create(ctx, job))

	fetched, err := jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, model.JobStatusQueued, fetched.Status)

	_, err = jobs.Get(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	fetched.Status = model.JobStatusProcessing
	fetched.Attempts = 1
	fetched.Mtime = timeutil.NowUnix()
	require.NoError(t, jobs.Update(ctx, fetched))

	require.NoError(t, jobs.UpdateProgress(ctx, "job-1", 40, "embedding", timeutil.NowUnix()))
	fetched, err = jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, 40, fetched.Progress)
	require.Equal(t, "embedding", fetched.Stage)

	fetched.Status = model.JobStatusCompleted
	fetched.Progress = 100
	fetched.Result = `{"chunk_count":4}`
	require.NoError(t, jobs.Update(ctx, fetched))

	state, err := jobs.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, state.Completed)
	require.Equal(t, 0, state.Queued)
}

func TestJobRepoListPendingOrder(t *testing.T) {
	conn, cleanup := openTestDB(t)
	defer cleanup()

	jobs := repo.NewJobRepo(conn)
	ctx := context.Background()
	now := timeutil.NowUnix()

	for i, status := range []string{
		model.JobStatusQueued,
		model.JobStatusProcessing,
		model.JobStatusCompleted,
		model.JobStatusFailed,
	} {
		require.NoError(t, jobs.Create(ctx, &model.Job{
			ID:          string(rune('a' + i)),
			Type:        model.JobTypeAnswerQuery,
			Payload:     "{}",
			Status:      status,
			MaxAttempts: 3,
			AvailableAt: now,
			Ctime:       now + int64(i),
			Mtime:       now + int64(i),
		}))
	}

	pending, err := jobs.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "a", pending[0].ID)
	require.Equal(t, "b", pending[1].ID)
}

func TestJobRepoRetentionSweep(t *testing.T) {
	conn, cleanup := openTestDB(t)
	defer cleanup()

	jobs := repo.NewJobRepo(conn)
	ctx := context.Background()
	now := timeutil.NowUnix()

	old := now - 100
	for id, status := range map[string]string{
		"done-old":  model.JobStatusCompleted,
		"fail-old":  model.JobStatusFailed,
		"queue-old": model.JobStatusQueued,
		"done-new":  model.JobStatusCompleted,
	} {
		mtime := old
		if id == "done-new" {
			mtime = now
		}
		require.NoError(t, jobs.Create(ctx, &model.Job{
			ID: id, Type: model.JobTypeIndexDocument, Payload: "{}",
			Status: status, MaxAttempts: 3, AvailableAt: old, Ctime: old, Mtime: mtime,
		}))
	}

	deleted, err := jobs.DeleteTerminalBefore(ctx, now-50)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	// Pending and recent jobs survive the sweep.
	_, err = jobs.Get(ctx, "queue-old")
	require.NoError(t, err)
	_, err = jobs.Get(ctx, "done-new")
	require.NoError(t, err)
}
