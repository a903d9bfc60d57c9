package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRepo_DeleteOldJobs_Integration(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewFixedTimeProvider(time.Now().Add(-60 * 24 * time.Hour))
		repo := NewJobRepo(db, RepoConfig{TimeProvider: clock})
		ctx := context.Background()

		// Finished 60 days ago.
		oldDone, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		_, err = repo.ClaimNext(ctx, nil)
		require.NoError(t, err)
		_, err = repo.Complete(ctx, oldDone.ID, model.Succeeded("ok", nil))
		require.NoError(t, err)

		oldCancelled, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		_, err = repo.Cancel(ctx, oldCancelled.ID)
		require.NoError(t, err)

		// Pending jobs are never deleted, however old.
		oldPending, err := repo.Create(ctx, testutil.LowPriorityJobRequest())
		require.NoError(t, err)

		clock.SetTime(time.Now())
		recent, err := repo.Create(ctx, testutil.HighPriorityJobRequest())
		require.NoError(t, err)
		_, err = repo.ClaimNext(ctx, nil)
		require.NoError(t, err)
		_, err = repo.Complete(ctx, recent.ID, model.Succeeded("ok", nil))
		require.NoError(t, err)

		n, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{Cutoff: time.Now().Add(-30 * 24 * time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, err = repo.GetByID(ctx, oldDone.ID)
		require.ErrorIs(t, err, ErrJobNotFound)
		_, err = repo.GetByID(ctx, oldCancelled.ID)
		require.ErrorIs(t, err, ErrJobNotFound)
		_, err = repo.GetByID(ctx, oldPending.ID)
		require.NoError(t, err)
		_, err = repo.GetByID(ctx, recent.ID)
		require.NoError(t, err)
	})
}

func TestJobRepo_ListStaleRunning_Integration(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewFixedTimeProvider(time.Now().Add(-3 * time.Hour))
		repo := NewJobRepo(db, RepoConfig{TimeProvider: clock})
		ctx := context.Background()

		stale, err := repo.Create(ctx, testutil.HighPriorityJobRequest())
		require.NoError(t, err)
		_, err = repo.ClaimNext(ctx, nil)
		require.NoError(t, err)

		clock.SetTime(time.Now())
		_, err = repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		_, err = repo.ClaimNext(ctx, nil)
		require.NoError(t, err)

		jobs, err := repo.ListStaleRunning(ctx, core.ListStaleRunningParams{StartedBefore: time.Now().Add(-time.Hour)})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, stale.ID, jobs[0].ID)
	})
}
