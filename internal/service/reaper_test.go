package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/config"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/data"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
)

// mockReaperRepo is a simple mock implementation for testing.
type mockReaperRepo struct {
	mu sync.Mutex

	deleteOldJobsCalled int
	deleteOldJobsCount  int64
	deleteOldJobsError  error
	deleteParams        []core.DeleteOldJobsParams

	listStaleCalled int
	staleJobs       []*model.Job
	listStaleError  error
	staleParams     core.ListStaleRunningParams
}

func (m *mockReaperRepo) DeleteOldJobs(_ context.Context, params core.DeleteOldJobsParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteOldJobsCalled++
	m.deleteParams = append(m.deleteParams, params)
	if m.deleteOldJobsError != nil {
		return 0, m.deleteOldJobsError
	}
	// Return count on odd calls, then 0 on even calls to simulate batch exhaustion
	if m.deleteOldJobsCalled%2 == 1 {
		return m.deleteOldJobsCount, nil
	}
	return 0, nil
}

func (m *mockReaperRepo) ListStaleRunning(_ context.Context, params core.ListStaleRunningParams) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listStaleCalled++
	m.staleParams = params
	if m.listStaleError != nil {
		return nil, m.listStaleError
	}
	return m.staleJobs, nil
}

func (m *mockReaperRepo) calls() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteOldJobsCalled, m.listStaleCalled
}

var reaperNow = time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:          5 * time.Minute,
		MaxAge:            7 * 24 * time.Hour,
		StaleRunningAfter: 2 * time.Hour,
		BatchSize:         1000,
	}
}

func TestNewReaperService(t *testing.T) {
	t.Run("creates service with valid options", func(t *testing.T) {
		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   &mockReaperRepo{},
			Config: testReaperConfig(),
			Logger: slog.Default(),
		})

		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("returns error when repo is nil", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{Config: testReaperConfig()})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "repository is required")
	})

	t.Run("returns error without an interval", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{Repo: &mockReaperRepo{}})
		require.Error(t, err)
	})
}

func TestReaperService_RunOnce(t *testing.T) {
	t.Run("deletes in batches and reports stale jobs", func(t *testing.T) {
		started := reaperNow.Add(-3 * time.Hour)
		repo := &mockReaperRepo{
			deleteOldJobsCount: 10,
			staleJobs: []*model.Job{
				{ID: "a", Type: model.JobTypeCollectAccount, Status: model.JobStatusRunning, StartedAt: &started},
			},
		}
		rec := &statsd.Recorder{}
		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:    repo,
			Config:  testReaperConfig(),
			Metrics: rec,
			Now:     func() time.Time { return reaperNow },
		})
		require.NoError(t, err)

		require.NoError(t, svc.RunOnce(context.Background()))

		// Called twice: once returning count, once returning 0
		assert.Equal(t, 2, repo.deleteOldJobsCalled)
		assert.Equal(t, reaperNow.Add(-7*24*time.Hour), repo.deleteParams[0].Cutoff)
		assert.Equal(t, 1000, repo.deleteParams[0].BatchSize)
		assert.Equal(t, reaperNow.Add(-2*time.Hour), repo.staleParams.StartedBefore)

		assert.Equal(t, int64(1), rec.Total("reaper.cleanup", map[string]string{"result": "success"}))
		assert.Equal(t, int64(10), rec.Total("reaper.jobs_processed", map[string]string{"operation": "delete_jobs"}))
		assert.Equal(t, int64(1), rec.Total("reaper.jobs_processed", map[string]string{"operation": "report_stale_running"}))

		var stale []float64
		for _, s := range rec.Samples() {
			if s.Kind == "g" && s.Name == "reaper.stale_running" {
				stale = append(stale, s.Value)
			}
		}
		assert.Equal(t, []float64{1}, stale)
	})

	t.Run("continues on partial errors", func(t *testing.T) {
		repo := &mockReaperRepo{deleteOldJobsError: errors.New("delete error")}
		rec := &statsd.Recorder{}
		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig(), Metrics: rec})
		require.NoError(t, err)

		err = svc.RunOnce(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "delete old jobs")
		assert.Equal(t, 1, repo.deleteOldJobsCalled)
		assert.Equal(t, 1, repo.listStaleCalled, "the stale report still runs")
		assert.Equal(t, int64(1), rec.Total("reaper.cleanup", map[string]string{"result": "error"}))
	})

	t.Run("reports cancellation as context.Canceled", func(t *testing.T) {
		repo := &mockReaperRepo{
			deleteOldJobsError: context.Canceled,
			listStaleError:     context.Canceled,
		}
		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig()})
		require.NoError(t, err)

		err = svc.RunOnce(context.Background())
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestReaperService_NeverRearmsStaleJobs(t *testing.T) {
	tp := data.NewFixedTimeProvider(reaperNow.Add(-5 * time.Hour))
	repo := data.NewMemoryJobRepo(data.RepoConfig{TimeProvider: tp})
	ctx := context.Background()

	_, err := repo.Create(ctx, &model.CreateJobRequest{Type: model.JobTypeUpdateFollowers})
	require.NoError(t, err)
	stuck, err := repo.ClaimNext(ctx, nil)
	require.NoError(t, err)

	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:   repo,
		Config: testReaperConfig(),
		Now:    func() time.Time { return reaperNow },
	})
	require.NoError(t, err)
	require.NoError(t, svc.RunOnce(ctx))

	got, err := repo.GetByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, got.Status)
}

func TestReaperService_Run(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		repo := &mockReaperRepo{}
		cfg := testReaperConfig()
		cfg.Interval = 100 * time.Millisecond

		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- svc.Run(ctx)
		}()

		time.Sleep(150 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(1 * time.Second):
			t.Fatal("Run did not stop after context cancellation")
		}

		deletes, _ := repo.calls()
		assert.GreaterOrEqual(t, deletes, 1)
	})

	t.Run("continues running despite cleanup errors", func(t *testing.T) {
		repo := &mockReaperRepo{listStaleError: errors.New("test error")}
		cfg := testReaperConfig()
		cfg.Interval = 50 * time.Millisecond

		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err = svc.Run(ctx)

		// Should return context deadline exceeded, not the cleanup error
		require.ErrorIs(t, err, context.DeadlineExceeded)

		_, stale := repo.calls()
		assert.GreaterOrEqual(t, stale, 2)
	})
}
