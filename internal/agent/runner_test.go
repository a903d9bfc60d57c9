package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/data"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/ratelimit"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/service"
)

// funcAgent runs fn for every job of its types.
type funcAgent struct {
	name  string
	types []model.JobType
	calls atomic.Int32
	fn    func(call int, job *model.Job) model.JobResult
}

func (a *funcAgent) Name() string              { return a.name }
func (a *funcAgent) JobTypes() []model.JobType { return a.types }

func (a *funcAgent) ProcessJob(_ context.Context, job *model.Job) model.JobResult {
	n := int(a.calls.Add(1))
	return a.fn(n, job)
}

func succeed(int, *model.Job) model.JobResult { return model.Succeeded("ok", nil) }

func newQueue(t *testing.T) *service.JobQueue {
	t.Helper()
	return service.MustNewJobQueue(service.JobQueueOptions{
		Repo:         data.NewMemoryJobRepo(data.RepoConfig{}),
		PollInterval: 5 * time.Millisecond,
	})
}

func newTestRunner(t *testing.T, q *service.JobQueue, a Agent, rec *statsd.Recorder) *Runner {
	t.Helper()
	r, err := NewRunner(RunnerOptions{
		Agent:        a,
		Queue:        q,
		PollInterval: 5 * time.Millisecond,
		Metrics:      rec,
	})
	require.NoError(t, err)
	return r
}

func enqueueMonthly(t *testing.T, q *service.JobQueue, maxRetries *int) *model.Job {
	t.Helper()
	job, err := q.Enqueue(context.Background(), model.CalculateMonthlyPayload{YearMonth: "2025-05"},
		service.EnqueueOptions{MaxRetries: maxRetries})
	require.NoError(t, err)
	return job
}

func TestNewRunner_Validation(t *testing.T) {
	q := newQueue(t)
	a := &funcAgent{name: "a", types: []model.JobType{model.JobTypeCalculateMonthly}, fn: succeed}

	tests := []struct {
		name string
		opts RunnerOptions
	}{
		{name: "missing agent", opts: RunnerOptions{Queue: q}},
		{name: "missing queue", opts: RunnerOptions{Agent: a}},
		{name: "no job types", opts: RunnerOptions{Agent: &funcAgent{name: "empty", fn: succeed}, Queue: q}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.opts)
			require.Error(t, err)
		})
	}
}

func TestRunner_RunOnceEmptyQueue(t *testing.T) {
	q := newQueue(t)
	a := &funcAgent{name: "a", types: []model.JobType{model.JobTypeCalculateMonthly}, fn: succeed}
	r := newTestRunner(t, q, a, nil)

	processed, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Zero(t, a.calls.Load())
}

func TestRunner_OnlyClaimsOwnedTypes(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	other, err := q.Enqueue(ctx, model.UpdateFollowersPayload{}, service.EnqueueOptions{})
	require.NoError(t, err)

	a := &funcAgent{name: "analyse", types: []model.JobType{model.JobTypeCalculateMonthly}, fn: succeed}
	r := newTestRunner(t, q, a, nil)

	processed, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, processed)

	got, err := q.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, got.Status)
}

func TestRunner_RunOnceCompletes(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	job := enqueueMonthly(t, q, nil)

	rec := &statsd.Recorder{}
	a := &funcAgent{name: "analyse", types: []model.JobType{model.JobTypeCalculateMonthly},
		fn: func(int, *model.Job) model.JobResult {
			return model.Succeeded("done", map[string]any{"accounts_processed": 3})
		}}
	r := newTestRunner(t, q, a, rec)

	processed, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.JSONEq(t, `{"accounts_processed":3}`, string(got.Result))
	assert.Equal(t, int64(1), rec.Total("agent.job", map[string]string{"agent": "analyse", "result": "success"}))
}

func TestRunner_FailureOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		maxRetries  *int
		fn          func(int, *model.Job) model.JobResult
		wantStatus  model.JobStatus
		wantRetries int
	}{
		{
			name:        "plain failure is re-armed",
			fn:          func(int, *model.Job) model.JobResult { return Fail(errors.New("timeout")) },
			wantStatus:  model.JobStatusPending,
			wantRetries: 1,
		},
		{
			name:        "daily quota is not retried",
			fn:          func(int, *model.Job) model.JobResult { return Fail(ratelimit.ErrRateLimitExceeded) },
			wantStatus:  model.JobStatusFailed,
			wantRetries: 0,
		},
		{
			name:        "no retry budget",
			maxRetries:  intPtr(0),
			fn:          func(int, *model.Job) model.JobResult { return Fail(errors.New("boom")) },
			wantStatus:  model.JobStatusFailed,
			wantRetries: 0,
		},
		{
			name:        "panic becomes a retried failure",
			fn:          func(int, *model.Job) model.JobResult { panic("nil map") },
			wantStatus:  model.JobStatusPending,
			wantRetries: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue(t)
			ctx := context.Background()
			job := enqueueMonthly(t, q, tt.maxRetries)

			a := &funcAgent{name: "analyse", types: []model.JobType{model.JobTypeCalculateMonthly}, fn: tt.fn}
			r := newTestRunner(t, q, a, nil)

			processed, err := r.RunOnce(ctx)
			require.NoError(t, err)
			require.True(t, processed)

			got, err := q.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantRetries, got.Retries)
		})
	}
}

func TestRunner_RetryBudgetExhausted(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	job := enqueueMonthly(t, q, intPtr(2))

	a := &funcAgent{name: "analyse", types: []model.JobType{model.JobTypeCalculateMonthly},
		fn: func(int, *model.Job) model.JobResult { return Fail(errors.New("still broken")) }}
	r := newTestRunner(t, q, a, nil)

	for range 5 {
		_, err := r.RunOnce(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), a.calls.Load())
	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, 2, got.Retries)
	require.NotNil(t, got.Error)
	assert.Equal(t, "still broken", *got.Error)
}

func TestRunner_PanicRetrySuccess(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	enqueueMonthly(t, q, nil)

	rec := &statsd.Recorder{}
	a := &funcAgent{name: "analyse", types: []model.JobType{model.JobTypeCalculateMonthly},
		fn: func(call int, _ *model.Job) model.JobResult {
			if call == 1 {
				panic("first attempt explodes")
			}
			return model.Succeeded("second attempt", nil)
		}}
	r := newTestRunner(t, q, a, rec)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = r.Run(ctx)
	}()

	idle, err := q.WaitForCompletion(ctx, 3*time.Second, model.JobTypeCalculateMonthly)
	require.NoError(t, err)
	require.True(t, idle)

	summary, err := q.StatusSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary[model.JobStatusCompleted])
	assert.Equal(t, 1, summary.Total())
	assert.Equal(t, int32(2), a.calls.Load())
	assert.Equal(t, int64(1), rec.Total("agent.panic", nil))

	r.Stop()
	wg.Wait()
}

// slowFailRepo stretches the failure write so a barrier poll lands inside it.
type slowFailRepo struct {
	*data.MemoryJobRepo
	delay time.Duration
}

func (r *slowFailRepo) Fail(ctx context.Context, id string, result model.JobResult, rearm bool) (model.JobStatus, error) {
	time.Sleep(r.delay)
	status, err := r.MemoryJobRepo.Fail(ctx, id, result, rearm)
	time.Sleep(r.delay)
	return status, err
}

func TestRunner_BarrierNeverSeesFailedAttempt(t *testing.T) {
	q := service.MustNewJobQueue(service.JobQueueOptions{
		Repo:         &slowFailRepo{MemoryJobRepo: data.NewMemoryJobRepo(data.RepoConfig{}), delay: 100 * time.Millisecond},
		PollInterval: time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job := enqueueMonthly(t, q, nil)

	a := &funcAgent{name: "analyse", types: []model.JobType{model.JobTypeCalculateMonthly},
		fn: func(call int, _ *model.Job) model.JobResult {
			if call == 1 {
				return Fail(errors.New("transient"))
			}
			return model.Succeeded("ok", nil)
		}}
	r := newTestRunner(t, q, a, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = r.Run(ctx)
	}()
	defer func() {
		r.Stop()
		wg.Wait()
	}()

	idle, err := q.WaitForCompletion(ctx, 3*time.Second, model.JobTypeCalculateMonthly)
	require.NoError(t, err)
	require.True(t, idle)

	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, 1, got.Retries)
	assert.Equal(t, int32(2), a.calls.Load())
}

func TestRunner_StopEndsRun(t *testing.T) {
	q := newQueue(t)
	a := &funcAgent{name: "analyse", types: []model.JobType{model.JobTypeCalculateMonthly}, fn: succeed}
	r := newTestRunner(t, q, a, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background()) }()

	require.Eventually(t, r.Running, time.Second, time.Millisecond)
	r.Stop()
	r.Stop()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.False(t, r.Running())
}

func TestRunner_RunTwiceFails(t *testing.T) {
	q := newQueue(t)
	a := &funcAgent{name: "analyse", types: []model.JobType{model.JobTypeCalculateMonthly}, fn: succeed}
	r := newTestRunner(t, q, a, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()
	require.Eventually(t, r.Running, time.Second, time.Millisecond)

	require.Error(t, r.Run(ctx))
}

func TestRunner_ConcurrentWorkersDrainQueue(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for range 20 {
		enqueueMonthly(t, q, nil)
	}

	a := &funcAgent{name: "analyse", types: []model.JobType{model.JobTypeCalculateMonthly}, fn: succeed}
	r, err := NewRunner(RunnerOptions{Agent: a, Queue: q, PollInterval: 5 * time.Millisecond, Concurrency: 4})
	require.NoError(t, err)

	go func() { _ = r.Run(ctx) }()
	done, err := q.WaitForCompletion(ctx, 3*time.Second)
	require.NoError(t, err)
	require.True(t, done)
	r.Stop()

	assert.Equal(t, int32(20), a.calls.Load())
	summary, err := q.StatusSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, summary[model.JobStatusCompleted])
}

func intPtr(n int) *int { return &n }
