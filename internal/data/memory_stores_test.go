package data

import (
	"context"
	"testing"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemoryAccounts(t *testing.T, stores core.Stores, accounts ...*model.Account) {
	t.Helper()
	for _, a := range accounts {
		require.NoError(t, stores.Accounts.Upsert(context.Background(), a))
	}
}

func testAccount(country string, platform model.Platform, handle string) *model.Account {
	return &model.Account{
		ID:       model.AccountID(country, platform, handle),
		Country:  country,
		Platform: platform,
		Handle:   handle,
	}
}

func TestMemoryStore_Accounts(t *testing.T) {
	stores := NewMemoryStore(RepoConfig{TimeProvider: NewFixedTimeProvider(testNow)}).Stores()
	ctx := context.Background()

	inactive := testAccount("NL", model.PlatformTwitter, "oldhandle")
	inactive.Status = model.AccountInactive
	seedMemoryAccounts(t, stores,
		testAccount("NL", model.PlatformInstagram, "nlinde"),
		testAccount("BE", model.PlatformInstagram, "belgiumun"),
		inactive,
	)

	all, err := stores.Accounts.List(ctx, model.AccountListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "BE", all[0].Country)

	active, err := stores.Accounts.List(ctx, model.AccountListOptions{Country: "NL", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "nlinde", active[0].Handle)

	counts, err := stores.Accounts.CountByPlatform(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.PlatformCount{{Platform: model.PlatformInstagram, Count: 2}}, counts)

	_, err = stores.Accounts.GetByID(ctx, "nope")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestMemoryStore_PostUpsert(t *testing.T) {
	stores := NewMemoryStore(RepoConfig{TimeProvider: NewFixedTimeProvider(testNow)}).Stores()
	ctx := context.Background()
	posted := testNow.Add(-48 * time.Hour)

	n, err := stores.Posts.Upsert(ctx, []*model.Post{
		{AccountID: "a", PlatformPostID: "p1", PostedAt: posted, Likes: 10},
		{AccountID: "a", PlatformPostID: "p2", PostedAt: posted.Add(time.Hour), Likes: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-collecting refreshes counters without duplicating.
	n, err = stores.Posts.Upsert(ctx, []*model.Post{
		{AccountID: "a", PlatformPostID: "p1", PostedAt: posted, Likes: 25, Comments: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	posts, err := stores.Posts.ListByAccount(ctx, core.PostRangeParams{AccountID: "a", From: posted.Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, 25, posts[0].Likes)
	assert.Equal(t, 4, posts[0].Comments)

	latest, err := stores.Posts.LatestPostedAt(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, posted.Add(time.Hour), *latest)

	latest, err = stores.Posts.LatestPostedAt(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, latest)

	ids, err := stores.Posts.AccountsWithPostsSince(ctx, posted)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestMemoryStore_FollowerSnapshots(t *testing.T) {
	stores := NewMemoryStore(RepoConfig{TimeProvider: NewFixedTimeProvider(testNow)}).Stores()
	ctx := context.Background()

	require.NoError(t, stores.Followers.Upsert(ctx, &model.FollowerSnapshot{AccountID: "a", Followers: 100}))
	require.NoError(t, stores.Followers.Upsert(ctx, &model.FollowerSnapshot{AccountID: "a", Followers: 110}))
	require.NoError(t, stores.Followers.Upsert(ctx, &model.FollowerSnapshot{
		AccountID: "a", Followers: 90, Date: testNow.AddDate(0, 0, -3),
	}))

	history, err := stores.Followers.History(ctx, core.FollowerRangeParams{
		AccountID: "a", From: testNow.AddDate(0, 0, -7), To: testNow.AddDate(0, 0, 1),
	})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 90, history[0].Followers)
	assert.Equal(t, 110, history[1].Followers)

	latest, err := stores.Followers.Latest(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 110, latest.Followers)
}

func TestMemoryStore_MetricsForMonth(t *testing.T) {
	stores := NewMemoryStore(RepoConfig{}).Stores()
	ctx := context.Background()

	nl := testAccount("NL", model.PlatformInstagram, "nlinde")
	be := testAccount("BE", model.PlatformInstagram, "belgiumun")
	fr := testAccount("FR", model.PlatformInstagram, "francediplo")
	seedMemoryAccounts(t, stores, nl, be, fr)

	low, high := 1.5, 4.0
	require.NoError(t, stores.Metrics.Upsert(ctx, &model.MonthlyMetrics{AccountID: nl.ID, YearMonth: "2025-02", AvgEngagementRate: &low}))
	require.NoError(t, stores.Metrics.Upsert(ctx, &model.MonthlyMetrics{AccountID: be.ID, YearMonth: "2025-02", AvgEngagementRate: &high}))
	require.NoError(t, stores.Metrics.Upsert(ctx, &model.MonthlyMetrics{AccountID: fr.ID, YearMonth: "2025-02"}))
	require.NoError(t, stores.Metrics.Upsert(ctx, &model.MonthlyMetrics{AccountID: nl.ID, YearMonth: "2025-01"}))

	rows, err := stores.Metrics.ForMonth(ctx, "2025-02")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, be.ID, rows[0].AccountID)
	assert.Equal(t, nl.ID, rows[1].AccountID)
	assert.Equal(t, fr.ID, rows[2].AccountID)
	assert.Equal(t, "BE", rows[0].Country)

	rows, err = stores.Metrics.ForRange(ctx, "2025-01", "2025-02")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "2025-01", rows[0].YearMonth)

	got, err := stores.Metrics.Get(ctx, nl.ID, "2024-12")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.ErrorIs(t, stores.Metrics.Upsert(ctx, &model.MonthlyMetrics{AccountID: nl.ID, YearMonth: "feb"}), ErrInvalidYearMonth)
}

func TestMemoryCacheRepo_TTL(t *testing.T) {
	clock := NewFixedTimeProvider(testNow)
	cache := NewMemoryCacheRepo(clock)
	ctx := context.Background()

	ok, err := cache.SetIfNotExists(ctx, "run:daily:2025-03-14", []byte("1"), time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.SetIfNotExists(ctx, "run:daily:2025-03-14", []byte("2"), time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.AddTime(time.Hour)
	exists, err := cache.Exists(ctx, "run:daily:2025-03-14")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), 0))
	clock.AddTime(365 * 24 * time.Hour)
	v, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	_, err = cache.Get(ctx, "")
	require.ErrorContains(t, err, "key cannot be empty")
}
