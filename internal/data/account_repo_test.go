package data

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	apperrors "github.com/JuliaLoth/NLWW-socialmediamonitor/internal/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountColumnList = []string{"id", "country", "platform", "handle", "display_name", "status", "notes", "created_at"}

func newMockAccountRepo(t *testing.T) (*AccountRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAccountRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(testNow)}), mock
}

func TestAccountRepo_Upsert(t *testing.T) {
	repo, mock := newMockAccountRepo(t)

	acc := &model.Account{
		ID:       model.AccountID("NL", model.PlatformInstagram, "nlinde"),
		Country:  "NL",
		Platform: model.PlatformInstagram,
		Handle:   "nlinde",
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs("nl_instagram_nlinde", "NL", "instagram", "nlinde", nil, "active", nil, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), acc))
	assert.Equal(t, model.AccountActive, acc.Status)
	require.NoError(t, mock.ExpectationsWereMet())

	err := repo.Upsert(context.Background(), &model.Account{ID: "x"})
	require.ErrorContains(t, err, "country is required")
}

func TestAccountRepo_GetByID(t *testing.T) {
	repo, mock := newMockAccountRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1")).
		WithArgs("de_twitter_germanydiplo").
		WillReturnRows(sqlmock.NewRows(accountColumnList).
			AddRow("de_twitter_germanydiplo", "DE", "twitter", "GermanyDiplo", "Auswärtiges Amt", "inactive", nil, testNow))

	acc, err := repo.GetByID(ctx, "de_twitter_germanydiplo")
	require.NoError(t, err)
	assert.Equal(t, model.PlatformTwitter, acc.Platform)
	require.NotNil(t, acc.DisplayName)
	assert.Equal(t, "Auswärtiges Amt", *acc.DisplayName)
	assert.Nil(t, acc.Notes)
	assert.False(t, acc.Active())

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(accountColumnList))
	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_ListFilters(t *testing.T) {
	tests := []struct {
		name      string
		opts      model.AccountListOptions
		wantQuery string
		wantArgs  []driver.Value
	}{
		{
			name:      "no filters",
			wantQuery: "FROM accounts WHERE 1=1 ORDER BY country, platform, handle",
		},
		{
			name:      "country and platform",
			opts:      model.AccountListOptions{Country: "FR", Platform: model.PlatformFacebook},
			wantQuery: "WHERE 1=1 AND country = $1 AND platform = $2 ORDER BY",
			wantArgs:  []driver.Value{"FR", "facebook"},
		},
		{
			name:      "active only",
			opts:      model.AccountListOptions{ActiveOnly: true},
			wantQuery: "WHERE 1=1 AND status = 'active' ORDER BY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockAccountRepo(t)

			exp := mock.ExpectQuery(regexp.QuoteMeta(tt.wantQuery))
			if len(tt.wantArgs) > 0 {
				exp = exp.WithArgs(tt.wantArgs...)
			}
			exp.WillReturnRows(sqlmock.NewRows(accountColumnList).
				AddRow("fr_facebook_francediplo", "FR", "facebook", "francediplo", nil, "active", nil, testNow))

			accounts, err := repo.List(context.Background(), tt.opts)
			require.NoError(t, err)
			require.Len(t, accounts, 1)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepo_CountByPlatform(t *testing.T) {
	repo, mock := newMockAccountRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT platform, count(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"platform", "count"}).
			AddRow("facebook", 12).
			AddRow("instagram", 30))

	counts, err := repo.CountByPlatform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.PlatformCount{
		{Platform: model.PlatformFacebook, Count: 12},
		{Platform: model.PlatformInstagram, Count: 30},
	}, counts)
}

func TestFollowerRepo_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewFollowerRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(testNow)})

	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (account_id, date)")).
		WithArgs(sqlmock.AnyArg(), "nl_instagram_nlinde", day, 15200, nil, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	snap := &model.FollowerSnapshot{AccountID: "nl_instagram_nlinde", Followers: 15200}
	require.NoError(t, repo.Upsert(context.Background(), snap))
	assert.Equal(t, day, snap.Date)
	assert.NotEmpty(t, snap.ID)
	require.NoError(t, mock.ExpectationsWereMet())

	require.ErrorIs(t, repo.Upsert(context.Background(), &model.FollowerSnapshot{}), ErrAccountIDRequired)
}

func TestFollowerRepo_Latest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewFollowerRepo(db, RepoConfig{})
	cols := []string{"id", "account_id", "date", "followers", "following", "collected_at"}

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY date DESC")).
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("s1", "a", testNow, 100, 12, testNow))
	snap, err := repo.Latest(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 100, snap.Followers)
	require.NotNil(t, snap.Following)
	assert.Equal(t, 12, *snap.Following)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), snap.Date)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY date DESC")).
		WithArgs("b").
		WillReturnRows(sqlmock.NewRows(cols))
	snap, err = repo.Latest(context.Background(), "b")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestFollowerRepo_History(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewFollowerRepo(db, RepoConfig{})

	from := time.Date(2025, 2, 1, 13, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("date >= $2 AND date < $3")).
		WithArgs("a", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), to).
		WillReturnError(errors.New("connection reset"))

	_, err = repo.History(context.Background(), core.FollowerRangeParams{AccountID: "a", From: from, To: to})
	require.ErrorContains(t, err, "follower history of a")
}

func TestMetricsRepo_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewMetricsRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(testNow)})

	rate := 3.25
	m := &model.MonthlyMetrics{AccountID: "a", YearMonth: "2025-02", TotalPosts: 8, AvgEngagementRate: &rate}
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (account_id, year_month)")).
		WithArgs("a_2025-02", "a", "2025-02", nil, nil, nil, 8, 0, 0, 0, &rate, nil, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), m))
	assert.Equal(t, "a_2025-02", m.ID)
	require.NoError(t, mock.ExpectationsWereMet())

	err = repo.Upsert(context.Background(), &model.MonthlyMetrics{AccountID: "a", YearMonth: "2025-13"})
	require.ErrorIs(t, err, ErrInvalidYearMonth)
}

func TestMetricsRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewMetricsRepo(db, RepoConfig{})
	cols := []string{
		"id", "account_id", "year_month", "avg_followers", "follower_growth", "follower_growth_pct",
		"total_posts", "total_likes", "total_comments", "total_shares", "avg_engagement_rate", "top_post_id", "calculated_at",
	}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE account_id = $1 AND year_month = $2")).
		WithArgs("a", "2025-02").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a_2025-02", "a", "2025-02", 1000, 50, 5.0, 4, 100, 10, 2, 1.26, "p1", testNow))

	m, err := repo.Get(context.Background(), "a", "2025-02")
	require.NoError(t, err)
	require.NotNil(t, m)
	require.NotNil(t, m.AvgFollowers)
	assert.Equal(t, 1000, *m.AvgFollowers)
	require.NotNil(t, m.FollowerGrowthPct)
	assert.InDelta(t, 5.0, *m.FollowerGrowthPct, 1e-9)
	require.NotNil(t, m.TopPostID)
	assert.Equal(t, "p1", *m.TopPostID)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE account_id = $1 AND year_month = $2")).
		WithArgs("a", "2025-01").
		WillReturnRows(sqlmock.NewRows(cols))
	m, err = repo.Get(context.Background(), "a", "2025-01")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestCollectionLogRepo_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCollectionLogRepo(db, RepoConfig{})

	msg := "rate limit exceeded"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO collection_logs")).
		WithArgs(sqlmock.AnyArg(), "a", "twitter", "failed", 0, &msg, testNow, testNow.Add(time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	l := &model.CollectionLog{
		AccountID:    "a",
		Platform:     model.PlatformTwitter,
		Status:       model.CollectionFailed,
		ErrorMessage: &msg,
		StartedAt:    testNow,
		CompletedAt:  testNow.Add(time.Second),
	}
	require.NoError(t, repo.Insert(context.Background(), l))
	assert.NotEmpty(t, l.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_UpsertMapsCheckViolation(t *testing.T) {
	repo, mock := newMockAccountRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "accounts_status_check"})

	err := repo.Upsert(context.Background(), &model.Account{
		ID:       model.AccountID("be", model.PlatformFacebook, "nlinbelgie"),
		Country:  "be",
		Platform: model.PlatformFacebook,
		Handle:   "nlinbelgie",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
