package analysis

import (
	"testing"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYearlyTotals(t *testing.T) {
	jan := row("a", "nederland", model.PlatformInstagram, floatPtr(1), intPtr(900), 3)
	jan.YearMonth, jan.TotalLikes = "2024-01", 30
	feb := row("a", "nederland", model.PlatformInstagram, floatPtr(3), intPtr(1000), 5)
	feb.YearMonth, feb.TotalLikes = "2024-02", 50
	other := row("b", "turkije", model.PlatformTwitter, nil, nil, 1)
	other.YearMonth = "2024-02"

	got := YearlyTotals([]*model.MetricsWithAccount{jan, feb, other})
	require.Len(t, got, 2)

	a := got[0]
	assert.Equal(t, "a", a.AccountID)
	assert.Equal(t, 2, a.Months)
	assert.Equal(t, 8, a.TotalPosts)
	assert.Equal(t, 80, a.TotalLikes)
	assert.InDelta(t, 2.0, a.AvgEngagementRate, 1e-9)
	assert.Equal(t, 1000, a.Followers)
	assert.Equal(t, "b", got[1].AccountID)

	series := MonthlySeries([]*model.MetricsWithAccount{feb, jan, other})
	require.Len(t, series, 2)
	assert.Equal(t, "2024-01", series[0].YearMonth)
	assert.Equal(t, 2, series[1].Accounts)
	assert.Equal(t, 6, series[1].TotalPosts)
	assert.Equal(t, 1000, series[1].TotalFollowers)
	assert.InDelta(t, 3.0, series[1].AvgEngagementRate, 1e-9)
}
