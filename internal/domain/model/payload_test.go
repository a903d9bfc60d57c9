package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		jobType JobType
		raw     string
		want    Payload
		wantErr bool
	}{
		{
			name:    "collect account",
			jobType: JobTypeCollectAccount,
			raw:     `{"account_id":"nl_instagram_x"}`,
			want:    &CollectAccountPayload{AccountID: "nl_instagram_x"},
		},
		{
			name:    "historical default months",
			jobType: JobTypeCollectHistorical,
			raw:     `{"account_id":"a"}`,
			want:    &CollectHistoricalPayload{AccountID: "a"},
		},
		{
			name:    "followers with empty body",
			jobType: JobTypeUpdateFollowers,
			raw:     ``,
			want:    &UpdateFollowersPayload{},
		},
		{
			name:    "followers with null body",
			jobType: JobTypeUpdateFollowers,
			raw:     `null`,
			want:    &UpdateFollowersPayload{},
		},
		{
			name:    "anomalies",
			jobType: JobTypeDetectAnomalies,
			raw:     `{"year_month":"2025-03","threshold_pct":30}`,
			want:    &DetectAnomaliesPayload{YearMonth: "2025-03", ThresholdPct: 30},
		},
		{
			name:    "pdf yearly",
			jobType: JobTypeGeneratePDF,
			raw:     `{"report_type":"yearly","year":2025}`,
			want:    &GeneratePDFPayload{ReportType: ReportYearly, ReportPeriod: ReportPeriod{Year: 2025}},
		},
		{
			name:    "pdf defaults to monthly",
			jobType: JobTypeGeneratePDF,
			raw:     `{}`,
			want:    &GeneratePDFPayload{},
		},
		{
			name:    "excel monthly",
			jobType: JobTypeExportExcel,
			raw:     `{"export_type":"monthly","year_month":"2025-12"}`,
			want:    &ExportExcelPayload{ExportType: ReportMonthly, ReportPeriod: ReportPeriod{YearMonth: "2025-12"}},
		},
		{
			name:    "unknown field rejected",
			jobType: JobTypeCollectAccount,
			raw:     `{"account_id":"a","extra":1}`,
			wantErr: true,
		},
		{
			name:    "bad month rejected",
			jobType: JobTypeCalculateMonthly,
			raw:     `{"year_month":"2025-13"}`,
			wantErr: true,
		},
		{
			name:    "unknown report type rejected",
			jobType: JobTypeGeneratePDF,
			raw:     `{"report_type":"weekly"}`,
			wantErr: true,
		},
		{
			name:    "unknown job type",
			jobType: "collect",
			raw:     `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(tt.jobType, json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.jobType, got.JobType())
		})
	}
}

func TestEncodePayload_RoundTripsThroughJob(t *testing.T) {
	raw, err := EncodePayload(CollectHistoricalPayload{AccountID: "nl_twitter_x", Months: 6})
	require.NoError(t, err)

	job := &Job{Type: JobTypeCollectHistorical, Payload: raw}
	p, err := job.DecodePayload()
	require.NoError(t, err)

	hist, ok := p.(*CollectHistoricalPayload)
	require.True(t, ok)
	assert.Equal(t, 6, hist.MonthsOrDefault())
}

func TestEncodePayload_RejectsInvalid(t *testing.T) {
	_, err := EncodePayload(CollectAccountPayload{})
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = EncodePayload(nil)
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestPayloadDefaults(t *testing.T) {
	assert.Equal(t, 12, CollectHistoricalPayload{}.MonthsOrDefault())
	assert.Equal(t, 7, UpdatePostEngagementPayload{}.DaysOrDefault())
	assert.InDelta(t, 50.0, DetectAnomaliesPayload{}.ThresholdOrDefault(), 0.001)
	assert.InDelta(t, 30.0, DetectAnomaliesPayload{ThresholdPct: 30}.ThresholdOrDefault(), 0.001)
}

func TestYearMonth(t *testing.T) {
	ym, err := ParseYearMonth("2025-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-01", ym.String())
	assert.Equal(t, "2024-12", ym.Prev().String())
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), ym.End())

	_, err = ParseYearMonth("2025/01")
	require.Error(t, err)

	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	got, err := ResolveYearMonth("", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-03", got.String())
}

func TestAccountHelpers(t *testing.T) {
	assert.Equal(t, "nl_twitter_ambnlusa", AccountID("NL", PlatformTwitter, "AmbNLUSA"))

	for _, s := range []string{"inactief", "Inactive", "gehackt", "HACKED"} {
		assert.Equal(t, AccountInactive, NormalizeAccountStatus(s), s)
	}
	assert.Equal(t, AccountActive, NormalizeAccountStatus(""))
	assert.Equal(t, AccountActive, NormalizeAccountStatus("active"))

	acc := Account{ID: "x", Country: "nl", Platform: PlatformFacebook, Handle: "h", Status: AccountInactive}
	require.NoError(t, acc.Validate())
	assert.False(t, acc.Active())
}

func TestPost_WeightedEngagement(t *testing.T) {
	p := Post{Likes: 10, Comments: 2, Shares: 1}
	assert.Equal(t, 17, p.WeightedEngagement())
}
