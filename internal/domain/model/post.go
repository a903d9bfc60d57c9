package model

import (
	"time"
)

// ContentType describes the media of a post.
type ContentType string

const (
	ContentImage    ContentType = "image"
	ContentVideo    ContentType = "video"
	ContentCarousel ContentType = "carousel"
	ContentReel     ContentType = "reel"
	ContentText     ContentType = "text"
	ContentLink     ContentType = "link"
)

// Post is a single published item with its engagement counters.
type Post struct {
	ID             string      `json:"id"                        db:"id"`
	AccountID      string      `json:"account_id"                db:"account_id"`
	PlatformPostID string      `json:"platform_post_id"          db:"platform_post_id"`
	PostedAt       time.Time   `json:"posted_at"                 db:"posted_at"`
	ContentType    ContentType `json:"content_type,omitempty"    db:"content_type"`
	Likes          int         `json:"likes"                     db:"likes"`
	Comments       int         `json:"comments"                  db:"comments"`
	Shares         int         `json:"shares"                    db:"shares"`
	Views          *int        `json:"views,omitempty"           db:"views"`
	URL            string      `json:"url,omitempty"             db:"url"`
	Caption        string      `json:"caption_snippet,omitempty" db:"caption_snippet"`
	Hashtags       []string    `json:"hashtags,omitempty"        db:"hashtags"`
	CollectedAt    time.Time   `json:"collected_at"              db:"collected_at"`
}

// WeightedEngagement weighs comments twice and shares three times a like.
func (p *Post) WeightedEngagement() int {
	return p.Likes + 2*p.Comments + 3*p.Shares
}

// FollowerSnapshot is the follower count of an account on one day.
type FollowerSnapshot struct {
	ID          string    `json:"id"                  db:"id"`
	AccountID   string    `json:"account_id"          db:"account_id"`
	Date        time.Time `json:"date"                db:"date"`
	Followers   int       `json:"followers"           db:"followers"`
	Following   *int      `json:"following,omitempty" db:"following"`
	CollectedAt time.Time `json:"collected_at"        db:"collected_at"`
}

// MonthlyMetrics aggregates one account's activity over a calendar month.
type MonthlyMetrics struct {
	ID                string    `json:"id"                            db:"id"`
	AccountID         string    `json:"account_id"                    db:"account_id"`
	YearMonth         string    `json:"year_month"                    db:"year_month"`
	AvgFollowers      *int      `json:"avg_followers,omitempty"       db:"avg_followers"`
	FollowerGrowth    *int      `json:"follower_growth,omitempty"     db:"follower_growth"`
	FollowerGrowthPct *float64  `json:"follower_growth_pct,omitempty" db:"follower_growth_pct"`
	TotalPosts        int       `json:"total_posts"                   db:"total_posts"`
	TotalLikes        int       `json:"total_likes"                   db:"total_likes"`
	TotalComments     int       `json:"total_comments"                db:"total_comments"`
	TotalShares       int       `json:"total_shares"                  db:"total_shares"`
	AvgEngagementRate *float64  `json:"avg_engagement_rate,omitempty" db:"avg_engagement_rate"`
	TopPostID         *string   `json:"top_post_id,omitempty"         db:"top_post_id"`
	CalculatedAt      time.Time `json:"calculated_at"                 db:"calculated_at"`
}

// MonthlyMetricsID builds the id for an account's metrics row.
func MonthlyMetricsID(accountID, yearMonth string) string {
	return accountID + "_" + yearMonth
}

// MetricsWithAccount joins monthly metrics with the owning account for comparisons.
type MetricsWithAccount struct {
	MonthlyMetrics
	Country  string   `json:"country"  db:"country"`
	Platform Platform `json:"platform" db:"platform"`
	Handle   string   `json:"handle"   db:"handle"`
}
