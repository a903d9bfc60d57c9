package model

import (
	"fmt"
	"strings"
	"time"
)

// Platform names a social media source.
type Platform string

const (
	// PlatformInstagram is instagram.com.
	PlatformInstagram Platform = "instagram"
	// PlatformFacebook is facebook.com.
	PlatformFacebook Platform = "facebook"
	// PlatformTwitter is twitter.com / x.com, read through Nitter mirrors.
	PlatformTwitter Platform = "twitter"
)

// Valid returns true for the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformFacebook, PlatformTwitter:
		return true
	default:
		return false
	}
}

// AccountStatus reports whether an account is still monitored.
type AccountStatus string

const (
	// AccountActive accounts are collected.
	AccountActive AccountStatus = "active"
	// AccountInactive accounts are skipped by collection workflows.
	AccountInactive AccountStatus = "inactive"
)

// NormalizeAccountStatus maps free-form status labels to an AccountStatus.
// Dutch and English labels for inactive or hacked accounts map to inactive.
func NormalizeAccountStatus(s string) AccountStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inactief", "inactive", "gehackt", "hacked":
		return AccountInactive
	default:
		return AccountActive
	}
}

// Account is a monitored social media account.
type Account struct {
	ID          string        `json:"id"                     db:"id"`
	Country     string        `json:"country"                db:"country"`
	Platform    Platform      `json:"platform"               db:"platform"`
	Handle      string        `json:"handle"                 db:"handle"`
	DisplayName *string       `json:"display_name,omitempty" db:"display_name"`
	Status      AccountStatus `json:"status"                 db:"status"`
	Notes       *string       `json:"notes,omitempty"        db:"notes"`
	CreatedAt   time.Time     `json:"created_at"             db:"created_at"`
}

// AccountID builds the stable id for an account.
func AccountID(country string, platform Platform, handle string) string {
	return strings.ToLower(fmt.Sprintf("%s_%s_%s", country, platform, handle))
}

// Active reports whether the account should be collected.
func (a *Account) Active() bool {
	return a.Status != AccountInactive
}

// Validate validates the required account fields.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(a.Country) == "" {
		return fmt.Errorf("account %s: country is required", a.ID)
	}
	if strings.TrimSpace(a.Handle) == "" {
		return fmt.Errorf("account %s: handle is required", a.ID)
	}
	if strings.TrimSpace(string(a.Platform)) == "" {
		return fmt.Errorf("account %s: platform is required", a.ID)
	}
	return nil
}

// PlatformCount is the number of accounts on one platform.
type PlatformCount struct {
	Platform Platform `json:"platform" db:"platform"`
	Count    int      `json:"count"    db:"count"`
}

// CollectionStatus is the outcome of one collection run.
type CollectionStatus string

const (
	// CollectionSuccess means the run completed without error.
	CollectionSuccess CollectionStatus = "success"
	// CollectionPartial means some data was stored before an error.
	CollectionPartial CollectionStatus = "partial"
	// CollectionFailed means nothing useful was collected.
	CollectionFailed CollectionStatus = "failed"
)

// CollectionLog records one collection attempt for an account.
type CollectionLog struct {
	ID             string           `json:"id"                      db:"id"`
	AccountID      string           `json:"account_id"              db:"account_id"`
	Platform       Platform         `json:"platform"                db:"platform"`
	Status         CollectionStatus `json:"status"                  db:"status"`
	PostsCollected int              `json:"posts_collected"         db:"posts_collected"`
	ErrorMessage   *string          `json:"error_message,omitempty" db:"error_message"`
	StartedAt      time.Time        `json:"started_at"              db:"started_at"`
	CompletedAt    time.Time        `json:"completed_at"            db:"completed_at"`
}
