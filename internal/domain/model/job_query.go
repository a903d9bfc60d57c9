package model

// JobListOptions groups parameters for listing jobs with optional filters (status command).
type JobListOptions struct {
	Status *JobStatus // Optional filter by status
	Type   *JobType   // Optional filter by type
	Limit  int        // Pagination limit
	Offset int        // Pagination offset
}

// Job list bounds.
const (
	DefaultJobListLimit = 50
	MaxJobListLimit     = 1000
)

// Normalized returns a copy with limit and offset clamped.
func (o JobListOptions) Normalized() JobListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultJobListLimit
	}
	if o.Limit > MaxJobListLimit {
		o.Limit = MaxJobListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// AccountListOptions filters the account listing.
type AccountListOptions struct {
	Country    string
	Platform   Platform
	ActiveOnly bool
}

// Matches reports whether a satisfies the filter.
func (o AccountListOptions) Matches(a *Account) bool {
	if o.Country != "" && a.Country != o.Country {
		return false
	}
	if o.Platform != "" && a.Platform != o.Platform {
		return false
	}
	if o.ActiveOnly && !a.Active() {
		return false
	}
	return true
}
