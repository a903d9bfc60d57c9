package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountIDRequired = errors.New("account_id is required")
	ErrInvalidYearMonth  = errors.New("year_month must be YYYY-MM")
)
