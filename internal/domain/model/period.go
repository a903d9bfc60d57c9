package model

import (
	"fmt"
	"time"
)

// YearMonth identifies a calendar month, formatted as "2006-01".
type YearMonth struct {
	Year  int
	Month time.Month
}

const yearMonthLayout = "2006-01"

// ParseYearMonth parses a "YYYY-MM" string.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(yearMonthLayout, s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid year_month %q: want YYYY-MM", s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// YearMonthOf returns the month containing t.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// String returns the "YYYY-MM" form.
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Start returns the first instant of the month in UTC.
func (ym YearMonth) Start() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following month in UTC.
func (ym YearMonth) End() time.Time {
	return ym.Start().AddDate(0, 1, 0)
}

// Prev returns the preceding month.
func (ym YearMonth) Prev() YearMonth {
	return YearMonthOf(ym.Start().AddDate(0, -1, 0))
}

// ResolveYearMonth parses s, falling back to the month containing now when s is empty.
func ResolveYearMonth(s string, now time.Time) (YearMonth, error) {
	if s == "" {
		return YearMonthOf(now.UTC()), nil
	}
	return ParseYearMonth(s)
}
