package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Payload is the typed body of a job. Every JobType has exactly one variant.
type Payload interface {
	JobType() JobType
	Validate() error
}

// ErrInvalidPayload is returned when a payload does not match its job type.
var ErrInvalidPayload = errors.New("invalid payload")

// ReportType selects the period a report covers.
type ReportType string

const (
	// ReportMonthly covers a single calendar month.
	ReportMonthly ReportType = "monthly"
	// ReportYearly covers a calendar year.
	ReportYearly ReportType = "yearly"
)

// Valid returns true for monthly and yearly.
func (t ReportType) Valid() bool {
	return t == ReportMonthly || t == ReportYearly
}

// CollectAccountPayload targets one account for incremental collection.
type CollectAccountPayload struct {
	AccountID string `json:"account_id"`
}

// JobType implements Payload.
func (CollectAccountPayload) JobType() JobType { return JobTypeCollectAccount }

// Validate implements Payload.
func (p CollectAccountPayload) Validate() error {
	if strings.TrimSpace(p.AccountID) == "" {
		return fmt.Errorf("%w: account_id is required", ErrInvalidPayload)
	}
	return nil
}

// DefaultHistoricalMonths is the backfill window when none is given.
const DefaultHistoricalMonths = 12

// CollectHistoricalPayload targets one account for a backfill.
type CollectHistoricalPayload struct {
	AccountID string `json:"account_id"`
	Months    int    `json:"months,omitempty"`
}

// JobType implements Payload.
func (CollectHistoricalPayload) JobType() JobType { return JobTypeCollectHistorical }

// Validate implements Payload.
func (p CollectHistoricalPayload) Validate() error {
	if strings.TrimSpace(p.AccountID) == "" {
		return fmt.Errorf("%w: account_id is required", ErrInvalidPayload)
	}
	if p.Months < 0 {
		return fmt.Errorf("%w: months must be >= 0", ErrInvalidPayload)
	}
	return nil
}

// MonthsOrDefault returns Months, falling back to DefaultHistoricalMonths.
func (p CollectHistoricalPayload) MonthsOrDefault() int {
	if p.Months <= 0 {
		return DefaultHistoricalMonths
	}
	return p.Months
}

// UpdateFollowersPayload has no fields; it always covers every active account.
type UpdateFollowersPayload struct{}

// JobType implements Payload.
func (UpdateFollowersPayload) JobType() JobType { return JobTypeUpdateFollowers }

// Validate implements Payload.
func (UpdateFollowersPayload) Validate() error { return nil }

// DefaultEngagementDays is the lookback for engagement refreshes.
const DefaultEngagementDays = 7

// UpdatePostEngagementPayload selects how far back posts are refreshed.
type UpdatePostEngagementPayload struct {
	Days int `json:"days,omitempty"`
}

// JobType implements Payload.
func (UpdatePostEngagementPayload) JobType() JobType { return JobTypeUpdatePostEngagement }

// Validate implements Payload.
func (p UpdatePostEngagementPayload) Validate() error {
	if p.Days < 0 {
		return fmt.Errorf("%w: days must be >= 0", ErrInvalidPayload)
	}
	return nil
}

// DaysOrDefault returns Days, falling back to DefaultEngagementDays.
func (p UpdatePostEngagementPayload) DaysOrDefault() int {
	if p.Days <= 0 {
		return DefaultEngagementDays
	}
	return p.Days
}

// CalculateMonthlyPayload computes metrics for one month, optionally for a single account.
type CalculateMonthlyPayload struct {
	YearMonth string `json:"year_month,omitempty"`
	AccountID string `json:"account_id,omitempty"`
}

// JobType implements Payload.
func (CalculateMonthlyPayload) JobType() JobType { return JobTypeCalculateMonthly }

// Validate implements Payload.
func (p CalculateMonthlyPayload) Validate() error { return validateOptionalMonth(p.YearMonth) }

// CalculateBenchmarksPayload ranks accounts for one month.
type CalculateBenchmarksPayload struct {
	YearMonth string `json:"year_month,omitempty"`
}

// JobType implements Payload.
func (CalculateBenchmarksPayload) JobType() JobType { return JobTypeCalculateBenchmarks }

// Validate implements Payload.
func (p CalculateBenchmarksPayload) Validate() error { return validateOptionalMonth(p.YearMonth) }

// DefaultAnomalyThresholdPct is used when a detect_anomalies payload has no threshold.
const DefaultAnomalyThresholdPct = 50.0

// DetectAnomaliesPayload flags month-over-month changes above a threshold.
type DetectAnomaliesPayload struct {
	YearMonth    string  `json:"year_month,omitempty"`
	ThresholdPct float64 `json:"threshold_pct,omitempty"`
}

// JobType implements Payload.
func (DetectAnomaliesPayload) JobType() JobType { return JobTypeDetectAnomalies }

// Validate implements Payload.
func (p DetectAnomaliesPayload) Validate() error {
	if p.ThresholdPct < 0 {
		return fmt.Errorf("%w: threshold_pct must be >= 0", ErrInvalidPayload)
	}
	return validateOptionalMonth(p.YearMonth)
}

// ThresholdOrDefault returns ThresholdPct, falling back to DefaultAnomalyThresholdPct.
func (p DetectAnomaliesPayload) ThresholdOrDefault() float64 {
	if p.ThresholdPct <= 0 {
		return DefaultAnomalyThresholdPct
	}
	return p.ThresholdPct
}

// GenerateDashboardDataPayload writes the dashboard snapshot for a month.
type GenerateDashboardDataPayload struct {
	YearMonth string `json:"year_month,omitempty"`
}

// JobType implements Payload.
func (GenerateDashboardDataPayload) JobType() JobType { return JobTypeGenerateDashboardData }

// Validate implements Payload.
func (p GenerateDashboardDataPayload) Validate() error { return validateOptionalMonth(p.YearMonth) }

// ReportPeriod selects the month or year a report covers.
type ReportPeriod struct {
	YearMonth string `json:"year_month,omitempty"`
	Year      int    `json:"year,omitempty"`
}

// An empty kind means monthly.
func (p ReportPeriod) validate(kind ReportType) error {
	switch kind {
	case ReportMonthly, "":
		return validateOptionalMonth(p.YearMonth)
	case ReportYearly:
		if p.Year < 0 {
			return fmt.Errorf("%w: year must be positive", ErrInvalidPayload)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown report type %q", ErrInvalidPayload, kind)
	}
}

// GeneratePDFPayload renders the printable report.
type GeneratePDFPayload struct {
	ReportType ReportType `json:"report_type"`
	ReportPeriod
}

// JobType implements Payload.
func (GeneratePDFPayload) JobType() JobType { return JobTypeGeneratePDF }

// Validate implements Payload.
func (p GeneratePDFPayload) Validate() error { return p.validate(p.ReportType) }

// ExportExcelPayload writes the spreadsheet export.
type ExportExcelPayload struct {
	ExportType ReportType `json:"export_type"`
	ReportPeriod
}

// JobType implements Payload.
func (ExportExcelPayload) JobType() JobType { return JobTypeExportExcel }

// Validate implements Payload.
func (p ExportExcelPayload) Validate() error { return p.validate(p.ExportType) }

func validateOptionalMonth(ym string) error {
	if ym == "" {
		return nil
	}
	if _, err := ParseYearMonth(ym); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

func newPayload(t JobType) (Payload, error) {
	switch t {
	case JobTypeCollectAccount:
		return &CollectAccountPayload{}, nil
	case JobTypeCollectHistorical:
		return &CollectHistoricalPayload{}, nil
	case JobTypeUpdateFollowers:
		return &UpdateFollowersPayload{}, nil
	case JobTypeUpdatePostEngagement:
		return &UpdatePostEngagementPayload{}, nil
	case JobTypeCalculateMonthly:
		return &CalculateMonthlyPayload{}, nil
	case JobTypeCalculateBenchmarks:
		return &CalculateBenchmarksPayload{}, nil
	case JobTypeDetectAnomalies:
		return &DetectAnomaliesPayload{}, nil
	case JobTypeGenerateDashboardData:
		return &GenerateDashboardDataPayload{}, nil
	case JobTypeGeneratePDF:
		return &GeneratePDFPayload{}, nil
	case JobTypeExportExcel:
		return &ExportExcelPayload{}, nil
	default:
		return nil, fmt.Errorf("invalid job type: %q", t)
	}
}

// DecodePayload decodes raw JSON into the payload variant for t and validates it.
// The returned value is a pointer to the variant struct.
//
//nolint:ireturn // the payload union is an interface by construction.
func DecodePayload(t JobType, raw json.RawMessage) (Payload, error) {
	p, err := newPayload(t)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(p); err != nil {
			return nil, fmt.Errorf("%w for %s: %w", ErrInvalidPayload, t, err)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// EncodePayload validates p and marshals it to JSON.
func EncodePayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return b, nil
}
