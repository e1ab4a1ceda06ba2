package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CanonicalEntry is one storage-ready timesheet row
type CanonicalEntry struct {
	ResourceKey        string          `json:"resource_key"`
	ResourceName       string          `json:"resource_name"`
	Date               time.Time       `json:"date"`
	ProjectCode        string          `json:"project_code,omitempty"`
	ProjectName        string          `json:"project_name,omitempty"`
	Hours              decimal.Decimal `json:"hours"`
	IsBankHoliday      bool            `json:"is_bank_holiday"`
	HolidayName        string          `json:"holiday_name,omitempty"`
	IsZeroHourWeek     bool            `json:"is_zero_hour_week"`
	ZeroHourReason     string          `json:"zero_hour_reason,omitempty"`
	SourceImageRef     string          `json:"source_image_ref"`
	CorrectionsApplied []string        `json:"corrections_applied,omitempty"`
	NeedsReview        bool            `json:"needs_review"`
}

// SortKey returns "YYYY-MM-DD#CODE" for project rows and "WEEK#YYYY-MM-DD" for zero-hour weeks
func (e CanonicalEntry) SortKey() string {
	if e.IsZeroHourWeek {
		return "WEEK#" + e.Date.Format(DateLayout)
	}
	return e.Date.Format(DateLayout) + "#" + e.ProjectCode
}

// Keep reports whether the entry carries information worth storing
func (e CanonicalEntry) Keep() bool {
	return e.Hours.IsPositive() || e.IsBankHoliday || e.IsZeroHourWeek
}
