package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/reference"
)

// MaterializeInput is everything the materializer needs for one sheet
type MaterializeInput struct {
	Identity        entity.Identity
	Sheet           *Sheet
	IsZeroHour      bool
	ZeroHourReason  string
	Holidays        *reference.HolidayTable
	SourceImageRef  string
	BaseCorrections []string
}

// Materializer expands the hours matrix into storage entries. A (project, day)
// cell becomes an entry only when it has hours or falls on a public holiday.
type Materializer struct {
	tolerance decimal.Decimal
}

// NewMaterializer creates a materializer from pipeline settings
func NewMaterializer(cfg Config) Materializer {
	return Materializer{tolerance: decimal.NewFromFloat(cfg.TotalsTolerance)}
}

// Materialize returns the entries in project then day order, together with
// merge corrections and totals warnings
func (m Materializer) Materialize(in MaterializeInput) ([]entity.CanonicalEntry, []entity.CorrectionEvent, []entity.Warning) {
	if in.IsZeroHour {
		return m.zeroHourWeek(in)
	}

	var (
		entries  []entity.CanonicalEntry
		events   []entity.CorrectionEvent
		warnings []entity.Warning
		index    = make(map[string]int)
	)

	for _, p := range in.Sheet.Projects {
		for i, day := range in.Sheet.Week.Days {
			holiday := in.Holidays.IsHoliday(day)
			if !p.Hours[i].IsPositive() && !holiday {
				continue
			}

			entry := entity.CanonicalEntry{
				ResourceKey:        in.Identity.StorageKey,
				ResourceName:       in.Identity.CanonicalName,
				Date:               day,
				ProjectCode:        p.Code,
				ProjectName:        p.Name,
				Hours:              p.Hours[i],
				IsBankHoliday:      holiday,
				HolidayName:        in.Holidays.Name(day),
				SourceImageRef:     in.SourceImageRef,
				CorrectionsApplied: entryCorrections(in.BaseCorrections, p, i),
				NeedsReview:        p.Ambiguous,
			}

			key := entry.SortKey()
			if at, dup := index[key]; dup {
				existing := &entries[at]
				events = append(events, entity.CorrectionEvent{
					Kind:       entity.CorrectionDuplicateMerged,
					Before:     fmt.Sprintf("%s + %s", existing.Hours.String(), entry.Hours.String()),
					After:      existing.Hours.Add(entry.Hours).String(),
					Confidence: entity.ConfidenceMedium,
					Project:    p.Code,
					Day:        day.Format(entity.DateLayout),
				})
				existing.Hours = existing.Hours.Add(entry.Hours)
				existing.NeedsReview = existing.NeedsReview || entry.NeedsReview
				for _, k := range entry.CorrectionsApplied {
					existing.CorrectionsApplied = appendKind(existing.CorrectionsApplied, k)
				}
				existing.CorrectionsApplied = appendKind(existing.CorrectionsApplied, entity.CorrectionDuplicateMerged)
				continue
			}

			index[key] = len(entries)
			entries = append(entries, entry)
		}
	}

	if len(entries) == 0 {
		warnings = append(warnings, entity.Warning{
			Kind:     entity.WarningMissingData,
			Severity: entity.SeverityMedium,
			Message:  "timesheet has no worked hours and is not marked as a zero-hour week",
		})
	}

	warnings = append(warnings, m.checkTotals(in.Sheet, entries)...)
	return entries, events, warnings
}

func (m Materializer) zeroHourWeek(in MaterializeInput) ([]entity.CanonicalEntry, []entity.CorrectionEvent, []entity.Warning) {
	var warnings []entity.Warning

	reason := in.ZeroHourReason
	switch reason {
	case entity.ZeroHourReasonAnnualLeave, entity.ZeroHourReasonAbsence:
	case "":
		reason = entity.ZeroHourReasonAbsence
	default:
		warnings = append(warnings, entity.Warning{
			Kind:     entity.WarningMissingData,
			Severity: entity.SeverityLow,
			Message:  fmt.Sprintf("unknown zero-hour reason %q recorded as %s", in.ZeroHourReason, entity.ZeroHourReasonAbsence),
		})
		reason = entity.ZeroHourReasonAbsence
	}

	if total := in.Sheet.Total(); total.IsPositive() {
		warnings = append(warnings, entity.Warning{
			Kind:     entity.WarningZeroHourConflict,
			Severity: entity.SeverityHigh,
			Message:  fmt.Sprintf("sheet is marked zero-hour but lists %s hours; project rows were not stored", total.String()),
		})
	}

	entry := entity.CanonicalEntry{
		ResourceKey:        in.Identity.StorageKey,
		ResourceName:       in.Identity.CanonicalName,
		Date:               in.Sheet.Week.StartDate,
		Hours:              decimal.Zero,
		IsZeroHourWeek:     true,
		ZeroHourReason:     reason,
		SourceImageRef:     in.SourceImageRef,
		CorrectionsApplied: append([]string(nil), in.BaseCorrections...),
	}
	return []entity.CanonicalEntry{entry}, nil, warnings
}

// checkTotals compares materialized hours with the totals printed on the sheet
func (m Materializer) checkTotals(sheet *Sheet, entries []entity.CanonicalEntry) []entity.Warning {
	var warnings []entity.Warning

	if sheet.HasStatedWeekly {
		total := decimal.Zero
		for _, e := range entries {
			total = total.Add(e.Hours)
		}
		if total.Sub(sheet.StatedWeekly).Abs().GreaterThan(m.tolerance) {
			warnings = append(warnings, entity.Warning{
				Kind:     entity.WarningTotalsMismatch,
				Severity: entity.SeverityHigh,
				Message:  fmt.Sprintf("materialized total %s does not match stated weekly total %s", total.String(), sheet.StatedWeekly.String()),
			})
		}
	}

	if sheet.HasStatedDaily {
		for i, day := range sheet.Week.Days {
			actual := sheet.DayTotal(i)
			if actual.Sub(sheet.StatedDaily[i]).Abs().GreaterThan(m.tolerance) {
				warnings = append(warnings, entity.Warning{
					Kind:     entity.WarningTotalsMismatch,
					Severity: entity.SeverityMedium,
					Message: fmt.Sprintf("%s %s: project hours %s do not match stated daily total %s",
						day.Weekday(), day.Format(entity.DateLayout), actual.String(), sheet.StatedDaily[i].String()),
				})
			}
		}
	}
	return warnings
}

func entryCorrections(base []string, p *ProjectHours, day int) []string {
	out := append([]string(nil), base...)
	for _, k := range p.Corrections {
		if k == entity.CorrectionBankHolidayOverride && !p.Overridden[day] {
			continue
		}
		out = appendKind(out, k)
	}
	return out
}
