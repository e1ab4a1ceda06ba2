package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/reference"
)

// ProjectHours is one normalized project row with its Monday to Sunday hours
type ProjectHours struct {
	Code        string
	Name        string
	Hours       [7]decimal.Decimal
	Corrections []string
	Ambiguous   bool
	Overridden  [7]bool
}

// Total is the row's weekly hours
func (p *ProjectHours) Total() decimal.Decimal {
	total := decimal.Zero
	for _, h := range p.Hours {
		total = total.Add(h)
	}
	return total
}

// Sheet is the normalized per-project hours matrix of one week, plus the
// totals printed on the sheet when the extractor reported them
type Sheet struct {
	Week     entity.CanonicalWeek
	Projects []*ProjectHours

	HasStatedDaily  bool
	StatedDaily     [7]decimal.Decimal
	HasStatedWeekly bool
	StatedWeekly    decimal.Decimal
}

// Total is the sum of every project's hours
func (s *Sheet) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Projects {
		total = total.Add(p.Total())
	}
	return total
}

// DayTotal is the sum across projects for day i
func (s *Sheet) DayTotal(i int) decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Projects {
		total = total.Add(p.Hours[i])
	}
	return total
}

// HolidayEnforcer forces hours on public holidays to zero
type HolidayEnforcer struct{}

// Enforce zeroes every project's hours on each holiday in the week and
// returns one BANK_HOLIDAY_OVERRIDE per (project, day) that was non-zero.
// Stated totals are adjusted by the removed hours. Running it again is a no-op.
func (HolidayEnforcer) Enforce(sheet *Sheet, holidays *reference.HolidayTable) []entity.CorrectionEvent {
	var events []entity.CorrectionEvent
	for i, day := range sheet.Week.Days {
		if !holidays.IsHoliday(day) {
			continue
		}

		removed := decimal.Zero
		for _, p := range sheet.Projects {
			if p.Hours[i].IsZero() {
				continue
			}
			events = append(events, entity.CorrectionEvent{
				Kind:       entity.CorrectionBankHolidayOverride,
				Before:     p.Hours[i].String(),
				After:      "0",
				Confidence: entity.ConfidenceHigh,
				Project:    p.Code,
				Day:        day.Format(entity.DateLayout),
			})
			removed = removed.Add(p.Hours[i])
			p.Hours[i] = decimal.Zero
			p.Overridden[i] = true
			p.Corrections = appendKind(p.Corrections, entity.CorrectionBankHolidayOverride)
		}

		switch {
		case sheet.HasStatedDaily:
			stated := sheet.StatedDaily[i]
			sheet.StatedDaily[i] = decimal.Zero
			if sheet.HasStatedWeekly {
				sheet.StatedWeekly = decimal.Max(decimal.Zero, sheet.StatedWeekly.Sub(stated))
			}
		case sheet.HasStatedWeekly:
			sheet.StatedWeekly = decimal.Max(decimal.Zero, sheet.StatedWeekly.Sub(removed))
		}
	}

	return events
}

func appendKind(kinds []string, kind string) []string {
	for _, k := range kinds {
		if k == kind {
			return kinds
		}
	}
	return append(kinds, kind)
}
