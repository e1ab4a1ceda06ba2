package reference

import (
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

// Holiday is one public holiday
type Holiday struct {
	Date time.Time
	Name string
}

// HolidayTable is a read-only calendar of public holidays keyed by date
type HolidayTable struct {
	byDate map[string]Holiday
}

// NewHolidayTable builds a table from a list of holidays. Later duplicates win.
func NewHolidayTable(holidays []Holiday) *HolidayTable {
	t := &HolidayTable{byDate: make(map[string]Holiday, len(holidays))}
	for _, h := range holidays {
		d := time.Date(h.Date.Year(), h.Date.Month(), h.Date.Day(), 0, 0, 0, 0, time.UTC)
		t.byDate[d.Format(entity.DateLayout)] = Holiday{Date: d, Name: h.Name}
	}
	return t
}

// DefaultUKHolidays returns the England and Wales bank holidays for 2024 to 2026
func DefaultUKHolidays() *HolidayTable {
	return NewHolidayTable([]Holiday{
		{Date: ukDate(2024, 1, 1), Name: "New Year's Day"},
		{Date: ukDate(2024, 3, 29), Name: "Good Friday"},
		{Date: ukDate(2024, 4, 1), Name: "Easter Monday"},
		{Date: ukDate(2024, 5, 6), Name: "Early May bank holiday"},
		{Date: ukDate(2024, 5, 27), Name: "Spring bank holiday"},
		{Date: ukDate(2024, 8, 26), Name: "Summer bank holiday"},
		{Date: ukDate(2024, 12, 25), Name: "Christmas Day"},
		{Date: ukDate(2024, 12, 26), Name: "Boxing Day"},

		{Date: ukDate(2025, 1, 1), Name: "New Year's Day"},
		{Date: ukDate(2025, 4, 18), Name: "Good Friday"},
		{Date: ukDate(2025, 4, 21), Name: "Easter Monday"},
		{Date: ukDate(2025, 5, 5), Name: "Early May bank holiday"},
		{Date: ukDate(2025, 5, 26), Name: "Spring bank holiday"},
		{Date: ukDate(2025, 8, 25), Name: "Summer bank holiday"},
		{Date: ukDate(2025, 12, 25), Name: "Christmas Day"},
		{Date: ukDate(2025, 12, 26), Name: "Boxing Day"},

		{Date: ukDate(2026, 1, 1), Name: "New Year's Day"},
		{Date: ukDate(2026, 4, 3), Name: "Good Friday"},
		{Date: ukDate(2026, 4, 6), Name: "Easter Monday"},
		{Date: ukDate(2026, 5, 4), Name: "Early May bank holiday"},
		{Date: ukDate(2026, 5, 25), Name: "Spring bank holiday"},
		{Date: ukDate(2026, 8, 31), Name: "Summer bank holiday"},
		{Date: ukDate(2026, 12, 25), Name: "Christmas Day"},
		{Date: ukDate(2026, 12, 28), Name: "Boxing Day (substitute day)"},
	})
}

func ukDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsHoliday reports whether date is a public holiday
func (t *HolidayTable) IsHoliday(date time.Time) bool {
	if t == nil {
		return false
	}
	_, ok := t.byDate[date.Format(entity.DateLayout)]
	return ok
}

// Name returns the holiday name for date, or "" when it is a working day
func (t *HolidayTable) Name(date time.Time) string {
	if t == nil {
		return ""
	}
	return t.byDate[date.Format(entity.DateLayout)].Name
}

// InWeek returns the holidays falling inside week, in day order
func (t *HolidayTable) InWeek(week entity.CanonicalWeek) []Holiday {
	var out []Holiday
	for _, d := range week.Days {
		if h, ok := t.lookup(d); ok {
			out = append(out, h)
		}
	}
	return out
}

// All returns every holiday sorted by date
func (t *HolidayTable) All() []Holiday {
	if t == nil {
		return nil
	}
	out := make([]Holiday, 0, len(t.byDate))
	for _, h := range t.byDate {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Len returns the number of holidays in the table
func (t *HolidayTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byDate)
}

// PromptLines renders the calendar for inclusion in an extraction prompt
func (t *HolidayTable) PromptLines() []string {
	all := t.All()
	lines := make([]string, 0, len(all))
	for _, h := range all {
		lines = append(lines, fmt.Sprintf("%s (%s): %s", h.Date.Format(entity.DateLayout), h.Date.Weekday(), h.Name))
	}
	return lines
}

func (t *HolidayTable) lookup(date time.Time) (Holiday, bool) {
	if t == nil {
		return Holiday{}, false
	}
	h, ok := t.byDate[date.Format(entity.DateLayout)]
	return h, ok
}
