package entity

import (
	"fmt"
	"time"
)

// CanonicalWeek is a Monday-to-Sunday week resolved from a sheet's date range
type CanonicalWeek struct {
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	Days      [7]time.Time `json:"days"`
}

// NewCanonicalWeek builds the week that starts on the given Monday
func NewCanonicalWeek(monday time.Time) (CanonicalWeek, error) {
	monday = time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
	if monday.Weekday() != time.Monday {
		return CanonicalWeek{}, fmt.Errorf("week must start on Monday, got %s", monday.Weekday())
	}

	week := CanonicalWeek{StartDate: monday}
	for i := 0; i < 7; i++ {
		week.Days[i] = monday.AddDate(0, 0, i)
	}
	week.EndDate = week.Days[6]
	return week, nil
}

// DayIndex returns the 0-based position of date in the week, or -1
func (w CanonicalWeek) DayIndex(date time.Time) int {
	for i, d := range w.Days {
		if sameDay(d, date) {
			return i
		}
	}
	return -1
}

// StartKey is the ISO date of the Monday
func (w CanonicalWeek) StartKey() string {
	return w.StartDate.Format(DateLayout)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
